package operations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	root := "/srv/lundong"
	c := DefaultCatalog(root, "python3")

	require.Equal(t, 6, c.Len())
	stages := c.Stages()

	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
		assert.Equal(t, "python3", s.Command)
	}
	assert.Equal(t, []string{"download", "preprocess", "factor_engineering", "factor_analysis", "rotation_scores", "enhanced_backtest"}, names)

	assert.True(t, stages[0].AllowFail)
	for _, s := range stages[1:] {
		assert.False(t, s.AllowFail, s.Name)
	}

	assert.Equal(t, filepath.Join(root, "data"), stages[0].WorkingDirectory)
	assert.Equal(t, filepath.Join(root, "data", "update.py"), stages[0].ExecutablePath)
	assert.Equal(t, 600, stages[2].TimeoutSeconds)
	assert.Equal(t, 600, stages[3].TimeoutSeconds)
	assert.Equal(t, []string{"--top_n", "3", "--rebalance_period", "5"}, stages[5].ExtraArguments)

	seqs := c.Sequences()
	require.Len(t, seqs, 4)
	assert.Equal(t, SequenceFull, seqs[0].Name)
	assert.Len(t, seqs[0].Stages, 6)
}

func TestCatalogStagesIsACopy(t *testing.T) {
	c := DefaultCatalog("/r", "python")
	s := c.Stages()
	s[0].Name = "mutated"
	assert.Equal(t, "download", c.Stages()[0].Name)
}

func TestNewCatalogValidation(t *testing.T) {
	stages := []Stage{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	tests := []struct {
		name      string
		stages    []Stage
		sequences []Sequence
		wantErr   string
	}{
		{name: "no stages", wantErr: "at least one stage"},
		{name: "missing name", stages: []Stage{{}}, wantErr: "name is required"},
		{name: "duplicate stage", stages: []Stage{{Name: "a"}, {Name: "a"}}, wantErr: "duplicate stage name"},
		{
			name:      "unknown stage in sequence",
			stages:    stages,
			sequences: []Sequence{{Name: "x", Stages: []string{"zzz"}}},
			wantErr:   "stage not found",
		},
		{
			name:      "backward order",
			stages:    stages,
			sequences: []Sequence{{Name: "x", Stages: []string{"c", "a"}}},
			wantErr:   "out of pipeline order",
		},
		{
			name:      "full is reserved",
			stages:    stages,
			sequences: []Sequence{{Name: SequenceFull, Stages: []string{"a"}}},
			wantErr:   "duplicate sequence name",
		},
		{
			name:      "valid",
			stages:    stages,
			sequences: []Sequence{{Name: "tail", Stages: []string{"b", "c"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.stages, tt.sequences)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "stages.yaml")
	content := `
interpreter: python3
stages:
  - name: download
    working_directory: data
    executable: data/update.py
    allow_fail: true
  - name: scores
    working_directory: relative_strength/factor_rotation
    executable: relative_strength/factor_rotation/rotation_strategy.py
    timeout_seconds: 120
    args: ["--fast"]
  - name: report
    command: /usr/bin/env
    executable: /opt/tools/report
sequences:
  - name: signal
    description: refresh signal only
    stages: [scores]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := LoadCatalog(path, root, "python")
	require.NoError(t, err)
	stages := c.Stages()
	require.Len(t, stages, 3)

	assert.Equal(t, 300, stages[0].TimeoutSeconds, "default applied")
	assert.Equal(t, "python3", stages[0].Command)
	assert.Equal(t, filepath.Join(root, "data"), stages[0].WorkingDirectory)
	assert.Equal(t, filepath.Join(root, "data", "update.py"), stages[0].ExecutablePath)

	assert.Equal(t, 120, stages[1].TimeoutSeconds)
	assert.Equal(t, []string{"--fast"}, stages[1].ExtraArguments)

	assert.Equal(t, "/usr/bin/env", stages[2].Command)
	assert.Equal(t, "/opt/tools/report", stages[2].ExecutablePath)
	assert.Equal(t, root, stages[2].WorkingDirectory)

	signal, err := c.Sequence("signal")
	require.NoError(t, err)
	require.Len(t, signal, 1)
	assert.Equal(t, "scores", signal[0].Name)
}

func TestLoadCatalogErrors(t *testing.T) {
	root := t.TempDir()

	tests := map[string]string{
		"missing executable": "stages:\n  - name: a\n",
		"negative timeout":   "stages:\n  - name: a\n    executable: a.py\n    timeout_seconds: -1\n",
		"no stages":          "stages: []\n",
		"bad yaml":           "stages: [",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(root, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := LoadCatalog(path, root, "python")
			assert.Error(t, err)
		})
	}

	_, err := LoadCatalog(filepath.Join(root, "absent.yaml"), root, "python")
	assert.Error(t, err)
}
