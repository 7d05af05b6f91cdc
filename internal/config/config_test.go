package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(t *testing.T)
		fileContent string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults only",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, SourceLocal, cfg.Source.Mode)
				assert.Equal(t, DefaultRemoteBaseURL, cfg.Source.BaseURL)
				assert.Equal(t, "python", cfg.Project.Interpreter)
				assert.Equal(t, "lundong", cfg.Project.Marker)
				assert.Empty(t, cfg.Project.Root)
				assert.False(t, cfg.Remote())
			},
		},
		{
			name: "file overrides defaults",
			fileContent: `
server:
  port: 9000
source:
  mode: remote
  base_url: https://data.example.org/published/
project:
  root: /srv/lundong
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.True(t, cfg.Remote())
				assert.Equal(t, "https://data.example.org/published", cfg.Source.BaseURL)
				assert.Equal(t, "/srv/lundong", cfg.Project.Root)
				// untouched sections keep defaults
				assert.Equal(t, "info", cfg.Logging.Level)
			},
		},
		{
			name: "env overrides file",
			setupEnv: func(t *testing.T) {
				t.Setenv("ROTATION_SERVER_PORT", "7070")
				t.Setenv("ROTATION_PROJECT_INTERPRETER", "python3")
				t.Setenv("ROTATION_SOURCE_HTTP_TIMEOUT", "5s")
			},
			fileContent: "server:\n  port: 9000\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "python3", cfg.Project.Interpreter)
				assert.Equal(t, 5*time.Second, cfg.Source.HTTPTimeout)
			},
		},
		{
			name: "github mode is an alias for remote",
			setupEnv: func(t *testing.T) {
				t.Setenv("ROTATION_SOURCE_MODE", "GitHub")
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, SourceRemote, cfg.Source.Mode)
			},
		},
		{
			name: "invalid port",
			setupEnv: func(t *testing.T) {
				t.Setenv("ROTATION_SERVER_PORT", "70000")
			},
			wantErr: "invalid server port",
		},
		{
			name: "unknown source mode",
			setupEnv: func(t *testing.T) {
				t.Setenv("ROTATION_SOURCE_MODE", "ftp")
			},
			wantErr: "invalid source mode",
		},
		{
			name: "remote without base url",
			fileContent: `
source:
  mode: remote
  base_url: ""
`,
			wantErr: "base url is required",
		},
		{
			name:        "malformed yaml",
			fileContent: "server: [",
			wantErr:     "failed to load config from file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setupEnv != nil {
				tt.setupEnv(t)
			}
			path := ""
			if tt.fileContent != "" {
				path = writeConfigFile(t, tt.fileContent)
			}

			cfg, err := LoadFrom(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestResolveProjectRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "lundong")
	nested := filepath.Join(root, "relative_strength", "factor_rotation")
	require.NoError(t, os.MkdirAll(nested, 0755))

	t.Run("walks up to marker", func(t *testing.T) {
		got, err := ResolveProjectRoot(nested, "lundong")
		require.NoError(t, err)
		want, _ := filepath.EvalSymlinks(root)
		assert.Equal(t, want, got)
	})

	t.Run("start is the marker", func(t *testing.T) {
		got, err := ResolveProjectRoot(root, "lundong")
		require.NoError(t, err)
		assert.Equal(t, "lundong", filepath.Base(got))
	})

	t.Run("marker absent", func(t *testing.T) {
		_, err := ResolveProjectRoot(nested, "does-not-exist")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does-not-exist")
	})

	t.Run("empty marker", func(t *testing.T) {
		_, err := ResolveProjectRoot(nested, "")
		require.Error(t, err)
	})
}

func TestEnsureProjectRoot(t *testing.T) {
	t.Run("configured root must exist", func(t *testing.T) {
		cfg := Default()
		cfg.Project.Root = filepath.Join(t.TempDir(), "missing")
		require.Error(t, cfg.EnsureProjectRoot())
	})

	t.Run("configured root is made absolute", func(t *testing.T) {
		dir := t.TempDir()
		cfg := Default()
		cfg.Project.Root = dir
		require.NoError(t, cfg.EnsureProjectRoot())
		assert.True(t, filepath.IsAbs(cfg.Project.Root))
	})
}

func TestProjectPath(t *testing.T) {
	cfg := Default()
	cfg.Project.Root = "/srv/lundong"

	assert.Equal(t, filepath.Join("/srv/lundong", "data", "update.py"), cfg.ProjectPath("data/update.py"))
	assert.Equal(t, "/abs/prices.csv", cfg.ProjectPath("/abs/prices.csv"))
	assert.Equal(t, "", cfg.ProjectPath(""))
}
