package operations

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

// Built-in sequence names
const (
	SequenceFull     = "full"
	SequenceFactors  = "factors"
	SequenceSignal   = "signal"
	SequenceBacktest = "backtest"
)

// Sequence names an ordered subset of the catalog
type Sequence struct {
	Name        string   `yaml:"name" json:"name" validate:"required"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Stages      []string `yaml:"stages" json:"stages" validate:"required,min=1,dive,required"`
}

// Catalog is the ordered, validated list of stages plus named subsequences.
type Catalog struct {
	stages    []Stage
	index     map[string]int
	sequences []Sequence
}

// catalogFile is the on-disk catalog layout
type catalogFile struct {
	Interpreter string     `yaml:"interpreter"`
	Stages      []Stage    `yaml:"stages" validate:"required,min=1,dive"`
	Sequences   []Sequence `yaml:"sequences" validate:"dive"`
}

var catalogValidator = validator.New()

// DefaultStages returns the six-stage refresh pipeline rooted at root.
func DefaultStages(root, interpreter string) []Stage {
	engineering := filepath.Join(root, "relative_strength", "factor_engineering")
	rotation := filepath.Join(root, "relative_strength", "factor_rotation")
	data := filepath.Join(root, "data")

	return []Stage{
		{
			Name:             "download",
			Command:          interpreter,
			ExecutablePath:   filepath.Join(data, "update.py"),
			WorkingDirectory: data,
			TimeoutSeconds:   300,
			AllowFail:        true,
			SuccessMessage:   "market data updated",
		},
		{
			Name:             "preprocess",
			Command:          interpreter,
			ExecutablePath:   filepath.Join(data, "data_preprocessing.py"),
			WorkingDirectory: data,
			TimeoutSeconds:   300,
			SuccessMessage:   "data preprocessing completed",
		},
		{
			Name:             "factor_engineering",
			Command:          interpreter,
			ExecutablePath:   filepath.Join(engineering, "factor_engineering.py"),
			WorkingDirectory: engineering,
			TimeoutSeconds:   600,
			SuccessMessage:   "factors computed",
		},
		{
			Name:             "factor_analysis",
			Command:          interpreter,
			ExecutablePath:   filepath.Join(engineering, "factor_analysis_fast.py"),
			WorkingDirectory: engineering,
			TimeoutSeconds:   600,
			SuccessMessage:   "factor analysis completed",
		},
		{
			Name:             "rotation_scores",
			Command:          interpreter,
			ExecutablePath:   filepath.Join(rotation, "rotation_strategy.py"),
			WorkingDirectory: rotation,
			TimeoutSeconds:   300,
			SuccessMessage:   "rotation scores generated",
		},
		{
			Name:             "enhanced_backtest",
			Command:          interpreter,
			ExecutablePath:   filepath.Join(rotation, "enhanced_backtest.py"),
			WorkingDirectory: rotation,
			TimeoutSeconds:   300,
			ExtraArguments:   []string{"--top_n", "3", "--rebalance_period", "5"},
			SuccessMessage:   "enhanced backtest completed",
		},
	}
}

// DefaultSequences are the composite refresh operations over DefaultStages.
func DefaultSequences() []Sequence {
	return []Sequence{
		{
			Name:        SequenceFactors,
			Description: "refresh factors only",
			Stages:      []string{"preprocess", "factor_engineering", "factor_analysis", "rotation_scores"},
		},
		{
			Name:        SequenceSignal,
			Description: "refresh signal only",
			Stages:      []string{"rotation_scores"},
		},
		{
			Name:        SequenceBacktest,
			Description: "rerun the enhanced backtest",
			Stages:      []string{"enhanced_backtest"},
		},
	}
}

// DefaultCatalog builds the built-in catalog
func DefaultCatalog(root, interpreter string) *Catalog {
	c, err := NewCatalog(DefaultStages(root, interpreter), DefaultSequences())
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog. Relative executable and working directory
// paths are resolved against root; stages without a command use the file's
// interpreter, or the given one.
func LoadCatalog(path, root, interpreter string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	for i := range file.Stages {
		if err := defaults.Set(&file.Stages[i]); err != nil {
			return nil, fmt.Errorf("stage[%d]: failed to apply defaults: %w", i, err)
		}
	}
	if err := catalogValidator.Struct(file); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}

	if file.Interpreter != "" {
		interpreter = file.Interpreter
	}
	for i := range file.Stages {
		s := &file.Stages[i]
		if s.Command == "" {
			s.Command = interpreter
		}
		s.WorkingDirectory = resolveAgainst(root, s.WorkingDirectory)
		s.ExecutablePath = resolveAgainst(root, s.ExecutablePath)
	}

	return NewCatalog(file.Stages, file.Sequences)
}

func resolveAgainst(root, p string) string {
	if p == "" {
		return root
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

// NewCatalog validates stage names are unique and every sequence lists known
// stages in catalog order.
func NewCatalog(stages []Stage, sequences []Sequence) (*Catalog, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one stage")
	}

	c := &Catalog{
		stages: append([]Stage(nil), stages...),
		index:  make(map[string]int, len(stages)),
	}
	for i, s := range c.stages {
		if s.Name == "" {
			return nil, fmt.Errorf("stage[%d]: name is required", i)
		}
		if _, dup := c.index[s.Name]; dup {
			return nil, fmt.Errorf("duplicate stage name: %s", s.Name)
		}
		c.index[s.Name] = i
	}

	seen := map[string]bool{SequenceFull: true}
	for _, seq := range sequences {
		if seen[seq.Name] {
			return nil, fmt.Errorf("duplicate sequence name: %s", seq.Name)
		}
		seen[seq.Name] = true

		last := -1
		for _, name := range seq.Stages {
			pos, ok := c.index[name]
			if !ok {
				return nil, fmt.Errorf("sequence %s: %w: %s", seq.Name, ErrStageNotFound, name)
			}
			if pos <= last {
				return nil, fmt.Errorf("sequence %s: stage %s is out of pipeline order", seq.Name, name)
			}
			last = pos
		}
		c.sequences = append(c.sequences, seq)
	}

	return c, nil
}

// Stages returns a copy of the ordered stage list
func (c *Catalog) Stages() []Stage {
	return append([]Stage(nil), c.stages...)
}

// Len returns the number of stages
func (c *Catalog) Len() int {
	return len(c.stages)
}

// StageAt returns the stage at a 1-based position
func (c *Catalog) StageAt(position int) (Stage, error) {
	if position < 1 || position > len(c.stages) {
		return Stage{}, fmt.Errorf("%w: position %d outside 1..%d", ErrStageNotFound, position, len(c.stages))
	}
	return c.stages[position-1], nil
}

// Sequences lists every runnable sequence, "full" first
func (c *Catalog) Sequences() []Sequence {
	full := Sequence{Name: SequenceFull, Description: "run every stage"}
	for _, s := range c.stages {
		full.Stages = append(full.Stages, s.Name)
	}
	return append([]Sequence{full}, c.sequences...)
}

// Sequence resolves a sequence name to its stages in pipeline order
func (c *Catalog) Sequence(name string) ([]Stage, error) {
	if name == "" || name == SequenceFull {
		return c.Stages(), nil
	}
	for _, seq := range c.sequences {
		if seq.Name != name {
			continue
		}
		stages := make([]Stage, 0, len(seq.Stages))
		for _, stageName := range seq.Stages {
			stages = append(stages, c.stages[c.index[stageName]])
		}
		return stages, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSequence, name)
}
