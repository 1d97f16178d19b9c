package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/openfroyo/yoloplan/pkg/engine"
	"github.com/openfroyo/yoloplan/pkg/model"
)

// Format is the encoding of a problem document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatOf picks the document format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported problem document extension: %q", filepath.Ext(path))
	}
}

// Document is a problem file: the problem itself plus optional planner settings.
type Document struct {
	model.Problem `yaml:",inline"`

	// Planner overrides the default search configuration.
	Planner *PlannerSection `json:"planner,omitempty" yaml:"planner,omitempty"`

	// Source is the file the document was loaded from.
	Source string `json:"-" yaml:"-"`

	// Format is the encoding the document was read in.
	Format Format `json:"-" yaml:"-"`
}

// ToProblem checks the problem for semantic errors and returns it.
func (d *Document) ToProblem() (*model.Problem, error) {
	p := d.Problem
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// PlannerSection holds per-problem search settings. Unset fields keep the
// caller's defaults.
type PlannerSection struct {
	// RestartProbability is the chance of restarting from the empty plan on each try.
	RestartProbability *float64 `json:"restart_probability,omitempty" yaml:"restart_probability,omitempty" validate:"omitempty,gte=0,lt=1"`

	// MaxTries bounds the number of oracle calls.
	MaxTries *int `json:"max_tries,omitempty" yaml:"max_tries,omitempty" validate:"omitempty,gte=0"`

	// Seed fixes the random source.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// NoConsecutiveRepeats forbids sampling the last action again.
	NoConsecutiveRepeats *bool `json:"no_consecutive_repeats,omitempty" yaml:"no_consecutive_repeats,omitempty"`

	// Timeout bounds a whole solve (e.g., "30s").
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxPlanLength is passed to plan policies.
	MaxPlanLength *int `json:"max_plan_length,omitempty" yaml:"max_plan_length,omitempty" validate:"omitempty,gt=0"`
}

// Apply overlays the section on cfg.
func (s *PlannerSection) Apply(cfg engine.Config) engine.Config {
	if s == nil {
		return cfg
	}
	if s.RestartProbability != nil {
		cfg.RestartProbability = *s.RestartProbability
	}
	if s.MaxTries != nil {
		n := *s.MaxTries
		cfg.MaxTries = &n
	}
	if s.Seed != nil {
		seed := *s.Seed
		cfg.Seed = &seed
	}
	if s.NoConsecutiveRepeats != nil {
		cfg.NoConsecutiveRepeats = *s.NoConsecutiveRepeats
	}
	return cfg
}

// TimeoutDuration parses Timeout. Zero means no timeout.
func (s *PlannerSection) TimeoutDuration() (time.Duration, error) {
	if s == nil || s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", s.Timeout)
	}
	return d, nil
}

// ValidationError represents a document error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the document path of the error (e.g., "planner.max_tries").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

// String renders the error as file:line:col: path: message.
func (v ValidationError) String() string {
	var b strings.Builder
	if v.File != "" {
		b.WriteString(v.File)
		if v.Line > 0 {
			fmt.Fprintf(&b, ":%d", v.Line)
			if v.Column > 0 {
				fmt.Fprintf(&b, ":%d", v.Column)
			}
		}
		b.WriteString(": ")
	}
	if v.Path != "" {
		b.WriteString(v.Path)
		b.WriteString(": ")
	}
	b.WriteString(v.Message)
	return b.String()
}

// DocumentError lists every problem found in one document.
type DocumentError struct {
	File   string
	Issues []ValidationError
}

func (e *DocumentError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return strings.Join(msgs, "; ")
}
