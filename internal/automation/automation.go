package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/jointsim/internal/config"
	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/experiment"
	"github.com/san-kum/jointsim/internal/sim"
)

// Script is a scripted sequence of runs loaded from YAML:
//
//	name: correction-comparison
//	steps:
//	  - scenario: chain
//	    preset: long
//	  - scenario: chain
//	    preset: long
//	    config:
//	      solver:
//	        correction: post_stabilization
type Script struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step is a single run. Config is decoded over the preset (or the defaults),
// so it only needs the fields it changes.
type Step struct {
	Name     string    `yaml:"name"`
	Scenario string    `yaml:"scenario"`
	Preset   string    `yaml:"preset"`
	Config   yaml.Node `yaml:"config"`
}

// StepResult pairs the resolved config of a step with its outcome.
type StepResult struct {
	Step   Step
	Config *config.Config
	Result *sim.Result
}

func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScript(data)
}

func ParseScript(data []byte) (*Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("%w: %w", dynamo.ErrInvalidConfig, err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("%w: script %q has no steps", dynamo.ErrInvalidConfig, script.Name)
	}
	for i := range script.Steps {
		if _, err := script.Steps[i].Resolve(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &script, nil
}

// Resolve builds the config a step runs with.
func (s *Step) Resolve() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		cfg = config.GetPreset(s.Scenario, s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("%w: unknown preset %s/%s", dynamo.ErrInvalidConfig, s.Scenario, s.Preset)
		}
	}
	if s.Config.Kind != 0 {
		if err := s.Config.Decode(cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", dynamo.ErrInvalidConfig, err)
		}
	}
	if s.Scenario != "" {
		cfg.Scenario = s.Scenario
	}
	return cfg, cfg.Validate()
}

// Label names the step for logs and tables.
func (s *Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Preset != "" {
		return s.Scenario + "/" + s.Preset
	}
	return s.Scenario
}

// RunScript executes every step in order. onResult, if set, sees each finished
// step, e.g. to store it. The first failing step stops the script.
func RunScript(ctx context.Context, script *Script, reg *experiment.Registry, logger *slog.Logger, onResult func(StepResult) error, opts ...experiment.Option) ([]StepResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	results := make([]StepResult, 0, len(script.Steps))

	for i, step := range script.Steps {
		logger.Info("running step", "script", script.Name, "step", i+1, "of", len(script.Steps), "label", step.Label())

		cfg, err := step.Resolve()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		exp, err := experiment.New(reg, cfg, append([]experiment.Option{experiment.WithLogger(logger)}, opts...)...)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Step: step, Config: cfg, Result: result}
		results = append(results, sr)
		if onResult != nil {
			if err := onResult(sr); err != nil {
				return results, fmt.Errorf("step %d: %w", i+1, err)
			}
		}
	}
	return results, nil
}
