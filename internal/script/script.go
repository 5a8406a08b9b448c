// Package script runs YAML exchange scripts against a serial session.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"serial-link/internal/utils"
	"serial-link/pkg/line"
)

// Script is an ordered list of exchanges
type Script struct {
	Separator string `yaml:"separator"`
	Steps     []Step `yaml:"steps"`
}

// Step sends either explicit segments or data split with the session's
// receive buffer policy
type Step struct {
	Name     string   `yaml:"name"`
	Segments []string `yaml:"segments"`
	Data     *string  `yaml:"data"`
}

// Load reads and validates a script file
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a script. Unknown keys are rejected.
func Parse(r io.Reader) (*Script, error) {
	var s Script
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("script is empty")
		}
		return nil, fmt.Errorf("failed to decode script: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that the script has steps and each step has exactly one
// payload
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("script has no steps")
	}
	for i, step := range s.Steps {
		hasSegments := len(step.Segments) > 0
		hasData := step.Data != nil
		switch {
		case hasSegments && hasData:
			return fmt.Errorf("step %d (%s): segments and data are mutually exclusive", i, step.Name)
		case !hasSegments && !hasData:
			return fmt.Errorf("step %d (%s): either segments or data is required", i, step.Name)
		}
	}
	return nil
}

// Exchanger is the part of a session a script needs
type Exchanger interface {
	WriteSegmentsAndRead(ctx context.Context, segments [][]byte) ([]byte, error)
	BufferPolicy() line.BufferPolicy
	Separator() string
}

// StepResult is the outcome of one step
type StepResult struct {
	Name     string        `json:"name"`
	Segments []string      `json:"segments"`
	Response []byte        `json:"response"`
	Duration time.Duration `json:"duration"`
}

// StepError reports the step a script stopped at
type StepError struct {
	Index int
	Name  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner executes scripts
type Runner struct {
	exchanger Exchanger
	logger    *zap.Logger
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(exchanger Exchanger, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{exchanger: exchanger, logger: logger}
}

// Run executes every step in order and stops at the first failure. The
// results of the steps completed so far are returned with the error.
func (r *Runner) Run(ctx context.Context, s *Script) ([]*StepResult, error) {
	operation := utils.NewOperationLogger(r.logger, "script", uuid.New().String())
	operation.Start(zap.Int("steps", len(s.Steps)))

	separator := s.Separator
	if separator == "" {
		separator = r.exchanger.Separator()
	}

	results := make([]*StepResult, 0, len(s.Steps))
	for i, step := range s.Steps {
		result, err := r.runStep(ctx, step, separator)
		if err != nil {
			err = &StepError{Index: i, Name: step.Name, Err: err}
			operation.Error(err, zap.Int("completed_steps", len(results)))
			return results, err
		}
		results = append(results, result)

		operation.Progress("Script step completed", float64(i+1)/float64(len(s.Steps)),
			zap.String("step", step.Name),
			zap.Int("bytes_received", len(result.Response)),
		)
	}

	operation.Success(zap.Int("completed_steps", len(results)))
	return results, nil
}

func (r *Runner) runStep(ctx context.Context, step Step, separator string) (*StepResult, error) {
	segments := step.Segments
	if step.Data != nil {
		var err error
		segments, err = r.exchanger.BufferPolicy().Split(*step.Data, separator)
		if err != nil {
			return nil, err
		}
	}

	raw := make([][]byte, len(segments))
	for i, segment := range segments {
		raw[i] = []byte(segment)
	}

	start := time.Now()
	response, err := r.exchanger.WriteSegmentsAndRead(ctx, raw)
	if err != nil {
		return nil, err
	}

	return &StepResult{
		Name:     step.Name,
		Segments: segments,
		Response: bytes.Clone(response),
		Duration: time.Since(start),
	}, nil
}
