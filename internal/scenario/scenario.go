// Package scenario runs scripted sequences of store operations from YAML.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/strata/internal/manifest"
)

// ErrExpectation is returned when an expect step does not match.
var ErrExpectation = errors.New("expectation failed")

// ErrInvalidStep is returned for a step that names no operation or more
// than one.
var ErrInvalidStep = errors.New("invalid step")

// Scenario is an ordered list of steps.
type Scenario struct {
	Steps []Step `yaml:"steps"`
}

// Step is one operation. Exactly one of Commit, Dispatch, Register,
// Unregister, Replace, Snapshot or Expect/Getters is set.
type Step struct {
	Commit   string `yaml:"commit"`
	Dispatch string `yaml:"dispatch"`
	Payload  any    `yaml:"payload"`

	Register   []string           `yaml:"register"`
	Module     *manifest.Manifest `yaml:"module"`
	Unregister []string           `yaml:"unregister"`

	Replace  map[string]any `yaml:"replace"`
	Snapshot string         `yaml:"snapshot"`

	// Expect maps dotted state paths ("todos.items.0.done") to values.
	Expect map[string]any `yaml:"expect"`
	// Getters maps global getter names to expected values.
	Getters map[string]any `yaml:"getters"`
}

// Step kinds.
const (
	KindCommit     = "commit"
	KindDispatch   = "dispatch"
	KindRegister   = "register"
	KindUnregister = "unregister"
	KindReplace    = "replace"
	KindSnapshot   = "snapshot"
	KindExpect     = "expect"
)

// Kind returns which operation the step performs.
func (s Step) Kind() (string, error) {
	var kinds []string
	if s.Commit != "" {
		kinds = append(kinds, KindCommit)
	}
	if s.Dispatch != "" {
		kinds = append(kinds, KindDispatch)
	}
	if len(s.Register) > 0 {
		kinds = append(kinds, KindRegister)
	}
	if len(s.Unregister) > 0 {
		kinds = append(kinds, KindUnregister)
	}
	if s.Replace != nil {
		kinds = append(kinds, KindReplace)
	}
	if s.Snapshot != "" {
		kinds = append(kinds, KindSnapshot)
	}
	if s.Expect != nil || s.Getters != nil {
		kinds = append(kinds, KindExpect)
	}

	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("%w: no operation", ErrInvalidStep)
	case 1:
		if kinds[0] == KindRegister && s.Module == nil {
			return "", fmt.Errorf("%w: register needs a module", ErrInvalidStep)
		}
		return kinds[0], nil
	default:
		return "", fmt.Errorf("%w: several operations %v", ErrInvalidStep, kinds)
	}
}

// Parse decodes a scenario and checks every step has exactly one operation.
func Parse(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	for i, step := range sc.Steps {
		if _, err := step.Kind(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &sc, nil
}

// Load reads and parses the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user-provided scenario
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}
