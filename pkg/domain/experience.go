package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Trait is a configuration-driven presentation behavior (modal style, skippability...).
// Config is decoded by the composer that knows the trait type.
type Trait struct {
	Type   string         `json:"type" yaml:"type" mapstructure:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`
}

// Action is an authored interaction attached to a step child (e.g. "continue" on button tap).
type Action struct {
	On     string         `json:"on" yaml:"on" mapstructure:"on"`
	Type   string         `json:"type" yaml:"type" mapstructure:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`
}

// StepChild is a single page within a step group.
type StepChild struct {
	ID      uuid.UUID      `json:"id" yaml:"id"`
	Type    string         `json:"type" yaml:"type"`
	Content map[string]any `json:"content,omitempty" yaml:"content,omitempty"`
	Traits  []Trait        `json:"traits,omitempty" yaml:"traits,omitempty"`
	Actions []Action       `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Step is a group of one or more pages presented in the same container.
type Step struct {
	ID       uuid.UUID   `json:"id" yaml:"id"`
	Type     string      `json:"type,omitempty" yaml:"type,omitempty"`
	Traits   []Trait     `json:"traits,omitempty" yaml:"traits,omitempty"`
	Children []StepChild `json:"children" yaml:"children"`
}

// Experience is a server-authored multi-step flow definition.
// It is created once per server response and never mutated afterwards.
type Experience struct {
	ID        uuid.UUID      `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Type      string         `json:"type,omitempty" yaml:"type,omitempty"`
	Published bool           `json:"published" yaml:"published"`
	Traits    []Trait        `json:"traits,omitempty" yaml:"traits,omitempty"`
	Steps     []Step         `json:"steps" yaml:"steps"`
	Context   map[string]any `json:"context,omitempty" yaml:"context,omitempty"`

	// InstanceID identifies this particular presentation attempt.
	// Two loads of the same experience get different instance ids.
	InstanceID uuid.UUID `json:"-" yaml:"-"`
}

// StepIndex addresses a step child: Group is the step offset, Item the page within it.
type StepIndex struct {
	Group int `json:"group"`
	Item  int `json:"item"`
}

// InitialStepIndex is the first page of the first step.
var InitialStepIndex = StepIndex{}

func (i StepIndex) String() string {
	return fmt.Sprintf("%d-%d", i.Group, i.Item)
}

// StepIndices returns every addressable step child in presentation order.
func (e *Experience) StepIndices() []StepIndex {
	indices := make([]StepIndex, 0, len(e.Steps))
	for g, step := range e.Steps {
		for i := range step.Children {
			indices = append(indices, StepIndex{Group: g, Item: i})
		}
	}
	return indices
}

// StepCount is the number of flattened step children.
func (e *Experience) StepCount() int {
	n := 0
	for _, step := range e.Steps {
		n += len(step.Children)
	}
	return n
}

// Step returns the group addressed by idx.
func (e *Experience) Step(idx StepIndex) (*Step, bool) {
	if idx.Group < 0 || idx.Group >= len(e.Steps) {
		return nil, false
	}
	return &e.Steps[idx.Group], true
}

// StepChild returns the page addressed by idx.
func (e *Experience) StepChild(idx StepIndex) (*StepChild, bool) {
	step, ok := e.Step(idx)
	if !ok || idx.Item < 0 || idx.Item >= len(step.Children) {
		return nil, false
	}
	return &step.Children[idx.Item], true
}

// FlatOffset returns the position of idx within StepIndices, or -1.
func (e *Experience) FlatOffset(idx StepIndex) int {
	for i, candidate := range e.StepIndices() {
		if candidate == idx {
			return i
		}
	}
	return -1
}

// Contains reports whether idx is a valid address within the experience.
func (e *Experience) Contains(idx StepIndex) bool {
	_, ok := e.StepChild(idx)
	return ok
}

// Validate checks structural integrity. An experience without steps is valid
// here; the state machine reports it when presentation is attempted.
func (e *Experience) Validate() error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidExperience)
	}
	for g, step := range e.Steps {
		if len(step.Children) == 0 {
			return fmt.Errorf("%w: step %d has no children", ErrInvalidExperience, g)
		}
	}
	return nil
}

// WithInstance returns a shallow copy tagged with a fresh instance id.
func (e Experience) WithInstance() *Experience {
	e.InstanceID = uuid.New()
	return &e
}

// DecodeExperience parses a JSON experience document and validates it.
func DecodeExperience(data []byte) (*Experience, error) {
	var exp Experience
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("failed to decode experience: %w", err)
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}

// DecodeExperienceYAML parses a YAML fixture and validates it.
func DecodeExperienceYAML(data []byte) (*Experience, error) {
	var exp Experience
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("failed to decode experience yaml: %w", err)
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}
