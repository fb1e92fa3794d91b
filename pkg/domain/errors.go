package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidExperience is returned when an experience document is structurally broken.
var ErrInvalidExperience = errors.New("invalid experience")

// ErrNoTransition is returned to the immediate caller when an action is illegal in the current state.
var ErrNoTransition = errors.New("no transition")

// ErrExperienceNotFound is returned by sources when an experience id is unknown.
var ErrExperienceNotFound = errors.New("experience not found")

// ErrorKind classifies failures delivered to observers.
type ErrorKind string

const (
	ErrorNoTransition            ErrorKind = "no_transition"
	ErrorExperienceAlreadyActive ErrorKind = "experience_already_active"
	ErrorExperience              ErrorKind = "experience"
	ErrorStep                    ErrorKind = "step"
)

// ExperienceError is the failure value broadcast to state observers.
type ExperienceError struct {
	Kind ErrorKind

	// Experience is the affected experience. For ErrorExperienceAlreadyActive
	// it is the ignored one, not the active one.
	Experience *Experience

	// StepIndex is set for ErrorStep.
	StepIndex StepIndex

	// State is the machine state at the time of an ErrorNoTransition.
	State State

	Message string
}

func (e *ExperienceError) Error() string {
	switch e.Kind {
	case ErrorNoTransition:
		return fmt.Sprintf("no transition from %s", e.State.Name())
	case ErrorExperienceAlreadyActive:
		return "experience already active"
	case ErrorStep:
		return fmt.Sprintf("step %s: %s", e.StepIndex, e.Message)
	default:
		return e.Message
	}
}

// Is lets callers match on ErrNoTransition for no-transition failures.
func (e *ExperienceError) Is(target error) bool {
	return target == ErrNoTransition && e.Kind == ErrorNoTransition
}

// NoTransitionError builds the failure for an illegal action.
func NoTransitionError(state State) *ExperienceError {
	return &ExperienceError{Kind: ErrorNoTransition, State: state}
}

// AlreadyActiveError builds the failure for a start request while another experience runs.
func AlreadyActiveError(ignored *Experience) *ExperienceError {
	return &ExperienceError{Kind: ErrorExperienceAlreadyActive, Experience: ignored}
}

// NewExperienceError builds an experience-level failure.
func NewExperienceError(exp *Experience, message string) *ExperienceError {
	return &ExperienceError{Kind: ErrorExperience, Experience: exp, Message: message}
}

// NewStepError builds a step-level failure.
func NewStepError(exp *Experience, idx StepIndex, message string) *ExperienceError {
	return &ExperienceError{Kind: ErrorStep, Experience: exp, StepIndex: idx, Message: message}
}
