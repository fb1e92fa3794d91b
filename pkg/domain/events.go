package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventName is the fixed lifecycle vocabulary reported to analytics sinks.
type EventName string

const (
	EventExperienceStarted   EventName = "experience_started"
	EventStepSeen            EventName = "step_seen"
	EventStepCompleted       EventName = "step_completed"
	EventStepError           EventName = "step_error"
	EventExperienceCompleted EventName = "experience_completed"
	EventExperienceDismissed EventName = "experience_dismissed"
	EventExperienceError     EventName = "experience_error"
)

// LifecycleEvent is a single analytics record.
type LifecycleEvent struct {
	Name           EventName  `json:"name"`
	Timestamp      time.Time  `json:"timestamp"`
	ExperienceID   uuid.UUID  `json:"experienceId"`
	ExperienceName string     `json:"experienceName"`
	InstanceID     uuid.UUID  `json:"experienceInstanceId"`
	StepID         *uuid.UUID `json:"stepId,omitempty"`
	StepIndex      string     `json:"stepIndex,omitempty"`
	Message        string     `json:"message,omitempty"`
}
