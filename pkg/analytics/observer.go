package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Observer maps machine results to lifecycle events:
//
//	renderingStep (first)      experience_started, step_seen
//	renderingStep              step_seen
//	endingStep (complete)      step_completed
//	endingExperience           experience_completed or experience_dismissed
//	step failure               step_error
//	experience failure         experience_error
//
// Register it as a persistent observer; it never asks to be removed.
type Observer struct {
	sink   ports.EventSink
	ctx    context.Context
	now    func() time.Time
	logger *slog.Logger
}

// Option configures the Observer.
type Option func(*Observer)

// WithLogger sets a structured logger for sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		o.logger = logger
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Observer) {
		o.now = now
	}
}

// WithContext sets the context passed to the sink.
func WithContext(ctx context.Context) Option {
	return func(o *Observer) {
		o.ctx = ctx
	}
}

// NewObserver creates an observer that reports to sink.
func NewObserver(sink ports.EventSink, opts ...Option) *Observer {
	o := &Observer{
		sink:   sink,
		ctx:    context.Background(),
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Evaluate tracks the events for result. It always returns false.
func (o *Observer) Evaluate(result domain.Result) bool {
	for _, event := range o.Events(result) {
		if err := o.sink.Track(o.ctx, event); err != nil {
			o.logger.Warn("failed to track lifecycle event", "event", event.Name, "err", err)
		}
	}
	return false
}

// Events computes the lifecycle events for result without tracking them.
func (o *Observer) Events(result domain.Result) []domain.LifecycleEvent {
	if result.Failed() {
		return o.failureEvents(result.Err)
	}

	s := result.State
	switch s.Kind {
	case domain.StateRenderingStep:
		var out []domain.LifecycleEvent
		if s.IsFirst {
			out = append(out, o.event(domain.EventExperienceStarted, s.Experience, nil, ""))
		}
		return append(out, o.event(domain.EventStepSeen, s.Experience, &s.StepIndex, ""))

	case domain.StateEndingStep:
		if s.MarkComplete {
			return []domain.LifecycleEvent{o.event(domain.EventStepCompleted, s.Experience, &s.StepIndex, "")}
		}

	case domain.StateEndingExperience:
		if s.MarkComplete {
			return []domain.LifecycleEvent{o.event(domain.EventExperienceCompleted, s.Experience, nil, "")}
		}
		return []domain.LifecycleEvent{o.event(domain.EventExperienceDismissed, s.Experience, &s.StepIndex, "")}
	}
	return nil
}

func (o *Observer) failureEvents(err *domain.ExperienceError) []domain.LifecycleEvent {
	if err.Experience == nil {
		return nil
	}
	switch err.Kind {
	case domain.ErrorStep:
		return []domain.LifecycleEvent{o.event(domain.EventStepError, err.Experience, &err.StepIndex, err.Message)}
	case domain.ErrorExperience:
		return []domain.LifecycleEvent{o.event(domain.EventExperienceError, err.Experience, nil, err.Message)}
	}
	// Illegal transitions and ignored starts are caller concerns.
	return nil
}

func (o *Observer) event(name domain.EventName, exp *domain.Experience, idx *domain.StepIndex, message string) domain.LifecycleEvent {
	ev := domain.LifecycleEvent{
		Name:           name,
		Timestamp:      o.now(),
		ExperienceID:   exp.ID,
		ExperienceName: exp.Name,
		InstanceID:     exp.InstanceID,
		Message:        message,
	}
	if idx != nil {
		ev.StepIndex = idx.String()
		if child, ok := exp.StepChild(*idx); ok {
			id := child.ID
			ev.StepID = &id
		}
	}
	return ev
}
