package analytics

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink logs events at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger, level: slog.LevelInfo}
}

func (s *LogSink) Track(ctx context.Context, e domain.LifecycleEvent) error {
	attrs := []any{
		"experience_id", e.ExperienceID,
		"experience_name", e.ExperienceName,
		"instance_id", e.InstanceID,
	}
	if e.StepIndex != "" {
		attrs = append(attrs, "step_index", e.StepIndex)
	}
	if e.StepID != nil {
		attrs = append(attrs, "step_id", *e.StepID)
	}
	if e.Message != "" {
		attrs = append(attrs, "message", e.Message)
	}
	s.logger.Log(ctx, s.level, string(e.Name), attrs...)
	return nil
}

// MetricsSink counts events with prometheus.
type MetricsSink struct {
	events *prometheus.CounterVec
	errors *prometheus.CounterVec
}

// NewMetricsSink creates the collectors and registers them with reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	s := &MetricsSink{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waypoint_lifecycle_events_total",
				Help: "Total number of experience lifecycle events",
			},
			[]string{"event"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waypoint_experience_errors_total",
				Help: "Total number of experience and step errors by experience",
			},
			[]string{"experience_id", "event"},
		),
	}
	for _, c := range []prometheus.Collector{s.events, s.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *MetricsSink) Track(_ context.Context, e domain.LifecycleEvent) error {
	s.events.WithLabelValues(string(e.Name)).Inc()
	if e.Name == domain.EventStepError || e.Name == domain.EventExperienceError {
		s.errors.WithLabelValues(e.ExperienceID.String(), string(e.Name)).Inc()
	}
	return nil
}

// MultiSink fans events out to several sinks. Every sink is tried; the
// failures are joined.
type MultiSink []ports.EventSink

func (m MultiSink) Track(ctx context.Context, e domain.LifecycleEvent) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Track(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Collectors exposes the underlying counters.
func (s *MetricsSink) Collectors() (events, errors *prometheus.CounterVec) {
	return s.events, s.errors
}
