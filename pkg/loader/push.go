package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Push events understood by PushHandler.
const (
	EventShowExperience    = "show_experience"
	EventRefreshExperience = "refresh_experience"
)

// pushPayload is the body of show/refresh events.
type pushPayload struct {
	ExperienceID string `mapstructure:"experience_id"`
	Published    *bool  `mapstructure:"published"`
}

func decodePush(payload map[string]any) (pushPayload, error) {
	var p pushPayload
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(payload); err != nil {
		return p, fmt.Errorf("invalid push payload: %w", err)
	}
	if p.ExperienceID == "" {
		return p, fmt.Errorf("invalid push payload: missing experience_id")
	}
	return p, nil
}

func (p pushPayload) published() bool {
	return p.Published == nil || *p.Published
}

// PushHandler adapts realtime events into loads. It satisfies realtime.Handler.
type PushHandler struct {
	loader  *Loader
	timeout time.Duration
	logger  *slog.Logger
}

// NewPushHandler wires push events into l. Each load is bounded by timeout.
func NewPushHandler(l *Loader, timeout time.Duration) *PushHandler {
	return &PushHandler{loader: l, timeout: timeout, logger: l.logger}
}

// HandleEvent loads on show_experience, drops the cached copy and reloads on
// refresh_experience, and ignores anything else.
func (h *PushHandler) HandleEvent(event string, payload map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.Handle(ctx, event, payload); err != nil {
		h.logger.Warn("push event failed", "event", event, "err", err)
	}
}

// Handle is HandleEvent with a caller-supplied context and error result.
func (h *PushHandler) Handle(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case EventShowExperience:
		p, err := decodePush(payload)
		if err != nil {
			return err
		}
		return h.loader.Load(ctx, p.ExperienceID, p.published(), TriggerPush)

	case EventRefreshExperience:
		p, err := decodePush(payload)
		if err != nil {
			return err
		}
		if err := h.loader.Invalidate(ctx, p.ExperienceID); err != nil {
			return fmt.Errorf("failed to invalidate %s: %w", p.ExperienceID, err)
		}
		return h.loader.Load(ctx, p.ExperienceID, p.published(), TriggerPush)

	default:
		h.logger.Debug("ignoring push event", "event", event)
		return nil
	}
}
