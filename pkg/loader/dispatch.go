package loader

import (
	"context"
	"fmt"
)

// Action is a resolved deep link verb.
type Action string

const (
	ActionShow    Action = "show"
	ActionPreview Action = "preview"
)

// Request is a deep link after URL parsing.
type Request struct {
	Action       Action
	ExperienceID string
}

// Dispatch starts the experience a deep link points at. Previews load the
// unpublished draft.
func (l *Loader) Dispatch(ctx context.Context, req Request) error {
	switch req.Action {
	case ActionShow:
		return l.Load(ctx, req.ExperienceID, true, TriggerDeepLink)
	case ActionPreview:
		return l.Load(ctx, req.ExperienceID, false, TriggerPreview)
	default:
		return fmt.Errorf("unsupported deep link action %q", req.Action)
	}
}
