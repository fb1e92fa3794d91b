package ports

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
)

// EventSink accepts lifecycle events. Decoration and batching are the sink's concern.
type EventSink interface {
	Track(ctx context.Context, event domain.LifecycleEvent) error
}
