package testutils

import (
	"errors"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/google/uuid"
)

// Container is a recording domain.Container for tests.
// Presentation completes synchronously; dismissal completes synchronously
// unless HoldDismiss is set, in which case CompleteDismiss must be called.
type Container struct {
	mu sync.Mutex

	PresentErr  error
	HoldDismiss bool

	// OnNavigate, when set, is called after a Navigate is recorded.
	// Tests use it to emulate the container reporting the page change.
	OnNavigate func(from, to int)

	Presents   int
	Dismisses  int
	Navigates  []int
	page       int
	pendingEnd []func()
}

func (c *Container) Present(surface domain.Surface, done func()) error {
	c.mu.Lock()
	if c.PresentErr != nil {
		c.mu.Unlock()
		return c.PresentErr
	}
	c.Presents++
	c.mu.Unlock()
	done()
	return nil
}

func (c *Container) Dismiss(done func()) {
	c.mu.Lock()
	c.Dismisses++
	if c.HoldDismiss {
		c.pendingEnd = append(c.pendingEnd, done)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	done()
}

func (c *Container) Navigate(page int) {
	c.mu.Lock()
	from := c.page
	c.page = page
	c.Navigates = append(c.Navigates, page)
	cb := c.OnNavigate
	c.mu.Unlock()
	if cb != nil {
		cb(from, page)
	}
}

// CompleteDismiss runs every held dismissal completion.
func (c *Container) CompleteDismiss() {
	c.mu.Lock()
	pending := c.pendingEnd
	c.pendingEnd = nil
	c.mu.Unlock()
	for _, done := range pending {
		done()
	}
}

// PendingDismissals is the number of held dismissal completions.
func (c *Container) PendingDismissals() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pendingEnd)
}

// ErrCompose is returned by a Composer configured to fail.
var ErrCompose = errors.New("unsatisfiable trait configuration")

// Composer builds a package per step group backed by recording containers.
type Composer struct {
	// FailAt makes composition fail for this group index (-1 disables).
	FailAt int
	// Configure, when set, customizes each new container.
	Configure func(*Container)

	Composed   []domain.StepIndex
	Containers []*Container
}

// NewComposer returns a composer that never fails.
func NewComposer() *Composer {
	return &Composer{FailAt: -1}
}

func (c *Composer) Compose(exp *domain.Experience, idx domain.StepIndex) (*domain.Package, error) {
	if idx.Group == c.FailAt {
		return nil, ErrCompose
	}
	step, ok := exp.Step(idx)
	if !ok {
		return nil, errors.New("no such step")
	}
	container := &Container{page: idx.Item}
	if c.Configure != nil {
		c.Configure(container)
	}
	ids := make([]uuid.UUID, 0, len(step.Children))
	for _, child := range step.Children {
		ids = append(ids, child.ID)
	}
	c.Composed = append(c.Composed, idx)
	c.Containers = append(c.Containers, container)
	return &domain.Package{Container: container, Group: idx.Group, StepIDs: ids, Traits: step.Traits}, nil
}

// Last returns the most recently composed container.
func (c *Composer) Last() *Container {
	if len(c.Containers) == 0 {
		return nil
	}
	return c.Containers[len(c.Containers)-1]
}
