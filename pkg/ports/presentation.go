package ports

import "github.com/aretw0/waypoint/pkg/domain"

// SurfaceProvider resolves where a container should be presented.
// A nil surface with ok=false means the host has nothing on screen.
type SurfaceProvider interface {
	CurrentSurface() (domain.Surface, bool)
}

// SurfaceFunc adapts a plain function to SurfaceProvider.
type SurfaceFunc func() (domain.Surface, bool)

// CurrentSurface calls f.
func (f SurfaceFunc) CurrentSurface() (domain.Surface, bool) { return f() }

// Delegate is the host's view into experience presentation.
type Delegate interface {
	// CanDisplay may veto an experience before its first step is shown.
	CanDisplay(exp *domain.Experience) bool
	WillShow(exp *domain.Experience)
	DidShow(exp *domain.Experience)
	WillDismiss(exp *domain.Experience)
	DidDismiss(exp *domain.Experience)
}

// NopDelegate allows every experience and ignores notifications.
type NopDelegate struct{}

func (NopDelegate) CanDisplay(*domain.Experience) bool { return true }
func (NopDelegate) WillShow(*domain.Experience)        {}
func (NopDelegate) DidShow(*domain.Experience)         {}
func (NopDelegate) WillDismiss(*domain.Experience)     {}
func (NopDelegate) DidDismiss(*domain.Experience)      {}

// Executor runs fn on the execution context the state machine is confined to.
type Executor interface {
	Do(fn func())
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(fn func())

// Do calls f.
func (f ExecutorFunc) Do(fn func()) { f(fn) }

// Inline runs work on the calling goroutine. Suitable when the caller is
// already on the machine's context (tests, headless runs).
var Inline Executor = ExecutorFunc(func(fn func()) { fn() })

// ContainerEvents is how a container reports its own lifecycle back to the
// state machine. Implementations must not block.
type ContainerEvents interface {
	WillAppear()
	DidAppear()
	WillDisappear()
	DidDisappear()
	Navigated(from, to int)
}

// NopContainerEvents drops every notification.
type NopContainerEvents struct{}

func (NopContainerEvents) WillAppear()        {}
func (NopContainerEvents) DidAppear()         {}
func (NopContainerEvents) WillDisappear()     {}
func (NopContainerEvents) DidDisappear()      {}
func (NopContainerEvents) Navigated(int, int) {}
