/*
Package ports defines the driven ports (interfaces) of the Waypoint core.

These interfaces decouple the state machine from the platform layer, the
network, and analytics backends, so that every component receives its
collaborators at construction time.

# Key Interfaces

  - Composer: builds a presentable Package for a step (implemented by the rendering layer).
  - SurfaceProvider: resolves the host's current top-level UI surface.
  - Delegate: lets the host veto or follow experience presentation.
  - EventSink: receives analytics lifecycle events.
  - ExperienceSource: fetches experience definitions.
  - Executor: the single execution context the state machine is confined to.
*/
package ports
