/*
Package domain contains the value types shared by every Waypoint component.

It is kept free of I/O: experiences, step addressing, machine states and
actions, observer results, and the lifecycle event vocabulary.

# Key Entities

  - Experience: an immutable, server-authored flow made of Steps (groups of pages).
  - StepIndex / StepReference: concrete and symbolic step addresses.
  - State / MachineAction: the state machine's closed vocabularies.
  - Package / Container: the opaque presentable unit produced by a composer.
  - LifecycleEvent: the analytics record emitted by the analytics observer.
*/
package domain
