package compose

import "errors"

var (
	// ErrUnknownTrait is returned when a step references an unregistered trait type.
	ErrUnknownTrait = errors.New("trait not registered")

	// ErrInvalidTraitConfig is returned when a trait's configuration cannot be decoded or is out of range.
	ErrInvalidTraitConfig = errors.New("invalid trait config")

	// ErrNoPresentingTrait is returned when nothing says how to show a step group.
	ErrNoPresentingTrait = errors.New("no presenting trait")

	// ErrConflictingTraits is returned when more than one presenting trait applies.
	ErrConflictingTraits = errors.New("conflicting presenting traits")
)
