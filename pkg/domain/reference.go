package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ReferenceKind enumerates the ways a navigation target can be expressed.
type ReferenceKind int

const (
	RefIndex ReferenceKind = iota
	RefOffset
	RefStepID
	RefFirst
	RefLast
)

// StepReference is a symbolic request to navigate.
type StepReference struct {
	Kind   ReferenceKind
	Value  int
	StepID uuid.UUID
}

// IndexRef targets the n-th flattened step child.
func IndexRef(n int) StepReference { return StepReference{Kind: RefIndex, Value: n} }

// OffsetRef targets a step child relative to the current one.
func OffsetRef(d int) StepReference { return StepReference{Kind: RefOffset, Value: d} }

// StepIDRef targets the step child with the given id.
func StepIDRef(id uuid.UUID) StepReference { return StepReference{Kind: RefStepID, StepID: id} }

// FirstRef targets the first step child.
func FirstRef() StepReference { return StepReference{Kind: RefFirst} }

// LastRef targets the last step child.
func LastRef() StepReference { return StepReference{Kind: RefLast} }

func (r StepReference) String() string {
	switch r.Kind {
	case RefOffset:
		return fmt.Sprintf("%+d", r.Value)
	case RefStepID:
		return r.StepID.String()
	case RefFirst:
		return "first"
	case RefLast:
		return "last"
	default:
		return strconv.Itoa(r.Value)
	}
}

// Resolve maps the reference to a concrete index within exp, relative to current.
// It never fails loudly: an unresolvable reference returns false.
func (r StepReference) Resolve(exp *Experience, current StepIndex) (StepIndex, bool) {
	if exp == nil {
		return StepIndex{}, false
	}
	indices := exp.StepIndices()
	at := func(n int) (StepIndex, bool) {
		if n < 0 || n >= len(indices) {
			return StepIndex{}, false
		}
		return indices[n], true
	}

	switch r.Kind {
	case RefIndex:
		return at(r.Value)
	case RefFirst:
		return at(0)
	case RefLast:
		return at(len(indices) - 1)
	case RefOffset:
		offset := -1
		for i, idx := range indices {
			if idx == current {
				offset = i
				break
			}
		}
		if offset < 0 {
			return StepIndex{}, false
		}
		return at(offset + r.Value)
	case RefStepID:
		for _, idx := range indices {
			if child, ok := exp.StepChild(idx); ok && child.ID == r.StepID {
				return idx, true
			}
		}
	}
	return StepIndex{}, false
}

// ParseStepReference reads the textual forms used by push payloads and the CLI:
// "+1"/"-1" are offsets, plain integers are indices, "first"/"last" are literal,
// and anything else must be a step id.
func ParseStepReference(s string) (StepReference, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return StepReference{}, fmt.Errorf("empty step reference")
	case "first":
		return FirstRef(), nil
	case "last":
		return LastRef(), nil
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		d, err := strconv.Atoi(s)
		if err != nil {
			return StepReference{}, fmt.Errorf("invalid step offset %q: %w", s, err)
		}
		return OffsetRef(d), nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return IndexRef(n), nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return StepReference{}, fmt.Errorf("invalid step reference %q", s)
	}
	return StepIDRef(id), nil
}
