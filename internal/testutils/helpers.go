package testutils

import (
	"testing"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// NewExperience builds an experience whose step groups hold the given number of pages.
// NewExperience(1, 2) yields two steps: the first with one page, the second with two.
func NewExperience(pages ...int) *domain.Experience {
	exp := &domain.Experience{
		ID:   uuid.New(),
		Name: "Test Experience",
		Type: "mobile",
	}
	for _, n := range pages {
		step := domain.Step{ID: uuid.New(), Type: "group"}
		for i := 0; i < n; i++ {
			step.Children = append(step.Children, domain.StepChild{
				ID:   uuid.New(),
				Type: "modal",
			})
		}
		exp.Steps = append(exp.Steps, step)
	}
	return exp.WithInstance()
}

// StepID returns the id of the step child at idx, failing the test if absent.
func StepID(t *testing.T, exp *domain.Experience, idx domain.StepIndex) uuid.UUID {
	t.Helper()

	child, ok := exp.StepChild(idx)
	require.True(t, ok, "no step child at %s", idx)
	return child.ID
}
