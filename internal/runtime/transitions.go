package runtime

import (
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
)

// transition is the outcome of the transition function: an optional next
// state and at most one side effect.
type transition struct {
	next   *domain.State
	effect *sideEffect
}

func to(s domain.State) *domain.State { return &s }

// route is the transition table. ok=false means the (state, action) pair is unmatched.
func (m *Machine) route(action domain.MachineAction) (transition, bool) {
	s := m.state

	// Rows that apply to every state.
	switch action.Kind {
	case domain.ActionReportError:
		if action.Err == nil {
			return transition{}, false
		}
		if action.Fatal {
			return transition{effect: errorEffect(action.Err, true, m.presentedPackage())}, true
		}
		return transition{effect: errorEffect(action.Err, false, nil)}, true
	case domain.ActionStartExperience:
		if s.Kind != domain.StateIdling {
			return transition{effect: errorEffect(domain.AlreadyActiveError(action.Experience), false, nil)}, true
		}
	}

	switch s.Kind {
	case domain.StateIdling:
		if action.Kind == domain.ActionStartExperience && action.Experience != nil {
			return m.fromIdling(action.Experience), true
		}

	case domain.StateBeginningExperience:
		if action.Kind == domain.ActionStartStep {
			return m.beginStep(s.Experience, domain.InitialStepIndex, action.Reference, true), true
		}

	case domain.StateBeginningStep:
		if action.Kind == domain.ActionRenderStep {
			return transition{next: to(domain.RenderingStep(s.Experience, s.StepIndex, s.Package, s.IsFirst))}, true
		}

	case domain.StateRenderingStep:
		switch action.Kind {
		case domain.ActionStartStep:
			return m.fromRenderingToStep(s, action.Reference), true
		case domain.ActionEndExperience:
			return transition{
				next:   to(domain.EndingStep(s.Experience, s.StepIndex, s.Package, action.MarkComplete)),
				effect: continuation(domain.EndExperience(action.MarkComplete)),
			}, true
		}

	case domain.StateEndingStep:
		switch action.Kind {
		case domain.ActionEndExperience:
			return transition{
				next:   to(domain.EndingExperience(s.Experience, s.StepIndex, action.MarkComplete)),
				effect: dismissEffect(s.Package, domain.Reset()),
			}, true
		case domain.ActionStartStep:
			return m.beginStep(s.Experience, s.StepIndex, action.Reference, false), true
		}

	case domain.StateEndingExperience:
		if action.Kind == domain.ActionReset {
			return transition{next: to(domain.Idling())}, true
		}
	}

	return transition{}, false
}

func (m *Machine) fromIdling(exp *domain.Experience) transition {
	if exp.StepCount() == 0 {
		return transition{effect: errorEffect(domain.NewExperienceError(exp, "Experience has 0 steps"), false, nil)}
	}
	return transition{
		next:   to(domain.BeginningExperience(exp)),
		effect: continuation(domain.StartStep(domain.IndexRef(0))),
	}
}

// beginStep resolves ref, composes the package and moves to beginningStep.
// Composition failures are terminal for the attempt.
func (m *Machine) beginStep(exp *domain.Experience, current domain.StepIndex, ref domain.StepReference, isFirst bool) transition {
	idx, ok := ref.Resolve(exp, current)
	if !ok {
		return transition{effect: errorEffect(domain.NewStepError(exp, current, fmt.Sprintf("Step at %s does not exist", ref)), true, nil)}
	}

	pkg, err := m.composer.Compose(exp, idx)
	if err != nil {
		return transition{effect: errorEffect(domain.NewStepError(exp, idx, err.Error()), true, nil)}
	}

	return transition{
		next:   to(domain.BeginningStep(exp, idx, pkg, isFirst)),
		effect: presentEffect(exp, idx, pkg, isFirst),
	}
}

// fromRenderingToStep leaves the current step. A target that lives in the
// current package is reached by navigating the container; anything else
// dismisses it and begins the target afresh.
func (m *Machine) fromRenderingToStep(s domain.State, ref domain.StepReference) transition {
	idx, ok := ref.Resolve(s.Experience, s.StepIndex)
	if !ok {
		return transition{effect: errorEffect(domain.NewStepError(s.Experience, s.StepIndex, fmt.Sprintf("Step at %s does not exist", ref)), false, nil)}
	}
	if idx == s.StepIndex {
		return transition{}
	}

	next := to(domain.EndingStep(s.Experience, s.StepIndex, s.Package, true))
	if s.Package.Holds(idx) {
		return transition{next: next, effect: navigateEffect(s.Package, idx.Item)}
	}
	return transition{next: next, effect: dismissEffect(s.Package, domain.StartStep(ref))}
}

// presentedPackage is the package currently on screen, if any.
func (m *Machine) presentedPackage() *domain.Package {
	if m.state.Kind == domain.StateRenderingStep {
		return m.state.Package
	}
	return nil
}
