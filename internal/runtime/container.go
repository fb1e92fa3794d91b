package runtime

import "github.com/aretw0/waypoint/pkg/domain"

// The Container* callbacks are how the platform layer confirms back to the
// machine that an animation, dismissal or page change actually happened.
// They read and set state directly rather than going through the table.

// ContainerWillAppear is called before the container animates in.
func (m *Machine) ContainerWillAppear() {
	if m.state.Kind == domain.StateBeginningStep && m.state.IsFirst {
		m.delegate.WillShow(m.state.Experience)
	}
}

// ContainerDidAppear is called once the container is on screen.
func (m *Machine) ContainerDidAppear() {
	switch m.state.Kind {
	case domain.StateBeginningStep, domain.StateRenderingStep:
		if m.state.IsFirst {
			m.delegate.DidShow(m.state.Experience)
		}
	}
}

// ContainerWillDisappear is called before the container animates out.
func (m *Machine) ContainerWillDisappear() {
	if m.state.Kind == domain.StateEndingExperience || m.state.Kind == domain.StateRenderingStep {
		m.delegate.WillDismiss(m.state.Experience)
	}
}

// ContainerDidDisappear is called once the container is gone. If the machine
// still believes the step is rendering, the user dismissed it by a gesture the
// machine did not initiate, so the experience is ended as dismissed.
func (m *Machine) ContainerDidDisappear() {
	switch m.state.Kind {
	case domain.StateRenderingStep:
		exp := m.state.Experience
		if err := m.Transition(domain.EndExperience(false)); err != nil {
			m.logger.Warn("failed to end experience after external dismissal", "err", err)
		}
		m.delegate.DidDismiss(exp)
	case domain.StateEndingExperience:
		m.delegate.DidDismiss(m.state.Experience)
	}
}

// ContainerNavigated is called when the visible page changes, either because
// the machine asked for it (endingStep) or because the user swiped (renderingStep).
func (m *Machine) ContainerNavigated(from, to int) {
	s := m.state
	if s.Package == nil || from == to {
		return
	}
	target := domain.StepIndex{Group: s.StepIndex.Group, Item: to}
	if !s.Package.Holds(target) {
		m.logger.Warn("navigated to a page outside the package", "from", from, "to", to)
		return
	}

	switch s.Kind {
	case domain.StateRenderingStep:
		m.setState(domain.EndingStep(s.Experience, s.StepIndex, s.Package, true))
		fallthrough
	case domain.StateEndingStep:
		m.setState(domain.BeginningStep(s.Experience, target, s.Package, false))
		m.setState(domain.RenderingStep(s.Experience, target, s.Package, false))
	}
}
