package runtime

import (
	"github.com/aretw0/waypoint/pkg/domain"
)

type effectKind int

const (
	effectContinuation effectKind = iota
	effectPresentContainer
	effectNavigateInContainer
	effectDismissContainer
	effectError
)

// sideEffect is the single required consequence of a transition.
type sideEffect struct {
	kind effectKind

	action domain.MachineAction // continuation, or what to run after a dismissal

	experience *domain.Experience
	stepIndex  domain.StepIndex
	pkg        *domain.Package
	isFirst    bool
	page       int

	err   *domain.ExperienceError
	reset bool
}

func continuation(action domain.MachineAction) *sideEffect {
	return &sideEffect{kind: effectContinuation, action: action}
}

func presentEffect(exp *domain.Experience, idx domain.StepIndex, pkg *domain.Package, isFirst bool) *sideEffect {
	return &sideEffect{kind: effectPresentContainer, experience: exp, stepIndex: idx, pkg: pkg, isFirst: isFirst}
}

func navigateEffect(pkg *domain.Package, page int) *sideEffect {
	return &sideEffect{kind: effectNavigateInContainer, pkg: pkg, page: page}
}

func dismissEffect(pkg *domain.Package, then domain.MachineAction) *sideEffect {
	return &sideEffect{kind: effectDismissContainer, pkg: pkg, action: then}
}

// errorEffect reports err to observers. With reset the machine returns to
// idling afterwards, tearing down teardown first if it is on screen.
func errorEffect(err *domain.ExperienceError, reset bool, teardown *domain.Package) *sideEffect {
	return &sideEffect{kind: effectError, err: err, reset: reset, pkg: teardown}
}

func (m *Machine) execute(e sideEffect) error {
	switch e.kind {
	case effectContinuation:
		return m.Transition(e.action)

	case effectPresentContainer:
		m.present(e)
		return nil

	case effectNavigateInContainer:
		e.pkg.Container.Navigate(e.page)
		return nil

	case effectDismissContainer:
		then := e.action
		e.pkg.Container.Dismiss(func() {
			m.executor.Do(func() {
				if err := m.Transition(then); err != nil {
					m.logger.Warn("dismissal continuation rejected", "action", then.String(), "err", err)
				}
			})
		})
		return nil

	case effectError:
		m.logger.Debug("experience error", "kind", string(e.err.Kind), "err", e.err)
		if e.pkg != nil {
			// Its disappear callbacks land after idling. The executor must
			// deliver them in order.
			e.pkg.Container.Dismiss(func() {})
		}
		m.notify(domain.Failure(e.err))
		switch {
		case e.reset:
			m.setState(domain.Idling())
		case m.state.Kind == domain.StateIdling:
			// A rejected start never leaves idling, so nothing else clears
			// the observers attached for it.
			m.clearPersistent()
		}
		return nil
	}
	return nil
}

// present shows the package on the current surface. Every failure is turned
// into a fatal reportError so the attempt ends in idling.
func (m *Machine) present(e sideEffect) {
	fail := func(err *domain.ExperienceError) {
		if terr := m.Transition(domain.ReportError(err, true)); terr != nil {
			m.logger.Error("failed to report presentation error", "err", terr)
		}
	}

	surface, ok := m.surfaces.CurrentSurface()
	if !ok {
		fail(domain.NewExperienceError(e.experience, "No active surface to present on"))
		return
	}

	if e.isFirst && !m.delegate.CanDisplay(e.experience) {
		fail(domain.NewExperienceError(e.experience, "Step blocked by app"))
		return
	}

	err := e.pkg.Container.Present(surface, func() {
		m.executor.Do(func() {
			if err := m.Transition(domain.RenderStep()); err != nil {
				m.logger.Warn("presentation completed outside beginningStep", "state", m.state.Name())
			}
		})
	})
	if err != nil {
		fail(domain.NewStepError(e.experience, e.stepIndex, err.Error()))
	}
}
