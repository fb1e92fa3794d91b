package runtime_test

import (
	"testing"

	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/internal/testutils"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures every result delivered to a persistent observer.
type recorder struct {
	t       *testing.T
	results []domain.Result
}

func record(t *testing.T, m *runtime.Machine) *recorder {
	r := &recorder{t: t}
	m.AddObserver(runtime.ObserverFunc(func(res domain.Result) bool {
		if !res.Failed() && res.State.HasStep() {
			assert.True(t, res.State.Experience.Contains(res.State.StepIndex),
				"state %s carries unresolvable index %s", res.State.Name(), res.State.StepIndex)
		}
		r.results = append(r.results, res)
		return false
	}))
	return r
}

func (r *recorder) states() []string {
	var names []string
	for _, res := range r.results {
		if !res.Failed() {
			names = append(names, res.State.Name()+"("+res.State.StepIndex.String()+")")
		}
	}
	return names
}

func (r *recorder) errors() []*domain.ExperienceError {
	var errs []*domain.ExperienceError
	for _, res := range r.results {
		if res.Failed() {
			errs = append(errs, res.Err)
		}
	}
	return errs
}

func TestMachine_RoundTrip(t *testing.T) {
	composer := testutils.NewComposer()
	m := runtime.NewMachine(composer)
	rec := record(t, m)
	exp := testutils.NewExperience(1, 1, 1)

	require.NoError(t, m.Transition(domain.StartExperience(exp)))
	assert.Equal(t, domain.StateRenderingStep, m.State().Kind)

	require.NoError(t, m.Transition(domain.EndExperience(true)))

	assert.Equal(t, []string{
		"beginningExperience(0-0)",
		"beginningStep(0-0)",
		"renderingStep(0-0)",
		"endingStep(0-0)",
		"endingExperience(0-0)",
		"idling(0-0)",
	}, rec.states())
	assert.Empty(t, rec.errors())
	require.Len(t, composer.Containers, 1)
	assert.Equal(t, 1, composer.Last().Presents)
	assert.Equal(t, 1, composer.Last().Dismisses)
	assert.Equal(t, domain.StateIdling, m.State().Kind)
	assert.Zero(t, m.ObserverCount(), "persistent observers are released on idling")
}

func TestMachine_AdvanceAcrossGroups(t *testing.T) {
	composer := testutils.NewComposer()
	m := runtime.NewMachine(composer)
	exp := testutils.NewExperience(1, 1, 1)

	require.NoError(t, m.Transition(domain.StartExperience(exp)))
	rec := record(t, m)

	require.NoError(t, m.Transition(domain.StartStep(domain.OffsetRef(1))))

	assert.Equal(t, []string{"endingStep(0-0)", "beginningStep(1-0)", "renderingStep(1-0)"}, rec.states())
	require.Len(t, composer.Containers, 2)
	assert.Equal(t, 1, composer.Containers[0].Dismisses)
	assert.Equal(t, 1, composer.Containers[1].Presents)

	state := m.State()
	assert.False(t, state.IsFirst)
	assert.True(t, rec.results[0].State.MarkComplete, "leaving a step marks it complete")
}

func TestMachine_NavigateWithinPackage(t *testing.T) {
	composer := testutils.NewComposer()
	m := runtime.NewMachine(composer)
	composer.Configure = func(c *testutils.Container) {
		c.OnNavigate = m.ContainerNavigated
	}
	exp := testutils.NewExperience(3)

	require.NoError(t, m.Transition(domain.StartExperience(exp)))
	rec := record(t, m)

	require.NoError(t, m.Transition(domain.StartStep(domain.OffsetRef(1))))

	assert.Equal(t, []string{"endingStep(0-0)", "beginningStep(0-1)", "renderingStep(0-1)"}, rec.states())
	require.Len(t, composer.Containers, 1, "same group must not be recomposed")
	assert.Equal(t, []int{1}, composer.Last().Navigates)
	assert.Zero(t, composer.Last().Dismisses)
}

func TestMachine_NavigateToCurrentStepIsNoop(t *testing.T) {
	composer := testutils.NewComposer()
	m := runtime.NewMachine(composer)
	exp := testutils.NewExperience(2)

	require.NoError(t, m.Transition(domain.StartExperience(exp)))
	require.NoError(t, m.Transition(domain.StartStep(domain.OffsetRef(0))))

	assert.Equal(t, domain.StateRenderingStep, m.State().Kind)
	assert.Empty(t, composer.Last().Navigates)
}

func TestMachine_SwipeNavigation(t *testing.T) {
	composer := testutils.NewComposer()
	m := runtime.NewMachine(composer)
	exp := testutils.NewExperience(2)

	require.NoError(t, m.Transition(domain.StartExperience(exp)))
	rec := record(t, m)

	m.ContainerNavigated(0, 1)

	assert.Equal(t, []string{"endingStep(0-0)", "beginningStep(0-1)", "renderingStep(0-1)"}, rec.states())

	m.ContainerNavigated(1, 5)
	assert.Equal(t, domain.StepIndex{Group: 0, Item: 1}, m.State().StepIndex, "pages outside the package are ignored")
}

func TestMachine_ZeroStepExperience(t *testing.T) {
	composer := testutils.NewComposer()
	m := runtime.NewMachine(composer)
	rec := record(t, m)

	require.NoError(t, m.Transition(domain.StartExperience(testutils.NewExperience())))

	assert.Equal(t, domain.StateIdling, m.State().Kind)
	assert.Empty(t, rec.states(), "never reaches beginningStep")
	require.Len(t, rec.errors(), 1)
	assert.Equal(t, domain.ErrorExperience, rec.errors()[0].Kind)
	assert.Contains(t, rec.errors()[0].Message, "0 steps")
	assert.Empty(t, composer.Composed)
	assert.Zero(t, m.ObserverCount(), "a rejected start releases persistent observers")
}

func TestMachine_ExperienceAlreadyActive(t *testing.T) {
	m := runtime.NewMachine(testutils.NewComposer())
	first := testutils.NewExperience(1, 1)
	second := testutils.NewExperience(1)

	require.NoError(t, m.Transition(domain.StartExperience(first)))
	before := m.State()

	var got domain.Result
	m.TransitionAndObserve(domain.StartExperience(second), uuid.Nil, func(res domain.Result) bool {
		got = res
		return true
	})

	require.True(t, got.Failed())
	assert.Equal(t, domain.ErrorExperienceAlreadyActive, got.Err.Kind)
	assert.Same(t, second, got.Err.Experience)
	assert.Equal(t, before, m.State())
	assert.Same(t, first, m.State().Experience)
}

func TestMachine_IllegalTransition(t *testing.T) {
	m := runtime.NewMachine(testutils.NewComposer())

	err := m.Transition(domain.RenderStep())
	assert.ErrorIs(t, err, domain.ErrNoTransition)

	calls := 0
	m.TransitionAndObserve(domain.Reset(), uuid.Nil, func(res domain.Result) bool {
		calls++
		require.True(t, res.Failed())
		assert.Equal(t, domain.ErrorNoTransition, res.Err.Kind)
		assert.Equal(t, domain.StateIdling, res.Err.State.Kind)
		return true
	})
	assert.Equal(t, 1, calls)
	assert.Zero(t, m.ObserverCount())

	// Illegal transitions are not broadcast.
	rec := record(t, m)
	_ = m.Transition(domain.EndExperience(true))
	assert.Empty(t, rec.results)
}

func TestMachine_CompositionFailure(t *testing.T) {
	composer := testutils.NewComposer()
	composer.FailAt = 0
	m := runtime.NewMachine(composer)
	rec := record(t, m)

	require.NoError(t, m.Transition(domain.StartExperience(testutils.NewExperience(1))))

	assert.Equal(t, domain.StateIdling, m.State().Kind)
	require.Len(t, rec.errors(), 1)
	assert.Equal(t, domain.ErrorStep, rec.errors()[0].Kind)
	assert.Contains(t, rec.errors()[0].Message, testutils.ErrCompose.Error())
	assert.Equal(t, []string{"beginningExperience(0-0)", "idling(0-0)"}, rec.states())
}

func TestMachine_CompositionFailureOnLaterStep(t *testing.T) {
	composer := testutils.NewComposer()
	composer.FailAt = 1
	m := runtime.NewMachine(composer)
	exp := testutils.NewExperience(1, 1)

	require.NoError(t, m.Transition(domain.StartExperience(exp)))
	rec := record(t, m)
	require.NoError(t, m.Transition(domain.StartStep(domain.OffsetRef(1))))

	assert.Equal(t, domain.StateIdling, m.State().Kind)
	assert.Equal(t, 1, composer.Containers[0].Dismisses, "first package is torn down before the failure")
	require.Len(t, rec.errors(), 1)
	assert.Equal(t, domain.StepIndex{Group: 1}, rec.errors()[0].StepIndex)
}

func TestMachine_InvalidStepReferenceKeepsCurrentStep(t *testing.T) {
	composer := testutils.NewComposer()
	m := runtime.NewMachine(composer)
	exp := testutils.NewExperience(1, 1)

	require.NoError(t, m.Transition(domain.StartExperience(exp)))
	rec := record(t, m)

	require.NoError(t, m.Transition(domain.StartStep(domain.IndexRef(9))))

	assert.Equal(t, domain.StateRenderingStep, m.State().Kind)
	assert.Equal(t, domain.InitialStepIndex, m.State().StepIndex)
	assert.Empty(t, rec.states())
	require.Len(t, rec.errors(), 1)
	assert.Equal(t, domain.ErrorStep, rec.errors()[0].Kind)
	assert.Zero(t, composer.Last().Dismisses)
}

func TestMachine_PresentFailure(t *testing.T) {
	composer := testutils.NewComposer()
	composer.Configure = func(c *testutils.Container) { c.PresentErr = assert.AnError }
	m := runtime.NewMachine(composer)
	rec := record(t, m)

	require.NoError(t, m.Transition(domain.StartExperience(testutils.NewExperience(1))))

	assert.Equal(t, domain.StateIdling, m.State().Kind)
	require.Len(t, rec.errors(), 1)
	assert.Equal(t, domain.ErrorStep, rec.errors()[0].Kind)
	assert.Equal(t, assert.AnError.Error(), rec.errors()[0].Message)
}

func TestMachine_NoSurface(t *testing.T) {
	m := runtime.NewMachine(testutils.NewComposer(),
		runtime.WithSurfaceProvider(noSurface{}),
	)
	rec := record(t, m)

	require.NoError(t, m.Transition(domain.StartExperience(testutils.NewExperience(1))))

	assert.Equal(t, domain.StateIdling, m.State().Kind)
	require.Len(t, rec.errors(), 1)
	assert.Equal(t, domain.ErrorExperience, rec.errors()[0].Kind)
}

type noSurface struct{}

func (noSurface) CurrentSurface() (domain.Surface, bool) { return nil, false }

func TestMachine_AsyncDismissal(t *testing.T) {
	composer := testutils.NewComposer()
	composer.Configure = func(c *testutils.Container) { c.HoldDismiss = true }
	m := runtime.NewMachine(composer)

	require.NoError(t, m.Transition(domain.StartExperience(testutils.NewExperience(1))))
	require.NoError(t, m.Transition(domain.EndExperience(false)))

	assert.Equal(t, domain.StateEndingExperience, m.State().Kind, "suspended until the container is gone")
	assert.False(t, m.State().MarkComplete)
	assert.Equal(t, 1, composer.Last().PendingDismissals())

	composer.Last().CompleteDismiss()
	assert.Equal(t, domain.StateIdling, m.State().Kind)
}

func TestMachine_FatalErrorTearsDownPresentedPackage(t *testing.T) {
	composer := testutils.NewComposer()
	m := runtime.NewMachine(composer)
	exp := testutils.NewExperience(1)
	require.NoError(t, m.Transition(domain.StartExperience(exp)))
	rec := record(t, m)

	require.NoError(t, m.Transition(domain.ReportError(domain.NewExperienceError(exp, "server revoked"), true)))

	assert.Equal(t, domain.StateIdling, m.State().Kind)
	assert.Equal(t, 1, composer.Last().Dismisses)
	require.Len(t, rec.errors(), 1)
	assert.Equal(t, "server revoked", rec.errors()[0].Message)
}

func TestMachine_NonFatalErrorKeepsState(t *testing.T) {
	m := runtime.NewMachine(testutils.NewComposer())
	exp := testutils.NewExperience(1)
	require.NoError(t, m.Transition(domain.StartExperience(exp)))
	rec := record(t, m)

	require.NoError(t, m.Transition(domain.ReportError(domain.NewStepError(exp, domain.InitialStepIndex, "image failed"), false)))

	assert.Equal(t, domain.StateRenderingStep, m.State().Kind)
	assert.Len(t, rec.errors(), 1)
	assert.Empty(t, rec.states())
}

func TestMachine_TransientObserverFilter(t *testing.T) {
	m := runtime.NewMachine(testutils.NewComposer())
	exp := testutils.NewExperience(1)
	other := testutils.NewExperience(1)

	var seen []string
	m.TransitionAndObserve(domain.StartExperience(exp), exp.InstanceID, func(res domain.Result) bool {
		if res.Failed() {
			seen = append(seen, "error")
			return true
		}
		seen = append(seen, res.State.Name())
		return res.State.Kind == domain.StateRenderingStep
	})
	assert.Equal(t, []string{"beginningExperience", "beginningStep", "renderingStep"}, seen)
	assert.Zero(t, m.ObserverCount(), "satisfied observer removes itself")

	var filtered int
	m.TransitionAndObserve(domain.EndExperience(true), other.InstanceID, func(res domain.Result) bool {
		filtered++
		return false
	})
	assert.Equal(t, 1, filtered, "only the experience-less idling result passes another instance's filter")
}
