package domain

// StateKind is the closed set of machine states.
type StateKind int

const (
	StateIdling StateKind = iota
	StateBeginningExperience
	StateBeginningStep
	StateRenderingStep
	StateEndingStep
	StateEndingExperience
)

var stateNames = map[StateKind]string{
	StateIdling:              "idling",
	StateBeginningExperience: "beginningExperience",
	StateBeginningStep:       "beginningStep",
	StateRenderingStep:       "renderingStep",
	StateEndingStep:          "endingStep",
	StateEndingExperience:    "endingExperience",
}

func (k StateKind) String() string {
	if name, ok := stateNames[k]; ok {
		return name
	}
	return "unknown"
}

// State is the single live "what is happening" value of the machine.
// Which fields are meaningful depends on Kind:
//
//	idling               -
//	beginningExperience  Experience
//	beginningStep        Experience, StepIndex, Package, IsFirst
//	renderingStep        Experience, StepIndex, Package, IsFirst
//	endingStep           Experience, StepIndex, Package, MarkComplete
//	endingExperience     Experience, StepIndex, MarkComplete
type State struct {
	Kind         StateKind
	Experience   *Experience
	StepIndex    StepIndex
	Package      *Package
	IsFirst      bool
	MarkComplete bool
}

// Idling is the initial and resting state.
func Idling() State { return State{Kind: StateIdling} }

func BeginningExperience(exp *Experience) State {
	return State{Kind: StateBeginningExperience, Experience: exp}
}

func BeginningStep(exp *Experience, idx StepIndex, pkg *Package, isFirst bool) State {
	return State{Kind: StateBeginningStep, Experience: exp, StepIndex: idx, Package: pkg, IsFirst: isFirst}
}

func RenderingStep(exp *Experience, idx StepIndex, pkg *Package, isFirst bool) State {
	return State{Kind: StateRenderingStep, Experience: exp, StepIndex: idx, Package: pkg, IsFirst: isFirst}
}

func EndingStep(exp *Experience, idx StepIndex, pkg *Package, markComplete bool) State {
	return State{Kind: StateEndingStep, Experience: exp, StepIndex: idx, Package: pkg, MarkComplete: markComplete}
}

func EndingExperience(exp *Experience, idx StepIndex, markComplete bool) State {
	return State{Kind: StateEndingExperience, Experience: exp, StepIndex: idx, MarkComplete: markComplete}
}

// Name is the state's variant name.
func (s State) Name() string { return s.Kind.String() }

// IsActive reports whether an experience is in flight.
func (s State) IsActive() bool { return s.Kind != StateIdling }

// HasStep reports whether StepIndex is meaningful for this variant.
func (s State) HasStep() bool {
	switch s.Kind {
	case StateBeginningStep, StateRenderingStep, StateEndingStep, StateEndingExperience:
		return true
	}
	return false
}

// Result is what observers receive: either a new state or a failure.
type Result struct {
	State State
	Err   *ExperienceError
}

// Success wraps a state transition.
func Success(s State) Result { return Result{State: s} }

// Failure wraps an observer-visible error.
func Failure(err *ExperienceError) Result { return Result{Err: err} }

// Failed reports whether this result carries an error.
func (r Result) Failed() bool { return r.Err != nil }

// Experience returns whichever experience the result is about, if any.
func (r Result) Experience() *Experience {
	if r.Err != nil {
		if r.Err.Experience != nil {
			return r.Err.Experience
		}
		return r.Err.State.Experience
	}
	return r.State.Experience
}
