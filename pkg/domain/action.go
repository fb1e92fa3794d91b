package domain

import "fmt"

// ActionKind enumerates requests the state machine accepts.
type ActionKind int

const (
	ActionStartExperience ActionKind = iota
	ActionStartStep
	ActionRenderStep
	ActionEndExperience
	ActionReset
	ActionReportError
)

var actionNames = map[ActionKind]string{
	ActionStartExperience: "startExperience",
	ActionStartStep:       "startStep",
	ActionRenderStep:      "renderStep",
	ActionEndExperience:   "endExperience",
	ActionReset:           "reset",
	ActionReportError:     "reportError",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return "unknown"
}

// MachineAction is an external request to the state machine. It is stateless;
// only the fields relevant to Kind are read.
type MachineAction struct {
	Kind         ActionKind
	Experience   *Experience
	Reference    StepReference
	MarkComplete bool
	Err          *ExperienceError
	Fatal        bool
}

func StartExperience(exp *Experience) MachineAction {
	return MachineAction{Kind: ActionStartExperience, Experience: exp}
}

func StartStep(ref StepReference) MachineAction {
	return MachineAction{Kind: ActionStartStep, Reference: ref}
}

func RenderStep() MachineAction { return MachineAction{Kind: ActionRenderStep} }

func EndExperience(markComplete bool) MachineAction {
	return MachineAction{Kind: ActionEndExperience, MarkComplete: markComplete}
}

func Reset() MachineAction { return MachineAction{Kind: ActionReset} }

func ReportError(err *ExperienceError, fatal bool) MachineAction {
	return MachineAction{Kind: ActionReportError, Err: err, Fatal: fatal}
}

func (a MachineAction) String() string {
	switch a.Kind {
	case ActionStartStep:
		return fmt.Sprintf("startStep(%s)", a.Reference)
	case ActionEndExperience:
		return fmt.Sprintf("endExperience(markComplete:%t)", a.MarkComplete)
	case ActionReportError:
		return fmt.Sprintf("reportError(fatal:%t)", a.Fatal)
	}
	return a.Kind.String()
}
