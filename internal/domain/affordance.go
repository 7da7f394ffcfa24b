package domain

// Affordance is what a rendered tracker offers the user for its current state.
type Affordance struct {
	Icon    string
	Tooltip string
	Action  Action
}

// AffordanceFor maps a state to its button. Completed trackers only offer to
// re-save the description.
func AffordanceFor(s State) Affordance {
	switch s {
	case Running:
		return Affordance{Icon: "stop-circle", Tooltip: "End", Action: ActionStop}
	case Completed:
		return Affordance{Icon: "edit", Tooltip: "Update Description", Action: ActionSave}
	default:
		return Affordance{Icon: "play-circle", Tooltip: "Start", Action: ActionStart}
	}
}
