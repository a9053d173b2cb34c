package patch

// State is a step of the apply state machine.
type State int

const (
	Pending State = iota
	Resolving
	Guarding
	Piping
	Executing
	Committing
	Done
	Failed
)

var stateNames = [...]string{
	Pending:    "pending",
	Resolving:  "resolving",
	Guarding:   "guarding",
	Piping:     "piping",
	Executing:  "executing",
	Committing: "committing",
	Done:       "done",
	Failed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}
