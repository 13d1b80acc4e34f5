package staged

// State is a Runner's position in its lifecycle.
type State int

const (
	Idle State = iota
	PrimaryPending
	PrimaryDone
	SecondaryPending
	Complete
	Failed
)

var stateNames = [...]string{
	Idle:             "idle",
	PrimaryPending:   "primary-pending",
	PrimaryDone:      "primary-done",
	SecondaryPending: "secondary-pending",
	Complete:         "complete",
	Failed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Complete || s == Failed
}

// next lists the legal successors of each state.
var next = map[State][]State{
	Idle:             {PrimaryPending, Failed},
	PrimaryPending:   {PrimaryDone, Failed},
	PrimaryDone:      {SecondaryPending, Failed},
	SecondaryPending: {Complete, Failed},
}

func canTransition(from, to State) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}
