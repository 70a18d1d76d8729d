package harness

import "fmt"

// State is a position in the per-test session lifecycle.
type State int

const (
	Unstarted State = iota
	Provisioned
	Navigated
	InterstitialBypassed
	ActionSubmitted
	Asserted
	Released
)

var stateNames = map[State]string{
	Unstarted:            "unstarted",
	Provisioned:          "provisioned",
	Navigated:            "navigated",
	InterstitialBypassed: "interstitial_bypassed",
	ActionSubmitted:      "action_submitted",
	Asserted:             "asserted",
	Released:             "released",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists the forward moves. Released is handled separately.
var transitions = map[State][]State{
	Unstarted:            {Provisioned},
	Provisioned:          {Navigated},
	Navigated:            {Navigated, InterstitialBypassed, ActionSubmitted, Asserted},
	InterstitialBypassed: {Navigated, ActionSubmitted},
	ActionSubmitted:      {ActionSubmitted, Navigated, Asserted},
	Asserted:             {Asserted, Navigated, ActionSubmitted},
}

// CanTransition reports whether a session in s may move to next.
func (s State) CanTransition(next State) bool {
	if s == Released {
		return false
	}
	if next == Released {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Released
}
