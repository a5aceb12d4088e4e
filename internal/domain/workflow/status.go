package workflow

import (
	"fmt"
	"strings"
)

var terminalStates = map[State]bool{
	StatePaid:     true,
	StateRejected: true,
}

var happyPathNext = map[State]State{
	StatePending:    StateAuthorized,
	StateAuthorized: StateApproved,
	StateApproved:   StatePaid,
}

// IsTerminal reports whether no rule leaves s.
func IsTerminal(s State) bool {
	return terminalStates[s]
}

// NextHappyPathState returns the forward successor of s. It reports false for
// terminal states and anything off the happy path.
func NextHappyPathState(s State) (State, bool) {
	next, ok := happyPathNext[s]
	return next, ok
}

func ParseState(raw string) (State, error) {
	s := State(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, raw)
	}
	return s, nil
}

func ParseAction(raw string) (Action, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	a := Action(normalized)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
	}
	return a, nil
}
