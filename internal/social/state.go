// Package social holds the rules for one pair of guests inside one event:
// which state the pair is in, which swipes are still allowed, and the
// interface behind which block/unmatch/report run as single atomic calls.
package social

import (
	svcErr "github.com/oggyb/guestmatch/internal/errors"
)

// State of an unordered pair within one event.
//
//	NONE --(right-swipe both ways)--> MATCHED --(unmatch/report)--> UNMATCHED
//	any state --(block, either direction)--> BLOCKED
//
// BLOCKED and UNMATCHED are terminal for the event.
type State string

const (
	StateNone      State = "none"
	StateMatched   State = "matched"
	StateUnmatched State = "unmatched"
	StateBlocked   State = "blocked"
)

// PairFacts are the stored facts the state is derived from.
type PairFacts struct {
	// ForwardRight is a->b right swipe in the event, ReverseRight is b->a.
	ForwardRight bool
	ReverseRight bool
	// Unmatched is an Unmatch row for the pair in the event.
	Unmatched bool
	// Blocked is a Block row in either direction, in any event.
	Blocked bool
}

// Resolve derives the pair state. Block beats everything, then Unmatch.
func Resolve(f PairFacts) State {
	switch {
	case f.Blocked:
		return StateBlocked
	case f.Unmatched:
		return StateUnmatched
	case f.ForwardRight && f.ReverseRight:
		return StateMatched
	default:
		return StateNone
	}
}

// Matched reports whether an active match must exist for these facts.
func (f PairFacts) Matched() bool {
	return Resolve(f) == StateMatched
}

// CheckSwipeAllowed rejects swipes toward a blocked or unmatched guest.
func CheckSwipeAllowed(f PairFacts) error {
	switch Resolve(f) {
	case StateBlocked:
		return svcErr.InvalidTarget("This guest is no longer available.")
	case StateUnmatched:
		return svcErr.InvalidTarget("You can't match with this guest again at this event.")
	}
	return nil
}

// OrderedPair returns the two ids with the smaller one first; matches and
// unmatches are stored in this order so each pair has one row.
func OrderedPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
