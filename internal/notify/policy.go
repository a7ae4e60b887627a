package notify

import (
	"fmt"
	"strings"
)

// Policy decides whether the reminder threshold has been reached.
type Policy string

const (
	// PolicyRange fires on any day inside the window: 0 < daysLeft <= window.
	// A skipped day cannot cause a missed reminder; the one-shot flag keeps
	// it from repeating.
	PolicyRange Policy = "range"

	// PolicyExact fires only when daysLeft == window. If no pass runs on that
	// exact day the reminder never fires.
	PolicyExact Policy = "exact"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyRange:
		return PolicyRange, nil
	case PolicyExact:
		return PolicyExact, nil
	default:
		return "", fmt.Errorf("unknown reminder policy %q", s)
	}
}

// Due reports whether a reminder is due for an item with daysLeft remaining.
func (p Policy) Due(daysLeft, window int) bool {
	if p == PolicyExact {
		return daysLeft == window
	}
	return daysLeft > 0 && daysLeft <= window
}
