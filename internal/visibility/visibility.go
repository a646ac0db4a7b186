// Package visibility implements the policy that decides how a mentioned
// person's identity renders: the visibility levels, their privacy order, the
// layered resolution rule, and the write-time guard for note overrides.
package visibility

import "fmt"

type Visibility string

const (
	Approved   Visibility = "approved"
	Blurred    Visibility = "blurred"
	Anonymized Visibility = "anonymized"
	Pending    Visibility = "pending"
	Removed    Visibility = "removed"
)

// Rank is the total privacy order. Anonymized and pending render the same
// way, so they share a rank.
func Rank(v Visibility) int {
	switch v {
	case Approved:
		return 0
	case Blurred:
		return 1
	case Anonymized, Pending:
		return 2
	case Removed:
		return 3
	default:
		// Anything unrecognized is treated as maximally private.
		return 3
	}
}

func IsMorePrivateOrEqual(a, b Visibility) bool {
	return Rank(a) >= Rank(b)
}

func IsLessPrivate(a, b Visibility) bool {
	return Rank(a) < Rank(b)
}

// Parse validates a visibility string at the write edge. Unknown values are
// rejected rather than coerced so a typo can never be persisted.
func Parse(raw string) (Visibility, error) {
	switch Visibility(raw) {
	case Approved, Blurred, Anonymized, Pending, Removed:
		return Visibility(raw), nil
	default:
		return "", fmt.Errorf("unknown visibility %q", raw)
	}
}

// Normalize maps stored values onto the enum for the read path. Empty or
// unrecognized values become pending, which renders anonymously.
func Normalize(raw string) Visibility {
	switch Visibility(raw) {
	case Approved, Blurred, Anonymized, Pending, Removed:
		return Visibility(raw)
	default:
		return Pending
	}
}
