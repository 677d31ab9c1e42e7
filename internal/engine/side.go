package engine

import "strings"

// Side is one of the two outcomes of a round.
type Side string

const (
	SideHigher Side = "higher"
	SideLower  Side = "lower"

	// SideTie is only ever recorded as a settlement outcome, never traded.
	SideTie Side = "tie"
)

func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "higher":
		return SideHigher, nil
	case "lower":
		return SideLower, nil
	default:
		return "", ErrInvalidSide
	}
}

func (s Side) Opposite() Side {
	if s == SideHigher {
		return SideLower
	}
	return SideHigher
}

func (s Side) String() string {
	return string(s)
}
