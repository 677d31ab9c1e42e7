package service

import (
	"testing"
	"time"
)

func TestBoundariesAlignToDuration(t *testing.T) {
	at := time.Date(2025, 10, 9, 14, 37, 12, 0, time.UTC)
	start, end := Boundaries(15, at)
	if got, want := start, time.Date(2025, 10, 9, 14, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("start = %s, want %s", got, want)
	}
	if got, want := end, time.Date(2025, 10, 9, 14, 45, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("end = %s, want %s", got, want)
	}
}

func TestBoundariesDeterministicAcrossCallers(t *testing.T) {
	// Two requests inside the same window must resolve to the same round.
	a := time.Date(2025, 10, 9, 14, 30, 0, 0, time.UTC)
	b := time.Date(2025, 10, 9, 14, 44, 59, 999999999, time.UTC)
	_, endA := Boundaries(15, a)
	_, endB := Boundaries(15, b)
	if RoundID(15, endA) != RoundID(15, endB) {
		t.Fatalf("ids differ: %s vs %s", RoundID(15, endA), RoundID(15, endB))
	}

	next := time.Date(2025, 10, 9, 14, 45, 0, 0, time.UTC)
	_, endC := Boundaries(15, next)
	if RoundID(15, endA) == RoundID(15, endC) {
		t.Fatalf("adjacent windows collapsed onto one round id")
	}
}

func TestBoundariesLongerDurations(t *testing.T) {
	at := time.Date(2025, 10, 9, 3, 59, 0, 0, time.UTC)
	start, end := Boundaries(240, at)
	if got, want := start, time.Date(2025, 10, 9, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("start = %s, want %s", got, want)
	}
	if got, want := end, time.Date(2025, 10, 9, 4, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("end = %s, want %s", got, want)
	}
	if got, want := RoundID(240, end), "240m-1759982400"; got != want {
		t.Fatalf("id = %s, want %s", got, want)
	}
}
