package indexer

import (
	"testing"
)

func TestNextRangeBoundedByMaxRange(t *testing.T) {
	got, ok := NextRange(99, 2, 1000, 0)
	if !ok {
		t.Fatalf("expected a range")
	}
	want := BlockRange{From: 100, To: 101}
	if got != want {
		t.Fatalf("range mismatch: %+v != %+v", got, want)
	}
}

func TestNextRangeBoundedByConfirmations(t *testing.T) {
	got, ok := NextRange(99, 2000, 120, 10)
	if !ok {
		t.Fatalf("expected a range")
	}
	want := BlockRange{From: 100, To: 110}
	if got != want {
		t.Fatalf("range mismatch: %+v != %+v", got, want)
	}
}

func TestNextRangeSingle(t *testing.T) {
	got, ok := NextRange(4, 10, 5, 0)
	if !ok {
		t.Fatalf("expected a range")
	}
	if want := (BlockRange{From: 5, To: 5}); got != want {
		t.Fatalf("range mismatch: %+v != %+v", got, want)
	}
}

func TestNextRangeCaughtUp(t *testing.T) {
	if _, ok := NextRange(110, 10, 120, 10); ok {
		t.Fatalf("expected no range when caught up")
	}
	if _, ok := NextRange(0, 10, 5, 10); ok {
		t.Fatalf("expected no range when head is inside the confirmation buffer")
	}
	if _, ok := NextRange(1, 0, 100, 0); ok {
		t.Fatalf("expected no range for zero max range")
	}
}
