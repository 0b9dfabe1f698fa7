package engine

import (
	"math"
	"testing"
)

const hour = int64(3600 * 1000)

func TestBaseLevelEmptyHistory(t *testing.T) {
	if got := BaseLevel(nil, 1000, 0.5); got != 0 {
		t.Errorf("empty history = %v, want 0", got)
	}
}

func TestBaseLevelJustAccessed(t *testing.T) {
	now := int64(1_700_000_000_000)
	// Access 100ms ago: elapsed floors to 1s, so B = ln(1) = 0.
	got := BaseLevel([]int64{now - 100}, now, 0.5)
	if math.Abs(got) > 1e-12 {
		t.Errorf("just-accessed B = %v, want 0", got)
	}
}

func TestBaseLevelMoreAccessesHigher(t *testing.T) {
	now := int64(1_700_000_000_000)
	one := []int64{now - 24*hour}
	two := []int64{now - 48*hour, now - 24*hour}

	b1 := BaseLevel(one, now, 0.5)
	b2 := BaseLevel(two, now, 0.5)
	if b2 <= b1 {
		t.Errorf("B with 2 accesses (%v) should exceed B with 1 (%v)", b2, b1)
	}
}

func TestBaseLevelDecaysWithTime(t *testing.T) {
	history := []int64{1_700_000_000_000}
	early := BaseLevel(history, history[0]+hour, 0.5)
	late := BaseLevel(history, history[0]+24*hour, 0.5)
	if late >= early {
		t.Errorf("B should decrease as now grows: early %v, late %v", early, late)
	}
}

func TestBaseLevelKnownValue(t *testing.T) {
	now := int64(1_700_000_000_000)
	// One access an hour ago: B = ln(3600^-0.5) = -0.5*ln(3600)
	got := BaseLevel([]int64{now - hour}, now, 0.5)
	want := -0.5 * math.Log(3600)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("B = %v, want %v", got, want)
	}
}

func TestRetrievalProbability(t *testing.T) {
	// At threshold, probability is exactly 0.5.
	if p := RetrievalProbability(0, 0, 0.25); math.Abs(p-0.5) > 1e-12 {
		t.Errorf("P(A=τ) = %v, want 0.5", p)
	}

	high := RetrievalProbability(2, 0, 0.25)
	low := RetrievalProbability(-2, 0, 0.25)
	if high < 0.99 {
		t.Errorf("P(high activation) = %v, want near 1", high)
	}
	if low > 0.01 {
		t.Errorf("P(low activation) = %v, want near 0", low)
	}

	// Degenerate noise is a step function.
	if p := RetrievalProbability(0.1, 0, 0); p != 1 {
		t.Errorf("step above threshold = %v, want 1", p)
	}
	if p := RetrievalProbability(-0.1, 0, 0); p != 0 {
		t.Errorf("step below threshold = %v, want 0", p)
	}
}
