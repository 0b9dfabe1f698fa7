package location

import (
	"math"
	"testing"
)

func TestFamiliarityCurve(t *testing.T) {
	tests := []struct {
		accesses int
		want     float64
	}{
		{0, 0},
		{1, 1.0 / 11.0},
		{10, 0.5},
		{100, 1.0 - 1.0/11.0},
	}
	for _, tt := range tests {
		got := Familiarity(tt.accesses)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Familiarity(%d) = %v, want %v", tt.accesses, got, tt.want)
		}
	}
}

func TestFamiliarityMonotoneConcave(t *testing.T) {
	prev := -1.0
	prevGain := math.Inf(1)
	for n := 0; n <= 1000; n++ {
		f := Familiarity(n)
		if f <= prev {
			t.Fatalf("not monotonic at n=%d: %v <= %v", n, f, prev)
		}
		if f < 0 || f >= 1 {
			t.Fatalf("out of [0,1) at n=%d: %v", n, f)
		}
		if n > 0 {
			gain := f - prev
			if gain > prevGain+1e-12 {
				t.Fatalf("not concave at n=%d", n)
			}
			prevGain = gain
		}
		prev = f
	}
}

func TestFamiliarityAsymptote(t *testing.T) {
	if f := Familiarity(1_000_000); f < 0.9999 {
		t.Errorf("Familiarity(1e6) = %v, want near 1", f)
	}
}

func TestWellKnown(t *testing.T) {
	if WellKnown(Familiarity(10)) {
		t.Error("10 accesses (0.5) should not be well-known")
	}
	// ≈23 accesses crosses 0.7
	if !WellKnown(Familiarity(24)) {
		t.Error("24 accesses should be well-known")
	}
}
