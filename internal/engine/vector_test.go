package engine

import (
	"errors"
	"math"
	"testing"
)

func TestCosineIdentity(t *testing.T) {
	a := []float64{0.6, 0.8, 0}
	sim, err := Cosine(a, a)
	if err != nil {
		t.Fatalf("Cosine: %v", err)
	}
	if math.Abs(sim-1.0) > 1e-12 {
		t.Errorf("cosine(a,a) = %v, want 1", sim)
	}
}

func TestCosineBounds(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"unnormalized", []float64{2, 0}, []float64{5, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := Cosine(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Cosine: %v", err)
			}
			if math.Abs(sim-tt.want) > 1e-12 {
				t.Errorf("cosine = %v, want %v", sim, tt.want)
			}
			if sim < -1 || sim > 1 {
				t.Errorf("cosine %v out of [-1,1]", sim)
			}
		})
	}
}

func TestCosineZeroNorm(t *testing.T) {
	sim, err := Cosine([]float64{0, 0, 0}, []float64{1, 0, 0})
	if err != nil {
		t.Fatalf("Cosine: %v", err)
	}
	if sim != 0 {
		t.Errorf("zero-norm cosine = %v, want 0", sim)
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine([]float64{1, 0}, []float64{1, 0, 0})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestCosineBatchMatchesSingle(t *testing.T) {
	probe := []float64{0.6, 0.8}
	vecs := [][]float64{
		{1, 0},
		{0, 1},
		{0.6, 0.8},
		{-0.6, -0.8},
	}

	batch, err := CosineBatch(probe, vecs)
	if err != nil {
		t.Fatalf("CosineBatch: %v", err)
	}
	if len(batch) != len(vecs) {
		t.Fatalf("batch length = %d, want %d", len(batch), len(vecs))
	}
	for i, v := range vecs {
		single, _ := Cosine(probe, v)
		if batch[i] != single {
			t.Errorf("batch[%d] = %v, single = %v", i, batch[i], single)
		}
	}
}

func TestCosineBatchDimensionMismatch(t *testing.T) {
	_, err := CosineBatch([]float64{1, 0}, [][]float64{{1, 0}, {1}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestCube(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{1, 1},
		{0.5, 0.125},
		{-0.5, -0.125},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Cube(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Cube(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	vec := []float64{3, 4}
	Normalize(vec)
	if math.Abs(Norm(vec)-1.0) > 1e-12 {
		t.Errorf("norm after normalize = %v, want 1", Norm(vec))
	}

	zero := []float64{0, 0}
	Normalize(zero) // must not NaN
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}
