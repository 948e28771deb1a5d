// Package vector holds the numeric helpers shared by every component that
// touches embeddings: normalisation, cosine distance, validation and the
// on-disk blob encoding.
package vector

import (
	"errors"
	"fmt"
	"math"
)

// Dim is the number of components in every stored embedding.
const Dim = 384

// NormTolerance is how far from 1 the L2 norm of a stored embedding may drift.
const NormTolerance = 1e-4

var (
	// ErrDimension is returned when a vector does not have Dim components.
	ErrDimension = errors.New("vector: wrong dimension")
	// ErrZeroNorm is returned when a vector cannot be normalised.
	ErrZeroNorm = errors.New("vector: zero magnitude")
	// ErrNotUnit is returned when a stored vector is not unit-normalised.
	ErrNotUnit = errors.New("vector: not unit-normalised")
)

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a copy of v divided by its own norm.
func Normalize(v []float32) ([]float32, error) {
	n := Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, ErrZeroNorm
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}

// Validate checks that v is a unit vector with exactly Dim components.
func Validate(v []float32) error {
	if len(v) != Dim {
		return fmt.Errorf("%w: got %d components, want %d", ErrDimension, len(v), Dim)
	}
	if n := Norm(v); math.Abs(n-1) > NormTolerance {
		return fmt.Errorf("%w: norm %.6f", ErrNotUnit, n)
	}
	return nil
}

// CosineDistance computes 1 - cos(a, b).
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimension, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0, ErrZeroNorm
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}
