package domain

import (
	"errors"
	"math"
)

// WeightSumTolerance is the numerical tolerance within which a weight vector
// must sum to 1.
const WeightSumTolerance = 1e-6

// WeightVector maps instrument ID to a non-negative capital weight.
// Invariant: the weights sum to 1 within WeightSumTolerance, unless the
// vector is empty.
type WeightVector map[string]float64

// Sum returns the total of all weights.
func (w WeightVector) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// Validate ensures all weights are non-negative and, for a non-empty vector,
// that they sum to 1 within tolerance.
func (w WeightVector) Validate() error {
	if len(w) == 0 {
		return nil
	}
	for _, v := range w {
		if v < 0 {
			return errors.New("weights must be non-negative")
		}
	}
	if math.Abs(w.Sum()-1) > WeightSumTolerance {
		return errors.New("weights must sum to 1")
	}
	return nil
}

// Normalized returns a copy scaled so the weights sum to 1.
// A vector whose sum is zero is returned unchanged.
func (w WeightVector) Normalized() WeightVector {
	total := w.Sum()
	out := make(WeightVector, len(w))
	for id, v := range w {
		if total > 0 {
			out[id] = v / total
		} else {
			out[id] = v
		}
	}
	return out
}

// EqualWeights builds the uniform allocation over the given instruments.
// It is the safe default every optimization method falls back to.
func EqualWeights(ids []string) WeightVector {
	out := make(WeightVector, len(ids))
	if len(ids) == 0 {
		return out
	}
	w := 1.0 / float64(len(ids))
	for _, id := range ids {
		out[id] = w
	}
	return out
}
