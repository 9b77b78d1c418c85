package optimizer

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// penaltyWeight enforces the sum-to-one constraint inside the unconstrained
// solver.
const penaltyWeight = 1000.0

var errNonConvergence = errors.New("solver did not converge")

// acceptedStatuses are the solver terminations treated as success.
var acceptedStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
	optimize.StepConvergence:     true,
}

// solve minimizes the objective over the weight simplex defined by the
// constraints, using Nelder-Mead with a BFGS retry. Bounds are enforced by
// projection and the sum constraint by a quadratic penalty; the final
// solution is projected, renormalized, and clamped back inside the bounds,
// so both invariants hold simultaneously in the returned vector.
//
// The initial guess is the equal-weight vector. Any solver failure returns
// errNonConvergence so the caller can substitute its documented fallback.
func solve(n int, cons Constraints, objective func(w []float64) float64) ([]float64, error) {
	if n == 1 {
		return []float64{1}, nil
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectBounds(x, cons)
			obj := objective(w)
			sum := 0.0
			for _, v := range w {
				sum += v
			}
			return obj + penaltyWeight*(sum-1)*(sum-1)
		},
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
	if err != nil || !acceptedStatuses[result.Status] {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
		if err != nil || !acceptedStatuses[result.Status] {
			return nil, errNonConvergence
		}
	}

	final := clampSimplex(normalize(projectBounds(result.X, cons)), cons)
	for _, v := range final {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errNonConvergence
		}
	}
	return final, nil
}

// projectBounds clamps each weight into [MinWeight, MaxWeight].
func projectBounds(x []float64, cons Constraints) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Max(cons.MinWeight, math.Min(cons.MaxWeight, v))
	}
	return out
}

// clampSimplex rescales weights to sum 1 without leaving the bounds:
// rescaling can push a weight past its bound, so breaching weights are
// pinned at the bound and the residual is respread over the rest. Each pass
// pins at least one more weight, so it terminates within n passes. Requires
// bounds already validated as feasible (n*min <= 1 <= n*max).
func clampSimplex(x []float64, cons Constraints) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	pinned := make([]bool, len(x))
	for pass := 0; pass < len(x); pass++ {
		residual := 1.0
		freeSum := 0.0
		freeCount := 0
		for i, v := range out {
			if pinned[i] {
				residual -= v
			} else {
				freeSum += v
				freeCount++
			}
		}
		if freeCount == 0 {
			break
		}
		changed := false
		for i := range out {
			if pinned[i] {
				continue
			}
			var v float64
			if freeSum > 0 {
				v = out[i] * residual / freeSum
			} else {
				v = residual / float64(freeCount)
			}
			switch {
			case v > cons.MaxWeight:
				out[i] = cons.MaxWeight
				pinned[i] = true
				changed = true
			case v < cons.MinWeight:
				out[i] = cons.MinWeight
				pinned[i] = true
				changed = true
			default:
				out[i] = v
			}
		}
		if !changed {
			break
		}
	}
	return out
}

// normalize scales weights to sum 1, flooring tiny negatives from the
// solver at 0 first.
func normalize(x []float64) []float64 {
	out := make([]float64, len(x))
	sum := 0.0
	for i, v := range x {
		out[i] = math.Max(0, v)
		sum += out[i]
	}
	if sum <= 0 {
		for i := range out {
			out[i] = 1.0 / float64(len(out))
		}
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
