package stress

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantfolio/quantfolio-engine/internal/domain"
)

// MonteCarlo estimates the distribution of terminal values for a single
// series: the historical return mean and standard deviation parameterize
// independent Gaussian paths starting from the last observed value.
//
// Each path draws from its own source seeded by (seed + path index), so the
// seed-to-path mapping is stable per index and path generation order can
// never change the aggregate statistics.
func (s *Simulator) MonteCarlo(values domain.ValueSeries, params MonteCarloParams) (domain.MonteCarloSummary, error) {
	if err := params.Validate(); err != nil {
		return domain.MonteCarloSummary{}, err
	}
	returns := values.Returns()
	if len(values) < 2 || len(returns) == 0 {
		return domain.MonteCarloSummary{}, nil
	}

	mean := stat.Mean(returns, nil)
	std := 0.0
	if len(returns) >= 2 {
		std = stat.StdDev(returns, nil)
	}
	start := values.Last().Value

	finals := make([]float64, params.NumPaths)
	samples := make([][]float64, 0, params.sampleLimit())
	for p := 0; p < params.NumPaths; p++ {
		dist := distuv.Normal{Mu: mean, Sigma: std, Src: rand.NewSource(params.Seed + uint64(p))}
		path := make([]float64, params.Horizon+1)
		path[0] = start
		for t := 1; t <= params.Horizon; t++ {
			path[t] = path[t-1] * (1 + dist.Rand())
		}
		finals[p] = path[params.Horizon]
		if len(samples) < params.sampleLimit() {
			samples = append(samples, path)
		}
	}
	return summarize(finals, samples, params), nil
}

// MonteCarloPortfolio estimates terminal values for a multi-asset set:
// a covariance matrix over the aligned returns is Cholesky-decomposed to
// draw correlated paths, and per-path final asset values are averaged into
// one portfolio path. A non-positive-definite matrix falls back to its
// diagonal, i.e. independent draws.
func (s *Simulator) MonteCarloPortfolio(series map[string]domain.ValueSeries, params MonteCarloParams) (domain.MonteCarloSummary, error) {
	if err := params.Validate(); err != nil {
		return domain.MonteCarloSummary{}, err
	}
	aligned, dates := s.cov.AlignedReturns(series)
	cov, _ := s.cov.Build(series)
	ids := cov.IDs()
	n := len(ids)
	if n == 0 || len(dates) < 2 {
		return domain.MonteCarloSummary{}, nil
	}

	means := make([]float64, n)
	starts := make([]float64, n)
	for i, id := range ids {
		means[i] = stat.Mean(aligned[id], nil)
		starts[i] = series[id].Last().Value
	}

	chol := s.choleskyOrDiagonal(cov)

	finals := make([]float64, params.NumPaths)
	samples := make([][]float64, 0, params.sampleLimit())
	for p := 0; p < params.NumPaths; p++ {
		src := rand.NewSource(params.Seed + uint64(p))
		normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

		assetValues := make([]float64, n)
		copy(assetValues, starts)
		portfolio := make([]float64, params.Horizon+1)
		portfolio[0] = meanOf(assetValues)

		z := make([]float64, n)
		for t := 1; t <= params.Horizon; t++ {
			for i := range z {
				z[i] = normal.Rand()
			}
			for i := 0; i < n; i++ {
				r := means[i]
				for j := 0; j <= i; j++ {
					r += chol.At(i, j) * z[j]
				}
				assetValues[i] *= 1 + r
			}
			portfolio[t] = meanOf(assetValues)
		}
		finals[p] = portfolio[params.Horizon]
		if len(samples) < params.sampleLimit() {
			samples = append(samples, portfolio)
		}
	}
	return summarize(finals, samples, params), nil
}

// choleskyOrDiagonal factorizes the covariance, substituting the diagonal
// square-root matrix when the input is not positive definite.
func (s *Simulator) choleskyOrDiagonal(cov domain.CovarianceMatrix) *mat.TriDense {
	n := cov.Dim()
	var chol mat.Cholesky
	if chol.Factorize(cov.Sym()) {
		l := mat.NewTriDense(n, mat.Lower, nil)
		chol.LTo(l)
		return l
	}
	s.logDegenerateCovariance(n)
	l := mat.NewTriDense(n, mat.Lower, nil)
	for i := 0; i < n; i++ {
		l.SetTri(i, i, math.Sqrt(math.Max(cov.At(i, i), 0)))
	}
	return l
}

// summarize computes distribution statistics over terminal values.
// VaR is the 5th/1st percentile; expected shortfall is the mean of all
// terminal values at or below VaR95.
func summarize(finals []float64, samples [][]float64, params MonteCarloParams) domain.MonteCarloSummary {
	sorted := make([]float64, len(finals))
	copy(sorted, finals)
	sort.Float64s(sorted)

	var95 := stat.Quantile(0.05, stat.LinInterp, sorted, nil)
	var99 := stat.Quantile(0.01, stat.LinInterp, sorted, nil)

	shortfallSum := 0.0
	shortfallCount := 0
	for _, v := range finals {
		if v <= var95 {
			shortfallSum += v
			shortfallCount++
		}
	}
	shortfall := var95
	if shortfallCount > 0 {
		shortfall = shortfallSum / float64(shortfallCount)
	}

	std := 0.0
	if len(finals) >= 2 {
		std = stat.StdDev(finals, nil)
	}
	return domain.MonteCarloSummary{
		MeanFinalValue:      stat.Mean(finals, nil),
		StdFinalValue:       std,
		VaR95:               var95,
		VaR99:               var99,
		ExpectedShortfall95: shortfall,
		SamplePaths:         samples,
		NumPaths:            params.NumPaths,
		Horizon:             params.Horizon,
	}
}

func meanOf(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
