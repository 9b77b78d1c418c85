package covariance

import (
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/quantfolio/quantfolio-engine/internal/domain"
)

const dateKey = "2006-01-02"

// Estimator builds return covariance and correlation structure from multiple
// value series. It is the shared leaf dependency of the optimizer, the
// stress simulator, and the exposure analyzer.
type Estimator struct {
	log *zap.Logger
}

// NewEstimator creates a covariance estimator. A nil logger disables
// logging.
func NewEstimator(log *zap.Logger) *Estimator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Estimator{log: log}
}

// Build estimates the sample covariance matrix over the common date
// intersection of the given series.
//
// Instrument order in the result is the sorted ID order, so results are
// deterministic regardless of map iteration. When fewer than 2 common dates
// exist, or the sample estimate degenerates, the identity matrix of matching
// size is returned instead of an error: downstream optimizers always receive
// a usable positive-definite matrix.
func (e *Estimator) Build(series map[string]domain.ValueSeries) (domain.CovarianceMatrix, []time.Time) {
	ids := sortedIDs(series)
	aligned, dates := e.AlignedReturns(series)
	if len(dates) < 2 {
		e.log.Debug("covariance fallback to identity",
			zap.Int("instruments", len(ids)),
			zap.Int("common_dates", len(dates)))
		return domain.IdentityCovariance(ids), dates
	}

	obs := len(dates) - 1
	data := mat.NewDense(obs, len(ids), nil)
	for j, id := range ids {
		for i, r := range aligned[id] {
			data.Set(i, j, r)
		}
	}

	cov := mat.NewSymDense(len(ids), nil)
	stat.CovarianceMatrix(cov, data, nil)
	if !finiteSym(cov) {
		e.log.Warn("degenerate sample covariance, falling back to identity",
			zap.Int("instruments", len(ids)))
		return domain.IdentityCovariance(ids), dates
	}
	return domain.NewCovarianceMatrix(ids, cov), dates
}

// AlignedReturns intersects all series on their common dates and derives
// per-instrument return series over that intersection. The returned slice
// of dates is sorted ascending; each return series has len(dates)-1 entries.
//
// Fewer than 2 common dates yield empty returns and the (possibly empty)
// date intersection.
func (e *Estimator) AlignedReturns(series map[string]domain.ValueSeries) (map[string][]float64, []time.Time) {
	ids := sortedIDs(series)
	if len(ids) == 0 {
		return map[string][]float64{}, nil
	}

	var common map[string]time.Time
	for _, id := range ids {
		seen := make(map[string]time.Time, len(series[id]))
		for _, p := range series[id] {
			seen[p.Date.Format(dateKey)] = p.Date
		}
		if common == nil {
			common = seen
			continue
		}
		for k := range common {
			if _, ok := seen[k]; !ok {
				delete(common, k)
			}
		}
	}

	dates := make([]time.Time, 0, len(common))
	for _, d := range common {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make(map[string][]float64, len(ids))
	if len(dates) < 2 {
		return out, dates
	}

	for _, id := range ids {
		byDate := make(map[string]float64, len(series[id]))
		for _, p := range series[id] {
			byDate[p.Date.Format(dateKey)] = p.Value
		}
		values := make([]float64, len(dates))
		for i, d := range dates {
			values[i] = byDate[d.Format(dateKey)]
		}
		returns := make([]float64, 0, len(values)-1)
		for i := 1; i < len(values); i++ {
			if values[i-1] == 0 {
				returns = append(returns, 0)
				continue
			}
			returns = append(returns, values[i]/values[i-1]-1)
		}
		out[id] = returns
	}
	return out, dates
}

// Correlation computes the pairwise correlation matrix over aligned returns,
// in sorted ID order. The identity fallback mirrors Build.
func (e *Estimator) Correlation(series map[string]domain.ValueSeries) ([]string, *mat.SymDense) {
	ids := sortedIDs(series)
	aligned, dates := e.AlignedReturns(series)
	n := len(ids)
	if n == 0 {
		return ids, nil
	}
	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1)
	}
	if len(dates) < 2 {
		return ids, corr
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := stat.Correlation(aligned[ids[i]], aligned[ids[j]], nil)
			if c != c { // NaN from a zero-variance series
				c = 0
			}
			corr.SetSym(i, j, c)
		}
	}
	return ids, corr
}

func sortedIDs(series map[string]domain.ValueSeries) []string {
	ids := make([]string, 0, len(series))
	for id := range series {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func finiteSym(m *mat.SymDense) bool {
	n := m.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := m.At(i, j)
			if v != v || v > 1e300 || v < -1e300 {
				return false
			}
		}
	}
	return true
}
