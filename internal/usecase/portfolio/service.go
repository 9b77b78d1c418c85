package portfolio

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/quantfolio/quantfolio-engine/internal/domain"
	"github.com/quantfolio/quantfolio-engine/internal/usecase/covariance"
	"github.com/quantfolio/quantfolio-engine/internal/usecase/metrics"
)

// Config bounds the portfolio-level risk limits.
type Config struct {
	MaxDrawdownLimit float64 // e.g. -0.30
	MaxConcentration float64 // largest single weight allowed
}

// DefaultConfig accepts up to a 30% drawdown and a 40% single position.
func DefaultConfig() Config {
	return Config{MaxDrawdownLimit: -0.30, MaxConcentration: 0.40}
}

// Validate rejects limits that cannot bound anything.
func (c Config) Validate() error {
	if c.MaxDrawdownLimit > 0 {
		return fmt.Errorf("%w: max drawdown limit must be negative", domain.ErrInvalidConstraints)
	}
	if c.MaxConcentration <= 0 || c.MaxConcentration > 1 {
		return fmt.Errorf("%w: max concentration must be in (0, 1]", domain.ErrInvalidConstraints)
	}
	return nil
}

// RiskSummary is the portfolio-level risk picture against the configured
// limits. NumHoldings counts only instruments that contributed data;
// requested instruments missing from the series map are skipped, not fatal.
type RiskSummary struct {
	Volatility      float64
	MaxDrawdown     float64
	Concentration   float64
	HerfindahlIndex float64
	NumHoldings     int
	WithinLimits    bool
}

// Analyzer builds the weighted portfolio series from per-instrument data
// and evaluates it against risk limits.
type Analyzer struct {
	log *zap.Logger
	cov *covariance.Estimator
	cfg Config
}

// NewAnalyzer creates a portfolio analyzer. Nil collaborators get defaults.
func NewAnalyzer(log *zap.Logger, cov *covariance.Estimator, cfg Config) (*Analyzer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cov == nil {
		cov = covariance.NewEstimator(log)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{log: log, cov: cov, cfg: cfg}, nil
}

// BuildSeries combines per-instrument series into one weighted portfolio
// NAV over the common date intersection, normalizing each date by the
// weight actually present. Instruments in the weight vector but absent from
// the series map are skipped.
func (a *Analyzer) BuildSeries(weights domain.WeightVector, series map[string]domain.ValueSeries) domain.ValueSeries {
	held := make(map[string]domain.ValueSeries)
	for id := range weights {
		if s, ok := series[id]; ok {
			held[id] = s
		} else {
			a.log.Debug("instrument missing from series, skipped", zap.String("id", id))
		}
	}
	if len(held) == 0 {
		return nil
	}

	_, dates := a.cov.AlignedReturns(held)
	if len(dates) == 0 {
		return nil
	}

	valueAt := make(map[string]map[string]float64, len(held))
	for id, s := range held {
		byDate := make(map[string]float64, len(s))
		for _, p := range s {
			byDate[dayKey(p.Date)] = p.Value
		}
		valueAt[id] = byDate
	}

	out := make(domain.ValueSeries, 0, len(dates))
	for _, d := range dates {
		weighted := 0.0
		total := 0.0
		for id := range held {
			v, ok := valueAt[id][dayKey(d)]
			if !ok {
				continue
			}
			weighted += weights[id] * v
			total += weights[id]
		}
		if total > 0 {
			out = append(out, domain.ValuePoint{Date: d, Value: weighted / total})
		}
	}
	return out
}

// AnalyzeRisk evaluates the weighted portfolio against the configured
// volatility-independent limits: max drawdown and concentration.
func (a *Analyzer) AnalyzeRisk(weights domain.WeightVector, series map[string]domain.ValueSeries) RiskSummary {
	nav := a.BuildSeries(weights, series)

	held := 0
	for id := range weights {
		if _, ok := series[id]; ok {
			held++
		}
	}
	summary := RiskSummary{NumHoldings: held}
	for _, w := range weights {
		summary.Concentration = math.Max(summary.Concentration, w)
		summary.HerfindahlIndex += w * w
	}
	if len(nav) >= 2 {
		engine := metrics.NewEngine(metrics.TradingDays)
		m := engine.Compute(nav, 0)
		summary.Volatility = m.Volatility
		summary.MaxDrawdown = m.MaxDrawdown
	}
	summary.WithinLimits = summary.MaxDrawdown >= a.cfg.MaxDrawdownLimit &&
		summary.Concentration <= a.cfg.MaxConcentration
	return summary
}

// AdjustForRisk caps weights above the concentration limit and
// redistributes the excess proportionally across the remaining holdings,
// then renormalizes. It reports whether any adjustment happened.
func (a *Analyzer) AdjustForRisk(weights domain.WeightVector) (domain.WeightVector, bool) {
	if len(weights) == 0 {
		return weights, false
	}
	capW := a.cfg.MaxConcentration
	excess := 0.0
	uncapped := 0.0
	adjusted := make(domain.WeightVector, len(weights))
	for id, w := range weights {
		if w > capW {
			excess += w - capW
			adjusted[id] = capW
		} else {
			adjusted[id] = w
			uncapped += w
		}
	}
	if excess == 0 {
		return weights, false
	}
	if uncapped > 0 {
		for id, w := range adjusted {
			if w < capW {
				adjusted[id] = w + excess*(w/uncapped)
			}
		}
	}
	adjusted = adjusted.Normalized()
	a.log.Info("portfolio weights adjusted for concentration",
		zap.Float64("cap", capW),
		zap.Float64("redistributed", excess))
	return adjusted, true
}

func dayKey(d time.Time) string {
	return d.Format("2006-01-02")
}
