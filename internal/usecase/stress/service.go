package stress

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfolio/quantfolio-engine/internal/domain"
	"github.com/quantfolio/quantfolio-engine/internal/usecase/covariance"
)

// extremeVolatilityMultiplier scales returns in the extreme-volatility test.
const extremeVolatilityMultiplier = 3.0

// reservedScenarioKeys are report entries written by the comprehensive test
// itself; caller-supplied scenarios cannot use these names.
var reservedScenarioKeys = map[string]bool{
	"liquidity_shock":    true,
	"extreme_volatility": true,
}

// Simulator applies deterministic historical shocks and randomized
// multi-path simulation to value series. All randomness flows from the
// explicit seed in MonteCarloParams; the simulator itself holds only
// immutable configuration.
type Simulator struct {
	log          *zap.Logger
	cov          *covariance.Estimator
	scenarios    map[string]Scenario
	sectorShocks map[string]SectorShock
}

// NewSimulator creates a stress simulator with the default scenario tables.
// A nil estimator gets a fresh one; a nil logger disables logging.
func NewSimulator(log *zap.Logger, cov *covariance.Estimator) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	if cov == nil {
		cov = covariance.NewEstimator(log)
	}
	return &Simulator{
		log:          log,
		cov:          cov,
		scenarios:    DefaultScenarios(),
		sectorShocks: DefaultSectorShocks(),
	}
}

// WithScenarios replaces the scenario tables, for callers that supply their
// own shock definitions. Scenario names colliding with the reserved report
// keys ("liquidity_shock", "extreme_volatility") are dropped with a warning
// so the comprehensive report never overwrites a scenario result.
func (s *Simulator) WithScenarios(scenarios map[string]Scenario, sectorShocks map[string]SectorShock) *Simulator {
	out := *s
	if scenarios != nil {
		kept := make(map[string]Scenario, len(scenarios))
		for name, sc := range scenarios {
			if reservedScenarioKeys[name] {
				s.log.Warn("scenario name collides with a reserved report key, dropped",
					zap.String("name", name))
				continue
			}
			kept[name] = sc
		}
		out.scenarios = kept
	}
	if sectorShocks != nil {
		out.sectorShocks = sectorShocks
	}
	return &out
}

// ApplyHistoricalScenario shocks the series by the scenario's market drop,
// further adjusted by the weighted sum of sector drops when sector exposure
// is supplied. An unknown scenario name returns the series unchanged.
func (s *Simulator) ApplyHistoricalScenario(values domain.ValueSeries, name string, sectorExposure map[string]float64) domain.ValueSeries {
	scenario, ok := s.scenarios[name]
	if !ok {
		return values
	}

	sectorImpact := 0.0
	for sector, weight := range sectorExposure {
		if shock, ok := s.sectorShocks[sector]; ok {
			sectorImpact += weight * shock.Drop
		}
	}

	out := make(domain.ValueSeries, len(values))
	for i, p := range values {
		v := p.Value * (1 + scenario.MarketDrop)
		if sectorImpact != 0 {
			v *= 1 + sectorImpact
		}
		out[i] = domain.ValuePoint{Date: p.Date, Value: v}
	}
	return out
}

// LiquidityShock amplifies losses that occur immediately after a
// negative-return period by (1 + magnitude), modeling the inability to exit
// positions quickly in a stressed market.
func (s *Simulator) LiquidityShock(values domain.ValueSeries, magnitude float64) domain.ValueSeries {
	if len(values) < 2 {
		return values
	}
	returns := values.Returns()
	for i := 1; i < len(returns); i++ {
		if returns[i-1] < 0 {
			returns[i] *= 1 + magnitude
		}
	}
	return values.Rebuild(returns)
}

// ExtremeVolatility scales every return by the fixed multiplier and rebuilds
// the series, probing behavior under a volatility regime change.
func (s *Simulator) ExtremeVolatility(values domain.ValueSeries) domain.ValueSeries {
	if len(values) < 2 {
		return values
	}
	returns := values.Returns()
	for i := range returns {
		returns[i] *= extremeVolatilityMultiplier
	}
	return values.Rebuild(returns)
}

// ComprehensiveStressTest runs every historical scenario, the Monte-Carlo
// estimate, the liquidity shock, and the extreme-volatility test, reporting
// each deterministic test as a max-drawdown figure.
//
// When instrumentSeries holds more than one instrument the Monte-Carlo step
// simulates correlated multi-asset paths; otherwise it runs on the portfolio
// series alone.
func (s *Simulator) ComprehensiveStressTest(
	values domain.ValueSeries,
	instrumentSeries map[string]domain.ValueSeries,
	sectorExposure map[string]float64,
	params MonteCarloParams,
) (domain.StressReport, error) {
	report := domain.StressReport{
		ID:                uuid.New(),
		GeneratedAt:       time.Now(),
		ScenarioDrawdowns: make(map[string]float64, len(s.scenarios)+2),
	}

	for name := range s.scenarios {
		stressed := s.ApplyHistoricalScenario(values, name, sectorExposure)
		report.ScenarioDrawdowns[name] = stressed.MaxDrawdown()
	}

	var (
		mc  domain.MonteCarloSummary
		err error
	)
	if len(instrumentSeries) > 1 {
		mc, err = s.MonteCarloPortfolio(instrumentSeries, params)
	} else {
		mc, err = s.MonteCarlo(values, params)
	}
	if err != nil {
		return domain.StressReport{}, err
	}
	report.MonteCarlo = mc

	report.ScenarioDrawdowns["liquidity_shock"] = s.LiquidityShock(values, 0.3).MaxDrawdown()
	report.ScenarioDrawdowns["extreme_volatility"] = s.ExtremeVolatility(values).MaxDrawdown()

	s.log.Debug("stress test complete",
		zap.Int("scenarios", len(report.ScenarioDrawdowns)),
		zap.Int("mc_paths", params.NumPaths))
	return report, nil
}

func (s *Simulator) logDegenerateCovariance(n int) {
	s.log.Warn("covariance not positive definite, using diagonal for path correlation",
		zap.Int("instruments", n))
}
