package stress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/quantfolio-engine/internal/domain"
)

func daily(start time.Time, values ...float64) domain.ValueSeries {
	out := make(domain.ValueSeries, len(values))
	for i, v := range values {
		out[i] = domain.ValuePoint{Date: start.AddDate(0, 0, i), Value: v}
	}
	return out
}

func bumpySeries(start time.Time, n int) domain.ValueSeries {
	values := make([]float64, n)
	v := 100.0
	for i := 0; i < n; i++ {
		switch i % 4 {
		case 0:
			v *= 1.012
		case 1:
			v *= 0.995
		case 2:
			v *= 1.008
		default:
			v *= 0.997
		}
		values[i] = v
	}
	return daily(start, values...)
}

func TestApplyHistoricalScenario_MarketDrop(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := daily(start, 100, 102, 101)
	sim := NewSimulator(nil, nil)

	stressed := sim.ApplyHistoricalScenario(s, "2008_global_crisis", nil)

	require.Len(t, stressed, 3)
	assert.InDelta(t, 100*(1-0.55), stressed[0].Value, 1e-9)
	assert.InDelta(t, 102*(1-0.55), stressed[1].Value, 1e-9)
}

func TestApplyHistoricalScenario_SectorExposureLayersOn(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := daily(start, 100, 102)
	sim := NewSimulator(nil, nil)

	stressed := sim.ApplyHistoricalScenario(s, "2022_rate_hike_cycle", map[string]float64{
		"technology": 0.5,
		"energy":     0.5,
	})

	// Sector impact: 0.5*(-0.45) + 0.5*(-0.50) = -0.475.
	want := 100 * (1 - 0.25) * (1 - 0.475)
	assert.InDelta(t, want, stressed[0].Value, 1e-9)
}

func TestApplyHistoricalScenario_UnknownNameIsIdentity(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := daily(start, 100, 102)
	sim := NewSimulator(nil, nil)

	assert.Equal(t, s, sim.ApplyHistoricalScenario(s, "1929_not_modeled", nil))
}

func TestLiquidityShock_AmplifiesConsecutiveLosses(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	// Two consecutive losing periods: the second loss gets amplified.
	s := daily(start, 100, 90, 85)
	sim := NewSimulator(nil, nil)

	shocked := sim.LiquidityShock(s, 0.3)

	require.Len(t, shocked, 3)
	assert.Equal(t, 100.0, shocked[0].Value)
	assert.InDelta(t, 90.0, shocked[1].Value, 1e-9, "first loss has no prior loss to amplify")
	assert.Less(t, shocked[2].Value, 85.0)
	assert.Less(t, shocked.MaxDrawdown(), s.MaxDrawdown())
}

func TestLiquidityShock_NoLossesUnchanged(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := daily(start, 100, 101, 102)
	sim := NewSimulator(nil, nil)

	shocked := sim.LiquidityShock(s, 0.3)
	for i := range s {
		assert.InDelta(t, s[i].Value, shocked[i].Value, 1e-9)
	}
}

func TestExtremeVolatility_TriplesReturns(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := daily(start, 100, 102, 101)
	sim := NewSimulator(nil, nil)

	stressed := sim.ExtremeVolatility(s)

	require.Len(t, stressed, 3)
	assert.Equal(t, 100.0, stressed[0].Value)
	assert.InDelta(t, 100*1.06, stressed[1].Value, 1e-9)
	r2 := 101.0/102.0 - 1
	assert.InDelta(t, 106*(1+3*r2), stressed[2].Value, 1e-9)
}

func TestMonteCarlo_SameSeedReproducesBitForBit(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := bumpySeries(start, 60)
	sim := NewSimulator(nil, nil)
	params := MonteCarloParams{NumPaths: 200, Horizon: 40, Seed: 42, MaxSamplePaths: 10}

	first, err := sim.MonteCarlo(s, params)
	require.NoError(t, err)
	second, err := sim.MonteCarlo(s, params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMonteCarlo_DifferentSeedDiffers(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := bumpySeries(start, 60)
	sim := NewSimulator(nil, nil)

	a, err := sim.MonteCarlo(s, MonteCarloParams{NumPaths: 200, Horizon: 40, Seed: 1})
	require.NoError(t, err)
	b, err := sim.MonteCarlo(s, MonteCarloParams{NumPaths: 200, Horizon: 40, Seed: 2})
	require.NoError(t, err)

	assert.NotEqual(t, a.MeanFinalValue, b.MeanFinalValue)
}

func TestMonteCarlo_SummaryShape(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := bumpySeries(start, 60)
	sim := NewSimulator(nil, nil)
	params := MonteCarloParams{NumPaths: 300, Horizon: 50, Seed: 7, MaxSamplePaths: 25}

	mc, err := sim.MonteCarlo(s, params)
	require.NoError(t, err)

	assert.Equal(t, 300, mc.NumPaths)
	assert.Equal(t, 50, mc.Horizon)
	assert.Len(t, mc.SamplePaths, 25)
	for _, path := range mc.SamplePaths {
		assert.Len(t, path, 51)
		assert.Equal(t, s.Last().Value, path[0], "paths start from the last observed value")
	}
	assert.LessOrEqual(t, mc.VaR99, mc.VaR95, "the 1st percentile sits at or below the 5th")
	assert.LessOrEqual(t, mc.VaR95, mc.MeanFinalValue)
	assert.LessOrEqual(t, mc.ExpectedShortfall95, mc.VaR95)
	assert.Greater(t, mc.StdFinalValue, 0.0)
}

func TestMonteCarlo_InvalidParams(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := bumpySeries(start, 10)
	sim := NewSimulator(nil, nil)

	_, err := sim.MonteCarlo(s, MonteCarloParams{NumPaths: 0, Horizon: 10, Seed: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidConstraints)

	_, err = sim.MonteCarlo(s, MonteCarloParams{NumPaths: 10, Horizon: 0, Seed: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidConstraints)
}

func TestMonteCarlo_TooShortSeriesIsNeutral(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	sim := NewSimulator(nil, nil)

	mc, err := sim.MonteCarlo(daily(start, 100), MonteCarloParams{NumPaths: 10, Horizon: 10, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.MonteCarloSummary{}, mc)
}

func TestMonteCarloPortfolio_SameSeedReproducesBitForBit(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	// Same dates, related but distinct return streams.
	b := bumpySeries(start, 60)
	for i := range b {
		b[i].Value *= 1 + 0.001*float64(i%3)
	}
	series := map[string]domain.ValueSeries{
		"a": bumpySeries(start, 60),
		"b": b,
	}

	sim := NewSimulator(nil, nil)
	params := MonteCarloParams{NumPaths: 100, Horizon: 30, Seed: 9, MaxSamplePaths: 5}

	first, err := sim.MonteCarloPortfolio(series, params)
	require.NoError(t, err)
	second, err := sim.MonteCarloPortfolio(series, params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestWithScenarios_ReservedNamesDropped(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	nav := bumpySeries(start, 80)
	sim := NewSimulator(nil, nil).WithScenarios(map[string]Scenario{
		"liquidity_shock": {MarketDrop: -0.99},
		"flash_crash":     {MarketDrop: -0.30},
	}, nil)

	// The colliding name is not installed as a scenario.
	assert.Equal(t, nav, sim.ApplyHistoricalScenario(nav, "liquidity_shock", nil))

	report, err := sim.ComprehensiveStressTest(nav, nil, nil,
		MonteCarloParams{NumPaths: 50, Horizon: 20, Seed: 11})
	require.NoError(t, err)

	// One custom scenario plus the two reserved entries.
	assert.Len(t, report.ScenarioDrawdowns, 3)
	assert.Contains(t, report.ScenarioDrawdowns, "flash_crash")
	assert.InDelta(t, sim.LiquidityShock(nav, 0.3).MaxDrawdown(),
		report.ScenarioDrawdowns["liquidity_shock"], 1e-12,
		"the reserved key carries the liquidity test, not the dropped scenario")
}

func TestComprehensiveStressTest_ReportIsComplete(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	nav := bumpySeries(start, 80)
	sim := NewSimulator(nil, nil)

	report, err := sim.ComprehensiveStressTest(nav, nil, map[string]float64{"technology": 1.0},
		MonteCarloParams{NumPaths: 100, Horizon: 30, Seed: 3})

	require.NoError(t, err)
	assert.NotEqual(t, report.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.False(t, report.GeneratedAt.IsZero())

	for name := range DefaultScenarios() {
		dd, ok := report.ScenarioDrawdowns[name]
		require.True(t, ok, "missing scenario %s", name)
		assert.LessOrEqual(t, dd, 0.0)
	}
	assert.Contains(t, report.ScenarioDrawdowns, "liquidity_shock")
	assert.Contains(t, report.ScenarioDrawdowns, "extreme_volatility")
	assert.Equal(t, 100, report.MonteCarlo.NumPaths)
}
