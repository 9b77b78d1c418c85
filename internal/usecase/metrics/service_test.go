package metrics

import (
	"math"
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

func compounded(start time.Time, initial float64, returns ...float64) domain.ValueSeries {
	values := make([]float64, 0, len(returns)+1)
	values = append(values, initial)
	for _, r := range returns {
		values = append(values, values[len(values)-1]*(1+r))
	}
	return daily(start, values...)
}

func TestCompute_ConstantSeriesIsAllZero(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	values := make([]float64, 100)
	for i := range values {
		values[i] = 1.0
	}
	m := NewEngine(TradingDays).Compute(daily(start, values...), 0)

	assert.Zero(t, m.TotalReturn)
	assert.Zero(t, m.AnnualReturn)
	assert.Zero(t, m.Volatility)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.SortinoRatio)
	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.ProfitLossRatio)
}

func TestCompute_TooFewPointsReturnsZeroMetrics(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	engine := NewEngine(TradingDays)

	assert.Equal(t, domain.PerformanceMetrics{}, engine.Compute(nil, 0))
	assert.Equal(t, domain.PerformanceMetrics{}, engine.Compute(daily(start, 100), 0))
}

func TestCompute_OneYearOfDailyGains(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	returns := make([]float64, TradingPeriodsPerYear)
	for i := range returns {
		returns[i] = 0.01
	}
	m := NewEngine(TradingDays).Compute(compounded(start, 1.0, returns...), 0)

	want := math.Pow(1.01, TradingPeriodsPerYear) - 1
	assert.InDelta(t, want, m.TotalReturn, 1e-6)
	// Exactly one year of observations, so annual equals total.
	assert.InDelta(t, want, m.AnnualReturn, 1e-6)
	assert.InDelta(t, 0, m.Volatility, 1e-9, "identical returns have no dispersion")
	assert.Equal(t, 1.0, m.WinRate)
	assert.Zero(t, m.ProfitLossRatio, "no losing periods reports 0, not Inf")
	assert.Zero(t, m.MaxDrawdown)
}

func TestCompute_VolatilityMatchesSampleStd(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	m := NewEngine(TradingDays).Compute(compounded(start, 100, 0.02, -0.02, 0.02, -0.02), 0)

	// Sample std (n-1 denominator) of {0.02, -0.02, 0.02, -0.02}.
	sampleStd := math.Sqrt((4 * 0.02 * 0.02) / 3)
	assert.InDelta(t, sampleStd*math.Sqrt(TradingPeriodsPerYear), m.Volatility, 1e-9)
	assert.InDelta(t, 0.5, m.WinRate, 1e-12)
	assert.InDelta(t, 1.0, m.ProfitLossRatio, 1e-9)
}

func TestCompute_CalendarConventionUsesDateSpan(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := domain.ValueSeries{
		{Date: start, Value: 1.0},
		{Date: start.AddDate(0, 0, 73), Value: 1.02},
	}
	m := NewEngine(CalendarDays).Compute(s, 0)

	want := math.Pow(1.02, 365.0/73.0) - 1
	assert.InDelta(t, want, m.AnnualReturn, 1e-9)
}

func TestCompute_SharpeUsesRiskFreeRate(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	m := NewEngine(TradingDays).Compute(compounded(start, 100, 0.01, -0.005, 0.008, -0.002, 0.004), 0.02)

	require.Greater(t, m.Volatility, 0.0)
	assert.InDelta(t, (m.AnnualReturn-0.02)/m.Volatility, m.SharpeRatio, 1e-9)
}

func TestCompute_DrawdownStats(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	// Up, down 10%, recover above peak, down again without recovering.
	s := daily(start, 100, 110, 99, 112, 106)
	m := NewEngine(TradingDays).Compute(s, 0)

	assert.InDelta(t, -0.10, m.MaxDrawdown, 1e-9)
	assert.Less(t, m.AvgDrawdown, 0.0)
	// Two underwater intervals (one still open), only one recovered.
	assert.InDelta(t, 1.0, m.AvgDrawdownLength, 1e-9)
	assert.InDelta(t, 1.0, m.AvgRecoveryTime, 1e-9)
}

func TestCompute_SortinoUsesOnlyNegativeReturns(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	m := NewEngine(TradingDays).Compute(compounded(start, 100, 0.03, -0.01, 0.02, -0.03, 0.01), 0)

	require.Greater(t, m.DownsideDeviation, 0.0)
	assert.InDelta(t, m.AnnualReturn/m.DownsideDeviation, m.SortinoRatio, 1e-9)
	assert.Less(t, m.DownsideDeviation, m.Volatility,
		"downside deviation over the loss subset should be below full volatility here")
}

func TestCompute_CalmarDegradesToZeroWithoutDrawdown(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	m := NewEngine(TradingDays).Compute(compounded(start, 100, 0.01, 0.01, 0.01), 0)

	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.CalmarRatio)
}

func TestCompute_InformationRatioAgainstRiskFreeBenchmark(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	m := NewEngine(TradingDays).Compute(compounded(start, 100, 0.01, -0.004, 0.007, -0.002), 0.0252)

	require.Greater(t, m.TrackingError, 0.0)
	assert.False(t, math.IsNaN(m.InformationRatio))
	assert.False(t, math.IsInf(m.InformationRatio, 0))
}
