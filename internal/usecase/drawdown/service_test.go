package drawdown

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

func newController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := NewController(nil, cfg)
	require.NoError(t, err)
	return c
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{MaxDrawdownLimit: 0.2, WarningThreshold: -0.1}.Validate())
	assert.Error(t, Config{MaxDrawdownLimit: -0.1, WarningThreshold: -0.2}.Validate(),
		"warning must trip before the hard limit")
}

func TestNewController_RejectsInvalidConfig(t *testing.T) {
	_, err := NewController(nil, Config{MaxDrawdownLimit: 0.2})
	assert.ErrorIs(t, err, domain.ErrInvalidConstraints)
}

func TestCurrentDrawdown_FromPeak(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	c := newController(t, DefaultConfig())

	// Peak 120, latest 90: 25% under water.
	s := daily(start, 100, 120, 110, 90)
	assert.InDelta(t, -0.25, c.CurrentDrawdown(s), 1e-12)
}

func TestCurrentDrawdown_AtPeakIsZero(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	c := newController(t, DefaultConfig())

	assert.Zero(t, c.CurrentDrawdown(daily(start, 100, 110, 120)))
	assert.Zero(t, c.CurrentDrawdown(nil))
}

func TestDetectBreaches_LimitBreach(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	c := newController(t, DefaultConfig())

	status := c.DetectBreaches(daily(start, 100, 120, 110, 90))

	assert.True(t, status.WarningBreached)
	assert.True(t, status.LimitBreached)
	assert.InDelta(t, -0.25, status.CurrentDrawdown, 1e-12)
	assert.InDelta(t, 0.05, status.RemainingBuffer, 1e-12, "already 5% past the limit")
	assert.Equal(t, 2, status.PeriodsInDrawdown)
	assert.InDelta(t, -0.25, status.MaxHistoricalDrawdown, 1e-12)
}

func TestDetectBreaches_WarningOnly(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	c := newController(t, DefaultConfig())

	status := c.DetectBreaches(daily(start, 100, 120, 100))

	assert.True(t, status.WarningBreached, "16.7% decline trips the 15% warning")
	assert.False(t, status.LimitBreached)
}

func TestSignals_Recovery(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	c := newController(t, DefaultConfig())

	// Still under water but the last period gained 6%.
	s := daily(start, 100, 120, 100, 106)
	signals := c.Signals(s)

	assert.True(t, signals.Recovery)
	assert.False(t, signals.StopLoss)
}

func TestSignals_ExtendedDrawdown(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.ExtendedPeriods = 3
	c := newController(t, cfg)

	s := daily(start, 100, 120, 118, 117, 116, 115)
	signals := c.Signals(s)

	assert.True(t, signals.ExtendedDrawdown, "4 periods under water against a limit of 3")
	assert.False(t, signals.Warning)
}

func TestRebalanceRiskBudget_ShiftsAwayFromRisk(t *testing.T) {
	c := newController(t, DefaultConfig())
	weights := domain.WeightVector{"safe": 0.5, "risky": 0.5}
	scores := map[string]float64{"safe": 0.0, "risky": 1.0}

	adjusted := c.RebalanceRiskBudget(weights, scores)

	require.NoError(t, adjusted.Validate())
	// 0.5/1 and 0.5/2 renormalized: 2/3 vs 1/3.
	assert.InDelta(t, 2.0/3.0, adjusted["safe"], 1e-12)
	assert.InDelta(t, 1.0/3.0, adjusted["risky"], 1e-12)
}

func TestRebalanceRiskBudget_MissingScoreIsNeutral(t *testing.T) {
	c := newController(t, DefaultConfig())
	weights := domain.WeightVector{"a": 0.5, "b": 0.5}

	adjusted := c.RebalanceRiskBudget(weights, map[string]float64{"a": 1.0})

	assert.InDelta(t, 0.5, adjusted["a"], 1e-12, "equal scores keep equal weights")
	assert.InDelta(t, 0.5, adjusted["b"], 1e-12)
}
