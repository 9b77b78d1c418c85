package drawdown

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quantfolio/quantfolio-engine/internal/domain"
)

// Config bounds acceptable portfolio drawdowns. All thresholds are relative
// declines, so the drawdown limits are negative.
type Config struct {
	MaxDrawdownLimit  float64 // e.g. -0.20
	WarningThreshold  float64 // e.g. -0.15
	RecoveryThreshold float64 // minimum single-period gain to signal recovery
	ExtendedPeriods   int     // periods under water before the extended signal
}

// DefaultConfig uses a 20% hard limit with a 15% warning.
func DefaultConfig() Config {
	return Config{
		MaxDrawdownLimit:  -0.20,
		WarningThreshold:  -0.15,
		RecoveryThreshold: 0.05,
		ExtendedPeriods:   60,
	}
}

// Validate rejects limits on the wrong side of zero.
func (c Config) Validate() error {
	if c.MaxDrawdownLimit > 0 || c.WarningThreshold > 0 {
		return fmt.Errorf("%w: drawdown limits must be negative", domain.ErrInvalidConstraints)
	}
	if c.WarningThreshold < c.MaxDrawdownLimit {
		return fmt.Errorf("%w: warning threshold below max drawdown limit", domain.ErrInvalidConstraints)
	}
	return nil
}

// BreachStatus reports where a series stands against the configured
// drawdown limits.
type BreachStatus struct {
	CurrentDrawdown       float64
	WarningBreached       bool
	LimitBreached         bool
	RemainingBuffer       float64
	PeriodsInDrawdown     int
	MaxHistoricalDrawdown float64
}

// Signals are the boolean risk flags derived from a breach check.
type Signals struct {
	Warning          bool
	StopLoss         bool
	Recovery         bool
	ExtendedDrawdown bool
}

// Controller monitors value series against drawdown limits and rescales
// weights by risk budget. Configuration is immutable after construction.
type Controller struct {
	log *zap.Logger
	cfg Config
}

// NewController creates a drawdown controller. A nil logger disables
// logging.
func NewController(log *zap.Logger, cfg Config) (*Controller, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{log: log, cfg: cfg}, nil
}

// CurrentDrawdown is the decline of the latest value from the series peak.
func (c *Controller) CurrentDrawdown(values domain.ValueSeries) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := 0.0
	for _, p := range values {
		if p.Value > peak {
			peak = p.Value
		}
	}
	if peak <= 0 {
		return 0
	}
	return (values.Last().Value - peak) / peak
}

// DetectBreaches checks the series against the warning and hard limits.
func (c *Controller) DetectBreaches(values domain.ValueSeries) BreachStatus {
	current := c.CurrentDrawdown(values)
	status := BreachStatus{
		CurrentDrawdown:       current,
		WarningBreached:       current <= c.cfg.WarningThreshold,
		LimitBreached:         current <= c.cfg.MaxDrawdownLimit,
		RemainingBuffer:       c.cfg.MaxDrawdownLimit - current,
		PeriodsInDrawdown:     periodsSincePeak(values),
		MaxHistoricalDrawdown: values.MaxDrawdown(),
	}
	if status.LimitBreached {
		c.log.Warn("drawdown limit breached",
			zap.Float64("current", current),
			zap.Float64("limit", c.cfg.MaxDrawdownLimit))
	}
	return status
}

// Signals derives the boolean risk flags: warning and stop-loss from the
// breach status, recovery when the latest period gain reaches the recovery
// threshold, extended when the series has spent too long below its peak.
func (c *Controller) Signals(values domain.ValueSeries) Signals {
	status := c.DetectBreaches(values)
	s := Signals{
		Warning:          status.WarningBreached,
		StopLoss:         status.LimitBreached,
		ExtendedDrawdown: status.PeriodsInDrawdown > c.cfg.ExtendedPeriods,
	}
	if len(values) >= 2 {
		last := values[len(values)-1].Value
		prev := values[len(values)-2].Value
		if prev > 0 && last/prev-1 >= c.cfg.RecoveryThreshold {
			s.Recovery = true
		}
	}
	return s
}

// RebalanceRiskBudget scales each weight by 1/(1+riskScore) and
// renormalizes, shifting budget away from risky holdings. Instruments
// without a score use the neutral score of 1.
func (c *Controller) RebalanceRiskBudget(weights domain.WeightVector, riskScores map[string]float64) domain.WeightVector {
	if len(weights) == 0 {
		return weights
	}
	adjusted := make(domain.WeightVector, len(weights))
	for id, w := range weights {
		score, ok := riskScores[id]
		if !ok {
			score = 1.0
		}
		adjusted[id] = w / (1 + score)
	}
	return adjusted.Normalized()
}

// periodsSincePeak counts observations after the all-time-high point.
func periodsSincePeak(values domain.ValueSeries) int {
	if len(values) == 0 {
		return 0
	}
	peakIdx := 0
	for i, p := range values {
		if p.Value > values[peakIdx].Value {
			peakIdx = i
		}
	}
	return len(values) - 1 - peakIdx
}
