package stress

import (
	"fmt"

	"github.com/quantfolio/quantfolio-engine/internal/domain"
)

// Scenario describes a deterministic historical shock applied to a value
// series.
type Scenario struct {
	MarketDrop       float64 // relative drop, e.g. -0.55
	VolatilitySpike  float64
	LiquidityDryUp   float64
	CorrelationSpike float64
}

// SectorShock describes an additional sector-specific drop layered on top of
// a market scenario for portfolios with known sector exposure.
type SectorShock struct {
	Drop            float64
	VolatilitySpike float64
}

// DefaultScenarios returns the built-in historical extreme events. Callers
// may pass their own scenario map instead; the engine embeds no other data.
func DefaultScenarios() map[string]Scenario {
	return map[string]Scenario{
		"2008_global_crisis": {
			MarketDrop:       -0.55,
			VolatilitySpike:  3.5,
			LiquidityDryUp:   0.7,
			CorrelationSpike: 0.9,
		},
		"2015_china_turbulence": {
			MarketDrop:       -0.35,
			VolatilitySpike:  2.8,
			LiquidityDryUp:   0.5,
			CorrelationSpike: 0.8,
		},
		"2020_pandemic_crash": {
			MarketDrop:       -0.38,
			VolatilitySpike:  4.2,
			LiquidityDryUp:   0.6,
			CorrelationSpike: 0.85,
		},
		"2022_rate_hike_cycle": {
			MarketDrop:       -0.25,
			VolatilitySpike:  2.5,
			LiquidityDryUp:   0.4,
			CorrelationSpike: 0.75,
		},
	}
}

// DefaultSectorShocks returns the built-in sector-specific drops.
func DefaultSectorShocks() map[string]SectorShock {
	return map[string]SectorShock{
		"technology": {Drop: -0.45, VolatilitySpike: 3.0},
		"healthcare": {Drop: -0.30, VolatilitySpike: 2.5},
		"finance":    {Drop: -0.40, VolatilitySpike: 3.2},
		"consumer":   {Drop: -0.25, VolatilitySpike: 2.0},
		"energy":     {Drop: -0.50, VolatilitySpike: 3.5},
	}
}

// MonteCarloParams configures the randomized multi-path simulation.
// The seed is explicit: the same seed and parameters reproduce the same
// paths bit for bit.
type MonteCarloParams struct {
	NumPaths int
	Horizon  int // observation periods per path
	Seed     uint64
	// MaxSamplePaths bounds how many full paths the summary retains for
	// callers that plot them. Zero keeps the default of 100.
	MaxSamplePaths int
}

// DefaultMonteCarlo simulates 1000 one-year paths.
func DefaultMonteCarlo(seed uint64) MonteCarloParams {
	return MonteCarloParams{NumPaths: 1000, Horizon: 252, Seed: seed, MaxSamplePaths: 100}
}

// Validate rejects non-positive path or horizon counts.
func (p MonteCarloParams) Validate() error {
	if p.NumPaths <= 0 {
		return fmt.Errorf("%w: num paths must be positive", domain.ErrInvalidConstraints)
	}
	if p.Horizon <= 0 {
		return fmt.Errorf("%w: horizon must be positive", domain.ErrInvalidConstraints)
	}
	return nil
}

func (p MonteCarloParams) sampleLimit() int {
	if p.MaxSamplePaths <= 0 {
		return 100
	}
	return p.MaxSamplePaths
}
