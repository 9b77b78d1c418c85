package optimizer

import (
	"fmt"

	"github.com/quantfolio/quantfolio-engine/internal/domain"
)

// Method selects the objective function used to allocate capital.
type Method string

const (
	MethodMeanVariance   Method = "MEAN_VARIANCE"
	MethodRiskParity     Method = "RISK_PARITY"
	MethodMaxSharpe      Method = "MAX_SHARPE"
	MethodBlackLitterman Method = "BLACK_LITTERMAN"
	MethodMultiObjective Method = "MULTI_OBJECTIVE"
)

// Constraints bound every method: weights sum to 1 and each weight lies in
// [MinWeight, MaxWeight].
type Constraints struct {
	MinWeight float64
	MaxWeight float64
}

// DefaultConstraints allows the full [0, 1] range per instrument.
func DefaultConstraints() Constraints {
	return Constraints{MinWeight: 0, MaxWeight: 1}
}

// Validate rejects bounds that no weight vector can satisfy.
// This is the one configuration error the optimizer refuses outright.
func (c Constraints) Validate(numAssets int) error {
	if c.MinWeight < 0 || c.MaxWeight < 0 {
		return fmt.Errorf("%w: negative weight bound", domain.ErrInvalidConstraints)
	}
	if c.MinWeight > c.MaxWeight {
		return fmt.Errorf("%w: min weight %.4f above max weight %.4f",
			domain.ErrInvalidConstraints, c.MinWeight, c.MaxWeight)
	}
	if numAssets > 0 {
		if c.MinWeight*float64(numAssets) > 1+domain.WeightSumTolerance {
			return fmt.Errorf("%w: min weight %.4f infeasible for %d assets",
				domain.ErrInvalidConstraints, c.MinWeight, numAssets)
		}
		if c.MaxWeight*float64(numAssets) < 1-domain.WeightSumTolerance {
			return fmt.Errorf("%w: max weight %.4f infeasible for %d assets",
				domain.ErrInvalidConstraints, c.MaxWeight, numAssets)
		}
	}
	return nil
}

// MeanVarianceConfig parameterizes the risk-minus-return objective.
type MeanVarianceConfig struct {
	// RiskAversion trades return against risk: the objective is
	// sqrt(w'Σw) - RiskAversion * w'μ.
	RiskAversion float64
}

// DefaultMeanVariance matches the conventional unit risk aversion.
func DefaultMeanVariance() MeanVarianceConfig {
	return MeanVarianceConfig{RiskAversion: 1.0}
}

// RiskParityConfig parameterizes the equal-risk-contribution objective.
type RiskParityConfig struct {
	// TransactionCosts, when non-nil, adds a linear cost penalty c'w to the
	// objective. Must have one entry per instrument when set.
	TransactionCosts []float64
}

// MaxSharpeConfig parameterizes the Sharpe-maximizing objective.
type MaxSharpeConfig struct {
	RiskFreeRate float64
}

// DefaultMaxSharpe uses a 2% annual risk-free rate.
func DefaultMaxSharpe() MaxSharpeConfig {
	return MaxSharpeConfig{RiskFreeRate: 0.02}
}

// BlackLittermanConfig blends market-implied returns with investor views.
type BlackLittermanConfig struct {
	// MarketWeights is the market equilibrium allocation, one entry per
	// instrument. Nil means equal weights.
	MarketWeights []float64
	// Views maps instrument index to the investor's expected return for
	// that instrument. Empty views fall back to the market weights.
	Views map[int]float64
	// Confidence in the views, in (0, 1). Higher confidence shrinks the
	// view uncertainty.
	Confidence float64
	// Delta is the market risk-aversion coefficient used both for the
	// implied returns and the subsequent mean-variance step.
	Delta float64
}

// DefaultBlackLitterman uses the standard delta of 2.5 and a neutral 0.5
// view confidence.
func DefaultBlackLitterman() BlackLittermanConfig {
	return BlackLittermanConfig{Confidence: 0.5, Delta: 2.5}
}

// MultiObjectiveConfig weights the return, risk, and allocation-entropy
// terms of the combined objective.
type MultiObjectiveConfig struct {
	ReturnWeight  float64
	RiskWeight    float64
	EntropyWeight float64
}

// DefaultMultiObjective uses the 0.4/0.4/0.2 split.
func DefaultMultiObjective() MultiObjectiveConfig {
	return MultiObjectiveConfig{ReturnWeight: 0.4, RiskWeight: 0.4, EntropyWeight: 0.2}
}

// Request carries one optimization problem.
type Request struct {
	IDs             []string
	ExpectedReturns []float64
	Covariance      domain.CovarianceMatrix
	Method          Method
	Constraints     Constraints

	// Per-method configuration. A nil entry for the selected method uses
	// its defaults.
	MeanVariance   *MeanVarianceConfig
	RiskParity     *RiskParityConfig
	MaxSharpe      *MaxSharpeConfig
	BlackLitterman *BlackLittermanConfig
	MultiObjective *MultiObjectiveConfig
}

// Result reports the allocation together with the solver outcome: when the
// numerical solve fails the weights are the safe equal-weight default and
// Converged is false, so callers can tell a fallback from a genuine optimum.
type Result struct {
	Weights   domain.WeightVector
	Method    Method
	Converged bool
	// Note explains a fallback in one short phrase; empty on success.
	Note string
}
