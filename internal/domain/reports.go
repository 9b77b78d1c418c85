package domain

import (
	"time"

	"github.com/google/uuid"
)

// MonteCarloSummary describes the distribution of simulated terminal
// portfolio values.
type MonteCarloSummary struct {
	MeanFinalValue      float64
	StdFinalValue       float64
	VaR95               float64 // 5th percentile of terminal values
	VaR99               float64 // 1st percentile of terminal values
	ExpectedShortfall95 float64 // mean of terminal values at or below VaR95
	SamplePaths         [][]float64
	NumPaths            int
	Horizon             int
}

// StressReport aggregates the outcome of every stress test run against one
// portfolio: per-scenario max drawdowns plus the Monte-Carlo summary.
type StressReport struct {
	ID                uuid.UUID
	GeneratedAt       time.Time
	ScenarioDrawdowns map[string]float64
	MonteCarlo        MonteCarloSummary
}

// FactorRiskMetrics summarizes the distribution of portfolio factor
// exposures.
type FactorRiskMetrics struct {
	Mean          float64
	Std           float64
	Max           float64
	Min           float64
	Concentration float64 // largest exposure over sum of absolute exposures
}

// ConcentrationMetrics describes how concentrated a bucketed weight map is.
type ConcentrationMetrics struct {
	MaxConcentration     float64
	HerfindahlIndex      float64
	Entropy              float64
	NumBuckets           int
	DiversificationScore float64 // 1 - Herfindahl
}

// CorrelationSummary describes the pairwise correlation structure of the
// portfolio holdings.
type CorrelationSummary struct {
	Average          float64
	Max              float64
	HighlyCorrelated bool // average above the configured threshold
	RiskScore        float64
}

// LiquiditySummary describes the portfolio's ability to exit positions,
// derived from instrument size buckets.
type LiquiditySummary struct {
	PortfolioScore float64
	RiskScore      float64 // 1 - PortfolioScore
	PerInstrument  map[string]float64
}

// ExposureReport is the full concentration and diversification picture for a
// weight vector and its instrument metadata.
type ExposureReport struct {
	ID          uuid.UUID
	GeneratedAt time.Time

	FactorExposure map[string]float64
	FactorRisk     FactorRiskMetrics

	SectorWeights       map[string]float64
	SectorConcentration ConcentrationMetrics

	StyleWeights       map[string]float64
	StyleConcentration ConcentrationMetrics

	Correlation CorrelationSummary
	Liquidity   LiquiditySummary

	// CompositeRiskScore is the unweighted mean of the available sub-scores,
	// each already normalized to [0, 1].
	CompositeRiskScore float64
}
