package domain

// PerformanceMetrics is the fixed set of risk/return statistics derived from
// a single value series. It is computed once on demand and never mutated.
//
// All ratio fields degrade to 0 when their denominator is not positive; a
// perfectly flat series therefore reports all zeros rather than NaN or Inf.
type PerformanceMetrics struct {
	TotalReturn       float64
	AnnualReturn      float64
	Volatility        float64
	SharpeRatio       float64
	SortinoRatio      float64
	CalmarRatio       float64
	MaxDrawdown       float64 // <= 0
	AvgDrawdown       float64 // <= 0
	AvgDrawdownLength float64 // observation periods
	AvgRecoveryTime   float64 // observation periods
	WinRate           float64
	ProfitLossRatio   float64
	InformationRatio  float64
	DownsideDeviation float64
	TrackingError     float64
}
