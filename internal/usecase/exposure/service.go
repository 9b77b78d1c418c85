package exposure

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfolio/quantfolio-engine/internal/domain"
	"github.com/quantfolio/quantfolio-engine/internal/usecase/covariance"
)

// HighCorrelationThreshold flags portfolios whose average pairwise
// correlation indicates the holdings move together.
const HighCorrelationThreshold = 0.7

// styleSpreadThreshold separates value/growth tilts from balanced
// instruments when deriving styles from factor scores.
const styleSpreadThreshold = 0.2

// liquidityBucket maps an instrument size floor to its liquidity score.
type liquidityBucket struct {
	minAUM decimal.Decimal
	score  float64
}

// liquidityBuckets are ordered largest first; sizes are in hundreds of
// millions of the reporting currency.
var liquidityBuckets = []liquidityBucket{
	{decimal.NewFromInt(100), 1.0},
	{decimal.NewFromInt(50), 0.8},
	{decimal.NewFromInt(20), 0.6},
	{decimal.NewFromInt(10), 0.4},
}

const minLiquidityScore = 0.2

// Analyzer aggregates factor, sector, style, correlation, and liquidity
// structure of a weighted portfolio into concentration and diversification
// scores.
type Analyzer struct {
	log *zap.Logger
	cov *covariance.Estimator
}

// NewAnalyzer creates an exposure analyzer. Nil collaborators get defaults.
func NewAnalyzer(log *zap.Logger, cov *covariance.Estimator) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	if cov == nil {
		cov = covariance.NewEstimator(log)
	}
	return &Analyzer{log: log, cov: cov}
}

// AnalyzeFactors computes the portfolio-level exposure to every factor seen
// in the metadata: the weighted average of each instrument's per-factor
// score, normalized by the weight actually covered by metadata.
func (a *Analyzer) AnalyzeFactors(weights domain.WeightVector, info map[string]*domain.InstrumentInfo) (map[string]float64, domain.FactorRiskMetrics) {
	exposure := make(map[string]float64)
	if len(weights) == 0 || len(info) == 0 {
		return exposure, domain.FactorRiskMetrics{}
	}

	factors := make(map[string]struct{})
	for _, i := range info {
		for name := range i.Factors {
			factors[name] = struct{}{}
		}
	}

	for name := range factors {
		weighted := 0.0
		covered := 0.0
		for id, w := range weights {
			i, ok := info[id]
			if !ok {
				continue // MissingInstrumentData: skipped, not fatal
			}
			weighted += w * i.FactorScore(name)
			covered += w
		}
		if covered > 0 {
			exposure[name] = weighted / covered
		}
	}

	return exposure, factorRisk(exposure)
}

func factorRisk(exposure map[string]float64) domain.FactorRiskMetrics {
	if len(exposure) == 0 {
		return domain.FactorRiskMetrics{}
	}
	var sum, absSum float64
	maxV := math.Inf(-1)
	minV := math.Inf(1)
	for _, v := range exposure {
		sum += v
		absSum += math.Abs(v)
		maxV = math.Max(maxV, v)
		minV = math.Min(minV, v)
	}
	n := float64(len(exposure))
	mean := sum / n
	variance := 0.0
	for _, v := range exposure {
		variance += (v - mean) * (v - mean)
	}
	concentration := 0.0
	if absSum > 0 {
		concentration = maxV / absSum
	}
	return domain.FactorRiskMetrics{
		Mean:          mean,
		Std:           math.Sqrt(variance / n),
		Max:           maxV,
		Min:           minV,
		Concentration: concentration,
	}
}

// AnalyzeBuckets sums weights into named buckets (sector or style labels)
// and reports the concentration picture: Herfindahl index, entropy, and the
// diversification score 1 - Herfindahl.
func (a *Analyzer) AnalyzeBuckets(weights domain.WeightVector, labels map[string]string) (map[string]float64, domain.ConcentrationMetrics) {
	bucketWeights := make(map[string]float64)
	total := 0.0
	for id, w := range weights {
		label, ok := labels[id]
		if !ok {
			continue
		}
		bucketWeights[label] += w
		total += w
	}
	if total == 0 {
		return bucketWeights, domain.ConcentrationMetrics{}
	}
	for label := range bucketWeights {
		bucketWeights[label] /= total
	}

	var maxW, herfindahl, entropy float64
	for _, w := range bucketWeights {
		maxW = math.Max(maxW, w)
		herfindahl += w * w
		if w > 0 {
			entropy -= w * math.Log(w)
		}
	}
	return bucketWeights, domain.ConcentrationMetrics{
		MaxConcentration:     maxW,
		HerfindahlIndex:      herfindahl,
		Entropy:              entropy,
		NumBuckets:           len(bucketWeights),
		DiversificationScore: 1 - herfindahl,
	}
}

// AnalyzeCorrelation reports the average and maximum off-diagonal pairwise
// correlation over the holdings' aligned returns. Portfolios with fewer than
// two priced holdings report zeros; an unpriceable intersection reports the
// neutral 0.5 average used when correlation cannot be estimated.
func (a *Analyzer) AnalyzeCorrelation(weights domain.WeightVector, series map[string]domain.ValueSeries) domain.CorrelationSummary {
	held := make(map[string]domain.ValueSeries)
	for id := range weights {
		if s, ok := series[id]; ok {
			held[id] = s
		}
	}
	if len(held) < 2 {
		return domain.CorrelationSummary{}
	}
	_, dates := a.cov.AlignedReturns(held)
	if len(dates) < 2 {
		return domain.CorrelationSummary{Average: 0.5, Max: 1.0, HighlyCorrelated: false, RiskScore: 0.5}
	}

	ids, corr := a.cov.Correlation(held)
	n := len(ids)
	var sum float64
	maxC := math.Inf(-1)
	count := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := corr.At(i, j)
			sum += c
			maxC = math.Max(maxC, c)
			count++
		}
	}
	avg := sum / float64(count)
	return domain.CorrelationSummary{
		Average:          avg,
		Max:              maxC,
		HighlyCorrelated: avg > HighCorrelationThreshold,
		RiskScore:        avg,
	}
}

// AnalyzeLiquidity maps each holding's size into its discrete liquidity
// score and weight-averages across the portfolio. The risk score is the
// complement: less liquid means riskier.
func (a *Analyzer) AnalyzeLiquidity(weights domain.WeightVector, info map[string]*domain.InstrumentInfo) domain.LiquiditySummary {
	perInstrument := make(map[string]float64)
	weighted := 0.0
	covered := 0.0
	for id, w := range weights {
		i, ok := info[id]
		if !ok {
			continue
		}
		score := liquidityScore(i.AUM)
		perInstrument[id] = score
		weighted += w * score
		covered += w
	}
	if covered == 0 {
		return domain.LiquiditySummary{PortfolioScore: 0, RiskScore: 1, PerInstrument: perInstrument}
	}
	portfolio := weighted / covered
	return domain.LiquiditySummary{
		PortfolioScore: portfolio,
		RiskScore:      1 - portfolio,
		PerInstrument:  perInstrument,
	}
}

func liquidityScore(aum decimal.Decimal) float64 {
	for _, b := range liquidityBuckets {
		if aum.GreaterThanOrEqual(b.minAUM) {
			return b.score
		}
	}
	return minLiquidityScore
}

// Analyze runs the full exposure analysis and aggregates the sub-scores into
// the composite risk score: an unweighted mean of whichever sub-scores are
// available, each a [0, 1] concentration-style value.
func (a *Analyzer) Analyze(
	weights domain.WeightVector,
	info map[string]*domain.InstrumentInfo,
	series map[string]domain.ValueSeries,
) domain.ExposureReport {
	report := domain.ExposureReport{
		ID:          uuid.New(),
		GeneratedAt: time.Now(),
	}

	report.FactorExposure, report.FactorRisk = a.AnalyzeFactors(weights, info)

	sectors := make(map[string]string)
	for id, i := range info {
		if i.Sector != "" {
			sectors[id] = i.Sector
		}
	}
	report.SectorWeights, report.SectorConcentration = a.AnalyzeBuckets(weights, sectors)

	report.StyleWeights, report.StyleConcentration = a.AnalyzeBuckets(weights, deriveStyles(info))
	report.Correlation = a.AnalyzeCorrelation(weights, series)
	report.Liquidity = a.AnalyzeLiquidity(weights, info)

	var scores []float64
	if len(report.FactorExposure) > 0 {
		scores = append(scores, report.FactorRisk.Concentration)
	}
	if report.SectorConcentration.NumBuckets > 0 {
		scores = append(scores, report.SectorConcentration.MaxConcentration)
	}
	if report.StyleConcentration.NumBuckets > 0 {
		scores = append(scores, report.StyleConcentration.MaxConcentration)
	}
	if len(series) > 0 {
		scores = append(scores, report.Correlation.RiskScore)
	}
	if len(report.Liquidity.PerInstrument) > 0 {
		scores = append(scores, report.Liquidity.RiskScore)
	}
	if len(scores) > 0 {
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		report.CompositeRiskScore = sum / float64(len(scores))
	}

	a.log.Debug("exposure analysis complete",
		zap.Int("holdings", len(weights)),
		zap.Float64("composite_risk", report.CompositeRiskScore))
	return report
}

// deriveStyles classifies each instrument as value, growth, or balanced from
// the spread between its value and growth factor scores. Instruments with an
// explicit style label keep it.
func deriveStyles(info map[string]*domain.InstrumentInfo) map[string]string {
	styles := make(map[string]string, len(info))
	for id, i := range info {
		if i.Style != "" {
			styles[id] = i.Style
			continue
		}
		value := i.FactorScore("value")
		growth := i.FactorScore("growth")
		switch {
		case math.Abs(value-growth) < styleSpreadThreshold:
			styles[id] = "balanced"
		case value > growth:
			styles[id] = "value"
		default:
			styles[id] = "growth"
		}
	}
	return styles
}
