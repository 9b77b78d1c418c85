package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfolio/quantfolio-engine/internal/domain"
)

// TradingPeriodsPerYear is the trading-day annualization base.
const TradingPeriodsPerYear = 252

// CalendarDaysPerYear is the calendar-day annualization base.
const CalendarDaysPerYear = 365

// Convention selects how the total return is annualized.
type Convention string

const (
	// TradingDays compounds over the observation count:
	// (1+total)^(252/len(returns)) - 1. Used by portfolio-level callers.
	TradingDays Convention = "TRADING_DAYS"
	// CalendarDays compounds over the actual date span:
	// (1+total)^(365/days) - 1. Used by single-instrument callers.
	CalendarDays Convention = "CALENDAR_DAYS"
)

// Engine converts a value series into performance statistics.
// It holds only immutable configuration and is safe for concurrent use.
type Engine struct {
	convention Convention
}

// NewEngine creates a metrics engine with the given annualization
// convention. An unset convention defaults to TradingDays.
func NewEngine(convention Convention) *Engine {
	if convention == "" {
		convention = TradingDays
	}
	return &Engine{convention: convention}
}

// Compute derives the full metrics set for a value series.
//
// Series with fewer than 2 points return the neutral zero metrics instead of
// failing, so downstream aggregation never special-cases small samples.
// Ratios whose denominator is not positive degrade to 0, never NaN or Inf.
func (e *Engine) Compute(values domain.ValueSeries, riskFreeRate float64) domain.PerformanceMetrics {
	returns := values.Returns()
	if len(values) < 2 || len(returns) == 0 {
		return domain.PerformanceMetrics{}
	}

	totalReturn := 1.0
	for _, r := range returns {
		totalReturn *= 1 + r
	}
	totalReturn -= 1

	annualReturn := e.annualize(totalReturn, values, returns)
	volatility := annualizedStd(returns)

	sharpe := 0.0
	if volatility > 0 {
		sharpe = (annualReturn - riskFreeRate) / volatility
	}

	drawdowns := drawdownSeries(returns)
	maxDD, avgDD := summarizeDrawdowns(drawdowns)
	ddLength, recovery := drawdownDurations(drawdowns)

	downside := negativeReturns(returns)
	downsideDev := annualizedStd(downside)
	sortino := 0.0
	if downsideDev > 0 {
		sortino = (annualReturn - riskFreeRate) / downsideDev
	}

	calmar := 0.0
	if maxDD != 0 {
		calmar = annualReturn / math.Abs(maxDD)
	}

	winRate, plRatio := winStats(returns)
	infoRatio, trackingError := informationRatio(returns, riskFreeRate)

	return domain.PerformanceMetrics{
		TotalReturn:       totalReturn,
		AnnualReturn:      annualReturn,
		Volatility:        volatility,
		SharpeRatio:       sharpe,
		SortinoRatio:      sortino,
		CalmarRatio:       calmar,
		MaxDrawdown:       maxDD,
		AvgDrawdown:       avgDD,
		AvgDrawdownLength: ddLength,
		AvgRecoveryTime:   recovery,
		WinRate:           winRate,
		ProfitLossRatio:   plRatio,
		InformationRatio:  infoRatio,
		DownsideDeviation: downsideDev,
		TrackingError:     trackingError,
	}
}

// annualize compounds the total return onto a yearly basis using the
// configured convention.
func (e *Engine) annualize(totalReturn float64, values domain.ValueSeries, returns domain.ReturnSeries) float64 {
	base := 1 + totalReturn
	if base <= 0 {
		// A total loss (or worse, with leverage-like inputs) cannot be
		// compounded; report the total return itself.
		return totalReturn
	}
	switch e.convention {
	case CalendarDays:
		days := values.Last().Date.Sub(values.First().Date).Hours() / 24
		if days <= 0 {
			return 0
		}
		return math.Pow(base, CalendarDaysPerYear/days) - 1
	default:
		return math.Pow(base, TradingPeriodsPerYear/float64(len(returns))) - 1
	}
}

// annualizedStd is the sample standard deviation scaled by sqrt(252).
// Fewer than 2 observations yield 0.
func annualizedStd(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(TradingPeriodsPerYear)
}

// drawdownSeries computes the relative decline from the running maximum of
// the cumulative return path.
func drawdownSeries(returns domain.ReturnSeries) []float64 {
	out := make([]float64, len(returns))
	cum := 1.0
	peak := 1.0
	for i, r := range returns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		out[i] = cum/peak - 1
	}
	return out
}

func summarizeDrawdowns(drawdowns []float64) (maxDD, avgDD float64) {
	sum := 0.0
	count := 0
	for _, dd := range drawdowns {
		if dd < maxDD {
			maxDD = dd
		}
		if dd < 0 {
			sum += dd
			count++
		}
	}
	if count > 0 {
		avgDD = sum / float64(count)
	}
	return maxDD, avgDD
}

// drawdownDurations measures contiguous underwater intervals.
//
// Length counts every interval, including one still open at the end of the
// series. Recovery counts only intervals that ended with a return to the
// running maximum.
func drawdownDurations(drawdowns []float64) (avgLength, avgRecovery float64) {
	var lengths, recoveries []int
	inDrawdown := false
	start := 0
	for i, dd := range drawdowns {
		switch {
		case dd < 0 && !inDrawdown:
			inDrawdown = true
			start = i
		case dd >= 0 && inDrawdown:
			inDrawdown = false
			lengths = append(lengths, i-start)
			recoveries = append(recoveries, i-start)
		}
	}
	if inDrawdown {
		lengths = append(lengths, len(drawdowns)-start)
	}
	return meanInts(lengths), meanInts(recoveries)
}

func meanInts(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func negativeReturns(returns domain.ReturnSeries) domain.ReturnSeries {
	out := make(domain.ReturnSeries, 0)
	for _, r := range returns {
		if r < 0 {
			out = append(out, r)
		}
	}
	return out
}

// winStats computes the fraction of positive periods and the ratio of the
// average win to the average loss. A series without losses reports a ratio
// of 0 to keep the degrade-to-zero contract; it never reports Inf.
func winStats(returns domain.ReturnSeries) (winRate, plRatio float64) {
	var winSum, lossSum float64
	var wins, losses int
	for _, r := range returns {
		if r > 0 {
			winSum += r
			wins++
		} else if r < 0 {
			lossSum += r
			losses++
		}
	}
	winRate = float64(wins) / float64(len(returns))
	if wins > 0 && losses > 0 {
		avgWin := winSum / float64(wins)
		avgLoss := lossSum / float64(losses)
		plRatio = math.Abs(avgWin / avgLoss)
	}
	return winRate, plRatio
}

// informationRatio treats the risk-free rate as a trivial per-period
// benchmark; tracking error is the annualized standard deviation of the
// active return.
func informationRatio(returns domain.ReturnSeries, riskFreeRate float64) (ir, trackingError float64) {
	benchmark := riskFreeRate / TradingPeriodsPerYear
	active := make([]float64, len(returns))
	for i, r := range returns {
		active[i] = r - benchmark
	}
	trackingError = annualizedStd(active)
	if trackingError > 0 {
		ir = stat.Mean(active, nil) * TradingPeriodsPerYear / trackingError
	}
	return ir, trackingError
}
