package domain

import (
	"errors"
	"time"
)

// ValuePoint is a single observation of an instrument's per-unit value (NAV)
// on a given date.
type ValuePoint struct {
	Date  time.Time
	Value float64
}

// ValueSeries is an ordered sequence of value points with strictly increasing
// dates. It is produced by a SeriesProvider and is never mutated afterwards;
// every transformation returns a new series.
type ValueSeries []ValuePoint

// Validate ensures the series adheres to domain rules:
// length >= 1, all values positive, dates strictly increasing.
func (s ValueSeries) Validate() error {
	if len(s) == 0 {
		return errors.New("value series cannot be empty")
	}
	for i, p := range s {
		if p.Value <= 0 {
			return errors.New("value series entries must be positive")
		}
		if i > 0 && !p.Date.After(s[i-1].Date) {
			return errors.New("value series dates must be strictly increasing")
		}
	}
	return nil
}

// Returns derives the period-over-period relative changes.
// The result has length len(s)-1; periods whose prior value is zero are
// excluded rather than producing an undefined ratio.
func (s ValueSeries) Returns() ReturnSeries {
	if len(s) < 2 {
		return nil
	}
	out := make(ReturnSeries, 0, len(s)-1)
	for i := 1; i < len(s); i++ {
		prev := s[i-1].Value
		if prev == 0 {
			continue
		}
		out = append(out, s[i].Value/prev-1)
	}
	return out
}

// Values extracts the raw value column.
func (s ValueSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// First returns the earliest point. Panics on an empty series.
func (s ValueSeries) First() ValuePoint { return s[0] }

// Last returns the most recent point. Panics on an empty series.
func (s ValueSeries) Last() ValuePoint { return s[len(s)-1] }

// MaxDrawdown reports the most negative relative decline from the running
// peak, as a value <= 0. A series that never declines reports 0.
func (s ValueSeries) MaxDrawdown() float64 {
	if len(s) < 2 {
		return 0
	}
	maxDD := 0.0
	peak := s[0].Value
	for _, p := range s {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			dd := (p.Value - peak) / peak
			if dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Rebuild reconstructs a value series from a starting point and a return
// series: each value is the prior value times (1 + r). The result has
// len(returns)+1 points; dates are carried over from the receiver when it has
// matching length, otherwise they advance one day at a time from start.
func (s ValueSeries) Rebuild(returns ReturnSeries) ValueSeries {
	if len(s) == 0 {
		return nil
	}
	out := make(ValueSeries, 0, len(returns)+1)
	out = append(out, s[0])
	for i, r := range returns {
		var date time.Time
		if i+1 < len(s) {
			date = s[i+1].Date
		} else {
			date = out[len(out)-1].Date.AddDate(0, 0, 1)
		}
		out = append(out, ValuePoint{
			Date:  date,
			Value: out[len(out)-1].Value * (1 + r),
		})
	}
	return out
}

// ReturnSeries is a derived sequence of period-over-period relative changes.
type ReturnSeries []float64
