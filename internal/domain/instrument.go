package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// InstrumentInfo is the static metadata the engine consumes about an
// investable instrument. It is supplied by the external registry
// collaborator alongside the instrument's value series.
type InstrumentInfo struct {
	ID     string
	Name   string
	Sector string
	Style  string
	// AUM is the instrument's size in hundreds of millions of the reporting
	// currency. It drives the discrete liquidity score.
	AUM decimal.Decimal
	// Factors holds arbitrary named numeric attributes (value, growth,
	// momentum, ...) scored by the registry.
	Factors map[string]float64
}

// Validate ensures the metadata adheres to domain rules.
func (i *InstrumentInfo) Validate() error {
	if i.ID == "" {
		return errors.New("instrument ID cannot be empty")
	}
	if i.AUM.IsNegative() {
		return errors.New("instrument AUM cannot be negative")
	}
	return nil
}

// FactorScore returns the named factor score, or 0 when the factor is not
// scored for this instrument.
func (i *InstrumentInfo) FactorScore(name string) float64 {
	if i.Factors == nil {
		return 0
	}
	return i.Factors[name]
}
