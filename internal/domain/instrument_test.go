package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentInfoValidate(t *testing.T) {
	valid := &InstrumentInfo{ID: "f-001", Name: "Core Equity", AUM: decimal.NewFromInt(120)}
	assert.NoError(t, valid.Validate())

	missingID := &InstrumentInfo{Name: "No ID"}
	assert.Error(t, missingID.Validate())

	negativeAUM := &InstrumentInfo{ID: "f-002", AUM: decimal.NewFromInt(-1)}
	assert.Error(t, negativeAUM.Validate())
}

func TestInstrumentInfoFactorScore(t *testing.T) {
	scored := &InstrumentInfo{ID: "f-001", Factors: map[string]float64{"value": 0.7}}
	assert.Equal(t, 0.7, scored.FactorScore("value"))
	assert.Zero(t, scored.FactorScore("momentum"))

	unscored := &InstrumentInfo{ID: "f-002"}
	assert.Zero(t, unscored.FactorScore("value"))
}
