package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightVectorValidate_SumsToOne(t *testing.T) {
	w := WeightVector{"a": 0.6, "b": 0.4}
	assert.NoError(t, w.Validate())
}

func TestWeightVectorValidate_Empty(t *testing.T) {
	assert.NoError(t, WeightVector{}.Validate())
}

func TestWeightVectorValidate_NegativeWeight(t *testing.T) {
	w := WeightVector{"a": 1.2, "b": -0.2}
	assert.Error(t, w.Validate())
}

func TestWeightVectorValidate_SumOffByMoreThanTolerance(t *testing.T) {
	w := WeightVector{"a": 0.5, "b": 0.4}
	assert.Error(t, w.Validate())
}

func TestWeightVectorNormalized_RescalesToOne(t *testing.T) {
	w := WeightVector{"a": 2, "b": 2}
	n := w.Normalized()
	assert.InDelta(t, 0.5, n["a"], 1e-12)
	assert.InDelta(t, 0.5, n["b"], 1e-12)
	assert.InDelta(t, 1.0, n.Sum(), WeightSumTolerance)
}

func TestWeightVectorNormalized_ZeroSumUnchanged(t *testing.T) {
	w := WeightVector{"a": 0, "b": 0}
	n := w.Normalized()
	assert.Zero(t, n["a"])
	assert.Zero(t, n["b"])
}

func TestEqualWeights_Uniform(t *testing.T) {
	w := EqualWeights([]string{"a", "b", "c", "d"})
	require.Len(t, w, 4)
	for id, v := range w {
		assert.InDelta(t, 0.25, v, 1e-12, "weight for %s", id)
	}
	require.NoError(t, w.Validate())
}

func TestEqualWeights_EmptyInput(t *testing.T) {
	w := EqualWeights(nil)
	assert.Empty(t, w)
}
