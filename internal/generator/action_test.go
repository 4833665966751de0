package generator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecommsim/datagen/internal/generator"
)

func Test_ParseAction_AcceptsAllActionNames(t *testing.T) {
	for _, name := range []string{"view", "cart", "uncart", "purchase", "return"} {
		action, err := generator.ParseAction(name)
		require.NoError(t, err)
		assert.Equal(t, name, string(action))
	}

	_, err := generator.ParseAction("refund")
	assert.ErrorIs(t, err, generator.ErrUnknownAction)
}

func Test_NewWeights_NormalizesToProbabilities(t *testing.T) {
	tests := []struct {
		name    string
		weights map[string]float64
	}{
		{
			name:    "equal_unit_weights",
			weights: map[string]float64{"view": 1, "cart": 1, "uncart": 1, "purchase": 1, "return": 1},
		},
		{
			name:    "large_magnitudes",
			weights: map[string]float64{"view": 50000, "cart": 20000, "purchase": 3000},
		},
		{
			name:    "fractional_weights",
			weights: map[string]float64{"view": 0.6, "cart": 0.25, "uncart": 0.05, "purchase": 0.07, "return": 0.03},
		},
		{
			name:    "single_action",
			weights: map[string]float64{"purchase": 42},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights, err := generator.NewWeights(tt.weights)
			require.NoError(t, err)

			var sum float64
			for _, probability := range weights.Probabilities() {
				assert.GreaterOrEqual(t, probability, 0.0)
				sum += probability
			}

			assert.InDelta(t, 1.0, sum, 1e-9)
		})
	}
}

func Test_NewWeights_PreservesWeightRatios(t *testing.T) {
	weights, err := generator.NewWeights(map[string]float64{"view": 3, "cart": 1})
	require.NoError(t, err)

	probabilities := weights.Probabilities()
	assert.InDelta(t, 0.75, probabilities[generator.ActionView], 1e-9)
	assert.InDelta(t, 0.25, probabilities[generator.ActionCart], 1e-9)
}

func Test_NewWeights_RejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name    string
		weights map[string]float64
		wantErr error
	}{
		{
			name:    "unknown_action_name",
			weights: map[string]float64{"view": 1, "wishlist": 2},
			wantErr: generator.ErrUnknownAction,
		},
		{
			name:    "negative_weight",
			weights: map[string]float64{"view": 1, "cart": -1},
			wantErr: generator.ErrNegativeWeight,
		},
		{
			name:    "all_zero_weights",
			weights: map[string]float64{"view": 0, "cart": 0},
			wantErr: generator.ErrNoPositiveWeight,
		},
		{
			name:    "empty_table",
			weights: map[string]float64{},
			wantErr: generator.ErrNoPositiveWeight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generator.NewWeights(tt.weights)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
