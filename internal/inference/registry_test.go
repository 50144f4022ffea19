package inference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-ml/internal/features"
	"github.com/stitts-dev/dfs-ml/internal/timeseries"
	"github.com/stitts-dev/dfs-ml/internal/training"
	"github.com/stitts-dev/dfs-ml/internal/types"
)

// testBundle builds a guard bundle over two features with an identity scaler,
// so predictions are directly checkable: 10 + 2*avg5 - 1*since.
func testBundle(r2 float64) *training.ModelBundle {
	names := []string{types.FeatureAvgPointsL5, types.FeatureGamesSinceLastGood}
	return &training.ModelBundle{
		Category: "guard",
		Model: &training.LinearModel{
			Alg:          "linear",
			Intercept:    10,
			Coefficients: []float64{2, -1},
		},
		Scaler: &training.Scaler{
			Means: []float64{0, 0},
			Stds:  []float64{1, 1},
		},
		FeatureNames: names,
		Performance: training.PerformanceRecord{
			Algorithm:    "linear",
			FeatureNames: names,
			HeldOutR2:    r2,
		},
	}
}

func bundles(r2 float64) map[string]*training.ModelBundle {
	return map[string]*training.ModelBundle{"guard": testBundle(r2)}
}

func TestPredict_FullFeatures(t *testing.T) {
	reg := NewRegistry(bundles(0.75), nil)

	p, err := reg.Predict("guard", map[string]float64{
		types.FeatureAvgPointsL5:        8,
		types.FeatureGamesSinceLastGood: 3,
	}, EntityMetadata{EntityID: 7})
	require.NoError(t, err)

	assert.InDelta(t, 10+2*8-3, p.Points, 1e-9)
	assert.Equal(t, 2, p.FeaturesUsed)
	assert.Equal(t, "linear", p.Algorithm)
	assert.InDelta(t, 0.9, p.Confidence, 1e-9)
}

func TestPredict_MissingFeatureNeutralDefault(t *testing.T) {
	reg := NewRegistry(bundles(0.75), nil)

	p, err := reg.Predict("guard", map[string]float64{
		types.FeatureAvgPointsL5: 8,
	}, EntityMetadata{})
	require.NoError(t, err)

	// The absent feature contributes the neutral 0; the model still runs.
	assert.InDelta(t, 10+2*8, p.Points, 1e-9)
	assert.Equal(t, 1, p.FeaturesUsed)
}

func TestPredict_IgnoresFeaturesOutsideBundle(t *testing.T) {
	reg := NewRegistry(bundles(0.3), nil)

	p, err := reg.Predict("guard", map[string]float64{
		types.FeatureAvgPointsL5:        8,
		types.FeatureGamesSinceLastGood: 3,
		types.FeatureTrendLast5:         99,
	}, EntityMetadata{})
	require.NoError(t, err)

	assert.InDelta(t, 10+2*8-3, p.Points, 1e-9)
	assert.Equal(t, 2, p.FeaturesUsed)
}

func TestPredict_UnknownCategory(t *testing.T) {
	reg := NewRegistry(bundles(0.75), nil)

	_, err := reg.Predict("kicker", map[string]float64{}, EntityMetadata{})
	assert.Error(t, err)
}

func TestPredict_ConfidenceTracksHeldOutFit(t *testing.T) {
	weak, err := NewRegistry(bundles(-0.1), nil).Predict("guard", nil, EntityMetadata{})
	require.NoError(t, err)
	strong, err := NewRegistry(bundles(0.8), nil).Predict("guard", nil, EntityMetadata{})
	require.NoError(t, err)

	assert.InDelta(t, 0.2, weak.Confidence, 1e-9)
	assert.InDelta(t, 0.9, strong.Confidence, 1e-9)
	assert.Less(t, weak.Confidence, strong.Confidence)
}

func TestTierFloorPolicy(t *testing.T) {
	policy := TierFloorPolicy{Floors: map[string]float64{"elite": 20}}
	reg := NewRegistry(bundles(0.75), policy)

	// Raw output 10 + 2*1 = 12, floored to 20 for the elite tier.
	floored, err := reg.Predict("guard", map[string]float64{
		types.FeatureAvgPointsL5: 1,
	}, EntityMetadata{Tier: "elite"})
	require.NoError(t, err)
	assert.Equal(t, 20.0, floored.Points)

	unfloored, err := reg.Predict("guard", map[string]float64{
		types.FeatureAvgPointsL5: 1,
	}, EntityMetadata{Tier: "bench"})
	require.NoError(t, err)
	assert.InDelta(t, 12.0, unfloored.Points, 1e-9)

	// A floor never lowers a prediction above it.
	high, err := reg.Predict("guard", map[string]float64{
		types.FeatureAvgPointsL5: 30,
	}, EntityMetadata{Tier: "elite"})
	require.NoError(t, err)
	assert.InDelta(t, 70.0, high.Points, 1e-9)
}

func TestPredictNext(t *testing.T) {
	now := time.Now()
	events := make([]types.Event, 6)
	for i := range events {
		events[i] = types.Event{
			EntityID:  7,
			Timestamp: now.AddDate(0, 0, i-len(events)),
			Category:  "guard",
			Label:     12, // every game good, so games_since_last_good is 0
		}
	}
	series := timeseries.New(7, "guard", events)
	gen := features.NewGenerator(features.DefaultGeneratorConfig())

	reg := NewRegistry(bundles(0.75), nil)
	p, err := reg.PredictNext(series, gen, EntityMetadata{EntityID: 7})
	require.NoError(t, err)

	// avg5 over constant 12s is 12, games_since is 0.
	assert.InDelta(t, 10+2*12, p.Points, 1e-9)
	assert.Equal(t, "guard", p.Category)
}

func TestPredictNext_EmptySeries(t *testing.T) {
	series := timeseries.New(9, "guard", nil)
	gen := features.NewGenerator(features.DefaultGeneratorConfig())

	_, err := NewRegistry(bundles(0.75), nil).PredictNext(series, gen, EntityMetadata{EntityID: 9})
	assert.Error(t, err)
}
