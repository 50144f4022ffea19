package training

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-ml/internal/types"
	"github.com/stitts-dev/dfs-ml/internal/validation"
)

// categoryRows builds usable rows for one category with daily timestamps and
// a label the linear candidates can actually learn from.
func categoryRows(category string, n int) []types.Row {
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]types.Row, n)
	for i := 0; i < n; i++ {
		avg5 := 8.0 + 3.0*math.Sin(float64(i)*0.7)
		avg10 := 8.0 + 2.0*math.Sin(float64(i)*0.3+1)
		avg15 := 8.0 + 1.5*math.Sin(float64(i)*0.15+2)
		trend := math.Sin(float64(i) * 1.1)
		since := float64(i % 4)
		consistency := 0.5 + 0.3*math.Sin(float64(i)*0.45)

		rows[i] = types.Row{
			EntityID:   int64(1 + i%3),
			Category:   category,
			Timestamp:  start.AddDate(0, 0, i),
			EventIndex: i + 1,
			Label:      1.5 + 2*avg5 + 0.3*avg10 + 0.1*avg15 + 3*trend - 0.2*since + consistency,
			Features: types.FeatureVector{
				AvgPointsL5:        &avg5,
				AvgPointsL10:       &avg10,
				AvgPointsL15:       &avg15,
				GamesSinceLastGood: &since,
				TrendLast5:         &trend,
				ConsistencyScore:   &consistency,
			},
		}
	}
	return rows
}

type failingAlgorithm struct{}

func (failingAlgorithm) Name() string { return "explodes" }

func (failingAlgorithm) Fit(X [][]float64, y []float64) (Model, error) {
	return nil, errors.New("synthetic fit failure")
}

type constantModel struct {
	name  string
	value float64
}

func (m constantModel) Predict(x []float64) float64 { return m.value }

func (m constantModel) Algorithm() string { return m.name }

func (m constantModel) FeatureImportance(names []string) map[string]float64 { return nil }

type constantAlgorithm struct {
	name  string
	value float64
}

func (a constantAlgorithm) Name() string { return a.name }

func (a constantAlgorithm) Fit(X [][]float64, y []float64) (Model, error) {
	return constantModel{name: a.name, value: a.value}, nil
}

func TestTrain_ProducesBundle(t *testing.T) {
	trainer := NewGroupTrainer(DefaultTrainerConfig(), NewRegistry(NewLinearAlgorithm(), NewRidgeAlgorithm(1.0)))

	bundle, err := trainer.Train("OF", categoryRows("OF", 60))
	require.NoError(t, err)
	require.NotNil(t, bundle)

	assert.Equal(t, "OF", bundle.Category)
	assert.NotNil(t, bundle.Model)
	assert.NotNil(t, bundle.Scaler)
	assert.GreaterOrEqual(t, len(bundle.FeatureNames), 2)
	assert.Equal(t, bundle.FeatureNames, bundle.Performance.FeatureNames)
	assert.Equal(t, 60, bundle.Performance.SampleCount)
	assert.Greater(t, bundle.Performance.TestRows, 0)
	assert.False(t, bundle.Performance.CreatedAt.IsZero())

	// The label is an exact linear function of the features, so the linear
	// candidate should fit it nearly perfectly on held-out data.
	assert.Greater(t, bundle.Performance.HeldOutR2, 0.95)
	assert.Less(t, bundle.Performance.HeldOutMAE, 1.0)
}

func TestTrain_InsufficientDataSkipsCategory(t *testing.T) {
	trainer := NewGroupTrainer(DefaultTrainerConfig(), NewRegistry(NewLinearAlgorithm()))

	bundle, err := trainer.Train("C", categoryRows("C", 25))
	assert.Nil(t, bundle)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrain_InsufficientFeatures(t *testing.T) {
	rows := categoryRows("SS", 60)
	// Blank out everything except one column.
	for i := range rows {
		rows[i].Features = types.FeatureVector{AvgPointsL5: rows[i].Features.AvgPointsL5}
	}

	trainer := NewGroupTrainer(DefaultTrainerConfig(), NewRegistry(NewLinearAlgorithm()))
	_, err := trainer.Train("SS", rows)
	assert.ErrorIs(t, err, ErrInsufficientFeatures)
}

func TestTrain_LowCoverageFeatureExcluded(t *testing.T) {
	rows := categoryRows("2B", 60)
	// Trend present in only half the rows: below the 70% threshold.
	for i := range rows {
		if i%2 == 0 {
			rows[i].Features.TrendLast5 = nil
		}
	}

	trainer := NewGroupTrainer(DefaultTrainerConfig(), NewRegistry(NewLinearAlgorithm()))
	bundle, err := trainer.Train("2B", rows)
	require.NoError(t, err)
	assert.NotContains(t, bundle.FeatureNames, types.FeatureTrendLast5)
	assert.InDelta(t, 0.5, bundle.Performance.FeatureCoverage[types.FeatureTrendLast5], 1e-9)
}

func TestTrain_FailingCandidateIsExcludedNotFatal(t *testing.T) {
	registry := NewRegistry(failingAlgorithm{}, NewLinearAlgorithm())
	trainer := NewGroupTrainer(DefaultTrainerConfig(), registry)

	bundle, err := trainer.Train("OF", categoryRows("OF", 60))
	require.NoError(t, err)
	assert.Equal(t, "linear", bundle.Performance.Algorithm)
}

func TestTrain_AllCandidatesFailing(t *testing.T) {
	trainer := NewGroupTrainer(DefaultTrainerConfig(), NewRegistry(failingAlgorithm{}))

	_, err := trainer.Train("OF", categoryRows("OF", 60))
	assert.ErrorIs(t, err, ErrAllCandidatesFailed)
}

func TestTrain_TieBreaksOnRegistrationOrder(t *testing.T) {
	// Two candidates producing identical predictions: identical R² and MAE.
	registry := NewRegistry(
		constantAlgorithm{name: "first", value: 10},
		constantAlgorithm{name: "second", value: 10},
	)
	trainer := NewGroupTrainer(DefaultTrainerConfig(), registry)

	bundle, err := trainer.Train("OF", categoryRows("OF", 60))
	require.NoError(t, err)
	assert.Equal(t, "first", bundle.Performance.Algorithm)
}

func TestTrain_PoorModelStillPackagedWithLowConfidence(t *testing.T) {
	// A constant predictor scores R² <= 0 on held-out data but is still
	// packaged; the calibrator reports the weakness instead of hiding it.
	registry := NewRegistry(constantAlgorithm{name: "mean_guess", value: 0})
	trainer := NewGroupTrainer(DefaultTrainerConfig(), registry)

	bundle, err := trainer.Train("OF", categoryRows("OF", 60))
	require.NoError(t, err)
	assert.LessOrEqual(t, bundle.Performance.HeldOutR2, 0.0)
	assert.LessOrEqual(t, bundle.Confidence(), 0.2)
}

func TestTrain_DegenerateSplitSurfaces(t *testing.T) {
	config := DefaultTrainerConfig()
	config.MinRows = 10
	config.Split.GapDays = 365
	trainer := NewGroupTrainer(config, NewRegistry(NewLinearAlgorithm()))

	_, err := trainer.Train("OF", categoryRows("OF", 40))
	assert.ErrorIs(t, err, validation.ErrDegenerateSplit)
}

func TestTrain_FirstEventRowsIgnored(t *testing.T) {
	rows := categoryRows("OF", 35)
	firstEvent := types.Row{
		EntityID:   99,
		Category:   "OF",
		Timestamp:  rows[0].Timestamp,
		EventIndex: 0,
		Label:      5,
	}
	trainer := NewGroupTrainer(DefaultTrainerConfig(), NewRegistry(NewLinearAlgorithm()))

	bundle, err := trainer.Train("OF", append([]types.Row{firstEvent}, rows...))
	require.NoError(t, err)
	assert.Equal(t, 35, bundle.Performance.SampleCount)
}
