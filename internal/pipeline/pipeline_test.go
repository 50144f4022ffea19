package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-ml/internal/training"
	"github.com/stitts-dev/dfs-ml/internal/types"
)

func eventsFor(entityID int64, category string, n int, end time.Time) []types.Event {
	events := make([]types.Event, n)
	for i := 0; i < n; i++ {
		events[i] = types.Event{
			EntityID:  entityID,
			Timestamp: end.AddDate(0, 0, -(n - i)),
			Category:  category,
			Label:     10 + 5*math.Sin(0.35*float64(i)),
		}
	}
	return events
}

func newTestPipeline() *Pipeline {
	return New(DefaultConfig(), training.NewRegistry(training.NewLinearAlgorithm()))
}

func TestRun_PartialSuccess(t *testing.T) {
	now := time.Now()
	events := eventsFor(1, "guard", 61, now)
	events = append(events, eventsFor(2, "center", 3, now)...)

	summary, err := newTestPipeline().Run(context.Background(), events)
	require.NoError(t, err)

	// The thin category is skipped; the deep one still trains.
	require.Contains(t, summary.Bundles, "guard")
	assert.Equal(t, ReasonInsufficientData, summary.Skipped["center"])
	assert.NotContains(t, summary.Bundles, "center")

	bundle := summary.Bundles["guard"]
	assert.Equal(t, "guard", bundle.Category)
	assert.NotNil(t, bundle.Model)
	assert.NotNil(t, bundle.Scaler)
	assert.Greater(t, bundle.Performance.TestRows, 0)
	assert.NotEmpty(t, summary.RunID)
	assert.False(t, summary.CompletedAt.Before(summary.StartedAt))
}

func TestRun_AllCategoriesTrain(t *testing.T) {
	now := time.Now()
	events := eventsFor(1, "guard", 61, now)
	events = append(events, eventsFor(2, "forward", 61, now)...)

	summary, err := newTestPipeline().Run(context.Background(), events)
	require.NoError(t, err)

	assert.Len(t, summary.Bundles, 2)
	assert.Empty(t, summary.Skipped)
	require.NotNil(t, summary.Validation)
	assert.False(t, summary.Validation.LeakageDetected())
}

func TestRunDataset_AbortsOnLeakage(t *testing.T) {
	now := time.Now()
	leaked := 8.0
	ds := types.Dataset{
		GeneratedAt: now,
		Rows: []types.Row{
			{
				EntityID:   1,
				Category:   "guard",
				Timestamp:  now.AddDate(0, 0, -2),
				EventIndex: 0,
				// A first event can have no history, so populated
				// features here mean the generator looked ahead.
				Features: types.FeatureVector{AvgPointsL5: &leaked},
				Label:    12,
			},
			{
				EntityID:   1,
				Category:   "guard",
				Timestamp:  now.AddDate(0, 0, -1),
				EventIndex: 1,
				Features:   types.FeatureVector{AvgPointsL5: &leaked},
				Label:      14,
			},
		},
	}

	summary, err := newTestPipeline().RunDataset(context.Background(), ds)
	require.ErrorIs(t, err, ErrLeakageDetected)
	require.NotNil(t, summary.Validation)
	assert.True(t, summary.Validation.LeakageDetected())
	assert.Empty(t, summary.Bundles, "no category trains on an untrusted dataset")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	now := time.Now()
	config := DefaultConfig()
	config.Workers = 1
	p := New(config, training.NewRegistry(training.NewLinearAlgorithm()))

	summary, err := p.Run(ctx, eventsFor(1, "guard", 61, now))
	require.NoError(t, err)
	// With the sole worker slot contested by cancellation, the category may
	// still train or may be recorded as skipped, but the run itself completes.
	assert.Equal(t, 1, len(summary.Bundles)+len(summary.Skipped))
}

func TestSkipReason_Classification(t *testing.T) {
	assert.Equal(t, ReasonInsufficientData, skipReason(training.ErrInsufficientData))
	assert.Equal(t, ReasonInsufficientFeatures, skipReason(training.ErrInsufficientFeatures))
	assert.Equal(t, ReasonAllCandidatesFailed, skipReason(training.ErrAllCandidatesFailed))
}
