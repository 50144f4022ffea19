package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-ml/internal/types"
)

func TestNew_SortsOutOfOrderEvents(t *testing.T) {
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	events := []types.Event{
		{EntityID: 1, Timestamp: base.AddDate(0, 0, 2), Label: 30},
		{EntityID: 1, Timestamp: base, Label: 10},
		{EntityID: 1, Timestamp: base.AddDate(0, 0, 1), Label: 20},
	}

	s := New(1, "guard", events)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{10, 20, 30}, s.Labels())
	assert.True(t, s.Event(0).Timestamp.Before(s.Event(1).Timestamp))

	// The caller's slice is untouched.
	assert.Equal(t, 30.0, events[0].Label)
}

func TestFromEvents_GroupsByEntity(t *testing.T) {
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	events := []types.Event{
		{EntityID: 1, Timestamp: base, Category: "guard", Label: 10},
		{EntityID: 2, Timestamp: base, Category: "center", Label: 15},
		{EntityID: 1, Timestamp: base.AddDate(0, 0, 1), Category: "guard", Label: 12},
	}

	series := FromEvents(events)
	require.Len(t, series, 2)
	assert.Equal(t, int64(1), series[0].EntityID())
	assert.Equal(t, 2, series[0].Len())
	assert.Equal(t, "center", series[1].Category())
}

func TestFromEvents_CategoryFromLatestEvent(t *testing.T) {
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	events := []types.Event{
		{EntityID: 1, Timestamp: base, Category: "forward", Label: 10},
		{EntityID: 1, Timestamp: base.AddDate(0, 0, 30), Category: "center", Label: 12},
	}

	series := FromEvents(events)
	require.Len(t, series, 1)
	assert.Equal(t, "center", series[0].Category())
}
