package timeseries

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-ml/internal/types"
	"github.com/stitts-dev/dfs-ml/pkg/logger"
)

// EntityTimeSeries wraps a single entity's events, sorted ascending by
// timestamp. The ordering invariant is established at construction and the
// event slice is never mutated afterwards.
type EntityTimeSeries struct {
	entityID int64
	category string
	events   []types.Event
}

// New builds a series for one entity. Events are copied and sorted by
// timestamp; duplicate timestamps are a data-quality warning, not an error
// (doubleheaders are real, but more than two games on a date is suspicious).
func New(entityID int64, category string, events []types.Event) *EntityTimeSeries {
	sorted := make([]types.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	dupes := 0
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Timestamp.Equal(sorted[i-1].Timestamp) {
			dupes++
		}
	}
	if dupes > 0 {
		logger.WithComponent("timeseries").WithFields(logrus.Fields{
			"entity_id":            entityID,
			"duplicate_timestamps": dupes,
		}).Warn("Entity has events sharing a timestamp")
	}

	return &EntityTimeSeries{
		entityID: entityID,
		category: category,
		events:   sorted,
	}
}

// EntityID returns the stable integer ID of the tracked entity.
func (s *EntityTimeSeries) EntityID() int64 {
	return s.entityID
}

// Category returns the grouping key the entity's model is trained under.
func (s *EntityTimeSeries) Category() string {
	return s.category
}

// Len returns the number of events in the series.
func (s *EntityTimeSeries) Len() int {
	return len(s.events)
}

// Event returns the event at chronological index i.
func (s *EntityTimeSeries) Event(i int) types.Event {
	return s.events[i]
}

// Labels returns the label sequence in chronological order.
func (s *EntityTimeSeries) Labels() []float64 {
	out := make([]float64, len(s.events))
	for i, e := range s.events {
		out[i] = e.Label
	}
	return out
}

// FromEvents groups a flat event slice into one series per entity. The
// category of a series is taken from the entity's most recent event, so a
// mid-season position change trains under the current position.
func FromEvents(events []types.Event) []*EntityTimeSeries {
	byEntity := make(map[int64][]types.Event)
	var order []int64
	for _, e := range events {
		if _, ok := byEntity[e.EntityID]; !ok {
			order = append(order, e.EntityID)
		}
		byEntity[e.EntityID] = append(byEntity[e.EntityID], e)
	}

	out := make([]*EntityTimeSeries, 0, len(order))
	for _, id := range order {
		evs := byEntity[id]
		series := New(id, "", evs)
		if series.Len() > 0 {
			series.category = series.events[series.Len()-1].Category
		}
		out = append(out, series)
	}
	return out
}
