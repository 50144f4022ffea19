package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/stitts-dev/dfs-ml/internal/types"
	"github.com/stitts-dev/dfs-ml/pkg/logger"
)

// EventStore reads collected per-event records for the pipeline. The
// collaborator contract: rows are already deduplicated per entity per date
// and use a consistent calendar.
type EventStore struct {
	db     *DB
	logger *logrus.Entry
}

// NewEventStore creates an event store over an open connection.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{
		db:     db,
		logger: logger.WithComponent("event_store"),
	}
}

// LoadEvents returns every collected event ordered by entity and date.
func (s *EventStore) LoadEvents(ctx context.Context) ([]types.Event, error) {
	var logs []GameLog
	if err := s.db.WithContext(ctx).
		Order("entity_id, game_date").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to load game logs: %w", err)
	}

	events := make([]types.Event, 0, len(logs))
	for _, l := range logs {
		e, err := l.toEvent()
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"game_log_id": l.ID,
				"entity_id":   l.EntityID,
				"error":       err.Error(),
			}).Warn("Skipping malformed game log")
			continue
		}
		events = append(events, e)
	}

	s.logger.WithField("events", len(events)).Info("Loaded game logs")
	return events, nil
}

// SaveEvents persists collected events in batches.
func (s *EventStore) SaveEvents(ctx context.Context, events []types.Event) error {
	logs := make([]GameLog, 0, len(events))
	for _, e := range events {
		stats, err := json.Marshal(e.Stats)
		if err != nil {
			return fmt.Errorf("failed to marshal stats for entity %d: %w", e.EntityID, err)
		}
		logs = append(logs, GameLog{
			EntityID:      e.EntityID,
			GameDate:      e.Timestamp,
			Category:      e.Category,
			Stats:         datatypes.JSON(stats),
			FantasyPoints: e.Label,
		})
	}

	if err := s.db.WithContext(ctx).CreateInBatches(logs, 500).Error; err != nil {
		return fmt.Errorf("failed to save game logs: %w", err)
	}
	return nil
}

func (l GameLog) toEvent() (types.Event, error) {
	stats := make(map[string]float64)
	if len(l.Stats) > 0 {
		if err := json.Unmarshal(l.Stats, &stats); err != nil {
			return types.Event{}, fmt.Errorf("invalid stats payload: %w", err)
		}
	}
	return types.Event{
		EntityID:  l.EntityID,
		Timestamp: l.GameDate,
		Category:  l.Category,
		Stats:     stats,
		Label:     l.FantasyPoints,
	}, nil
}
