package types

import (
	"time"
)

// Feature column names, in the order models consume them.
const (
	FeatureAvgPointsL5        = "avg_fantasy_points_L5"
	FeatureAvgPointsL10       = "avg_fantasy_points_L10"
	FeatureAvgPointsL15       = "avg_fantasy_points_L15"
	FeatureGamesSinceLastGood = "games_since_last_good_game"
	FeatureTrendLast5         = "trend_last_5_games"
	FeatureConsistencyScore   = "consistency_score"
)

// FeatureNames returns the canonical feature column ordering. Inference must
// present features to a model in this same order.
func FeatureNames() []string {
	return []string{
		FeatureAvgPointsL5,
		FeatureAvgPointsL10,
		FeatureAvgPointsL15,
		FeatureGamesSinceLastGood,
		FeatureTrendLast5,
		FeatureConsistencyScore,
	}
}

// Event represents a single dated performance record for one entity.
// Events are immutable once collected.
type Event struct {
	EntityID  int64              `json:"entity_id"`
	Timestamp time.Time          `json:"timestamp"`
	Category  string             `json:"category"`
	Stats     map[string]float64 `json:"stats,omitempty"`
	Label     float64            `json:"fantasy_points"`
}

// FeatureVector holds history-only predictors derived for one event. A nil
// field means the feature is undefined for that event (insufficient history).
// Every field is nil for an entity's first event.
type FeatureVector struct {
	AvgPointsL5        *float64 `json:"avg_fantasy_points_L5,omitempty"`
	AvgPointsL10       *float64 `json:"avg_fantasy_points_L10,omitempty"`
	AvgPointsL15       *float64 `json:"avg_fantasy_points_L15,omitempty"`
	GamesSinceLastGood *float64 `json:"games_since_last_good_game,omitempty"`
	TrendLast5         *float64 `json:"trend_last_5_games,omitempty"`
	ConsistencyScore   *float64 `json:"consistency_score,omitempty"`
}

// Get returns the named feature, or nil when undefined or unknown.
func (fv FeatureVector) Get(name string) *float64 {
	switch name {
	case FeatureAvgPointsL5:
		return fv.AvgPointsL5
	case FeatureAvgPointsL10:
		return fv.AvgPointsL10
	case FeatureAvgPointsL15:
		return fv.AvgPointsL15
	case FeatureGamesSinceLastGood:
		return fv.GamesSinceLastGood
	case FeatureTrendLast5:
		return fv.TrendLast5
	case FeatureConsistencyScore:
		return fv.ConsistencyScore
	default:
		return nil
	}
}

// IsEmpty reports whether every derived field is undefined.
func (fv FeatureVector) IsEmpty() bool {
	for _, name := range FeatureNames() {
		if fv.Get(name) != nil {
			return false
		}
	}
	return true
}

// ToMap returns the populated features as a name -> value mapping.
func (fv FeatureVector) ToMap() map[string]float64 {
	out := make(map[string]float64)
	for _, name := range FeatureNames() {
		if v := fv.Get(name); v != nil {
			out[name] = *v
		}
	}
	return out
}

// Row is one training example: the feature vector derived for an event plus
// the event's label and identifying fields. EventIndex is the event's position
// within its entity's chronological series.
type Row struct {
	EntityID   int64         `json:"entity_id"`
	Category   string        `json:"category"`
	Timestamp  time.Time     `json:"timestamp"`
	EventIndex int           `json:"event_index"`
	Features   FeatureVector `json:"features"`
	Label      float64       `json:"fantasy_points"`
}

// Dataset is an ordered collection of rows produced by feature generation.
// GeneratedAt records the wall-clock time at generation, which the validator
// uses as "now" when checking for future timestamps.
type Dataset struct {
	Rows        []Row     `json:"rows"`
	GeneratedAt time.Time `json:"generated_at"`
}

// TrainingRows returns the rows usable for model fitting: first-event rows
// carry no history and are excluded.
func (d Dataset) TrainingRows() []Row {
	out := make([]Row, 0, len(d.Rows))
	for _, r := range d.Rows {
		if r.EventIndex == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Categories returns the distinct categories present, in first-seen order.
func (d Dataset) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range d.Rows {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}
