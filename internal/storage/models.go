package storage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GameLog is the persisted form of one collected event. The collection
// collaborator writes these deduplicated per entity per date; the trainer
// only reads them.
type GameLog struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	EntityID      int64          `gorm:"index:idx_game_logs_entity_date;not null" json:"entity_id"`
	GameDate      time.Time      `gorm:"index:idx_game_logs_entity_date;not null" json:"game_date"`
	Category      string         `gorm:"index;not null" json:"category"`
	Stats         datatypes.JSON `gorm:"type:jsonb" json:"stats"`
	FantasyPoints float64        `gorm:"not null" json:"fantasy_points"`
	CreatedAt     time.Time      `json:"created_at"`
}

// TableName specifies the table name for GORM
func (GameLog) TableName() string {
	return "game_logs"
}

// ModelArtifact is one immutable trained bundle, versioned by run. A new
// training run inserts new rows; nothing is updated in place.
type ModelArtifact struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RunID       string         `gorm:"index;not null" json:"run_id"`
	Category    string         `gorm:"index;not null" json:"category"`
	Algorithm   string         `gorm:"not null" json:"algorithm"`
	Performance datatypes.JSON `gorm:"type:jsonb" json:"performance"`
	ModelBlob   []byte         `gorm:"type:bytea" json:"-"`
	ScalerBlob  []byte         `gorm:"type:bytea" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TableName specifies the table name for GORM
func (ModelArtifact) TableName() string {
	return "model_artifacts"
}
