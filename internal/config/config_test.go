package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 0.8, cfg.TrainRatio)
	assert.Equal(t, 5, cfg.TemporalGapDays)
	assert.Equal(t, 30, cfg.MinRowsPerCategory)
	assert.Equal(t, 10.0, cfg.GoodGameThreshold)
	assert.Empty(t, cfg.TrainSchedule)
}

func TestLoadConfig_RejectsBadTrainRatio(t *testing.T) {
	t.Setenv("TRAIN_RATIO", "1.5")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestPipelineConfig_MapsKnobs(t *testing.T) {
	cfg := &Config{
		GoodGameThreshold:        12,
		MaxGamesSinceGood:        8,
		LabelMin:                 -10,
		LabelMax:                 50,
		TrainRatio:               0.75,
		TemporalGapDays:          3,
		MinRowsPerCategory:       40,
		MinFeatures:              3,
		FeatureCoverageThreshold: 0.6,
		TrainingWorkers:          2,
	}

	pc := cfg.PipelineConfig()
	assert.Equal(t, 12.0, pc.Generator.GoodGameThreshold)
	assert.Equal(t, 8, pc.Generator.MaxGamesSinceGood)
	assert.Equal(t, -10.0, pc.Validator.LabelMin)
	assert.Equal(t, 50.0, pc.Validator.LabelMax)
	assert.Equal(t, 0.75, pc.Trainer.Split.TrainRatio)
	assert.Equal(t, 3, pc.Trainer.Split.GapDays)
	assert.Equal(t, 40, pc.Trainer.MinRows)
	assert.Equal(t, 0.6, pc.Trainer.CoverageThreshold)
	assert.Equal(t, 2, pc.Workers)
}
