package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/stitts-dev/dfs-ml/internal/training"
	"github.com/stitts-dev/dfs-ml/pkg/logger"
)

// BundleStore persists trained ModelBundles as immutable artifacts and
// reconstructs them for inference.
type BundleStore struct {
	db     *DB
	logger *logrus.Entry
}

// NewBundleStore creates a bundle store over an open connection.
func NewBundleStore(db *DB) *BundleStore {
	return &BundleStore{
		db:     db,
		logger: logger.WithComponent("bundle_store"),
	}
}

// SaveBundles writes one artifact row per trained category under the run ID.
func (s *BundleStore) SaveBundles(ctx context.Context, runID string, bundles map[string]*training.ModelBundle) error {
	for category, bundle := range bundles {
		modelBlob, err := training.MarshalModel(bundle.Model)
		if err != nil {
			return fmt.Errorf("failed to serialize model for %s: %w", category, err)
		}
		scalerBlob, err := json.Marshal(bundle.Scaler)
		if err != nil {
			return fmt.Errorf("failed to serialize scaler for %s: %w", category, err)
		}
		performance, err := json.Marshal(bundle.Performance)
		if err != nil {
			return fmt.Errorf("failed to serialize performance record for %s: %w", category, err)
		}

		artifact := ModelArtifact{
			RunID:       runID,
			Category:    category,
			Algorithm:   bundle.Performance.Algorithm,
			Performance: datatypes.JSON(performance),
			ModelBlob:   modelBlob,
			ScalerBlob:  scalerBlob,
			CreatedAt:   bundle.Performance.CreatedAt,
		}
		if err := s.db.WithContext(ctx).Create(&artifact).Error; err != nil {
			return fmt.Errorf("failed to save artifact for %s: %w", category, err)
		}

		s.logger.WithFields(logrus.Fields{
			"run_id":    runID,
			"category":  category,
			"algorithm": artifact.Algorithm,
		}).Info("Saved model artifact")
	}
	return nil
}

// LoadLatest reconstructs the most recent bundle per category across all
// runs.
func (s *BundleStore) LoadLatest(ctx context.Context) (map[string]*training.ModelBundle, error) {
	var artifacts []ModelArtifact
	if err := s.db.WithContext(ctx).
		Order("created_at desc").
		Find(&artifacts).Error; err != nil {
		return nil, fmt.Errorf("failed to load model artifacts: %w", err)
	}

	bundles := make(map[string]*training.ModelBundle)
	for _, a := range artifacts {
		if _, ok := bundles[a.Category]; ok {
			continue
		}
		bundle, err := rebuildBundle(a)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"artifact_id": a.ID,
				"category":    a.Category,
				"error":       err.Error(),
			}).Warn("Skipping unreadable model artifact")
			continue
		}
		bundles[a.Category] = bundle
	}

	s.logger.WithField("categories", len(bundles)).Info("Loaded model bundles")
	return bundles, nil
}

func rebuildBundle(a ModelArtifact) (*training.ModelBundle, error) {
	model, err := training.UnmarshalModel(a.ModelBlob)
	if err != nil {
		return nil, err
	}

	var scaler training.Scaler
	if err := json.Unmarshal(a.ScalerBlob, &scaler); err != nil {
		return nil, fmt.Errorf("invalid scaler payload: %w", err)
	}

	var performance training.PerformanceRecord
	if err := json.Unmarshal(a.Performance, &performance); err != nil {
		return nil, fmt.Errorf("invalid performance payload: %w", err)
	}

	return &training.ModelBundle{
		Category:     a.Category,
		Model:        model,
		Scaler:       &scaler,
		FeatureNames: performance.FeatureNames,
		Performance:  performance,
	}, nil
}
