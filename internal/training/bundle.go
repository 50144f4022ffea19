package training

import (
	"time"
)

// PerformanceRecord captures how a bundle's model was selected. The R² and
// MAE are the held-out scores from selection, never a re-evaluation of the
// refit model on its own training data.
type PerformanceRecord struct {
	Algorithm         string             `json:"algorithm"`
	FeatureNames      []string           `json:"feature_names"`
	SampleCount       int                `json:"sample_count"`
	TrainRows         int                `json:"train_rows"`
	TestRows          int                `json:"test_rows"`
	HeldOutR2         float64            `json:"held_out_r2"`
	HeldOutMAE        float64            `json:"held_out_mae"`
	FeatureCoverage   map[string]float64 `json:"feature_coverage"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// ModelBundle is the packaged training artifact for one category: the fitted
// model, the scaler it expects its inputs passed through, the exact ordered
// feature list it consumes, and the selection record. Bundles are immutable
// once produced; a new training run produces a new bundle.
type ModelBundle struct {
	Category     string            `json:"category"`
	Model        Model             `json:"-"`
	Scaler       *Scaler           `json:"scaler"`
	FeatureNames []string          `json:"feature_names"`
	Performance  PerformanceRecord `json:"performance"`
}

// Confidence maps the bundle's held-out fit into the bounded user-facing
// scale.
func (b *ModelBundle) Confidence() float64 {
	return Calibrate(b.Performance.HeldOutR2)
}
