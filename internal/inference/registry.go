package inference

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-ml/internal/features"
	"github.com/stitts-dev/dfs-ml/internal/timeseries"
	"github.com/stitts-dev/dfs-ml/internal/training"
	"github.com/stitts-dev/dfs-ml/pkg/logger"
)

// Prediction is the user-facing inference result.
type Prediction struct {
	Category     string    `json:"category"`
	Points       float64   `json:"predicted_fantasy_points"`
	Confidence   float64   `json:"confidence"`
	Algorithm    string    `json:"algorithm"`
	FeaturesUsed int       `json:"features_used"`
	PredictedAt  time.Time `json:"predicted_at"`
}

// Registry maps categories to their trained bundles. It is constructed once
// from a training run or the artifact store and passed to inference call
// sites; no global model state.
type Registry struct {
	bundles map[string]*training.ModelBundle
	policy  AdjustmentPolicy
	logger  *logrus.Entry
}

// NewRegistry builds a registry over the given bundles. A nil policy means
// model output passes through unadjusted.
func NewRegistry(bundles map[string]*training.ModelBundle, policy AdjustmentPolicy) *Registry {
	if policy == nil {
		policy = PassthroughPolicy{}
	}
	copied := make(map[string]*training.ModelBundle, len(bundles))
	for k, v := range bundles {
		copied[k] = v
	}
	return &Registry{
		bundles: copied,
		policy:  policy,
		logger:  logger.WithComponent("model_registry"),
	}
}

// Bundle returns the trained bundle for a category.
func (r *Registry) Bundle(category string) (*training.ModelBundle, bool) {
	b, ok := r.bundles[category]
	return b, ok
}

// Categories returns every category with a trained model.
func (r *Registry) Categories() []string {
	out := make([]string, 0, len(r.bundles))
	for k := range r.bundles {
		out = append(out, k)
	}
	return out
}

// Predict scores a feature mapping against the category's model. Missing
// features are filled with the neutral default 0 before scaling; the model
// is never silently skipped for partial input. Features are presented in
// the bundle's exact training order.
func (r *Registry) Predict(category string, featureValues map[string]float64, meta EntityMetadata) (*Prediction, error) {
	bundle, ok := r.bundles[category]
	if !ok {
		return nil, fmt.Errorf("no model available for category %q", category)
	}

	x := make([]float64, len(bundle.FeatureNames))
	used := 0
	for i, name := range bundle.FeatureNames {
		if v, present := featureValues[name]; present {
			x[i] = v
			used++
		}
	}

	raw := bundle.Model.Predict(bundle.Scaler.Transform(x))
	adjusted := r.policy.Adjust(category, raw, meta)

	prediction := &Prediction{
		Category:     category,
		Points:       adjusted,
		Confidence:   bundle.Confidence(),
		Algorithm:    bundle.Performance.Algorithm,
		FeaturesUsed: used,
		PredictedAt:  time.Now(),
	}

	r.logger.WithFields(logrus.Fields{
		"category":      category,
		"entity_id":     meta.EntityID,
		"raw":           raw,
		"adjusted":      adjusted,
		"confidence":    prediction.Confidence,
		"features_used": used,
	}).Debug("Generated prediction")

	return prediction, nil
}

// PredictNext derives next-event features from an entity's full series and
// scores them against the series' category model.
func (r *Registry) PredictNext(series *timeseries.EntityTimeSeries, generator *features.Generator, meta EntityMetadata) (*Prediction, error) {
	if series.Len() == 0 {
		return nil, fmt.Errorf("entity %d has no history to predict from", series.EntityID())
	}
	return r.Predict(series.Category(), generator.Next(series).ToMap(), meta)
}
