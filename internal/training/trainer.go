package training

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-ml/internal/types"
	"github.com/stitts-dev/dfs-ml/internal/validation"
	"github.com/stitts-dev/dfs-ml/pkg/logger"
)

var (
	// ErrInsufficientData means a category has fewer rows than the
	// configured minimum. The category is skipped; the run continues.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInsufficientFeatures means too few feature columns met the
	// coverage threshold for a category.
	ErrInsufficientFeatures = errors.New("insufficient features")

	// ErrAllCandidatesFailed means every candidate algorithm errored during
	// fit or predict for a category.
	ErrAllCandidatesFailed = errors.New("all candidate algorithms failed")
)

// TrainerConfig holds the per-category selection knobs.
type TrainerConfig struct {
	MinRows           int                    `json:"min_rows"`
	MinFeatures       int                    `json:"min_features"`
	CoverageThreshold float64                `json:"coverage_threshold"`
	Split             validation.SplitConfig `json:"split"`
}

// DefaultTrainerConfig returns the standard thresholds.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		MinRows:           30,
		MinFeatures:       2,
		CoverageThreshold: 0.70,
		Split:             validation.DefaultSplitConfig(),
	}
}

// GroupTrainer fits every candidate algorithm for one category, selects the
// best on a held-out temporal split, refits the winner on the full category
// dataset, and packages the result.
type GroupTrainer struct {
	config   TrainerConfig
	registry *Registry
	splitter *validation.Splitter
	logger   *logrus.Entry
	now      func() time.Time
}

// NewGroupTrainer creates a trainer over the given candidate registry.
func NewGroupTrainer(config TrainerConfig, registry *Registry) *GroupTrainer {
	return &GroupTrainer{
		config:   config,
		registry: registry,
		splitter: validation.NewSplitter(config.Split),
		logger:   logger.WithComponent("group_trainer"),
		now:      time.Now,
	}
}

// Train produces a ModelBundle for one category, or an explicit error from
// the taxonomy: ErrInsufficientData, ErrInsufficientFeatures,
// validation.ErrDegenerateSplit, ErrAllCandidatesFailed.
func (t *GroupTrainer) Train(category string, rows []types.Row) (*ModelBundle, error) {
	usable := make([]types.Row, 0, len(rows))
	for _, r := range rows {
		if r.EventIndex > 0 {
			usable = append(usable, r)
		}
	}

	features, coverage := t.selectFeatures(usable)
	if len(features) < t.config.MinFeatures {
		return nil, fmt.Errorf("%w: category %s has %d usable features (minimum %d)",
			ErrInsufficientFeatures, category, len(features), t.config.MinFeatures)
	}

	if len(usable) < t.config.MinRows {
		return nil, fmt.Errorf("%w: category %s has %d rows (minimum %d)",
			ErrInsufficientData, category, len(usable), t.config.MinRows)
	}

	trainRows, testRows, err := t.splitter.Split(usable)
	if err != nil {
		return nil, err
	}

	XTrain, yTrain := buildMatrix(trainRows, features)
	XTest, yTest := buildMatrix(testRows, features)

	scaler, err := FitScaler(XTrain)
	if err != nil {
		return nil, fmt.Errorf("%w: category %s: %v", ErrInsufficientData, category, err)
	}
	XTrainScaled := scaler.TransformAll(XTrain)
	XTestScaled := scaler.TransformAll(XTest)

	winner, err := t.selectCandidate(category, XTrainScaled, yTrain, XTestScaled, yTest)
	if err != nil {
		return nil, err
	}

	// Refit the winner on the entire category dataset with a freshly fit
	// scaler. The held-out split was used only to select the algorithm, so
	// full refit maximizes data utilization without invalidating the scores.
	XAll, yAll := buildMatrix(usable, features)
	finalScaler, err := FitScaler(XAll)
	if err != nil {
		return nil, fmt.Errorf("%w: category %s: %v", ErrInsufficientData, category, err)
	}
	finalModel, err := winner.algorithm.Fit(finalScaler.TransformAll(XAll), yAll)
	if err != nil {
		// The same algorithm fit the train partition moments ago. A failure
		// on the full dataset means the category cannot be packaged.
		return nil, fmt.Errorf("%w: refit of %s failed for %s: %v",
			ErrAllCandidatesFailed, winner.algorithm.Name(), category, err)
	}

	bundle := &ModelBundle{
		Category:     category,
		Model:        finalModel,
		Scaler:       finalScaler,
		FeatureNames: features,
		Performance: PerformanceRecord{
			Algorithm:         winner.algorithm.Name(),
			FeatureNames:      features,
			SampleCount:       len(usable),
			TrainRows:         len(trainRows),
			TestRows:          len(testRows),
			HeldOutR2:         winner.r2,
			HeldOutMAE:        winner.mae,
			FeatureCoverage:   coverage,
			FeatureImportance: finalModel.FeatureImportance(features),
			CreatedAt:         t.now(),
		},
	}

	t.logger.WithFields(logrus.Fields{
		"category":     category,
		"algorithm":    bundle.Performance.Algorithm,
		"held_out_r2":  bundle.Performance.HeldOutR2,
		"held_out_mae": bundle.Performance.HeldOutMAE,
		"sample_count": bundle.Performance.SampleCount,
		"features":     len(features),
	}).Info("Trained category model")

	return bundle, nil
}

type candidateScore struct {
	algorithm Algorithm
	r2        float64
	mae       float64
}

// selectCandidate fits every registered algorithm on the scaled train
// partition and scores it on the held-out test partition. A candidate that
// errors is logged and excluded; it aborts nothing unless every candidate
// fails. Ties in R² break on lower MAE, then on registration order (the
// incumbent wins a full tie).
func (t *GroupTrainer) selectCandidate(category string, XTrain [][]float64, yTrain []float64, XTest [][]float64, yTest []float64) (*candidateScore, error) {
	var best *candidateScore

	for _, alg := range t.registry.Algorithms() {
		model, err := alg.Fit(XTrain, yTrain)
		if err != nil {
			t.logger.WithFields(logrus.Fields{
				"category":  category,
				"algorithm": alg.Name(),
				"error":     err.Error(),
			}).Warn("Candidate algorithm failed, excluding from selection")
			continue
		}

		predicted := make([]float64, len(XTest))
		for i, x := range XTest {
			predicted[i] = model.Predict(x)
		}

		score := &candidateScore{
			algorithm: alg,
			r2:        RSquared(predicted, yTest),
			mae:       MeanAbsoluteError(predicted, yTest),
		}

		t.logger.WithFields(logrus.Fields{
			"category":  category,
			"algorithm": alg.Name(),
			"r2":        score.r2,
			"mae":       score.mae,
		}).Debug("Scored candidate algorithm")

		if best == nil || score.r2 > best.r2 || (score.r2 == best.r2 && score.mae < best.mae) {
			best = score
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: category %s", ErrAllCandidatesFailed, category)
	}
	return best, nil
}

// selectFeatures keeps columns populated in at least CoverageThreshold of
// the category's rows, preserving the canonical ordering. Coverage for every
// canonical feature is returned for the performance record.
func (t *GroupTrainer) selectFeatures(rows []types.Row) ([]string, map[string]float64) {
	coverage := make(map[string]float64)
	var selected []string

	for _, name := range types.FeatureNames() {
		populated := 0
		for _, r := range rows {
			if r.Features.Get(name) != nil {
				populated++
			}
		}
		frac := 0.0
		if len(rows) > 0 {
			frac = float64(populated) / float64(len(rows))
		}
		coverage[name] = frac
		if frac >= t.config.CoverageThreshold {
			selected = append(selected, name)
		}
	}

	return selected, coverage
}

// buildMatrix extracts the feature matrix and label vector for the selected
// columns. Undefined features become zero: they are historical gaps, not
// leakage sources.
func buildMatrix(rows []types.Row, features []string) ([][]float64, []float64) {
	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x := make([]float64, len(features))
		for j, name := range features {
			if v := r.Features.Get(name); v != nil {
				x[j] = *v
			}
		}
		X[i] = x
		y[i] = r.Label
	}
	return X, y
}
