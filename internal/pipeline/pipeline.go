package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-ml/internal/features"
	"github.com/stitts-dev/dfs-ml/internal/timeseries"
	"github.com/stitts-dev/dfs-ml/internal/training"
	"github.com/stitts-dev/dfs-ml/internal/types"
	"github.com/stitts-dev/dfs-ml/internal/validation"
	"github.com/stitts-dev/dfs-ml/pkg/logger"
)

// ErrLeakageDetected means the dataset failed a hard validation check.
// Leakage invalidates trust in the whole dataset's construction, so the
// entire run aborts rather than a single category.
var ErrLeakageDetected = errors.New("leakage detected in dataset")

// Skip reasons reported in the run summary.
const (
	ReasonInsufficientData     = "InsufficientData"
	ReasonInsufficientFeatures = "InsufficientFeatures"
	ReasonDegenerateSplit      = "DegenerateSplit"
	ReasonAllCandidatesFailed  = "AllCandidatesFailed"
)

// Config aggregates the knobs of every pipeline stage.
type Config struct {
	Generator features.GeneratorConfig   `json:"generator"`
	Validator validation.ValidatorConfig `json:"validator"`
	Trainer   training.TrainerConfig     `json:"trainer"`
	Workers   int                        `json:"workers"`
}

// DefaultConfig returns the standard pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Generator: features.DefaultGeneratorConfig(),
		Validator: validation.DefaultValidatorConfig(),
		Trainer:   training.DefaultTrainerConfig(),
		Workers:   4,
	}
}

// RunSummary reports the outcome of one training run. Partial success is the
// expected common case: some categories train, others are skipped with a
// reason, and neither masks the other.
type RunSummary struct {
	RunID       string                           `json:"run_id"`
	StartedAt   time.Time                        `json:"started_at"`
	CompletedAt time.Time                        `json:"completed_at"`
	Validation  *validation.Report               `json:"validation"`
	Bundles     map[string]*training.ModelBundle `json:"bundles"`
	Skipped     map[string]string                `json:"skipped"`
}

// Pipeline wires feature generation, leakage validation, and per-category
// model selection into a single batch run.
type Pipeline struct {
	config    Config
	generator *features.Generator
	validator *validation.Validator
	trainer   *training.GroupTrainer
	logger    *logrus.Entry
}

// New builds a pipeline around a candidate-algorithm registry. The registry
// is read-only during training, so categories can train concurrently without
// locking.
func New(config Config, registry *training.Registry) *Pipeline {
	return &Pipeline{
		config:    config,
		generator: features.NewGenerator(config.Generator),
		validator: validation.NewValidator(config.Validator),
		trainer:   training.NewGroupTrainer(config.Trainer, registry),
		logger:    logger.WithComponent("pipeline"),
	}
}

// Run executes the full pipeline over raw collected events: series grouping,
// feature generation, validation gate, then per-category training.
func (p *Pipeline) Run(ctx context.Context, events []types.Event) (*RunSummary, error) {
	series := timeseries.FromEvents(events)
	ds := p.generator.Dataset(series, time.Now())
	return p.RunDataset(ctx, ds)
}

// RunDataset executes validation and training over an already-generated
// dataset, e.g. one supplied by the data-collection collaborator.
func (p *Pipeline) RunDataset(ctx context.Context, ds types.Dataset) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Bundles:   make(map[string]*training.ModelBundle),
		Skipped:   make(map[string]string),
	}
	log := p.logger.WithField("run_id", summary.RunID)

	summary.Validation = p.validator.Validate(ds)
	if summary.Validation.LeakageDetected() {
		summary.CompletedAt = time.Now()
		log.WithField("findings", len(summary.Validation.Findings)).Error("Aborting run: dataset failed leakage validation")
		return summary, ErrLeakageDetected
	}

	byCategory := make(map[string][]types.Row)
	for _, r := range ds.TrainingRows() {
		byCategory[r.Category] = append(byCategory[r.Category], r)
	}
	categories := ds.Categories()

	log.WithFields(logrus.Fields{
		"categories": len(categories),
		"rows":       len(ds.Rows),
		"workers":    p.workerCount(),
	}).Info("Starting per-category training")

	// Categories are independent: read-only input, no shared mutable state.
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, p.workerCount())
	)

	for _, category := range categories {
		rows, ok := byCategory[category]
		if !ok {
			continue
		}

		wg.Add(1)
		go func(category string, rows []types.Row) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				summary.Skipped[category] = ctx.Err().Error()
				mu.Unlock()
				return
			}

			bundle, err := p.trainer.Train(category, rows)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Skipped[category] = skipReason(err)
				log.WithFields(logrus.Fields{
					"category": category,
					"reason":   summary.Skipped[category],
					"error":    err.Error(),
				}).Warn("Category skipped")
				return
			}
			summary.Bundles[category] = bundle
		}(category, rows)
	}

	wg.Wait()
	summary.CompletedAt = time.Now()

	log.WithFields(logrus.Fields{
		"trained":  len(summary.Bundles),
		"skipped":  len(summary.Skipped),
		"duration": summary.CompletedAt.Sub(summary.StartedAt),
	}).Info("Training run complete")

	return summary, nil
}

func (p *Pipeline) workerCount() int {
	if p.config.Workers <= 0 {
		return 1
	}
	return p.config.Workers
}

// skipReason classifies a category failure for the run summary.
func skipReason(err error) string {
	switch {
	case errors.Is(err, training.ErrInsufficientFeatures):
		return ReasonInsufficientFeatures
	case errors.Is(err, validation.ErrDegenerateSplit):
		return ReasonDegenerateSplit
	case errors.Is(err, training.ErrAllCandidatesFailed):
		return ReasonAllCandidatesFailed
	default:
		return ReasonInsufficientData
	}
}
