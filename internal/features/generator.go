package features

import (
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/stitts-dev/dfs-ml/internal/timeseries"
	"github.com/stitts-dev/dfs-ml/internal/types"
	"github.com/stitts-dev/dfs-ml/pkg/logger"
)

// GeneratorConfig controls the rolling-window feature derivation.
type GeneratorConfig struct {
	GoodGameThreshold  float64 `json:"good_game_threshold"`
	MaxGamesSinceGood  int     `json:"max_games_since_good"`
	TrendWindow        int     `json:"trend_window"`
	ConsistencyMinimum int     `json:"consistency_minimum"`
}

// DefaultGeneratorConfig returns the standard fantasy-points configuration.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		GoodGameThreshold:  10.0,
		MaxGamesSinceGood:  10,
		TrendWindow:        5,
		ConsistencyMinimum: 2,
	}
}

// Generator derives leakage-safe features from entity time series. The
// feature vector for the event at index i is a function of events at indices
// strictly less than i, and nothing else.
type Generator struct {
	config GeneratorConfig
	logger *logrus.Entry
}

// NewGenerator creates a feature generator.
func NewGenerator(config GeneratorConfig) *Generator {
	return &Generator{
		config: config,
		logger: logger.WithComponent("feature_generator"),
	}
}

// Generate returns one feature vector per event in the series, index-aligned.
// The vector at index 0 has every field nil: there is no history.
func (g *Generator) Generate(series *timeseries.EntityTimeSeries) []types.FeatureVector {
	labels := series.Labels()
	out := make([]types.FeatureVector, len(labels))

	for i := 1; i < len(labels); i++ {
		prior := labels[:i]
		out[i] = g.fromHistory(prior)
	}

	return out
}

// fromHistory computes a single feature vector from the strictly-prior label
// sequence. prior must be non-empty.
func (g *Generator) fromHistory(prior []float64) types.FeatureVector {
	var fv types.FeatureVector

	fv.AvgPointsL5 = ptr(tailMean(prior, 5))
	fv.AvgPointsL10 = ptr(tailMean(prior, 10))
	fv.AvgPointsL15 = ptr(tailMean(prior, 15))
	fv.GamesSinceLastGood = ptr(g.gamesSinceLastGood(prior))

	if len(prior) >= 2 {
		fv.TrendLast5 = ptr(g.trend(prior))
		if len(prior) >= g.config.ConsistencyMinimum {
			fv.ConsistencyScore = ptr(consistency(prior))
		}
	}

	return fv
}

// Next computes the feature vector for an entity's hypothetical next event
// from its full history. An empty series yields an empty vector.
func (g *Generator) Next(series *timeseries.EntityTimeSeries) types.FeatureVector {
	if series.Len() == 0 {
		return types.FeatureVector{}
	}
	return g.fromHistory(series.Labels())
}

// Dataset runs generation across every series and assembles the combined
// dataset. First-event rows are included with empty features so the validator
// can assert their nullity; training excludes them via TrainingRows.
// Entities with a single event contribute no usable rows.
func (g *Generator) Dataset(series []*timeseries.EntityTimeSeries, now time.Time) types.Dataset {
	ds := types.Dataset{GeneratedAt: now}

	usable := 0
	for _, s := range series {
		vectors := g.Generate(s)
		for i := 0; i < s.Len(); i++ {
			e := s.Event(i)
			ds.Rows = append(ds.Rows, types.Row{
				EntityID:   s.EntityID(),
				Category:   s.Category(),
				Timestamp:  e.Timestamp,
				EventIndex: i,
				Features:   vectors[i],
				Label:      e.Label,
			})
			if i > 0 {
				usable++
			}
		}
	}

	g.logger.WithFields(logrus.Fields{
		"entities":     len(series),
		"total_rows":   len(ds.Rows),
		"trainable":    usable,
		"generated_at": now,
	}).Info("Generated historical features")

	return ds
}

// tailMean averages the last n values, or all of them when fewer exist.
func tailMean(values []float64, n int) float64 {
	if len(values) > n {
		values = values[len(values)-n:]
	}
	return stat.Mean(values, nil)
}

// trend is the OLS slope of label against event index over the last
// TrendWindow prior events. At least 2 points are required by the caller.
func (g *Generator) trend(prior []float64) float64 {
	window := prior
	if len(window) > g.config.TrendWindow {
		window = window[len(window)-g.config.TrendWindow:]
	}
	xs := make([]float64, len(window))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, window, nil, false)
	return slope
}

// consistency maps the sample standard deviation of all prior labels into
// (0, 1]: a player who scores the same every night scores 1.
func consistency(prior []float64) float64 {
	return 1.0 / (1.0 + stat.StdDev(prior, nil))
}

// gamesSinceLastGood counts consecutive prior events below the good-game
// threshold, walking backward from the most recent. When no prior event
// qualifies the count equals the full history length. Capped so a long cold
// streak saturates instead of growing without bound.
func (g *Generator) gamesSinceLastGood(prior []float64) float64 {
	count := 0
	for i := len(prior) - 1; i >= 0; i-- {
		if prior[i] > g.config.GoodGameThreshold {
			break
		}
		count++
	}
	if count > g.config.MaxGamesSinceGood {
		count = g.config.MaxGamesSinceGood
	}
	return float64(count)
}

func ptr(v float64) *float64 {
	return &v
}
