package validation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-ml/internal/types"
	"github.com/stitts-dev/dfs-ml/pkg/logger"
)

// ErrDegenerateSplit is returned when a temporal split leaves either
// partition empty: too little data, or the embargo consumed the whole tail.
var ErrDegenerateSplit = errors.New("degenerate temporal split")

// SplitConfig controls the train/test partitioning.
type SplitConfig struct {
	TrainRatio float64 `json:"train_ratio"`
	GapDays    int     `json:"gap_days"`
}

// DefaultSplitConfig returns the standard 80/20 split with a 5-day embargo.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{
		TrainRatio: 0.8,
		GapDays:    5,
	}
}

// Splitter partitions rows along the time axis with an embargo gap, so
// rolling-window features in the test set cannot straddle the boundary.
type Splitter struct {
	config SplitConfig
	logger *logrus.Entry
}

// NewSplitter creates a temporal splitter.
func NewSplitter(config SplitConfig) *Splitter {
	return &Splitter{
		config: config,
		logger: logger.WithComponent("temporal_splitter"),
	}
}

// Split sorts rows by timestamp, takes the earliest TrainRatio fraction as
// train, and keeps as test only rows dated strictly after the last train
// timestamp plus the embargo. Returns ErrDegenerateSplit when either
// partition ends up empty; training on a degenerate split is refused rather
// than silently allowed.
func (s *Splitter) Split(rows []types.Row) (train, test []types.Row, err error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: no rows to split", ErrDegenerateSplit)
	}

	sorted := make([]types.Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	k := int(s.config.TrainRatio * float64(len(sorted)))
	if k <= 0 || k >= len(sorted) {
		return nil, nil, fmt.Errorf("%w: %d rows split at %d", ErrDegenerateSplit, len(sorted), k)
	}

	train = sorted[:k]
	cutoff := train[len(train)-1].Timestamp.Add(time.Duration(s.config.GapDays) * 24 * time.Hour)

	for _, r := range sorted[k:] {
		if r.Timestamp.After(cutoff) {
			test = append(test, r)
		}
	}

	if len(test) == 0 {
		return nil, nil, fmt.Errorf("%w: %d-day embargo consumed the test partition", ErrDegenerateSplit, s.config.GapDays)
	}

	s.logger.WithFields(logrus.Fields{
		"train_rows": len(train),
		"test_rows":  len(test),
		"embargoed":  len(sorted) - k - len(test),
		"gap_days":   s.config.GapDays,
		"cutoff":     cutoff,
	}).Debug("Created temporal split")

	return train, test, nil
}
