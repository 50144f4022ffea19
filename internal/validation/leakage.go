package validation

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-ml/internal/types"
	"github.com/stitts-dev/dfs-ml/pkg/logger"
)

// Check identifies which validation rule produced a finding.
type Check string

const (
	CheckChronology  Check = "chronological_order"
	CheckFutureDates Check = "future_timestamps"
	CheckFirstEvent  Check = "first_event_nullity"
	CheckLabelRange  Check = "label_range"
	CheckDateGaps    Check = "date_gaps"
)

// Severity distinguishes gating failures from diagnostics.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one reported validation issue.
type Finding struct {
	Check    Check    `json:"check"`
	Severity Severity `json:"severity"`
	EntityID int64    `json:"entity_id,omitempty"`
	Message  string   `json:"message"`
}

// Report is the structured output of a validator pass. The validator never
// mutates the dataset it inspects.
type Report struct {
	TotalRows       int                `json:"total_rows"`
	Entities        int                `json:"entities"`
	Findings        []Finding          `json:"findings"`
	FeatureCoverage map[string]float64 `json:"feature_coverage"`
	ValidatedAt     time.Time          `json:"validated_at"`
}

// LeakageDetected reports whether any hard failure was found: future
// timestamps or populated features on a first event. A dataset with leakage
// must not proceed to training.
func (r *Report) LeakageDetected() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// FindingsFor returns the findings produced by a single check.
func (r *Report) FindingsFor(check Check) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Check == check {
			out = append(out, f)
		}
	}
	return out
}

// ValidatorConfig holds the plausible label range and gap thresholds.
type ValidatorConfig struct {
	LabelMin        float64 `json:"label_min"`
	LabelMax        float64 `json:"label_max"`
	MaxDateGapDays  int     `json:"max_date_gap_days"`
	MaxEventsPerDay int     `json:"max_events_per_day"`
}

// DefaultValidatorConfig returns the fantasy-points defaults. Scores below
// -30 or above 60 are extreme but possible, so they warn rather than gate.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		LabelMin:        -30,
		LabelMax:        60,
		MaxDateGapDays:  14,
		MaxEventsPerDay: 2,
	}
}

// Validator performs static leakage checks over a generated dataset.
type Validator struct {
	config ValidatorConfig
	now    func() time.Time
	logger *logrus.Entry
}

// NewValidator creates a validator using the wall clock as "now" for datasets
// that carry no generation timestamp.
func NewValidator(config ValidatorConfig) *Validator {
	return &Validator{
		config: config,
		now:    time.Now,
		logger: logger.WithComponent("leakage_validator"),
	}
}

// Validate runs every check independently and returns the combined report.
func (v *Validator) Validate(ds types.Dataset) *Report {
	report := &Report{
		TotalRows:       len(ds.Rows),
		FeatureCoverage: make(map[string]float64),
		ValidatedAt:     v.now(),
	}

	byEntity := groupByEntity(ds.Rows)
	report.Entities = len(byEntity)

	v.checkChronology(byEntity, report)
	v.checkFutureDates(ds, report)
	v.checkFirstEventNullity(byEntity, report)
	v.checkFeatureCoverage(ds.Rows, report)
	v.checkLabelRange(ds.Rows, report)
	v.checkDateGaps(byEntity, report)

	entry := v.logger.WithFields(logrus.Fields{
		"total_rows": report.TotalRows,
		"entities":   report.Entities,
		"findings":   len(report.Findings),
	})
	if report.LeakageDetected() {
		entry.Error("Dataset failed leakage validation")
	} else {
		entry.Info("Dataset passed leakage validation")
	}

	return report
}

// checkChronology verifies that for every entity, timestamps are
// non-decreasing in dataset order. The violation is correctable by
// re-sorting, so it is a warning, but the caller must apply the sort itself:
// the validator never fixes data silently.
func (v *Validator) checkChronology(byEntity map[int64][]types.Row, report *Report) {
	for entityID, rows := range byEntity {
		for i := 1; i < len(rows); i++ {
			if rows[i].Timestamp.Before(rows[i-1].Timestamp) {
				report.Findings = append(report.Findings, Finding{
					Check:    CheckChronology,
					Severity: SeverityWarning,
					EntityID: entityID,
					Message:  fmt.Sprintf("entity %d rows out of chronological order; re-sort required before training", entityID),
				})
				break
			}
		}
	}
}

// checkFutureDates flags rows dated after generation time. Future events
// cannot have been observed, so their presence means the dataset construction
// itself is broken. Hard failure.
func (v *Validator) checkFutureDates(ds types.Dataset, report *Report) {
	now := ds.GeneratedAt
	if now.IsZero() {
		now = v.now()
	}

	future := 0
	for _, r := range ds.Rows {
		if r.Timestamp.After(now) {
			future++
		}
	}
	if future > 0 {
		report.Findings = append(report.Findings, Finding{
			Check:    CheckFutureDates,
			Severity: SeverityError,
			Message:  fmt.Sprintf("found %d rows with future timestamps", future),
		})
	}
}

// checkFirstEventNullity asserts that each entity's earliest row has every
// derived feature undefined. A populated feature on a first event can only
// have come from the future. Hard failure.
func (v *Validator) checkFirstEventNullity(byEntity map[int64][]types.Row, report *Report) {
	for entityID, rows := range byEntity {
		first := rows[0]
		for _, r := range rows[1:] {
			if r.Timestamp.Before(first.Timestamp) {
				first = r
			}
		}

		populated := 0
		for _, name := range types.FeatureNames() {
			if first.Features.Get(name) != nil {
				populated++
			}
		}
		if populated > 0 {
			report.Findings = append(report.Findings, Finding{
				Check:    CheckFirstEvent,
				Severity: SeverityError,
				EntityID: entityID,
				Message:  fmt.Sprintf("entity %d first event has %d populated features (possible leakage)", entityID, populated),
			})
		}
	}
}

// checkFeatureCoverage records the percentage of rows carrying each feature.
// Diagnostic only; never gates.
func (v *Validator) checkFeatureCoverage(rows []types.Row, report *Report) {
	if len(rows) == 0 {
		return
	}
	for _, name := range types.FeatureNames() {
		populated := 0
		for _, r := range rows {
			if r.Features.Get(name) != nil {
				populated++
			}
		}
		report.FeatureCoverage[name] = float64(populated) / float64(len(rows)) * 100
	}
}

// checkLabelRange warns about labels outside the plausible range. Extreme
// but real scores stay in the dataset.
func (v *Validator) checkLabelRange(rows []types.Row, report *Report) {
	outliers := 0
	for _, r := range rows {
		if r.Label < v.config.LabelMin || r.Label > v.config.LabelMax {
			outliers++
		}
	}
	if outliers > 0 {
		report.Findings = append(report.Findings, Finding{
			Check:    CheckLabelRange,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("found %d rows with labels outside [%.1f, %.1f]", outliers, v.config.LabelMin, v.config.LabelMax),
		})
	}
}

// checkDateGaps flags unusual schedule shapes: long idle stretches and too
// many events on one date. Both suggest collection problems for an active
// player rather than leakage.
func (v *Validator) checkDateGaps(byEntity map[int64][]types.Row, report *Report) {
	for entityID, rows := range byEntity {
		sorted := make([]types.Row, len(rows))
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})

		maxGap := 0
		perDay := make(map[string]int)
		for i, r := range sorted {
			perDay[r.Timestamp.Format("2006-01-02")]++
			if i == 0 {
				continue
			}
			gap := int(r.Timestamp.Sub(sorted[i-1].Timestamp).Hours() / 24)
			if gap > maxGap {
				maxGap = gap
			}
		}

		if maxGap > v.config.MaxDateGapDays {
			report.Findings = append(report.Findings, Finding{
				Check:    CheckDateGaps,
				Severity: SeverityWarning,
				EntityID: entityID,
				Message:  fmt.Sprintf("entity %d has a %d-day gap between events", entityID, maxGap),
			})
		}
		for day, count := range perDay {
			if count > v.config.MaxEventsPerDay {
				report.Findings = append(report.Findings, Finding{
					Check:    CheckDateGaps,
					Severity: SeverityWarning,
					EntityID: entityID,
					Message:  fmt.Sprintf("entity %d has %d events on %s", entityID, count, day),
				})
			}
		}
	}
}

// SortChronologically returns a copy of the dataset with rows ordered by
// timestamp (entity ID breaking ties). This is the correction for a
// chronological-order finding; applying it is the caller's decision.
func SortChronologically(ds types.Dataset) types.Dataset {
	out := types.Dataset{
		Rows:        make([]types.Row, len(ds.Rows)),
		GeneratedAt: ds.GeneratedAt,
	}
	copy(out.Rows, ds.Rows)
	sort.SliceStable(out.Rows, func(i, j int) bool {
		if !out.Rows[i].Timestamp.Equal(out.Rows[j].Timestamp) {
			return out.Rows[i].Timestamp.Before(out.Rows[j].Timestamp)
		}
		return out.Rows[i].EntityID < out.Rows[j].EntityID
	})
	return out
}

func groupByEntity(rows []types.Row) map[int64][]types.Row {
	byEntity := make(map[int64][]types.Row)
	for _, r := range rows {
		byEntity[r.EntityID] = append(byEntity[r.EntityID], r)
	}
	return byEntity
}
