package training

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RSquared is the coefficient of determination of predictions against
// observed values. Unbounded below: a model worse than predicting the mean
// scores negative, and that is reported rather than clipped.
func RSquared(predicted, observed []float64) float64 {
	return stat.RSquaredFrom(predicted, observed, nil)
}

// MeanAbsoluteError is the average magnitude of prediction error, in the
// same units as the label.
func MeanAbsoluteError(predicted, observed []float64) float64 {
	if len(predicted) == 0 {
		return 0
	}
	sum := 0.0
	for i := range predicted {
		sum += math.Abs(predicted[i] - observed[i])
	}
	return sum / float64(len(predicted))
}
