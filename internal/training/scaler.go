package training

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Scaler performs per-column mean/variance normalization. It is fit on
// training rows only and then applied to both partitions, so test statistics
// never leak into the transform.
type Scaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// FitScaler computes column means and sample standard deviations. A column
// with degenerate variance scales by 1 so constant features pass through
// centered instead of dividing by zero.
func FitScaler(X [][]float64) (*Scaler, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty matrix")
	}

	cols := len(X[0])
	s := &Scaler{
		Means: make([]float64, cols),
		Stds:  make([]float64, cols),
	}

	column := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i := range X {
			column[i] = X[i][j]
		}
		s.Means[j] = stat.Mean(column, nil)
		sd := stat.StdDev(column, nil)
		if sd == 0 || len(X) < 2 {
			sd = 1
		}
		s.Stds[j] = sd
	}

	return s, nil
}

// Transform scales a single feature vector in place-safe fashion.
func (s *Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j := range x {
		out[j] = (x[j] - s.Means[j]) / s.Stds[j]
	}
	return out
}

// TransformAll scales every row of a feature matrix.
func (s *Scaler) TransformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = s.Transform(X[i])
	}
	return out
}
