package training

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Model is a fitted regressor. Predict consumes a scaled feature vector in
// the exact column order the model was trained with.
type Model interface {
	Predict(x []float64) float64
	Algorithm() string
	// FeatureImportance maps feature names to relative importance, or nil
	// when the model family does not expose one.
	FeatureImportance(names []string) map[string]float64
}

// Algorithm is one candidate in the selection protocol: fit returns a
// predictable model or an error. Fit failures are caught by the trainer and
// exclude only that candidate.
type Algorithm interface {
	Name() string
	Fit(X [][]float64, y []float64) (Model, error)
}

// Registry holds the candidate algorithms in registration order. The order
// is the final tie-breaker during selection, so it must be deterministic.
// The registry is read-only during training and needs no locking.
type Registry struct {
	algorithms []Algorithm
}

// NewRegistry creates a registry from an ordered candidate list.
func NewRegistry(algorithms ...Algorithm) *Registry {
	return &Registry{algorithms: algorithms}
}

// DefaultRegistry returns the standard candidate set: ordinary least squares,
// ridge regression, and a small neural regressor.
func DefaultRegistry(seed int64) *Registry {
	return NewRegistry(
		NewLinearAlgorithm(),
		NewRidgeAlgorithm(1.0),
		NewNeuralAlgorithm(DefaultNeuralConfig(), seed),
	)
}

// Algorithms returns the candidates in registration order.
func (r *Registry) Algorithms() []Algorithm {
	return r.algorithms
}

// LinearModel is a fitted linear regressor, shared by the OLS and ridge
// candidates.
type LinearModel struct {
	Alg          string    `json:"algorithm"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Predict returns the linear combination of the scaled features.
func (m *LinearModel) Predict(x []float64) float64 {
	out := m.Intercept
	for i, c := range m.Coefficients {
		if i < len(x) {
			out += c * x[i]
		}
	}
	return out
}

// Algorithm returns the candidate name that produced this model.
func (m *LinearModel) Algorithm() string {
	return m.Alg
}

// FeatureImportance exposes coefficient magnitudes. Features are scaled
// before fitting, so magnitudes are comparable across columns.
func (m *LinearModel) FeatureImportance(names []string) map[string]float64 {
	out := make(map[string]float64, len(names))
	for i, name := range names {
		if i < len(m.Coefficients) {
			out[name] = math.Abs(m.Coefficients[i])
		}
	}
	return out
}

type linearAlgorithm struct {
	name   string
	lambda float64
}

// NewLinearAlgorithm returns the ordinary least-squares candidate.
func NewLinearAlgorithm() Algorithm {
	return &linearAlgorithm{name: "linear"}
}

// NewRidgeAlgorithm returns an L2-regularized candidate. The intercept is
// not penalized.
func NewRidgeAlgorithm(lambda float64) Algorithm {
	return &linearAlgorithm{name: "ridge", lambda: lambda}
}

func (a *linearAlgorithm) Name() string {
	return a.name
}

// Fit solves the normal equations (XᵀX + λI)β = Xᵀy with an augmented
// intercept column.
func (a *linearAlgorithm) Fit(X [][]float64, y []float64) (Model, error) {
	n := len(X)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("%s: need matching non-empty X and y, got %d x %d", a.name, n, len(y))
	}
	d := len(X[0])
	if d == 0 {
		return nil, fmt.Errorf("%s: no feature columns", a.name)
	}

	A := mat.NewDense(n, d+1, nil)
	for i, row := range X {
		A.Set(i, 0, 1)
		for j, v := range row {
			A.Set(i, j+1, v)
		}
	}

	var ata mat.Dense
	ata.Mul(A.T(), A)
	for j := 1; j <= d; j++ {
		ata.Set(j, j, ata.At(j, j)+a.lambda)
	}

	var aty mat.VecDense
	aty.MulVec(A.T(), mat.NewVecDense(n, y))

	var beta mat.VecDense
	if err := beta.SolveVec(&ata, &aty); err != nil {
		return nil, fmt.Errorf("%s: normal equations are singular: %w", a.name, err)
	}

	model := &LinearModel{
		Alg:          a.name,
		Intercept:    beta.AtVec(0),
		Coefficients: make([]float64, d),
	}
	for j := 0; j < d; j++ {
		model.Coefficients[j] = beta.AtVec(j + 1)
	}
	return model, nil
}

// modelEnvelope carries a serialized model with enough context to rebuild it.
type modelEnvelope struct {
	Algorithm string          `json:"algorithm"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalModel serializes a fitted model into an opaque blob for the
// artifact store.
func MarshalModel(m Model) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s model: %w", m.Algorithm(), err)
	}
	return json.Marshal(modelEnvelope{Algorithm: m.Algorithm(), Payload: payload})
}

// UnmarshalModel rebuilds a model from a blob produced by MarshalModel.
func UnmarshalModel(data []byte) (Model, error) {
	var env modelEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal model envelope: %w", err)
	}

	switch env.Algorithm {
	case "linear", "ridge":
		var m LinearModel
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("unmarshal %s model: %w", env.Algorithm, err)
		}
		return &m, nil
	case "neural_net":
		var m NeuralModel
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("unmarshal neural model: %w", err)
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("unknown model algorithm %q", env.Algorithm)
	}
}
