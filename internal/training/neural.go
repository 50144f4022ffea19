package training

import (
	"fmt"
	"math"
	"math/rand"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NeuralConfig defines the feed-forward regressor architecture.
type NeuralConfig struct {
	HiddenLayers []int   `json:"hidden_layers"`
	LearningRate float64 `json:"learning_rate"`
	Epochs       int     `json:"epochs"`
}

// DefaultNeuralConfig returns a small architecture sized for rolling-window
// feature sets, not raw stat lines.
func DefaultNeuralConfig() NeuralConfig {
	return NeuralConfig{
		HiddenLayers: []int{16, 8},
		LearningRate: 0.01,
		Epochs:       150,
	}
}

// DenseLayer is one fully-connected layer of a fitted network. Weights is
// row-major input x output.
type DenseLayer struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

// NeuralModel is a fitted feed-forward regressor. Inference is a plain
// forward pass, so a deserialized model predicts without a graph runtime.
type NeuralModel struct {
	Layers []DenseLayer `json:"layers"`
}

// Predict runs the forward pass: ReLU on hidden layers, identity output.
func (m *NeuralModel) Predict(x []float64) float64 {
	current := x
	for li, layer := range m.Layers {
		next := make([]float64, len(layer.Biases))
		for j := range next {
			sum := layer.Biases[j]
			for i, v := range current {
				if i < len(layer.Weights) {
					sum += v * layer.Weights[i][j]
				}
			}
			if li < len(m.Layers)-1 && sum < 0 {
				sum = 0
			}
			next[j] = sum
		}
		current = next
	}
	if len(current) == 0 {
		return 0
	}
	return current[0]
}

// Algorithm returns the candidate name.
func (m *NeuralModel) Algorithm() string {
	return "neural_net"
}

// FeatureImportance returns nil: network weights do not decompose into
// per-feature attributions.
func (m *NeuralModel) FeatureImportance(names []string) map[string]float64 {
	return nil
}

type neuralAlgorithm struct {
	config NeuralConfig
	seed   int64
}

// NewNeuralAlgorithm returns the neural candidate. Weight initialization is
// driven by the explicit seed so repeated runs fit identical networks.
func NewNeuralAlgorithm(config NeuralConfig, seed int64) Algorithm {
	return &neuralAlgorithm{config: config, seed: seed}
}

func (a *neuralAlgorithm) Name() string {
	return "neural_net"
}

// Fit trains full-batch with Adam on mean squared error, then extracts the
// learned parameters into a runtime-free NeuralModel.
func (a *neuralAlgorithm) Fit(X [][]float64, y []float64) (Model, error) {
	n := len(X)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("neural_net: need matching non-empty X and y, got %d x %d", n, len(y))
	}
	d := len(X[0])
	if d == 0 {
		return nil, fmt.Errorf("neural_net: no feature columns")
	}

	rng := rand.New(rand.NewSource(a.seed))
	layerSizes := append([]int{d}, a.config.HiddenLayers...)
	layerSizes = append(layerSizes, 1)

	g := gorgonia.NewGraph()
	input := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(n, d),
		gorgonia.WithName("input"))
	labels := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(n, 1),
		gorgonia.WithName("labels"))

	var trainable gorgonia.Nodes
	weights := make([]*gorgonia.Node, len(layerSizes)-1)
	biases := make([]*gorgonia.Node, len(layerSizes)-1)

	current := input
	for l := 0; l < len(layerSizes)-1; l++ {
		in, out := layerSizes[l], layerSizes[l+1]

		weights[l] = gorgonia.NewMatrix(g, tensor.Float64,
			gorgonia.WithName(fmt.Sprintf("w%d", l)),
			gorgonia.WithValue(glorotTensor(rng, in, out)))
		biases[l] = gorgonia.NewVector(g, tensor.Float64,
			gorgonia.WithName(fmt.Sprintf("b%d", l)),
			gorgonia.WithValue(tensor.New(tensor.WithShape(out), tensor.WithBacking(make([]float64, out)))))
		trainable = append(trainable, weights[l], biases[l])

		linear := gorgonia.Must(gorgonia.Mul(current, weights[l]))
		withBias := gorgonia.Must(gorgonia.BroadcastAdd(linear, biases[l], nil, []byte{1}))

		if l < len(layerSizes)-2 {
			current = gorgonia.Must(gorgonia.Rectify(withBias))
		} else {
			current = withBias
		}
	}

	diff := gorgonia.Must(gorgonia.Sub(current, labels))
	loss := gorgonia.Must(gorgonia.Mean(gorgonia.Must(gorgonia.Square(diff))))

	if _, err := gorgonia.Grad(loss, trainable...); err != nil {
		return nil, fmt.Errorf("neural_net: gradient construction failed: %w", err)
	}

	machine := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(trainable...))
	defer machine.Close()

	flat := make([]float64, n*d)
	for i, row := range X {
		copy(flat[i*d:], row)
	}
	if err := gorgonia.Let(input, tensor.New(tensor.WithShape(n, d), tensor.WithBacking(flat))); err != nil {
		return nil, fmt.Errorf("neural_net: binding input failed: %w", err)
	}
	labelData := make([]float64, n)
	copy(labelData, y)
	if err := gorgonia.Let(labels, tensor.New(tensor.WithShape(n, 1), tensor.WithBacking(labelData))); err != nil {
		return nil, fmt.Errorf("neural_net: binding labels failed: %w", err)
	}

	solver := gorgonia.NewAdamSolver(gorgonia.WithLearnRate(a.config.LearningRate))

	for epoch := 0; epoch < a.config.Epochs; epoch++ {
		if err := machine.RunAll(); err != nil {
			return nil, fmt.Errorf("neural_net: epoch %d forward pass failed: %w", epoch, err)
		}
		if err := solver.Step(gorgonia.NodesToValueGrads(trainable)); err != nil {
			return nil, fmt.Errorf("neural_net: epoch %d parameter update failed: %w", epoch, err)
		}
		machine.Reset()
	}

	model := &NeuralModel{Layers: make([]DenseLayer, len(weights))}
	for l := range weights {
		in, out := layerSizes[l], layerSizes[l+1]
		wData := weights[l].Value().Data().([]float64)
		bData := biases[l].Value().Data().([]float64)

		layer := DenseLayer{
			Weights: make([][]float64, in),
			Biases:  make([]float64, out),
		}
		copy(layer.Biases, bData)
		for i := 0; i < in; i++ {
			layer.Weights[i] = make([]float64, out)
			copy(layer.Weights[i], wData[i*out:(i+1)*out])
		}
		model.Layers[l] = layer
	}

	return model, nil
}

// glorotTensor builds a Glorot-uniform initialized weight tensor from an
// explicit RNG instead of the package-global one.
func glorotTensor(rng *rand.Rand, in, out int) *tensor.Dense {
	limit := math.Sqrt(6.0 / float64(in+out))
	backing := make([]float64, in*out)
	for i := range backing {
		backing[i] = (rng.Float64()*2 - 1) * limit
	}
	return tensor.New(tensor.WithShape(in, out), tensor.WithBacking(backing))
}
