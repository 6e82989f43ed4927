package ml

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MLP is a small feed-forward neural classifier: ReLU hidden layers and a
// softmax output, trained by full-batch gradient descent on cross-entropy.
// Expects scaled features.
type MLP struct {
	HiddenSizes  []int
	MaxIter      int
	LearningRate float64
	Seed         int64
	Sizes        []int // layer widths including input and output
	Weights      [][]float64
	Biases       [][]float64
}

// NewMLP returns a network with the default two hidden layers.
func NewMLP(seed int64) *MLP {
	return &MLP{HiddenSizes: []int{100, 50}, MaxIter: 500, LearningRate: 0.01, Seed: seed}
}

// Fit trains the network on X.
func (m *MLP) Fit(X [][]float64, y []int, numClasses int) error {
	if len(X) == 0 {
		return errors.New("empty training set")
	}
	n, d := len(X), len(X[0])

	m.Sizes = append([]int{d}, m.HiddenSizes...)
	m.Sizes = append(m.Sizes, numClasses)
	layers := len(m.Sizes) - 1

	rng := rand.New(rand.NewSource(m.Seed))
	m.Weights = make([][]float64, layers)
	m.Biases = make([][]float64, layers)
	for l := 0; l < layers; l++ {
		in, out := m.Sizes[l], m.Sizes[l+1]
		limit := math.Sqrt(6.0 / float64(in+out))
		m.Weights[l] = make([]float64, in*out)
		for i := range m.Weights[l] {
			m.Weights[l][i] = (rng.Float64()*2 - 1) * limit
		}
		m.Biases[l] = make([]float64, out)
	}

	xm := mat.NewDense(n, d, flatten(X))
	target := mat.NewDense(n, numClasses, nil)
	for i, c := range y {
		target.Set(i, c, 1)
	}

	for iter := 0; iter < m.MaxIter; iter++ {
		// Forward pass, keeping activations per layer.
		activations := make([]*mat.Dense, layers+1)
		activations[0] = xm
		for l := 0; l < layers; l++ {
			w := mat.NewDense(m.Sizes[l], m.Sizes[l+1], m.Weights[l])
			var z mat.Dense
			z.Mul(activations[l], w)
			for i := 0; i < n; i++ {
				row := z.RawRowView(i)
				floats.Add(row, m.Biases[l])
				if l == layers-1 {
					copy(row, softmax(row))
				} else {
					relu(row)
				}
			}
			activations[l+1] = &z
		}

		// Backward pass. delta starts as (P - Y) / n.
		delta := mat.NewDense(n, numClasses, nil)
		delta.Sub(activations[layers], target)
		delta.Scale(1/float64(n), delta)

		for l := layers - 1; l >= 0; l-- {
			var gradW mat.Dense
			gradW.Mul(activations[l].T(), delta)
			gradData := gradW.RawMatrix().Data

			var next *mat.Dense
			if l > 0 {
				w := mat.NewDense(m.Sizes[l], m.Sizes[l+1], m.Weights[l])
				next = &mat.Dense{}
				next.Mul(delta, w.T())
				// Gate by the ReLU derivative of the layer's activation.
				for i := 0; i < n; i++ {
					act := activations[l].RawRowView(i)
					row := next.RawRowView(i)
					for j := range row {
						if act[j] <= 0 {
							row[j] = 0
						}
					}
				}
			}

			for idx := range m.Weights[l] {
				m.Weights[l][idx] -= m.LearningRate * gradData[idx]
			}
			for k := range m.Biases[l] {
				colSum := 0.0
				for i := 0; i < n; i++ {
					colSum += delta.At(i, k)
				}
				m.Biases[l][k] -= m.LearningRate * colSum
			}

			delta = next
		}
	}
	return nil
}

// PredictProba runs the forward pass and returns the softmax rows.
func (m *MLP) PredictProba(X [][]float64) [][]float64 {
	layers := len(m.Sizes) - 1
	out := make([][]float64, len(X))
	for i, x := range X {
		act := x
		for l := 0; l < layers; l++ {
			w := mat.NewDense(m.Sizes[l], m.Sizes[l+1], m.Weights[l])
			var z mat.Dense
			z.Mul(mat.NewDense(1, m.Sizes[l], act), w)
			row := z.RawRowView(0)
			floats.Add(row, m.Biases[l])
			if l == layers-1 {
				act = softmax(row)
			} else {
				relu(row)
				act = row
			}
		}
		out[i] = act
	}
	return out
}

// Predict returns the highest-probability class per sample.
func (m *MLP) Predict(X [][]float64) []int {
	probs := m.PredictProba(X)
	out := make([]int, len(X))
	for i := range probs {
		out[i] = floats.MaxIdx(probs[i])
	}
	return out
}

// FeatureImportances is nil; the network does not expose importances.
func (m *MLP) FeatureImportances() []float64 {
	return nil
}

func relu(row []float64) {
	for i, v := range row {
		if v < 0 {
			row[i] = 0
		}
	}
}
