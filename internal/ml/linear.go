package ml

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SoftmaxRegression is a multinomial logistic classifier trained by
// full-batch gradient descent with L2 regularization. Expects scaled
// features.
type SoftmaxRegression struct {
	MaxIter      int
	LearningRate float64
	L2           float64
	NumFeatures  int
	NumClasses   int
	Weights      []float64 // row-major, NumFeatures x NumClasses
	Bias         []float64
}

// NewSoftmaxRegression returns a classifier with the default optimizer
// settings.
func NewSoftmaxRegression() *SoftmaxRegression {
	return &SoftmaxRegression{MaxIter: 1000, LearningRate: 0.1, L2: 1e-4}
}

// Fit trains the weights on X.
func (s *SoftmaxRegression) Fit(X [][]float64, y []int, numClasses int) error {
	if len(X) == 0 {
		return errors.New("empty training set")
	}
	n, d := len(X), len(X[0])
	s.NumFeatures = d
	s.NumClasses = numClasses
	s.Weights = make([]float64, d*numClasses)
	s.Bias = make([]float64, numClasses)

	xm := mat.NewDense(n, d, flatten(X))

	// One-hot targets.
	target := mat.NewDense(n, numClasses, nil)
	for i, c := range y {
		target.Set(i, c, 1)
	}

	w := mat.NewDense(d, numClasses, s.Weights)
	var logits, grad mat.Dense
	probs := make([]float64, numClasses)

	for iter := 0; iter < s.MaxIter; iter++ {
		logits.Mul(xm, w)

		// In place: logits become (P - Y), the error term of the gradient.
		for i := 0; i < n; i++ {
			row := logits.RawRowView(i)
			floats.Add(row, s.Bias)
			copy(probs, softmax(row))
			for k := 0; k < numClasses; k++ {
				row[k] = probs[k] - target.At(i, k)
			}
		}

		grad.Mul(xm.T(), &logits)
		gradData := grad.RawMatrix().Data
		for idx := range s.Weights {
			s.Weights[idx] -= s.LearningRate * (gradData[idx]/float64(n) + s.L2*s.Weights[idx])
		}
		for k := 0; k < numClasses; k++ {
			colSum := 0.0
			for i := 0; i < n; i++ {
				colSum += logits.At(i, k)
			}
			s.Bias[k] -= s.LearningRate * colSum / float64(n)
		}
	}
	return nil
}

// PredictProba returns softmax probabilities per sample.
func (s *SoftmaxRegression) PredictProba(X [][]float64) [][]float64 {
	w := mat.NewDense(s.NumFeatures, s.NumClasses, s.Weights)
	out := make([][]float64, len(X))
	for i, x := range X {
		var logits mat.Dense
		logits.Mul(mat.NewDense(1, s.NumFeatures, x), w)
		row := logits.RawRowView(0)
		floats.Add(row, s.Bias)
		out[i] = softmax(row)
	}
	return out
}

// Predict returns the highest-probability class per sample.
func (s *SoftmaxRegression) Predict(X [][]float64) []int {
	probs := s.PredictProba(X)
	out := make([]int, len(X))
	for i := range probs {
		out[i] = floats.MaxIdx(probs[i])
	}
	return out
}

// FeatureImportances is nil; linear coefficients are not exposed as
// importances.
func (s *SoftmaxRegression) FeatureImportances() []float64 {
	return nil
}

func flatten(X [][]float64) []float64 {
	if len(X) == 0 {
		return nil
	}
	out := make([]float64, 0, len(X)*len(X[0]))
	for _, row := range X {
		out = append(out, row...)
	}
	return out
}
