package ml

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each feature to zero mean and unit variance.
// Moments are population moments over the fitted data.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// Fit computes per-column moments from X.
func (s *StandardScaler) Fit(X [][]float64) {
	if len(X) == 0 {
		return
	}
	cols := len(X[0])
	s.Mean = make([]float64, cols)
	s.Std = make([]float64, cols)

	column := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i := range X {
			column[i] = X[i][j]
		}
		s.Mean[j] = stat.Mean(column, nil)
		s.Std[j] = stat.PopStdDev(column, nil)
		if s.Std[j] == 0 {
			// Constant column; leave values at zero after centering.
			s.Std[j] = 1
		}
	}
}

// Transform returns a scaled copy of X.
func (s *StandardScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = scaled
	}
	return out
}

// FitTransform fits the scaler on X and returns the scaled copy.
func (s *StandardScaler) FitTransform(X [][]float64) [][]float64 {
	s.Fit(X)
	return s.Transform(X)
}

// LabelEncoder maps string class labels to dense indices. Classes are
// sorted at fit time so the encoding is stable across runs.
type LabelEncoder struct {
	Classes []string
}

// Fit learns the distinct labels in y.
func (e *LabelEncoder) Fit(y []string) {
	seen := make(map[string]struct{}, len(y))
	e.Classes = e.Classes[:0]
	for _, label := range y {
		if _, ok := seen[label]; !ok {
			seen[label] = struct{}{}
			e.Classes = append(e.Classes, label)
		}
	}
	sort.Strings(e.Classes)
}

// Transform encodes labels to class indices.
func (e *LabelEncoder) Transform(y []string) ([]int, error) {
	index := make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		index[c] = i
	}
	out := make([]int, len(y))
	for i, label := range y {
		idx, ok := index[label]
		if !ok {
			return nil, fmt.Errorf("unknown label %q", label)
		}
		out[i] = idx
	}
	return out, nil
}

// FitTransform fits the encoder and encodes y in one step.
func (e *LabelEncoder) FitTransform(y []string) []int {
	e.Fit(y)
	encoded, _ := e.Transform(y)
	return encoded
}

// Inverse decodes a class index back to its label.
func (e *LabelEncoder) Inverse(idx int) (string, error) {
	if idx < 0 || idx >= len(e.Classes) {
		return "", fmt.Errorf("class index %d out of range", idx)
	}
	return e.Classes[idx], nil
}
