package ml

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// RandomForest is a bagged ensemble of classification trees with per-split
// feature subsampling. Probabilities are averaged leaf distributions.
type RandomForest struct {
	NumTrees    int
	MaxDepth    int
	Seed        int64
	NumClasses  int
	Trees       []*TreeNode
	Importances []float64
}

// NewRandomForest returns a forest with the default ensemble size.
func NewRandomForest(seed int64) *RandomForest {
	return &RandomForest{NumTrees: 100, MaxDepth: 12, Seed: seed}
}

// Fit grows NumTrees trees on bootstrap samples of X.
func (f *RandomForest) Fit(X [][]float64, y []int, numClasses int) error {
	if len(X) == 0 {
		return errors.New("empty training set")
	}
	f.NumClasses = numClasses
	f.Trees = make([]*TreeNode, 0, f.NumTrees)
	f.Importances = make([]float64, len(X[0]))

	rng := rand.New(rand.NewSource(f.Seed))
	mtry := int(math.Sqrt(float64(len(X[0]))))
	if mtry < 1 {
		mtry = 1
	}

	for t := 0; t < f.NumTrees; t++ {
		sample := make([]int, len(X))
		for i := range sample {
			sample[i] = rng.Intn(len(X))
		}

		builder := &treeBuilder{
			maxDepth:   f.MaxDepth,
			minSamples: 2,
			numClasses: numClasses,
			featureSub: mtry,
			rng:        rng,
			X:          X,
			y:          y,
		}
		f.Trees = append(f.Trees, builder.build(sample))
		floats.Add(f.Importances, builder.importances)
	}

	if total := floats.Sum(f.Importances); total > 0 {
		floats.Scale(1/total, f.Importances)
	}
	return nil
}

// PredictProba averages the leaf distributions across all trees.
func (f *RandomForest) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		probs := make([]float64, f.NumClasses)
		for _, tree := range f.Trees {
			floats.Add(probs, tree.evaluate(x))
		}
		floats.Scale(1/float64(len(f.Trees)), probs)
		out[i] = probs
	}
	return out
}

// Predict returns the majority class per sample.
func (f *RandomForest) Predict(X [][]float64) []int {
	probs := f.PredictProba(X)
	out := make([]int, len(X))
	for i := range probs {
		out[i] = floats.MaxIdx(probs[i])
	}
	return out
}

// FeatureImportances returns the normalized impurity-decrease importances.
func (f *RandomForest) FeatureImportances() []float64 {
	return f.Importances
}
