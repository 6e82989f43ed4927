package ml

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// GradientBoosting is a boosted ensemble of shallow regression trees.
// Each round fits one tree per class to the softmax residuals.
type GradientBoosting struct {
	NumRounds    int
	LearningRate float64
	MaxDepth     int
	Seed         int64
	NumClasses   int
	Trees        [][]*TreeNode // Trees[round][class]
	Importances  []float64
}

// NewGradientBoosting returns a boosted ensemble with default settings.
func NewGradientBoosting(seed int64) *GradientBoosting {
	return &GradientBoosting{NumRounds: 100, LearningRate: 0.1, MaxDepth: 3, Seed: seed}
}

// Fit trains NumRounds boosting rounds on X.
func (g *GradientBoosting) Fit(X [][]float64, y []int, numClasses int) error {
	if len(X) == 0 {
		return errors.New("empty training set")
	}
	g.NumClasses = numClasses
	g.Trees = make([][]*TreeNode, 0, g.NumRounds)
	g.Importances = make([]float64, len(X[0]))

	rng := rand.New(rand.NewSource(g.Seed))

	// Raw scores per sample and class, updated additively each round.
	scores := make([][]float64, len(X))
	for i := range scores {
		scores[i] = make([]float64, numClasses)
	}

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}

	residuals := make([]float64, len(X))
	for round := 0; round < g.NumRounds; round++ {
		roundTrees := make([]*TreeNode, numClasses)
		for k := 0; k < numClasses; k++ {
			for i := range X {
				p := softmaxAt(scores[i], k)
				target := 0.0
				if y[i] == k {
					target = 1.0
				}
				residuals[i] = target - p
			}

			builder := &treeBuilder{
				maxDepth:   g.MaxDepth,
				minSamples: 2,
				rng:        rng,
				X:          X,
				t:          residuals,
			}
			roundTrees[k] = builder.build(indices)
			floats.Add(g.Importances, builder.importances)
		}

		for i, x := range X {
			for k, tree := range roundTrees {
				scores[i][k] += g.LearningRate * tree.evaluate(x)[0]
			}
		}
		g.Trees = append(g.Trees, roundTrees)
	}

	if total := floats.Sum(g.Importances); total > 0 {
		floats.Scale(1/total, g.Importances)
	}
	return nil
}

// PredictProba returns softmax probabilities over the summed tree scores.
func (g *GradientBoosting) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		scores := make([]float64, g.NumClasses)
		for _, roundTrees := range g.Trees {
			for k, tree := range roundTrees {
				scores[k] += g.LearningRate * tree.evaluate(x)[0]
			}
		}
		out[i] = softmax(scores)
	}
	return out
}

// Predict returns the highest-probability class per sample.
func (g *GradientBoosting) Predict(X [][]float64) []int {
	probs := g.PredictProba(X)
	out := make([]int, len(X))
	for i := range probs {
		out[i] = floats.MaxIdx(probs[i])
	}
	return out
}

// FeatureImportances returns the normalized impurity-decrease importances.
func (g *GradientBoosting) FeatureImportances() []float64 {
	return g.Importances
}

// softmax returns the softmax distribution of scores, shifted for
// numerical stability.
func softmax(scores []float64) []float64 {
	max := floats.Max(scores)
	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// softmaxAt returns the softmax probability of class k under scores.
func softmaxAt(scores []float64, k int) float64 {
	max := floats.Max(scores)
	sum := 0.0
	for _, s := range scores {
		sum += math.Exp(s - max)
	}
	return math.Exp(scores[k]-max) / sum
}
