package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeLabeledSet(perClass int) ([][]float64, []string) {
	var X [][]float64
	var y []string
	for i := 0; i < perClass; i++ {
		X = append(X, []float64{float64(i), 0})
		y = append(y, "read")
	}
	for i := 0; i < perClass; i++ {
		X = append(X, []float64{float64(i), 1})
		y = append(y, "deleted")
	}
	return X, y
}

func TestStratifiedSplitProportions(t *testing.T) {
	X, y := makeLabeledSet(50)
	split := StratifiedSplit(X, y, 0.2, 42)

	assert.Len(t, split.XTest, 20)
	assert.Len(t, split.XTrain, 80)

	// Each class contributes proportionally to the test set.
	counts := map[string]int{}
	for _, label := range split.YTest {
		counts[label]++
	}
	assert.Equal(t, 10, counts["read"])
	assert.Equal(t, 10, counts["deleted"])
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	X, y := makeLabeledSet(30)
	first := StratifiedSplit(X, y, 0.2, 42)
	second := StratifiedSplit(X, y, 0.2, 42)

	assert.Equal(t, first.XTrain, second.XTrain)
	assert.Equal(t, first.YTest, second.YTest)
}

func TestStratifiedSplitTinyClass(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}}
	y := []string{"read", "read", "deleted"}
	split := StratifiedSplit(X, y, 0.2, 1)

	// A class with a single sample stays in the training set.
	total := len(split.XTrain) + len(split.XTest)
	assert.Equal(t, 3, total)
	assert.Contains(t, split.YTrain, "deleted")
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.75, Accuracy([]int{0, 1, 1, 0}, []int{0, 1, 0, 0}))
	assert.Equal(t, 0.0, Accuracy(nil, nil))
}
