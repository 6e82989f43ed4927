package ml

import "math/rand"

// Split holds the result of a train/test partition.
type Split struct {
	XTrain [][]float64
	XTest  [][]float64
	YTrain []string
	YTest  []string
}

// StratifiedSplit partitions samples into train and test sets, preserving
// per-class proportions. The same seed always yields the same partition.
func StratifiedSplit(X [][]float64, y []string, testFraction float64, seed int64) *Split {
	rng := rand.New(rand.NewSource(seed))

	byClass := make(map[string][]int)
	classOrder := make([]string, 0)
	for i, label := range y {
		if _, ok := byClass[label]; !ok {
			classOrder = append(classOrder, label)
		}
		byClass[label] = append(byClass[label], i)
	}

	split := &Split{}
	for _, label := range classOrder {
		indices := byClass[label]
		rng.Shuffle(len(indices), func(a, b int) {
			indices[a], indices[b] = indices[b], indices[a]
		})

		nTest := int(float64(len(indices)) * testFraction)
		if nTest == 0 && len(indices) > 1 {
			nTest = 1
		}

		for k, idx := range indices {
			if k < nTest {
				split.XTest = append(split.XTest, X[idx])
				split.YTest = append(split.YTest, y[idx])
			} else {
				split.XTrain = append(split.XTrain, X[idx])
				split.YTrain = append(split.YTrain, y[idx])
			}
		}
	}
	return split
}

// Accuracy is the exact-match fraction between true and predicted classes.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}
