package ml

import (
	"math/rand"
	"sort"
)

// TreeNode is one node of a fitted decision tree. Leaves carry the class
// distribution (classification) or the mean target (regression) in Value.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
	Value     []float64
}

func (n *TreeNode) isLeaf() bool {
	return n.Left == nil
}

// evaluate walks the tree for one sample.
func (n *TreeNode) evaluate(x []float64) []float64 {
	node := n
	for !node.isLeaf() {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// treeBuilder grows a single CART tree. numClasses == 0 selects regression
// (variance criterion); otherwise classification with Gini impurity.
type treeBuilder struct {
	maxDepth    int
	minSamples  int
	numClasses  int
	featureSub  int // features considered per split; 0 means all
	rng         *rand.Rand
	importances []float64

	X [][]float64
	y []int       // class indices (classification)
	t []float64   // targets (regression)
	n int         // total training samples, for importance weighting
}

func (b *treeBuilder) build(indices []int) *TreeNode {
	b.n = len(indices)
	b.importances = make([]float64, len(b.X[0]))
	return b.grow(indices, 0)
}

func (b *treeBuilder) grow(indices []int, depth int) *TreeNode {
	node := &TreeNode{Value: b.leafValue(indices)}
	if depth >= b.maxDepth || len(indices) < b.minSamples || b.isPure(indices) {
		return node
	}

	feature, threshold, gain, ok := b.bestSplit(indices)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range indices {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return node
	}

	b.importances[feature] += float64(len(indices)) / float64(b.n) * gain

	node.Feature = feature
	node.Threshold = threshold
	node.Left = b.grow(left, depth+1)
	node.Right = b.grow(right, depth+1)
	return node
}

func (b *treeBuilder) leafValue(indices []int) []float64 {
	if b.numClasses > 0 {
		dist := make([]float64, b.numClasses)
		for _, i := range indices {
			dist[b.y[i]]++
		}
		for k := range dist {
			dist[k] /= float64(len(indices))
		}
		return dist
	}
	sum := 0.0
	for _, i := range indices {
		sum += b.t[i]
	}
	return []float64{sum / float64(len(indices))}
}

func (b *treeBuilder) isPure(indices []int) bool {
	if b.numClasses > 0 {
		first := b.y[indices[0]]
		for _, i := range indices[1:] {
			if b.y[i] != first {
				return false
			}
		}
		return true
	}
	first := b.t[indices[0]]
	for _, i := range indices[1:] {
		if b.t[i] != first {
			return false
		}
	}
	return true
}

func (b *treeBuilder) candidateFeatures() []int {
	total := len(b.X[0])
	features := make([]int, total)
	for f := range features {
		features[f] = f
	}
	if b.featureSub <= 0 || b.featureSub >= total {
		return features
	}
	b.rng.Shuffle(total, func(a, c int) {
		features[a], features[c] = features[c], features[a]
	})
	return features[:b.featureSub]
}

// bestSplit scans candidate features for the threshold with the largest
// impurity decrease, evaluating boundaries between distinct sorted values.
func (b *treeBuilder) bestSplit(indices []int) (feature int, threshold, gain float64, ok bool) {
	parent := b.impurity(indices)

	type pair struct {
		v float64
		i int
	}
	pairs := make([]pair, len(indices))

	for _, f := range b.candidateFeatures() {
		for k, i := range indices {
			pairs[k] = pair{v: b.X[i][f], i: i}
		}
		sort.Slice(pairs, func(a, c int) bool { return pairs[a].v < pairs[c].v })

		if b.numClasses > 0 {
			leftCount := make([]float64, b.numClasses)
			rightCount := make([]float64, b.numClasses)
			for _, p := range pairs {
				rightCount[b.y[p.i]]++
			}
			for k := 0; k < len(pairs)-1; k++ {
				c := b.y[pairs[k].i]
				leftCount[c]++
				rightCount[c]--
				if pairs[k].v == pairs[k+1].v {
					continue
				}
				nl, nr := float64(k+1), float64(len(pairs)-k-1)
				g := parent - (nl*gini(leftCount, nl)+nr*gini(rightCount, nr))/float64(len(pairs))
				if g > gain {
					feature = f
					threshold = (pairs[k].v + pairs[k+1].v) / 2
					gain = g
					ok = true
				}
			}
		} else {
			var lSum, lSq, rSum, rSq float64
			for _, p := range pairs {
				rSum += b.t[p.i]
				rSq += b.t[p.i] * b.t[p.i]
			}
			for k := 0; k < len(pairs)-1; k++ {
				v := b.t[pairs[k].i]
				lSum += v
				lSq += v * v
				rSum -= v
				rSq -= v * v
				if pairs[k].v == pairs[k+1].v {
					continue
				}
				nl, nr := float64(k+1), float64(len(pairs)-k-1)
				g := parent - (nl*variance(lSum, lSq, nl)+nr*variance(rSum, rSq, nr))/float64(len(pairs))
				if g > gain {
					feature = f
					threshold = (pairs[k].v + pairs[k+1].v) / 2
					gain = g
					ok = true
				}
			}
		}
	}
	return feature, threshold, gain, ok
}

func (b *treeBuilder) impurity(indices []int) float64 {
	if b.numClasses > 0 {
		counts := make([]float64, b.numClasses)
		for _, i := range indices {
			counts[b.y[i]]++
		}
		return gini(counts, float64(len(indices)))
	}
	var sum, sq float64
	for _, i := range indices {
		sum += b.t[i]
		sq += b.t[i] * b.t[i]
	}
	return variance(sum, sq, float64(len(indices)))
}

func gini(counts []float64, total float64) float64 {
	impurity := 1.0
	for _, c := range counts {
		p := c / total
		impurity -= p * p
	}
	return impurity
}

func variance(sum, sumSq, n float64) float64 {
	mean := sum / n
	return sumSq/n - mean*mean
}
