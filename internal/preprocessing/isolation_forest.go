package preprocessing

import (
	"math"
	"math/rand"
)

// Isolation-forest parameters. Seeded so repeated runs over the same input
// produce the same prediction; reproducibility across implementations is
// best effort only.
const (
	isoTrees         = 100
	isoSubsample     = 256
	isoContamination = 0.1
	isoSeed          = 42
)

// isolationForestInliers trains a fresh isolation forest on the single value
// column and returns, per row, whether the model considers it an inlier. The
// contamination ratio fixes the flagged share at roughly 10%. NaN rows
// cannot be scored and are reported as outliers.
func isolationForestInliers(values []float64) []bool {
	inlier := make([]bool, len(values))

	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) < 2 {
		for i, v := range values {
			inlier[i] = !math.IsNaN(v)
		}
		return inlier
	}

	rng := rand.New(rand.NewSource(isoSeed))
	psi := isoSubsample
	if psi > len(clean) {
		psi = len(clean)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(psi))))

	trees := make([]*isoNode, isoTrees)
	for t := range trees {
		sample := sampleWithoutReplacement(rng, clean, psi)
		trees[t] = buildIsoTree(rng, sample, 0, maxDepth)
	}

	norm := avgPathLength(psi)
	scores := make([]float64, 0, len(clean))
	scoreOf := func(v float64) float64 {
		var total float64
		for _, tree := range trees {
			total += pathLength(tree, v, 0)
		}
		return math.Pow(2, -(total/float64(isoTrees))/norm)
	}
	for _, v := range clean {
		scores = append(scores, scoreOf(v))
	}

	// Rows whose anomaly score exceeds the (1 - contamination) quantile are
	// outliers, mirroring sklearn's offset_ cut.
	cut := quantile(scores, 1-isoContamination)
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		inlier[i] = scoreOf(v) <= cut
	}
	return inlier
}

type isoNode struct {
	split       float64
	left, right *isoNode
	size        int
}

func buildIsoTree(rng *rand.Rand, sample []float64, depth, maxDepth int) *isoNode {
	if len(sample) <= 1 || depth >= maxDepth {
		return &isoNode{size: len(sample)}
	}
	lo, hi := sample[0], sample[0]
	for _, v := range sample[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return &isoNode{size: len(sample)}
	}
	split := lo + rng.Float64()*(hi-lo)

	var left, right []float64
	for _, v := range sample {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}
	return &isoNode{
		split: split,
		left:  buildIsoTree(rng, left, depth+1, maxDepth),
		right: buildIsoTree(rng, right, depth+1, maxDepth),
		size:  len(sample),
	}
}

func pathLength(node *isoNode, v float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + avgPathLength(node.size)
	}
	if v < node.split {
		return pathLength(node.left, v, depth+1)
	}
	return pathLength(node.right, v, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	const eulerGamma = 0.5772156649015329
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}

func sampleWithoutReplacement(rng *rand.Rand, values []float64, k int) []float64 {
	if k >= len(values) {
		return values
	}
	idx := rng.Perm(len(values))[:k]
	out := make([]float64, k)
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
