package analytics

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

const eulerGamma = 0.5772156649

var errNotFitted = errors.New("isolation forest is not fitted")

// isolationTree is a node of a single randomly partitioned tree. Leaves
// keep the number of training samples that reached them.
type isolationTree struct {
	splitValue float64
	left       *isolationTree
	right      *isolationTree
	size       int
	isLeaf     bool
}

// IsolationForest isolates one-dimensional samples with an ensemble of
// random partitioning trees. Samples that need fewer splits to isolate get
// a higher score.
type IsolationForest struct {
	numTrees   int
	maxSamples int
	rng        *rand.Rand

	trees      []*isolationTree
	sampleSize int
	maxDepth   int
}

// NewIsolationForest creates an unfitted forest. rng drives subsampling and
// split selection.
func NewIsolationForest(numTrees, maxSamples int, rng *rand.Rand) *IsolationForest {
	return &IsolationForest{
		numTrees:   numTrees,
		maxSamples: maxSamples,
		rng:        rng,
	}
}

// Fit builds the ensemble over values. Each tree sees a subsample of
// min(maxSamples, len(values)) values drawn without replacement and is cut
// at depth ceil(log2(subsample)).
func (f *IsolationForest) Fit(values []float64) error {
	if len(values) == 0 {
		return errors.New("cannot fit isolation forest on zero samples")
	}
	if err := checkFinite(values); err != nil {
		return err
	}

	f.sampleSize = f.maxSamples
	if f.sampleSize > len(values) {
		f.sampleSize = len(values)
	}
	f.maxDepth = int(math.Ceil(math.Log2(math.Max(float64(f.sampleSize), 2))))

	f.trees = make([]*isolationTree, 0, f.numTrees)
	for i := 0; i < f.numTrees; i++ {
		sample := f.subsample(values)
		f.trees = append(f.trees, f.buildTree(sample, 0))
	}
	return nil
}

// Score returns the anomaly score of v in [0, 1]. Values near 1 are easy to
// isolate; 0.5 means the forest cannot tell v apart from the rest.
func (f *IsolationForest) Score(v float64) (float64, error) {
	if len(f.trees) == 0 {
		return 0, errNotFitted
	}

	c := averagePathLength(f.sampleSize)
	if c == 0 {
		return 0.5, nil
	}

	total := 0.0
	for _, tree := range f.trees {
		total += pathLength(tree, v, 0)
	}
	avg := total / float64(len(f.trees))

	return math.Pow(2, -avg/c), nil
}

// ScoreAll scores every value.
func (f *IsolationForest) ScoreAll(values []float64) ([]float64, error) {
	scores := make([]float64, len(values))
	for i, v := range values {
		s, err := f.Score(v)
		if err != nil {
			return nil, err
		}
		scores[i] = s
	}
	return scores, nil
}

// subsample draws sampleSize values without replacement using a partial
// Fisher-Yates shuffle.
func (f *IsolationForest) subsample(values []float64) []float64 {
	shuffled := make([]float64, len(values))
	copy(shuffled, values)

	for i := 0; i < f.sampleSize; i++ {
		j := i + f.rng.Intn(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:f.sampleSize]
}

func (f *IsolationForest) buildTree(data []float64, depth int) *isolationTree {
	if len(data) <= 1 || depth >= f.maxDepth {
		return &isolationTree{size: len(data), isLeaf: true}
	}

	minVal, maxVal := valueRange(data)
	if minVal == maxVal {
		return &isolationTree{size: len(data), isLeaf: true}
	}

	split := minVal + f.rng.Float64()*(maxVal-minVal)

	left := make([]float64, 0, len(data))
	right := make([]float64, 0, len(data))
	for _, v := range data {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		return &isolationTree{size: len(data), isLeaf: true}
	}

	return &isolationTree{
		splitValue: split,
		left:       f.buildTree(left, depth+1),
		right:      f.buildTree(right, depth+1),
		size:       len(data),
	}
}

func pathLength(tree *isolationTree, v float64, depth int) float64 {
	if tree.isLeaf {
		return float64(depth) + averagePathLength(tree.size)
	}
	if v < tree.splitValue {
		return pathLength(tree.left, v, depth+1)
	}
	return pathLength(tree.right, v, depth+1)
}

// averagePathLength is c(n), the mean path length of an unsuccessful search
// in a binary search tree of n nodes.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	harmonic := math.Log(float64(n-1)) + eulerGamma
	return 2*harmonic - 2*float64(n-1)/float64(n)
}

func valueRange(data []float64) (float64, float64) {
	minVal, maxVal := data[0], data[0]
	for _, v := range data[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}

func checkFinite(values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("value at index %d is not finite", i)
		}
	}
	minVal, maxVal := valueRange(values)
	if math.IsInf(maxVal-minVal, 0) {
		return fmt.Errorf("value range [%g, %g] is too wide to partition", minVal, maxVal)
	}
	return nil
}
