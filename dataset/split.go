package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"fae/ml"
)

type Split struct {
	Train       *ml.Frame
	TrainLabels []int
	Test        *ml.Frame
	TestLabels  []int
}

// SplitFrame shuffles rows with seed and holds out testRatio of them.
// The same seed always yields the same split.
func SplitFrame(frame *ml.Frame, labels []int, testRatio float64, seed int64) (Split, error) {
	n := frame.Len()
	if n != len(labels) {
		return Split{}, fmt.Errorf("split: %d rows but %d labels", n, len(labels))
	}
	if n < 2 {
		return Split{}, fmt.Errorf("split: need at least 2 rows, got %d", n)
	}
	if testRatio <= 0 || testRatio >= 1 {
		return Split{}, fmt.Errorf("split: test ratio %g must be in (0, 1)", testRatio)
	}

	testRows := int(math.Round(float64(n) * testRatio))
	testRows = max(1, min(testRows, n-1))

	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(n)
	trainIdx, testIdx := indices[testRows:], indices[:testRows]

	return Split{
		Train:       frame.Take(trainIdx),
		TrainLabels: pick(labels, trainIdx),
		Test:        frame.Take(testIdx),
		TestLabels:  pick(labels, testIdx),
	}, nil
}

func pick(labels []int, indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = labels[idx]
	}
	return out
}
