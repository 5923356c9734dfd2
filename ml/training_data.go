package ml

import (
	"errors"
	"fmt"
)

// ValidateLabels checks that y is a binary label vector matching n rows.
func ValidateLabels(y []int, n int) error {
	if len(y) == 0 {
		return errors.New("labels are empty")
	}
	if len(y) != n {
		return fmt.Errorf("features and labels size mismatch: %d rows, %d labels", n, len(y))
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return fmt.Errorf("label %d at row %d is not binary", label, i)
		}
	}
	return nil
}

// LabelCounts returns how many rows carry class 0 and class 1.
func LabelCounts(y []int) [2]int {
	var counts [2]int
	for _, label := range y {
		if label == 0 || label == 1 {
			counts[label]++
		}
	}
	return counts
}

// SampleWeights returns one weight per row. "balanced" weighs each class by
// n / (2 * count), anything else gives every row weight 1.
func SampleWeights(y []int, classWeight string) []float64 {
	weights := make([]float64, len(y))
	counts := LabelCounts(y)
	for i, label := range y {
		if classWeight == "balanced" && counts[label] > 0 {
			weights[i] = float64(len(y)) / (2 * float64(counts[label]))
		} else {
			weights[i] = 1
		}
	}
	return weights
}
