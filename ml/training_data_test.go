package ml

import (
	"math"
	"testing"
)

func TestValidateLabels(t *testing.T) {
	if err := ValidateLabels([]int{0, 1, 1}, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateLabels([]int{0, 2}, 2); err == nil {
		t.Fatal("expected non-binary label error")
	}
	if err := ValidateLabels([]int{0, 1}, 3); err == nil {
		t.Fatal("expected size mismatch error")
	}
	if err := ValidateLabels(nil, 0); err == nil {
		t.Fatal("expected empty labels error")
	}
}

func TestSampleWeightsBalanced(t *testing.T) {
	y := []int{0, 0, 0, 1}
	weights := SampleWeights(y, "balanced")
	// n / (2 * count): 4/6 for class 0, 4/2 for class 1.
	if math.Abs(weights[0]-4.0/6.0) > 1e-12 || weights[3] != 2 {
		t.Fatalf("unexpected weights %v", weights)
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	if math.Abs(total-float64(len(y))) > 1e-12 {
		t.Fatalf("balanced weights should sum to n, got %v", total)
	}
	for _, w := range SampleWeights(y, "none") {
		if w != 1 {
			t.Fatalf("expected unit weights, got %v", w)
		}
	}
}

func TestEvaluate(t *testing.T) {
	m, err := Evaluate([]int{1, 1, 0, 0, 1}, []int{1, 0, 0, 1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Accuracy != 0.6 {
		t.Fatalf("expected accuracy 0.6, got %v", m.Accuracy)
	}
	if math.Abs(m.Precision-2.0/3.0) > 1e-12 || math.Abs(m.Recall-2.0/3.0) > 1e-12 {
		t.Fatalf("unexpected precision/recall %v/%v", m.Precision, m.Recall)
	}
	if math.Abs(m.F1-2.0/3.0) > 1e-12 {
		t.Fatalf("unexpected f1 %v", m.F1)
	}
	if _, err := Evaluate([]int{1}, nil); err == nil {
		t.Fatal("expected size mismatch error")
	}
}
