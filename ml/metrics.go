package ml

import "fmt"

// Metrics scores class 1 predictions against the true labels.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

func Evaluate(yTrue, yPred []int) (Metrics, error) {
	if len(yTrue) != len(yPred) {
		return Metrics{}, fmt.Errorf("labels and predictions size mismatch: %d vs %d", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return Metrics{}, nil
	}

	var correct, truePositive, predictedPositive, actualPositive int
	for i, label := range yPred {
		if label == yTrue[i] {
			correct++
		}
		if label == 1 {
			predictedPositive++
		}
		if yTrue[i] == 1 {
			actualPositive++
			if label == 1 {
				truePositive++
			}
		}
	}

	m := Metrics{
		Accuracy: float64(correct) / float64(len(yTrue)),
		Support:  len(yTrue),
	}
	if predictedPositive > 0 {
		m.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		m.Recall = float64(truePositive) / float64(actualPositive)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m, nil
}
