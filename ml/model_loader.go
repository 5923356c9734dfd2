package ml

import (
	"fmt"
)

const (
	KindLogisticRegression = "logistic_regression"
	KindDecisionTree       = "decision_tree"
)

// NewClassifier builds an unfitted classifier from config.
func NewClassifier(config ClassifierConfig) (Classifier, error) {
	switch config.Kind {
	case KindLogisticRegression, "":
		lr, err := NewLogisticRegression(LogisticRegressionConfig{
			C:           config.C,
			ClassWeight: config.ClassWeight,
			MaxIter:     config.MaxIter,
			Tolerance:   config.Tolerance,
		})
		if err != nil {
			return nil, err
		}
		return lr, nil
	case KindDecisionTree:
		return NewDecisionTree(config.MaxDepth), nil
	default:
		return nil, fmt.Errorf("unsupported classifier kind %q", config.Kind)
	}
}

// RestoreClassifier rebuilds a fitted classifier from its persisted state.
func RestoreClassifier(state ClassifierState) (Classifier, error) {
	if len(state.Params) == 0 {
		return nil, fmt.Errorf("classifier %q has no params", state.Kind)
	}
	switch state.Kind {
	case KindLogisticRegression:
		lr, err := restoreLogisticRegression(state.Params)
		if err != nil {
			return nil, err
		}
		return lr, nil
	case KindDecisionTree:
		dt, err := restoreDecisionTree(state.Params)
		if err != nil {
			return nil, err
		}
		return dt, nil
	default:
		return nil, fmt.Errorf("unsupported classifier kind %q", state.Kind)
	}
}
