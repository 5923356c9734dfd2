package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const defaultMaxDepth = 3

// DecisionTree is a small CART-style tree splitting each node at the median of the
// feature with the lowest weighted Gini impurity.
type DecisionTree struct {
	maxDepth int
	width    int
	nodes    []TreeNode
}

// TreeNode is stored flat; children are indexes into the node slice.
type TreeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	ClassLabel  int     `json:"class_label"`
	Probability float64 `json:"probability"`
	IsLeaf      bool    `json:"is_leaf"`
}

type treeParams struct {
	MaxDepth int        `json:"max_depth"`
	Width    int        `json:"width"`
	Nodes    []TreeNode `json:"nodes"`
}

func NewDecisionTree(maxDepth int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &DecisionTree{maxDepth: maxDepth}
}

func (dt *DecisionTree) Kind() string { return KindDecisionTree }

func (dt *DecisionTree) Fit(X mat.Matrix, y []int) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return ErrEmptyFrame
	}
	if err := ValidateLabels(y, r); err != nil {
		return err
	}
	rows := make([]int, r)
	for i := range rows {
		rows[i] = i
	}
	dt.width = c
	dt.nodes = dt.grow(X, y, rows, 0)
	return nil
}

func (dt *DecisionTree) PredictProba(X mat.Matrix) ([]float64, error) {
	if len(dt.nodes) == 0 {
		return nil, &NotFittedError{Stage: "decision tree"}
	}
	r, c := X.Dims()
	if c != dt.width {
		return nil, fmt.Errorf("%w: tree expects %d features, got %d", ErrSchemaMismatch, dt.width, c)
	}
	proba := make([]float64, r)
	for i := range proba {
		leaf, err := dt.leaf(X, i)
		if err != nil {
			return nil, err
		}
		proba[i] = leaf.Probability
	}
	return proba, nil
}

func (dt *DecisionTree) Predict(X mat.Matrix) ([]int, error) {
	if len(dt.nodes) == 0 {
		return nil, &NotFittedError{Stage: "decision tree"}
	}
	r, c := X.Dims()
	if c != dt.width {
		return nil, fmt.Errorf("%w: tree expects %d features, got %d", ErrSchemaMismatch, dt.width, c)
	}
	labels := make([]int, r)
	for i := range labels {
		leaf, err := dt.leaf(X, i)
		if err != nil {
			return nil, err
		}
		labels[i] = leaf.ClassLabel
	}
	return labels, nil
}

func (dt *DecisionTree) leaf(X mat.Matrix, row int) (TreeNode, error) {
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if X.At(row, node.FeatureIdx) <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(dt.nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) State() (ClassifierState, error) {
	if len(dt.nodes) == 0 {
		return ClassifierState{}, &NotFittedError{Stage: "decision tree"}
	}
	params, err := json.Marshal(treeParams{MaxDepth: dt.maxDepth, Width: dt.width, Nodes: dt.nodes})
	if err != nil {
		return ClassifierState{}, err
	}
	return ClassifierState{Kind: KindDecisionTree, Params: params}, nil
}

func restoreDecisionTree(raw json.RawMessage) (*DecisionTree, error) {
	var params treeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("decision tree params: %w", err)
	}
	if len(params.Nodes) == 0 || params.Width <= 0 {
		return nil, errors.New("decision tree: no nodes")
	}
	for i, node := range params.Nodes {
		if node.IsLeaf {
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= params.Width ||
			node.LeftChild <= i || node.LeftChild >= len(params.Nodes) ||
			node.RightChild <= i || node.RightChild >= len(params.Nodes) {
			return nil, fmt.Errorf("decision tree: node %d is malformed", i)
		}
	}
	dt := NewDecisionTree(params.MaxDepth)
	dt.width = params.Width
	dt.nodes = params.Nodes
	return dt, nil
}

func (dt *DecisionTree) grow(X mat.Matrix, y []int, rows []int, depth int) []TreeNode {
	label, probability := leafStats(y, rows)
	leaf := []TreeNode{{
		FeatureIdx:  -1,
		LeftChild:   -1,
		RightChild:  -1,
		ClassLabel:  label,
		Probability: probability,
		IsLeaf:      true,
	}}
	if depth >= dt.maxDepth || probability == 0 || probability == 1 {
		return leaf
	}

	feature, threshold, ok := bestSplit(X, y, rows)
	if !ok {
		return leaf
	}
	left, right := partition(X, rows, feature, threshold)

	leftNodes := dt.grow(X, y, left, depth+1)
	rightNodes := dt.grow(X, y, right, depth+1)

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, TreeNode{
		FeatureIdx:  feature,
		Threshold:   threshold,
		LeftChild:   1,
		RightChild:  1 + len(leftNodes),
		ClassLabel:  label,
		Probability: probability,
	})
	nodes = append(nodes, shift(leftNodes, 1)...)
	nodes = append(nodes, shift(rightNodes, 1+len(leftNodes))...)
	return nodes
}

// shift rebases child indexes of a subtree that is placed at offset.
func shift(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if !nodes[i].IsLeaf {
			nodes[i].LeftChild += offset
			nodes[i].RightChild += offset
		}
	}
	return nodes
}

func bestSplit(X mat.Matrix, y []int, rows []int) (int, float64, bool) {
	_, width := X.Dims()
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	values := make([]float64, len(rows))
	for feature := 0; feature < width; feature++ {
		for i, row := range rows {
			values[i] = X.At(row, feature)
		}
		threshold := median(values)
		left, right := partition(X, rows, feature, threshold)
		if len(left) == 0 || len(right) == 0 {
			continue
		}
		impurity := weightedGini(y, left, right)
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestFeature = feature
			bestThreshold = threshold
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func partition(X mat.Matrix, rows []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, row := range rows {
		if X.At(row, feature) <= threshold {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return left, right
}

func weightedGini(y []int, left, right []int) float64 {
	total := float64(len(left) + len(right))
	return float64(len(left))/total*gini(y, left) + float64(len(right))/total*gini(y, right)
}

func gini(y []int, rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	_, p := leafStats(y, rows)
	return 1 - p*p - (1-p)*(1-p)
}

// leafStats returns the majority label of rows and the share of class 1.
// Ties go to class 0.
func leafStats(y []int, rows []int) (int, float64) {
	if len(rows) == 0 {
		return 0, 0
	}
	ones := 0
	for _, row := range rows {
		ones += y[row]
	}
	p := float64(ones) / float64(len(rows))
	if 2*ones > len(rows) {
		return 1, p
	}
	return 0, p
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
