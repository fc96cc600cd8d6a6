package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// RegressionTree is a single CART regression tree exported as a flat node
// array. Node 0 is the root.
type RegressionTree struct {
	nodes []TreeNode
}

// TreeNode is one node of a regression tree. A leaf carries its prediction in
// Value; an inner node sends x[FeatureIdx] <= Threshold to LeftChild.
type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

func (dt *RegressionTree) Predict(features []float64) (float64, error) {
	if len(dt.nodes) == 0 {
		return 0, errors.New("model not loaded")
	}
	idx := 0
	// a well-formed tree reaches a leaf in fewer steps than it has nodes
	for steps := 0; steps <= len(dt.nodes); steps++ {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
	return 0, errors.New("tree contains a cycle")
}

// Load reads a JSON node list from path.
func (dt *RegressionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var nodes []TreeNode
	if err := json.Unmarshal(payload, &nodes); err != nil {
		return fmt.Errorf("decode decision tree %s: %w", path, err)
	}
	if len(nodes) == 0 {
		return errors.New("decision tree has no nodes")
	}
	for i, n := range nodes {
		if n.IsLeaf {
			continue
		}
		if n.FeatureIdx < 0 || n.FeatureIdx >= NumFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.FeatureIdx)
		}
	}
	dt.nodes = nodes
	return nil
}
