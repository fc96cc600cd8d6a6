package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// XGBoostModel evaluates a gradient boosted tree ensemble from an XGBoost
// JSON dump. Splits and leaves are compared and summed in float32, as the
// XGBoost runtime does, so predictions match the Python booster.
type XGBoostModel struct {
	baseScore float32
	trees     [][]xgbNode
}

type xgbNode struct {
	feature   int // -1 for leaves
	threshold float32
	yes       int
	no        int
	missing   int
	leaf      float32
}

type xgbDumpNode struct {
	NodeID         int           `json:"nodeid"`
	Split          string        `json:"split"`
	SplitCondition float64       `json:"split_condition"`
	Yes            int           `json:"yes"`
	No             int           `json:"no"`
	Missing        int           `json:"missing"`
	Leaf           *float64      `json:"leaf"`
	Children       []xgbDumpNode `json:"children"`
}

type xgbDumpEnvelope struct {
	BaseScore *float64      `json:"base_score"`
	Trees     []xgbDumpNode `json:"trees"`
}

func (m *XGBoostModel) Predict(features []float64) (float64, error) {
	if len(m.trees) == 0 {
		return 0, errors.New("model not loaded")
	}
	var sum float32
	for t, tree := range m.trees {
		leaf, err := walkTree(tree, features)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", t, err)
		}
		sum += leaf
	}
	return float64(m.baseScore + sum), nil
}

func walkTree(tree []xgbNode, features []float64) (float32, error) {
	idx := 0
	for steps := 0; steps <= len(tree); steps++ {
		node := tree[idx]
		if node.feature < 0 {
			return node.leaf, nil
		}
		if node.feature >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		x := features[node.feature]
		switch {
		case math.IsNaN(x):
			idx = node.missing
		case float32(x) < node.threshold:
			idx = node.yes
		default:
			idx = node.no
		}
	}
	return 0, errors.New("tree contains a cycle")
}

// Load reads either a bare array of dumped trees or an envelope carrying
// the base score next to the trees.
func (m *XGBoostModel) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var dump []xgbDumpNode
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &dump); err != nil {
			return fmt.Errorf("decode xgboost dump %s: %w", path, err)
		}
	} else {
		var env xgbDumpEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return fmt.Errorf("decode xgboost dump %s: %w", path, err)
		}
		dump = env.Trees
		if env.BaseScore != nil {
			m.baseScore = float32(*env.BaseScore)
		}
	}
	if len(dump) == 0 {
		return errors.New("xgboost dump has no trees")
	}

	trees := make([][]xgbNode, len(dump))
	for i := range dump {
		tree, err := compileTree(&dump[i])
		if err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
		trees[i] = tree
	}
	m.trees = trees
	return nil
}

// compileTree flattens a nested dump into a slice with the root at index 0
// and child references rewritten from node ids to slice positions.
func compileTree(root *xgbDumpNode) ([]xgbNode, error) {
	var flat []*xgbDumpNode
	var collect func(n *xgbDumpNode)
	collect = func(n *xgbDumpNode) {
		flat = append(flat, n)
		for i := range n.Children {
			collect(&n.Children[i])
		}
	}
	collect(root)

	position := make(map[int]int, len(flat))
	for i, n := range flat {
		if _, dup := position[n.NodeID]; dup {
			return nil, fmt.Errorf("duplicate node id %d", n.NodeID)
		}
		position[n.NodeID] = i
	}

	resolve := func(id int) (int, error) {
		p, ok := position[id]
		if !ok {
			return 0, fmt.Errorf("unknown child node id %d", id)
		}
		return p, nil
	}

	nodes := make([]xgbNode, len(flat))
	for i, n := range flat {
		if n.Leaf != nil {
			nodes[i] = xgbNode{feature: -1, leaf: float32(*n.Leaf)}
			continue
		}
		feature, err := splitFeature(n.Split)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", n.NodeID, err)
		}
		yes, err := resolve(n.Yes)
		if err != nil {
			return nil, err
		}
		no, err := resolve(n.No)
		if err != nil {
			return nil, err
		}
		missing, err := resolve(n.Missing)
		if err != nil {
			return nil, err
		}
		nodes[i] = xgbNode{
			feature:   feature,
			threshold: float32(n.SplitCondition),
			yes:       yes,
			no:        no,
			missing:   missing,
		}
	}
	return nodes, nil
}

// splitFeature maps a split name to a column index. Boosters trained on a
// DataFrame use column names; others use f0, f1, ...
func splitFeature(split string) (int, error) {
	if idx, ok := featureIndex(split); ok {
		return idx, nil
	}
	if rest, ok := strings.CutPrefix(split, "f"); ok {
		if idx, err := strconv.Atoi(rest); err == nil && idx >= 0 && idx < NumFeatures {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("unknown split feature %q", split)
}
