package model

import (
	"errors"
	"fmt"

	cperrors "github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

// TreeNode is one node of a regression tree. Leaves carry Value; split nodes
// send features[FeatureIdx] <= Threshold to LeftChild.
type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

// RandomForest averages the predictions of its trees.
type RandomForest struct {
	Type     string       `json:"type"`
	Features []string     `json:"feature_names"`
	Trees    [][]TreeNode `json:"trees"`
}

// FeatureNames implements Regressor
func (rf *RandomForest) FeatureNames() []string {
	return append([]string(nil), rf.Features...)
}

// Predict implements Regressor
func (rf *RandomForest) Predict(features []float64) (float64, error) {
	if len(rf.Trees) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(features) != len(rf.Features) {
		return 0, fmt.Errorf("%w: expected %d features, got %d", cperrors.ErrInference, len(rf.Features), len(features))
	}
	sum := 0.0
	for i, tree := range rf.Trees {
		v, err := predictTree(tree, features)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += v
	}
	return sum / float64(len(rf.Trees)), nil
}

func predictTree(nodes []TreeNode, features []float64) (float64, error) {
	idx := 0
	// a well-formed tree reaches a leaf in fewer steps than it has nodes
	for steps := 0; steps <= len(nodes); steps++ {
		if idx < 0 || idx >= len(nodes) {
			return 0, errors.New("invalid tree state")
		}
		node := nodes[idx]
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
	}
	return 0, errors.New("tree contains a cycle")
}

func (rf *RandomForest) validate() error {
	if len(rf.Features) == 0 {
		return cperrors.NewConfigError("model", "random forest has no feature_names", nil)
	}
	if len(rf.Trees) == 0 {
		return cperrors.NewConfigError("model", "random forest has no trees", nil)
	}
	for i, tree := range rf.Trees {
		if len(tree) == 0 {
			return cperrors.NewConfigError("model", fmt.Sprintf("tree %d is empty", i), nil)
		}
		for j, node := range tree {
			if node.IsLeaf {
				continue
			}
			if node.FeatureIdx < 0 || node.FeatureIdx >= len(rf.Features) {
				return cperrors.NewConfigError("model", fmt.Sprintf("tree %d node %d splits on unknown feature %d", i, j, node.FeatureIdx), nil)
			}
			if node.LeftChild <= j || node.LeftChild >= len(tree) || node.RightChild <= j || node.RightChild >= len(tree) {
				return cperrors.NewConfigError("model", fmt.Sprintf("tree %d node %d has invalid children", i, j), nil)
			}
		}
	}
	return nil
}
