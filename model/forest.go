package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rushteam/modelwrap/core"
)

// TreeNode 是回归树的一个节点，树以扁平数组存储，0 号为根。
// 非叶子节点：feature <= threshold 走左子树，否则走右子树。
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// RegressionTree 单棵回归树
type RegressionTree struct {
	Nodes []TreeNode `json:"nodes"`
}

// ForestRegressor 随机森林回归：各棵树输出的均值。
//
// 工件格式与 scikit-learn 导出的树结构一一对应：
//
//	{"columns": [...], "trees": [{"nodes": [{"feature": 2, "threshold": 1.5, "left": 1, "right": 2}, ...]}]}
type ForestRegressor struct {
	Columns []string         `json:"columns"`
	Trees   []RegressionTree `json:"trees"`
}

// LoadForestRegressor 从 JSON 工件加载
func LoadForestRegressor(path string) (*ForestRegressor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m ForestRegressor
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse forest model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate 校验树结构：下标不越界，特征下标在列签名范围内。
// 子节点下标必须大于父节点，保证遍历一定终止。
func (m *ForestRegressor) Validate() error {
	if len(m.Columns) == 0 {
		return errors.New("forest model: columns are required")
	}
	if len(m.Trees) == 0 {
		return errors.New("forest model: no trees")
	}
	for t, tree := range m.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("forest model: tree %d is empty", t)
		}
		for i, node := range tree.Nodes {
			if node.Leaf {
				continue
			}
			if node.Feature < 0 || node.Feature >= len(m.Columns) {
				return fmt.Errorf("forest model: tree %d node %d feature index %d out of range", t, i, node.Feature)
			}
			if node.Left <= i || node.Left >= len(tree.Nodes) || node.Right <= i || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("forest model: tree %d node %d has invalid children", t, i)
			}
		}
	}
	return nil
}

// Save 以 JSON 写出工件
func (m *ForestRegressor) Save(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (m *ForestRegressor) Name() string        { return KindRandomForest }
func (m *ForestRegressor) Schema() core.Schema { return append(core.Schema(nil), m.Columns...) }

func (m *ForestRegressor) Predict(_ context.Context, frame *core.Frame) ([]float64, error) {
	if err := checkSchema(m.Name(), m.Columns, frame); err != nil {
		return nil, err
	}
	out := make([]float64, frame.Len())
	for i := range out {
		row := frame.Row(i)
		var sum float64
		for _, tree := range m.Trees {
			sum += tree.predict(row)
		}
		out[i] = sum / float64(len(m.Trees))
	}
	return out, nil
}

func (t RegressionTree) predict(row []float64) float64 {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.Leaf {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}
