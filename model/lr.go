package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rushteam/modelwrap/core"
)

// LinearRegressor 实现了线性回归模型。
//
// 预测原理：y = Intercept + sum(Coef_i * Feature_i)
//
// Coefficients 与 Columns 一一对应，Columns 即训练列签名。
type LinearRegressor struct {
	Intercept    float64   `json:"intercept"`
	Columns      []string  `json:"columns"`
	Coefficients []float64 `json:"coefficients"`
}

// NewLinearRegressor 创建线性回归模型，列与系数数量必须一致
func NewLinearRegressor(intercept float64, columns []string, coefficients []float64) (*LinearRegressor, error) {
	m := &LinearRegressor{
		Intercept:    intercept,
		Columns:      append([]string(nil), columns...),
		Coefficients: append([]float64(nil), coefficients...),
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadLinearRegressor 从 JSON 工件加载
//
//	{"intercept": 12.5, "columns": ["accommodates", ...], "coefficients": [30.1, ...]}
func LoadLinearRegressor(path string) (*LinearRegressor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m LinearRegressor
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse linear model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *LinearRegressor) validate() error {
	if len(m.Columns) == 0 {
		return fmt.Errorf("linear model: columns are required")
	}
	if len(m.Columns) != len(m.Coefficients) {
		return fmt.Errorf("linear model: %d columns but %d coefficients", len(m.Columns), len(m.Coefficients))
	}
	return nil
}

// Save 以 JSON 写出工件
func (m *LinearRegressor) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (m *LinearRegressor) Name() string        { return KindLinear }
func (m *LinearRegressor) Schema() core.Schema { return append(core.Schema(nil), m.Columns...) }

func (m *LinearRegressor) Predict(_ context.Context, frame *core.Frame) ([]float64, error) {
	if err := checkSchema(m.Name(), m.Columns, frame); err != nil {
		return nil, err
	}
	out := make([]float64, frame.Len())
	for i := range out {
		y := m.Intercept
		for j, v := range frame.Row(i) {
			y += m.Coefficients[j] * v
		}
		out[i] = y
	}
	return out, nil
}
