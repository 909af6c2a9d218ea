package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/modelwrap/core"
)

// RPCRegressor 是通过 HTTP JSON 调用外部模型服务的 Regressor 实现。
// 适用于 Python 侧用 scikit-learn / XGBoost 训练、以独立服务部署的模型。
//
// 大表会按 BatchSize 切块并发请求，块内与块间顺序都保持不变。
type RPCRegressor struct {
	name    string
	columns core.Schema

	Endpoint      string // 例如 "http://localhost:8080/predict"
	Timeout       time.Duration
	BatchSize     int // 每次请求的最大行数，<=0 表示不切块
	MaxConcurrent int // 最大并发请求数，<=0 表示不限制
	Client        *http.Client
}

// RPCOption RPCRegressor 配置选项
type RPCOption func(*RPCRegressor)

// WithRPCTimeout 设置单次请求超时
func WithRPCTimeout(timeout time.Duration) RPCOption {
	return func(m *RPCRegressor) {
		m.Timeout = timeout
	}
}

// WithRPCBatch 设置切块大小与并发上限
func WithRPCBatch(batchSize, maxConcurrent int) RPCOption {
	return func(m *RPCRegressor) {
		m.BatchSize = batchSize
		m.MaxConcurrent = maxConcurrent
	}
}

// WithRPCClient 使用自定义 http.Client
func WithRPCClient(client *http.Client) RPCOption {
	return func(m *RPCRegressor) {
		m.Client = client
	}
}

func NewRPCRegressor(name, endpoint string, columns core.Schema, opts ...RPCOption) *RPCRegressor {
	m := &RPCRegressor{
		name:          name,
		columns:       append(core.Schema(nil), columns...),
		Endpoint:      endpoint,
		Timeout:       5 * time.Second,
		BatchSize:     256,
		MaxConcurrent: 4,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.Client == nil {
		m.Client = &http.Client{Timeout: m.Timeout}
	}
	return m
}

func (m *RPCRegressor) Name() string        { return m.name }
func (m *RPCRegressor) Schema() core.Schema { return append(core.Schema(nil), m.columns...) }

// Predict 调用远程模型服务进行批量预测。
// 请求格式（JSON）：
//
//	{"columns": ["accommodates", ...], "instances": [[2, 1, 57, 37.77, -122.43], ...]}
//
// 响应格式（JSON）：
//
//	{"predictions": [150.2, 85.0, ...]}
func (m *RPCRegressor) Predict(ctx context.Context, frame *core.Frame) ([]float64, error) {
	if err := checkSchema(m.name, m.columns, frame); err != nil {
		return nil, err
	}
	n := frame.Len()
	if n == 0 {
		return []float64{}, nil
	}

	size := m.BatchSize
	if size <= 0 || size > n {
		size = n
	}

	out := make([]float64, n)
	eg, egCtx := errgroup.WithContext(ctx)
	if m.MaxConcurrent > 0 {
		eg.SetLimit(m.MaxConcurrent)
	}
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		chunk := frame.Slice(start, end)
		eg.Go(func() error {
			preds, err := m.call(egCtx, chunk)
			if err != nil {
				return fmt.Errorf("rows [%d,%d): %w", start, end, err)
			}
			// 每个块写入互不重叠的区间
			copy(out[start:end], preds)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *RPCRegressor) call(ctx context.Context, chunk *core.Frame) ([]float64, error) {
	jsonData, err := json.Marshal(map[string]any{
		"columns":   chunk.Columns(),
		"instances": chunk.Rows(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeUnavailable,
			fmt.Sprintf("rpc call %s: %v", m.Endpoint, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		Predictions []float64 `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Predictions) != chunk.Len() {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidOutput,
			fmt.Sprintf("response predictions count mismatch: expected %d, got %d", chunk.Len(), len(result.Predictions)))
	}
	return result.Predictions, nil
}
