package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rushteam/modelwrap/core"
)

// TFServingClient 是 TensorFlow Serving REST API（端口 8501）的客户端实现。
//
// 请求：POST /v1/models/{name}[/versions/{v}]:predict，{"instances": [[...], ...]}
// 响应：{"predictions": [...]}，每个元素为标量或单元素数组
type TFServingClient struct {
	// Endpoint 服务根地址，如 "http://localhost:8501"
	Endpoint string

	// ModelName 模型名称
	ModelName string

	// ModelVersion 模型版本（可选，为空则使用最新版本）
	ModelVersion string

	// SignatureName 签名名称（可选，默认为 "serving_default"）
	SignatureName string

	// Timeout 超时时间
	Timeout time.Duration

	// Auth 认证信息
	Auth *AuthConfig

	httpClient *http.Client
}

// NewTFServingClient 创建一个新的 TF Serving 客户端。
func NewTFServingClient(endpoint, modelName string, opts ...TFServingOption) *TFServingClient {
	client := &TFServingClient{
		Endpoint:      endpoint,
		ModelName:     modelName,
		SignatureName: "serving_default",
		Timeout:       30 * time.Second,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: client.Timeout}
	}
	return client
}

// TFServingOption TF Serving 客户端配置选项
type TFServingOption func(*TFServingClient)

// WithTFServingVersion 设置模型版本
func WithTFServingVersion(version string) TFServingOption {
	return func(c *TFServingClient) {
		c.ModelVersion = version
	}
}

// WithTFServingSignature 设置签名名称
func WithTFServingSignature(signatureName string) TFServingOption {
	return func(c *TFServingClient) {
		c.SignatureName = signatureName
	}
}

// WithTFServingTimeout 设置超时时间
func WithTFServingTimeout(timeout time.Duration) TFServingOption {
	return func(c *TFServingClient) {
		c.Timeout = timeout
	}
}

// WithTFServingAuth 设置认证信息
func WithTFServingAuth(auth *AuthConfig) TFServingOption {
	return func(c *TFServingClient) {
		c.Auth = auth
	}
}

// WithTFServingHTTPClient 使用自定义 HTTP 客户端
func WithTFServingHTTPClient(client *http.Client) TFServingOption {
	return func(c *TFServingClient) {
		c.httpClient = client
	}
}

func (c *TFServingClient) modelURL() string {
	if c.ModelVersion != "" {
		return fmt.Sprintf("%s/v1/models/%s/versions/%s", c.Endpoint, c.ModelName, c.ModelVersion)
	}
	return fmt.Sprintf("%s/v1/models/%s", c.Endpoint, c.ModelName)
}

// Predict 实现 core.MLService 接口
func (c *TFServingClient) Predict(ctx context.Context, req *core.MLPredictRequest) (*core.MLPredictResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body := map[string]any{"instances": req.Instances}
	if c.SignatureName != "" {
		body["signature_name"] = c.SignatureName
	}

	data, err := doJSON(ctx, c.httpClient, c.Auth, http.MethodPost, c.modelURL()+":predict", body)
	if err != nil {
		return nil, fmt.Errorf("tf serving predict: %w", err)
	}

	var result struct {
		Predictions []any `json:"predictions"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("tf serving decode response: %w", err)
	}

	predictions := make([]float64, 0, len(result.Predictions))
	for _, pred := range result.Predictions {
		v, ok := toFloat64(pred)
		if !ok {
			return nil, fmt.Errorf("tf serving: unexpected prediction type %T", pred)
		}
		predictions = append(predictions, v)
	}
	if err := checkCount(predictions, req); err != nil {
		return nil, err
	}

	return &core.MLPredictResponse{
		Predictions:  predictions,
		ModelVersion: c.ModelVersion,
	}, nil
}

// Health 查询模型状态：GET /v1/models/{name}
func (c *TFServingClient) Health(ctx context.Context) error {
	if _, err := doJSON(ctx, c.httpClient, c.Auth, http.MethodGet, c.modelURL(), nil); err != nil {
		return fmt.Errorf("tf serving health: %w", err)
	}
	return nil
}

// Close HTTP 客户端不持有需要释放的资源
func (c *TFServingClient) Close(ctx context.Context) error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// 确保 TFServingClient 实现了 core.MLService 接口
var _ core.MLService = (*TFServingClient)(nil)
