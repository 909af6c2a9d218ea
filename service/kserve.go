package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rushteam/modelwrap/core"
)

// KServeClient 是 Open Inference Protocol（KServe V2）的客户端实现，
// MLServer 部署的 scikit-learn / XGBoost 模型使用该协议。
//
//   - Infer: POST /v2/models/{model_name}[/versions/{version}]/infer
//   - 请求：{"inputs": [{"name": "input-0", "shape": [rows, cols], "datatype": "FP64", "data": [...]}]}
//   - 响应：{"outputs": [{"name": "predict", "data": [...]}]}
//   - Model Ready: GET /v2/models/{model_name}/ready
type KServeClient struct {
	// Endpoint 服务根地址，如 "http://localhost:8080"
	Endpoint string
	// ModelName 模型名称
	ModelName string
	// ModelVersion 模型版本（可选，路径中会带 /versions/{version}）
	ModelVersion string
	// InputName 输入张量名称，默认 "input-0"
	InputName string
	// OutputName 期望的输出张量名称；空则取 outputs[0]
	OutputName string
	// Timeout 请求超时
	Timeout time.Duration
	// Auth 认证配置
	Auth *AuthConfig

	httpClient *http.Client
}

// NewKServeClient 创建 KServe 客户端。
func NewKServeClient(endpoint, modelName string, opts ...KServeOption) *KServeClient {
	c := &KServeClient{
		Endpoint:  endpoint,
		ModelName: modelName,
		InputName: "input-0",
		Timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

// KServeOption 配置 KServe 客户端
type KServeOption func(*KServeClient)

// WithKServeVersion 设置模型版本
func WithKServeVersion(version string) KServeOption {
	return func(c *KServeClient) {
		c.ModelVersion = version
	}
}

// WithKServeOutputName 指定输出张量名称
func WithKServeOutputName(name string) KServeOption {
	return func(c *KServeClient) {
		c.OutputName = name
	}
}

// WithKServeTimeout 设置请求超时
func WithKServeTimeout(timeout time.Duration) KServeOption {
	return func(c *KServeClient) {
		c.Timeout = timeout
	}
}

// WithKServeAuth 设置认证
func WithKServeAuth(auth *AuthConfig) KServeOption {
	return func(c *KServeClient) {
		c.Auth = auth
	}
}

// WithKServeHTTPClient 使用自定义 HTTP 客户端
func WithKServeHTTPClient(client *http.Client) KServeOption {
	return func(c *KServeClient) {
		c.httpClient = client
	}
}

func (c *KServeClient) modelURL() string {
	path := fmt.Sprintf("%s/v2/models/%s", c.Endpoint, c.ModelName)
	if c.ModelVersion != "" {
		path = fmt.Sprintf("%s/versions/%s", path, c.ModelVersion)
	}
	return path
}

type v2InputTensor struct {
	Name     string    `json:"name"`
	Shape    []int     `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float64 `json:"data"`
}

type v2OutputTensor struct {
	Name     string `json:"name"`
	Shape    []int  `json:"shape"`
	Datatype string `json:"datatype"`
	Data     []any  `json:"data"`
}

type v2InferResponse struct {
	ModelName    string           `json:"model_name"`
	ModelVersion string           `json:"model_version"`
	Outputs      []v2OutputTensor `json:"outputs"`
}

// Predict 实现 core.MLService：实例按行优先展平为一个 [rows, cols] 的 FP64 张量。
func (c *KServeClient) Predict(ctx context.Context, req *core.MLPredictRequest) (*core.MLPredictResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	rows := len(req.Instances)
	cols := len(req.Instances[0])
	data := make([]float64, 0, rows*cols)
	for i, row := range req.Instances {
		if len(row) != cols {
			return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput,
				fmt.Sprintf("kserve: instance %d has %d values, expected %d", i, len(row), cols))
		}
		data = append(data, row...)
	}

	body := map[string]any{
		"inputs": []v2InputTensor{{
			Name:     c.InputName,
			Shape:    []int{rows, cols},
			Datatype: "FP64",
			Data:     data,
		}},
	}
	respData, err := doJSON(ctx, c.httpClient, c.Auth, http.MethodPost, c.modelURL()+"/infer", body)
	if err != nil {
		return nil, fmt.Errorf("kserve infer: %w", err)
	}

	var out v2InferResponse
	if err := json.Unmarshal(respData, &out); err != nil {
		return nil, fmt.Errorf("kserve parse response: %w", err)
	}
	if len(out.Outputs) == 0 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidOutput, "kserve: empty outputs")
	}
	tensor := &out.Outputs[0]
	for i := range out.Outputs {
		if c.OutputName != "" && out.Outputs[i].Name == c.OutputName {
			tensor = &out.Outputs[i]
			break
		}
	}

	predictions := make([]float64, 0, len(tensor.Data))
	for _, v := range tensor.Data {
		f, ok := toFloat64(v)
		if !ok {
			return nil, fmt.Errorf("kserve: unexpected output value %T", v)
		}
		predictions = append(predictions, f)
	}
	if err := checkCount(predictions, req); err != nil {
		return nil, err
	}

	version := out.ModelVersion
	if version == "" {
		version = c.ModelVersion
	}
	return &core.MLPredictResponse{Predictions: predictions, ModelVersion: version}, nil
}

// Health 实现 core.MLService：GET /v2/models/{model_name}/ready
func (c *KServeClient) Health(ctx context.Context) error {
	if _, err := doJSON(ctx, c.httpClient, c.Auth, http.MethodGet, c.modelURL()+"/ready", nil); err != nil {
		return fmt.Errorf("kserve health: %w", err)
	}
	return nil
}

// Close 实现 core.MLService。
func (c *KServeClient) Close(ctx context.Context) error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ core.MLService = (*KServeClient)(nil)
