package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rushteam/modelwrap/core"
)

// ServiceType 服务类型
type ServiceType string

const (
	ServiceTypeTFServing ServiceType = "tf_serving" // TensorFlow Serving REST
	ServiceTypeKServe    ServiceType = "kserve"     // KServe / MLServer（Open Inference Protocol V2）
)

// ServiceConfig 远程模型服务配置，可直接嵌入包装器 YAML 配置。
//
//	service:
//	  type: kserve
//	  endpoint: http://localhost:8080
//	  model_name: airbnb-price
//	  timeout: 5
type ServiceConfig struct {
	// Type 服务类型
	Type ServiceType `yaml:"type" json:"type"`

	// Endpoint 服务根地址
	// TF Serving: "http://localhost:8501"
	// KServe / MLServer: "http://localhost:8080"
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// ModelName 模型名称
	ModelName string `yaml:"model_name" json:"model_name"`

	// ModelVersion 模型版本（可选）
	ModelVersion string `yaml:"model_version,omitempty" json:"model_version,omitempty"`

	// Timeout 超时时间（秒）
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Auth 认证信息（可选）
	Auth *AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	Type     string `yaml:"type" json:"type"` // "basic", "bearer", "api_key"
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	Token    string `yaml:"token,omitempty" json:"token,omitempty"`
	APIKey   string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
}

// apply 添加认证信息到 HTTP 请求
func (a *AuthConfig) apply(req *http.Request) {
	if a == nil {
		return
	}
	switch a.Type {
	case "basic":
		req.SetBasicAuth(a.Username, a.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case "api_key":
		req.Header.Set("X-API-Key", a.APIKey)
	}
}

// doJSON 发送请求并把 200 响应体读出；非 200 返回带响应体的错误，连接失败返回 UNAVAILABLE。
func doJSON(ctx context.Context, client *http.Client, auth *AuthConfig, method, url string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	auth.apply(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable,
			fmt.Sprintf("request %s: %v", url, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status=%d, body=%s", resp.StatusCode, string(data))
	}
	return data, nil
}

// checkCount 校验预测条数与实例数一致
func checkCount(predictions []float64, req *core.MLPredictRequest) error {
	if len(predictions) != len(req.Instances) {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidOutput,
			fmt.Sprintf("predictions count mismatch: expected %d, got %d", len(req.Instances), len(predictions)))
	}
	return nil
}

func validateRequest(req *core.MLPredictRequest) error {
	if req == nil || len(req.Instances) == 0 {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "instances are required")
	}
	return nil
}

// toFloat64 解析单个预测值，多输出时取第一个标量
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case []any:
		if len(val) > 0 {
			return toFloat64(val[0])
		}
		return 0, false
	default:
		return 0, false
	}
}
