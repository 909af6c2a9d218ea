package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/modelwrap/feature"
	"github.com/rushteam/modelwrap/model"
	"github.com/rushteam/modelwrap/postprocess"
	"github.com/rushteam/modelwrap/service"
)

// WrapperConfig 是包装器的配置结构（支持 YAML/JSON）。
//
//	name: airbnb-price
//	steps:
//	  - type: sum
//	    config: {output: review_scores_sum, inputs: [review_scores_accuracy, ...]}
//	  - type: truncate
//	    config: {input: latitude, output: trunc_lat, decimals: 2}
//	labeler:
//	  type: threshold
//	  config: {threshold: 100, above: Expensive, below: Not Expensive}
//	model:
//	  kind: random_forest
//	  path: delegate.json
type WrapperConfig struct {
	Name string `yaml:"name" json:"name"`

	// Signature 委托模型的训练列签名；为空时取委托模型自身的 Schema
	Signature []string `yaml:"signature,omitempty" json:"signature,omitempty"`

	Steps   []feature.StepConfig      `yaml:"steps" json:"steps"`
	Labeler postprocess.LabelerConfig `yaml:"labeler" json:"labeler"`
	Model   ModelConfig               `yaml:"model" json:"model"`
}

// ModelConfig 委托模型配置
type ModelConfig struct {
	// Kind 模型类型：linear / random_forest / rpc / tf_serving / kserve
	Kind string `yaml:"kind" json:"kind"`

	// Path 本地工件路径（linear / random_forest），相对路径以配置文件所在目录为基准
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Columns 远程模型的列签名（rpc / tf_serving / kserve）
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`

	// Metadata 训练时导出的 feature_meta.json，Columns 为空时从中读取列签名
	Metadata string `yaml:"metadata,omitempty" json:"metadata,omitempty"`

	// Endpoint 远程模型地址（rpc）
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// Timeout 请求超时（秒）
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// BatchSize / MaxConcurrent 远程请求切块大小与并发上限（rpc）
	BatchSize     int `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	MaxConcurrent int `yaml:"max_concurrent,omitempty" json:"max_concurrent,omitempty"`

	// Service 模型服务配置（tf_serving / kserve）
	Service *service.ServiceConfig `yaml:"service,omitempty" json:"service,omitempty"`
}

// Default 返回房源价格模型的默认配置：评分求和 + 经纬度两位小数 + 阈值 100 标签。
func Default() *WrapperConfig {
	steps := make([]feature.StepConfig, 0, 3)
	for _, s := range feature.DefaultListingSteps() {
		steps = append(steps, s.Config())
	}
	return &WrapperConfig{
		Name:    "airbnb-price",
		Steps:   steps,
		Labeler: postprocess.NewThresholdLabeler().Config(),
		Model: ModelConfig{
			Kind: model.KindRandomForest,
			Path: "delegate.json",
		},
	}
}

// Load 从 YAML/JSON 文件加载包装器配置（按扩展名判断格式）。
// 模型相对路径会被解析为相对配置文件目录的路径。
func Load(path string) (*WrapperConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var cfg WrapperConfig
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	cfg.Model.Path = resolvePath(path, cfg.Model.Path)
	cfg.Model.Metadata = resolvePath(path, cfg.Model.Metadata)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save 以 YAML 写出配置
func (c *WrapperConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// resolvePath 相对路径以配置文件所在目录为基准
func resolvePath(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}
