package feature

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rushteam/modelwrap/core"
)

// FeatureMetadata 特征元数据，对应训练时导出的 feature_meta.json
type FeatureMetadata struct {
	// FeatureColumns 特征列名列表（按训练顺序）
	FeatureColumns []string `json:"feature_columns" yaml:"feature_columns"`
	// LabelColumn 标签列名（如 price）
	LabelColumn string `json:"label_column,omitempty" yaml:"label_column,omitempty"`
	// ModelVersion 模型版本
	ModelVersion string `json:"model_version,omitempty" yaml:"model_version,omitempty"`
	// CreatedAt 创建时间
	CreatedAt string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Schema 返回训练列签名
func (m *FeatureMetadata) Schema() core.Schema {
	return append(core.Schema(nil), m.FeatureColumns...)
}

// LoadFeatureMetadata 从文件加载特征元数据
//
// 用法：
//
//	meta, err := feature.LoadFeatureMetadata("model/feature_meta.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("特征列: %v\n", meta.FeatureColumns)
func LoadFeatureMetadata(path string) (*FeatureMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature metadata: %w", err)
	}

	var meta FeatureMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse feature metadata: %w", err)
	}
	if len(meta.FeatureColumns) == 0 {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "feature metadata: feature_columns is empty")
	}

	return &meta, nil
}

// GetMissingFeatures 返回 frame 中缺失的特征列
func (m *FeatureMetadata) GetMissingFeatures(frame *core.Frame) []string {
	return frame.Schema().Missing(m.FeatureColumns)
}

// Align 按 feature_columns 的顺序挑选列，丢弃其他列。
// 与训练时不同，这里不做缺失值填充：缺列直接返回 SchemaMismatch。
func (m *FeatureMetadata) Align(frame *core.Frame) (*core.Frame, error) {
	if missing := m.GetMissingFeatures(frame); len(missing) > 0 {
		return nil, core.NewSchemaMismatch(core.ModuleFeature, missing)
	}
	return frame.Select(m.FeatureColumns)
}
