// Package packaging 负责把包装器（或裸回归器）保存为自描述的模型目录，并重新加载。
//
// 目录结构：
//
//	<dir>/
//	  MLmodel                  YAML 描述文件（flavor、签名、工件列表）
//	  artifacts/delegate.json  委托模型工件（本地模型）
//	  artifacts/wrapper.yaml   预处理步骤 + 标签器 + 模型配置（wrapper flavor）
//
// MLmodel 最后写入，读到 MLmodel 时其余工件一定已经完整。
package packaging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/modelwrap/core"
)

// 目录与工件命名
const (
	MLmodelFile  = "MLmodel"
	ArtifactsDir = "artifacts"

	DelegateArtifact = "delegate"
	WrapperArtifact  = "wrapper"

	delegateFile = "delegate.json"
	wrapperFile  = "wrapper.yaml"
)

// Flavor 描述加载方式
const (
	// FlavorWrapper 预处理 + 委托模型 + 后处理，Predict 输出标签
	FlavorWrapper = "wrapper"
	// FlavorRegressor 裸回归器，Predict 输出数值
	FlavorRegressor = "regressor"
)

// MLmodel 是模型目录的描述文件。
type MLmodel struct {
	Name      string    `yaml:"name"`
	Flavor    string    `yaml:"flavor"`
	ModelUUID string    `yaml:"model_uuid"`
	CreatedAt time.Time `yaml:"utc_time_created"`

	// DelegateKind 委托模型类型（linear / random_forest / rpc ...）
	DelegateKind string `yaml:"delegate_kind"`

	Signature Signature `yaml:"signature"`

	// Artifacts 工件名 -> 相对模型目录的路径
	Artifacts map[string]string `yaml:"artifacts"`
}

// Signature 记录输入输出约定
type Signature struct {
	// Inputs 原始输入必须包含的列
	Inputs []string `yaml:"inputs"`
	// Trained 委托模型的训练列签名
	Trained []string `yaml:"trained"`
	// Outputs 输出类型：labels / values
	Outputs string `yaml:"outputs"`
}

// ReadMLmodel 读取模型目录下的 MLmodel
func ReadMLmodel(dir string) (*MLmodel, error) {
	data, err := os.ReadFile(filepath.Join(dir, MLmodelFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewDomainError(core.ModulePackaging, core.ErrorCodeNotFound,
				fmt.Sprintf("packaging: %s has no %s", dir, MLmodelFile))
		}
		return nil, err
	}
	var meta MLmodel
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", MLmodelFile, err)
	}
	switch meta.Flavor {
	case FlavorWrapper, FlavorRegressor:
	default:
		return nil, core.NewDomainError(core.ModulePackaging, core.ErrorCodeNotSupported,
			fmt.Sprintf("packaging: unsupported flavor %q", meta.Flavor))
	}
	return &meta, nil
}

// write 先写临时文件再 rename，保证读方不会看到半个文件
func (m *MLmodel) write(dir string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", MLmodelFile, err)
	}
	return writeFileAtomic(filepath.Join(dir, MLmodelFile), data)
}

// ArtifactPaths 返回工件的绝对路径
func (m *MLmodel) ArtifactPaths(dir string) map[string]string {
	out := make(map[string]string, len(m.Artifacts))
	for name, rel := range m.Artifacts {
		out[name] = filepath.Join(dir, filepath.FromSlash(rel))
	}
	return out
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
