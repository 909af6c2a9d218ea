package packaging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rushteam/modelwrap/config"
	"github.com/rushteam/modelwrap/core"
	"github.com/rushteam/modelwrap/model"
	"github.com/rushteam/modelwrap/wrapper"
)

// SaveRequest 描述要保存的模型。Wrapper 与 Regressor 二选一。
type SaveRequest struct {
	Name string

	// Wrapper 包装器（wrapper flavor）
	Wrapper *wrapper.Model

	// Regressor 裸回归器（regressor flavor），仅支持可写出本地工件的模型
	Regressor model.Regressor

	// Remote 委托模型不是本地工件（rpc / tf_serving / kserve）时，记录其连接配置
	Remote *config.ModelConfig

	// Overwrite 目录已存在且非空时先清空
	Overwrite bool
}

// SaveModel 把模型保存到 dir。dir 已存在且非空时，除非 Overwrite 否则返回错误。
// 先在同级临时目录写完全部文件再移入 dir，保存失败时 dir 保持原样。
func SaveModel(dir string, req *SaveRequest) error {
	if req == nil || (req.Wrapper == nil) == (req.Regressor == nil) {
		return core.NewDomainError(core.ModulePackaging, core.ErrorCodeInvalidInput,
			"packaging: exactly one of Wrapper or Regressor is required")
	}
	delegate := req.Regressor
	if req.Wrapper != nil {
		delegate = req.Wrapper.Delegate()
	}
	if err := checkDelegate(delegate, req); err != nil {
		return err
	}
	if err := checkDir(dir, req.Overwrite); err != nil {
		return err
	}

	staging, err := stageDir(dir)
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)
	if err := writeModel(staging, delegate, req); err != nil {
		return err
	}
	return commitDir(staging, dir, req.Overwrite)
}

// checkDelegate 在写任何文件之前确定委托模型能否保存
func checkDelegate(delegate model.Regressor, req *SaveRequest) error {
	if _, ok := delegate.(model.Saver); ok {
		return nil
	}
	if req.Wrapper == nil {
		return core.NewDomainError(core.ModulePackaging, core.ErrorCodeNotSupported,
			"packaging: regressor flavor requires a local delegate artifact")
	}
	if req.Remote == nil || req.Remote.Kind == "" {
		return core.NewDomainError(core.ModulePackaging, core.ErrorCodeNotSupported,
			fmt.Sprintf("packaging: delegate %s has no local artifact and no remote config", delegate.Name()))
	}
	return nil
}

func writeModel(dir string, delegate model.Regressor, req *SaveRequest) error {
	artifacts := filepath.Join(dir, ArtifactsDir)
	if err := os.MkdirAll(artifacts, 0o755); err != nil {
		return err
	}

	meta := &MLmodel{
		Name:      req.Name,
		ModelUUID: uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Artifacts: map[string]string{},
	}
	modelCfg, err := saveDelegate(artifacts, delegate, req.Remote)
	if err != nil {
		return err
	}
	meta.DelegateKind = modelCfg.Kind
	if modelCfg.Path != "" {
		meta.Artifacts[DelegateArtifact] = ArtifactsDir + "/" + delegateFile
	}
	meta.Signature.Trained = delegate.Schema()

	if req.Wrapper == nil {
		meta.Flavor = FlavorRegressor
		meta.Signature.Inputs = delegate.Schema()
		meta.Signature.Outputs = "values"
	} else {
		meta.Flavor = FlavorWrapper
		meta.Signature.Inputs = req.Wrapper.RequiredColumns()
		meta.Signature.Outputs = "labels"
		if meta.Name == "" {
			meta.Name = req.Wrapper.Name()
		}
		cfg := &config.WrapperConfig{
			Name:      meta.Name,
			Signature: req.Wrapper.Signature(),
			Steps:     req.Wrapper.StepConfigs(),
			Labeler:   req.Wrapper.LabelerConfig(),
			Model:     *modelCfg,
		}
		if err := cfg.Save(filepath.Join(artifacts, wrapperFile)); err != nil {
			return fmt.Errorf("save wrapper config: %w", err)
		}
		meta.Artifacts[WrapperArtifact] = ArtifactsDir + "/" + wrapperFile
	}

	return meta.write(dir)
}

// saveDelegate 写出本地工件，返回写入 wrapper.yaml 的模型配置（路径相对 artifacts 目录）
func saveDelegate(artifacts string, delegate model.Regressor, remote *config.ModelConfig) (*config.ModelConfig, error) {
	if saver, ok := delegate.(model.Saver); ok {
		if err := saver.Save(filepath.Join(artifacts, delegateFile)); err != nil {
			return nil, fmt.Errorf("save delegate: %w", err)
		}
		return &config.ModelConfig{Kind: delegate.Name(), Path: delegateFile}, nil
	}
	if remote != nil && remote.Kind != "" {
		cfg := *remote
		cfg.Path = ""
		cfg.Metadata = ""
		cfg.Columns = delegate.Schema()
		return &cfg, nil
	}
	return nil, core.NewDomainError(core.ModulePackaging, core.ErrorCodeNotSupported,
		fmt.Sprintf("packaging: delegate %s has no local artifact and no remote config", delegate.Name()))
}

// checkDir dir 不存在或为空时返回 nil；非空且不允许覆盖时返回 INVALID_INPUT。
func checkDir(dir string, overwrite bool) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 && !overwrite {
		return core.NewDomainError(core.ModulePackaging, core.ErrorCodeInvalidInput,
			fmt.Sprintf("packaging: %s already exists and is not empty", dir))
	}
	return nil
}

// stageDir 在 dir 的同级创建隐藏的临时目录，与 dir 位于同一文件系统，可直接 rename。
func stageDir(dir string) (string, error) {
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(parent, "."+filepath.Base(dir)+".staging-*")
}

// commitDir 清空 dir 后把 staging 中的条目逐个移入，MLmodel 最后移入。
// 保留 dir 本身，监听该目录的进程不会丢失 watch。
func commitDir(staging, dir string, overwrite bool) error {
	if err := prepareDir(dir, overwrite); err != nil {
		return err
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	hasMeta := false
	for _, e := range entries {
		if e.Name() == MLmodelFile {
			hasMeta = true
			continue
		}
		if err := os.Rename(filepath.Join(staging, e.Name()), filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	if !hasMeta {
		return nil
	}
	return os.Rename(filepath.Join(staging, MLmodelFile), filepath.Join(dir, MLmodelFile))
}

// prepareDir 确保 dir 存在且为空。overwrite 时清空目录内容但保留目录本身。
func prepareDir(dir string, overwrite bool) error {
	if err := checkDir(dir, overwrite); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	// MLmodel 先删，读方不会看到新旧混合的目录
	if err := os.Remove(filepath.Join(dir, MLmodelFile)); err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
