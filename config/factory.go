package config

import (
	"fmt"

	"github.com/rushteam/modelwrap/core"
	"github.com/rushteam/modelwrap/feature"
	"github.com/rushteam/modelwrap/model"
	"github.com/rushteam/modelwrap/postprocess"
	"github.com/rushteam/modelwrap/wrapper"
)

// BuildSteps 根据配置构建预处理步骤（需要注册步骤构建器）。
func BuildSteps(cfgs []feature.StepConfig) ([]feature.Step, error) {
	factory := StepFactory()
	steps := make([]feature.Step, 0, len(cfgs))
	for i, sc := range cfgs {
		step, err := factory.Build(sc.Type, sc.Config)
		if err != nil {
			return nil, fmt.Errorf("build step %d (%s): %w", i, sc.Type, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// BuildLabeler 根据配置构建标签器；未配置类型时使用默认阈值标签器。
func BuildLabeler(cfg postprocess.LabelerConfig) (postprocess.Labeler, error) {
	if cfg.Type == "" {
		return postprocess.NewThresholdLabeler(), nil
	}
	l, err := LabelerFactory().Build(cfg.Type, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("build labeler: %w", err)
	}
	return l, nil
}

// BuildModel 根据配置构建委托模型。
func BuildModel(cfg *ModelConfig) (model.Regressor, error) {
	if cfg == nil || cfg.Kind == "" {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "model kind is required")
	}
	builder, ok := modelBuilder(cfg.Kind)
	if !ok {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeNotSupported,
			fmt.Sprintf("unsupported model kind %q (supported: %v)", cfg.Kind, SupportedModelKinds()))
	}
	m, err := builder(cfg)
	if err != nil {
		return nil, fmt.Errorf("build model %s: %w", cfg.Kind, err)
	}
	return m, nil
}

// BuildWrapper 用给定委托模型和配置组装包装器。
// 配置了 Signature 时必须与委托模型的训练签名一致。
func BuildWrapper(cfg *WrapperConfig, delegate model.Regressor, opts ...wrapper.Option) (*wrapper.Model, error) {
	if cfg == nil {
		return nil, fmt.Errorf("wrapper config is required")
	}
	if delegate == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "delegate model is required")
	}

	signature := delegate.Schema()
	if len(cfg.Signature) > 0 && !signature.Equal(cfg.Signature) {
		err := core.NewSchemaMismatch(core.ModuleModel, signature.Missing(cfg.Signature))
		err.Message = fmt.Sprintf("configured signature %v does not match delegate columns %v", cfg.Signature, signature)
		return nil, err
	}

	steps, err := BuildSteps(cfg.Steps)
	if err != nil {
		return nil, err
	}
	labeler, err := BuildLabeler(cfg.Labeler)
	if err != nil {
		return nil, err
	}
	pre, err := feature.NewPreprocessor(signature, steps, feature.WithPreprocessorLogger(wrapper.LoggerFromOptions(opts...)))
	if err != nil {
		return nil, err
	}
	return wrapper.New(delegate, pre, labeler, opts...)
}

// Build 按配置加载委托模型并组装包装器
func Build(cfg *WrapperConfig, opts ...wrapper.Option) (*wrapper.Model, error) {
	delegate, err := BuildModel(&cfg.Model)
	if err != nil {
		return nil, err
	}
	return BuildWrapper(cfg, delegate, opts...)
}
