package packaging

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rushteam/modelwrap/config"
	_ "github.com/rushteam/modelwrap/config/builders"
	"github.com/rushteam/modelwrap/core"
	"github.com/rushteam/modelwrap/model"
	"github.com/rushteam/modelwrap/wrapper"
)

// LoadedModel 是从模型目录加载得到的可预测单元。
type LoadedModel struct {
	Dir  string
	Meta *MLmodel

	model    core.PythonModel
	delegate model.Regressor
	mctx     *core.ModelContext
}

// LoadOption 加载选项
type LoadOption func(*loadOptions)

type loadOptions struct {
	logger *zap.Logger
}

// WithLoadLogger 设置加载后包装器使用的日志
func WithLoadLogger(logger *zap.Logger) LoadOption {
	return func(o *loadOptions) {
		o.logger = logger
	}
}

// LoadModel 读取 MLmodel，按 flavor 重建委托模型与包装器。
func LoadModel(ctx context.Context, dir string, opts ...LoadOption) (*LoadedModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := &loadOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	meta, err := ReadMLmodel(abs)
	if err != nil {
		return nil, err
	}
	paths := meta.ArtifactPaths(abs)
	lm := &LoadedModel{
		Dir:  abs,
		Meta: meta,
		mctx: &core.ModelContext{Artifacts: paths},
	}

	switch meta.Flavor {
	case FlavorWrapper:
		cfgPath, ok := paths[WrapperArtifact]
		if !ok {
			return nil, missingArtifact(WrapperArtifact)
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load wrapper config: %w", err)
		}
		m, err := config.Build(cfg, wrapper.WithName(meta.Name), wrapper.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("build wrapper: %w", err)
		}
		lm.model = m
		lm.delegate = m.Delegate()

	case FlavorRegressor:
		path, ok := paths[DelegateArtifact]
		if !ok {
			return nil, missingArtifact(DelegateArtifact)
		}
		r, err := model.Load(meta.DelegateKind, path)
		if err != nil {
			return nil, fmt.Errorf("load delegate: %w", err)
		}
		lm.model = regressorModel{r}
		lm.delegate = r
	}
	return lm, nil
}

// Predict 以携带工件路径的上下文调用模型
func (m *LoadedModel) Predict(ctx context.Context, input *core.Frame) (*core.Output, error) {
	return m.model.Predict(ctx, m.mctx, input)
}

// Model 返回底层的 PythonModel
func (m *LoadedModel) Model() core.PythonModel { return m.model }

// Context 返回调用时传入的上下文
func (m *LoadedModel) Context() *core.ModelContext { return m.mctx }

// Close 释放远程委托模型的连接
func (m *LoadedModel) Close(ctx context.Context) error {
	if c, ok := m.delegate.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}

func missingArtifact(name string) error {
	return core.NewDomainError(core.ModulePackaging, core.ErrorCodeNotFound,
		fmt.Sprintf("packaging: artifact %q not declared in %s", name, MLmodelFile))
}

// regressorModel 把裸回归器适配为 PythonModel，输出数值预测
type regressorModel struct {
	r model.Regressor
}

func (m regressorModel) Predict(ctx context.Context, _ *core.ModelContext, input *core.Frame) (*core.Output, error) {
	if input == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "input frame is nil")
	}
	aligned, err := input.Select(m.r.Schema())
	if err != nil {
		return nil, err
	}
	values, err := m.r.Predict(ctx, aligned)
	if err != nil {
		return nil, err
	}
	return &core.Output{Values: values}, nil
}
