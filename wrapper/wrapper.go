// Package wrapper 把训练好的回归模型包装成“原始输入 -> 类别标签”的预测单元。
//
// 一次 Predict 固定分三个阶段：
//  1. 预处理：在输入副本上计算工程列，并对齐到委托模型的训练列签名
//  2. 推理：调用委托模型，得到逐行数值预测
//  3. 后处理：把数值预测映射为标签（默认 > 100 为 "Expensive"）
//
// 任一阶段失败立即返回，预处理失败时委托模型不会被调用。
package wrapper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rushteam/modelwrap/core"
	"github.com/rushteam/modelwrap/feature"
	"github.com/rushteam/modelwrap/model"
	"github.com/rushteam/modelwrap/pipeline"
	"github.com/rushteam/modelwrap/postprocess"
)

// Model 持有唯一的委托模型、预处理器与标签器，构造后不再修改。
// 自身没有可变状态，委托模型并发安全时 Model 也并发安全。
type Model struct {
	name     string
	delegate model.Regressor
	pre      *feature.Preprocessor
	labeler  postprocess.Labeler
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// Option 包装器配置选项
type Option func(*Model)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithName 设置包装器名称（用于日志）
func WithName(name string) Option {
	return func(m *Model) {
		m.name = name
	}
}

// LoggerFromOptions 返回 opts 设置的日志，未设置时为 Nop。
// 用于让与包装器一同构建的组件共用同一个日志。
func LoggerFromOptions(opts ...Option) *zap.Logger {
	m := &Model{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m.logger
}

// New 创建包装器。labeler 为 nil 时使用默认阈值标签器。
// 预处理器的签名必须与委托模型的训练签名一致。
func New(delegate model.Regressor, pre *feature.Preprocessor, labeler postprocess.Labeler, opts ...Option) (*Model, error) {
	if delegate == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "wrapper: delegate model is required")
	}
	if pre == nil {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "wrapper: preprocessor is required")
	}
	if want := delegate.Schema(); !want.Equal(pre.Signature) {
		err := core.NewSchemaMismatch(core.ModuleFeature, pre.Signature.Missing(want))
		err.Message = fmt.Sprintf("wrapper: preprocessor signature %v does not match delegate columns %v", pre.Signature, want)
		return nil, err
	}
	if labeler == nil {
		labeler = postprocess.NewThresholdLabeler()
	}

	m := &Model{
		name:     delegate.Name(),
		delegate: delegate,
		pre:      pre,
		labeler:  labeler,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("model", m.name))
	m.pipeline = &pipeline.Pipeline{
		Nodes: []pipeline.Node{
			pipeline.NodeFunc{NodeName: "preprocess", NodeKind: pipeline.KindPreprocess, Fn: m.preprocessNode},
			pipeline.NodeFunc{NodeName: m.delegate.Name(), NodeKind: pipeline.KindPredict, Fn: m.predictNode},
			pipeline.NodeFunc{NodeName: m.labeler.Name(), NodeKind: pipeline.KindPostprocess, Fn: m.postprocessNode},
		},
		Logger: m.logger,
	}
	return m, nil
}

// Name 返回包装器名称
func (m *Model) Name() string { return m.name }

// Delegate 返回委托模型
func (m *Model) Delegate() model.Regressor { return m.delegate }

// Signature 返回委托模型的训练列签名
func (m *Model) Signature() core.Schema { return append(core.Schema(nil), m.pre.Signature...) }

// RequiredColumns 返回原始输入必须包含的列
func (m *Model) RequiredColumns() []string { return m.pre.RequiredColumns() }

// StepConfigs 返回预处理步骤配置，用于持久化
func (m *Model) StepConfigs() []feature.StepConfig { return m.pre.StepConfigs() }

// LabelerConfig 返回标签器配置，用于持久化
func (m *Model) LabelerConfig() postprocess.LabelerConfig { return m.labeler.Config() }

// Preprocess 把原始表变换为委托模型的输入表，不修改 input。
func (m *Model) Preprocess(input *core.Frame) (*core.Frame, error) {
	return m.pre.Preprocess(input)
}

// Postprocess 把数值预测映射为标签，长度与顺序不变。
// processed 为委托模型实际看到的输入，规则标签器按列访问；阈值标签器不会返回错误。
func (m *Model) Postprocess(ctx context.Context, values []float64, processed *core.Frame) ([]string, error) {
	return m.labeler.Label(ctx, values, processed)
}

// Predict 依次执行预处理、委托推理、后处理。mctx 仅为满足调用约定，不被读取。
func (m *Model) Predict(ctx context.Context, mctx *core.ModelContext, input *core.Frame) (*core.Output, error) {
	out, err := m.pipeline.Run(ctx, mctx, &pipeline.Batch{Input: input})
	if err != nil {
		m.logger.Debug("predict failed", zap.Error(err))
		return nil, err
	}
	return &core.Output{Labels: out.Labels}, nil
}

func (m *Model) preprocessNode(_ context.Context, _ *core.ModelContext, b *pipeline.Batch) (*pipeline.Batch, error) {
	processed, err := m.Preprocess(b.Input)
	if err != nil {
		return nil, err
	}
	next := *b
	next.Processed = processed
	return &next, nil
}

func (m *Model) predictNode(ctx context.Context, _ *core.ModelContext, b *pipeline.Batch) (*pipeline.Batch, error) {
	values, err := m.delegate.Predict(ctx, b.Processed)
	if err != nil {
		return nil, fmt.Errorf("delegate %s: %w", m.delegate.Name(), err)
	}
	if len(values) != b.Processed.Len() {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidOutput,
			fmt.Sprintf("delegate %s returned %d predictions for %d rows", m.delegate.Name(), len(values), b.Processed.Len()))
	}
	next := *b
	next.Values = values
	return &next, nil
}

func (m *Model) postprocessNode(ctx context.Context, _ *core.ModelContext, b *pipeline.Batch) (*pipeline.Batch, error) {
	labels, err := m.Postprocess(ctx, b.Values, b.Processed)
	if err != nil {
		return nil, err
	}
	next := *b
	next.Labels = labels
	return &next, nil
}

var _ core.PythonModel = (*Model)(nil)
