package feature

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rushteam/modelwrap/core"
)

// Preprocessor 把原始输入表变换为委托模型训练时的列签名。
//
// 处理流程：
//  1. 校验：所有步骤依赖的原始列、以及签名中不由步骤产出的列都必须存在
//  2. 复制：在输入的深拷贝上执行，绝不修改调用方的表
//  3. 变换：按顺序执行 Steps
//  4. 对齐：按 Signature 挑选并排序列，其余列全部丢弃
//
// 校验在任何步骤执行之前完成，缺列时返回 SchemaMismatch，不会产出半成品。
type Preprocessor struct {
	Steps     []Step
	Signature core.Schema

	required []string
	logger   *zap.Logger
}

// PreprocessorOption 预处理器配置选项
type PreprocessorOption func(*Preprocessor)

// WithPreprocessorLogger 设置日志
func WithPreprocessorLogger(logger *zap.Logger) PreprocessorOption {
	return func(p *Preprocessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPreprocessor 创建预处理器。signature 是委托模型的训练列签名，不能为空。
func NewPreprocessor(signature core.Schema, steps []Step, opts ...PreprocessorOption) (*Preprocessor, error) {
	if len(signature) == 0 {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "preprocessor: signature is required")
	}
	p := &Preprocessor{
		Steps:     append([]Step(nil), steps...),
		Signature: append(core.Schema(nil), signature...),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.required = requiredColumns(p.Steps, p.Signature)
	return p, nil
}

// RequiredColumns 返回原始输入必须包含的列
func (p *Preprocessor) RequiredColumns() []string {
	return append([]string(nil), p.required...)
}

// StepConfigs 返回所有步骤的配置，用于持久化
func (p *Preprocessor) StepConfigs() []StepConfig {
	out := make([]StepConfig, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Config())
	}
	return out
}

// Preprocess 执行预处理，返回与 Signature 完全一致的新表。
func (p *Preprocessor) Preprocess(input *core.Frame) (*core.Frame, error) {
	if input == nil {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "preprocess: input is nil")
	}
	if missing := input.Schema().Missing(p.required); len(missing) > 0 {
		p.logger.Debug("preprocess rejected input",
			zap.Strings("missing", missing),
			zap.Int("rows", input.Len()))
		return nil, core.NewSchemaMismatch(core.ModuleFeature, missing)
	}

	work := input.Copy()
	for _, step := range p.Steps {
		if err := step.Apply(work); err != nil {
			return nil, fmt.Errorf("preprocess step %s: %w", step.Name(), err)
		}
	}

	out, err := work.Select(p.Signature)
	if err != nil {
		return nil, fmt.Errorf("preprocess align: %w", err)
	}
	p.logger.Debug("preprocess done",
		zap.Int("rows", out.Len()),
		zap.Int("steps", len(p.Steps)))
	return out, nil
}

// requiredColumns 计算原始输入必须提供的列：
// 步骤输入中不由更早步骤产出的列 + 签名中不由任何步骤产出的列。
func requiredColumns(steps []Step, signature core.Schema) []string {
	produced := make(map[string]struct{})
	seen := make(map[string]struct{})
	var required []string
	need := func(col string) {
		if _, ok := produced[col]; ok {
			return
		}
		if _, ok := seen[col]; ok {
			return
		}
		seen[col] = struct{}{}
		required = append(required, col)
	}

	for _, step := range steps {
		for _, col := range step.Inputs() {
			need(col)
		}
		for _, col := range step.Outputs() {
			produced[col] = struct{}{}
		}
	}
	for _, col := range signature {
		need(col)
	}
	return required
}
