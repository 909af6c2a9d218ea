package pipeline

import (
	"context"

	"github.com/rushteam/modelwrap/core"
)

// Kind 用于标记 Node 类型，方便观测/编排（例如按阶段打点）。
type Kind string

const (
	KindPreprocess  Kind = "preprocess"  // 预处理阶段：原始表 -> 模型输入表
	KindPredict     Kind = "predict"     // 推理阶段：委托模型输出数值预测
	KindPostprocess Kind = "postprocess" // 后处理阶段：数值预测 -> 类别标签
)

// Batch 是一次 Predict 在各阶段之间传递的数据。
// 每个阶段只填充自己负责的字段，不修改上游阶段的结果。
type Batch struct {
	// Input 调用方传入的原始表（只读）
	Input *core.Frame
	// Processed 预处理后的模型输入表
	Processed *core.Frame
	// Values 委托模型的数值预测
	Values []float64
	// Labels 后处理得到的标签
	Labels []string
}

// Rows 返回当前批次的行数
func (b *Batch) Rows() int {
	if b == nil || b.Input == nil {
		return 0
	}
	return b.Input.Len()
}

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用“输入 batch -> 输出 batch”的形态，返回错误时 Pipeline 立即停止。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		mctx *core.ModelContext,
		batch *Batch,
	) (*Batch, error)
}

// NodeFunc 把函数适配为 Node
type NodeFunc struct {
	NodeName string
	NodeKind Kind
	Fn       func(ctx context.Context, mctx *core.ModelContext, batch *Batch) (*Batch, error)
}

func (n NodeFunc) Name() string { return n.NodeName }
func (n NodeFunc) Kind() Kind   { return n.NodeKind }

func (n NodeFunc) Process(ctx context.Context, mctx *core.ModelContext, batch *Batch) (*Batch, error) {
	return n.Fn(ctx, mctx, batch)
}
