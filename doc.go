// Package modelwrap 把训练好的回归模型包装成“原始房源数据 -> 价格标签”的预测单元。
//
// 设计要点：
//   - 固定三段：预处理（工程列 + 对齐训练签名）→ 委托模型推理 → 后处理（阈值/规则标签）
//   - 委托模型可插拔：本地线性/随机森林，或 RPC、TF Serving、KServe 远程模型
//   - 打包目录自描述（MLmodel + artifacts），可加载、HTTP 发布或推送到 Redis
package modelwrap

import (
	"github.com/rushteam/modelwrap/core"
	"github.com/rushteam/modelwrap/postprocess"
	"github.com/rushteam/modelwrap/wrapper"
)

// 轻量 facade：便于直接 import "modelwrap" 使用核心抽象。
type (
	Frame        = core.Frame
	Schema       = core.Schema
	Output       = core.Output
	ModelContext = core.ModelContext
	PythonModel  = core.PythonModel
	Model        = wrapper.Model
)

// 默认标签
const (
	LabelExpensive    = postprocess.DefaultAboveLabel
	LabelNotExpensive = postprocess.DefaultBelowLabel
)

var (
	// NewFrame 见 core.NewFrame
	NewFrame = core.NewFrame
	// New 见 wrapper.New
	New = wrapper.New
)
