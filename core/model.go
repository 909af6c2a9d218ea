package core

import "context"

// PythonModel 是打包约定要求的唯一入口：运行时用上下文与输入表调用 Predict。
//
// 实现：
//   - wrapper.Model（预处理 + 委托模型 + 后处理）
//   - packaging 中的裸回归器 flavor（只返回数值）
//
// 约定只关心方法签名，与具体运行时无关；打包/加载由 packaging 负责。
type PythonModel interface {
	Predict(ctx context.Context, mctx *ModelContext, input *Frame) (*Output, error)
}

// ModelContext 是运行时传入的不透明上下文。
// 包装器自身逻辑不读取它，仅为满足调用签名；packaging 会在其中放入工件路径。
type ModelContext struct {
	// Artifacts 工件名到本地路径的映射
	Artifacts map[string]string

	// Params 运行时附加参数（可选）
	Params map[string]any
}

// Artifact 返回工件路径。
func (c *ModelContext) Artifact(name string) (string, bool) {
	if c == nil || c.Artifacts == nil {
		return "", false
	}
	p, ok := c.Artifacts[name]
	return p, ok
}

// Output 是一次 Predict 的结果，与输入行一一对应。
type Output struct {
	// Labels 后处理得到的类别标签（包装器填充）
	Labels []string `json:"labels,omitempty"`

	// Values 数值预测（裸回归器 flavor 填充）
	Values []float64 `json:"values,omitempty"`
}

// Len 返回结果条数。
func (o *Output) Len() int {
	if o == nil {
		return 0
	}
	if o.Labels != nil {
		return len(o.Labels)
	}
	return len(o.Values)
}

// MLService 是远程模型服务的领域接口，由 service 包实现（TF Serving 等）。
type MLService interface {
	// Predict 批量预测
	Predict(ctx context.Context, req *MLPredictRequest) (*MLPredictResponse, error)

	// Health 健康检查
	Health(ctx context.Context) error

	// Close 关闭连接
	Close(ctx context.Context) error
}

// MLPredictRequest 预测请求
type MLPredictRequest struct {
	// Instances 按列签名顺序排列的特征向量
	Instances [][]float64

	// Columns 与 Instances 对应的列名（可选，部分服务按列名输入）
	Columns []string

	// ModelVersion 模型版本（可选）
	ModelVersion string
}

// MLPredictResponse 预测响应
type MLPredictResponse struct {
	// Predictions 预测结果列表（与请求实例一一对应）
	Predictions []float64

	// ModelVersion 模型版本（如果服务返回）
	ModelVersion string
}
