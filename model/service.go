package model

import (
	"context"
	"fmt"

	"github.com/rushteam/modelwrap/core"
)

// ServiceRegressor 把远程模型服务（TF Serving / KServe）适配为 Regressor。
// 列签名由调用方给出，服务端只接收按签名顺序排列的特征向量。
type ServiceRegressor struct {
	name    string
	columns core.Schema
	svc     core.MLService

	// ModelVersion 请求时携带的模型版本（可选）
	ModelVersion string
}

func NewServiceRegressor(name string, columns core.Schema, svc core.MLService) *ServiceRegressor {
	return &ServiceRegressor{
		name:    name,
		columns: append(core.Schema(nil), columns...),
		svc:     svc,
	}
}

func (m *ServiceRegressor) Name() string        { return m.name }
func (m *ServiceRegressor) Schema() core.Schema { return append(core.Schema(nil), m.columns...) }

func (m *ServiceRegressor) Predict(ctx context.Context, frame *core.Frame) ([]float64, error) {
	if err := checkSchema(m.name, m.columns, frame); err != nil {
		return nil, err
	}
	if frame.Len() == 0 {
		return []float64{}, nil
	}
	resp, err := m.svc.Predict(ctx, &core.MLPredictRequest{
		Instances:    frame.Rows(),
		Columns:      frame.Columns(),
		ModelVersion: m.ModelVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	if len(resp.Predictions) != frame.Len() {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidOutput,
			fmt.Sprintf("%s: expected %d predictions, got %d", m.name, frame.Len(), len(resp.Predictions)))
	}
	return resp.Predictions, nil
}

// Close 释放底层服务连接
func (m *ServiceRegressor) Close(ctx context.Context) error {
	return m.svc.Close(ctx)
}

var (
	_ Regressor = (*LinearRegressor)(nil)
	_ Regressor = (*ForestRegressor)(nil)
	_ Regressor = (*RPCRegressor)(nil)
	_ Regressor = (*ServiceRegressor)(nil)
)
