package model

import (
	"context"

	"github.com/rushteam/modelwrap/core"
)

// Regressor 是委托模型的最小抽象：输入对齐好的表，逐行输出一个数值预测。
// 具体实现可以是本地模型（线性回归 / 随机森林）或远程 RPC（自定义服务 / TF Serving）。
//
// Schema 返回模型训练时的列签名，预处理按它对齐；Predict 收到的表必须与之完全一致。
type Regressor interface {
	Name() string
	Schema() core.Schema
	Predict(ctx context.Context, frame *core.Frame) ([]float64, error)
}

// checkSchema 校验输入表的列签名与训练签名一致（列集合与顺序）
func checkSchema(name string, want core.Schema, frame *core.Frame) error {
	if frame == nil {
		return core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, name+": input frame is nil")
	}
	got := frame.Schema()
	if got.Equal(want) {
		return nil
	}
	if missing := got.Missing(want); len(missing) > 0 {
		return core.NewSchemaMismatch(core.ModuleModel, missing)
	}
	err := core.NewSchemaMismatch(core.ModuleModel, nil)
	err.Message = name + ": input columns " + got.String() + " do not match trained columns " + want.String()
	return err
}
