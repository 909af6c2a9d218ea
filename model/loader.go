package model

import (
	"fmt"

	"github.com/rushteam/modelwrap/core"
)

// 本地工件类型
const (
	KindLinear       = "linear"
	KindRandomForest = "random_forest"
)

// Load 按类型加载本地 JSON 工件。
func Load(kind, path string) (Regressor, error) {
	switch kind {
	case KindLinear:
		return LoadLinearRegressor(path)
	case KindRandomForest:
		return LoadForestRegressor(path)
	default:
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeNotSupported,
			fmt.Sprintf("model: unsupported kind %q", kind))
	}
}

// Saver 是可以写出本地工件的回归器
type Saver interface {
	Save(path string) error
}

// Kinds 返回支持的本地工件类型
func Kinds() []string {
	return []string{KindLinear, KindRandomForest}
}
