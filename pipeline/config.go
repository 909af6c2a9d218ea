package pipeline

import (
	"fmt"
	"sort"
)

// Builder 根据 map 形式的配置构建组件（预处理步骤、标签器等）。
type Builder[T any] func(config map[string]any) (T, error)

// Factory 用于根据配置构建组件实例。
type Factory[T any] struct {
	builders map[string]Builder[T]
}

func NewFactory[T any]() *Factory[T] {
	return &Factory[T]{
		builders: make(map[string]Builder[T]),
	}
}

// Register 注册构建器。
func (f *Factory[T]) Register(typeName string, builder Builder[T]) {
	f.builders[typeName] = builder
}

// Has 检查类型是否已注册
func (f *Factory[T]) Has(typeName string) bool {
	_, ok := f.builders[typeName]
	return ok
}

// Types 返回已注册的类型（排序）
func (f *Factory[T]) Types() []string {
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build 根据类型和配置构建组件。
func (f *Factory[T]) Build(typeName string, config map[string]any) (T, error) {
	builder, ok := f.builders[typeName]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown type %q (supported: %v)", typeName, f.Types())
	}
	if config == nil {
		config = map[string]any{}
	}
	return builder(config)
}
