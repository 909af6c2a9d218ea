package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/modelwrap/feature"
	"github.com/rushteam/modelwrap/model"
	"github.com/rushteam/modelwrap/pipeline"
	"github.com/rushteam/modelwrap/postprocess"
)

// 使用配置驱动时，需在 main 或入口处 import _ "github.com/rushteam/modelwrap/config/builders"
// 以触发内置步骤（sum、truncate、bin 等）、标签器与模型加载器的 init 注册。

// StepBuilder 根据 config 构建预处理步骤
type StepBuilder = pipeline.Builder[feature.Step]

// LabelerBuilder 根据 config 构建标签器
type LabelerBuilder = pipeline.Builder[postprocess.Labeler]

// ModelBuilder 根据模型配置构建委托模型
type ModelBuilder func(cfg *ModelConfig) (model.Regressor, error)

type registry struct {
	mu       sync.RWMutex
	steps    map[string]StepBuilder
	labelers map[string]LabelerBuilder
	models   map[string]ModelBuilder
}

var defaultRegistry = &registry{
	steps:    make(map[string]StepBuilder),
	labelers: make(map[string]LabelerBuilder),
	models:   make(map[string]ModelBuilder),
}

// RegisterStep 注册一种预处理步骤的构建逻辑。
// 建议在各组件的 init 中调用，例如：func init() { config.RegisterStep("sum", BuildSumStep) }
func RegisterStep(typeName string, builder StepBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.steps[typeName] = builder
}

// RegisterLabeler 注册一种标签器的构建逻辑。
func RegisterLabeler(typeName string, builder LabelerBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.labelers[typeName] = builder
}

// RegisterModel 注册一种委托模型的加载逻辑。
func RegisterModel(kind string, builder ModelBuilder) {
	if kind == "" || builder == nil {
		return
	}
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.models[kind] = builder
}

// StepFactory 返回基于当前注册表构建的步骤工厂
func StepFactory() *pipeline.Factory[feature.Step] {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	f := pipeline.NewFactory[feature.Step]()
	for typeName, builder := range defaultRegistry.steps {
		f.Register(typeName, builder)
	}
	return f
}

// LabelerFactory 返回基于当前注册表构建的标签器工厂
func LabelerFactory() *pipeline.Factory[postprocess.Labeler] {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	f := pipeline.NewFactory[postprocess.Labeler]()
	for typeName, builder := range defaultRegistry.labelers {
		f.Register(typeName, builder)
	}
	return f
}

func modelBuilder(kind string) (ModelBuilder, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	b, ok := defaultRegistry.models[kind]
	return b, ok
}

// SupportedModelKinds 返回已注册的模型类型（排序）
func SupportedModelKinds() []string {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	kinds := make([]string, 0, len(defaultRegistry.models))
	for k := range defaultRegistry.models {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Validate 校验配置中所有步骤、标签器与模型类型均已注册；若有未支持类型则返回包含已支持列表的错误。
func Validate(cfg *WrapperConfig) error {
	if cfg == nil {
		return fmt.Errorf("wrapper config is required")
	}
	steps := StepFactory()
	for i, sc := range cfg.Steps {
		if !steps.Has(sc.Type) {
			return fmt.Errorf("steps[%d]: unsupported step type %q (supported: %v)", i, sc.Type, steps.Types())
		}
	}
	if cfg.Labeler.Type != "" {
		labelers := LabelerFactory()
		if !labelers.Has(cfg.Labeler.Type) {
			return fmt.Errorf("labeler: unsupported type %q (supported: %v)", cfg.Labeler.Type, labelers.Types())
		}
	}
	if cfg.Model.Kind != "" {
		if _, ok := modelBuilder(cfg.Model.Kind); !ok {
			return fmt.Errorf("model: unsupported kind %q (supported: %v)", cfg.Model.Kind, SupportedModelKinds())
		}
	}
	return nil
}
