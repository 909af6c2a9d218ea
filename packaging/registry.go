package packaging

import (
	"context"
	"fmt"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/modelwrap/core"
)

// Registry 以 Store 为后端的模型仓库，进程内缓存已加载的模型。
//
//	reg, _ := packaging.NewRegistry(redisStore, "/var/lib/modelwrap")
//	reg.Register(ctx, "airbnb", "./out/airbnb")
//	m, _ := reg.Get(ctx, "airbnb")
//	out, _ := m.Predict(ctx, frame)
type Registry struct {
	store   core.Store
	baseDir string
	logger  *zap.Logger
	cache   *lru.Cache[string, *LoadedModel]
	group   singleflight.Group
}

// RegistryOption 仓库选项
type RegistryOption func(*registryOptions)

type registryOptions struct {
	size   int
	logger *zap.Logger
}

// WithCacheSize 设置缓存的模型数量，默认 16
func WithCacheSize(n int) RegistryOption {
	return func(o *registryOptions) {
		if n > 0 {
			o.size = n
		}
	}
}

// WithRegistryLogger 设置日志
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

// NewRegistry 创建仓库，baseDir 为导入模型的本地目录
func NewRegistry(s core.Store, baseDir string, opts ...RegistryOption) (*Registry, error) {
	if s == nil {
		return nil, core.NewDomainError(core.ModulePackaging, core.ErrorCodeInvalidInput, "packaging: registry store is nil")
	}
	o := &registryOptions{size: 16, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	r := &Registry{store: s, baseDir: baseDir, logger: o.logger}
	cache, err := lru.NewWithEvict(o.size, func(name string, m *LoadedModel) {
		if err := m.Close(context.Background()); err != nil {
			r.logger.Warn("close evicted model failed", zap.String("model", name), zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

// Register 导出本地模型目录并使缓存失效
func (r *Registry) Register(ctx context.Context, name, dir string, ttl ...int) (*Manifest, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	m, err := Export(ctx, r.store, name, dir, ttl...)
	if err != nil {
		return nil, err
	}
	r.cache.Remove(name)
	r.logger.Info("model registered",
		zap.String("model", name),
		zap.String("uuid", m.ModelUUID),
		zap.Int("files", len(m.Files)),
		zap.String("store", r.store.Name()))
	return m, nil
}

// Get 返回已加载的模型，缓存未命中时从 Store 导入并加载；并发请求同一模型只加载一次。
func (r *Registry) Get(ctx context.Context, name string) (*LoadedModel, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	if m, ok := r.cache.Get(name); ok {
		return m, nil
	}
	v, err, _ := r.group.Do(name, func() (any, error) {
		if m, ok := r.cache.Get(name); ok {
			return m, nil
		}
		dir := filepath.Join(r.baseDir, name)
		// baseDir 下的目录归仓库所有，直接覆盖
		if _, err := Import(ctx, r.store, name, dir, true); err != nil {
			return nil, err
		}
		m, err := LoadModel(ctx, dir, WithLoadLogger(r.logger))
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", name, err)
		}
		r.cache.Add(name, m)
		r.logger.Info("model loaded", zap.String("model", name), zap.String("dir", dir))
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*LoadedModel), nil
}

// Evict 从缓存中移除模型（并关闭）
func (r *Registry) Evict(name string) {
	r.cache.Remove(name)
}

// Len 缓存中的模型数
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close 关闭所有缓存模型
func (r *Registry) Close() {
	r.cache.Purge()
}
