// Package serving 以 HTTP 方式对外提供模型目录的预测服务。
//
//	POST /invocations  JSON（split / dataframe_split / dataframe_records）或 CSV
//	GET  /ping         健康检查
//	GET  /version      当前模型的 MLmodel 描述
package serving

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/modelwrap/core"
	"github.com/rushteam/modelwrap/packaging"
)

// Config 服务配置
type Config struct {
	Addr     string
	ModelDir string

	// Timeout 单次请求的读写超时
	Timeout time.Duration

	// MaxBodyBytes 请求体上限
	MaxBodyBytes int64

	// Watch 监听模型目录，MLmodel 变化时热加载
	Watch bool
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Addr:         ":5000",
		Timeout:      30 * time.Second,
		MaxBodyBytes: 32 << 20,
		Watch:        true,
	}
}

// Server 预测服务
type Server struct {
	cfg    Config
	logger *zap.Logger

	model   atomic.Pointer[packaging.LoadedModel]
	reload  sync.Mutex
	handler http.Handler

	addr    atomic.Value
	ready   chan struct{}
	started atomic.Bool
}

// Option 服务选项
type Option func(*Server)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer 加载模型目录并创建服务，模型加载失败直接返回错误
func NewServer(ctx context.Context, cfg Config, opts ...Option) (*Server, error) {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	s := &Server{cfg: cfg, logger: zap.NewNop(), ready: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /invocations", s.handleInvocations)
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /version", s.handleVersion)
	s.handler = chain(mux, recoveryMiddleware(s.logger), loggerMiddleware(s.logger))
	return s, nil
}

// Handler 返回带中间件的 HTTP 处理器
func (s *Server) Handler() http.Handler { return s.handler }

// Model 返回当前生效的模型
func (s *Server) Model() *packaging.LoadedModel { return s.model.Load() }

// Reload 重新加载模型目录。失败时保留原模型。
func (s *Server) Reload(ctx context.Context) error {
	s.reload.Lock()
	defer s.reload.Unlock()

	m, err := packaging.LoadModel(ctx, s.cfg.ModelDir, packaging.WithLoadLogger(s.logger))
	if err != nil {
		if s.model.Load() != nil {
			s.logger.Error("reload model failed, keeping previous model",
				zap.String("dir", s.cfg.ModelDir), zap.Error(err))
		}
		return fmt.Errorf("load model %s: %w", s.cfg.ModelDir, err)
	}
	old := s.model.Swap(m)
	s.logger.Info("model loaded",
		zap.String("dir", m.Dir),
		zap.String("name", m.Meta.Name),
		zap.String("flavor", m.Meta.Flavor),
		zap.String("uuid", m.Meta.ModelUUID))
	if old != nil {
		if err := old.Close(ctx); err != nil {
			s.logger.Warn("close previous model failed", zap.Error(err))
		}
	}
	return nil
}

// ErrServerStarted Run 只能调用一次
var ErrServerStarted = errors.New("serving: server already started")

// Run 启动服务，ctx 取消时优雅退出。每个 Server 只能 Run 一次。
func (s *Server) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerStarted
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Timeout,
		WriteTimeout: s.cfg.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	if s.cfg.Watch {
		w, err := newWatcher(s, s.logger)
		if err != nil {
			ln.Close()
			return err
		}
		go w.run(ctx)
		defer w.close()
	}

	s.addr.Store(ln.Addr().String())
	close(s.ready)
	s.logger.Info("serving started", zap.String("addr", ln.Addr().String()), zap.String("model", s.cfg.ModelDir))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if m := s.model.Load(); m != nil {
		if err := m.Close(shutdownCtx); err != nil {
			s.logger.Warn("close model failed", zap.Error(err))
		}
	}
	return nil
}

// Ready 服务开始监听后关闭
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr 实际监听地址，Ready 之前为空
func (s *Server) Addr() string {
	if v, ok := s.addr.Load().(string); ok {
		return v
	}
	return ""
}

func (s *Server) handleInvocations(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	frame, err := DecodeFrame(r.Header.Get("Content-Type"), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.model.Load().Predict(r.Context(), frame)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EncodePredictions(out))
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	if s.model.Load() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.model.Load().Meta)
}

// errorResponse 错误响应
type errorResponse struct {
	ErrorCode string   `json:"error_code"`
	Message   string   `json:"message"`
	Columns   []string `json:"columns,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{ErrorCode: "INTERNAL_ERROR", Message: err.Error()}
	if de := core.GetDomainError(err); de != nil {
		resp.ErrorCode = string(de.Code)
		resp.Columns = de.Columns
	}
	s.logger.Warn("invocation failed",
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err))
	writeJSON(w, status, resp)
}

// statusFor 输入问题返回 4xx，其余返回 500
func statusFor(err error) int {
	switch {
	case core.IsSchemaMismatch(err), core.IsInvalidInput(err):
		return http.StatusBadRequest
	case core.IsNotSupported(err):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
