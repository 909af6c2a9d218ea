package serving

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/rushteam/modelwrap/packaging"
)

const reloadDebounce = 200 * time.Millisecond

// watcher 监听模型目录，MLmodel 被创建或改写后（去抖）触发 Reload
type watcher struct {
	fs     *fsnotify.Watcher
	server *Server
	logger *zap.Logger
	done   chan struct{}
}

func newWatcher(s *Server, logger *zap.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(s.cfg.ModelDir); err != nil {
		fw.Close()
		return nil, err
	}
	logger.Info("watching model directory", zap.String("dir", s.cfg.ModelDir))
	return &watcher{fs: fw, server: s, logger: logger, done: make(chan struct{})}, nil
}

func (w *watcher) run(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != packaging.MLmodelFile {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("model descriptor changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(reloadDebounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", zap.Error(err))

		case <-timer.C:
			// 失败已在 Reload 中记录，旧模型继续服务
			_ = w.server.Reload(ctx)
		}
	}
}

func (w *watcher) close() {
	if err := w.fs.Close(); err != nil {
		w.logger.Warn("close watcher failed", zap.Error(err))
	}
	<-w.done
}
