package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/modelwrap/core"
)

// Pipeline 把一次预测拆成按顺序执行的 Node 链。
// 任一 Node 失败即停止，后续 Node 不会被调用。
type Pipeline struct {
	Nodes  []Node
	Logger *zap.Logger
}

// New 创建 Pipeline
func New(nodes ...Node) *Pipeline {
	return &Pipeline{Nodes: nodes}
}

func (p *Pipeline) Run(
	ctx context.Context,
	mctx *core.ModelContext,
	batch *Batch,
) (*Batch, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cur := batch
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		next, err := node.Process(ctx, mctx, cur)
		if err != nil {
			logger.Debug("pipeline node failed",
				zap.String("node", node.Name()),
				zap.String("kind", string(node.Kind())),
				zap.Error(err))
			return nil, fmt.Errorf("%s: %w", node.Kind(), err)
		}
		logger.Debug("pipeline node done",
			zap.String("node", node.Name()),
			zap.String("kind", string(node.Kind())),
			zap.Int("rows", cur.Rows()),
			zap.Duration("elapsed", time.Since(start)))
		cur = next
	}
	return cur, nil
}
