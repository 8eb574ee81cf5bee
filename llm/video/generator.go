package video

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/llm/longrun"
)

// Generator 组合后端与轮询器
type Generator struct {
	backend Backend
	runner  Runner
	logger  *zap.Logger
}

// NewGenerator 创建视频生成器
func NewGenerator(backend Backend, runner Runner, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		backend: backend,
		runner:  runner,
		logger:  logger.With(zap.String("component", "video"), zap.String("backend", backend.Name())),
	}
}

// Backend 返回当前后端
func (g *Generator) Backend() Backend { return g.backend }

// Generate 提交并等待视频生成
// 只要任务已提交，返回的 Result.Outcome 非 nil
func (g *Generator) Generate(ctx context.Context, req *GenerateRequest) (*Result, error) {
	job, err := g.backend.NewJob(req)
	if err != nil {
		return nil, err
	}
	g.logger.Info("starting video generation",
		zap.String("model", g.backend.Model(req)),
		zap.String("prompt", truncate(req.Prompt, 50)))

	outcome, err := g.runner.Run(ctx, job)
	return g.result(g.backend.Model(req), outcome), err
}

// Resume 对已有句柄继续等待
func (g *Generator) Resume(ctx context.Context, handle longrun.Handle) (*Result, error) {
	outcome, err := g.runner.Wait(ctx, handle, g.backend.Tracker())
	return g.result(g.backend.Model(nil), outcome), err
}

func (g *Generator) result(model string, outcome *longrun.Outcome) *Result {
	if outcome == nil {
		return nil
	}
	return &Result{
		Provider:  g.backend.Name(),
		Model:     model,
		Outcome:   outcome,
		CreatedAt: time.Now(),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
