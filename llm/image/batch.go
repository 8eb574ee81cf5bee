package image

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GenerateMissing 为 dir 中不存在的文件生成图片；已存在的跳过
// 单个条目失败只记录在报告中，不中断其它条目
func (g *Generator) GenerateMissing(ctx context.Context, dir string, items []MissingImage) (*BatchReport, error) {
	if dir == "" {
		dir = g.cfg.OutputDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	report := &BatchReport{Failed: make(map[string]string)}
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)

	for _, item := range items {
		path := filepath.Join(dir, filepath.Base(item.Filename))
		if _, err := os.Stat(path); err == nil {
			g.logger.Info("image exists, skipping", zap.String("file", item.Filename))
			report.Skipped = append(report.Skipped, item.Filename)
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			report.Failed[item.Filename] = err.Error()
			continue
		}

		eg.Go(func() error {
			err := g.generateOne(egCtx, path, item)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				g.logger.Warn("image generation failed",
					zap.String("file", item.Filename), zap.Error(err))
				report.Failed[item.Filename] = err.Error()
			} else {
				report.Generated = append(report.Generated, item.Filename)
			}
			// context 取消时终止整个批次
			return egCtx.Err()
		})
	}

	err := eg.Wait()
	sort.Strings(report.Generated)
	sort.Strings(report.Skipped)
	return report, err
}

func (g *Generator) generateOne(ctx context.Context, path string, item MissingImage) error {
	g.logger.Info("generating image", zap.String("file", item.Filename))
	images, err := g.Generate(ctx, GenerateRequest{
		Prompt:      item.Prompt,
		N:           1,
		AspectRatio: item.AspectRatio,
	})
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return errors.New("gateway returned no image")
	}
	return Save(path, images[0])
}
