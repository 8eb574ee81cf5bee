package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/llm/image"
	"github.com/BaSui01/thucchien/llm/longrun"
	"github.com/BaSui01/thucchien/llm/video"
)

// =============================================================================
// 🎬 video 命令
// =============================================================================

type videoFlags struct {
	output      string
	model       string
	aspectRatio string
	resolution  string
	negative    string
	imagePath   string
	backend     string
	resume      string
	maxWait     time.Duration
}

func newVideoCmd(a *app) *cobra.Command {
	var f videoFlags
	cmd := &cobra.Command{
		Use:   "video [prompt]",
		Short: "Generate a video and wait for the result",
		Long: `Submit a video generation job to the gateway, poll it until it finishes
or the wait budget runs out, and write the MP4 to --output.

Use --resume with an operation handle printed by an earlier run to keep
waiting on a job without submitting a new one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.resume == "" && len(args) == 0 {
				return fmt.Errorf("a prompt is required unless --resume is set")
			}
			return a.runVideo(cmd, args, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.output, "output", "o", "", "Output file (default {video.output_dir}/video_<timestamp>.mp4)")
	flags.StringVar(&f.model, "model", "", "Video model")
	flags.StringVar(&f.aspectRatio, "aspect-ratio", "", "Aspect ratio (16:9, 9:16)")
	flags.StringVar(&f.resolution, "resolution", "", "Resolution (720p, 1080p)")
	flags.StringVar(&f.negative, "negative-prompt", "", "Negative prompt")
	flags.StringVar(&f.imagePath, "image", "", "PNG used as the first frame")
	flags.StringVar(&f.backend, "backend", "", "Override video.backend (veo, runway)")
	flags.StringVar(&f.resume, "resume", "", "Resume waiting on an existing operation handle")
	flags.DurationVar(&f.maxWait, "max-wait", 0, "Override video.poll.max_wait")
	return cmd
}

func (a *app) runVideo(cmd *cobra.Command, args []string, f videoFlags) error {
	cfg := a.cfg.Video
	if f.backend != "" {
		cfg.Backend = f.backend
	}
	if f.maxWait > 0 {
		cfg.Poll.MaxWait = f.maxWait
	}

	client, err := a.gateway()
	if err != nil {
		return err
	}
	backend, err := video.NewBackend(client, cfg)
	if err != nil {
		return err
	}
	poller := longrun.NewPoller(cfg.Poll, a.logger, longrun.WithObserver(longrun.NewLogObserver(a.logger)))
	gen := video.NewGenerator(backend, poller, a.logger)

	out := cmd.OutOrStdout()
	ctx := longrun.ContextWithObserver(cmd.Context(), longrun.ObserverFuncs{
		Submitted: func(h longrun.Handle) {
			fmt.Fprintf(out, "submitted: %s\n", h)
		},
	})

	var res *video.Result
	if f.resume != "" {
		res, err = gen.Resume(ctx, longrun.Handle(f.resume))
	} else {
		req := &video.GenerateRequest{
			Prompt:         args[0],
			NegativePrompt: f.negative,
			Model:          f.model,
			AspectRatio:    f.aspectRatio,
			Resolution:     f.resolution,
		}
		if f.imagePath != "" {
			if req.ImageBase64, err = image.FileToBase64(f.imagePath); err != nil {
				return err
			}
		}
		res, err = gen.Generate(ctx, req)
	}
	if res != nil && res.Outcome != nil {
		fmt.Fprintf(out, "state: %s, polls: %d, elapsed: %s\n",
			res.Outcome.State, res.Outcome.Polls, res.Outcome.Elapsed.Round(time.Second))
	}
	if err != nil {
		// 本地中断不影响远端任务，可凭句柄继续等待
		if res != nil && res.Outcome != nil && res.Outcome.State == longrun.StateCanceled {
			fmt.Fprintf(out, "resume with: thucchien video --resume %s\n", res.Outcome.Handle)
		}
		return err
	}

	path := f.output
	if path == "" {
		path = filepath.Join(cfg.OutputDir, fmt.Sprintf("video_%s.mp4", time.Now().Format("20060102_150405")))
	}
	if err := image.WriteFile(path, res.Video()); err != nil {
		return err
	}
	a.logger.Info("video saved", zap.String("path", path), zap.Int("bytes", len(res.Video())))
	fmt.Fprintln(out, path)
	return nil
}
