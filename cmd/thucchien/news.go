package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/llm/image"
	"github.com/BaSui01/thucchien/llm/longrun"
	"github.com/BaSui01/thucchien/llm/speech"
	"github.com/BaSui01/thucchien/llm/video"
)

// =============================================================================
// 📺 news-video 命令
// =============================================================================

type newsFlags struct {
	dir      string
	anchor   string
	duration int
	model    string
	voice    string
	maxWait  time.Duration
}

func newNewsVideoCmd(a *app) *cobra.Command {
	var f newsFlags
	cmd := &cobra.Command{
		Use:   "news-video <news>",
		Short: "Produce a virtual anchor news segment",
		Long: `Generate an anchor portrait, write a broadcast script about the news,
narrate it to mc_voice.mp3 and animate the portrait into news_video.mp4.

The video carries no audio track. Mux mc_voice.mp3 onto it afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runNewsVideo(cmd, args[0], f)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.dir, "dir", "d", ".", "Output directory")
	flags.StringVar(&f.anchor, "anchor", video.DefaultAnchor, "Anchor appearance")
	flags.IntVar(&f.duration, "duration", video.DefaultNewsDuration, "Script length in seconds")
	flags.StringVar(&f.model, "model", "", "Video model")
	flags.StringVar(&f.voice, "voice", video.DefaultAnchorVoice, "Narration voice")
	flags.DurationVar(&f.maxWait, "max-wait", 0, "Override video.poll.max_wait")
	return cmd
}

func (a *app) runNewsVideo(cmd *cobra.Command, content string, f newsFlags) error {
	cfg := a.cfg.Video
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
	news := video.NewNewsVideo(
		image.NewGenerator(client, a.cfg.Image, a.logger),
		client,
		speech.NewSynthesizer(client, a.cfg.Speech, a.logger),
		video.NewGenerator(backend, poller, a.logger),
		a.logger,
	)

	out := cmd.OutOrStdout()
	ctx := longrun.ContextWithObserver(cmd.Context(), longrun.ObserverFuncs{
		Submitted: func(h longrun.Handle) {
			fmt.Fprintf(out, "submitted: %s\n", h)
		},
	})

	res, err := news.Create(ctx, video.NewsRequest{
		Content:  content,
		Anchor:   f.anchor,
		Duration: f.duration,
		Model:    f.model,
		Voice:    f.voice,
		// 视频轮询耗时较长，先落盘已有产物
		OnNarration: func(script string, audio *speech.TTSResponse) error {
			if err := image.WriteFile(filepath.Join(f.dir, "mc_script.txt"), []byte(script)); err != nil {
				return err
			}
			path := filepath.Join(f.dir, "mc_voice.mp3")
			if err := image.WriteFile(path, audio.Audio); err != nil {
				return err
			}
			fmt.Fprintln(out, path)
			return nil
		},
	})
	if res != nil && len(res.AnchorImage) > 0 {
		path := filepath.Join(f.dir, "mc_image.png")
		if werr := image.WriteFile(path, res.AnchorImage); werr != nil {
			a.logger.Warn("save anchor image failed", zap.Error(werr))
		} else {
			fmt.Fprintln(out, path)
		}
	}
	if res != nil && res.Video != nil && res.Video.Outcome != nil {
		fmt.Fprintf(out, "state: %s, polls: %d\n", res.Video.Outcome.State, res.Video.Outcome.Polls)
	}
	if err != nil {
		return err
	}

	path := filepath.Join(f.dir, "news_video.mp4")
	if err := image.WriteFile(path, res.Video.Video()); err != nil {
		return err
	}
	a.logger.Info("news video saved", zap.String("path", path), zap.Int("script_chars", len([]rune(res.Script))))
	fmt.Fprintln(out, path)
	return nil
}
