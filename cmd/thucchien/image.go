package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/thucchien/llm/image"
)

// =============================================================================
// 🖼️ image / images-missing 命令
// =============================================================================

func newImageCmd(a *app) *cobra.Command {
	var (
		n           int
		model       string
		aspectRatio string
		outDir      string
		chat        bool
	)
	cmd := &cobra.Command{
		Use:   "image <prompt>",
		Short: "Generate images from a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.gateway()
			if err != nil {
				return err
			}
			gen := image.NewGenerator(client, a.cfg.Image, a.logger)

			var images []string
			if chat {
				url, err := gen.GenerateChat(cmd.Context(), args[0], nil)
				if err != nil {
					return err
				}
				images = []string{url}
			} else {
				images, err = gen.Generate(cmd.Context(), image.GenerateRequest{
					Prompt:      args[0],
					Model:       model,
					N:           n,
					AspectRatio: aspectRatio,
				})
				if err != nil {
					return err
				}
			}

			if outDir == "" {
				outDir = a.cfg.Image.OutputDir
			}
			stamp := time.Now().Format("20060102_150405")
			for i, img := range images {
				// 网关也可能直接返回远程地址
				if !strings.HasPrefix(img, "data:") {
					fmt.Fprintln(cmd.OutOrStdout(), img)
					continue
				}
				path := filepath.Join(outDir, fmt.Sprintf("image_%s_%d.png", stamp, i+1))
				if err := image.Save(path, img); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&n, "count", "n", 1, "Number of images (1-4)")
	flags.StringVar(&model, "model", "", "Image model")
	flags.StringVar(&aspectRatio, "aspect-ratio", "", "Aspect ratio (1:1, 3:4, 4:3, 16:9, 9:16)")
	flags.StringVarP(&outDir, "out-dir", "o", "", "Output directory (default image.output_dir)")
	flags.BoolVar(&chat, "chat", false, "Use the chat image model instead of /images/generations")
	return cmd
}

func newImagesMissingCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "images-missing <list.yaml>",
		Short: "Generate images listed in a YAML or JSON file that do not exist yet",
		Long: `Read a list of {filename, prompt, aspect_ratio} entries and generate the
images whose files are missing from --dir. Existing files are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readMissingList(args[0])
			if err != nil {
				return err
			}
			client, err := a.gateway()
			if err != nil {
				return err
			}
			gen := image.NewGenerator(client, a.cfg.Image, a.logger)

			report, err := gen.GenerateMissing(cmd.Context(), dir, items)
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(report); encErr != nil {
					return encErr
				}
			}
			if err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d of %d images failed", len(report.Failed), len(items))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Target directory (default image.output_dir)")
	return cmd
}

// readMissingList 解析待生成列表，YAML 兼容 JSON
func readMissingList(path string) ([]image.MissingImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []image.MissingImage
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, item := range items {
		if item.Filename == "" || item.Prompt == "" {
			return nil, fmt.Errorf("%s: entry %d needs filename and prompt", path, i)
		}
	}
	return items, nil
}
