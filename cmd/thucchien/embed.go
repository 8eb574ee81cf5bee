package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BaSui01/thucchien/internal/content"
)

// =============================================================================
// 🧩 embed-images 命令
// =============================================================================

func newEmbedImagesCmd(a *app) *cobra.Command {
	var baseDir string
	cmd := &cobra.Command{
		Use:   "embed-images [content.json]",
		Short: "Inline image files referenced by content.json as data URIs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Content.Path
			if len(args) == 1 {
				path = args[0]
			}
			if baseDir == "" {
				baseDir = a.cfg.Content.ImageDir
			}
			report, err := content.EmbedImages(path, baseDir, a.logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "embedded %d images, missing %d\n", len(report.Embedded), len(report.Missing))
			for _, m := range report.Missing {
				fmt.Fprintf(out, "  missing: %s\n", m)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "Directory image paths are relative to (default content.image_dir)")
	return cmd
}
