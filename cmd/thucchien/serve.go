package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/config"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Start the content and video job HTTP server",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationServer: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				a.cfg.Server.HTTPPort = port
			}
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := config.RequireAPIKey(a.cfg); err != nil {
				return err
			}

			a.logger.Info("Starting thucchien",
				zap.String("version", Version),
				zap.String("build_time", BuildTime),
				zap.String("git_commit", GitCommit),
			)

			srv := NewServer(a.cfg, a.logger)
			srv.gatewayOpts = a.gatewayOpts
			if err := srv.Start(cmd.Context()); err != nil {
				return err
			}

			// 等待关闭信号
			err := srv.Wait(cmd.Context())
			a.logger.Info("thucchien stopped")
			return err
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override server.http_port")
	return cmd
}
