package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/config"
	"github.com/BaSui01/thucchien/llm/gateway"
)

// annotationServer 标记长驻服务命令，其日志按配置输出；其余命令日志写 stderr
const annotationServer = "server"

// app 各子命令共享的配置与依赖
type app struct {
	configPath string
	envFiles   []string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger

	// 测试注入
	gatewayOpts []gateway.ClientOption
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "thucchien",
		Short:         "Travel content server and generative AI gateway toolkit.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to config file (YAML)")
	flags.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "dotenv files to load, missing files are skipped")
	flags.StringVar(&a.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(a),
		newVideoCmd(a),
		newNewsVideoCmd(a),
		newImageCmd(a),
		newImagesMissingCmd(a),
		newTTSCmd(a),
		newTextCmd(a),
		newSpendCmd(a),
		newEmbedImagesCmd(a),
		newVersionCmd(),
		newHealthCmd(),
	)
	return root
}

// load 加载配置并初始化日志，同一进程内只执行一次
func (a *app) load(cmd *cobra.Command) error {
	if a.cfg != nil {
		return nil
	}

	loader := config.NewLoader().WithDotEnv(a.envFiles...)
	if a.configPath != "" {
		loader = loader.WithConfigPath(a.configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	if a.logger == nil {
		logCfg := cfg.Log
		if _, ok := cmd.Annotations[annotationServer]; !ok {
			logCfg.OutputPaths = []string{"stderr"}
		}
		logger, err := newLogger(logCfg)
		if err != nil {
			return err
		}
		a.logger = logger
	}
	return nil
}

// gateway 创建网关客户端，要求已配置 API Key
func (a *app) gateway(opts ...gateway.ClientOption) (*gateway.Client, error) {
	if err := config.RequireAPIKey(a.cfg); err != nil {
		return nil, err
	}
	client, err := gateway.NewClient(a.cfg.Gateway, a.logger, append(a.gatewayOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gateway client: %w", err)
	}
	return client, nil
}
