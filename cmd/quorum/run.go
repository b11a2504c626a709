package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"quorum/internal/app"
	qcfg "quorum/internal/config"
	"quorum/internal/logger"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "启动 epoch 主循环与状态服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgPath == "" {
				cfgPath = os.Getenv("QUORUM_CONFIG")
			}
			if cfgPath == "" {
				cfgPath = "configs/config.yaml"
			}
			cfg, err := qcfg.Load(cfgPath)
			if err != nil {
				return err
			}
			logger.Infof("✓ 配置加载成功 (%s) symbol=%s", cfgPath, cfg.Market.Symbol)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.NewApp(ctx, cfg)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "配置文件路径（默认 $QUORUM_CONFIG 或 configs/config.yaml）")
	return cmd
}
