package app

import (
	"context"
	"fmt"

	qcfg "quorum/internal/config"
	"quorum/internal/journal"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/report"
	"quorum/internal/scheduler"
	"quorum/internal/sim"
	"quorum/internal/strategy"
	statushttp "quorum/internal/transport/http"
	"quorum/internal/vote"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→崩溃恢复→epoch 循环与状态服务。
type App struct {
	cfg      *qcfg.Config
	journal  *journal.Journal
	source   *market.KlineSource
	registry *strategy.Registry
	orch     *sim.Orchestrator
	reports  *report.Store
	httpSrv  *statushttp.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(ctx context.Context, cfg *qcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return buildAppWithWire(ctx, cfg)
}

// Run 启动 epoch 循环与状态服务，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)

	if a.httpSrv != nil {
		group.Go(func() error {
			logger.Infof("状态服务监听 %s", a.httpSrv.Addr())
			if err := a.httpSrv.Start(ctx); err != nil {
				return fmt.Errorf("status http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		sched := scheduler.NewEpochScheduler(ctx, a.cfg.Epoch.Offset)
		sched.RunImmediately = a.cfg.Epoch.RunImmediately
		sched.Start(func(epoch int64) {
			a.tick(ctx, epoch)
		})
		return nil
	})

	return group.Wait()
}

// tick 是每个 epoch 边界执行的一轮：先用刚闭合的 K 线结算上一个
// epoch，再为新 epoch 收集一轮票并评估开仓。结算在前，腾出来的
// 余额和仓位槽本轮就能用。
func (a *App) tick(ctx context.Context, epoch int64) {
	symbol := a.cfg.Market.Symbol

	outcome, err := a.source.EpochOutcome(ctx, symbol, epoch-1)
	if err != nil {
		logger.Warnf("epoch %d 结果获取失败，留给下一轮或恢复路径: %v", epoch-1, err)
	} else if dir, perr := vote.ParseDirection(outcome); perr != nil {
		logger.Errorf("epoch %d 结果非法 %q: %v", epoch-1, outcome, perr)
	} else if err := a.orch.OnEpochResolution(ctx, symbol, epoch-1, dir); err != nil {
		logger.Errorf("epoch %d 结算出错: %v", epoch-1, err)
	}

	mkt, err := a.source.Snapshot(ctx, symbol, epoch)
	if err != nil {
		logger.Warnf("epoch %d 行情快照失败，本轮跳过: %v", epoch, err)
		return
	}
	if err := a.orch.OnMarketData(ctx, symbol, epoch, mkt); err != nil {
		logger.Errorf("epoch %d 评估出错: %v", epoch, err)
	}
}

// Orchestrator exposes the underlying orchestrator (for replay harnesses).
func (a *App) Orchestrator() *sim.Orchestrator {
	if a == nil {
		return nil
	}
	return a.orch
}

// Close 释放持有的资源。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.reports != nil {
		_ = a.reports.Close()
	}
	if a.journal != nil {
		_ = a.journal.Close()
	}
}
