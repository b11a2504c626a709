package app

import (
	"context"
	"fmt"

	"quorum/internal/agents"
	qcfg "quorum/internal/config"
	"quorum/internal/decision"
	"quorum/internal/journal"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/report"
	"quorum/internal/sim"
	"quorum/internal/strategy"
	statushttp "quorum/internal/transport/http"
	"quorum/internal/vote"
)

// AppBuilder 把依赖构建拆成可替换的小步骤，
// 测试时按需覆盖其中某一环。
type AppBuilder struct {
	cfg *qcfg.Config

	journalFn  func(qcfg.JournalConfig) (*journal.Journal, error)
	sourceFn   func(qcfg.MarketConfig) (*market.KlineSource, error)
	votersFn   func(qcfg.AgentsConfig) ([]vote.Voter, []vote.Vetoer, error)
	registryFn func(qcfg.StrategiesConfig) (*strategy.Registry, error)
	httpFn     func(qcfg.HTTPConfig, *sim.Orchestrator, *report.Store) (*statushttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *qcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		journalFn:  buildJournal,
		sourceFn:   buildSource,
		votersFn:   buildAgents,
		registryFn: buildRegistry,
		httpFn:     buildStatusServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildJournal(cfg qcfg.JournalConfig) (*journal.Journal, error) {
	return journal.Open(cfg.Path)
}

func buildSource(cfg qcfg.MarketConfig) (*market.KlineSource, error) {
	return market.NewKlineSource(market.SourceConfig{
		CandleLimit:   cfg.CandleLimit,
		ContractPrice: cfg.ContractPrice,
		BreakLimit:    cfg.BreakLimit,
		BreakCooldown: cfg.BreakCooldown,
	}), nil
}

func buildAgents(cfg qcfg.AgentsConfig) ([]vote.Voter, []vote.Vetoer, error) {
	// voter 和 vetoer 共用一份指标缓存：同一 (symbol, epoch) 只算一次
	cache := agents.NewIndicatorCache()
	voters, err := agents.Build(cache, cfg.Enabled)
	if err != nil {
		return nil, nil, err
	}
	var vetoers []vote.Vetoer
	if cfg.VolatilityVeto.Enabled {
		vetoers = append(vetoers, agents.NewVolatilityGuard(cache, cfg.VolatilityVeto.MaxATRRatio))
	}
	return voters, vetoers, nil
}

func buildRegistry(cfg qcfg.StrategiesConfig) (*strategy.Registry, error) {
	return strategy.NewRegistry(cfg.Path)
}

func buildStatusServer(cfg qcfg.HTTPConfig, orch *sim.Orchestrator, reports *report.Store) (*statushttp.Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return statushttp.NewServer(statushttp.ServerConfig{
		Addr:         cfg.Addr,
		Orchestrator: orch,
		Reports:      reports,
	})
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	jnl, err := b.journalFn(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("打开 journal 失败: %w", err)
	}
	source, err := b.sourceFn(cfg.Market)
	if err != nil {
		jnl.Close()
		return nil, err
	}
	voters, vetoers, err := b.votersFn(cfg.Agents)
	if err != nil {
		jnl.Close()
		return nil, err
	}
	registry, err := b.registryFn(cfg.Strategies)
	if err != nil {
		jnl.Close()
		return nil, fmt.Errorf("加载策略名单失败: %w", err)
	}
	roster := registry.Roster()
	logger.Infof("✓ 已加载 %d 套影子策略 (version=%d)", len(roster.Configs), roster.Version)
	if live, ok := roster.Live(); ok {
		logger.Infof("✓ 实盘配置: %s", live.Name)
	}
	registry.Subscribe(func(r strategy.Roster) {
		// 影子账户与持仓和配置绑定，新名单需要重启后生效
		logger.Warnf("策略名单已变更为 version=%d（%d 套），重启后生效", r.Version, len(r.Configs))
	})

	engine := decision.NewEngine(decision.EngineParams{
		Voters:       voters,
		Vetoers:      vetoers,
		Performance:  vote.NewPerformanceTracker(cfg.Agents.MinSamples),
		RegimeAgent:  cfg.Agents.RegimeAgent,
		AgentTimeout: cfg.Agents.Timeout,
	})
	orch, err := sim.New(ctx, sim.Params{
		Engine:  engine,
		Journal: jnl,
		Roster:  roster.Configs,
		Horizon: cfg.Epoch.Horizon,
	})
	if err != nil {
		jnl.Close()
		return nil, err
	}

	// 报表读端失败只降级，不阻塞主流程
	reports, err := report.NewStore(cfg.Journal.Path)
	if err != nil {
		logger.Warnf("报表读端打开失败，/api/decisions 不可用: %v", err)
		reports = nil
	}
	httpSrv, err := b.httpFn(cfg.HTTP, orch, reports)
	if err != nil {
		jnl.Close()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		journal:  jnl,
		source:   source,
		registry: registry,
		orch:     orch,
		reports:  reports,
		httpSrv:  httpSrv,
	}, nil
}
