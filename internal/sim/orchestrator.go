package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"quorum/internal/decision"
	"quorum/internal/journal"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/strategy"
	"quorum/internal/vote"
)

const defaultHorizon = time.Hour

// Params 组装一个 Orchestrator 所需的全部依赖。
type Params struct {
	Engine  *decision.Engine
	Journal *journal.Journal
	Roster  []strategy.Config
	// Horizon 是崩溃恢复的安全窗口：epoch 结束超过此时长的未结交易
	// 无法再从行情接口拿到结果，直接放弃。
	Horizon time.Duration
}

type epochKey struct {
	Symbol string
	Epoch  int64
}

// Orchestrator 驱动整条流水线：每 epoch 收集一轮票，让所有影子策略
// 各自评估、开仓；epoch 结束后统一结算并回写 journal。
// 收集只做一次，N 套策略复用同一批票。
type Orchestrator struct {
	engine  *decision.Engine
	journal *journal.Journal
	horizon time.Duration

	shadows map[string]*strategy.Shadow
	order   []string

	mu        sync.Mutex
	collected map[epochKey]decision.Collected
}

// New 构建 Orchestrator 并执行崩溃恢复：注册策略、从 outcomes 还原
// 战绩、从未结算的 trades 行重建内存持仓。
func New(ctx context.Context, p Params) (*Orchestrator, error) {
	if p.Engine == nil {
		return nil, fmt.Errorf("sim: engine 不能为空")
	}
	if p.Journal == nil {
		return nil, fmt.Errorf("sim: journal 不能为空")
	}
	if len(p.Roster) == 0 {
		return nil, fmt.Errorf("sim: 策略名单为空")
	}
	if p.Horizon <= 0 {
		p.Horizon = defaultHorizon
	}
	o := &Orchestrator{
		engine:    p.Engine,
		journal:   p.Journal,
		horizon:   p.Horizon,
		shadows:   make(map[string]*strategy.Shadow, len(p.Roster)),
		collected: make(map[epochKey]decision.Collected),
	}
	for _, cfg := range p.Roster {
		if _, dup := o.shadows[cfg.Name]; dup {
			return nil, fmt.Errorf("sim: 策略名重复 %s", cfg.Name)
		}
		if err := p.Journal.UpsertStrategy(ctx, cfg); err != nil {
			return nil, fmt.Errorf("sim: 注册策略 %s 失败: %w", cfg.Name, err)
		}
		shadow, err := strategy.NewShadow(cfg)
		if err != nil {
			return nil, fmt.Errorf("sim: 策略 %s 配置非法: %w", cfg.Name, err)
		}
		o.shadows[cfg.Name] = shadow
		o.order = append(o.order, cfg.Name)
	}
	sort.Strings(o.order)
	if err := o.recover(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// recover 从 journal 重建内存状态。顺序很重要：先 RestoreStats 把
// balance 拉回 initial + total_pnl，再 Restore 逐仓扣掉在途资金，
// 每笔只扣一次。
func (o *Orchestrator) recover(ctx context.Context) error {
	for _, name := range o.order {
		stats, err := o.journal.StrategyStats(ctx, name)
		if err != nil {
			return fmt.Errorf("sim: 恢复策略 %s 战绩失败: %w", name, err)
		}
		o.shadows[name].RestoreStats(stats.Trades, stats.Wins, stats.Losses, stats.TotalPnL)
	}
	rec, err := o.journal.UnresolvedTrades(ctx, o.horizon, time.Now())
	if err != nil {
		return fmt.Errorf("sim: 扫描未结算交易失败: %w", err)
	}
	restored := 0
	for _, pos := range rec.Positions {
		shadow, ok := o.shadows[pos.Strategy]
		if !ok {
			// 名单里删掉的策略留下的孤儿仓位，只告警不恢复
			logger.Warnf("恢复跳过未知策略 %s 的持仓 trade_id=%d", pos.Strategy, pos.TradeID)
			continue
		}
		if err := shadow.Restore(pos); err != nil {
			logger.Warnf("恢复持仓失败 strategy=%s trade_id=%d: %v", pos.Strategy, pos.TradeID, err)
			continue
		}
		restored++
	}
	if restored > 0 || rec.Abandoned > 0 {
		logger.Infof("崩溃恢复完成: 重建持仓 %d 笔, 放弃超窗交易 %d 笔", restored, rec.Abandoned)
	}
	return nil
}

// Shadow 返回指定策略的影子账户。
func (o *Orchestrator) Shadow(name string) (*strategy.Shadow, bool) {
	s, ok := o.shadows[name]
	return s, ok
}

// Snapshots 返回全部策略的当前绩效，按名字排序。
func (o *Orchestrator) Snapshots() []strategy.Snapshot {
	out := make([]strategy.Snapshot, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, o.shadows[name].Performance())
	}
	return out
}

// OnMarketData 处理一个 epoch 的行情快照：收集一轮票，然后让每套
// 策略独立评估。单个策略出错不影响其余策略，错误聚合后返回。
func (o *Orchestrator) OnMarketData(ctx context.Context, symbol string, epoch int64, mkt market.Context) error {
	col := o.engine.Collect(ctx, symbol, epoch, mkt)
	o.mu.Lock()
	o.collected[epochKey{Symbol: col.Symbol, Epoch: epoch}] = col
	o.mu.Unlock()

	var errs []error
	for _, name := range o.order {
		if err := o.evaluateOne(ctx, o.shadows[name], col, mkt); err != nil {
			errs = append(errs, fmt.Errorf("strategy %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// evaluateOne 评估单套策略并持久化。写入顺序是崩溃安全的关键：
// decision、votes、trade 在一个事务里先落库，提交成功后才改内存
// 余额。崩溃只会留下"有 trade 没 outcome"的行，恢复路径认识它。
func (o *Orchestrator) evaluateOne(ctx context.Context, shadow *strategy.Shadow, col decision.Collected, mkt market.Context) error {
	dec := o.engine.Evaluate(col, shadow.Config().Params())
	balanceBefore := shadow.Balance()
	if !dec.ShouldTrade {
		return o.journal.Transaction(ctx, func(tx *journal.Journal) error {
			if err := tx.InsertDecision(ctx, dec, balanceBefore); err != nil {
				return err
			}
			return tx.InsertAgentVotes(ctx, dec.ID, col.Votes)
		})
	}
	entry := mkt.ContractPrice(string(dec.Direction))
	pos, err := shadow.PlanTrade(dec, entry)
	if err != nil {
		// 风控拒单不是错误：决策照样入账，只是不产生 trade 行
		logger.Debugf("策略 %s 拒单 symbol=%s epoch=%d: %v", shadow.Name(), col.Symbol, col.Epoch, err)
		return o.journal.Transaction(ctx, func(tx *journal.Journal) error {
			if err := tx.InsertDecision(ctx, dec, balanceBefore); err != nil {
				return err
			}
			return tx.InsertAgentVotes(ctx, dec.ID, col.Votes)
		})
	}
	var tradeID int64
	err = o.journal.Transaction(ctx, func(tx *journal.Journal) error {
		if err := tx.InsertDecision(ctx, dec, balanceBefore); err != nil {
			return err
		}
		if err := tx.InsertAgentVotes(ctx, dec.ID, col.Votes); err != nil {
			return err
		}
		id, err := tx.InsertTrade(ctx, pos)
		if err != nil {
			return err
		}
		tradeID = id
		return nil
	})
	if err != nil {
		return err
	}
	pos.TradeID = tradeID
	if err := shadow.Open(pos); err != nil {
		// 事务提交后 Open 只可能因并发槽位冲突失败；trade 行已落库，
		// 留给恢复路径按未结交易处理
		return fmt.Errorf("开仓失败 trade_id=%d: %w", tradeID, err)
	}
	logger.Infof("策略 %s 开仓 %s epoch=%d dir=%s entry=%.4f size=%.2f shares=%.2f trade_id=%d",
		shadow.Name(), pos.Symbol, pos.Epoch, pos.Direction, pos.EntryPrice, pos.Size, pos.Shares, tradeID)
	return nil
}

// OnEpochResolution 用真实结果结算一个 epoch：先查重、再持久化
// outcome，成功后才动内存仓位，保证 at-most-once（唯一索引兜底
// 并发竞态）；随后喂给自适应权重的表现追踪器，并为有动作的策略
// 追加绩效快照。
func (o *Orchestrator) OnEpochResolution(ctx context.Context, symbol string, epoch int64, actual vote.Direction) error {
	if !actual.Directional() {
		return fmt.Errorf("sim: 结算方向非法: %s", actual)
	}
	var errs []error
	for _, name := range o.order {
		shadow := o.shadows[name]
		pos, ok := shadow.Position(symbol, epoch)
		if !ok {
			continue
		}
		done, err := o.journal.HasOutcome(ctx, name, symbol, epoch)
		if err != nil {
			errs = append(errs, fmt.Errorf("strategy %s: 结算查重失败: %w", name, err))
			continue
		}
		if done {
			// 上次崩溃发生在落库之后、内存更新之前；补齐内存即可
			shadow.ResolvePosition(symbol, epoch, actual)
			continue
		}
		res := strategy.Settle(pos, actual)
		if err := o.journal.InsertOutcome(ctx, res); err != nil {
			if errors.Is(err, journal.ErrOutcomeExists) {
				// 查重与写入之间被并发结算抢先，唯一索引兜底
				shadow.ResolvePosition(symbol, epoch, actual)
				continue
			}
			errs = append(errs, fmt.Errorf("strategy %s: 结算落库失败: %w", name, err))
			continue
		}
		shadow.ResolvePosition(symbol, epoch, actual)
		logger.Infof("策略 %s 结算 %s epoch=%d actual=%s won=%v payout=%.2f pnl=%+.2f balance=%.2f",
			name, symbol, epoch, actual, res.Won, res.Payout, res.PnL, shadow.Balance())
		if err := o.journal.AppendPerformance(ctx, shadow.Performance()); err != nil {
			errs = append(errs, fmt.Errorf("strategy %s: 绩效快照失败: %w", name, err))
		}
	}
	o.recordVotes(symbol, epoch, actual)
	return errors.Join(errs...)
}

// recordVotes 把该 epoch 收集到的方向票喂给表现追踪器，每个
// (symbol, epoch) 只喂一次，随手清掉缓存。
func (o *Orchestrator) recordVotes(symbol string, epoch int64, actual vote.Direction) {
	key := epochKey{Symbol: symbol, Epoch: epoch}
	o.mu.Lock()
	col, ok := o.collected[key]
	if ok {
		delete(o.collected, key)
	}
	// 顺带清理更老的残留（对应从未等到结算的 epoch）
	for k := range o.collected {
		if k.Symbol == symbol && k.Epoch < epoch {
			delete(o.collected, k)
		}
	}
	o.mu.Unlock()
	if !ok {
		return
	}
	perf := o.engine.Performance()
	if perf == nil {
		return
	}
	for _, v := range col.Votes {
		if !v.Direction.Directional() {
			continue
		}
		perf.Record(v.AgentName, col.Regime, v.Direction, actual, v.Confidence)
	}
}
