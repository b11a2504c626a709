package decision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/vote"

	"github.com/google/uuid"
)

const defaultAgentTimeout = 10 * time.Second

// EngineParams 描述引擎的依赖。Voters 与 Vetoers 是两个独立集合：
// 能力靠显式接口声明，不做运行期类型探测。
type EngineParams struct {
	Voters      []vote.Voter
	Vetoers     []vote.Vetoer
	Performance *vote.PerformanceTracker
	// RegimeAgent 指定承担行情分类职责的 agent 名称（可为空）。
	RegimeAgent  string
	AgentTimeout time.Duration
}

// Engine 负责一次 (symbol, epoch) 的完整裁决流程：采集票 → 权重
// 调整 → 聚合 → 阈值 → 否决。引擎自身无状态机；所有可变状态都在
// PerformanceTracker 里。
type Engine struct {
	voters      []vote.Voter
	vetoers     []vote.Vetoer
	perf        *vote.PerformanceTracker
	regimeAgent string
	timeout     time.Duration
	nowFn       func() time.Time
}

func NewEngine(p EngineParams) *Engine {
	timeout := p.AgentTimeout
	if timeout <= 0 {
		timeout = defaultAgentTimeout
	}
	return &Engine{
		voters:      p.Voters,
		vetoers:     p.Vetoers,
		perf:        p.Performance,
		regimeAgent: strings.TrimSpace(p.RegimeAgent),
		timeout:     timeout,
		nowFn:       time.Now,
	}
}

// Performance 暴露共享的命中统计（编排层结算后回填用）。
func (e *Engine) Performance() *vote.PerformanceTracker { return e.perf }

// Collect 对一个 (symbol, epoch) 调用全部 agent，采集一次、多策略复用。
// 单个 agent 出错/超时只影响它自己：投票方降级为 Skip，否决方按
// fail-closed 记为否决。
func (e *Engine) Collect(ctx context.Context, symbol string, epoch int64, mkt market.Context) Collected {
	col := Collected{
		Symbol:      symbol,
		Epoch:       epoch,
		Votes:       make([]vote.Vote, 0, len(e.voters)),
		Vetoes:      make([]VetoCheck, 0, len(e.vetoers)),
		CollectedAt: e.nowFn().UTC(),
	}
	for _, voter := range e.voters {
		col.Votes = append(col.Votes, e.safeAnalyze(ctx, voter, symbol, epoch, mkt))
	}
	for _, vetoer := range e.vetoers {
		col.Vetoes = append(col.Vetoes, e.safeVeto(ctx, vetoer, symbol, mkt))
	}
	col.Regime = e.resolveRegime(col, mkt)
	return col
}

// Evaluate 用一套策略参数评估已采集的输出，产出不可变的 TradeDecision。
// Reason 永不为空：审计一条决策不应需要翻运行日志。
func (e *Engine) Evaluate(col Collected, p Params) TradeDecision {
	weights := e.effectiveWeights(col, p)
	agg := Aggregate(col.Votes, weights, p.MinAgents)

	dec := TradeDecision{
		ID:            uuid.NewString(),
		Strategy:      p.Strategy,
		Symbol:        col.Symbol,
		Epoch:         col.Epoch,
		Direction:     agg.Direction,
		Confidence:    agg.Confidence,
		WeightedScore: agg.WeightedScore,
		Aggregate:     agg,
		Votes:         col.Votes,
		Timestamp:     e.nowFn().UTC(),
	}

	dec.ShouldTrade, dec.Reason = applyThresholds(agg, p)

	if p.VetoEnabled {
		for _, check := range col.Vetoes {
			if check.Veto {
				dec.Vetoed = true
				dec.VetoReasons = append(dec.VetoReasons, fmt.Sprintf("%s: %s", check.Agent, check.Reason))
			}
		}
	}
	if dec.Vetoed {
		// 否决是无条件覆盖，不是一张票。
		dec.ShouldTrade = false
		dec.Reason = "vetoed: " + strings.Join(dec.VetoReasons, "; ")
	}
	return dec
}

// Decide 等价于 Collect + Evaluate，供单配置调用方使用。
func (e *Engine) Decide(ctx context.Context, symbol string, epoch int64, mkt market.Context, p Params) TradeDecision {
	return e.Evaluate(e.Collect(ctx, symbol, epoch, mkt), p)
}

func applyThresholds(agg AggregatePrediction, p Params) (bool, string) {
	if agg.NoConsensus {
		return false, "no consensus: " + agg.NoConsensusReason
	}
	if !agg.Direction.Directional() {
		return false, fmt.Sprintf("no directional majority (%d up / %d down / %d neutral)",
			agg.UpVotes, agg.DownVotes, agg.NeutralVotes)
	}
	if agg.WeightedScore < p.ConsensusThreshold {
		return false, fmt.Sprintf("weighted score %.3f below consensus threshold %.3f",
			agg.WeightedScore, p.ConsensusThreshold)
	}
	if agg.Confidence < p.MinConfidence {
		return false, fmt.Sprintf("aggregate confidence %.3f below minimum %.3f",
			agg.Confidence, p.MinConfidence)
	}
	if p.MinIndividualConfidence > 0 {
		if agent, conf, ok := lowestDirectionalConfidence(agg); ok && conf < p.MinIndividualConfidence {
			return false, fmt.Sprintf("participant %s confidence %.3f below individual minimum %.3f",
				agent, conf, p.MinIndividualConfidence)
		}
	}
	return true, fmt.Sprintf("%s consensus: score %.3f >= %.3f, confidence %.3f, votes %d up / %d down (agreement %.0f%%)",
		agg.Direction, agg.WeightedScore, p.ConsensusThreshold, agg.Confidence,
		agg.UpVotes, agg.DownVotes, agg.AgreementRate*100)
}

func (e *Engine) safeAnalyze(ctx context.Context, voter vote.Voter, symbol string, epoch int64, mkt market.Context) (result vote.Vote) {
	name := voter.Name()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("decision: agent %s panicked: %v", name, r)
			result = vote.SkipVote(name, fmt.Sprintf("agent panic: %v", r))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type analyzed struct {
		v   vote.Vote
		err error
	}
	ch := make(chan analyzed, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- analyzed{err: fmt.Errorf("agent panic: %v", r)}
			}
		}()
		v, err := voter.Analyze(callCtx, symbol, epoch, mkt)
		ch <- analyzed{v: v, err: err}
	}()

	select {
	case <-callCtx.Done():
		logger.Warnf("decision: agent %s timed out after %s, counting as skip", name, e.timeout)
		return vote.SkipVote(name, "agent timeout")
	case res := <-ch:
		if res.err != nil {
			logger.Warnf("decision: agent %s failed (%v), counting as skip", name, res.err)
			return vote.SkipVote(name, fmt.Sprintf("agent error: %v", res.err))
		}
		if res.v.AgentName == "" {
			return vote.SkipVote(name, "agent returned empty vote")
		}
		return res.v
	}
}

// safeVeto 是 fail-closed 的：否决 agent 出错或超时都按否决处理。
// 一条验证不了的风控检查绝不能默许交易。
func (e *Engine) safeVeto(ctx context.Context, vetoer vote.Vetoer, symbol string, mkt market.Context) VetoCheck {
	name := vetoer.Name()
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type checked struct {
		veto   bool
		reason string
		err    error
	}
	ch := make(chan checked, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- checked{err: fmt.Errorf("agent panic: %v", r)}
			}
		}()
		veto, reason, err := vetoer.CanVeto(callCtx, symbol, mkt)
		ch <- checked{veto: veto, reason: reason, err: err}
	}()

	select {
	case <-callCtx.Done():
		logger.Warnf("decision: vetoer %s timed out, failing closed", name)
		return VetoCheck{Agent: name, Veto: true, Reason: "veto check timed out (fail-closed)"}
	case res := <-ch:
		if res.err != nil {
			logger.Warnf("decision: vetoer %s failed (%v), failing closed", name, res.err)
			return VetoCheck{Agent: name, Veto: true, Reason: fmt.Sprintf("veto check failed: %v (fail-closed)", res.err)}
		}
		return VetoCheck{Agent: name, Veto: res.veto, Reason: res.reason}
	}
}

func (e *Engine) resolveRegime(col Collected, mkt market.Context) market.Regime {
	if insight := extractRegime(col.Votes, e.regimeAgent); insight.Regime != market.RegimeUnknown {
		return insight.Regime
	}
	if mkt.Regime != "" {
		return mkt.Regime
	}
	return market.RegimeUnknown
}

func lowestDirectionalConfidence(agg AggregatePrediction) (string, float64, bool) {
	if len(agg.directionals) == 0 {
		return "", 0, false
	}
	lowest := agg.directionals[0]
	for _, c := range agg.directionals[1:] {
		if c.Confidence < lowest.Confidence {
			lowest = c
		}
	}
	return lowest.Agent, lowest.Confidence, true
}
