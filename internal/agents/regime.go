package agents

import (
	"context"
	"fmt"

	"quorum/internal/market"
	"quorum/internal/vote"
)

// slopeWindow 是判断 EMA50 斜率所用的回看根数（15m K 线，约 3 小时）。
const slopeWindow = 12

// Regime 是市况分类器。它从不参与共识：永远投 Skip，分类结果塞在
// Details 里，由评估端按策略开关取用。
type Regime struct {
	cache *IndicatorCache
}

func NewRegime(cache *IndicatorCache) *Regime { return &Regime{cache: cache} }

func (r *Regime) Name() string { return "regime" }

func (r *Regime) Analyze(ctx context.Context, symbol string, epoch int64, mkt market.Context) (vote.Vote, error) {
	ind, err := r.cache.indicatorsFor(symbol, epoch, mkt.Candles)
	if err != nil {
		return vote.SkipVote(r.Name(), err.Error()), nil
	}
	regime, reason := classify(ind)
	v := vote.SkipVote(r.Name(), reason)
	return v.WithDetails(map[string]any{
		"regime":      string(regime),
		"multipliers": multipliersFor(regime),
	}), nil
}

func classify(ind indicators) (market.Regime, string) {
	n := len(ind.EMA50)
	if n <= slopeWindow || ind.EMA50[n-1-slopeWindow] <= 0 {
		return market.RegimeUnknown, "EMA50 未热身完成，市况未知"
	}
	slope := (ind.EMA50[n-1] - ind.EMA50[n-1-slopeWindow]) / ind.Close
	switch {
	case slope > 0.004:
		return market.RegimeBull, fmt.Sprintf("EMA50 三小时抬升 %.2f%%，多头市况", slope*100)
	case slope < -0.004:
		return market.RegimeBear, fmt.Sprintf("EMA50 三小时下行 %.2f%%，空头市况", -slope*100)
	default:
		return market.RegimeSideways, fmt.Sprintf("EMA50 三小时漂移 %.2f%%，震荡市况", slope*100)
	}
}

// multipliersFor 给出各 agent 在该市况下的权重系数。趋势市放大
// trend，震荡市放大 momentum。
func multipliersFor(regime market.Regime) map[string]float64 {
	switch regime {
	case market.RegimeBull, market.RegimeBear:
		return map[string]float64{"trend": 1.2, "momentum": 0.8}
	case market.RegimeSideways:
		return map[string]float64{"trend": 0.8, "momentum": 1.2}
	default:
		return nil
	}
}
