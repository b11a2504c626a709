package agents

import (
	"context"
	"fmt"

	"quorum/internal/market"
	"quorum/internal/vote"
)

// Momentum 用 RSI 捕捉 15 分钟级别的超买超卖。RSI 越偏离中轴
// 信心越高；落在中性带内投 Neutral。
type Momentum struct {
	cache *IndicatorCache
	upper float64
	lower float64
}

func NewMomentum(cache *IndicatorCache) *Momentum {
	return &Momentum{cache: cache, upper: 55, lower: 45}
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) Analyze(ctx context.Context, symbol string, epoch int64, mkt market.Context) (vote.Vote, error) {
	ind, err := m.cache.indicatorsFor(symbol, epoch, mkt.Candles)
	if err != nil {
		return vote.SkipVote(m.Name(), err.Error()), nil
	}
	rsi := ind.RSI14
	quality := dataQuality(mkt)
	switch {
	case rsi >= m.upper:
		conf := clamp01(0.5 + (rsi-m.upper)/60)
		return vote.New(m.Name(), vote.Up, conf, quality,
			fmt.Sprintf("RSI %.1f 超过 %.0f，短线动能偏多", rsi, m.upper))
	case rsi <= m.lower:
		conf := clamp01(0.5 + (m.lower-rsi)/60)
		return vote.New(m.Name(), vote.Down, conf, quality,
			fmt.Sprintf("RSI %.1f 低于 %.0f，短线动能偏空", rsi, m.lower))
	default:
		return vote.New(m.Name(), vote.Neutral, 0.3, quality,
			fmt.Sprintf("RSI %.1f 处于中性带，无方向", rsi))
	}
}

// dataQuality 按 K 线数量给数据质量打分：minCandles 打底 0.5，
// 样本每多一截加一点，封顶 1。
func dataQuality(mkt market.Context) float64 {
	n := len(mkt.Candles)
	if n < minCandles {
		return 0
	}
	return clamp01(0.5 + float64(n-minCandles)/200)
}
