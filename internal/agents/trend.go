package agents

import (
	"context"
	"fmt"
	"math"

	"quorum/internal/market"
	"quorum/internal/vote"
)

// Trend 看 EMA9/EMA21 的相对位置与张口幅度。两线纠缠时弃权给
// Neutral，张口越大信心越高。
type Trend struct {
	cache *IndicatorCache
}

func NewTrend(cache *IndicatorCache) *Trend { return &Trend{cache: cache} }

func (t *Trend) Name() string { return "trend" }

func (t *Trend) Analyze(ctx context.Context, symbol string, epoch int64, mkt market.Context) (vote.Vote, error) {
	ind, err := t.cache.indicatorsFor(symbol, epoch, mkt.Candles)
	if err != nil {
		return vote.SkipVote(t.Name(), err.Error()), nil
	}
	fast := lastOf(ind.EMAFast)
	slow := lastOf(ind.EMASlow)
	if fast <= 0 || slow <= 0 {
		return vote.SkipVote(t.Name(), "EMA 序列未热身完成"), nil
	}
	// 张口幅度相对价格归一化；1% 的张口已经算很强的 15m 趋势
	spread := (fast - slow) / ind.Close
	strength := clamp01(math.Abs(spread) / 0.01)
	quality := dataQuality(mkt)
	if strength < 0.1 {
		return vote.New(t.Name(), vote.Neutral, 0.3, quality,
			fmt.Sprintf("EMA%d/EMA%d 纠缠 (spread=%.4f%%)，趋势不明", emaFastPeriod, emaSlowPeriod, spread*100))
	}
	conf := clamp01(0.5 + strength/2)
	if spread > 0 {
		return vote.New(t.Name(), vote.Up, conf, quality,
			fmt.Sprintf("EMA%d 在 EMA%d 上方 %.3f%%，趋势向上", emaFastPeriod, emaSlowPeriod, spread*100))
	}
	return vote.New(t.Name(), vote.Down, conf, quality,
		fmt.Sprintf("EMA%d 在 EMA%d 下方 %.3f%%，趋势向下", emaFastPeriod, emaSlowPeriod, -spread*100))
}
