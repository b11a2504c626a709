package agents

import (
	"context"
	"fmt"

	"quorum/internal/market"
)

// VolatilityGuard 在波动异常放大时一票否决。二元合约结算只看
// 15 分钟后的收盘，剧烈波动下任何方向预测都接近抛硬币。
type VolatilityGuard struct {
	cache *IndicatorCache
	// maxATRRatio 是 ATR14/价格 的上限，默认 1.5%。
	maxATRRatio float64
}

func NewVolatilityGuard(cache *IndicatorCache, maxATRRatio float64) *VolatilityGuard {
	if maxATRRatio <= 0 {
		maxATRRatio = 0.015
	}
	return &VolatilityGuard{cache: cache, maxATRRatio: maxATRRatio}
}

func (g *VolatilityGuard) Name() string { return "volatility_guard" }

func (g *VolatilityGuard) CanVeto(ctx context.Context, symbol string, mkt market.Context) (bool, string, error) {
	ind, err := g.cache.indicatorsFor(symbol, mkt.Epoch, mkt.Candles)
	if err != nil {
		// 数据不足时交给上层的 fail-closed 处理
		return false, "", err
	}
	ratio := ind.atrRatio()
	if ratio > g.maxATRRatio {
		return true, fmt.Sprintf("ATR/价格 %.3f%% 超过上限 %.3f%%，波动过大", ratio*100, g.maxATRRatio*100), nil
	}
	return false, "", nil
}
