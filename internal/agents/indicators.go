package agents

import (
	"fmt"
	"time"

	"quorum/internal/market"

	"github.com/markcheno/go-talib"
	gocache "github.com/patrickmn/go-cache"
)

// IndicatorCache 按 (symbol, epoch) 缓存指标快照。同一轮收集里
// 多个 agent 读同一份 K 线，指标只算一次。由构建方创建后显式
// 注入各 agent，不做包级单例。
type IndicatorCache struct {
	store *gocache.Cache
}

func NewIndicatorCache() *IndicatorCache {
	return &IndicatorCache{store: gocache.New(30*time.Minute, 10*time.Minute)}
}

type indicators struct {
	Close float64

	RSI14   float64
	EMAFast []float64
	EMASlow []float64
	EMA50   []float64
	ATR14   []float64
}

func (ind indicators) atrRatio() float64 {
	if len(ind.ATR14) == 0 || ind.Close <= 0 {
		return 0
	}
	return ind.ATR14[len(ind.ATR14)-1] / ind.Close
}

const (
	emaFastPeriod = 9
	emaSlowPeriod = 21
	rsiPeriod     = 14
	atrPeriod     = 14

	// minCandles 保证最慢的指标（EMA50）有足够的热身样本。
	minCandles = 60
)

func (c *IndicatorCache) indicatorsFor(symbol string, epoch int64, candles []market.Candle) (indicators, error) {
	if len(candles) < minCandles {
		return indicators{}, fmt.Errorf("K 线不足: %d < %d", len(candles), minCandles)
	}
	key := fmt.Sprintf("%s:%d", symbol, epoch)
	if cached, ok := c.store.Get(key); ok {
		return cached.(indicators), nil
	}
	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)
	ind := indicators{
		Close:   closes[len(closes)-1],
		RSI14:   lastOf(talib.Rsi(closes, rsiPeriod)),
		EMAFast: talib.Ema(closes, emaFastPeriod),
		EMASlow: talib.Ema(closes, emaSlowPeriod),
		EMA50:   talib.Ema(closes, 50),
		ATR14:   talib.Atr(highs, lows, closes, atrPeriod),
	}
	c.store.Set(key, ind, gocache.DefaultExpiration)
	return ind, nil
}

func lastOf(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
