package agents

import (
	"context"
	"math"
	"testing"

	"quorum/internal/market"
	"quorum/internal/vote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticCandles 生成 n 根收盘价沿 drift 方向演化的 15m K 线。
func syntheticCandles(n int, start, drift float64) []market.Candle {
	out := make([]market.Candle, 0, n)
	price := start
	for i := 0; i < n; i++ {
		next := price + drift
		// 叠一点确定性的波动，避免 RSI 退化
		wiggle := math.Sin(float64(i)) * start * 0.0005
		c := market.Candle{
			OpenTime:  int64(i) * 900_000,
			CloseTime: int64(i+1)*900_000 - 1,
			Open:      price,
			Close:     next + wiggle,
			High:      math.Max(price, next+wiggle) * 1.001,
			Low:       math.Min(price, next+wiggle) * 0.999,
			Volume:    100,
		}
		out = append(out, c)
		price = next
	}
	return out
}

// snapshotWith 的 epoch 必须对每组 K 线唯一：指标缓存按 (symbol, epoch) 记忆。
func snapshotWith(epoch int64, candles []market.Candle) market.Context {
	return market.Context{Symbol: "BTCUSDT", Epoch: epoch, Candles: candles}
}

func TestVotersSkipOnInsufficientCandles(t *testing.T) {
	short := snapshotWith(100, syntheticCandles(minCandles-1, 100, 0))
	cache := NewIndicatorCache()
	for _, voter := range []vote.Voter{NewMomentum(cache), NewTrend(cache), NewRegime(cache)} {
		v, err := voter.Analyze(context.Background(), "BTCUSDT", 100, short)
		require.NoError(t, err, voter.Name())
		assert.Equal(t, vote.Skip, v.Direction, voter.Name())
	}
}

func TestMomentumFollowsRSI(t *testing.T) {
	up := snapshotWith(101, syntheticCandles(120, 100, 0.5))
	mom := NewMomentum(NewIndicatorCache())
	v, err := mom.Analyze(context.Background(), "BTCUSDT", 101, up)
	require.NoError(t, err)
	assert.Equal(t, vote.Up, v.Direction)
	assert.Greater(t, v.Confidence, 0.5)
	assert.Greater(t, v.Quality, 0.0)

	down := snapshotWith(102, syntheticCandles(120, 100, -0.3))
	v, err = mom.Analyze(context.Background(), "BTCUSDT", 102, down)
	require.NoError(t, err)
	assert.Equal(t, vote.Down, v.Direction)
}

func TestTrendNeutralOnFlatSeries(t *testing.T) {
	flat := snapshotWith(103, syntheticCandles(120, 100, 0))
	v, err := NewTrend(NewIndicatorCache()).Analyze(context.Background(), "BTCUSDT", 103, flat)
	require.NoError(t, err)
	assert.Equal(t, vote.Neutral, v.Direction)
}

func TestRegimeAlwaysSkipsWithDetails(t *testing.T) {
	bull := snapshotWith(104, syntheticCandles(120, 100, 0.5))
	v, err := NewRegime(NewIndicatorCache()).Analyze(context.Background(), "BTCUSDT", 104, bull)
	require.NoError(t, err)
	assert.Equal(t, vote.Skip, v.Direction, "市况分类器从不参与计票")
	assert.Equal(t, string(market.RegimeBull), v.Details["regime"])
	mult, ok := v.Details["multipliers"].(map[string]float64)
	require.True(t, ok)
	assert.InDelta(t, 1.2, mult["trend"], 1e-9)
}

func TestVolatilityGuardVetoesOnHighATR(t *testing.T) {
	// 剧烈放大的高低价差把 ATR/Close 推过阈值
	candles := syntheticCandles(120, 100, 0)
	for i := range candles {
		candles[i].High = candles[i].Close * 1.05
		candles[i].Low = candles[i].Close * 0.95
	}
	guard := NewVolatilityGuard(NewIndicatorCache(), 0.015)
	veto, reason, err := guard.CanVeto(context.Background(), "BTCUSDT", snapshotWith(105, candles))
	require.NoError(t, err)
	assert.True(t, veto)
	assert.NotEmpty(t, reason)

	calm := snapshotWith(106, syntheticCandles(120, 100, 0))
	veto, _, err = guard.CanVeto(context.Background(), "BTCUSDT", calm)
	require.NoError(t, err)
	assert.False(t, veto)
}

func TestVolatilityGuardErrorsOnInsufficientData(t *testing.T) {
	guard := NewVolatilityGuard(NewIndicatorCache(), 0.015)
	_, _, err := guard.CanVeto(context.Background(), "BTCUSDT", snapshotWith(107, nil))
	require.Error(t, err, "数据不可用时交由引擎 fail-closed")
}

func TestIndicatorCacheIsPerInstance(t *testing.T) {
	// 同一 (symbol, epoch) 键在两个独立缓存实例之间不串台
	ctx := context.Background()
	up := snapshotWith(108, syntheticCandles(120, 100, 0.5))
	down := snapshotWith(108, syntheticCandles(120, 100, -0.3))

	v, err := NewMomentum(NewIndicatorCache()).Analyze(ctx, "BTCUSDT", 108, up)
	require.NoError(t, err)
	assert.Equal(t, vote.Up, v.Direction)

	v, err = NewMomentum(NewIndicatorCache()).Analyze(ctx, "BTCUSDT", 108, down)
	require.NoError(t, err)
	assert.Equal(t, vote.Down, v.Direction)
}

func TestBuildRoster(t *testing.T) {
	voters, err := Build(NewIndicatorCache(), nil)
	require.NoError(t, err)
	require.Len(t, voters, 3)

	_, err = Build(NewIndicatorCache(), []string{"momentum", "ghost"})
	require.Error(t, err)
}
