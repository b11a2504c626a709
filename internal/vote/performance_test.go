package vote

import (
	"testing"

	"quorum/internal/market"

	"github.com/stretchr/testify/assert"
)

func TestMultiplierDefaultsBeforeMinSamples(t *testing.T) {
	p := NewPerformanceTracker(5)
	for i := 0; i < 4; i++ {
		p.Record("a", market.RegimeBull, Up, Up, 0.8)
	}
	assert.Equal(t, 1.0, p.Multiplier("a", market.RegimeBull), "样本不足时必须返回 1")
	assert.Equal(t, 1.0, p.Multiplier("unknown", market.RegimeBull))
}

func TestMultiplierRewardsCalibratedAgent(t *testing.T) {
	p := NewPerformanceTracker(5)
	// 全对且置信度 0.8：accuracy=1, avgConf=0.8, calibration=1.25
	for i := 0; i < 10; i++ {
		p.Record("good", market.RegimeBull, Up, Up, 0.8)
	}
	// 全错：accuracy=0, calibration=0
	for i := 0; i < 10; i++ {
		p.Record("bad", market.RegimeBull, Up, Down, 0.8)
	}
	good := p.Multiplier("good", market.RegimeBull)
	bad := p.Multiplier("bad", market.RegimeBull)
	assert.InDelta(t, 0.5+1.25/2, good, 1e-9)
	assert.Equal(t, 0.5, bad, "全错的 agent 压到下限 0.5")
	assert.Greater(t, good, bad)
}

func TestMultiplierClampedAtUpperBound(t *testing.T) {
	p := NewPerformanceTracker(5)
	// 全对但置信度极低：calibration 被 2 封顶 → multiplier 1.5
	for i := 0; i < 10; i++ {
		p.Record("humble", market.RegimeBear, Down, Down, 0.1)
	}
	assert.Equal(t, 1.5, p.Multiplier("humble", market.RegimeBear))
}

func TestRecordIgnoresSkip(t *testing.T) {
	p := NewPerformanceTracker(1)
	p.Record("a", market.RegimeBull, Skip, Up, 0)
	_, n := p.Accuracy("a", market.RegimeBull)
	assert.Zero(t, n)
}

func TestStatsSegmentedByRegime(t *testing.T) {
	p := NewPerformanceTracker(2)
	for i := 0; i < 5; i++ {
		p.Record("a", market.RegimeBull, Up, Up, 0.7)
		p.Record("a", market.RegimeSideways, Up, Down, 0.7)
	}
	accBull, nBull := p.Accuracy("a", market.RegimeBull)
	accSw, nSw := p.Accuracy("a", market.RegimeSideways)
	assert.Equal(t, 5, nBull)
	assert.Equal(t, 5, nSw)
	assert.Equal(t, 1.0, accBull)
	assert.Equal(t, 0.0, accSw)
	assert.Greater(t, p.Multiplier("a", market.RegimeBull), p.Multiplier("a", market.RegimeSideways))
}

func TestResetClearsHistory(t *testing.T) {
	p := NewPerformanceTracker(1)
	p.Record("a", market.RegimeBull, Up, Up, 0.5)
	assert.NotEmpty(t, p.Agents())
	p.Reset()
	assert.Empty(t, p.Agents())
}
