package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEpochMath(t *testing.T) {
	// 2026-01-01 00:00:00 UTC 恰好落在 15 分钟边界上
	boundary := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	epoch := EpochAt(boundary)

	assert.Equal(t, boundary, EpochStart(epoch))
	assert.Equal(t, boundary.Add(15*time.Minute), EpochEnd(epoch))
	assert.Equal(t, EpochStart(epoch+1), EpochEnd(epoch), "结算时刻即下一期起点")

	// 窗口内任意时刻归属同一 epoch
	assert.Equal(t, epoch, EpochAt(boundary.Add(14*time.Minute+59*time.Second)))
	assert.Equal(t, epoch+1, EpochAt(boundary.Add(15*time.Minute)))
}

func TestCandleUp(t *testing.T) {
	assert.True(t, Candle{Open: 100, Close: 101}.Up())
	assert.True(t, Candle{Open: 100, Close: 100}.Up(), "平盘按 Up 结算")
	assert.False(t, Candle{Open: 100, Close: 99}.Up())
}

func TestDropUnclosed(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	closed := Candle{CloseTime: now.Add(-time.Minute).UnixMilli(), Close: 100}
	open := Candle{CloseTime: now.Add(10 * time.Minute).UnixMilli(), Close: 101}

	got := DropUnclosed([]Candle{closed, open}, 15*time.Minute, now)
	assert.Len(t, got, 1)

	got = DropUnclosed([]Candle{closed}, 15*time.Minute, now)
	assert.Len(t, got, 1, "已收盘的尾根保留")

	assert.Empty(t, DropUnclosed(nil, 15*time.Minute, now))
}
