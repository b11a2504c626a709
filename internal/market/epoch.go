package market

import "time"

// EpochDuration 是二元市场的结算周期：每 15 分钟一期，到期按 Up/Down 结算。
const EpochDuration = 15 * time.Minute

// EpochAt 返回时间点 t 所处的 epoch 序号（自 Unix 纪元起的 15 分钟窗口数）。
func EpochAt(t time.Time) int64 {
	return t.Unix() / int64(EpochDuration/time.Second)
}

// EpochStart 返回 epoch 的起始时间（UTC）。
func EpochStart(epoch int64) time.Time {
	return time.Unix(epoch*int64(EpochDuration/time.Second), 0).UTC()
}

// EpochEnd 返回 epoch 的结算时间（UTC），即下一期的起点。
func EpochEnd(epoch int64) time.Time {
	return EpochStart(epoch + 1)
}
