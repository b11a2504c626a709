package market

import "time"

type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Up 报告该 K 线收盘是否不低于开盘（二元市场的结算方向）。
func (c Candle) Up() bool { return c.Close >= c.Open }

func Closes(candles []Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		out = append(out, c.Close)
	}
	return out
}

func Highs(candles []Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		out = append(out, c.High)
	}
	return out
}

func Lows(candles []Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		out = append(out, c.Low)
	}
	return out
}

// DropUnclosed 丢弃尾部尚未收盘的 K 线；交易所返回的最后一根往往仍在进行中。
func DropUnclosed(candles []Candle, interval time.Duration, now time.Time) []Candle {
	if len(candles) == 0 || interval <= 0 {
		return candles
	}
	last := candles[len(candles)-1]
	closeAt := time.UnixMilli(last.CloseTime)
	if closeAt.After(now) {
		return candles[:len(candles)-1]
	}
	return candles
}
