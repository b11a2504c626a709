package market

import "time"

// Regime 标记当前行情状态，用于 agent 权重的分段统计与调整。
type Regime string

const (
	RegimeBull     Regime = "bull"
	RegimeBear     Regime = "bear"
	RegimeSideways Regime = "sideways"
	RegimeUnknown  Regime = "unknown"
)

func ParseRegime(raw string) Regime {
	switch Regime(raw) {
	case RegimeBull, RegimeBear, RegimeSideways:
		return Regime(raw)
	default:
		return RegimeUnknown
	}
}

// Context 是一次决策周期内传给所有 agent 的市场快照。
// 它是只读输入：agent 不得修改其中的切片与 map。
type Context struct {
	Symbol    string    `json:"symbol"`
	Epoch     int64     `json:"epoch"`
	LastPrice float64   `json:"last_price"`
	UpPrice   float64   `json:"up_price"`   // Up 合约报价，(0,1)
	DownPrice float64   `json:"down_price"` // Down 合约报价，(0,1)
	Candles   []Candle  `json:"candles"`
	Regime    Regime    `json:"regime,omitempty"`
	Balance   float64   `json:"balance,omitempty"`
	OpenCount int       `json:"open_count,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`

	// Extra 为上游采集层附带的诊断信息（资金费率、盘口等），shape 不做约束。
	Extra map[string]any `json:"extra,omitempty"`
}

// ContractPrice 返回给定方向的入场价；方向未知时返回 0。
func (c Context) ContractPrice(dir string) float64 {
	switch dir {
	case "up":
		return c.UpPrice
	case "down":
		return c.DownPrice
	default:
		return 0
	}
}
