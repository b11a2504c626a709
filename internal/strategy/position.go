package strategy

import (
	"time"

	"quorum/internal/vote"

	"github.com/shopspring/decimal"
)

// Key 唯一标识一个持仓槽位：每个策略对每个 (symbol, epoch) 至多一仓。
type Key struct {
	Symbol string
	Epoch  int64
}

// Position 是影子策略对一个 (symbol, epoch) 的未结敞口。
// 由创建它的 Shadow 独占；从 ExecuteTrade 存活到 ResolvePosition。
type Position struct {
	Strategy      string         `json:"strategy"`
	Symbol        string         `json:"symbol"`
	Epoch         int64          `json:"epoch"`
	Direction     vote.Direction `json:"direction"`
	EntryPrice    float64        `json:"entry_price"` // 二元合约报价，(0,1)
	Size          float64        `json:"size"`        // 投入资金（USD）
	Shares        float64        `json:"shares"`      // Size / EntryPrice
	Confidence    float64        `json:"confidence"`
	WeightedScore float64        `json:"weighted_score"`
	OpenedAt      time.Time      `json:"opened_at"`

	// 回写 journal 的外键；恢复时从 trades 行还原。
	DecisionID string `json:"decision_id"`
	TradeID    int64  `json:"trade_id"`
}

func (p Position) key() Key { return Key{Symbol: p.Symbol, Epoch: p.Epoch} }

// Resolution 是一次结算的结果。胜方每份合约兑付 $1：
// payout = shares × $1，pnl = payout − size；败方 payout = 0，pnl = −size。
type Resolution struct {
	Position Position       `json:"position"`
	Actual   vote.Direction `json:"actual"`
	Won      bool           `json:"won"`
	Payout   float64        `json:"payout"`
	PnL      float64        `json:"pnl"`
}

// shares 计算份额，保留 8 位小数（定价 0.20、投入 $10 ⇒ 50 份，精确）。
func shares(size, entryPrice float64) float64 {
	if entryPrice <= 0 {
		return 0
	}
	q := decimal.NewFromFloat(size).DivRound(decimal.NewFromFloat(entryPrice), 8)
	f, _ := q.Float64()
	return f
}

// Settle 对给定真值计算结算结果。纯函数：便于在落库与内存变更之间
// 插入幂等检查（先持久化 outcome，再动内存仓位）。
func Settle(pos Position, actual vote.Direction) Resolution {
	res := Resolution{Position: pos, Actual: actual}
	size := decimal.NewFromFloat(pos.Size)
	if pos.Direction == actual {
		res.Won = true
		payout := decimal.NewFromFloat(pos.Shares) // shares × $1
		res.Payout, _ = payout.Round(2).Float64()
		res.PnL, _ = payout.Sub(size).Round(2).Float64()
	} else {
		res.Payout = 0
		res.PnL, _ = size.Neg().Round(2).Float64()
	}
	return res
}
