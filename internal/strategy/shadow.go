package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"quorum/internal/decision"
	"quorum/internal/vote"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotTradable 决策本身不可成交（should_trade=false 或方向非 up/down）。
	ErrNotTradable = errors.New("strategy: decision not tradable")
	// ErrDuplicatePosition 同一 (symbol, epoch) 已有持仓。
	ErrDuplicatePosition = errors.New("strategy: position already open for key")
	// ErrInsufficientBalance 余额不足以按配置下注。
	ErrInsufficientBalance = errors.New("strategy: insufficient balance")
	// ErrRiskLimit 触发风控限制（最大持仓数、无效定价等）。
	ErrRiskLimit = errors.New("strategy: risk limit")
)

// Shadow 是单套配置的状态机。每个 (symbol, epoch) 槽位经历
// 无仓 → 持仓（ExecuteTrade）→ 已结算（ResolvePosition，终态，仓位删除）。
// 各 Shadow 之间不共享任何可变状态：余额与仓位都是自己的。
type Shadow struct {
	cfg Config

	mu        sync.Mutex
	balance   decimal.Decimal
	positions map[Key]Position

	// 已结算历史的累计量；Performance() 由此按需推导。
	trades, wins, losses int
	totalPnL             decimal.Decimal
}

func NewShadow(cfg Config) (*Shadow, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Shadow{
		cfg:       cfg,
		balance:   decimal.NewFromFloat(cfg.InitialBalance),
		positions: make(map[Key]Position),
	}, nil
}

func (s *Shadow) Name() string   { return s.cfg.Name }
func (s *Shadow) Config() Config { return s.cfg }

func (s *Shadow) Balance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, _ := s.balance.Float64()
	return f
}

// Position 返回指定槽位的持仓副本。
func (s *Shadow) Position(symbol string, epoch int64) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[Key{Symbol: symbol, Epoch: epoch}]
	return p, ok
}

// OpenPositions 返回全部未结仓位（按 epoch、symbol 排序的副本）。
func (s *Shadow) OpenPositions() []Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Epoch != out[j].Epoch {
			return out[i].Epoch < out[j].Epoch
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// PlanTrade 做只读的风控校验与头寸计算，不改任何状态。
// 编排层先 Plan、落库成功后再 Open，保证内存里不会出现
// journal 里没有对应 trade 行的“幽灵仓位”。
func (s *Shadow) PlanTrade(dec decision.TradeDecision, entryPrice float64) (Position, error) {
	if !dec.ShouldTrade || !dec.Direction.Directional() {
		return Position{}, ErrNotTradable
	}
	if entryPrice <= 0 || entryPrice >= 1 {
		return Position{}, fmt.Errorf("%w: entry price %.4f outside (0,1)", ErrRiskLimit, entryPrice)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key{Symbol: dec.Symbol, Epoch: dec.Epoch}
	if _, exists := s.positions[key]; exists {
		return Position{}, ErrDuplicatePosition
	}
	if s.cfg.MaxOpenPositions > 0 && len(s.positions) >= s.cfg.MaxOpenPositions {
		return Position{}, fmt.Errorf("%w: %d open positions at limit", ErrRiskLimit, len(s.positions))
	}

	size := decimal.NewFromFloat(s.cfg.TradeSizeUSD)
	if s.cfg.MaxPositionPct > 0 {
		limit := s.balance.Mul(decimal.NewFromFloat(s.cfg.MaxPositionPct))
		if size.GreaterThan(limit) {
			size = limit.Round(2)
		}
	}
	if size.LessThanOrEqual(decimal.Zero) {
		return Position{}, fmt.Errorf("%w: computed size is zero", ErrRiskLimit)
	}
	if size.GreaterThan(s.balance) {
		return Position{}, fmt.Errorf("%w: size %s > balance %s", ErrInsufficientBalance, size, s.balance)
	}

	sizeF, _ := size.Float64()
	return Position{
		Strategy:      s.cfg.Name,
		Symbol:        dec.Symbol,
		Epoch:         dec.Epoch,
		Direction:     dec.Direction,
		EntryPrice:    entryPrice,
		Size:          sizeF,
		Shares:        shares(sizeF, entryPrice),
		Confidence:    dec.Confidence,
		WeightedScore: dec.WeightedScore,
		OpenedAt:      dec.Timestamp,
		DecisionID:    dec.ID,
	}, nil
}

// Open 落位一笔已规划好的仓位：扣减余额、登记持仓。
func (s *Shadow) Open(pos Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pos.key()
	if _, exists := s.positions[key]; exists {
		return ErrDuplicatePosition
	}
	size := decimal.NewFromFloat(pos.Size)
	if size.GreaterThan(s.balance) {
		return fmt.Errorf("%w: size %s > balance %s", ErrInsufficientBalance, size, s.balance)
	}
	s.balance = s.balance.Sub(size)
	s.positions[key] = pos
	return nil
}

// ExecuteTrade = PlanTrade + Open，供非编排路径（含测试）直接使用。
func (s *Shadow) ExecuteTrade(dec decision.TradeDecision, entryPrice float64) (Position, error) {
	pos, err := s.PlanTrade(dec, entryPrice)
	if err != nil {
		return Position{}, err
	}
	if err := s.Open(pos); err != nil {
		return Position{}, err
	}
	return pos, nil
}

// ResolvePosition 对持仓结算：回补 payout、更新累计并删除仓位。
// 幂等：槽位不存在时返回 nil（不是错误），余额只会动一次。
func (s *Shadow) ResolvePosition(symbol string, epoch int64, actual vote.Direction) *Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Key{Symbol: symbol, Epoch: epoch}
	pos, ok := s.positions[key]
	if !ok {
		return nil
	}
	res := Settle(pos, actual)
	s.balance = s.balance.Add(decimal.NewFromFloat(res.Payout))
	s.trades++
	if res.Won {
		s.wins++
	} else {
		s.losses++
	}
	s.totalPnL = s.totalPnL.Add(decimal.NewFromFloat(res.PnL))
	delete(s.positions, key)
	return &res
}

// Restore 在崩溃恢复时重建一笔未结仓位：登记并扣一次余额。
// 与 Open 不同，它跳过风控校验——这笔钱在崩溃前已经投出去了。
func (s *Shadow) Restore(pos Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pos.key()
	if _, exists := s.positions[key]; exists {
		return ErrDuplicatePosition
	}
	s.balance = s.balance.Sub(decimal.NewFromFloat(pos.Size))
	s.positions[key] = pos
	return nil
}

// RestoreStats 用 journal 里的已结算历史重置累计量与余额基线：
// balance = initial_balance + totalPnL（未结仓位随后由 Restore 逐笔扣减）。
func (s *Shadow) RestoreStats(trades, wins, losses int, totalPnL float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = trades
	s.wins = wins
	s.losses = losses
	s.totalPnL = decimal.NewFromFloat(totalPnL)
	s.balance = decimal.NewFromFloat(s.cfg.InitialBalance).Add(s.totalPnL)
}

// Snapshot 是推导出的绩效汇总；journal 的 performance 表只存周期性快照，
// 这里的值始终现算。
type Snapshot struct {
	Strategy    string  `json:"strategy"`
	Balance     float64 `json:"balance"`
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	TotalPnL    float64 `json:"total_pnl"`
	ROI         float64 `json:"roi"`
	OpenCount   int     `json:"open_count"`
	IsLive      bool    `json:"is_live"`
}

// Performance 按需从历史推导绩效，不依赖任何缓存字段。
func (s *Shadow) Performance() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, _ := s.balance.Float64()
	pnl, _ := s.totalPnL.Float64()
	snap := Snapshot{
		Strategy:    s.cfg.Name,
		Balance:     balance,
		TotalTrades: s.trades,
		Wins:        s.wins,
		Losses:      s.losses,
		TotalPnL:    pnl,
		OpenCount:   len(s.positions),
		IsLive:      s.cfg.IsLive,
	}
	if s.trades > 0 {
		snap.WinRate = float64(s.wins) / float64(s.trades)
	}
	if s.cfg.InitialBalance > 0 {
		snap.ROI = pnl / s.cfg.InitialBalance
	}
	return snap
}
