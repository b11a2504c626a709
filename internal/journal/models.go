package journal

import "gorm.io/datatypes"

// 六张表构成完整的审计链：strategies -> decisions -> agent_votes，
// decisions -> trades -> outcomes，performance 为周期性快照。
// 所有表只追加，不做 UPDATE（strategies 的 upsert 除外）。

type strategyModel struct {
	ID          int64          `gorm:"column:id;primaryKey"`
	Name        string         `gorm:"column:name;uniqueIndex"`
	Description string         `gorm:"column:description"`
	ConfigJSON  datatypes.JSON `gorm:"column:config_json"`
	IsLive      bool           `gorm:"column:is_live"`
	CreatedAt   int64          `gorm:"column:created_at"`
	UpdatedAt   int64          `gorm:"column:updated_at"`
}

func (strategyModel) TableName() string { return "strategies" }

type decisionModel struct {
	ID            string         `gorm:"column:id;primaryKey"`
	Strategy      string         `gorm:"column:strategy;index:idx_decisions_lookup"`
	Symbol        string         `gorm:"column:symbol;index:idx_decisions_lookup"`
	Epoch         int64          `gorm:"column:epoch;index:idx_decisions_lookup"`
	ShouldTrade   bool           `gorm:"column:should_trade"`
	Direction     string         `gorm:"column:direction"`
	Confidence    float64        `gorm:"column:confidence"`
	WeightedScore float64        `gorm:"column:weighted_score"`
	Vetoed        bool           `gorm:"column:vetoed"`
	VetoReasons   string         `gorm:"column:veto_reasons"`
	Reason        string         `gorm:"column:reason"`
	BalanceBefore float64        `gorm:"column:balance_before"`
	DetailsJSON   datatypes.JSON `gorm:"column:details_json"`
	CreatedAt     int64          `gorm:"column:created_at;index"`
}

func (decisionModel) TableName() string { return "decisions" }

type agentVoteModel struct {
	ID          int64          `gorm:"column:id;primaryKey"`
	DecisionID  string         `gorm:"column:decision_id;index"`
	Agent       string         `gorm:"column:agent;index"`
	Direction   string         `gorm:"column:direction"`
	Confidence  float64        `gorm:"column:confidence"`
	Quality     float64        `gorm:"column:quality"`
	Reasoning   string         `gorm:"column:reasoning"`
	DetailsJSON datatypes.JSON `gorm:"column:details_json"`
	CreatedAt   int64          `gorm:"column:created_at"`
}

func (agentVoteModel) TableName() string { return "agent_votes" }

type tradeModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	Strategy      string  `gorm:"column:strategy;index:idx_trades_lookup"`
	Symbol        string  `gorm:"column:symbol;index:idx_trades_lookup"`
	Epoch         int64   `gorm:"column:epoch;index:idx_trades_lookup"`
	Direction     string  `gorm:"column:direction"`
	EntryPrice    float64 `gorm:"column:entry_price"`
	Size          float64 `gorm:"column:size"`
	Shares        float64 `gorm:"column:shares"`
	Confidence    float64 `gorm:"column:confidence"`
	WeightedScore float64 `gorm:"column:weighted_score"`
	DecisionID    string  `gorm:"column:decision_id;index"`
	OpenedAt      int64   `gorm:"column:opened_at;index"`
}

func (tradeModel) TableName() string { return "trades" }

// outcomeModel 的两个唯一索引是 at-most-once 结算的最后防线：
// 即使上层幂等检查因竞态失效，重复写入也会撞 UNIQUE 约束。
type outcomeModel struct {
	ID         int64   `gorm:"column:id;primaryKey"`
	TradeID    int64   `gorm:"column:trade_id;uniqueIndex"`
	Strategy   string  `gorm:"column:strategy;uniqueIndex:idx_outcomes_key"`
	Symbol     string  `gorm:"column:symbol;uniqueIndex:idx_outcomes_key"`
	Epoch      int64   `gorm:"column:epoch;uniqueIndex:idx_outcomes_key"`
	Predicted  string  `gorm:"column:predicted_direction"`
	Actual     string  `gorm:"column:actual"`
	Won        bool    `gorm:"column:won"`
	Payout     float64 `gorm:"column:payout"`
	PnL        float64 `gorm:"column:pnl"`
	ResolvedAt int64   `gorm:"column:resolved_at;index"`
}

func (outcomeModel) TableName() string { return "outcomes" }

type performanceModel struct {
	ID          int64   `gorm:"column:id;primaryKey"`
	Strategy    string  `gorm:"column:strategy;index"`
	Balance     float64 `gorm:"column:balance"`
	TotalTrades int     `gorm:"column:total_trades"`
	Wins        int     `gorm:"column:wins"`
	Losses      int     `gorm:"column:losses"`
	WinRate     float64 `gorm:"column:win_rate"`
	TotalPnL    float64 `gorm:"column:total_pnl"`
	ROI         float64 `gorm:"column:roi"`
	OpenCount   int     `gorm:"column:open_count"`
	SnapshotAt  int64   `gorm:"column:snapshot_at;index"`
}

func (performanceModel) TableName() string { return "performance" }
