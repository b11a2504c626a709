package report

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	_ "modernc.org/sqlite"
)

// Store 是 journal 数据库的只读查询端。与写入端隔离：
// 以 mode=ro 打开，绝不迁移表结构，绝不写入。
type Store struct {
	db   *sql.DB
	path string
}

// NewStore 以只读方式打开 journal 数据库。文件不存在直接报错，
// 不会悄悄建一个空库出来。
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("report: 数据库路径不能为空")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("report: 无法访问数据库 %s: %w", path, err)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db, path: path}, nil
}

// Close 关闭底层 DB。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// StrategyPerformance 是 compare 视图的一行。
type StrategyPerformance struct {
	Strategy    string
	IsLive      bool
	Balance     float64
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64
	TotalPnL    float64
	ROI         float64
	OpenCount   int
}

// ComparePerformance 汇总所有已注册策略的战绩，按 total_pnl 降序。
// balance 与 roi 从 outcomes 现算，不信 performance 快照表。
func (s *Store) ComparePerformance(ctx context.Context) ([]StrategyPerformance, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("report store 未初始化")
	}
	const q = `
SELECT s.name,
       s.is_live,
       s.config_json,
       COALESCE(o.trades, 0),
       COALESCE(o.wins, 0),
       COALESCE(o.pnl, 0),
       COALESCE(t.open_cnt, 0)
FROM strategies s
LEFT JOIN (
    SELECT strategy, COUNT(*) AS trades,
           SUM(CASE WHEN won THEN 1 ELSE 0 END) AS wins,
           SUM(pnl) AS pnl
    FROM outcomes GROUP BY strategy
) o ON o.strategy = s.name
LEFT JOIN (
    SELECT strategy, COUNT(*) AS open_cnt
    FROM trades
    WHERE id NOT IN (SELECT trade_id FROM outcomes)
    GROUP BY strategy
) t ON t.strategy = s.name
ORDER BY COALESCE(o.pnl, 0) DESC, s.name ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StrategyPerformance
	for rows.Next() {
		var (
			perf       StrategyPerformance
			isLive     int
			configJSON string
		)
		if err := rows.Scan(&perf.Strategy, &isLive, &configJSON,
			&perf.TotalTrades, &perf.Wins, &perf.TotalPnL, &perf.OpenCount); err != nil {
			return nil, err
		}
		perf.IsLive = isLive != 0
		perf.Losses = perf.TotalTrades - perf.Wins
		if perf.TotalTrades > 0 {
			perf.WinRate = float64(perf.Wins) / float64(perf.TotalTrades)
		}
		initial := gjson.Get(configJSON, "initial_balance").Float()
		if initial <= 0 {
			initial = 1000
		}
		perf.Balance = initial + perf.TotalPnL
		perf.ROI = perf.TotalPnL / initial
		out = append(out, perf)
	}
	return out, rows.Err()
}

// TradeRow 是某策略 details 视图里的一笔交易（含结算，若已结算）。
type TradeRow struct {
	TradeID    int64
	Symbol     string
	Epoch      int64
	Direction  string
	EntryPrice float64
	Size       float64
	Shares     float64
	Confidence float64
	OpenedAt   time.Time

	Resolved bool
	Actual   string
	Won      bool
	Payout   float64
	PnL      float64
}

// StrategyDetails 聚合单个策略的配置、战绩与近期交易。
type StrategyDetails struct {
	Performance StrategyPerformance
	Description string
	ConfigJSON  string
	Trades      []TradeRow
}

// Details 返回单个策略的完整视图。策略不存在时报错。
func (s *Store) Details(ctx context.Context, name string, limit int) (StrategyDetails, error) {
	if s == nil || s.db == nil {
		return StrategyDetails{}, fmt.Errorf("report store 未初始化")
	}
	name = strings.TrimSpace(name)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	all, err := s.ComparePerformance(ctx)
	if err != nil {
		return StrategyDetails{}, err
	}
	var det StrategyDetails
	found := false
	for _, perf := range all {
		if perf.Strategy == name {
			det.Performance = perf
			found = true
			break
		}
	}
	if !found {
		return StrategyDetails{}, fmt.Errorf("未知策略: %s", name)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT description, config_json FROM strategies WHERE name = ?`, name).
		Scan(&det.Description, &det.ConfigJSON)
	if err != nil {
		return StrategyDetails{}, err
	}
	const q = `
SELECT t.id, t.symbol, t.epoch, t.direction, t.entry_price, t.size, t.shares,
       t.confidence, t.opened_at,
       o.id IS NOT NULL, COALESCE(o.actual, ''), COALESCE(o.won, 0),
       COALESCE(o.payout, 0), COALESCE(o.pnl, 0)
FROM trades t
LEFT JOIN outcomes o ON o.trade_id = t.id
WHERE t.strategy = ?
ORDER BY t.opened_at DESC, t.id DESC
LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, name, limit)
	if err != nil {
		return StrategyDetails{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			row              TradeRow
			openedAt         int64
			resolved, wonInt int
		)
		if err := rows.Scan(&row.TradeID, &row.Symbol, &row.Epoch, &row.Direction,
			&row.EntryPrice, &row.Size, &row.Shares, &row.Confidence, &openedAt,
			&resolved, &row.Actual, &wonInt, &row.Payout, &row.PnL); err != nil {
			return StrategyDetails{}, err
		}
		row.OpenedAt = time.UnixMilli(openedAt)
		row.Resolved = resolved != 0
		row.Won = wonInt != 0
		det.Trades = append(det.Trades, row)
	}
	return det, rows.Err()
}

// DecisionRow 是 decisions 视图的一行。投票分布从 details_json 抽取。
type DecisionRow struct {
	ID            string
	Strategy      string
	Symbol        string
	Epoch         int64
	ShouldTrade   bool
	Direction     string
	Confidence    float64
	WeightedScore float64
	Vetoed        bool
	Reason        string
	UpVotes       int64
	DownVotes     int64
	NeutralVotes  int64
	AgreementRate float64
	CreatedAt     time.Time
}

// DecisionQuery 筛选 decisions 视图。
type DecisionQuery struct {
	Strategy string
	Symbol   string
	Epoch    int64
	Limit    int
}

// Decisions 返回决策历史，最新在前。
func (s *Store) Decisions(ctx context.Context, q DecisionQuery) ([]DecisionRow, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("report store 未初始化")
	}
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 50
	}
	var (
		conds []string
		args  []any
	)
	if v := strings.TrimSpace(q.Strategy); v != "" {
		conds = append(conds, "strategy = ?")
		args = append(args, v)
	}
	if v := strings.ToUpper(strings.TrimSpace(q.Symbol)); v != "" {
		conds = append(conds, "symbol = ?")
		args = append(args, v)
	}
	if q.Epoch > 0 {
		conds = append(conds, "epoch = ?")
		args = append(args, q.Epoch)
	}
	query := `
SELECT id, strategy, symbol, epoch, should_trade, direction, confidence,
       weighted_score, vetoed, reason, COALESCE(details_json, '{}'), created_at
FROM decisions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, q.Limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DecisionRow
	for rows.Next() {
		var (
			row                  DecisionRow
			shouldTrade, vetoed  int
			details              string
			createdAt            int64
		)
		if err := rows.Scan(&row.ID, &row.Strategy, &row.Symbol, &row.Epoch,
			&shouldTrade, &row.Direction, &row.Confidence, &row.WeightedScore,
			&vetoed, &row.Reason, &details, &createdAt); err != nil {
			return nil, err
		}
		row.ShouldTrade = shouldTrade != 0
		row.Vetoed = vetoed != 0
		row.CreatedAt = time.UnixMilli(createdAt)
		row.UpVotes = gjson.Get(details, "up_votes").Int()
		row.DownVotes = gjson.Get(details, "down_votes").Int()
		row.NeutralVotes = gjson.Get(details, "neutral_votes").Int()
		row.AgreementRate = gjson.Get(details, "agreement_rate").Float()
		out = append(out, row)
	}
	return out, rows.Err()
}

// AgentVoteRow 是一条历史投票。
type AgentVoteRow struct {
	Agent      string
	Direction  string
	Confidence float64
	Quality    float64
	Reasoning  string
}

// VotesForDecision 返回某条决策收集到的全部票。
func (s *Store) VotesForDecision(ctx context.Context, decisionID string) ([]AgentVoteRow, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("report store 未初始化")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent, direction, confidence, quality, reasoning
		 FROM agent_votes WHERE decision_id = ? ORDER BY agent ASC`, decisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AgentVoteRow
	for rows.Next() {
		var row AgentVoteRow
		if err := rows.Scan(&row.Agent, &row.Direction, &row.Confidence,
			&row.Quality, &row.Reasoning); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
