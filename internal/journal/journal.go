package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quorum/internal/decision"
	"quorum/internal/strategy"
	"quorum/internal/vote"

	"gorm.io/datatypes"
	sqlitedriver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Journal 是只追加的交易流水账，基于 Gorm + SQLite。
// 崩溃恢复、报表、复盘全部以它为唯一事实来源。
type Journal struct {
	db *gorm.DB
}

// Open 打开（必要时创建）journal 数据库并迁移表结构。
func Open(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: 数据库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlitedriver.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&strategyModel{},
		&decisionModel{},
		&agentVoteModel{},
		&tradeModel{},
		&outcomeModel{},
		&performanceModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP reads
	// while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Journal{db: db}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB exposes the underlying *sql.DB for shared connections.
func (j *Journal) SQLDB() (*sql.DB, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal 未初始化")
	}
	return j.db.DB()
}

// Transaction 在单个 SQLite 事务内执行 fn。fn 收到的 Journal 绑定事务
// 连接，fn 返回 error 则整体回滚。
func (j *Journal) Transaction(ctx context.Context, fn func(tx *Journal) error) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal 未初始化")
	}
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Journal{db: tx})
	})
}

// --------------------- strategies -------------------------

// UpsertStrategy 注册策略配置。按 name 冲突时更新配置快照，
// 保留 created_at。
func (j *Journal) UpsertStrategy(ctx context.Context, cfg strategy.Config) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal 未初始化")
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化策略配置失败: %w", err)
	}
	now := time.Now().Unix()
	model := strategyModel{
		Name:        cfg.Name,
		Description: cfg.Description,
		ConfigJSON:  datatypes.JSON(raw),
		IsLive:      cfg.IsLive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return j.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"description": gorm.Expr("excluded.description"),
				"config_json": gorm.Expr("excluded.config_json"),
				"is_live":     gorm.Expr("excluded.is_live"),
				"updated_at":  gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(&model).Error
}

// --------------------- decisions / agent_votes -------------------------

// InsertDecision 追加一条决策记录。balanceBefore 记录评估时刻的
// 账户余额，details_json 存完整聚合结果，供报表端用 gjson 读取。
func (j *Journal) InsertDecision(ctx context.Context, dec decision.TradeDecision, balanceBefore float64) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal 未初始化")
	}
	details, err := json.Marshal(dec.Aggregate)
	if err != nil {
		return fmt.Errorf("序列化聚合结果失败: %w", err)
	}
	model := decisionModel{
		ID:            dec.ID,
		Strategy:      dec.Strategy,
		Symbol:        strings.ToUpper(strings.TrimSpace(dec.Symbol)),
		Epoch:         dec.Epoch,
		ShouldTrade:   dec.ShouldTrade,
		Direction:     string(dec.Direction),
		Confidence:    dec.Confidence,
		WeightedScore: dec.WeightedScore,
		Vetoed:        dec.Vetoed,
		VetoReasons:   strings.Join(dec.VetoReasons, "; "),
		Reason:        dec.Reason,
		BalanceBefore: balanceBefore,
		DetailsJSON:   datatypes.JSON(details),
		CreatedAt:     dec.Timestamp.UnixMilli(),
	}
	return j.db.WithContext(ctx).Create(&model).Error
}

// InsertAgentVotes 批量追加一轮收集到的全部票（含 skip），
// 审计链需要能看到谁弃权了。
func (j *Journal) InsertAgentVotes(ctx context.Context, decisionID string, votes []vote.Vote) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal 未初始化")
	}
	if len(votes) == 0 {
		return nil
	}
	models := make([]agentVoteModel, 0, len(votes))
	for _, v := range votes {
		var details datatypes.JSON
		if len(v.Details) > 0 {
			if raw, err := json.Marshal(v.Details); err == nil {
				details = datatypes.JSON(raw)
			}
		}
		models = append(models, agentVoteModel{
			DecisionID:  decisionID,
			Agent:       v.AgentName,
			Direction:   string(v.Direction),
			Confidence:  v.Confidence,
			Quality:     v.Quality,
			Reasoning:   v.Reasoning,
			DetailsJSON: details,
			CreatedAt:   v.Timestamp.UnixMilli(),
		})
	}
	return j.db.WithContext(ctx).Create(&models).Error
}

// --------------------- trades / outcomes -------------------------

// InsertTrade 追加开仓记录并返回自增 trade_id。
// 先落库再动内存仓位，保证崩溃后可重建。
func (j *Journal) InsertTrade(ctx context.Context, pos strategy.Position) (int64, error) {
	if j == nil || j.db == nil {
		return 0, fmt.Errorf("journal 未初始化")
	}
	model := tradeModel{
		Strategy:      pos.Strategy,
		Symbol:        strings.ToUpper(strings.TrimSpace(pos.Symbol)),
		Epoch:         pos.Epoch,
		Direction:     string(pos.Direction),
		EntryPrice:    pos.EntryPrice,
		Size:          pos.Size,
		Shares:        pos.Shares,
		Confidence:    pos.Confidence,
		WeightedScore: pos.WeightedScore,
		DecisionID:    pos.DecisionID,
		OpenedAt:      pos.OpenedAt.UnixMilli(),
	}
	if err := j.db.WithContext(ctx).Create(&model).Error; err != nil {
		return 0, err
	}
	return model.ID, nil
}

// HasOutcome 查询某 (strategy, symbol, epoch) 是否已结算。
func (j *Journal) HasOutcome(ctx context.Context, strategyName, symbol string, epoch int64) (bool, error) {
	if j == nil || j.db == nil {
		return false, fmt.Errorf("journal 未初始化")
	}
	var count int64
	err := j.db.WithContext(ctx).Model(&outcomeModel{}).
		Where("strategy = ? AND symbol = ? AND epoch = ?",
			strategyName, strings.ToUpper(strings.TrimSpace(symbol)), epoch).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ErrOutcomeExists 表示该笔交易已经结算过。
var ErrOutcomeExists = errors.New("journal: outcome 已存在")

// InsertOutcome 追加结算记录。重复结算（无论按 trade_id 还是按
// (strategy, symbol, epoch)）会撞唯一索引，归一化为 ErrOutcomeExists。
func (j *Journal) InsertOutcome(ctx context.Context, res strategy.Resolution) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal 未初始化")
	}
	pos := res.Position
	model := outcomeModel{
		TradeID:    pos.TradeID,
		Strategy:   pos.Strategy,
		Symbol:     strings.ToUpper(strings.TrimSpace(pos.Symbol)),
		Epoch:      pos.Epoch,
		Predicted:  string(pos.Direction),
		Actual:     string(res.Actual),
		Won:        res.Won,
		Payout:     res.Payout,
		PnL:        res.PnL,
		ResolvedAt: time.Now().UnixMilli(),
	}
	if err := j.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrOutcomeExists
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}

// --------------------- performance -------------------------

// AppendPerformance 追加一条绩效快照。
func (j *Journal) AppendPerformance(ctx context.Context, snap strategy.Snapshot) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal 未初始化")
	}
	model := performanceModel{
		Strategy:    snap.Strategy,
		Balance:     snap.Balance,
		TotalTrades: snap.TotalTrades,
		Wins:        snap.Wins,
		Losses:      snap.Losses,
		WinRate:     snap.WinRate,
		TotalPnL:    snap.TotalPnL,
		ROI:         snap.ROI,
		OpenCount:   snap.OpenCount,
		SnapshotAt:  time.Now().UnixMilli(),
	}
	return j.db.WithContext(ctx).Create(&model).Error
}

// --------------------- 崩溃恢复 -------------------------

// Recovery 是一次恢复扫描的结果：可继续跟踪的持仓 + 超出安全窗口
// 被放弃的交易数。
type Recovery struct {
	Positions []strategy.Position
	Abandoned int
}

// UnresolvedTrades 找出有 trades 行但没有 outcomes 行的交易。
// epoch 结束时间仍在 horizon 内的重建为持仓；更老的无法再从行情
// 接口拿到结果，计入 Abandoned。
func (j *Journal) UnresolvedTrades(ctx context.Context, horizon time.Duration, now time.Time) (Recovery, error) {
	if j == nil || j.db == nil {
		return Recovery{}, fmt.Errorf("journal 未初始化")
	}
	var models []tradeModel
	err := j.db.WithContext(ctx).
		Where("id NOT IN (?)", j.db.Model(&outcomeModel{}).Select("trade_id")).
		Order("opened_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return Recovery{}, err
	}
	var rec Recovery
	for _, m := range models {
		epochEnd := time.Unix((m.Epoch+1)*900, 0)
		if now.Sub(epochEnd) > horizon {
			rec.Abandoned++
			continue
		}
		rec.Positions = append(rec.Positions, strategy.Position{
			Strategy:      m.Strategy,
			Symbol:        m.Symbol,
			Epoch:         m.Epoch,
			Direction:     vote.Direction(m.Direction),
			EntryPrice:    m.EntryPrice,
			Size:          m.Size,
			Shares:        m.Shares,
			Confidence:    m.Confidence,
			WeightedScore: m.WeightedScore,
			OpenedAt:      time.UnixMilli(m.OpenedAt),
			DecisionID:    m.DecisionID,
			TradeID:       m.ID,
		})
	}
	return rec, nil
}

// Stats 是从 outcomes 汇总出的已结算战绩。
type Stats struct {
	Trades   int
	Wins     int
	Losses   int
	TotalPnL float64
}

// StrategyStats 汇总某策略全部已结算交易。恢复时据此还原
// balance = initial + total_pnl − 未结持仓占用。
func (j *Journal) StrategyStats(ctx context.Context, strategyName string) (Stats, error) {
	if j == nil || j.db == nil {
		return Stats{}, fmt.Errorf("journal 未初始化")
	}
	var row struct {
		Trades   int
		Wins     int
		TotalPnL float64
	}
	err := j.db.WithContext(ctx).Model(&outcomeModel{}).
		Select("COUNT(*) AS trades, SUM(CASE WHEN won THEN 1 ELSE 0 END) AS wins, COALESCE(SUM(pnl), 0) AS total_pn_l").
		Where("strategy = ?", strategyName).
		Scan(&row).Error
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Trades:   row.Trades,
		Wins:     row.Wins,
		Losses:   row.Trades - row.Wins,
		TotalPnL: row.TotalPnL,
	}, nil
}
