package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"quorum/internal/decision"
	"quorum/internal/strategy"
	"quorum/internal/vote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func testPosition(strategyName string, epoch int64) strategy.Position {
	return strategy.Position{
		Strategy:      strategyName,
		Symbol:        "BTCUSDT",
		Epoch:         epoch,
		Direction:     vote.Up,
		EntryPrice:    0.5,
		Size:          10,
		Shares:        20,
		Confidence:    0.7,
		WeightedScore: 0.4,
		OpenedAt:      time.Unix(epoch*900, 0),
		DecisionID:    "dec-1",
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("   ")
	require.Error(t, err)
}

func TestUpsertStrategyIsIdempotent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	cfg := strategy.Config{Name: "baseline", Description: "v1", InitialBalance: 1000}
	require.NoError(t, j.UpsertStrategy(ctx, cfg))

	cfg.Description = "v2"
	require.NoError(t, j.UpsertStrategy(ctx, cfg), "按 name 冲突走更新而不是报错")

	var count int64
	require.NoError(t, j.db.Model(&strategyModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var row strategyModel
	require.NoError(t, j.db.Where("name = ?", "baseline").First(&row).Error)
	assert.Equal(t, "v2", row.Description)
}

func TestInsertDecisionAndVotes(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	dec := decision.TradeDecision{
		ID:          "dec-42",
		Strategy:    "baseline",
		Symbol:      "btcusdt",
		Epoch:       100,
		ShouldTrade: true,
		Direction:   vote.Up,
		Confidence:  0.7,
		Timestamp:   time.Now(),
	}
	require.NoError(t, j.InsertDecision(ctx, dec, 1000))

	v, err := vote.New("momentum", vote.Up, 0.8, 0.9, "RSI 偏强")
	require.NoError(t, err)
	skip := vote.SkipVote("regime", "仅提供市场状态")
	require.NoError(t, j.InsertAgentVotes(ctx, dec.ID, []vote.Vote{v, skip}))

	var row decisionModel
	require.NoError(t, j.db.First(&row, "id = ?", "dec-42").Error)
	assert.Equal(t, "BTCUSDT", row.Symbol, "symbol 统一大写")
	assert.Equal(t, 1000.0, row.BalanceBefore)

	var votes []agentVoteModel
	require.NoError(t, j.db.Where("decision_id = ?", "dec-42").Find(&votes).Error)
	assert.Len(t, votes, 2, "skip 票也要入账")
}

func TestUnresolvedTradesHonorsHorizon(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	now := time.Unix(2000*900, 0)
	recent := testPosition("baseline", 1999)  // epoch 刚结束
	stale := testPosition("baseline", 1000)   // 远超窗口
	settled := testPosition("baseline", 1998) // 已有 outcome

	recentID, err := j.InsertTrade(ctx, recent)
	require.NoError(t, err)
	_, err = j.InsertTrade(ctx, stale)
	require.NoError(t, err)
	settledID, err := j.InsertTrade(ctx, settled)
	require.NoError(t, err)

	settled.TradeID = settledID
	require.NoError(t, j.InsertOutcome(ctx, strategy.Settle(settled, vote.Up)))

	rec, err := j.UnresolvedTrades(ctx, time.Hour, now)
	require.NoError(t, err)
	require.Len(t, rec.Positions, 1)
	assert.Equal(t, recentID, rec.Positions[0].TradeID)
	assert.Equal(t, int64(1999), rec.Positions[0].Epoch)
	assert.Equal(t, 1, rec.Abandoned)
}

func TestInsertOutcomeRejectsDuplicates(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	pos := testPosition("baseline", 100)
	id, err := j.InsertTrade(ctx, pos)
	require.NoError(t, err)
	pos.TradeID = id

	res := strategy.Settle(pos, vote.Up)
	require.NoError(t, j.InsertOutcome(ctx, res))
	assert.ErrorIs(t, j.InsertOutcome(ctx, res), ErrOutcomeExists)

	// 换 trade_id 但同 (strategy, symbol, epoch) 也要拦住
	res.Position.TradeID = id + 1000
	assert.ErrorIs(t, j.InsertOutcome(ctx, res), ErrOutcomeExists)

	ok, err := j.HasOutcome(ctx, "baseline", "BTCUSDT", 100)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStrategyStats(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i, actual := range []vote.Direction{vote.Up, vote.Up, vote.Down} {
		pos := testPosition("baseline", int64(100+i))
		id, err := j.InsertTrade(ctx, pos)
		require.NoError(t, err)
		pos.TradeID = id
		require.NoError(t, j.InsertOutcome(ctx, strategy.Settle(pos, actual)))
	}
	// 别的策略不计入
	other := testPosition("aggressive", 100)
	id, err := j.InsertTrade(ctx, other)
	require.NoError(t, err)
	other.TradeID = id
	require.NoError(t, j.InsertOutcome(ctx, strategy.Settle(other, vote.Up)))

	stats, err := j.StrategyStats(ctx, "baseline")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Trades)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	// 2 胜各 +10，1 负 −10
	assert.InDelta(t, 10.0, stats.TotalPnL, 1e-9)
}

func TestStrategyStatsEmpty(t *testing.T) {
	j := openTestJournal(t)
	stats, err := j.StrategyStats(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Zero(t, stats.Trades)
	assert.Zero(t, stats.TotalPnL)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	err := j.Transaction(ctx, func(tx *Journal) error {
		if _, err := tx.InsertTrade(ctx, testPosition("baseline", 100)); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	rec, err := j.UnresolvedTrades(ctx, time.Hour, time.Unix(101*900, 0))
	require.NoError(t, err)
	assert.Empty(t, rec.Positions)
	assert.Zero(t, rec.Abandoned)
}
