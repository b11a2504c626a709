package decision

import (
	"testing"

	"quorum/internal/vote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustVote(t *testing.T, agent string, dir vote.Direction, conf, quality float64) vote.Vote {
	t.Helper()
	v, err := vote.New(agent, dir, conf, quality, "test")
	require.NoError(t, err)
	return v
}

func TestAggregateExcludesSkips(t *testing.T) {
	votes := []vote.Vote{
		mustVote(t, "a", vote.Up, 0.8, 1),
		mustVote(t, "b", vote.Up, 0.7, 1),
		mustVote(t, "c", vote.Down, 0.6, 1),
		vote.SkipVote("d", "no data"),
		vote.SkipVote("e", "timeout"),
	}
	agg := Aggregate(votes, nil, 0)
	assert.False(t, agg.NoConsensus)
	assert.Equal(t, 3, agg.TotalAgents, "skip 票不计入 total_agents")
	assert.Equal(t, 2, agg.UpVotes)
	assert.Equal(t, 1, agg.DownVotes)
	assert.NotContains(t, agg.ParticipatingAgents, "d")
	assert.InDelta(t, 2.0/3.0, agg.AgreementRate, 1e-9)
}

func TestAggregateAllSkipsIsNeutralNoConsensus(t *testing.T) {
	votes := []vote.Vote{
		vote.SkipVote("a", "no data"),
		vote.SkipVote("b", "no data"),
	}
	agg := Aggregate(votes, nil, 0)
	assert.True(t, agg.NoConsensus)
	assert.Equal(t, vote.Neutral, agg.Direction)
	assert.Zero(t, agg.TotalAgents)
}

func TestAggregateQuorum(t *testing.T) {
	votes := []vote.Vote{
		mustVote(t, "a", vote.Up, 0.9, 1),
		vote.SkipVote("b", "no data"),
		vote.SkipVote("c", "no data"),
	}
	agg := Aggregate(votes, nil, 2)
	assert.True(t, agg.NoConsensus, "弃权后剩 1 票，不够 min_agents=2")

	votes = append(votes, mustVote(t, "d", vote.Up, 0.8, 1))
	agg = Aggregate(votes, nil, 2)
	assert.False(t, agg.NoConsensus)
	assert.Equal(t, vote.Up, agg.Direction)
}

func TestAggregateNeutralCountsTowardQuorum(t *testing.T) {
	votes := []vote.Vote{
		mustVote(t, "a", vote.Up, 0.9, 1),
		mustVote(t, "b", vote.Neutral, 0.3, 1),
	}
	agg := Aggregate(votes, nil, 2)
	assert.False(t, agg.NoConsensus, "neutral 是参与票，计入法定人数")
	assert.Equal(t, 2, agg.TotalAgents)
	assert.Equal(t, 1, agg.NeutralVotes)
	assert.InDelta(t, 0.5, agg.AgreementRate, 1e-9)
}

func TestAggregateWeightedScoreNormalization(t *testing.T) {
	votes := []vote.Vote{
		mustVote(t, "a", vote.Up, 0.8, 1),
		mustVote(t, "b", vote.Up, 0.6, 1),
	}
	agg := Aggregate(votes, nil, 0)
	// (0.8 + 0.6) / 2
	assert.InDelta(t, 0.7, agg.WeightedScore, 1e-9)

	// 双倍权重的 a：(0.8×2 + 0.6×1) / 3
	agg = Aggregate(votes, map[string]float64{"a": 2}, 0)
	assert.InDelta(t, (0.8*2+0.6)/3, agg.WeightedScore, 1e-9)
}

func TestAggregateMajorityDirection(t *testing.T) {
	votes := []vote.Vote{
		mustVote(t, "a", vote.Down, 0.6, 1),
		mustVote(t, "b", vote.Down, 0.5, 1),
		mustVote(t, "c", vote.Up, 0.99, 1),
	}
	agg := Aggregate(votes, nil, 0)
	assert.Equal(t, vote.Down, agg.Direction, "方向看计票多数，不看单票置信度")
}

func TestAggregateTieBreakByWeightedScore(t *testing.T) {
	votes := []vote.Vote{
		mustVote(t, "a", vote.Up, 0.9, 1),
		mustVote(t, "b", vote.Up, 0.9, 1),
		mustVote(t, "c", vote.Down, 0.5, 1),
		mustVote(t, "d", vote.Down, 0.5, 1),
	}
	agg := Aggregate(votes, nil, 0)
	assert.Equal(t, vote.Up, agg.Direction, "2:2 平票时加权得分高的一边胜出")

	// 完全对称的平票没有方向
	votes = []vote.Vote{
		mustVote(t, "a", vote.Up, 0.5, 1),
		mustVote(t, "b", vote.Down, 0.5, 1),
	}
	agg = Aggregate(votes, nil, 0)
	assert.Equal(t, vote.Neutral, agg.Direction)
}

func TestAggregateQualityDiscountsScore(t *testing.T) {
	strong := Aggregate([]vote.Vote{mustVote(t, "a", vote.Up, 0.8, 1.0)}, nil, 0)
	weak := Aggregate([]vote.Vote{mustVote(t, "a", vote.Up, 0.8, 0.5)}, nil, 0)
	assert.Greater(t, strong.WeightedScore, weak.WeightedScore)
	assert.Equal(t, strong.Confidence, weak.Confidence, "quality 只折价得分，不改置信度")
}

func TestAggregateIsPure(t *testing.T) {
	votes := []vote.Vote{
		mustVote(t, "a", vote.Up, 0.8, 1),
		mustVote(t, "b", vote.Down, 0.6, 1),
	}
	first := Aggregate(votes, nil, 0)
	second := Aggregate(votes, nil, 0)
	assert.Equal(t, first, second)
}
