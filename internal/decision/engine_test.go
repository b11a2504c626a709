package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"quorum/internal/market"
	"quorum/internal/vote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVoter struct {
	name  string
	dir   vote.Direction
	conf  float64
	err   error
	panic bool
	delay time.Duration
	extra map[string]any
}

func (s stubVoter) Name() string { return s.name }

func (s stubVoter) Analyze(ctx context.Context, symbol string, epoch int64, mkt market.Context) (vote.Vote, error) {
	if s.panic {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return vote.Vote{}, ctx.Err()
		}
	}
	if s.err != nil {
		return vote.Vote{}, s.err
	}
	if s.dir == vote.Skip {
		return vote.SkipVote(s.name, "stub skip").WithDetails(s.extra), nil
	}
	v, err := vote.New(s.name, s.dir, s.conf, 1, "stub")
	if err != nil {
		return vote.Vote{}, err
	}
	return v.WithDetails(s.extra), nil
}

type stubVetoer struct {
	name   string
	veto   bool
	reason string
	err    error
	delay  time.Duration
}

func (s stubVetoer) Name() string { return s.name }

func (s stubVetoer) CanVeto(ctx context.Context, symbol string, mkt market.Context) (bool, string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return false, "", ctx.Err()
		}
	}
	return s.veto, s.reason, s.err
}

func defaultParams() Params {
	return Params{
		Strategy:           "test",
		ConsensusThreshold: 0.3,
		MinConfidence:      0.4,
		MinAgents:          2,
		VetoEnabled:        true,
	}
}

func TestDecideTradesOnConsensus(t *testing.T) {
	e := NewEngine(EngineParams{
		Voters: []vote.Voter{
			stubVoter{name: "a", dir: vote.Up, conf: 0.8},
			stubVoter{name: "b", dir: vote.Up, conf: 0.7},
		},
	})
	dec := e.Decide(context.Background(), "BTCUSDT", 100, market.Context{}, defaultParams())
	assert.True(t, dec.ShouldTrade)
	assert.Equal(t, vote.Up, dec.Direction)
	assert.NotEmpty(t, dec.ID)
	assert.NotEmpty(t, dec.Reason)
}

func TestVetoOverridesUnanimousConsensus(t *testing.T) {
	e := NewEngine(EngineParams{
		Voters: []vote.Voter{
			stubVoter{name: "a", dir: vote.Up, conf: 0.95},
			stubVoter{name: "b", dir: vote.Up, conf: 0.95},
			stubVoter{name: "c", dir: vote.Up, conf: 0.95},
		},
		Vetoers: []vote.Vetoer{
			stubVetoer{name: "guard", veto: true, reason: "volatility spike"},
		},
	})
	dec := e.Decide(context.Background(), "BTCUSDT", 100, market.Context{}, defaultParams())
	assert.False(t, dec.ShouldTrade, "否决无条件覆盖共识")
	assert.True(t, dec.Vetoed)
	assert.Contains(t, dec.Reason, "vetoed")
	assert.Contains(t, dec.VetoReasons[0], "volatility spike")
	// 聚合结果保持原样，审计时能看到"本来会交易"
	assert.Equal(t, vote.Up, dec.Direction)
}

func TestVetoDisabledByParams(t *testing.T) {
	e := NewEngine(EngineParams{
		Voters: []vote.Voter{
			stubVoter{name: "a", dir: vote.Up, conf: 0.9},
			stubVoter{name: "b", dir: vote.Up, conf: 0.9},
		},
		Vetoers: []vote.Vetoer{
			stubVetoer{name: "guard", veto: true, reason: "spike"},
		},
	})
	p := defaultParams()
	p.VetoEnabled = false
	dec := e.Decide(context.Background(), "BTCUSDT", 100, market.Context{}, p)
	assert.True(t, dec.ShouldTrade)
	assert.False(t, dec.Vetoed)
}

func TestFailingAgentBecomesSkip(t *testing.T) {
	e := NewEngine(EngineParams{
		Voters: []vote.Voter{
			stubVoter{name: "a", dir: vote.Up, conf: 0.8},
			stubVoter{name: "b", dir: vote.Up, conf: 0.7},
			stubVoter{name: "broken", err: errors.New("api down")},
			stubVoter{name: "crashy", panic: true},
		},
	})
	col := e.Collect(context.Background(), "BTCUSDT", 100, market.Context{})
	require.Len(t, col.Votes, 4)
	byName := map[string]vote.Vote{}
	for _, v := range col.Votes {
		byName[v.AgentName] = v
	}
	assert.Equal(t, vote.Skip, byName["broken"].Direction)
	assert.Equal(t, vote.Skip, byName["crashy"].Direction)

	dec := e.Evaluate(col, defaultParams())
	assert.Equal(t, 2, dec.Aggregate.TotalAgents, "失败的 agent 降级为 skip，不计入参与数")
	assert.True(t, dec.ShouldTrade)
}

func TestSlowAgentTimesOutAsSkip(t *testing.T) {
	e := NewEngine(EngineParams{
		Voters: []vote.Voter{
			stubVoter{name: "slow", dir: vote.Up, conf: 0.9, delay: 200 * time.Millisecond},
			stubVoter{name: "fast", dir: vote.Down, conf: 0.6},
		},
		AgentTimeout: 20 * time.Millisecond,
	})
	col := e.Collect(context.Background(), "BTCUSDT", 100, market.Context{})
	byName := map[string]vote.Vote{}
	for _, v := range col.Votes {
		byName[v.AgentName] = v
	}
	assert.Equal(t, vote.Skip, byName["slow"].Direction)
	assert.Equal(t, vote.Down, byName["fast"].Direction)
}

func TestVetoerFailureFailsClosed(t *testing.T) {
	cases := []struct {
		name   string
		vetoer vote.Vetoer
	}{
		{"error", stubVetoer{name: "guard", err: errors.New("feed down")}},
		{"timeout", stubVetoer{name: "guard", delay: 200 * time.Millisecond}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine(EngineParams{
				Voters: []vote.Voter{
					stubVoter{name: "a", dir: vote.Up, conf: 0.9},
					stubVoter{name: "b", dir: vote.Up, conf: 0.9},
				},
				Vetoers:      []vote.Vetoer{tc.vetoer},
				AgentTimeout: 20 * time.Millisecond,
			})
			dec := e.Decide(context.Background(), "BTCUSDT", 100, market.Context{}, defaultParams())
			assert.False(t, dec.ShouldTrade, "风控检查失败必须 fail-closed")
			assert.True(t, dec.Vetoed)
		})
	}
}

func TestMinIndividualConfidence(t *testing.T) {
	e := NewEngine(EngineParams{
		Voters: []vote.Voter{
			stubVoter{name: "a", dir: vote.Up, conf: 0.9},
			stubVoter{name: "b", dir: vote.Up, conf: 0.2},
		},
	})
	p := defaultParams()
	p.MinIndividualConfidence = 0.3
	dec := e.Decide(context.Background(), "BTCUSDT", 100, market.Context{}, p)
	assert.False(t, dec.ShouldTrade)
	assert.Contains(t, dec.Reason, "individual minimum")
}

func TestRegimeInsightAdjustsWeights(t *testing.T) {
	regimeDetails := map[string]any{
		"regime":      "bull",
		"multipliers": map[string]float64{"trend": 2.0, "momentum": 0.5},
	}
	e := NewEngine(EngineParams{
		Voters: []vote.Voter{
			stubVoter{name: "trend", dir: vote.Up, conf: 0.6},
			stubVoter{name: "momentum", dir: vote.Down, conf: 0.6},
			stubVoter{name: "regime", dir: vote.Skip, extra: regimeDetails},
		},
		RegimeAgent: "regime",
	})
	col := e.Collect(context.Background(), "BTCUSDT", 100, market.Context{})
	assert.Equal(t, market.RegimeBull, col.Regime)

	p := defaultParams()
	p.RegimeAdjust = true
	dec := e.Evaluate(col, p)
	// trend 被放大、momentum 被压缩，1:1 平票的加权裁决偏向 trend
	assert.Equal(t, vote.Up, dec.Direction)
}

func TestEvaluateReusesOneCollection(t *testing.T) {
	e := NewEngine(EngineParams{
		Voters: []vote.Voter{
			stubVoter{name: "a", dir: vote.Up, conf: 0.9},
			stubVoter{name: "b", dir: vote.Up, conf: 0.8},
		},
	})
	col := e.Collect(context.Background(), "BTCUSDT", 100, market.Context{})

	strict := defaultParams()
	strict.MinConfidence = 0.95
	loose := defaultParams()

	decStrict := e.Evaluate(col, strict)
	decLoose := e.Evaluate(col, loose)
	assert.False(t, decStrict.ShouldTrade)
	assert.True(t, decLoose.ShouldTrade)
	assert.NotEqual(t, decStrict.ID, decLoose.ID, "每次评估都有独立的决策 ID")
}
