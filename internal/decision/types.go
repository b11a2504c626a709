package decision

import (
	"time"

	"quorum/internal/market"
	"quorum/internal/vote"
)

// AggregatePrediction 是一轮加权聚合的输出。
//
// 口径说明：Neutral 票计入 TotalAgents 与 agreement_rate 的分母——
// 它们是到场但不押方向的参与者；Skip 票在一切统计之前剔除。
type AggregatePrediction struct {
	Direction     vote.Direction `json:"direction"`
	WeightedScore float64        `json:"weighted_score"`
	Confidence    float64        `json:"confidence"`
	UpVotes       int            `json:"up_votes"`
	DownVotes     int            `json:"down_votes"`
	NeutralVotes  int            `json:"neutral_votes"`
	TotalAgents   int            `json:"total_agents"`
	AgreementRate float64        `json:"agreement_rate"`
	// ParticipatingAgents 为被计票的 agent（Skip 除外），保持投票顺序。
	ParticipatingAgents []string `json:"participating_agents"`
	// NoConsensus 标记“无信号”终态：零参与或未达 min_agents。不是错误。
	NoConsensus       bool   `json:"no_consensus"`
	NoConsensusReason string `json:"no_consensus_reason,omitempty"`

	// directionals 保留方向性票的 (agent, confidence)，供
	// min_individual_confidence 阈值检查使用；Neutral 不在其列。
	directionals []agentConfidence
}

type agentConfidence struct {
	Agent      string
	Confidence float64
}

// VetoCheck 记录单个否决 agent 的检查结果。
type VetoCheck struct {
	Agent  string `json:"agent"`
	Veto   bool   `json:"veto"`
	Reason string `json:"reason,omitempty"`
}

// Collected 是一次 (symbol, epoch) 采集的全部 agent 输出。
// 采集一次、按多套策略参数分别评估，是影子策略编排的前提。
type Collected struct {
	Symbol      string
	Epoch       int64
	Votes       []vote.Vote
	Vetoes      []VetoCheck
	Regime      market.Regime
	CollectedAt time.Time
}

// Params 是一次评估所需的全部策略参数；由 strategy.Config 派生，
// 评估过程对 Params 只读。
type Params struct {
	Strategy                string
	ConsensusThreshold      float64
	MinConfidence           float64
	MinIndividualConfidence float64
	MinAgents               int
	AdaptiveWeighting       bool
	RegimeAdjust            bool
	VetoEnabled             bool
	AgentWeights            map[string]float64
}

// Weight 返回 agent 的基础权重；未配置的 agent 默认 1。
func (p Params) Weight(agent string) float64 {
	if w, ok := p.AgentWeights[agent]; ok && w > 0 {
		return w
	}
	return 1
}

// TradeDecision 是单个 (strategy, symbol, epoch) 的最终裁决。
// 创建后不可变；Reason 永不为空，审计时无需翻日志。
type TradeDecision struct {
	ID            string              `json:"id"`
	Strategy      string              `json:"strategy"`
	Symbol        string              `json:"symbol"`
	Epoch         int64               `json:"epoch"`
	ShouldTrade   bool                `json:"should_trade"`
	Direction     vote.Direction      `json:"direction"`
	Confidence    float64             `json:"confidence"`
	WeightedScore float64             `json:"weighted_score"`
	Vetoed        bool                `json:"vetoed"`
	VetoReasons   []string            `json:"veto_reasons,omitempty"`
	Reason        string              `json:"reason"`
	Aggregate     AggregatePrediction `json:"aggregate"`
	Votes         []vote.Vote         `json:"-"`
	Timestamp     time.Time           `json:"timestamp"`
}
