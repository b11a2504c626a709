package strategy

import (
	"fmt"
	"strings"

	"quorum/internal/decision"
)

// Config 是一套策略的全部参数。运行期只读：几十个影子策略共用同一批
// agent 票，各自只靠 Config 里的阈值与权重得出不同结论。
type Config struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	// IsLive 标记真实下单的那一套配置；整个 roster 至多一个。
	IsLive bool `yaml:"is_live" json:"is_live"`

	ConsensusThreshold      float64 `yaml:"consensus_threshold" json:"consensus_threshold"`
	MinConfidence           float64 `yaml:"min_confidence" json:"min_confidence"`
	MinIndividualConfidence float64 `yaml:"min_individual_confidence" json:"min_individual_confidence"`
	MinAgents               int     `yaml:"min_agents" json:"min_agents"`

	AdaptiveWeighting bool `yaml:"adaptive_weighting" json:"adaptive_weighting"`
	RegimeAdjust      bool `yaml:"regime_adjust" json:"regime_adjust"`
	VetoEnabled       bool `yaml:"veto_enabled" json:"veto_enabled"`

	// AgentWeights 是各 agent 的基础权重；未列出的默认 1.0。
	AgentWeights map[string]float64 `yaml:"agent_weights" json:"agent_weights"`

	InitialBalance   float64 `yaml:"initial_balance" json:"initial_balance"`
	TradeSizeUSD     float64 `yaml:"trade_size_usd" json:"trade_size_usd"`
	MaxPositionPct   float64 `yaml:"max_position_pct" json:"max_position_pct"`
	MaxOpenPositions int     `yaml:"max_open_positions" json:"max_open_positions"`
}

func (c Config) withDefaults() Config {
	if c.InitialBalance <= 0 {
		c.InitialBalance = 1000
	}
	if c.TradeSizeUSD <= 0 {
		c.TradeSizeUSD = 10
	}
	if c.MinAgents <= 0 {
		c.MinAgents = 2
	}
	return c
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("strategy: name 不能为空")
	}
	if c.ConsensusThreshold < 0 || c.ConsensusThreshold > 1 {
		return fmt.Errorf("strategy %s: consensus_threshold %.3f 超出 [0,1]", c.Name, c.ConsensusThreshold)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("strategy %s: min_confidence %.3f 超出 [0,1]", c.Name, c.MinConfidence)
	}
	if c.MaxPositionPct < 0 || c.MaxPositionPct > 1 {
		return fmt.Errorf("strategy %s: max_position_pct %.3f 超出 [0,1]", c.Name, c.MaxPositionPct)
	}
	for agent, w := range c.AgentWeights {
		if w < 0 {
			return fmt.Errorf("strategy %s: agent %s 权重不能为负", c.Name, agent)
		}
	}
	return nil
}

// Params 派生引擎评估所需的参数集。
func (c Config) Params() decision.Params {
	return decision.Params{
		Strategy:                c.Name,
		ConsensusThreshold:      c.ConsensusThreshold,
		MinConfidence:           c.MinConfidence,
		MinIndividualConfidence: c.MinIndividualConfidence,
		MinAgents:               c.MinAgents,
		AdaptiveWeighting:       c.AdaptiveWeighting,
		RegimeAdjust:            c.RegimeAdjust,
		VetoEnabled:             c.VetoEnabled,
		AgentWeights:            c.AgentWeights,
	}
}
