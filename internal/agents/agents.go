// Package agents 提供内置的规则型专家：动量、趋势、市况分类与
// 波动熔断。它们与 LLM 型 agent 走同一套 Voter/Vetoer 接口，
// 任何内部失败都降级为 Skip，绝不让流水线停摆。
package agents

import (
	"fmt"

	"quorum/internal/vote"
)

var (
	_ vote.Voter  = (*Momentum)(nil)
	_ vote.Voter  = (*Trend)(nil)
	_ vote.Voter  = (*Regime)(nil)
	_ vote.Vetoer = (*VolatilityGuard)(nil)
)

// Build 按名字构建 voter 集合，全员共用传入的指标缓存。
// 未知名字直接报错，避免配置拼写错误悄悄少了一个 agent。
func Build(cache *IndicatorCache, names []string) ([]vote.Voter, error) {
	if len(names) == 0 {
		names = []string{"momentum", "trend", "regime"}
	}
	out := make([]vote.Voter, 0, len(names))
	for _, name := range names {
		switch name {
		case "momentum":
			out = append(out, NewMomentum(cache))
		case "trend":
			out = append(out, NewTrend(cache))
		case "regime":
			out = append(out, NewRegime(cache))
		default:
			return nil, fmt.Errorf("agents: 未知 agent %q", name)
		}
	}
	return out, nil
}
