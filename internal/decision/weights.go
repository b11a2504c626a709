package decision

import (
	"encoding/json"

	"quorum/internal/market"
	"quorum/internal/vote"

	"github.com/tidwall/gjson"
)

// regimeInsight 是行情分类 agent 通过 vote.Details 下发的内容：
// 当前 regime 标签，以及（可选的）按 agent 细分的权重系数。
type regimeInsight struct {
	Regime      market.Regime
	Multipliers map[string]float64
}

// extractRegime 在采集到的票里找指定 regime agent 的诊断信息。
// regime agent 约定投 Skip（不押方向），信息全部走 Details。
func extractRegime(votes []vote.Vote, regimeAgent string) regimeInsight {
	out := regimeInsight{Regime: market.RegimeUnknown}
	if regimeAgent == "" {
		return out
	}
	for _, v := range votes {
		if v.AgentName != regimeAgent || len(v.Details) == 0 {
			continue
		}
		raw, err := json.Marshal(v.Details)
		if err != nil {
			return out
		}
		doc := string(raw)
		out.Regime = market.ParseRegime(gjson.Get(doc, "regime").String())
		if mults := gjson.Get(doc, "multipliers"); mults.IsObject() {
			out.Multipliers = make(map[string]float64)
			mults.ForEach(func(key, value gjson.Result) bool {
				if f := value.Float(); f > 0 {
					out.Multipliers[key.String()] = f
				}
				return true
			})
		}
		return out
	}
	return out
}

// effectiveWeights 计算本次评估各 agent 的最终权重：
// 基础权重（策略配置）× 自适应校准系数 × regime 系数。
func (e *Engine) effectiveWeights(col Collected, p Params) map[string]float64 {
	weights := make(map[string]float64, len(col.Votes))
	var insight regimeInsight
	if p.RegimeAdjust {
		insight = extractRegime(col.Votes, e.regimeAgent)
	}
	for _, v := range col.Votes {
		w := p.Weight(v.AgentName)
		if p.AdaptiveWeighting && e.perf != nil {
			w *= e.perf.Multiplier(v.AgentName, col.Regime)
		}
		if p.RegimeAdjust {
			if m, ok := insight.Multipliers[v.AgentName]; ok {
				w *= m
			}
		}
		weights[v.AgentName] = w
	}
	return weights
}
