package decision

import (
	"fmt"

	"quorum/internal/vote"
)

// Aggregate 把一组票按权重聚成单个预测。纯函数：不读外部状态，
// 同样输入得到同样输出。票本身的合法性由 vote.New 保证，这里不复检。
//
// 步骤（顺序有约束）：
//  1. 先剔除 Skip 票——它们不计入 total_agents，也不影响任何阈值判断；
//  2. 零参与 ⇒ 中性无共识（"no signal" 终态，非错误）；
//  3. 参与数 < minAgents ⇒ 无共识（法定人数不足，区别于弃权）；
//  4. weighted_score = Σ(confidence×quality×weight) / Σ(weight)，
//     按权重归一化——多拉几个低权重 agent 不会稀释强信号；
//  5. agreement_rate = max(up, down) / total_agents；
//  6. 方向取计票多数；平票时比较两边的加权得分之和，而非原始票数。
func Aggregate(votes []vote.Vote, weights map[string]float64, minAgents int) AggregatePrediction {
	participants := make([]vote.Vote, 0, len(votes))
	for _, v := range votes {
		if v.Direction == vote.Skip {
			continue
		}
		participants = append(participants, v)
	}

	if len(participants) == 0 {
		return noConsensus("no participating votes")
	}
	if minAgents > 0 && len(participants) < minAgents {
		return noConsensus(fmt.Sprintf("quorum %d < min_agents %d", len(participants), minAgents))
	}

	var (
		upCount, downCount, neutralCount int
		weightSum, scoreSum, confSum     float64
		upScore, downScore               float64
		names                            = make([]string, 0, len(participants))
		directionals                     []agentConfidence
	)
	for _, v := range participants {
		w := 1.0
		if weights != nil {
			if cfg, ok := weights[v.AgentName]; ok && cfg > 0 {
				w = cfg
			}
		}
		score := v.WeightedScore(w)
		weightSum += w
		scoreSum += score
		confSum += v.Confidence * w
		names = append(names, v.AgentName)
		switch v.Direction {
		case vote.Up:
			upCount++
			upScore += score
		case vote.Down:
			downCount++
			downScore += score
		default:
			neutralCount++
		}
		if v.Direction.Directional() {
			directionals = append(directionals, agentConfidence{Agent: v.AgentName, Confidence: v.Confidence})
		}
	}

	total := len(participants)
	agg := AggregatePrediction{
		Direction:           vote.Neutral,
		UpVotes:             upCount,
		DownVotes:           downCount,
		NeutralVotes:        neutralCount,
		TotalAgents:         total,
		ParticipatingAgents: names,
		directionals:        directionals,
	}
	if weightSum > 0 {
		agg.WeightedScore = scoreSum / weightSum
		agg.Confidence = confSum / weightSum
	}
	if m := max(upCount, downCount); m > 0 {
		agg.AgreementRate = float64(m) / float64(total)
	}

	switch {
	case upCount > downCount:
		agg.Direction = vote.Up
	case downCount > upCount:
		agg.Direction = vote.Down
	case upCount > 0: // 平票：加权得分高者胜出
		if upScore > downScore {
			agg.Direction = vote.Up
		} else if downScore > upScore {
			agg.Direction = vote.Down
		}
	}
	return agg
}

func noConsensus(reason string) AggregatePrediction {
	return AggregatePrediction{
		Direction:         vote.Neutral,
		NoConsensus:       true,
		NoConsensusReason: reason,
	}
}
