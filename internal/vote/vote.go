package vote

import (
	"errors"
	"fmt"
	"time"
)

// Direction 是一票的方向。Skip 表示弃权：不参与计票也不贡献权重。
type Direction string

const (
	Up      Direction = "up"
	Down    Direction = "down"
	Neutral Direction = "neutral"
	Skip    Direction = "skip"
)

func (d Direction) Valid() bool {
	switch d {
	case Up, Down, Neutral, Skip:
		return true
	default:
		return false
	}
}

// Directional 报告该方向是否可直接成交（neutral/skip 不可）。
func (d Direction) Directional() bool { return d == Up || d == Down }

// Opposite 返回反方向；非方向性输入原样返回。
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	default:
		return d
	}
}

func ParseDirection(raw string) (Direction, error) {
	d := Direction(raw)
	if !d.Valid() {
		return "", fmt.Errorf("%w: unknown direction %q", ErrValidation, raw)
	}
	return d, nil
}

// ErrValidation 表示 Vote 构造参数违反契约（方向未知、置信度越界等）。
var ErrValidation = errors.New("vote: validation failed")

// Vote 是单个 agent 对某 (symbol, epoch) 的一票。构造后不可变。
// 加权得分 = Confidence × Quality × agent 权重。
type Vote struct {
	AgentName  string
	Direction  Direction
	Confidence float64 // [0,1]
	Quality    float64 // [0,1]，数据质量/样本充分度
	Reasoning  string
	Timestamp  time.Time
	Details    map[string]any // 诊断信息，journal 落库为 details_json
}

// New 构造并校验一张票。Skip 票必须零置信、零质量：
// 弃权不得以任何形式向聚合结果走私权重。
func New(agent string, dir Direction, confidence, quality float64, reasoning string) (Vote, error) {
	if agent == "" {
		return Vote{}, fmt.Errorf("%w: agent name is required", ErrValidation)
	}
	if !dir.Valid() {
		return Vote{}, fmt.Errorf("%w: unknown direction %q", ErrValidation, dir)
	}
	if confidence < 0 || confidence > 1 {
		return Vote{}, fmt.Errorf("%w: confidence %.4f out of [0,1]", ErrValidation, confidence)
	}
	if quality < 0 || quality > 1 {
		return Vote{}, fmt.Errorf("%w: quality %.4f out of [0,1]", ErrValidation, quality)
	}
	if dir == Skip && (confidence != 0 || quality != 0) {
		return Vote{}, fmt.Errorf("%w: skip vote must carry zero confidence/quality", ErrValidation)
	}
	return Vote{
		AgentName:  agent,
		Direction:  dir,
		Confidence: confidence,
		Quality:    quality,
		Reasoning:  reasoning,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// SkipVote 构造规范的弃权票。agent 内部失败降级时使用。
func SkipVote(agent, reason string) Vote {
	v, _ := New(agent, Skip, 0, 0, reason)
	return v
}

// WithDetails 返回附带诊断信息的副本（Vote 本身保持值语义）。
func (v Vote) WithDetails(details map[string]any) Vote {
	v.Details = details
	return v
}

// WeightedScore 计算该票在给定 agent 权重下的得分。
func (v Vote) WeightedScore(weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	return v.Confidence * v.Quality * weight
}
