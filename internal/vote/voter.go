package vote

import (
	"context"

	"quorum/internal/market"
)

// Voter 是方向性信号源。实现方必须自行吞掉内部错误并以 Skip/Neutral
// 降级——返回 error 仅用于引擎侧兜底，引擎会将其转为该 agent 的 Skip 票。
type Voter interface {
	Name() string
	Analyze(ctx context.Context, symbol string, epoch int64, mkt market.Context) (Vote, error)
}

// Vetoer 是一票否决方。返回 (true, reason) 时该周期强制不交易，
// 与加权共识结果无关。返回 error 视同否决（fail-closed）：
// 无法完成的风控检查绝不能放行交易。
//
// 一个类型可以同时实现 Voter 与 Vetoer；只实现 Vetoer 的 agent
// 不参与方向性计票。
type Vetoer interface {
	Name() string
	CanVeto(ctx context.Context, symbol string, mkt market.Context) (bool, string, error)
}
