package scheduler

import (
	"context"
	"time"

	"quorum/internal/logger"
	"quorum/internal/market"
)

// EpochScheduler 对齐 15 分钟 epoch 边界触发任务。Offset 留给
// 行情源几秒落尾：边界刚过时上一根 K 线往往还没闭合。
type EpochScheduler struct {
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewEpochScheduler(ctx context.Context, offset time.Duration) *EpochScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &EpochScheduler{
		Interval: market.EpochDuration,
		Offset:   offset,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start 阻塞运行，每个 epoch 边界（加 Offset）调用一次 task，
// 参数是刚开始的 epoch 序号。ctx 取消后返回。
func (s *EpochScheduler) Start(task func(epoch int64)) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("EpochScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		s.Interval = market.EpochDuration
	}
	if s.Offset < 0 {
		logger.Warnf("EpochScheduler: negative offset=%s, clamp to 0", s.Offset)
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("EpochScheduler: started interval=%s offset=%s run_immediately=%v at=%s",
		s.Interval, s.Offset, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		task(market.EpochAt(startAt))
	}

	for {
		now := s.nowFn().UTC()
		boundary, wakeAt, wait := s.nextTimes(now)

		logger.Debugf("EpochScheduler: 下一 epoch 边界=%s 将在=%s 触发 (in %s)",
			boundary.Format(time.RFC3339), wakeAt.Format(time.RFC3339), wait.Truncate(time.Second))

		if wait <= 0 {
			task(market.EpochAt(boundary))
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Infof("EpochScheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		task(market.EpochAt(boundary))
	}
}

func (s *EpochScheduler) nextTimes(now time.Time) (boundary time.Time, wakeAt time.Time, wait time.Duration) {
	now = now.UTC()
	boundary = now.Truncate(s.Interval).Add(s.Interval)
	wakeAt = boundary.Add(s.Offset)
	wait = wakeAt.Sub(now)
	return boundary, wakeAt, wait
}
