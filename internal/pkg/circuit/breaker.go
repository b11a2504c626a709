package circuit

import (
	"errors"
	"sync"
	"time"

	"quorum/internal/logger"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpen 表示熔断器处于打开状态，调用被直接拒绝。
var ErrOpen = errors.New("circuit: breaker open")

// Breaker 针对上游行情接口的连续失败做熔断：连续 threshold 次失败后打开，
// 冷却 cooldown 后放行一次探测请求（半开）。
type Breaker struct {
	name     string
	limit    int
	cooldown time.Duration

	mu       sync.Mutex
	state    State
	failures int
	lastFail time.Time
}

func NewBreaker(name string, limit int, cooldown time.Duration) *Breaker {
	if limit <= 0 {
		limit = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, limit: limit, cooldown: cooldown, state: StateClosed}
}

// Do 在熔断保护下执行 fn；打开状态直接返回 ErrOpen。
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFail) > b.cooldown {
			b.transition(StateHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
	b.failures = 0
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFail = time.Now()
	switch b.state {
	case StateClosed:
		if b.failures >= b.limit {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	logger.Warnf("circuit[%s]: %s -> %s (failures=%d/%d cooldown=%s)",
		b.name, from, to, b.failures, b.limit, b.cooldown)
}
