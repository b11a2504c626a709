package circuit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("test", 3, 0)
	fail := func() error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		require.Error(t, b.Do(fail))
	}
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	// cooldown 走默认值，手动把 lastFail 拨回过去触发半开
	b := NewBreaker("test", 1, 0)
	require.Error(t, b.Do(func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, b.State())

	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrOpen, "冷却期内直接拒绝")

	b.mu.Lock()
	b.lastFail = b.lastFail.Add(-b.cooldown * 2)
	b.mu.Unlock()

	require.NoError(t, b.Do(func() error { return nil }), "冷却后放行一次探测")
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	b := NewBreaker("test", 1, 0)
	require.Error(t, b.Do(func() error { return errors.New("boom") }))

	b.mu.Lock()
	b.lastFail = b.lastFail.Add(-b.cooldown * 2)
	b.mu.Unlock()

	require.Error(t, b.Do(func() error { return errors.New("still down") }))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("test", 2, 0)
	require.Error(t, b.Do(func() error { return errors.New("boom") }))
	require.NoError(t, b.Do(func() error { return nil }))
	require.Error(t, b.Do(func() error { return errors.New("boom") }))
	assert.Equal(t, StateClosed, b.State(), "中间的成功清零连续失败计数")
}
