package vote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name       string
		dir        Direction
		confidence float64
		quality    float64
	}{
		{"confidence too high", Up, 1.2, 0.5},
		{"confidence negative", Up, -0.1, 0.5},
		{"quality too high", Down, 0.5, 1.01},
		{"quality negative", Down, 0.5, -0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New("agent", tc.dir, tc.confidence, tc.quality, "r")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestNewRejectsUnknownDirection(t *testing.T) {
	_, err := New("agent", Direction("sideways"), 0.5, 0.5, "r")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewRejectsEmptyAgent(t *testing.T) {
	_, err := New("", Up, 0.5, 0.5, "r")
	require.Error(t, err)
}

func TestSkipCarriesNoConfidence(t *testing.T) {
	_, err := New("agent", Skip, 0.7, 0.5, "r")
	require.Error(t, err, "skip 票不允许带非零置信度")

	v := SkipVote("agent", "no data")
	assert.Equal(t, Skip, v.Direction)
	assert.Zero(t, v.Confidence)
	assert.Zero(t, v.Quality)
	assert.Zero(t, v.WeightedScore(1.5))
	assert.False(t, v.Timestamp.IsZero())
}

func TestWeightedScore(t *testing.T) {
	v, err := New("agent", Up, 0.8, 0.5, "r")
	require.NoError(t, err)
	assert.InDelta(t, 0.8*0.5*2.0, v.WeightedScore(2.0), 1e-9)
}

func TestWithDetailsKeepsOriginalImmutable(t *testing.T) {
	v, err := New("agent", Up, 0.8, 0.5, "r")
	require.NoError(t, err)
	v2 := v.WithDetails(map[string]any{"k": 1})
	assert.Nil(t, v.Details)
	assert.Equal(t, 1, v2.Details["k"])
}

func TestDirectionHelpers(t *testing.T) {
	assert.True(t, Up.Directional())
	assert.True(t, Down.Directional())
	assert.False(t, Neutral.Directional())
	assert.False(t, Skip.Directional())
	assert.Equal(t, Down, Up.Opposite())
	assert.Equal(t, Up, Down.Opposite())

	got, err := ParseDirection("up")
	require.NoError(t, err)
	assert.Equal(t, Up, got)
	_, err = ParseDirection("diagonal")
	assert.Error(t, err)
}
