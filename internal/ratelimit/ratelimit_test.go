package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckLimitRequests(t *testing.T) {
	w := New(Config{RequestsPerMinute: 2, TokensPerMinute: 1000})

	assert.NoError(t, w.Check(10))
	w.Record(10)

	assert.NoError(t, w.Check(10))
	w.Record(10)

	assert.Error(t, w.Check(10))
}

func TestCheckLimitTokens(t *testing.T) {
	w := New(Config{RequestsPerMinute: 10, TokensPerMinute: 100})

	assert.NoError(t, w.Check(50))
	w.Record(50)

	assert.NoError(t, w.Check(50))
	w.Record(50)

	assert.Error(t, w.Check(1))
}

func TestCheckDoesNotMutate(t *testing.T) {
	w := New(Config{RequestsPerMinute: 1, TokensPerMinute: 1000})

	err1 := w.Check(10)
	err2 := w.Check(10)

	assert.Equal(t, err1, err2)
}

func TestCleanOldHistory(t *testing.T) {
	w := New(Config{RequestsPerMinute: 10, TokensPerMinute: 1000})

	w.history = []entry{
		{at: time.Now().Add(-61 * time.Second), tokens: 100},
		{at: time.Now().Add(-10 * time.Second), tokens: 50},
	}

	live := w.liveHistory(time.Now())
	if assert.Len(t, live, 1) {
		assert.Equal(t, 50, live[0].tokens)
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 2, EstimateTokens([]byte("12345678")))
}
