package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestStateClaimReplyIsExactlyOnce(t *testing.T) {
	s := NewRequestState()
	assert.False(t, s.HasReplied())

	assert.True(t, s.ClaimReply())
	assert.True(t, s.HasReplied())
	assert.False(t, s.ClaimReply())
}

func TestRequestStateCancellation(t *testing.T) {
	s := NewRequestState()
	assert.False(t, s.IsCancelled())
	s.MarkCancelled()
	assert.True(t, s.IsCancelled())
}

func TestConcurrentClaimReplyExactlyOneWinner(t *testing.T) {
	s := NewRequestState()
	var wg sync.WaitGroup
	results := make([]bool, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.ClaimReply()
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, r := range results {
		if r {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}
