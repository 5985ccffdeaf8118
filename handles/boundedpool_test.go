package handles

import (
	"errors"
	"testing"
	"time"

	"github.com/oxcryptfs/oxcryptfs/oxerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithTimeoutSuccess(t *testing.T) {
	p := NewBoundedFsPool(10)
	v, err := RunWithTimeout(p, time.Second, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, p.IsHealthy())
}

func TestRunWithTimeoutPropagatesOpError(t *testing.T) {
	p := NewBoundedFsPool(10)
	wantErr := errors.New("boom")
	_, err := RunWithTimeout(p, time.Second, func() (int, error) {
		return 0, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestRunWithTimeoutLeavesLeakOnTimeout(t *testing.T) {
	p := NewBoundedFsPool(10)
	_, err := RunWithTimeout(p, 10*time.Millisecond, func() (int, error) {
		time.Sleep(time.Second)
		return 0, nil
	})
	require.Error(t, err)
	assert.Equal(t, oxerr.KindIO, oxerr.KindOf(err))
	assert.Equal(t, 1, p.BlockedCount())
	assert.True(t, p.IsDegraded())
}

func TestRunWithTimeoutRejectsOverThreshold(t *testing.T) {
	p := NewBoundedFsPool(1)
	_, err := RunWithTimeout(p, 10*time.Millisecond, func() (int, error) {
		time.Sleep(time.Second)
		return 0, nil
	})
	require.Error(t, err)
	assert.True(t, p.IsExhausted())

	_, err = RunWithTimeout(p, time.Second, func() (int, error) {
		return 1, nil
	})
	assert.Equal(t, oxerr.KindResourceBusy, oxerr.KindOf(err))
}

func TestResetClearsBlockedCount(t *testing.T) {
	p := NewBoundedFsPool(1)
	_, _ = RunWithTimeout(p, 10*time.Millisecond, func() (int, error) {
		time.Sleep(time.Second)
		return 0, nil
	})
	assert.True(t, p.IsExhausted())
	p.Reset()
	assert.True(t, p.IsHealthy())
}
