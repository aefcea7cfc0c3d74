package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMutexOptions() []AutoRenewMutexOption {
	return []AutoRenewMutexOption{
		WithAutoRenewMutexLogger(discard),
		WithAutoRenewMutexExpiry(time.Second),
		WithAutoRenewMutexRenewInterval(20 * time.Millisecond),
		WithAutoRenewMutexRetryDelay(10 * time.Millisecond),
	}
}

func TestAutoRenewMutex_LockUnlock(t *testing.T) {
	_, client := setupMiniredis(t)

	holder := NewAutoRenewMutex(client, "lock:scheduler", testMutexOptions()...)
	lockCtx, err := holder.Lock(context.Background())
	require.NoError(t, err)
	assert.True(t, holder.Valid())

	// 鎖被佔用時持續重試直到 ctx 結束
	other := NewAutoRenewMutex(client, "lock:scheduler", testMutexOptions()...)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = other.Lock(ctx)
	assert.Error(t, err)

	ok, err := holder.Unlock()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, lockCtx.Err(), context.Canceled)
	assert.False(t, holder.Valid())

	otherCtx, err := other.Lock(context.Background())
	require.NoError(t, err)
	assert.NoError(t, otherCtx.Err())
	_, err = other.Unlock()
	assert.NoError(t, err)
}

func TestAutoRenewMutex_Renew(t *testing.T) {
	mr, client := setupMiniredis(t)

	mutex := NewAutoRenewMutex(client, "lock:scheduler", testMutexOptions()...)
	lockCtx, err := mutex.Lock(context.Background())
	require.NoError(t, err)
	defer mutex.Unlock()

	// 續期會把 TTL 拉回 expiry
	mr.FastForward(900 * time.Millisecond)
	assert.Eventually(t, func() bool {
		return mr.TTL("lock:scheduler") > 500*time.Millisecond
	}, time.Second, 10*time.Millisecond)
	assert.NoError(t, lockCtx.Err())
}

func TestAutoRenewMutex_LockLost(t *testing.T) {
	mr, client := setupMiniredis(t)

	mutex := NewAutoRenewMutex(client, "lock:scheduler", testMutexOptions()...)
	lockCtx, err := mutex.Lock(context.Background())
	require.NoError(t, err)

	// 鎖被外部移除後續期失敗，lockCtx 會被取消
	mr.Del("lock:scheduler")
	select {
	case <-lockCtx.Done():
	case <-time.After(time.Second):
		require.FailNow(t, "lock context was not cancelled")
	}
	assert.False(t, mutex.Valid())
}

func TestTickLease(t *testing.T) {
	t.Run("invalid_arguments", func(t *testing.T) {
		_, err := NewTickLease(nil, "lease")
		assert.Error(t, err)

		_, client := setupMiniredis(t)
		_, err = NewTickLease(client, "")
		assert.Error(t, err)
	})

	t.Run("exclusive", func(t *testing.T) {
		_, client := setupMiniredis(t)
		nodeA, err := NewTickLease(client, "vendue:lease:scheduler", testMutexOptions()...)
		require.NoError(t, err)
		nodeB, err := NewTickLease(client, "vendue:lease:scheduler", testMutexOptions()...)
		require.NoError(t, err)

		leaseCtx, release, err := nodeA.Acquire(context.Background())
		require.NoError(t, err)
		assert.NoError(t, leaseCtx.Err())

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, _, err = nodeB.Acquire(ctx)
		assert.Error(t, err)

		release()
		assert.Error(t, leaseCtx.Err())

		_, releaseB, err := nodeB.Acquire(context.Background())
		require.NoError(t, err)
		releaseB()
	})
}
