package auction_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vendue/auction"
)

func TestDispatcher_Dispatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := auction.NewMockINotificationSink(ctrl)

	var wg sync.WaitGroup
	wg.Add(2)
	sink.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, n auction.Notification) error {
		defer wg.Done()
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		if n.ID == "fail" {
			return errors.New("sink unavailable")
		}
		return nil
	}).Times(2)

	dispatcher, err := auction.NewDispatcher(sink, auction.WithDispatcherLogger(discard))
	require.NoError(t, err)
	defer dispatcher.Close()

	dispatcher.Dispatch(auction.Notification{ID: "fail"}, auction.Notification{ID: "ok"})
	wg.Wait()
}

func TestDispatcher_DoesNotBlockOnSlowSink(t *testing.T) {
	release := make(chan struct{})
	blocking := sinkFunc(func(ctx context.Context, n auction.Notification) error {
		<-release
		return nil
	})

	dispatcher, err := auction.NewDispatcher(blocking,
		auction.WithDispatcherLogger(discard),
		auction.WithDispatcherWorkers(1),
		auction.WithDispatcherQueueLength(1),
		auction.WithDispatcherScheduleTimeout(time.Millisecond))
	require.NoError(t, err)
	defer dispatcher.Close()
	defer close(release)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			dispatcher.Dispatch(auction.Notification{ID: "n"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked on a slow sink")
	}
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	slow := sinkFunc(func(ctx context.Context, n auction.Notification) error {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, n.ID)
		return nil
	})

	dispatcher, err := auction.NewDispatcher(slow,
		auction.WithDispatcherLogger(discard),
		auction.WithDispatcherWorkers(1),
		auction.WithDispatcherQueueLength(8),
		auction.WithDispatcherScheduleTimeout(time.Second))
	require.NoError(t, err)

	for _, id := range []string{"n1", "n2", "n3", "n4", "n5"} {
		dispatcher.Dispatch(auction.Notification{ID: id})
	}
	dispatcher.Close()

	// Close 回傳時佇列中的通知都已送出
	mu.Lock()
	assert.ElementsMatch(t, []string{"n1", "n2", "n3", "n4", "n5"}, sent)
	mu.Unlock()

	// 關閉後的通知直接丟棄，重複 Close 不會阻塞
	dispatcher.Dispatch(auction.Notification{ID: "late"})
	dispatcher.Close()
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, sent, 5)
}

func TestNewDispatcher_NilSink(t *testing.T) {
	_, err := auction.NewDispatcher(nil)
	assert.Error(t, err)
}

func TestMultiSink_Send(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := auction.NewMockINotificationSink(ctrl)
	second := auction.NewMockINotificationSink(ctrl)
	n := auction.Notification{ID: "l1:2:bid_placed:seller"}

	sinkErr := errors.New("stream full")
	first.EXPECT().Send(gomock.Any(), n).Return(sinkErr)
	second.EXPECT().Send(gomock.Any(), n).Return(nil)

	err := auction.MultiSink{first, second}.Send(context.Background(), n)
	assert.ErrorIs(t, err, sinkErr)
}

func TestLogSink_Send(t *testing.T) {
	var buf bytes.Buffer
	sink := auction.NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sink.Send(context.Background(), auction.Notification{
		ID:        "l1:3:auction_won:bob",
		UserID:    "bob",
		Type:      auction.NotificationAuctionWon,
		ListingID: "l1",
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"type":"auction_won"`)
	assert.Contains(t, buf.String(), `"caller":"LogSink"`)
}

type sinkFunc func(ctx context.Context, n auction.Notification) error

func (f sinkFunc) Send(ctx context.Context, n auction.Notification) error {
	return f(ctx, n)
}
