package auction_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"vendue/adapters/memory"
	"vendue/auction"
)

var (
	t0      = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// recordingSink 收集所有送出的通知
type recordingSink struct {
	mu            sync.Mutex
	notifications []auction.Notification
}

func (s *recordingSink) Send(ctx context.Context, n auction.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *recordingSink) snapshot() []auction.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]auction.Notification(nil), s.notifications...)
}

func (s *recordingSink) find(kind auction.NotificationType, userID string) []auction.Notification {
	var found []auction.Notification
	for _, n := range s.snapshot() {
		if n.Type == kind && n.UserID == userID {
			found = append(found, n)
		}
	}
	return found
}

// interceptStore 在條件式更新之前執行 before，用於模擬競爭的寫入者
type interceptStore struct {
	*memory.Store
	mu     sync.Mutex
	before func(update auction.Update)
	fail   map[string]error
}

func (s *interceptStore) ConditionalUpdate(ctx context.Context, update auction.Update) error {
	s.mu.Lock()
	before := s.before
	failErr := s.fail[update.Listing.ID]
	s.mu.Unlock()
	if failErr != nil {
		return failErr
	}
	if before != nil {
		before(update)
	}
	return s.Store.ConditionalUpdate(ctx, update)
}

type harness struct {
	store      *interceptStore
	sink       *recordingSink
	dispatcher *auction.Dispatcher
	controller *auction.Controller
	scheduler  *auction.Scheduler
	registry   *auction.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := &interceptStore{Store: memory.NewStore(), fail: map[string]error{}}
	sink := &recordingSink{}
	dispatcher, err := auction.NewDispatcher(sink, auction.WithDispatcherLogger(discard), auction.WithDispatcherWorkers(4))
	require.NoError(t, err)
	t.Cleanup(dispatcher.Close)

	controller, err := auction.NewController(store, dispatcher, auction.WithControllerLogger(discard))
	require.NoError(t, err)
	scheduler, err := auction.NewScheduler(store, dispatcher, auction.WithSchedulerLogger(discard))
	require.NoError(t, err)
	registry, err := auction.NewRegistry(store, auction.WithRegistryLogger(discard))
	require.NoError(t, err)

	return &harness{
		store:      store,
		sink:       sink,
		dispatcher: dispatcher,
		controller: controller,
		scheduler:  scheduler,
		registry:   registry,
	}
}

// seedActive 直接寫入一個進行中的拍賣商品，時間窗為 [t0, t0+1h)
func (h *harness) seedActive(t *testing.T, id string, startPrice int64) auction.Listing {
	t.Helper()
	listing := auction.Listing{
		ID:         id,
		SellerID:   "seller",
		Title:      "Listing " + id,
		StartPrice: decimal.NewFromInt(startPrice),
		CurrentBid: decimal.NewFromInt(startPrice),
		StartTime:  t0,
		EndTime:    t0.Add(time.Hour),
		Status:     auction.StatusActive,
		Revision:   1,
	}
	require.NoError(t, h.store.Create(context.Background(), listing))
	return listing
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
