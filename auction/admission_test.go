package auction_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendue/auction"
)

func TestController_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	listing, err := h.registry.Create(ctx, auction.Draft{
		SellerID:   "seller",
		Title:      "Vintage camera",
		StartPrice: dec(100),
		StartTime:  t0,
		EndTime:    t0.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, auction.StatusPending, listing.Status)

	report := h.scheduler.Tick(ctx, t0)
	assert.Equal(t, 1, report.Started)

	receipt, err := h.controller.PlaceBid(ctx, listing.ID, "A", dec(150), t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, receipt.CurrentBid.Equal(dec(150)))

	_, err = h.controller.PlaceBid(ctx, listing.ID, "B", dec(120), t0.Add(20*time.Minute))
	assert.ErrorIs(t, err, auction.ErrBidTooLow)

	receipt, err = h.controller.PlaceBid(ctx, listing.ID, "B", dec(200), t0.Add(30*time.Minute))
	require.NoError(t, err)
	assert.True(t, receipt.CurrentBid.Equal(dec(200)))
	assert.Equal(t, int64(2), receipt.BidCount)

	report = h.scheduler.Tick(ctx, t0.Add(time.Hour+time.Minute))
	assert.Equal(t, 1, report.Ended)

	got, err := h.store.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusEnded, got.Status)
	assert.Equal(t, "B", got.WinnerID)
	assert.True(t, got.CurrentBid.Equal(dec(200)))

	assert.Eventually(t, func() bool {
		return len(h.sink.find(auction.NotificationBidPlaced, "seller")) == 2 &&
			len(h.sink.find(auction.NotificationBidOutbid, "A")) == 1 &&
			len(h.sink.find(auction.NotificationAuctionWon, "B")) == 1 &&
			len(h.sink.find(auction.NotificationAuctionEnded, "seller")) == 1
	}, time.Second, 10*time.Millisecond)
	ended := h.sink.find(auction.NotificationAuctionEnded, "seller")[0]
	assert.Equal(t, "B", ended.RelatedUserID)
	assert.Empty(t, h.sink.find(auction.NotificationBidOutbid, "B"))
}

func TestController_PlaceBid_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, h *harness)
		bidder  string
		amount  int64
		now     time.Time
		wantErr error
		reason  auction.Reason
	}{
		{
			name:    "not_found",
			setup:   func(t *testing.T, h *harness) {},
			bidder:  "A",
			amount:  150,
			now:     t0.Add(time.Minute),
			wantErr: auction.ErrListingNotFound,
			reason:  auction.ReasonNotFound,
		},
		{
			name: "pending",
			setup: func(t *testing.T, h *harness) {
				l := h.seedActive(t, "l1", 100)
				l.Status = auction.StatusPending
				next := l
				next.Revision++
				require.NoError(t, h.store.ConditionalUpdate(context.Background(), auction.Update{ExpectedRevision: l.Revision, Listing: next}))
			},
			bidder:  "A",
			amount:  150,
			now:     t0.Add(time.Minute),
			wantErr: auction.ErrAuctionNotActive,
			reason:  auction.ReasonAuctionNotActive,
		},
		{
			name:    "before_start",
			setup:   func(t *testing.T, h *harness) { h.seedActive(t, "l1", 100) },
			bidder:  "A",
			amount:  150,
			now:     t0.Add(-time.Second),
			wantErr: auction.ErrAuctionNotActive,
			reason:  auction.ReasonAuctionNotActive,
		},
		{
			name:    "at_end_time_before_tick",
			setup:   func(t *testing.T, h *harness) { h.seedActive(t, "l1", 100) },
			bidder:  "A",
			amount:  150,
			now:     t0.Add(time.Hour),
			wantErr: auction.ErrAuctionNotActive,
			reason:  auction.ReasonAuctionNotActive,
		},
		{
			name:    "self_bid",
			setup:   func(t *testing.T, h *harness) { h.seedActive(t, "l1", 100) },
			bidder:  "seller",
			amount:  150,
			now:     t0.Add(time.Minute),
			wantErr: auction.ErrSelfBid,
			reason:  auction.ReasonSelfBidForbidden,
		},
		{
			name:    "self_bid_checked_before_amount",
			setup:   func(t *testing.T, h *harness) { h.seedActive(t, "l1", 100) },
			bidder:  "seller",
			amount:  50,
			now:     t0.Add(time.Minute),
			wantErr: auction.ErrSelfBid,
			reason:  auction.ReasonSelfBidForbidden,
		},
		{
			name:    "equal_to_start_price",
			setup:   func(t *testing.T, h *harness) { h.seedActive(t, "l1", 100) },
			bidder:  "A",
			amount:  100,
			now:     t0.Add(time.Minute),
			wantErr: auction.ErrBidTooLow,
			reason:  auction.ReasonBidTooLow,
		},
		{
			name:    "below_start_price",
			setup:   func(t *testing.T, h *harness) { h.seedActive(t, "l1", 100) },
			bidder:  "A",
			amount:  99,
			now:     t0.Add(time.Minute),
			wantErr: auction.ErrBidTooLow,
			reason:  auction.ReasonBidTooLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(t, h)

			_, err := h.controller.PlaceBid(context.Background(), "l1", tt.bidder, dec(tt.amount), tt.now)
			assert.ErrorIs(t, err, tt.wantErr)
			reason, ok := auction.ReasonOf(err)
			assert.True(t, ok)
			assert.Equal(t, tt.reason, reason)

			bids, err := h.store.List(context.Background(), "l1")
			require.NoError(t, err)
			assert.Empty(t, bids)
		})
	}
}

func TestController_PlaceBid_InvalidInput(t *testing.T) {
	h := newHarness(t)
	h.seedActive(t, "l1", 100)

	_, err := h.controller.PlaceBid(context.Background(), "l1", "", dec(150), t0.Add(time.Minute))
	assert.ErrorIs(t, err, auction.ErrInvalidBid)
	_, ok := auction.ReasonOf(err)
	assert.False(t, ok)
}

func TestController_PlaceBid_StoreError(t *testing.T) {
	h := newHarness(t)
	h.seedActive(t, "l1", 100)
	storeErr := errors.New("connection reset")
	h.store.fail["l1"] = storeErr

	_, err := h.controller.PlaceBid(context.Background(), "l1", "A", dec(150), t0.Add(time.Minute))
	assert.ErrorIs(t, err, storeErr)
	_, ok := auction.ReasonOf(err)
	assert.False(t, ok)
	assert.Never(t, func() bool { return len(h.sink.snapshot()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

// compete 讓前 times 次條件式更新之前先由另一個寫入者提交 mutate 的結果
func compete(h *harness, times int, mutate func(l auction.Listing) auction.Update) {
	var mu sync.Mutex
	remaining := times
	h.store.before = func(update auction.Update) {
		mu.Lock()
		defer mu.Unlock()
		if remaining == 0 {
			return
		}
		remaining--
		current, err := h.store.Store.Get(context.Background(), update.Listing.ID)
		if err != nil {
			return
		}
		_ = h.store.Store.ConditionalUpdate(context.Background(), mutate(current))
	}
}

func competingBid(bidder string, amount int64) func(l auction.Listing) auction.Update {
	return func(l auction.Listing) auction.Update {
		next := l
		next.CurrentBid = dec(amount)
		next.HighestBidderID = bidder
		next.BidCount++
		next.Revision++
		return auction.Update{
			ExpectedRevision: l.Revision,
			Listing:          next,
			Bid:              &auction.Bid{ID: "competitor", ListingID: l.ID, BidderID: bidder, Amount: dec(amount), AcceptedAt: t0.Add(time.Minute)},
		}
	}
}

func TestController_PlaceBid_LostRace(t *testing.T) {
	tests := []struct {
		name       string
		times      int
		mutate     func(l auction.Listing) auction.Update
		amount     int64
		wantErr    error
		wantBid    int64
		wantLedger []int64
	}{
		{
			name:       "higher_concurrent_bid_wins",
			times:      1,
			mutate:     competingBid("B", 200),
			amount:     150,
			wantErr:    auction.ErrBidTooLow,
			wantBid:    200,
			wantLedger: []int64{200},
		},
		{
			name:       "lower_concurrent_bid_then_retry_succeeds",
			times:      1,
			mutate:     competingBid("B", 120),
			amount:     150,
			wantBid:    150,
			wantLedger: []int64{120, 150},
		},
		{
			name:       "equal_concurrent_bid_wins",
			times:      1,
			mutate:     competingBid("B", 150),
			amount:     150,
			wantErr:    auction.ErrBidTooLow,
			wantBid:    150,
			wantLedger: []int64{150},
		},
		{
			name:  "conflict_on_retry_reports_too_low",
			times: 2,
			mutate: func(l auction.Listing) auction.Update {
				next := l
				next.Revision++
				return auction.Update{ExpectedRevision: l.Revision, Listing: next}
			},
			amount:     150,
			wantErr:    auction.ErrBidTooLow,
			wantBid:    100,
			wantLedger: []int64{},
		},
		{
			name:  "auction_ended_before_retry",
			times: 1,
			mutate: func(l auction.Listing) auction.Update {
				next, _ := l.Advance(auction.StatusEnded)
				return auction.Update{ExpectedRevision: l.Revision, Listing: next}
			},
			amount:     150,
			wantErr:    auction.ErrAuctionNotActive,
			wantBid:    100,
			wantLedger: []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)
			h.seedActive(t, "l1", 100)
			compete(h, tt.times, tt.mutate)

			_, err := h.controller.PlaceBid(ctx, "l1", "A", dec(tt.amount), t0.Add(2*time.Minute))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			got, err := h.store.Get(ctx, "l1")
			require.NoError(t, err)
			assert.True(t, got.CurrentBid.Equal(dec(tt.wantBid)), "currentBid=%s", got.CurrentBid)

			bids, err := h.store.List(ctx, "l1")
			require.NoError(t, err)
			amounts := make([]int64, 0, len(bids))
			for _, b := range bids {
				amounts = append(amounts, b.Amount.IntPart())
			}
			assert.Equal(t, tt.wantLedger, amounts)
			assert.Equal(t, int64(len(bids)), got.BidCount)
		})
	}
}

func TestController_PlaceBid_Concurrent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedActive(t, "l1", 100)

	const bidders = 64
	amounts := rand.Perm(bidders)
	now := t0.Add(5 * time.Minute)

	var (
		mu       sync.Mutex
		accepted []decimal.Decimal
		wg       sync.WaitGroup
	)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := dec(int64(101 + amounts[i]))
			receipt, err := h.controller.PlaceBid(ctx, "l1", fmt.Sprintf("bidder-%d", i), amount, now)
			if err != nil {
				assert.ErrorIs(t, err, auction.ErrBidTooLow)
				return
			}
			assert.True(t, receipt.CurrentBid.Equal(amount))
			mu.Lock()
			accepted = append(accepted, amount)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	got, err := h.store.Get(ctx, "l1")
	require.NoError(t, err)
	bids, err := h.store.List(ctx, "l1")
	require.NoError(t, err)

	require.NotEmpty(t, bids)
	assert.Len(t, accepted, len(bids))
	assert.Equal(t, int64(len(bids)), got.BidCount)
	for i := 1; i < len(bids); i++ {
		assert.True(t, bids[i].Amount.GreaterThan(bids[i-1].Amount), "ledger must be strictly increasing")
	}
	last := bids[len(bids)-1]
	assert.True(t, got.CurrentBid.Equal(last.Amount))
	assert.Equal(t, last.BidderID, got.HighestBidderID)
	assert.True(t, got.CurrentBid.Equal(decimal.Max(accepted[0], accepted[1:]...)))
}
