package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendue/auction"
)

func TestNewServer(t *testing.T) {
	tests := []struct {
		name   string
		config ServerConfig
	}{
		{name: "unknown_driver", config: ServerConfig{Store: StoreConfig{Driver: "mongo"}}},
		{name: "redis_without_addr", config: ServerConfig{Store: StoreConfig{Driver: DriverRedis}}},
		{name: "invalid_rate_limit_window", config: ServerConfig{RateLimit: RateLimitConfig{Limit: 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewServer(tt.config, WithServerLogger(discard))
			assert.Error(t, err)
		})
	}
}

func TestServer_PostListing(t *testing.T) {
	server, _ := setupServer(t, testConfig())
	handler := server.Handler()

	tests := []struct {
		name       string
		userID     string
		body       any
		wantStatus int
	}{
		{
			name:       "missing_user",
			body:       map[string]any{"title": "camera", "startPrice": "100", "startTime": t0, "endTime": t0.Add(time.Hour)},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing_title",
			userID:     "seller",
			body:       map[string]any{"startPrice": "100", "startTime": t0, "endTime": t0.Add(time.Hour)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "end_before_start",
			userID:     "seller",
			body:       map[string]any{"title": "camera", "startPrice": "100", "startTime": t0, "endTime": t0.Add(-time.Hour)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "non_positive_price",
			userID:     "seller",
			body:       map[string]any{"title": "camera", "startPrice": "0", "startTime": t0, "endTime": t0.Add(time.Hour)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "created",
			userID:     "seller",
			body:       map[string]any{"title": "<b>camera</b>", "startPrice": "100.50", "startTime": t0, "endTime": t0.Add(time.Hour)},
			wantStatus: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, handler, http.MethodPost, "/listings", tt.userID, tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusCreated {
				return
			}
			listing := decode[ListingResponse](t, w)
			assert.Equal(t, "/listings/"+listing.ID, w.Header().Get("Location"))
			assert.Equal(t, "camera", listing.Title)
			assert.Equal(t, auction.StatusPending, listing.Status)
			assert.True(t, decimal.RequireFromString("100.50").Equal(listing.CurrentBid))
			assert.Nil(t, listing.HighestBidderID)
		})
	}
}

func TestServer_BidLifecycle(t *testing.T) {
	server, clock := setupServer(t, testConfig())
	handler := server.Handler()
	ctx := context.Background()

	listing := createListing(t, handler, "seller")
	bidPath := "/listings/" + listing.ID + "/bids"

	// 尚未開始
	w := doJSON(t, handler, http.MethodPost, bidPath, "alice", map[string]any{"amount": "150"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(auction.ReasonAuctionNotActive), decode[ErrorResponse](t, w).Reason)

	report := server.scheduler.Tick(ctx, t0)
	require.Equal(t, 1, report.Started)
	clock.Set(t0.Add(10 * time.Minute))

	tests := []struct {
		name       string
		listingID  string
		userID     string
		amount     string
		wantStatus int
		wantReason auction.Reason
	}{
		{name: "not_found", listingID: "missing", userID: "alice", amount: "150", wantStatus: http.StatusNotFound, wantReason: auction.ReasonNotFound},
		{name: "self_bid", listingID: listing.ID, userID: "seller", amount: "150", wantStatus: http.StatusForbidden, wantReason: auction.ReasonSelfBidForbidden},
		{name: "equal_to_start", listingID: listing.ID, userID: "alice", amount: "100", wantStatus: http.StatusBadRequest, wantReason: auction.ReasonBidTooLow},
		{name: "negative", listingID: listing.ID, userID: "alice", amount: "-1", wantStatus: http.StatusBadRequest},
		{name: "missing_user", listingID: listing.ID, amount: "150", wantStatus: http.StatusUnauthorized},
		{name: "alice_placed", listingID: listing.ID, userID: "alice", amount: "150", wantStatus: http.StatusCreated},
		{name: "bob_too_low", listingID: listing.ID, userID: "bob", amount: "150", wantStatus: http.StatusBadRequest, wantReason: auction.ReasonBidTooLow},
		{name: "bob_placed", listingID: listing.ID, userID: "bob", amount: "200.25", wantStatus: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, handler, http.MethodPost, "/listings/"+tt.listingID+"/bids", tt.userID, map[string]any{"amount": tt.amount})
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusCreated {
				receipt := decode[ReceiptResponse](t, w)
				assert.True(t, decimal.RequireFromString(tt.amount).Equal(receipt.CurrentBid))
				assert.Equal(t, tt.userID, receipt.Bid.BidderID)
				return
			}
			if tt.wantReason != "" {
				assert.Equal(t, string(tt.wantReason), decode[ErrorResponse](t, w).Reason)
			}
		})
	}

	// 出價紀錄由高到低
	w = doJSON(t, handler, http.MethodGet, bidPath, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bids := decode[BidsResponse](t, w)
	require.Equal(t, 2, bids.Count)
	assert.Equal(t, "bob", bids.Bids[0].BidderID)
	assert.Equal(t, "alice", bids.Bids[1].BidderID)

	w = doJSON(t, handler, http.MethodGet, "/listings/missing/bids", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// endTime 之後不再接受出價
	clock.Set(t0.Add(time.Hour))
	w = doJSON(t, handler, http.MethodPost, bidPath, "carol", map[string]any{"amount": "500"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	report = server.scheduler.Tick(ctx, t0.Add(time.Hour))
	require.Equal(t, 1, report.Ended)

	w = doJSON(t, handler, http.MethodGet, "/listings/"+listing.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ended := decode[ListingResponse](t, w)
	assert.Equal(t, auction.StatusEnded, ended.Status)
	require.NotNil(t, ended.WinnerID)
	assert.Equal(t, "bob", *ended.WinnerID)
	assert.Equal(t, int64(2), ended.BidCount)

	// 外部流程的狀態轉換
	w = doJSON(t, handler, http.MethodPost, "/internal/listings/"+listing.ID+"/reject", "", map[string]any{"reason": "spam"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = doJSON(t, handler, http.MethodPost, "/internal/listings/"+listing.ID+"/complete", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, auction.StatusCompleted, decode[ListingResponse](t, w).Status)
	w = doJSON(t, handler, http.MethodPost, "/internal/listings/"+listing.ID+"/complete", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = doJSON(t, handler, http.MethodPost, "/internal/listings/missing/complete", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_RejectPending(t *testing.T) {
	server, _ := setupServer(t, testConfig())
	handler := server.Handler()
	listing := createListing(t, handler, "seller")

	w := doJSON(t, handler, http.MethodPost, "/internal/listings/"+listing.ID+"/reject", "", map[string]any{"reason": "<script>x</script>prohibited item"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rejected := decode[ListingResponse](t, w)
	assert.Equal(t, auction.StatusRejected, rejected.Status)
	assert.Equal(t, "prohibited item", rejected.RejectionReason)

	// 被拒絕的拍賣不會被排程器開始
	report := server.scheduler.Tick(context.Background(), t0.Add(time.Minute))
	assert.Zero(t, report.Started)
}

func TestServer_RateLimit(t *testing.T) {
	config := testConfig()
	config.RateLimit = RateLimitConfig{Limit: 2, Window: time.Minute}
	server, clock := setupServer(t, config)
	handler := server.Handler()

	listing := createListing(t, handler, "seller")
	server.scheduler.Tick(context.Background(), t0)
	clock.Set(t0.Add(time.Minute))

	bid := func(amount string) int {
		return doJSON(t, handler, http.MethodPost, "/listings/"+listing.ID+"/bids", "alice", map[string]any{"amount": amount}).Code
	}
	assert.Equal(t, http.StatusCreated, bid("110"))
	// 被拒絕的出價也計入次數
	assert.Equal(t, http.StatusBadRequest, bid("105"))
	assert.Equal(t, http.StatusTooManyRequests, bid("120"))

	// 下一個時間窗重新計算
	clock.Set(t0.Add(2 * time.Minute))
	assert.Equal(t, http.StatusCreated, bid("120"))

	// 其他路由不受限制
	for i := 0; i < 5; i++ {
		w := doJSON(t, handler, http.MethodGet, "/listings/"+listing.ID, "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestServer_Notifications(t *testing.T) {
	server, clock := setupServer(t, testConfig())
	handler := server.Handler()

	listing := createListing(t, handler, "seller")
	server.scheduler.Tick(context.Background(), t0)
	clock.Set(t0.Add(time.Minute))
	for _, b := range []struct{ user, amount string }{{"alice", "110"}, {"bob", "120"}, {"alice", "130"}} {
		w := doJSON(t, handler, http.MethodPost, "/listings/"+listing.ID+"/bids", b.user, map[string]any{"amount": b.amount})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	// 通知為非同步送出
	// seller: auction_started + 3 bid_placed
	require.Eventually(t, func() bool {
		w := doJSON(t, handler, http.MethodGet, "/users/seller/notifications", "seller", nil)
		return w.Code == http.StatusOK && decode[NotificationsResponse](t, w).Total == 4
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		w := doJSON(t, handler, http.MethodGet, "/users/alice/notifications", "alice", nil)
		return w.Code == http.StatusOK && decode[NotificationsResponse](t, w).Total == 1
	}, 2*time.Second, 10*time.Millisecond)

	w := doJSON(t, handler, http.MethodGet, "/users/alice/notifications", "alice", nil)
	alice := decode[NotificationsResponse](t, w)
	require.Len(t, alice.Notifications, 1)
	outbid := alice.Notifications[0]
	assert.Equal(t, auction.NotificationBidOutbid, outbid.Type)
	assert.Equal(t, "bob", outbid.RelatedUserID)
	assert.False(t, outbid.Read)

	tests := []struct {
		name       string
		path       string
		userID     string
		wantStatus int
		wantIDs    int
		wantTotal  int64
		wantPages  int64
	}{
		{name: "other_user", path: "/users/seller/notifications", userID: "alice", wantStatus: http.StatusForbidden},
		{name: "missing_user", path: "/users/seller/notifications", wantStatus: http.StatusUnauthorized},
		{name: "invalid_page", path: "/users/seller/notifications?page=0", userID: "seller", wantStatus: http.StatusBadRequest},
		{name: "page_overflow", path: "/users/seller/notifications?page=922337203685477580&limit=20", userID: "seller", wantStatus: http.StatusBadRequest},
		{name: "page_too_large", path: "/users/seller/notifications?page=10001", userID: "seller", wantStatus: http.StatusBadRequest},
		{name: "last_allowed_page", path: "/users/seller/notifications?page=10000&limit=100", userID: "seller", wantStatus: http.StatusOK, wantIDs: 0, wantTotal: 4, wantPages: 1},
		{name: "first_page", path: "/users/seller/notifications?limit=3", userID: "seller", wantStatus: http.StatusOK, wantIDs: 3, wantTotal: 4, wantPages: 2},
		{name: "second_page", path: "/users/seller/notifications?limit=3&page=2", userID: "seller", wantStatus: http.StatusOK, wantIDs: 1, wantTotal: 4, wantPages: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, handler, http.MethodGet, tt.path, tt.userID, nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			page := decode[NotificationsResponse](t, w)
			assert.Len(t, page.Notifications, tt.wantIDs)
			assert.Equal(t, tt.wantTotal, page.Total)
			assert.Equal(t, tt.wantPages, page.TotalPages)
			assert.Equal(t, int64(4), page.UnreadCount)
		})
	}

	// 標記已讀
	w = doJSON(t, handler, http.MethodPut, "/users/alice/notifications/"+outbid.ID+"/read", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, handler, http.MethodPut, "/users/seller/notifications/"+outbid.ID+"/read", "seller", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, handler, http.MethodGet, "/users/alice/notifications?unreadOnly=true", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[NotificationsResponse](t, w).Total)

	w = doJSON(t, handler, http.MethodPut, "/users/seller/notifications/mark-all-read", "seller", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(4), decode[MarkAllReadResponse](t, w).Updated)
	w = doJSON(t, handler, http.MethodGet, "/users/seller/notifications", "seller", nil)
	assert.Zero(t, decode[NotificationsResponse](t, w).UnreadCount)
}
