package api

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"vendue/auction"
)

const headerUserID = "X-User-ID"

// RegisterHandlers 註冊所有路由
func (impl *Server) RegisterHandlers(router gin.IRouter) {
	listings := router.Group("/listings")
	{
		listings.POST("", impl.PostListing)
		listings.GET("/:listingID", impl.GetListing)
		listings.GET("/:listingID/bids", impl.GetListingBids)
		bid := []gin.HandlerFunc{impl.PostListingBid}
		if impl.limiter != nil {
			bid = append([]gin.HandlerFunc{impl.limiter.Middleware()}, bid...)
		}
		listings.POST("/:listingID/bids", bid...)
	}

	// 由審核與結算流程呼叫
	internal := router.Group("/internal/listings")
	{
		internal.POST("/:listingID/reject", impl.PostListingReject)
		internal.POST("/:listingID/complete", impl.PostListingComplete)
	}

	users := router.Group("/users/:userID")
	{
		users.GET("/notifications", impl.GetNotifications)
		users.PUT("/notifications/mark-all-read", impl.PutNotificationsMarkAllRead)
		users.PUT("/notifications/:notificationID/read", impl.PutNotificationRead)
		users.GET("/events", impl.GetEvents)
	}
}

// requestUser 取得由上游閘道設置的使用者 ID
func requestUser(c *gin.Context) (string, error) {
	userID := c.GetHeader(headerUserID)
	if userID == "" {
		return "", errMissingUser
	}
	return userID, nil
}

// requestOwner 確認請求的使用者就是路徑上的使用者
func requestOwner(c *gin.Context) (string, error) {
	userID, err := requestUser(c)
	if err != nil {
		return "", err
	}
	if userID != c.Param("userID") {
		return "", errForbidden
	}
	return userID, nil
}

// Create a pending listing
// (POST /listings)
func (impl *Server) PostListing(c *gin.Context) {
	const op = "PostListing"
	sellerID, err := requestUser(c)
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	var request CreateListingRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		abortWithError(c, impl.logger, op, fmt.Errorf("%w: %s", errInvalidInput, err.Error()))
		return
	}
	listing, err := impl.registry.Create(c.Request.Context(), auction.Draft{
		SellerID:   sellerID,
		Title:      request.Title,
		StartPrice: request.StartPrice,
		StartTime:  request.StartTime,
		EndTime:    request.EndTime,
	})
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	c.Header("Location", "/listings/"+listing.ID)
	c.JSON(http.StatusCreated, newListingResponse(listing))
}

// Get listing details
// (GET /listings/{listingID})
func (impl *Server) GetListing(c *gin.Context) {
	const op = "GetListing"
	listing, err := impl.registry.Get(c.Request.Context(), c.Param("listingID"))
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	c.JSON(http.StatusOK, newListingResponse(listing))
}

// List bids of a listing, highest first
// (GET /listings/{listingID}/bids)
func (impl *Server) GetListingBids(c *gin.Context) {
	const op = "GetListingBids"
	ctx := c.Request.Context()
	listingID := c.Param("listingID")
	if _, err := impl.registry.Get(ctx, listingID); err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	bids, err := impl.ledger.List(ctx, listingID)
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	// 帳本依接受順序排列，金額必然遞增，反轉即為金額由高到低
	slices.Reverse(bids)
	c.JSON(http.StatusOK, BidsResponse{
		Count: len(bids),
		Bids:  lo.Map(bids, func(b auction.Bid, _ int) BidResponse { return newBidResponse(b) }),
	})
}

// Place a bid on a listing
// (POST /listings/{listingID}/bids)
func (impl *Server) PostListingBid(c *gin.Context) {
	const op = "PostListingBid"
	bidderID, err := requestUser(c)
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	var request PlaceBidRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		abortWithError(c, impl.logger, op, fmt.Errorf("%w: %s", errInvalidInput, err.Error()))
		return
	}
	if !request.Amount.IsPositive() {
		abortWithError(c, impl.logger, op, fmt.Errorf("%w: amount must be positive", auction.ErrInvalidBid))
		return
	}
	receipt, err := impl.controller.PlaceBid(c.Request.Context(), c.Param("listingID"), bidderID, request.Amount, impl.clock())
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	c.JSON(http.StatusCreated, ReceiptResponse{
		Message:    "Bid placed successfully",
		Bid:        newBidResponse(receipt.Bid),
		CurrentBid: receipt.CurrentBid,
		BidCount:   receipt.BidCount,
	})
}

// Reject a pending listing
// (POST /internal/listings/{listingID}/reject)
func (impl *Server) PostListingReject(c *gin.Context) {
	const op = "PostListingReject"
	var request RejectListingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			abortWithError(c, impl.logger, op, fmt.Errorf("%w: %s", errInvalidInput, err.Error()))
			return
		}
	}
	listing, err := impl.registry.Reject(c.Request.Context(), c.Param("listingID"), request.Reason)
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	c.JSON(http.StatusOK, newListingResponse(listing))
}

// Mark an ended listing as completed
// (POST /internal/listings/{listingID}/complete)
func (impl *Server) PostListingComplete(c *gin.Context) {
	const op = "PostListingComplete"
	listing, err := impl.registry.Complete(c.Request.Context(), c.Param("listingID"))
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	c.JSON(http.StatusOK, newListingResponse(listing))
}

// List notifications of a user
// (GET /users/{userID}/notifications)
func (impl *Server) GetNotifications(c *gin.Context) {
	const op = "GetNotifications"
	userID, err := requestOwner(c)
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	var query NotificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		abortWithError(c, impl.logger, op, fmt.Errorf("%w: %s", errInvalidInput, err.Error()))
		return
	}
	page, err := impl.inbox.List(c.Request.Context(), userID, auction.InboxQuery{
		Limit:      query.Limit,
		Offset:     (query.Page - 1) * query.Limit,
		UnreadOnly: query.UnreadOnly,
	})
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	c.JSON(http.StatusOK, NotificationsResponse{
		Notifications: page.Entries,
		TotalPages:    (page.Total + int64(query.Limit) - 1) / int64(query.Limit),
		CurrentPage:   query.Page,
		Total:         page.Total,
		UnreadCount:   page.Unread,
	})
}

// Mark a notification as read
// (PUT /users/{userID}/notifications/{notificationID}/read)
func (impl *Server) PutNotificationRead(c *gin.Context) {
	const op = "PutNotificationRead"
	userID, err := requestOwner(c)
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	if err := impl.inbox.MarkRead(c.Request.Context(), userID, c.Param("notificationID")); err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// Mark all notifications as read
// (PUT /users/{userID}/notifications/mark-all-read)
func (impl *Server) PutNotificationsMarkAllRead(c *gin.Context) {
	const op = "PutNotificationsMarkAllRead"
	userID, err := requestOwner(c)
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	updated, err := impl.inbox.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	c.JSON(http.StatusOK, MarkAllReadResponse{
		Message: "All notifications marked as read",
		Updated: updated,
	})
}

// Track notifications of a user
// (GET /users/{userID}/events)
func (impl *Server) GetEvents(c *gin.Context) {
	const op = "GetEvents"
	userID, err := requestOwner(c)
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	ch, err := impl.sseManager.Subscribe(userID)
	if err != nil {
		abortWithError(c, impl.logger, op, err)
		return
	}
	defer impl.sseManager.Unsubscribe(userID, ch)

	// SSE請求合法，開始初始化串流
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	heartbeat := impl.config.SSE.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(string(n.Type), n)
			w.Flush()
		// 一段時間沒有事件就發送註解行，確保瀏覽器和代理伺服器不會斷開連線
		case <-ticker.C:
			w.WriteString(": heartbeat\n\n")
			w.Flush()
		}
	}
}
