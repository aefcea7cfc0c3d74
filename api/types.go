package api

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"vendue/auction"
)

// CreateListingRequest 建立拍賣商品的請求
type CreateListingRequest struct {
	Title      string          `json:"title" binding:"required"`
	StartPrice decimal.Decimal `json:"startPrice"`
	StartTime  time.Time       `json:"startTime"`
	EndTime    time.Time       `json:"endTime"`
}

// PlaceBidRequest 出價請求
type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// RejectListingRequest 審核拒絕請求
type RejectListingRequest struct {
	Reason string `json:"reason"`
}

// ListingResponse 拍賣商品資訊
type ListingResponse struct {
	ID              string          `json:"id"`
	SellerID        string          `json:"sellerId"`
	Title           string          `json:"title"`
	StartPrice      decimal.Decimal `json:"startPrice"`
	CurrentBid      decimal.Decimal `json:"currentBid"`
	HighestBidderID *string         `json:"highestBidderId"`
	StartTime       time.Time       `json:"startTime"`
	EndTime         time.Time       `json:"endTime"`
	Status          auction.Status  `json:"status"`
	WinnerID        *string         `json:"winnerId"`
	BidCount        int64           `json:"bidCount"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
}

// BidResponse 出價紀錄
type BidResponse struct {
	ID         string          `json:"id"`
	ListingID  string          `json:"listingId"`
	BidderID   string          `json:"bidderId"`
	Amount     decimal.Decimal `json:"amount"`
	AcceptedAt time.Time       `json:"acceptedAt"`
}

// BidsResponse 拍賣商品的出價紀錄
type BidsResponse struct {
	Count int           `json:"count"`
	Bids  []BidResponse `json:"bids"`
}

// ReceiptResponse 出價成功的回應
type ReceiptResponse struct {
	Message    string          `json:"message"`
	Bid        BidResponse     `json:"bid"`
	CurrentBid decimal.Decimal `json:"currentBid"`
	BidCount   int64           `json:"bidCount"`
}

// NotificationsResponse 通知列表
type NotificationsResponse struct {
	Notifications []auction.InboxEntry `json:"notifications"`
	TotalPages    int64                `json:"totalPages"`
	CurrentPage   int                  `json:"currentPage"`
	Total         int64                `json:"total"`
	UnreadCount   int64                `json:"unreadCount"`
}

// NotificationsQuery 通知列表的查詢參數
// page 設有上限，避免換算 offset 時溢位
type NotificationsQuery struct {
	Page       int  `form:"page,default=1" binding:"min=1,max=10000"`
	Limit      int  `form:"limit,default=20" binding:"min=1,max=100"`
	UnreadOnly bool `form:"unreadOnly"`
}

// MarkAllReadResponse 全部標記已讀的回應
type MarkAllReadResponse struct {
	Message string `json:"message"`
	Updated int64  `json:"updated"`
}

func newListingResponse(l auction.Listing) ListingResponse {
	response := ListingResponse{
		ID:              l.ID,
		SellerID:        l.SellerID,
		Title:           l.Title,
		StartPrice:      l.StartPrice,
		CurrentBid:      l.CurrentBid,
		StartTime:       l.StartTime,
		EndTime:         l.EndTime,
		Status:          l.Status,
		BidCount:        l.BidCount,
		RejectionReason: l.RejectionReason,
	}
	if l.HighestBidderID != "" {
		response.HighestBidderID = lo.ToPtr(l.HighestBidderID)
	}
	if l.WinnerID != "" {
		response.WinnerID = lo.ToPtr(l.WinnerID)
	}
	return response
}

func newBidResponse(b auction.Bid) BidResponse {
	return BidResponse{
		ID:         b.ID,
		ListingID:  b.ListingID,
		BidderID:   b.BidderID,
		Amount:     b.Amount,
		AcceptedAt: b.AcceptedAt,
	}
}
