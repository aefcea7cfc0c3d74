package models

import (
	"time"

	"github.com/shopspring/decimal"

	"vendue/auction"
)

// Listing 代表一場拍賣
// 包含起標價、目前最高出價、拍賣時間、狀態以及用於條件式更新的 revision
type Listing struct {
	ID              string          `gorm:"type:text;primaryKey"`
	SellerID        string          `gorm:"type:text;not null;index;<-:create"`
	Title           string          `gorm:"type:varchar(255);not null"`
	StartPrice      decimal.Decimal `gorm:"type:numeric;not null;<-:create"`
	CurrentBid      decimal.Decimal `gorm:"type:numeric;not null"`
	HighestBidderID string          `gorm:"type:text;not null;default:''"`
	StartTime       time.Time       `gorm:"type:timestamp with time zone;not null;index:idx_listing_status_start,priority:2"`
	EndTime         time.Time       `gorm:"type:timestamp with time zone;not null;index:idx_listing_status_end,priority:2"`
	Status          string          `gorm:"type:varchar(16);not null;index:idx_listing_status_start,priority:1;index:idx_listing_status_end,priority:1"`
	WinnerID        string          `gorm:"type:text;not null;default:''"`
	BidCount        int64           `gorm:"not null;default:0"`
	Revision        int64           `gorm:"not null"`
	RejectionReason string          `gorm:"type:text;not null;default:''"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewListing(l auction.Listing) Listing {
	return Listing{
		ID:              l.ID,
		SellerID:        l.SellerID,
		Title:           l.Title,
		StartPrice:      l.StartPrice,
		CurrentBid:      l.CurrentBid,
		HighestBidderID: l.HighestBidderID,
		StartTime:       l.StartTime,
		EndTime:         l.EndTime,
		Status:          string(l.Status),
		WinnerID:        l.WinnerID,
		BidCount:        l.BidCount,
		Revision:        l.Revision,
		RejectionReason: l.RejectionReason,
	}
}

// Auction 轉換為核心的 auction.Listing
func (m Listing) Auction() auction.Listing {
	return auction.Listing{
		ID:              m.ID,
		SellerID:        m.SellerID,
		Title:           m.Title,
		StartPrice:      m.StartPrice,
		CurrentBid:      m.CurrentBid,
		HighestBidderID: m.HighestBidderID,
		StartTime:       m.StartTime.UTC(),
		EndTime:         m.EndTime.UTC(),
		Status:          auction.Status(m.Status),
		WinnerID:        m.WinnerID,
		BidCount:        m.BidCount,
		Revision:        m.Revision,
		RejectionReason: m.RejectionReason,
	}
}

// Columns 回傳條件式更新時要寫入的欄位，零值也會被寫入
func (m Listing) Columns() map[string]any {
	return map[string]any{
		"title":             m.Title,
		"current_bid":       m.CurrentBid,
		"highest_bidder_id": m.HighestBidderID,
		"start_time":        m.StartTime,
		"end_time":          m.EndTime,
		"status":            m.Status,
		"winner_id":         m.WinnerID,
		"bid_count":         m.BidCount,
		"revision":          m.Revision,
		"rejection_reason":  m.RejectionReason,
	}
}
