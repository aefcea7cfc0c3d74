package models

import (
	"time"

	"github.com/shopspring/decimal"

	"vendue/auction"
)

// Bid 代表拍賣商品的出價紀錄，寫入後不可修改
// Seq 保留寫入順序，帳本依 Seq 排序
type Bid struct {
	Seq        int64           `gorm:"primaryKey;autoIncrement"`
	ID         string          `gorm:"type:text;not null;uniqueIndex;<-:create"`
	ListingID  string          `gorm:"type:text;not null;index;<-:create"`
	BidderID   string          `gorm:"type:text;not null;index;<-:create"`
	Amount     decimal.Decimal `gorm:"type:numeric;not null;<-:create"`
	AcceptedAt time.Time       `gorm:"type:timestamp with time zone;not null;<-:create"`
}

func NewBid(b auction.Bid) Bid {
	return Bid{
		ID:         b.ID,
		ListingID:  b.ListingID,
		BidderID:   b.BidderID,
		Amount:     b.Amount,
		AcceptedAt: b.AcceptedAt,
	}
}

func (m Bid) Auction() auction.Bid {
	return auction.Bid{
		ID:         m.ID,
		ListingID:  m.ListingID,
		BidderID:   m.BidderID,
		Amount:     m.Amount,
		AcceptedAt: m.AcceptedAt.UTC(),
	}
}
