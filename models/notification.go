package models

import (
	"time"

	"vendue/auction"
)

// Notification 代表保存在收件匣中的通知
type Notification struct {
	ID            string    `gorm:"type:text;primaryKey"`
	UserID        string    `gorm:"type:text;not null;index:idx_notification_user_created,priority:1;<-:create"`
	Type          string    `gorm:"type:varchar(32);not null;<-:create"`
	ListingID     string    `gorm:"type:text;not null;<-:create"`
	RelatedUserID string    `gorm:"type:text;not null;default:'';<-:create"`
	Amount        string    `gorm:"type:text;not null;default:'';<-:create"`
	Title         string    `gorm:"type:varchar(255);not null;<-:create"`
	Message       string    `gorm:"type:text;not null;<-:create"`
	IsRead        bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"type:timestamp with time zone;not null;index:idx_notification_user_created,priority:2,sort:desc"`
}

func NewNotification(n auction.Notification) Notification {
	return Notification{
		ID:            n.ID,
		UserID:        n.UserID,
		Type:          string(n.Type),
		ListingID:     n.ListingID,
		RelatedUserID: n.RelatedUserID,
		Amount:        n.Amount,
		Title:         n.Title,
		Message:       n.Message,
		CreatedAt:     n.CreatedAt,
	}
}

func (m Notification) Entry() auction.InboxEntry {
	return auction.InboxEntry{
		Notification: auction.Notification{
			ID:            m.ID,
			UserID:        m.UserID,
			Type:          auction.NotificationType(m.Type),
			ListingID:     m.ListingID,
			RelatedUserID: m.RelatedUserID,
			Amount:        m.Amount,
			Title:         m.Title,
			Message:       m.Message,
			CreatedAt:     m.CreatedAt.UTC(),
		},
		Read: m.IsRead,
	}
}
