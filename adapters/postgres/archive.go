package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vendue/auction"
	"vendue/models"
)

// Archive 保存從 stream 取得的出價與通知
// 寫入皆為冪等，重送的消息不會產生重複資料
// 實現了 auction.IInbox
type Archive struct {
	db *gorm.DB
}

func NewArchive(db *gorm.DB) (*Archive, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	return &Archive{db: db}, nil
}

// SaveBid 保存一筆出價，已存在時忽略
func (a *Archive) SaveBid(ctx context.Context, bid auction.Bid) error {
	const op = "postgres.Archive.SaveBid"
	record := models.NewBid(bid)
	result := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		return fmt.Errorf("%s: failed to save bid %s: %w", op, bid.ID, result.Error)
	}
	return nil
}

// Send 保存一則通知，已存在時忽略
func (a *Archive) Send(ctx context.Context, n auction.Notification) error {
	const op = "postgres.Archive.Send"
	record := models.NewNotification(n)
	result := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		return fmt.Errorf("%s: failed to save notification %s: %w", op, n.ID, result.Error)
	}
	return nil
}

func (a *Archive) List(ctx context.Context, userID string, query auction.InboxQuery) (auction.InboxPage, error) {
	const op = "postgres.Archive.List"
	page := auction.InboxPage{Entries: []auction.InboxEntry{}}

	base := a.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if err := base.Session(&gorm.Session{}).Where("is_read = ?", false).Count(&page.Unread).Error; err != nil {
		return page, fmt.Errorf("%s: failed to count unread: %w", op, err)
	}
	if query.UnreadOnly {
		base = base.Where("is_read = ?", false)
	}
	if err := base.Session(&gorm.Session{}).Count(&page.Total).Error; err != nil {
		return page, fmt.Errorf("%s: failed to count notifications: %w", op, err)
	}

	find := base.Session(&gorm.Session{}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Offset(query.Offset)
	if query.Limit > 0 {
		find = find.Limit(query.Limit)
	}
	var rows []models.Notification
	if err := find.Find(&rows).Error; err != nil {
		return page, fmt.Errorf("%s: failed to list notifications: %w", op, err)
	}
	for _, row := range rows {
		page.Entries = append(page.Entries, row.Entry())
	}
	return page, nil
}

func (a *Archive) MarkRead(ctx context.Context, userID, notificationID string) error {
	const op = "postgres.Archive.MarkRead"
	var record models.Notification
	result := a.db.WithContext(ctx).Where("id = ? AND user_id = ?", notificationID, userID).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return auction.ErrNotificationNotFound
		}
		return fmt.Errorf("%s: failed to find notification: %w", op, result.Error)
	}
	if err := a.db.WithContext(ctx).Model(&record).Update("is_read", true).Error; err != nil {
		return fmt.Errorf("%s: failed to mark notification: %w", op, err)
	}
	return nil
}

func (a *Archive) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const op = "postgres.Archive.MarkAllRead"
	result := a.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("%s: failed to mark notifications: %w", op, result.Error)
	}
	return result.RowsAffected, nil
}
