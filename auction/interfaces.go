//go:generate mockgen -package=auction -destination=mock.go -source=interfaces.go

package auction

import (
	"context"
	"time"
)

// IListingStore 定義了拍賣商品儲存的操作介面
type IListingStore interface {
	// Get 取得拍賣商品，不存在時回傳 ErrListingNotFound
	Get(ctx context.Context, id string) (Listing, error)
	// Create 建立拍賣商品，已存在時回傳 ErrListingExists
	Create(ctx context.Context, listing Listing) error
	// ConditionalUpdate 在 revision 相符時套用更新並追加出價，
	// revision 不符時回傳 ErrRevisionConflict
	ConditionalUpdate(ctx context.Context, update Update) error
	// ListDue 列出狀態為 status 且 boundary 時間 <= at 的拍賣商品
	ListDue(ctx context.Context, status Status, boundary Boundary, at time.Time, limit int) ([]Listing, error)
}

// IBidLedger 定義了出價帳本的查詢介面
// 追加出價由 IListingStore.ConditionalUpdate 在同一個原子操作中完成
type IBidLedger interface {
	// Latest 取得最新一筆出價，沒有出價時回傳 ErrNoBids
	Latest(ctx context.Context, listingID string) (Bid, error)
	// List 依接受時間排序列出所有出價
	List(ctx context.Context, listingID string) ([]Bid, error)
}

// INotificationSink 定義了通知接收端的介面
type INotificationSink interface {
	Send(ctx context.Context, notification Notification) error
}

// ITickLease 讓多節點部署時同一時間只有一個節點執行排程掃描
// 排程的正確性不依賴租約，租約只用來減少節點間的競爭
type ITickLease interface {
	// Acquire 取得租約，回傳的 context 在租約失效時會被取消
	Acquire(ctx context.Context) (context.Context, func(), error)
}

// IInbox 保存已送出的通知，提供使用者查詢與標記已讀
// 同一個通知 ID 重複寫入時只保留第一次
type IInbox interface {
	INotificationSink
	// List 依建立時間由新到舊列出通知
	List(ctx context.Context, userID string, query InboxQuery) (InboxPage, error)
	// MarkRead 標記單一通知為已讀，不存在或不屬於該使用者時回傳 ErrNotificationNotFound
	MarkRead(ctx context.Context, userID, notificationID string) error
	// MarkAllRead 標記使用者所有未讀通知為已讀，回傳更新的數量
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}
