package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing 代表一場拍賣
// CurrentBid、HighestBidderID、Status、WinnerID、BidCount 只能由出價控制器與排程器修改
type Listing struct {
	ID              string
	SellerID        string
	Title           string
	StartPrice      decimal.Decimal
	CurrentBid      decimal.Decimal
	HighestBidderID string // 空字串代表尚無出價
	StartTime       time.Time
	EndTime         time.Time
	Status          Status
	WinnerID        string
	BidCount        int64
	Revision        int64
	RejectionReason string
}

// HasBids 回傳是否已有被接受的出價
func (l Listing) HasBids() bool {
	return l.HighestBidderID != ""
}

// Bid 代表一筆被接受的出價，寫入後不可修改
type Bid struct {
	ID         string
	ListingID  string
	BidderID   string
	Amount     decimal.Decimal
	AcceptedAt time.Time
}

// Update 是一次條件式更新
// 只有在儲存中的 revision 等於 ExpectedRevision 時才會套用 Listing，
// 並且在同一個原子操作中把 Bid (若不為 nil) 追加到出價帳本
type Update struct {
	ExpectedRevision int64
	Listing          Listing
	Bid              *Bid
}

// Boundary 指定 ListDue 要比較的時間欄位
type Boundary int

const (
	BoundaryStart Boundary = iota
	BoundaryEnd
)

func (b Boundary) String() string {
	if b == BoundaryEnd {
		return "end"
	}
	return "start"
}

// Receipt 是出價成功後的回傳值
type Receipt struct {
	Bid        Bid
	CurrentBid decimal.Decimal
	BidCount   int64
}

// NotificationType 通知類型
type NotificationType string

const (
	NotificationBidPlaced      NotificationType = "bid_placed"
	NotificationBidOutbid      NotificationType = "bid_outbid"
	NotificationAuctionWon     NotificationType = "auction_won"
	NotificationAuctionEnded   NotificationType = "auction_ended"
	NotificationAuctionStarted NotificationType = "auction_started"
)

// Notification 是送往通知接收端的事件
// ID 在重送時保持不變，接收端以 ID 去重
type Notification struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId"`
	Type          NotificationType `json:"type"`
	ListingID     string           `json:"listingId"`
	RelatedUserID string           `json:"relatedUserId,omitempty"`
	Amount        string           `json:"amount,omitempty"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// InboxQuery 是查詢通知的條件
type InboxQuery struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

// InboxEntry 是保存在收件匣中的通知
type InboxEntry struct {
	Notification
	Read bool `json:"isRead"`
}

// InboxPage 是查詢結果，Total 為符合條件的總數，Unread 為該使用者的未讀總數
type InboxPage struct {
	Entries []InboxEntry `json:"notifications"`
	Total   int64        `json:"total"`
	Unread  int64        `json:"unreadCount"`
}
