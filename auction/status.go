package auction

import (
	"fmt"
	"time"
)

// Status 代表拍賣商品的生命週期狀態
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// transitions 列出所有合法的狀態轉換
//
//	pending -> active    (排程器, now >= startTime)
//	pending -> rejected  (外部審核)
//	active  -> ended     (排程器, now >= endTime)
//	ended   -> completed (外部結算)
var transitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusRejected},
	StatusActive:  {StatusEnded},
	StatusEnded:   {StatusCompleted},
}

// Valid 檢查狀態是否為已知狀態
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusEnded, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// AcceptsBids 只有 active 狀態可以出價
func (s Status) AcceptsBids() bool {
	return s == StatusActive
}

// BiddingClosed 回傳狀態是否為出價的終止狀態
func (s Status) BiddingClosed() bool {
	return s == StatusEnded || s == StatusCompleted || s == StatusRejected
}

// CanTransition 檢查 from -> to 是否為合法轉換
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Admits 檢查拍賣商品在 now 這個時間點是否可以接受出價
// endTime 是硬性邊界，即使排程器尚未執行也不接受出價
func (l Listing) Admits(now time.Time) bool {
	return l.Status.AcceptsBids() && !now.Before(l.StartTime) && now.Before(l.EndTime)
}

// Advance 回傳轉換到 to 之後的拍賣狀態，revision 會遞增
// 轉換為 ended 時會同時凍結得標者
func (l Listing) Advance(to Status) (Listing, error) {
	if !CanTransition(l.Status, to) {
		return Listing{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, to)
	}
	next := l
	next.Status = to
	next.Revision = l.Revision + 1
	if to == StatusEnded {
		next.WinnerID = l.HighestBidderID
	}
	return next, nil
}
