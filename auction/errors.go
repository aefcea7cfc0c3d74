package auction

import "errors"

// 出價拒絕原因
var (
	ErrListingNotFound  = errors.New("listing not found")
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrSelfBid          = errors.New("seller cannot bid on own listing")
	ErrBidTooLow        = errors.New("bid amount must be higher than current bid")
	ErrInvalidBid       = errors.New("invalid bid")
)

// 儲存層錯誤
var (
	ErrRevisionConflict  = errors.New("listing revision conflict")
	ErrListingExists     = errors.New("listing already exists")
	ErrNoBids            = errors.New("no bids found for listing")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidListing    = errors.New("invalid listing")
)

var ErrNotificationNotFound = errors.New("notification not found")

// Reason 是對外回報的出價拒絕原因
type Reason string

const (
	ReasonNotFound         Reason = "NotFound"
	ReasonAuctionNotActive Reason = "AuctionNotActive"
	ReasonSelfBidForbidden Reason = "SelfBidForbidden"
	ReasonBidTooLow        Reason = "BidTooLow"
)

// ReasonOf 將出價錯誤轉換成拒絕原因，非拒絕類錯誤回傳 false
func ReasonOf(err error) (Reason, bool) {
	switch {
	case errors.Is(err, ErrListingNotFound):
		return ReasonNotFound, true
	case errors.Is(err, ErrAuctionNotActive):
		return ReasonAuctionNotActive, true
	case errors.Is(err, ErrSelfBid):
		return ReasonSelfBidForbidden, true
	case errors.Is(err, ErrBidTooLow):
		return ReasonBidTooLow, true
	}
	return "", false
}
