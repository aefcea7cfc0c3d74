package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

func notificationID(listing Listing, kind NotificationType, userID string) string {
	return fmt.Sprintf("%s:%d:%s:%s", listing.ID, listing.Revision, kind, userID)
}

func newNotification(listing Listing, kind NotificationType, userID, relatedUserID, title, message string, at time.Time) Notification {
	return Notification{
		ID:            notificationID(listing, kind, userID),
		UserID:        userID,
		Type:          kind,
		ListingID:     listing.ID,
		RelatedUserID: relatedUserID,
		Amount:        listing.CurrentBid.String(),
		Title:         title,
		Message:       message,
		CreatedAt:     at,
	}
}

// bidNotifications 產生出價成功後的通知，listing 為出價後的狀態
func bidNotifications(previousBidderID string, listing Listing, bid Bid) []Notification {
	notifications := make([]Notification, 0, 2)
	if previousBidderID != "" && previousBidderID != bid.BidderID {
		notifications = append(notifications, newNotification(listing, NotificationBidOutbid, previousBidderID, bid.BidderID,
			"You've been outbid!",
			fmt.Sprintf("Your bid on %q has been outbid. Current bid: %s", listing.Title, bid.Amount.String()),
			bid.AcceptedAt))
	}
	notifications = append(notifications, newNotification(listing, NotificationBidPlaced, listing.SellerID, bid.BidderID,
		"New Bid Placed",
		fmt.Sprintf("A new bid of %s has been placed on %q", bid.Amount.String(), listing.Title),
		bid.AcceptedAt))
	return notifications
}

// startNotifications 產生拍賣開始的通知 (僅供顯示用途)
func startNotifications(listing Listing, at time.Time) []Notification {
	return []Notification{
		newNotification(listing, NotificationAuctionStarted, listing.SellerID, "",
			"Auction Started",
			fmt.Sprintf("Your auction %q is now open for bidding", listing.Title),
			at),
	}
}

// endNotifications 產生拍賣結束的通知，listing 為結束後的狀態
func endNotifications(listing Listing, at time.Time) []Notification {
	if listing.WinnerID == "" {
		return []Notification{
			newNotification(listing, NotificationAuctionEnded, listing.SellerID, "",
				"Auction Ended - No Bids",
				fmt.Sprintf("Your auction %q has ended with no bids", listing.Title),
				at),
		}
	}
	return []Notification{
		newNotification(listing, NotificationAuctionWon, listing.WinnerID, listing.SellerID,
			"Auction Won!",
			fmt.Sprintf("Congratulations! You won the auction for %q with a bid of %s", listing.Title, listing.CurrentBid.String()),
			at),
		newNotification(listing, NotificationAuctionEnded, listing.SellerID, listing.WinnerID,
			"Auction Ended",
			fmt.Sprintf("Your auction %q has ended. Winner: %s", listing.Title, listing.WinnerID),
			at),
	}
}

// LogSink 只將通知寫入日誌
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With(slog.String("caller", "LogSink"))}
}

func (s *LogSink) Send(ctx context.Context, n Notification) error {
	s.logger.InfoContext(ctx, "notification",
		slog.String("id", n.ID),
		slog.String("userId", n.UserID),
		slog.String("type", string(n.Type)),
		slog.String("listingId", n.ListingID),
		slog.String("message", n.Message))
	return nil
}

// MultiSink 依序送往所有接收端，單一接收端失敗不會影響其他接收端
type MultiSink []INotificationSink

func (m MultiSink) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
