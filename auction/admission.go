package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// bidRetries 是 revision 衝突時重新檢查並重試的次數
const bidRetries = 1

type controllerOptions struct {
	logger *slog.Logger
	idFunc func() string
}

type ControllerOption func(*controllerOptions)

// WithControllerLogger 設置日誌記錄器
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(o *controllerOptions) {
		o.logger = logger
	}
}

// WithControllerIDFunc 設置出價 ID 產生函數 (主要用於測試)
func WithControllerIDFunc(fn func() string) ControllerOption {
	return func(o *controllerOptions) {
		o.idFunc = fn
	}
}

// Controller 是出價的唯一入口
// 出價的檢查與寫入透過 IListingStore.ConditionalUpdate 以 revision 做樂觀鎖
type Controller struct {
	store      IListingStore
	dispatcher *Dispatcher
	logger     *slog.Logger
	options    controllerOptions
}

func NewController(store IListingStore, dispatcher *Dispatcher, opts ...ControllerOption) (*Controller, error) {
	if store == nil {
		return nil, errors.New("listing store cannot be nil")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher cannot be nil")
	}

	// 默認選項
	options := controllerOptions{
		logger: slog.Default(),
		idFunc: uuid.NewString,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &Controller{
		store:      store,
		dispatcher: dispatcher,
		logger:     options.logger.With(slog.String("caller", "Controller")),
		options:    options,
	}, nil
}

// PlaceBid 對拍賣商品出價
//
// 流程:
//   - 1. 讀取拍賣商品
//   - 2. 依序檢查: 商品存在、拍賣進行中、非賣家本人、金額高於目前出價
//   - 3. 以讀到的 revision 做條件式更新，同時寫入出價帳本
//   - 4a. 更新成功，送出通知並回傳
//   - 4b. revision 衝突，重新讀取並重試一次，仍然衝突則回傳 ErrBidTooLow
func (c *Controller) PlaceBid(ctx context.Context, listingID, bidderID string, amount decimal.Decimal, now time.Time) (Receipt, error) {
	const op = "Controller.PlaceBid"
	if listingID == "" || bidderID == "" {
		return Receipt{}, fmt.Errorf("%w: missing listing or bidder id", ErrInvalidBid)
	}

	bid := Bid{
		ID:         c.options.idFunc(),
		ListingID:  listingID,
		BidderID:   bidderID,
		Amount:     amount,
		AcceptedAt: now.UTC(),
	}
	for attempt := 0; attempt <= bidRetries; attempt++ {
		listing, err := c.store.Get(ctx, listingID)
		if errors.Is(err, ErrListingNotFound) {
			return Receipt{}, err
		}
		if err != nil {
			return Receipt{}, fmt.Errorf("[%s] Fail to get listing, listing=%s, err=%w", op, listingID, err)
		}
		if err := checkBid(listing, bidderID, amount, now); err != nil {
			c.logger.Debug("bid rejected",
				slog.String("listingId", listingID),
				slog.String("bidderId", bidderID),
				slog.String("amount", amount.String()),
				slog.Int("attempt", attempt),
				slog.Any("reason", err))
			return Receipt{}, err
		}

		next := listing
		next.CurrentBid = amount
		next.HighestBidderID = bidderID
		next.BidCount = listing.BidCount + 1
		next.Revision = listing.Revision + 1
		err = c.store.ConditionalUpdate(ctx, Update{
			ExpectedRevision: listing.Revision,
			Listing:          next,
			Bid:              &bid,
		})
		if errors.Is(err, ErrRevisionConflict) {
			c.logger.Debug("bid lost race, re-evaluating",
				slog.String("listingId", listingID),
				slog.Int64("revision", listing.Revision),
				slog.Int("attempt", attempt))
			continue
		}
		if errors.Is(err, ErrListingNotFound) {
			return Receipt{}, err
		}
		if err != nil {
			return Receipt{}, fmt.Errorf("[%s] Fail to apply bid, listing=%s, err=%w", op, listingID, err)
		}

		c.logger.Info("Higher bid occurs",
			slog.String("listingId", listingID),
			slog.String("bidderId", bidderID),
			slog.String("amount", amount.String()),
			slog.Int64("revision", next.Revision))
		c.dispatcher.Dispatch(bidNotifications(listing.HighestBidderID, next, bid)...)
		return Receipt{
			Bid:        bid,
			CurrentBid: next.CurrentBid,
			BidCount:   next.BidCount,
		}, nil
	}
	return Receipt{}, fmt.Errorf("%w: concurrent bids kept winning", ErrBidTooLow)
}

// checkBid 依規定順序檢查出價條件
func checkBid(listing Listing, bidderID string, amount decimal.Decimal, now time.Time) error {
	if !listing.Admits(now) {
		return fmt.Errorf("%w: status=%s", ErrAuctionNotActive, listing.Status)
	}
	if bidderID == listing.SellerID {
		return ErrSelfBid
	}
	if !amount.GreaterThan(listing.CurrentBid) {
		return fmt.Errorf("%w: current bid is %s", ErrBidTooLow, listing.CurrentBid.String())
	}
	return nil
}
