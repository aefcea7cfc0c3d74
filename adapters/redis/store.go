package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"vendue/auction"
)

// Store 以 Redis hash 儲存拍賣商品，以 stream 儲存出價帳本
// 實現了 auction.IListingStore 與 auction.IBidLedger
type Store struct {
	client  *redis.Client
	keys    Keys
	logger  *slog.Logger
	options StoreOptions
}

// StoreOptions 定義了 Store 的配置選項
type StoreOptions struct {
	Prefix string
	Logger *slog.Logger
}

type StoreOption func(*StoreOptions)

// WithStorePrefix 設定 Store 的 key 前綴
func WithStorePrefix(prefix string) StoreOption {
	return func(o *StoreOptions) {
		o.Prefix = prefix
	}
}

// WithStoreLogger 設定日誌記錄器
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(o *StoreOptions) {
		o.Logger = logger
	}
}

// NewStore 建立一個新的 Store 實例
func NewStore(client *redis.Client, opts ...StoreOption) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	options := &StoreOptions{Prefix: "vendue:", Logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	return &Store{
		client:  client,
		keys:    Keys{Prefix: options.Prefix},
		logger:  options.Logger.With(slog.String("caller", "RedisStore")),
		options: *options,
	}, nil
}

// Keys 回傳 Store 使用的 key 配置
func (s *Store) Keys() Keys {
	return s.keys
}

// Get 讀取拍賣商品
func (s *Store) Get(ctx context.Context, id string) (auction.Listing, error) {
	const op = "redis.Store.Get"
	fields, err := s.client.HGetAll(ctx, s.keys.Listing(id)).Result()
	if err != nil {
		return auction.Listing{}, fmt.Errorf("%s: failed to get hash: %w", op, err)
	}
	// Redis returns empty map when key doesn't exist
	if len(fields) == 0 {
		return auction.Listing{}, auction.ErrListingNotFound
	}
	listing, err := decodeListing(fields)
	if err != nil {
		return auction.Listing{}, fmt.Errorf("%s: failed to decode listing %s: %w", op, id, err)
	}
	return listing, nil
}

// Create 建立拍賣商品
func (s *Store) Create(ctx context.Context, listing auction.Listing) error {
	const op = "redis.Store.Create"
	if listing.ID == "" {
		return fmt.Errorf("%w: empty id", auction.ErrInvalidListing)
	}
	args := []any{
		listing.ID,
		string(listing.Status),
		listing.StartTime.UnixMilli(),
		listing.EndTime.UnixMilli(),
	}
	args = append(args, encodeListing(listing)...)

	created, err := CreateScript.Run(ctx, s.client,
		[]string{s.keys.Listing(listing.ID), s.keys.DueStart(), s.keys.DueEnd()},
		args...,
	).Int()
	if err != nil {
		return fmt.Errorf("%s: failed to execute create script: %w", op, err)
	}
	if created == 0 {
		return auction.ErrListingExists
	}
	return nil
}

// ConditionalUpdate 在同一個 Lua 腳本中比對 revision、更新 hash、追加出價並維護到期索引
func (s *Store) ConditionalUpdate(ctx context.Context, update auction.Update) error {
	const op = "redis.Store.ConditionalUpdate"
	listing := update.Listing

	payload := ""
	if update.Bid != nil {
		encoded, err := encodePayload(NewBidRecord(*update.Bid))
		if err != nil {
			return fmt.Errorf("%s: failed to encode bid: %w", op, err)
		}
		payload = encoded
	}

	args := []any{
		update.ExpectedRevision,
		listing.ID,
		string(listing.Status),
		listing.StartTime.UnixMilli(),
		listing.EndTime.UnixMilli(),
		payload,
	}
	args = append(args, encodeListing(listing)...)

	result, err := ConditionalUpdateScript.Run(ctx, s.client,
		[]string{
			s.keys.Listing(listing.ID),
			s.keys.DueStart(),
			s.keys.DueEnd(),
			s.keys.Ledger(listing.ID),
			s.keys.Bids(),
		},
		args...,
	).Int()
	if err != nil {
		return fmt.Errorf("%s: failed to execute update script: %w", op, err)
	}
	switch result {
	case -1:
		return auction.ErrListingNotFound
	case 0:
		return auction.ErrRevisionConflict
	}
	return nil
}

// ListDue 從到期索引中取出 boundary 時間 <= at 的拍賣商品
// 索引以毫秒為單位，精確的時間判斷由排程器負責
func (s *Store) ListDue(ctx context.Context, status auction.Status, boundary auction.Boundary, at time.Time, limit int) ([]auction.Listing, error) {
	const op = "redis.Store.ListDue"
	index := s.keys.DueStart()
	if boundary == auction.BoundaryEnd {
		index = s.keys.DueEnd()
	}

	ids, err := s.client.ZRangeByScore(ctx, index, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(at.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to range index: %w", op, err)
	}
	if len(ids) == 0 {
		return []auction.Listing{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := lo.Map(ids, func(id string, _ int) *redis.MapStringStringCmd {
		return pipe.HGetAll(ctx, s.keys.Listing(id))
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%s: failed to load listings: %w", op, err)
	}

	listings := make([]auction.Listing, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		listing, err := decodeListing(fields)
		if err != nil {
			// 損壞的資料留在索引中，不影響同一批的其他拍賣商品
			s.logger.Error("skip undecodable listing",
				slog.String("listingId", ids[i]),
				slog.Any("error", err))
			continue
		}
		if listing.Status != status {
			continue
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// Latest 讀取帳本中最新的一筆出價
func (s *Store) Latest(ctx context.Context, listingID string) (auction.Bid, error) {
	const op = "redis.Store.Latest"
	messages, err := s.client.XRevRangeN(ctx, s.keys.Ledger(listingID), "+", "-", 1).Result()
	if err != nil {
		return auction.Bid{}, fmt.Errorf("%s: failed to read ledger: %w", op, err)
	}
	if len(messages) == 0 {
		return auction.Bid{}, auction.ErrNoBids
	}
	return decodeBid(messages[0])
}

// List 依寫入順序列出帳本中的所有出價
func (s *Store) List(ctx context.Context, listingID string) ([]auction.Bid, error) {
	const op = "redis.Store.List"
	messages, err := s.client.XRange(ctx, s.keys.Ledger(listingID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read ledger: %w", op, err)
	}
	bids := make([]auction.Bid, 0, len(messages))
	for _, message := range messages {
		bid, err := decodeBid(message)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		bids = append(bids, bid)
	}
	return bids, nil
}

func decodeBid(message redis.XMessage) (auction.Bid, error) {
	bid, err := BidFromMessage(message.Values)
	if err != nil {
		return auction.Bid{}, fmt.Errorf("failed to decode bid %s: %w", message.ID, err)
	}
	return bid, nil
}

// hash 欄位
const (
	fieldID              = "id"
	fieldSellerID        = "seller_id"
	fieldTitle           = "title"
	fieldStartPrice      = "start_price"
	fieldCurrentBid      = "current_bid"
	fieldHighestBidderID = "highest_bidder_id"
	fieldStartTime       = "start_time"
	fieldEndTime         = "end_time"
	fieldStatus          = "status"
	fieldWinnerID        = "winner_id"
	fieldBidCount        = "bid_count"
	fieldRevision        = "revision"
	fieldRejection       = "rejection_reason"
)

func encodeListing(l auction.Listing) []any {
	return []any{
		fieldID, l.ID,
		fieldSellerID, l.SellerID,
		fieldTitle, l.Title,
		fieldStartPrice, l.StartPrice.String(),
		fieldCurrentBid, l.CurrentBid.String(),
		fieldHighestBidderID, l.HighestBidderID,
		fieldStartTime, strconv.FormatInt(l.StartTime.UnixNano(), 10),
		fieldEndTime, strconv.FormatInt(l.EndTime.UnixNano(), 10),
		fieldStatus, string(l.Status),
		fieldWinnerID, l.WinnerID,
		fieldBidCount, strconv.FormatInt(l.BidCount, 10),
		fieldRevision, strconv.FormatInt(l.Revision, 10),
		fieldRejection, l.RejectionReason,
	}
}

func decodeListing(fields map[string]string) (auction.Listing, error) {
	startPrice, err := decimal.NewFromString(fields[fieldStartPrice])
	if err != nil {
		return auction.Listing{}, fmt.Errorf("start_price: %w", err)
	}
	currentBid, err := decimal.NewFromString(fields[fieldCurrentBid])
	if err != nil {
		return auction.Listing{}, fmt.Errorf("current_bid: %w", err)
	}
	startTime, err := parseUnixNano(fields[fieldStartTime])
	if err != nil {
		return auction.Listing{}, fmt.Errorf("start_time: %w", err)
	}
	endTime, err := parseUnixNano(fields[fieldEndTime])
	if err != nil {
		return auction.Listing{}, fmt.Errorf("end_time: %w", err)
	}
	bidCount, err := strconv.ParseInt(fields[fieldBidCount], 10, 64)
	if err != nil {
		return auction.Listing{}, fmt.Errorf("bid_count: %w", err)
	}
	revision, err := strconv.ParseInt(fields[fieldRevision], 10, 64)
	if err != nil {
		return auction.Listing{}, fmt.Errorf("revision: %w", err)
	}
	status := auction.Status(fields[fieldStatus])
	if !status.Valid() {
		return auction.Listing{}, fmt.Errorf("unknown status %q", status)
	}

	return auction.Listing{
		ID:              fields[fieldID],
		SellerID:        fields[fieldSellerID],
		Title:           fields[fieldTitle],
		StartPrice:      startPrice,
		CurrentBid:      currentBid,
		HighestBidderID: fields[fieldHighestBidderID],
		StartTime:       startTime,
		EndTime:         endTime,
		Status:          status,
		WinnerID:        fields[fieldWinnerID],
		BidCount:        bidCount,
		Revision:        revision,
		RejectionReason: fields[fieldRejection],
	}, nil
}

func parseUnixNano(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
