package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

// Draft 是建立拍賣商品所需的資料
type Draft struct {
	SellerID   string
	Title      string
	StartPrice decimal.Decimal
	StartTime  time.Time
	EndTime    time.Time
}

type registryOptions struct {
	logger *slog.Logger
	idFunc func() string
}

type RegistryOption func(*registryOptions)

// WithRegistryLogger 設置日誌記錄器
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

// WithRegistryIDFunc 設置拍賣商品 ID 產生函數
func WithRegistryIDFunc(fn func() string) RegistryOption {
	return func(o *registryOptions) {
		o.idFunc = fn
	}
}

// Registry 負責拍賣商品的建立與外部流程觸發的狀態轉換 (審核拒絕、結算完成)
type Registry struct {
	store       IListingStore
	htmlChecker *bluemonday.Policy
	logger      *slog.Logger
	options     registryOptions
}

func NewRegistry(store IListingStore, opts ...RegistryOption) (*Registry, error) {
	if store == nil {
		return nil, errors.New("listing store cannot be nil")
	}

	// 默認選項
	options := registryOptions{
		logger: slog.Default(),
		idFunc: uuid.NewString,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &Registry{
		store:       store,
		htmlChecker: bluemonday.StrictPolicy(),
		logger:      options.logger.With(slog.String("caller", "Registry")),
		options:     options,
	}, nil
}

// Create 建立 pending 狀態的拍賣商品，currentBid 初始為 startPrice
func (r *Registry) Create(ctx context.Context, draft Draft) (Listing, error) {
	const op = "Registry.Create"

	title := strings.TrimSpace(r.htmlChecker.Sanitize(draft.Title))
	switch {
	case draft.SellerID == "":
		return Listing{}, fmt.Errorf("%w: seller id is required", ErrInvalidListing)
	case title == "":
		return Listing{}, fmt.Errorf("%w: title is required", ErrInvalidListing)
	case !draft.StartPrice.IsPositive():
		return Listing{}, fmt.Errorf("%w: start price must be positive", ErrInvalidListing)
	case draft.StartTime.IsZero() || draft.EndTime.IsZero():
		return Listing{}, fmt.Errorf("%w: start and end time are required", ErrInvalidListing)
	case !draft.EndTime.After(draft.StartTime):
		return Listing{}, fmt.Errorf("%w: end time must be after start time", ErrInvalidListing)
	}

	listing := Listing{
		ID:         r.options.idFunc(),
		SellerID:   draft.SellerID,
		Title:      title,
		StartPrice: draft.StartPrice,
		CurrentBid: draft.StartPrice,
		StartTime:  draft.StartTime.UTC(),
		EndTime:    draft.EndTime.UTC(),
		Status:     StatusPending,
		Revision:   1,
	}
	if err := r.store.Create(ctx, listing); err != nil {
		return Listing{}, fmt.Errorf("[%s] Fail to create listing, err=%w", op, err)
	}
	r.logger.Info("listing created",
		slog.String("listingId", listing.ID),
		slog.String("sellerId", listing.SellerID),
		slog.Time("startTime", listing.StartTime),
		slog.Time("endTime", listing.EndTime))
	return listing, nil
}

// Get 取得拍賣商品
func (r *Registry) Get(ctx context.Context, id string) (Listing, error) {
	return r.store.Get(ctx, id)
}

// Reject 由審核流程拒絕 pending 的拍賣商品
func (r *Registry) Reject(ctx context.Context, id, reason string) (Listing, error) {
	reason = strings.TrimSpace(r.htmlChecker.Sanitize(reason))
	return r.transition(ctx, id, StatusRejected, func(l *Listing) {
		l.RejectionReason = reason
	})
}

// Complete 由結算流程將已結束的拍賣商品標記為完成
func (r *Registry) Complete(ctx context.Context, id string) (Listing, error) {
	return r.transition(ctx, id, StatusCompleted, nil)
}

// transition 以條件式更新套用外部觸發的狀態轉換
// 與排程器或出價競爭時會重新讀取，轉換不再合法時回傳 ErrInvalidTransition
func (r *Registry) transition(ctx context.Context, id string, to Status, mutate func(*Listing)) (Listing, error) {
	const op = "Registry.transition"
	for attempt := 0; attempt <= bidRetries; attempt++ {
		listing, err := r.store.Get(ctx, id)
		if err != nil {
			return Listing{}, err
		}
		next, err := listing.Advance(to)
		if err != nil {
			return Listing{}, err
		}
		if mutate != nil {
			mutate(&next)
		}
		err = r.store.ConditionalUpdate(ctx, Update{ExpectedRevision: listing.Revision, Listing: next})
		if errors.Is(err, ErrRevisionConflict) {
			continue
		}
		if err != nil {
			return Listing{}, fmt.Errorf("[%s] Fail to update listing, err=%w", op, err)
		}
		r.logger.Info("listing transitioned",
			slog.String("listingId", id),
			slog.String("from", string(listing.Status)),
			slog.String("to", string(to)))
		return next, nil
	}
	return Listing{}, fmt.Errorf("[%s] %w", op, ErrRevisionConflict)
}
