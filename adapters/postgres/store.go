package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vendue/auction"
	"vendue/models"
)

// Store 以關聯式資料庫儲存拍賣商品與出價帳本
// 實現了 auction.IListingStore 與 auction.IBidLedger
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	return &Store{db: db}, nil
}

// Migrate 建立或更新資料表
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&models.Listing{}, &models.Bid{}, &models.Notification{}); err != nil {
		return fmt.Errorf("postgres.Migrate: failed to migrate: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (auction.Listing, error) {
	const op = "postgres.Store.Get"
	var listing models.Listing
	if result := s.db.WithContext(ctx).First(&listing, "id = ?", id); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return auction.Listing{}, auction.ErrListingNotFound
		}
		return auction.Listing{}, fmt.Errorf("%s: failed to find listing: %w", op, result.Error)
	}
	return listing.Auction(), nil
}

func (s *Store) Create(ctx context.Context, listing auction.Listing) error {
	const op = "postgres.Store.Create"
	if listing.ID == "" {
		return fmt.Errorf("%w: empty id", auction.ErrInvalidListing)
	}
	record := models.NewListing(listing)
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		return fmt.Errorf("%s: failed to create listing: %w", op, result.Error)
	}
	if result.RowsAffected == 0 {
		return auction.ErrListingExists
	}
	return nil
}

// ConditionalUpdate 在同一個交易中以 revision 條件更新拍賣商品並寫入出價
func (s *Store) ConditionalUpdate(ctx context.Context, update auction.Update) error {
	const op = "postgres.Store.ConditionalUpdate"
	record := models.NewListing(update.Listing)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Listing{}).
			Where("id = ? AND revision = ?", record.ID, update.ExpectedRevision).
			Updates(record.Columns())
		if result.Error != nil {
			return fmt.Errorf("failed to update listing: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Listing{}).Where("id = ?", record.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check listing: %w", err)
			}
			if count == 0 {
				return auction.ErrListingNotFound
			}
			return auction.ErrRevisionConflict
		}

		if update.Bid != nil {
			bid := models.NewBid(*update.Bid)
			if err := tx.Create(&bid).Error; err != nil {
				return fmt.Errorf("failed to append bid: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, auction.ErrListingNotFound) || errors.Is(err, auction.ErrRevisionConflict) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) ListDue(ctx context.Context, status auction.Status, boundary auction.Boundary, at time.Time, limit int) ([]auction.Listing, error) {
	const op = "postgres.Store.ListDue"
	column := "start_time"
	if boundary == auction.BoundaryEnd {
		column = "end_time"
	}

	var rows []models.Listing
	query := s.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Where(column+" <= ?", at).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}})
	if limit > 0 {
		query = query.Limit(limit)
	}
	if result := query.Find(&rows); result.Error != nil {
		return nil, fmt.Errorf("%s: failed to list due listings: %w", op, result.Error)
	}

	listings := make([]auction.Listing, len(rows))
	for i, row := range rows {
		listings[i] = row.Auction()
	}
	return listings, nil
}

func (s *Store) Latest(ctx context.Context, listingID string) (auction.Bid, error) {
	const op = "postgres.Store.Latest"
	var bid models.Bid
	result := s.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "seq"}, Desc: true}).
		First(&bid)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return auction.Bid{}, auction.ErrNoBids
		}
		return auction.Bid{}, fmt.Errorf("%s: failed to find latest bid: %w", op, result.Error)
	}
	return bid.Auction(), nil
}

func (s *Store) List(ctx context.Context, listingID string) ([]auction.Bid, error) {
	const op = "postgres.Store.List"
	var rows []models.Bid
	result := s.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "seq"}}).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("%s: failed to list bids: %w", op, result.Error)
	}
	bids := make([]auction.Bid, len(rows))
	for i, row := range rows {
		bids[i] = row.Auction()
	}
	return bids, nil
}
