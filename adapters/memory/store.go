package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"vendue/auction"
)

// Store 是單一程序內的拍賣商品儲存與出價帳本
// 條件式更新與帳本追加在同一把鎖內完成
type Store struct {
	mu       sync.RWMutex
	listings map[string]auction.Listing
	bids     map[string][]auction.Bid
}

func NewStore() *Store {
	return &Store{
		listings: make(map[string]auction.Listing),
		bids:     make(map[string][]auction.Bid),
	}
}

func (s *Store) Get(ctx context.Context, id string) (auction.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listing, ok := s.listings[id]
	if !ok {
		return auction.Listing{}, auction.ErrListingNotFound
	}
	return listing, nil
}

func (s *Store) Create(ctx context.Context, listing auction.Listing) error {
	if listing.ID == "" {
		return fmt.Errorf("%w: empty id", auction.ErrInvalidListing)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[listing.ID]; ok {
		return auction.ErrListingExists
	}
	s.listings[listing.ID] = listing
	return nil
}

func (s *Store) ConditionalUpdate(ctx context.Context, update auction.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.listings[update.Listing.ID]
	if !ok {
		return auction.ErrListingNotFound
	}
	if current.Revision != update.ExpectedRevision {
		return auction.ErrRevisionConflict
	}
	if update.Bid != nil {
		s.bids[update.Listing.ID] = append(s.bids[update.Listing.ID], *update.Bid)
	}
	s.listings[update.Listing.ID] = update.Listing
	return nil
}

func (s *Store) ListDue(ctx context.Context, status auction.Status, boundary auction.Boundary, at time.Time, limit int) ([]auction.Listing, error) {
	s.mu.RLock()
	due := make([]auction.Listing, 0)
	for _, listing := range s.listings {
		if listing.Status == status && !boundaryOf(listing, boundary).After(at) {
			due = append(due, listing)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(due, func(a, b auction.Listing) int {
		return boundaryOf(a, boundary).Compare(boundaryOf(b, boundary))
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) Latest(ctx context.Context, listingID string) (auction.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bids := s.bids[listingID]
	if len(bids) == 0 {
		return auction.Bid{}, auction.ErrNoBids
	}
	return bids[len(bids)-1], nil
}

func (s *Store) List(ctx context.Context, listingID string) ([]auction.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.bids[listingID]), nil
}

func boundaryOf(listing auction.Listing, boundary auction.Boundary) time.Time {
	if boundary == auction.BoundaryEnd {
		return listing.EndTime
	}
	return listing.StartTime
}
