package memory

import (
	"context"
	"slices"
	"sync"

	"vendue/auction"
)

// Inbox 是單一程序內的通知收件匣
type Inbox struct {
	mu      sync.RWMutex
	seen    map[string]struct{}
	entries map[string][]*auction.InboxEntry // userID -> 依寫入順序
}

func NewInbox() *Inbox {
	return &Inbox{
		seen:    make(map[string]struct{}),
		entries: make(map[string][]*auction.InboxEntry),
	}
}

// Send 保存通知，重複的通知 ID 會被忽略
func (i *Inbox) Send(ctx context.Context, n auction.Notification) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.seen[n.ID]; ok {
		return nil
	}
	i.seen[n.ID] = struct{}{}
	i.entries[n.UserID] = append(i.entries[n.UserID], &auction.InboxEntry{Notification: n})
	return nil
}

func (i *Inbox) List(ctx context.Context, userID string, query auction.InboxQuery) (auction.InboxPage, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	page := auction.InboxPage{Entries: []auction.InboxEntry{}}
	all := i.entries[userID]
	matched := make([]auction.InboxEntry, 0, len(all))
	for _, e := range all {
		if !e.Read {
			page.Unread++
		}
		if query.UnreadOnly && e.Read {
			continue
		}
		matched = append(matched, *e)
	}
	// 由新到舊，同一時間以寫入順序倒序
	slices.Reverse(matched)
	slices.SortStableFunc(matched, func(a, b auction.InboxEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	page.Total = int64(len(matched))

	offset := max(query.Offset, 0)
	if offset >= len(matched) {
		return page, nil
	}
	matched = matched[offset:]
	if query.Limit > 0 && query.Limit < len(matched) {
		matched = matched[:query.Limit]
	}
	page.Entries = matched
	return page, nil
}

func (i *Inbox) MarkRead(ctx context.Context, userID, notificationID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, e := range i.entries[userID] {
		if e.ID == notificationID {
			e.Read = true
			return nil
		}
	}
	return auction.ErrNotificationNotFound
}

func (i *Inbox) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	var updated int64
	for _, e := range i.entries[userID] {
		if !e.Read {
			e.Read = true
			updated++
		}
	}
	return updated, nil
}
