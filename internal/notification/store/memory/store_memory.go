package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"beacon/internal/notification"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

// InMemoryStore keeps notifications per tenant for unit tests and local
// development. It enforces the same epoch uniqueness and audience visibility
// rules as the Postgres store.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[id.TenantID][]notification.Notification
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[id.TenantID][]notification.Notification)}
}

func (s *InMemoryStore) Create(_ context.Context, n *notification.Notification) (*notification.Notification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rows[n.TenantID] {
		existing := &s.rows[n.TenantID][i]
		if existing.SubjectID == n.SubjectID && existing.Kind == n.Kind && existing.EpochToken == n.EpochToken {
			copied := *existing
			return &copied, false, nil
		}
	}

	stored := *n
	s.rows[n.TenantID] = append(s.rows[n.TenantID], stored)
	copied := stored
	return &copied, true, nil
}

func (s *InMemoryStore) MarkRead(_ context.Context, tenantID id.TenantID, actorID id.ActorID, notificationID uuid.UUID, readAt time.Time) (*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rows[tenantID] {
		row := &s.rows[tenantID][i]
		if row.ID != notificationID || !visibleTo(*row, actorID) {
			continue
		}
		if !row.IsRead {
			row.IsRead = true
			at := readAt
			row.ReadAt = &at
		}
		copied := *row
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context, tenantID id.TenantID, actorID id.ActorID, filter notification.Filter, page notification.PageRequest) ([]notification.Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []notification.Notification
	for _, row := range s.rows[tenantID] {
		if !visibleTo(row, actorID) {
			continue
		}
		if filter.IsRead != nil && row.IsRead != *filter.IsRead {
			continue
		}
		matched = append(matched, row)
	}
	// Newest first, ties broken by ID for a stable order.
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	total := len(matched)
	if page.Offset >= total {
		return nil, total, nil
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	return append([]notification.Notification(nil), matched[page.Offset:end]...), total, nil
}

func (s *InMemoryStore) UnreadCount(_ context.Context, tenantID id.TenantID, actorID id.ActorID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, row := range s.rows[tenantID] {
		if visibleTo(row, actorID) && !row.IsRead {
			count++
		}
	}
	return count, nil
}

func visibleTo(n notification.Notification, actorID id.ActorID) bool {
	if n.Audience.IsTenantWide() {
		return true
	}
	target, _ := n.Audience.Actor()
	return target == actorID
}
