package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"beacon/internal/audit"
	id "beacon/pkg/domain"
)

// InMemoryStore keeps ledger entries per tenant for unit tests and local
// development. Entries are stored and returned by value so callers cannot
// reach into the ledger and mutate history.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.TenantID][]audit.Entry
	epochs  map[epochKey]struct{}
	offsets map[string]int64
	nextSeq int64
}

type epochKey struct {
	tenant  id.TenantID
	subject string
	action  audit.Action
	epoch   string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[id.TenantID][]audit.Entry),
		epochs:  make(map[epochKey]struct{}),
		offsets: make(map[string]int64),
	}
}

func (s *InMemoryStore) Append(_ context.Context, entry *audit.Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.EpochToken != "" {
		key := epochKey{
			tenant:  entry.TenantID,
			subject: entry.SubjectID.String(),
			action:  entry.Action,
			epoch:   entry.EpochToken,
		}
		if _, dup := s.epochs[key]; dup {
			return false, nil
		}
		s.epochs[key] = struct{}{}
	}

	s.nextSeq++
	entry.Seq = s.nextSeq

	stored := *entry
	stored.BeforeState = append([]byte(nil), entry.BeforeState...)
	stored.AfterState = append([]byte(nil), entry.AfterState...)
	s.entries[entry.TenantID] = append(s.entries[entry.TenantID], stored)
	return true, nil
}

func (s *InMemoryStore) Query(_ context.Context, tenantID id.TenantID, filter audit.Filter, cursor string, limit int) (audit.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	afterSeq, err := parseCursor(cursor)
	if err != nil {
		return audit.Page{}, err
	}

	var page audit.Page
	for _, entry := range s.entries[tenantID] {
		if entry.Seq <= afterSeq || !matches(entry, filter) {
			continue
		}
		if len(page.Entries) == limit {
			page.NextCursor = strconv.FormatInt(page.Entries[limit-1].Seq, 10)
			return page, nil
		}
		copied := entry
		copied.BeforeState = append([]byte(nil), entry.BeforeState...)
		copied.AfterState = append([]byte(nil), entry.AfterState...)
		page.Entries = append(page.Entries, copied)
	}
	return page, nil
}

// ListAfterSeq returns entries across all tenants in sequence order, for the
// stream relay worker.
func (s *InMemoryStore) ListAfterSeq(_ context.Context, afterSeq int64, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []audit.Entry
	for _, tenantEntries := range s.entries {
		for _, entry := range tenantEntries {
			if entry.Seq > afterSeq {
				result = append(result, entry)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// StreamOffset returns the named consumer's relay cursor.
func (s *InMemoryStore) StreamOffset(_ context.Context, consumer string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offsets[consumer], nil
}

// SetStreamOffset advances the named consumer's relay cursor.
func (s *InMemoryStore) SetStreamOffset(_ context.Context, consumer string, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets[consumer] = seq
	return nil
}

func matches(entry audit.Entry, filter audit.Filter) bool {
	if filter.SubjectType != "" && entry.SubjectType != filter.SubjectType {
		return false
	}
	if filter.SubjectID != nil && entry.SubjectID != *filter.SubjectID {
		return false
	}
	if filter.Action != "" && entry.Action != filter.Action {
		return false
	}
	if filter.From != nil && entry.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && entry.CreatedAt.After(*filter.To) {
		return false
	}
	return true
}

func parseCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	return strconv.ParseInt(cursor, 10, 64)
}
