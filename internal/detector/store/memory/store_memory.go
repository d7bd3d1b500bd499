package memory

import (
	"context"
	"sync"
	"time"

	"beacon/internal/detector"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

type watermarkKey struct {
	tenantID   id.TenantID
	entityType string
}

// WatermarkStore is the in-memory detector.WatermarkStore used by unit tests
// and local runs without Postgres.
type WatermarkStore struct {
	mu         sync.Mutex
	watermarks map[watermarkKey]detector.Watermark
}

func NewWatermarkStore() *WatermarkStore {
	return &WatermarkStore{watermarks: make(map[watermarkKey]detector.Watermark)}
}

func (s *WatermarkStore) AcquireLease(_ context.Context, tenantID id.TenantID, entityType, owner string, ttl time.Duration, now time.Time) (*detector.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := watermarkKey{tenantID: tenantID, entityType: entityType}
	wm, ok := s.watermarks[key]
	if !ok {
		wm = detector.Watermark{TenantID: tenantID, EntityType: entityType}
	}

	if wm.LeaseOwner != "" && wm.LeaseOwner != owner && wm.LeaseExpiresAt.After(now) {
		return nil, sentinel.ErrLeaseHeld
	}

	wm.LeaseOwner = owner
	wm.LeaseExpiresAt = now.Add(ttl)
	s.watermarks[key] = wm

	out := wm
	return &out, nil
}

func (s *WatermarkStore) CompleteScan(_ context.Context, tenantID id.TenantID, entityType, owner string, scannedThrough time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := watermarkKey{tenantID: tenantID, entityType: entityType}
	wm, ok := s.watermarks[key]
	if !ok || wm.LeaseOwner != owner {
		return sentinel.ErrLeaseHeld
	}

	wm.LastScannedAt = scannedThrough
	wm.LeaseOwner = ""
	wm.LeaseExpiresAt = time.Time{}
	s.watermarks[key] = wm
	return nil
}

func (s *WatermarkStore) ReleaseLease(_ context.Context, tenantID id.TenantID, entityType, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := watermarkKey{tenantID: tenantID, entityType: entityType}
	wm, ok := s.watermarks[key]
	if !ok || wm.LeaseOwner != owner {
		return nil
	}

	wm.LeaseOwner = ""
	wm.LeaseExpiresAt = time.Time{}
	s.watermarks[key] = wm
	return nil
}

// Watermark returns the current watermark for inspection in tests.
func (s *WatermarkStore) Watermark(tenantID id.TenantID, entityType string) (detector.Watermark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wm, ok := s.watermarks[watermarkKey{tenantID: tenantID, entityType: entityType}]
	return wm, ok
}
