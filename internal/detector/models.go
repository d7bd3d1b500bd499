package detector

import (
	"time"

	"github.com/google/uuid"

	id "beacon/pkg/domain"
)

// Trigger names a (entity type, status) pair whose entry the detector turns
// into an audit entry and a notification.
type Trigger struct {
	EntityType string
	Status     string
}

// WatchedEntity is the read model the surrounding application maintains for
// every business record whose lifecycle is tracked. The detector never
// mutates it.
type WatchedEntity struct {
	TenantID        id.TenantID
	EntityID        uuid.UUID
	EntityType      string
	Status          string
	StatusChangedAt time.Time
}

// Watermark is the per (tenant, entity type) scan cursor with its lease.
// The lease prevents two concurrent runs from double-processing a window;
// the epoch uniqueness constraint makes re-scans of an expired lease safe.
type Watermark struct {
	TenantID       id.TenantID
	EntityType     string
	LastScannedAt  time.Time
	LeaseOwner     string
	LeaseExpiresAt time.Time
}

// RunRequest scopes one detector invocation. A nil TenantID scans every
// tenant with watched entities; a nil Since starts from the stored watermark.
type RunRequest struct {
	TenantID *id.TenantID
	Since    *time.Time
}

// RunSummary is what a detector invocation reports back: how much it saw,
// wrote, skipped, and lost to lease contention. Lease contention is an
// expected outcome under duplicate scheduler fire, never an error.
type RunSummary struct {
	EntitiesScanned      int `json:"entities_scanned"`
	AuditEntriesWritten  int `json:"audit_entries_written"`
	NotificationsCreated int `json:"notifications_created"`
	Errors               int `json:"errors"`
	LeaseContention      int `json:"lease_contention"`
}

func (s *RunSummary) add(other RunSummary) {
	s.EntitiesScanned += other.EntitiesScanned
	s.AuditEntriesWritten += other.AuditEntriesWritten
	s.NotificationsCreated += other.NotificationsCreated
	s.Errors += other.Errors
	s.LeaseContention += other.LeaseContention
}
