package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"beacon/internal/detector"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

// WatermarkStore persists scan watermarks and their leases in PostgreSQL.
// Lease arbitration is a single upsert whose WHERE clause only matches a
// free or expired lease, so concurrent runners never both win.
type WatermarkStore struct {
	db *sql.DB
}

// NewWatermarkStore constructs a PostgreSQL-backed watermark store.
func NewWatermarkStore(db *sql.DB) *WatermarkStore {
	return &WatermarkStore{db: db}
}

func (s *WatermarkStore) AcquireLease(ctx context.Context, tenantID id.TenantID, entityType, owner string, ttl time.Duration, now time.Time) (*detector.Watermark, error) {
	query := `
		INSERT INTO detector_watermarks (tenant_id, entity_type, last_scanned_at, lease_owner, lease_expires_at)
		VALUES ($1, $2, 'epoch'::timestamptz, $3, $4)
		ON CONFLICT (tenant_id, entity_type) DO UPDATE SET
			lease_owner = EXCLUDED.lease_owner,
			lease_expires_at = EXCLUDED.lease_expires_at
		WHERE detector_watermarks.lease_owner = ''
		   OR detector_watermarks.lease_owner = EXCLUDED.lease_owner
		   OR detector_watermarks.lease_expires_at <= $5
		RETURNING last_scanned_at
	`

	wm := detector.Watermark{
		TenantID:       tenantID,
		EntityType:     entityType,
		LeaseOwner:     owner,
		LeaseExpiresAt: now.Add(ttl),
	}
	err := s.db.QueryRowContext(ctx, query,
		tenantID.String(), entityType, owner, wm.LeaseExpiresAt, now,
	).Scan(&wm.LastScannedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// The WHERE clause filtered the conflicting row: a live lease.
		return nil, sentinel.ErrLeaseHeld
	}
	if err != nil {
		return nil, fmt.Errorf("acquire watermark lease: %w", err)
	}
	return &wm, nil
}

func (s *WatermarkStore) CompleteScan(ctx context.Context, tenantID id.TenantID, entityType, owner string, scannedThrough time.Time) error {
	query := `
		UPDATE detector_watermarks
		SET last_scanned_at = $4, lease_owner = '', lease_expires_at = 'epoch'::timestamptz
		WHERE tenant_id = $1 AND entity_type = $2 AND lease_owner = $3
	`
	result, err := s.db.ExecContext(ctx, query, tenantID.String(), entityType, owner, scannedThrough)
	if err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	if affected == 0 {
		// The lease expired mid-scan and someone else took it. Do not
		// advance over their window.
		return sentinel.ErrLeaseHeld
	}
	return nil
}

func (s *WatermarkStore) ReleaseLease(ctx context.Context, tenantID id.TenantID, entityType, owner string) error {
	query := `
		UPDATE detector_watermarks
		SET lease_owner = '', lease_expires_at = 'epoch'::timestamptz
		WHERE tenant_id = $1 AND entity_type = $2 AND lease_owner = $3
	`
	if _, err := s.db.ExecContext(ctx, query, tenantID.String(), entityType, owner); err != nil {
		return fmt.Errorf("release watermark lease: %w", err)
	}
	return nil
}
