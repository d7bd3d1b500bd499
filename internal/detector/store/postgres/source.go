package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"beacon/internal/detector"
	id "beacon/pkg/domain"
)

// Source reads the watched_entities projection the surrounding application
// maintains. It implements detector.Source.
type Source struct {
	db *sql.DB
}

// NewSource constructs a PostgreSQL-backed watched-entity source.
func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

func (s *Source) Tenants(ctx context.Context) ([]id.TenantID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM watched_entities`)
	if err != nil {
		return nil, fmt.Errorf("list watched tenants: %w", err)
	}
	defer rows.Close()

	var tenants []id.TenantID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan watched tenant: %w", err)
		}
		tenantID, err := id.ParseTenantID(raw)
		if err != nil {
			return nil, fmt.Errorf("scan watched tenant: %w", err)
		}
		tenants = append(tenants, tenantID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watched tenants: %w", err)
	}
	return tenants, nil
}

// ListEntered selects entities whose status changed into one of the trigger
// statuses inside the half-open window (since, until]. The lower bound is
// exclusive so a row sitting exactly on the previous watermark is not scanned
// twice; re-scans are harmless anyway, but most rows should only travel the
// pipeline once.
func (s *Source) ListEntered(ctx context.Context, tenantID id.TenantID, entityType string, statuses []string, since, until time.Time) ([]detector.WatchedEntity, error) {
	query := `
		SELECT tenant_id, entity_id, entity_type, status, status_changed_at
		FROM watched_entities
		WHERE tenant_id = $1
		  AND entity_type = $2
		  AND status = ANY($3)
		  AND status_changed_at > $4
		  AND status_changed_at <= $5
		ORDER BY status_changed_at, entity_id
	`
	rows, err := s.db.QueryContext(ctx, query,
		tenantID.String(), entityType, pq.Array(statuses), since, until)
	if err != nil {
		return nil, fmt.Errorf("list entered entities: %w", err)
	}
	defer rows.Close()

	var entities []detector.WatchedEntity
	for rows.Next() {
		var (
			entity    detector.WatchedEntity
			tenantRaw string
		)
		err := rows.Scan(&tenantRaw, &entity.EntityID, &entity.EntityType, &entity.Status, &entity.StatusChangedAt)
		if err != nil {
			return nil, fmt.Errorf("scan entered entity: %w", err)
		}
		entity.TenantID, err = id.ParseTenantID(tenantRaw)
		if err != nil {
			return nil, fmt.Errorf("scan entered entity tenant: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entered entities: %w", err)
	}
	return entities, nil
}
