package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"beacon/internal/notification"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
	txcontext "beacon/pkg/platform/tx"
)

// Store persists notifications in PostgreSQL. The unique index
// (tenant_id, subject_id, kind, epoch_token) is the dedup guard the detector
// relies on; this store turns its collisions into successful no-ops.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed notification store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const notificationColumns = `
	id, tenant_id, audience_actor_id, kind, subject_type, subject_id,
	message, deep_link, epoch_token, is_read, created_at, read_at
`

// Create inserts the notification. An epoch collision (another run already
// handled this exact epoch) returns the existing row with created=false.
func (s *Store) Create(ctx context.Context, n *notification.Notification) (*notification.Notification, bool, error) {
	insert := fmt.Sprintf(`
		INSERT INTO notifications (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (tenant_id, subject_id, kind, epoch_token) DO NOTHING
		RETURNING %s
	`, strings.TrimSpace(notificationColumns), notificationColumns)

	row, err := scanNotification(s.execer(ctx).QueryRowContext(ctx, insert,
		n.ID,
		n.TenantID.String(),
		audienceArg(n.Audience),
		string(n.Kind),
		n.SubjectType,
		n.SubjectID,
		n.Message,
		n.DeepLink,
		n.EpochToken,
		n.IsRead,
		n.CreatedAt,
		n.ReadAt,
	))
	if err == nil {
		return row, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert notification: %w", err)
	}

	// The epoch is already handled; surface the canonical row.
	sel := fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE tenant_id = $1 AND subject_id = $2 AND kind = $3 AND epoch_token = $4
	`, notificationColumns)
	existing, err := scanNotification(s.execer(ctx).QueryRowContext(ctx, sel,
		n.TenantID.String(), n.SubjectID, string(n.Kind), n.EpochToken))
	if err != nil {
		return nil, false, fmt.Errorf("load deduplicated notification: %w", err)
	}
	return existing, false, nil
}

// MarkRead flips unread->read for a row visible to (tenant, actor). The
// audience predicate doubles as the authorization check; rows in other
// tenants or addressed to other actors are indistinguishable from missing
// ones. Re-marking a read row matches again without changing read_at, which
// makes the operation idempotent.
func (s *Store) MarkRead(ctx context.Context, tenantID id.TenantID, actorID id.ActorID, notificationID uuid.UUID, readAt time.Time) (*notification.Notification, error) {
	query := fmt.Sprintf(`
		UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, $4)
		WHERE id = $1
		  AND tenant_id = $2
		  AND (audience_actor_id IS NULL OR audience_actor_id = $3)
		RETURNING %s
	`, notificationColumns)

	row, err := scanNotification(s.execer(ctx).QueryRowContext(ctx, query,
		notificationID, tenantID.String(), actorID.String(), readAt))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return row, nil
}

// List returns one feed page, newest first, with a stable total.
func (s *Store) List(ctx context.Context, tenantID id.TenantID, actorID id.ActorID, filter notification.Filter, page notification.PageRequest) ([]notification.Notification, int, error) {
	conditions := "tenant_id = $1 AND (audience_actor_id IS NULL OR audience_actor_id = $2)"
	args := []any{tenantID.String(), actorID.String()}
	if filter.IsRead != nil {
		args = append(args, *filter.IsRead)
		conditions += fmt.Sprintf(" AND is_read = $%d", len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM notifications WHERE " + conditions
	if err := s.execer(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	args = append(args, page.Limit, page.Offset)
	listQuery := fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, notificationColumns, conditions, len(args)-1, len(args))

	rows, err := s.execer(ctx).QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var result []notification.Notification
	for rows.Next() {
		n, err := scanNotificationRow(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notifications: %w", err)
	}
	return result, total, nil
}

// UnreadCount counts unread rows visible to (tenant, actor).
func (s *Store) UnreadCount(ctx context.Context, tenantID id.TenantID, actorID id.ActorID) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE tenant_id = $1
		  AND (audience_actor_id IS NULL OR audience_actor_id = $2)
		  AND is_read = FALSE
	`
	var count int
	if err := s.execer(ctx).QueryRowContext(ctx, query, tenantID.String(), actorID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanNotification(row *sql.Row) (*notification.Notification, error) {
	return scanNotificationRow(row)
}

func scanNotificationRow(row scannable) (*notification.Notification, error) {
	var (
		n         notification.Notification
		tenantRaw string
		actorRaw  sql.NullString
		readAt    sql.NullTime
	)
	err := row.Scan(
		&n.ID,
		&tenantRaw,
		&actorRaw,
		&n.Kind,
		&n.SubjectType,
		&n.SubjectID,
		&n.Message,
		&n.DeepLink,
		&n.EpochToken,
		&n.IsRead,
		&n.CreatedAt,
		&readAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}

	tenantID, err := id.ParseTenantID(tenantRaw)
	if err != nil {
		return nil, fmt.Errorf("scan notification tenant: %w", err)
	}
	n.TenantID = tenantID

	if actorRaw.Valid {
		actorID, err := id.ParseActorID(actorRaw.String)
		if err != nil {
			return nil, fmt.Errorf("scan notification audience: %w", err)
		}
		n.Audience = notification.ForActor(actorID)
	} else {
		n.Audience = notification.TenantWide()
	}
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	return &n, nil
}

func audienceArg(a notification.Audience) any {
	if actorID, ok := a.Actor(); ok {
		return actorID.String()
	}
	return nil
}
