package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"beacon/internal/audit"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
	txcontext "beacon/pkg/platform/tx"
)

// Store persists ledger entries in PostgreSQL. The audit_entries table is
// append-only: a schema trigger rejects UPDATE and DELETE, so immutability
// does not depend on this code path being the only writer.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed audit store.
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

// Append inserts one entry and fills in its sequence number. Entries with an
// epoch token land on the partial unique index
// (tenant_id, subject_id, action, epoch_token); a replayed transition hits
// ON CONFLICT DO NOTHING and reports inserted=false.
func (s *Store) Append(ctx context.Context, entry *audit.Entry) (bool, error) {
	query := `
		INSERT INTO audit_entries (
			id, tenant_id, subject_type, subject_id, actor_id, action,
			before_state, after_state, epoch_token, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, subject_id, action, epoch_token)
			WHERE epoch_token IS NOT NULL
			DO NOTHING
		RETURNING seq
	`

	err := s.execer(ctx).QueryRowContext(ctx, query,
		entry.ID,
		entry.TenantID.String(),
		entry.SubjectType,
		entry.SubjectID,
		actorArg(entry.ActorID),
		string(entry.Action),
		snapshotArg(entry.BeforeState),
		snapshotArg(entry.AfterState),
		epochArg(entry.EpochToken),
		entry.CreatedAt,
	).Scan(&entry.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		// Another run already recorded this exact transition epoch.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert audit entry: %w", mapImmutable(err))
	}
	return true, nil
}

// Query returns one tenant's entries in write order after the cursor.
func (s *Store) Query(ctx context.Context, tenantID id.TenantID, filter audit.Filter, cursor string, limit int) (audit.Page, error) {
	afterSeq := int64(0)
	if cursor != "" {
		parsed, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return audit.Page{}, fmt.Errorf("parse audit cursor: %w", err)
		}
		afterSeq = parsed
	}

	conditions := []string{"tenant_id = $1", "seq > $2"}
	args := []any{tenantID.String(), afterSeq}

	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filter.SubjectType != "" {
		addCondition("subject_type = $%d", filter.SubjectType)
	}
	if filter.SubjectID != nil {
		addCondition("subject_id = $%d", *filter.SubjectID)
	}
	if filter.Action != "" {
		addCondition("action = $%d", string(filter.Action))
	}
	if filter.From != nil {
		addCondition("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		addCondition("created_at <= $%d", *filter.To)
	}
	args = append(args, limit+1)

	query := fmt.Sprintf(`
		SELECT id, tenant_id, subject_type, subject_id, actor_id, action,
		       before_state, after_state, epoch_token, created_at, seq
		FROM audit_entries
		WHERE %s
		ORDER BY seq
		LIMIT $%d
	`, strings.Join(conditions, " AND "), len(args))

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return audit.Page{}, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return audit.Page{}, err
	}

	page := audit.Page{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		page.NextCursor = strconv.FormatInt(entries[limit-1].Seq, 10)
	}
	return page, nil
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry
	for rows.Next() {
		var (
			entry       audit.Entry
			tenantRaw   string
			actorRaw    sql.NullString
			epochRaw    sql.NullString
			beforeState []byte
			afterState  []byte
		)
		err := rows.Scan(
			&entry.ID,
			&tenantRaw,
			&entry.SubjectType,
			&entry.SubjectID,
			&actorRaw,
			&entry.Action,
			&beforeState,
			&afterState,
			&epochRaw,
			&entry.CreatedAt,
			&entry.Seq,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		tenantID, err := id.ParseTenantID(tenantRaw)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry tenant: %w", err)
		}
		entry.TenantID = tenantID
		if actorRaw.Valid {
			actorID, err := id.ParseActorID(actorRaw.String)
			if err != nil {
				return nil, fmt.Errorf("scan audit entry actor: %w", err)
			}
			entry.ActorID = &actorID
		}
		entry.EpochToken = epochRaw.String
		entry.BeforeState = beforeState
		entry.AfterState = afterState

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// ListAfterSeq returns entries across all tenants in sequence order. It
// exists for the stream relay worker only and is not reachable from any
// caller-facing query path.
func (s *Store) ListAfterSeq(ctx context.Context, afterSeq int64, limit int) ([]audit.Entry, error) {
	query := `
		SELECT id, tenant_id, subject_type, subject_id, actor_id, action,
		       before_state, after_state, epoch_token, created_at, seq
		FROM audit_entries
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries after seq: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// StreamOffset returns the last sequence number the named consumer has
// published, or zero for a consumer that never ran.
func (s *Store) StreamOffset(ctx context.Context, consumer string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT seq FROM audit_stream_offsets WHERE consumer = $1`, consumer).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get stream offset: %w", err)
	}
	return seq, nil
}

// SetStreamOffset advances the named consumer's relay cursor.
func (s *Store) SetStreamOffset(ctx context.Context, consumer string, seq int64) error {
	query := `
		INSERT INTO audit_stream_offsets (consumer, seq, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (consumer) DO UPDATE SET
			seq = EXCLUDED.seq,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, consumer, seq); err != nil {
		return fmt.Errorf("set stream offset: %w", err)
	}
	return nil
}

func actorArg(actorID *id.ActorID) any {
	if actorID == nil || actorID.IsNil() {
		return nil
	}
	return actorID.String()
}

func epochArg(token string) any {
	if token == "" {
		return nil
	}
	return token
}

func snapshotArg(snapshot []byte) any {
	if len(snapshot) == 0 {
		return nil
	}
	return snapshot
}

// mapImmutable translates the append-only trigger's restrict_violation into
// the immutability sentinel so callers see a configuration bug, not a
// generic SQL failure.
func mapImmutable(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23001" {
		return sentinel.ErrImmutable
	}
	return err
}
