package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/requestcontext"
	"beacon/pkg/scope"
)

// Store persists ledger entries. Implementations are append-only: there is
// deliberately no update or delete in this interface, and the Postgres
// implementation additionally blocks them at the schema level.
type Store interface {
	// Append writes one entry and fills in its Seq. Entries carrying an
	// epoch token are idempotent per (tenant, subject, action, epoch);
	// a replayed transition reports inserted=false instead of an error.
	Append(ctx context.Context, entry *Entry) (inserted bool, err error)
	// Query returns entries for one tenant in write order, after the cursor.
	Query(ctx context.Context, tenantID id.TenantID, filter Filter, cursor string, limit int) (Page, error)
}

// Ledger is the append/query service over the audit store.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

// NewLedger constructs the ledger service.
func NewLedger(store Store, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// Append validates and writes one entry, returning its ID. The write is
// fail-closed: callers performing a sensitive mutation must abort when the
// audit write fails.
//
// When the entry carries an epoch token and an identical entry already
// exists, Append succeeds with inserted=false (idempotent re-run of the
// detector); the existing entry stands.
func (l *Ledger) Append(ctx context.Context, entry Entry) (uuid.UUID, bool, error) {
	if entry.TenantID.IsNil() {
		return uuid.Nil, false, dErrors.New(dErrors.CodeValidation, "audit entry requires a tenant")
	}
	if entry.SubjectID == uuid.Nil || entry.SubjectType == "" {
		return uuid.Nil, false, dErrors.New(dErrors.CodeValidation, "audit entry requires a subject")
	}
	if entry.Action == "" {
		return uuid.Nil, false, dErrors.New(dErrors.CodeValidation, "audit entry requires an action")
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}

	inserted, err := l.store.Append(ctx, &entry)
	if err != nil {
		return uuid.Nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit entry")
	}
	return entry.ID, inserted, nil
}

// Query returns one page of the caller's tenant ledger. The tenant predicate
// comes from the scope; there is no unscoped query path.
func (l *Ledger) Query(ctx context.Context, callerScope scope.Scope, filter Filter, cursor string, limit int) (Page, error) {
	if callerScope.IsZero() {
		return Page{}, dErrors.New(dErrors.CodeUnauthorized, "audit query requires an authenticated scope")
	}
	if limit <= 0 || limit > maxQueryLimit {
		limit = defaultQueryLimit
	}
	page, err := l.store.Query(ctx, callerScope.TenantID(), filter, cursor, limit)
	if err != nil {
		return Page{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit ledger")
	}
	return page, nil
}

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)
