package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	id "beacon/pkg/domain"
)

// Action names the mutation an entry records.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"

	// ActionStatusTransition is written by the transition detector when a
	// watched entity enters a triggering state. Entries with this action
	// carry an epoch token and a nil actor.
	ActionStatusTransition Action = "status-transition"
)

// Entry is one immutable row of the audit ledger: who changed what, from
// what, to what, when. Once appended it is never updated or deleted; the
// ledger's retention policy lives elsewhere.
type Entry struct {
	ID       uuid.UUID
	TenantID id.TenantID

	SubjectType string
	SubjectID   uuid.UUID

	// ActorID is nil for system/automated actors (detector runs).
	ActorID *id.ActorID

	Action Action

	// BeforeState and AfterState are opaque structured snapshots supplied by
	// the caller. They must never include secret material.
	BeforeState json.RawMessage
	AfterState  json.RawMessage

	// EpochToken idempotency-guards detector-written entries so a racing
	// duplicate run cannot double-record the same transition. Empty for
	// actor-attributed entries, which are never deduplicated.
	EpochToken string

	CreatedAt time.Time

	// Seq is assigned by the store in write order and breaks CreatedAt ties.
	// Clock resolution is coarser than the write rate under load, so ordering
	// never relies on the timestamp alone.
	Seq int64
}

// Filter narrows a ledger query. The tenant predicate is not part of the
// filter: it comes from the caller's scope and cannot be omitted.
type Filter struct {
	SubjectType string
	SubjectID   *uuid.UUID
	Action      Action
	From        *time.Time
	To          *time.Time
}

// Page is one cursor window of ledger entries in write order.
// NextCursor is empty once the feed is exhausted; the total is deliberately
// absent (the ledger grows without bound, a reliable count is not needed).
type Page struct {
	Entries    []Entry
	NextCursor string
}
