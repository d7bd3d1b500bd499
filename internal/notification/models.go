package notification

import (
	"time"

	"github.com/google/uuid"

	id "beacon/pkg/domain"
)

// Kind classifies what a notification is about. The detector only emits
// KindEntityEnteredState; the type is open for surrounding features that
// create notifications through ordinary service calls.
type Kind string

const KindEntityEnteredState Kind = "entity-entered-state"

// Audience is the visibility scope of a notification: one actor, or the
// whole tenant. The zero value is tenant-wide.
type Audience struct {
	actorID *id.ActorID
}

// TenantWide returns the audience visible to every actor in the tenant.
func TenantWide() Audience { return Audience{} }

// ForActor returns the audience visible to a single actor.
func ForActor(actorID id.ActorID) Audience {
	return Audience{actorID: &actorID}
}

// IsTenantWide reports whether the audience is the tenant-wide sentinel.
func (a Audience) IsTenantWide() bool { return a.actorID == nil || a.actorID.IsNil() }

// Actor returns the target actor for an actor-scoped audience. The second
// return is false for tenant-wide audiences.
func (a Audience) Actor() (id.ActorID, bool) {
	if a.IsTenantWide() {
		return id.ActorID{}, false
	}
	return *a.actorID, true
}

// Notification is one row of the tenant feed.
//
// Lifecycle: created(unread) -> read. There is no backward transition and no
// delete; dismissal is read-state only, so the full history stays available.
// A subject that exits and re-enters a triggering state gets a brand new row
// with a new epoch token, never a resurrection of the old one.
type Notification struct {
	ID       uuid.UUID
	TenantID id.TenantID
	Audience Audience

	Kind        Kind
	SubjectType string
	SubjectID   uuid.UUID

	Message  string
	DeepLink string

	// EpochToken identifies the contiguous interval the subject has been in
	// the triggering state. At most one row exists per
	// (tenant, subject, kind, epoch); the unique index on those columns is
	// the load-bearing dedup constraint.
	EpochToken string

	IsRead    bool
	CreatedAt time.Time
	ReadAt    *time.Time
}

// Filter narrows a feed listing. Tenant and audience predicates are not
// filterable: they always come from the caller's scope.
type Filter struct {
	IsRead *bool
}

// PageRequest is offset pagination for the feed; the badge UI needs a stable
// total, so the feed does not use cursors.
type PageRequest struct {
	Offset int
	Limit  int
}

// Page is one window of the feed plus the counts the UI renders.
type Page struct {
	Notifications []Notification
	Total         int
	UnreadCount   int
}
