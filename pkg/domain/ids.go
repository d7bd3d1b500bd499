// Package domain defines typed identifiers shared across features. Distinct
// UUID types make cross-tenant and cross-actor mixups a compile error instead
// of a data leak.
package domain

import (
	"github.com/google/uuid"

	dErrors "beacon/pkg/domain-errors"
)

// TenantID identifies the isolation boundary every record belongs to.
type TenantID uuid.UUID

// ActorID identifies a user within a tenant. The nil value means
// "system/automated actor" in audit entries and "tenant-wide" in audiences.
type ActorID uuid.UUID

// NewTenantID mints a random tenant ID.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewActorID mints a random actor ID.
func NewActorID() ActorID { return ActorID(uuid.New()) }

func (t TenantID) IsNil() bool   { return uuid.UUID(t) == uuid.Nil }
func (t TenantID) String() string { return uuid.UUID(t).String() }

func (a ActorID) IsNil() bool   { return uuid.UUID(a) == uuid.Nil }
func (a ActorID) String() string { return uuid.UUID(a).String() }

// ParseTenantID parses a tenant ID at a trust boundary.
// IDs must be valid, non-empty, non-nil UUIDs.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s, "tenant id")
	return TenantID(u), err
}

// ParseActorID parses an actor ID at a trust boundary.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s, "actor id")
	return ActorID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", what)
	}
	return u, nil
}
