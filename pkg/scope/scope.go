// Package scope defines the authorization filter every read of the audit
// ledger and the notification store must pass through.
//
// A Scope cannot be constructed without both a tenant and an actor, so a
// query path that "forgot the WHERE clause" does not compile: stores take a
// Scope, not raw identifiers, and derive their tenant/audience predicates
// from it.
package scope

import (
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
)

// Scope carries the caller's tenant and actor identity. The zero value is
// unusable: stores reject it via Valid checks, and the fields are unexported
// so callers outside this package cannot forge a partial scope.
type Scope struct {
	tenantID id.TenantID
	actorID  id.ActorID
}

// New builds a Scope for an authenticated caller. Both identifiers are
// required; there is deliberately no tenant-only constructor for reads that
// touch audience-scoped data.
func New(tenantID id.TenantID, actorID id.ActorID) (Scope, error) {
	if tenantID.IsNil() {
		return Scope{}, dErrors.New(dErrors.CodeUnauthorized, "scope requires a tenant")
	}
	if actorID.IsNil() {
		return Scope{}, dErrors.New(dErrors.CodeUnauthorized, "scope requires an actor")
	}
	return Scope{tenantID: tenantID, actorID: actorID}, nil
}

// TenantID returns the tenant predicate for generated queries.
func (s Scope) TenantID() id.TenantID { return s.tenantID }

// ActorID returns the audience predicate for generated queries.
func (s Scope) ActorID() id.ActorID { return s.actorID }

// IsZero reports whether the scope was never constructed through New.
func (s Scope) IsZero() bool { return s.tenantID.IsNil() || s.actorID.IsNil() }
