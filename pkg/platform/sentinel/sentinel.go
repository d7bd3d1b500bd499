package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// so services can translate them into coded domain errors.
//
// These represent factual states about rows, not validation failures:
// - ErrNotFound: no row visible for the given tenant and audience
// - ErrConflict: a uniqueness constraint rejected the write
// - ErrLeaseHeld: a live watermark lease is held by another runner
// - ErrImmutable: an update or delete touched append-only data
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrLeaseHeld = errors.New("lease held")
	ErrImmutable = errors.New("immutable")
)
