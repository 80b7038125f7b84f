package domain

import (
	"context"
	"time"
)

// AcquisitionMethod records how a session's credential material was obtained.
type AcquisitionMethod string

const (
	MethodInteractiveLogin AcquisitionMethod = "interactive-login"
	MethodImported         AcquisitionMethod = "imported"
)

// SessionRecord is one authenticated identity. Exactly one active record
// exists per identity at a time; saving again replaces the prior record.
type SessionRecord struct {
	Identity     string
	Credential   Credential
	CreatedAt    time.Time
	LastUsedAt   time.Time
	Method       AcquisitionMethod
	SerialTag    string
	Active       bool
	TotalActions int
}

// SessionStore is the durable CRUD capability behind the registry. Two
// interchangeable backends exist: a document store that soft-deactivates
// records (retaining them for audit) and a flat-file store that removes
// them outright.
type SessionStore interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// ListActive returns all records with Active = true, in insertion order.
	ListActive(ctx context.Context) ([]SessionRecord, error)

	// Upsert replaces any record with the same identity.
	Upsert(ctx context.Context, rec SessionRecord) error

	// Deactivate excludes the identity from future ListActive reads.
	// Deactivating an unknown identity is a no-op.
	Deactivate(ctx context.Context, identity string) error

	// MarkUsed bumps LastUsedAt and the usage counter for an identity.
	MarkUsed(ctx context.Context, identity string, at time.Time) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// SessionRegistry owns all SessionRecord mutation. Consumers never write
// through the store directly.
type SessionRegistry interface {
	// ListActive returns the active sessions in stable insertion order.
	// A backend read failure degrades to an empty slice; the caller then
	// sees "no sessions available" rather than a store error.
	ListActive(ctx context.Context) []SessionRecord

	// Save upserts a session by identity, generating a fresh serial tag.
	Save(ctx context.Context, identity string, cred Credential, method AcquisitionMethod) (*SessionRecord, error)

	// MarkUsed updates LastUsedAt after an action attempt. Best-effort:
	// failures are logged and swallowed.
	MarkUsed(ctx context.Context, identity string)

	// Evict marks a session inactive. Idempotent; unknown identities are
	// a no-op.
	Evict(ctx context.Context, identity string)

	// Validate probes whether the session is still authenticated against
	// the remote surface, evicting it on a negative result. The probe does
	// not count as a user-visible action.
	Validate(ctx context.Context, identity string) (bool, error)
}
