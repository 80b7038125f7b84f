package domain

import (
	"context"
	"time"
)

// ActionDriver is the remote-control capability that actually drives a
// browser page. The executor acquires one ephemeral context per
// (session, request) pairing and releases it on every exit path.
type ActionDriver interface {
	NewContext(ctx context.Context) (DriverContext, error)
}

// DriverContext is a scoped automation context (one browser page).
type DriverContext interface {
	// ApplyCredential injects credential material as the authentication
	// state of the context.
	ApplyCredential(ctx context.Context, cred Credential) error

	// Navigate loads the target resource, bounded by timeout.
	Navigate(ctx context.Context, uri string, timeout time.Duration) error

	// ProbeAuthenticated reports whether the current page reflects an
	// authenticated state. A false result is the only signal that evicts
	// a session.
	ProbeAuthenticated(ctx context.Context, timeout time.Duration) (bool, error)

	// DispatchAction performs the action kind against the current page.
	// Comment carries the comment text for KindComment and is empty
	// otherwise.
	DispatchAction(ctx context.Context, kind ActionKind, comment string, timeout time.Duration) error

	// Release frees the context. Safe to call more than once.
	Release()
}

// LoginResult is the product of an interactive credential acquisition.
type LoginResult struct {
	Identity   string
	Credential Credential
}

// LoginDriver acquires fresh credential material by driving the remote
// surface's login form. Separate from ActionDriver because only the session
// acquisition endpoints need it.
type LoginDriver interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}
