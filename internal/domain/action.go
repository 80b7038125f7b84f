package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActionKind is the closed set of operations performable against a target
// resource. Adding a kind is a compile-time-checked change: the driver's
// dispatch table and Valid must both know it.
type ActionKind string

const (
	KindLike    ActionKind = "like"
	KindLove    ActionKind = "love"
	KindHaha    ActionKind = "haha"
	KindSad     ActionKind = "sad"
	KindAngry   ActionKind = "angry"
	KindWow     ActionKind = "wow"
	KindFollow  ActionKind = "follow"
	KindComment ActionKind = "comment"
)

// Kinds lists every action kind, reactions first.
var Kinds = []ActionKind{KindLike, KindLove, KindHaha, KindSad, KindAngry, KindWow, KindFollow, KindComment}

func (k ActionKind) Valid() bool {
	switch k {
	case KindLike, KindLove, KindHaha, KindSad, KindAngry, KindWow, KindFollow, KindComment:
		return true
	}
	return false
}

// IsReaction reports whether the kind is one of the reaction variants.
func (k ActionKind) IsReaction() bool {
	return k.Valid() && k != KindFollow && k != KindComment
}

// allowedHosts is the fixed allow-list for target resources. Anything else
// is rejected before any driver work begins.
var allowedHosts = map[string]struct{}{
	"facebook.com":     {},
	"www.facebook.com": {},
	"m.facebook.com":   {},
	"fb.com":           {},
}

// ValidTarget reports whether raw parses as an http(s) URL whose host is on
// the allow-list.
func ValidTarget(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	_, ok := allowedHosts[strings.ToLower(u.Hostname())]
	return ok
}

// ActionRequest is one unit of work.
type ActionRequest struct {
	Target  string     `json:"targetUrl"`
	Kind    ActionKind `json:"action"`
	Comment string     `json:"comment,omitempty"`
}

// NewActionRequest validates and constructs a request. Comment text is
// required (non-empty after trim) iff Kind is comment; it is validated here,
// not at execution time.
func NewActionRequest(target string, kind ActionKind, comment string) (*ActionRequest, error) {
	if target == "" || kind == "" {
		return nil, fmt.Errorf("%w: target URL and action are required", ErrInvalidInput)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, string(kind))
	}
	comment = strings.TrimSpace(comment)
	if kind == KindComment && comment == "" {
		return nil, fmt.Errorf("%w: comment text is required for comment action", ErrInvalidInput)
	}
	if kind != KindComment {
		comment = ""
	}
	if !ValidTarget(target) {
		return nil, fmt.Errorf("%w: %q is not an allowed target URL", ErrInvalidTarget, target)
	}
	return &ActionRequest{Target: target, Kind: kind, Comment: comment}, nil
}

// FailureKind classifies a per-session failure.
type FailureKind string

const (
	// FailureSessionInvalid means the authentication probe failed; the
	// session was evicted as a side effect.
	FailureSessionInvalid FailureKind = "session_invalid"
	// FailureActionFailed is any driver-reported failure not related to
	// authentication. The session is kept.
	FailureActionFailed FailureKind = "action_failed"
)

// ActionOutcome is the result of one (session, request) pairing.
type ActionOutcome struct {
	Identity    string      `json:"-"`
	Succeeded   bool        `json:"success"`
	Failure     FailureKind `json:"errorKind,omitempty"`
	Error       string      `json:"error,omitempty"`
	CompletedAt time.Time   `json:"completedAt"`
}

// MarshalJSON masks the identity in outward responses.
func (o ActionOutcome) MarshalJSON() ([]byte, error) {
	type alias ActionOutcome
	return json.Marshal(struct {
		Identity string `json:"identity"`
		alias
	}{MaskIdentity(o.Identity), alias(o)})
}

// ActionSummary aggregates one request across all sessions.
type ActionSummary struct {
	ID           uuid.UUID       `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Request      ActionRequest   `json:"request"`
	Outcomes     []ActionOutcome `json:"outcomes"`
	SuccessCount int             `json:"successCount"`
	FailureCount int             `json:"failureCount"`
}

// Total returns the number of sessions the request ran against.
func (s ActionSummary) Total() int {
	return len(s.Outcomes)
}

// BulkItemResult is the isolated result of one item within a batch.
type BulkItemResult struct {
	Index   int            `json:"index"`
	OK      bool           `json:"success"`
	Summary *ActionSummary `json:"summary,omitempty"`
	Error   string         `json:"error,omitempty"`
}
