package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maskVisiblePrefix = 8

// Credential holds the opaque authentication material of a session (e.g. a
// serialized cookie set). It never serializes its full contents: String,
// Format and MarshalJSON all render the masked form. Code that genuinely
// needs the raw material (store backends, the driver) must call Reveal.
type Credential struct {
	raw string
}

func NewCredential(raw string) Credential {
	return Credential{raw: strings.TrimSpace(raw)}
}

// Reveal returns the full credential material. Callers outside the store and
// driver layers should not need this.
func (c Credential) Reveal() string {
	return c.raw
}

// Masked returns a display form: the first few characters plus an ellipsis.
func (c Credential) Masked() string {
	if c.raw == "" {
		return ""
	}
	if len(c.raw) <= maskVisiblePrefix {
		return c.raw[:1] + "..."
	}
	return c.raw[:maskVisiblePrefix] + "..."
}

func (c Credential) Empty() bool {
	return c.raw == ""
}

func (c Credential) String() string {
	return c.Masked()
}

func (c Credential) Format(f fmt.State, _ rune) {
	fmt.Fprint(f, c.Masked())
}

func (c Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Masked())
}

// MaskIdentity truncates an identity key for outward responses. Full
// identities never leave the service.
func MaskIdentity(identity string) string {
	if len(identity) <= maskVisiblePrefix {
		return identity
	}
	return identity[:maskVisiblePrefix] + "..."
}
