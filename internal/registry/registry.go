// Package registry owns all session record mutation. Orchestration reads
// sessions through it and requests eviction through it; nothing else writes
// to the store backends.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/mfriesen/actionreplay/internal/crypto"
	"github.com/mfriesen/actionreplay/internal/domain"
	"github.com/mfriesen/actionreplay/internal/logging"
	"github.com/mfriesen/actionreplay/internal/metrics"
)

// probeURL is the authenticated-surface entry point used by Validate.
const probeURL = "https://www.facebook.com"

type Registry struct {
	store        domain.SessionStore
	driver       domain.ActionDriver
	cipher       crypto.Cipher
	clock        clockwork.Clock
	probeTimeout time.Duration

	// locks serializes mutations per identity so concurrent saves or
	// evictions for the same session cannot interleave.
	locks sync.Map // identity -> *sync.Mutex

	// probes collapses concurrent Validate calls for the same identity
	// into one driver round-trip.
	probes singleflight.Group
}

func New(store domain.SessionStore, driver domain.ActionDriver, cipher crypto.Cipher, clock clockwork.Clock, probeTimeout time.Duration) *Registry {
	return &Registry{
		store:        store,
		driver:       driver,
		cipher:       cipher,
		clock:        clock,
		probeTimeout: probeTimeout,
	}
}

func (r *Registry) identityLock(identity string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(identity, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ListActive returns the active sessions in stable insertion order. A store
// read failure degrades to an empty slice: action execution then fails with
// "no sessions available" instead of surfacing a store error.
func (r *Registry) ListActive(ctx context.Context) []domain.SessionRecord {
	records, err := r.store.ListActive(ctx)
	if err != nil {
		slog.Error("Failed to list sessions, degrading to none", "backend", r.store.Name(), "error", err)
		metrics.SessionsActive.Set(0)
		return nil
	}

	active := records[:0]
	for _, rec := range records {
		if !rec.Active {
			continue
		}
		raw, err := r.cipher.Decrypt(rec.Credential.Reveal())
		if err != nil {
			logging.WithIdentity(rec.Identity).Error("Skipping session with undecryptable credential", "error", err)
			continue
		}
		rec.Credential = domain.NewCredential(raw)
		active = append(active, rec)
	}

	metrics.SessionsActive.Set(float64(len(active)))
	return active
}

// Save upserts a session by identity, replacing any prior record. A fresh
// serial tag is generated on every save.
func (r *Registry) Save(ctx context.Context, identity string, cred domain.Credential, method domain.AcquisitionMethod) (*domain.SessionRecord, error) {
	if identity == "" || cred.Empty() {
		return nil, fmt.Errorf("%w: identity and credential material are required", domain.ErrInvalidInput)
	}

	mu := r.identityLock(identity)
	mu.Lock()
	defer mu.Unlock()

	now := r.clock.Now()
	rec := domain.SessionRecord{
		Identity:   identity,
		Credential: cred,
		CreatedAt:  now,
		LastUsedAt: now,
		Method:     method,
		SerialTag:  newSerialTag(now),
		Active:     true,
	}

	sealed, err := r.cipher.Encrypt(cred.Reveal())
	if err != nil {
		return nil, fmt.Errorf("failed to seal credential: %w", err)
	}
	stored := rec
	stored.Credential = domain.NewCredential(sealed)

	if err := r.store.Upsert(ctx, stored); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	metrics.SessionSavesTotal.WithLabelValues(string(method)).Inc()
	logging.WithIdentity(identity).Info("Session saved", "method", method, "serial_tag", rec.SerialTag)
	return &rec, nil
}

// MarkUsed bumps LastUsedAt and the usage counter after an action attempt.
// Best-effort: a store failure is logged and swallowed.
func (r *Registry) MarkUsed(ctx context.Context, identity string) {
	mu := r.identityLock(identity)
	mu.Lock()
	defer mu.Unlock()

	if err := r.store.MarkUsed(ctx, identity, r.clock.Now()); err != nil {
		logging.WithIdentity(identity).Warn("Failed to mark session used", "error", err)
	}
}

// Evict marks a session inactive. Idempotent; evicting an unknown identity
// is a no-op, not an error.
func (r *Registry) Evict(ctx context.Context, identity string) {
	mu := r.identityLock(identity)
	mu.Lock()
	defer mu.Unlock()

	if err := r.store.Deactivate(ctx, identity); err != nil {
		logging.WithIdentity(identity).Error("Failed to evict session", "error", err)
		return
	}

	metrics.SessionEvictionsTotal.Inc()
	logging.WithIdentity(identity).Info("Session evicted")
}

// Validate probes whether the session is still authenticated, evicting it on
// a negative result. Concurrent probes for the same identity collapse into
// one driver round-trip. The probe does not count as a use of the session.
func (r *Registry) Validate(ctx context.Context, identity string) (bool, error) {
	result, err, _ := r.probes.Do(identity, func() (any, error) {
		rec, ok := r.find(ctx, identity)
		if !ok {
			return false, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, domain.MaskIdentity(identity))
		}

		valid, err := r.probe(ctx, rec.Credential)
		if err != nil {
			return false, err
		}
		if !valid {
			r.Evict(ctx, identity)
		}
		return valid, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (r *Registry) find(ctx context.Context, identity string) (domain.SessionRecord, bool) {
	for _, rec := range r.ListActive(ctx) {
		if rec.Identity == identity {
			return rec, true
		}
	}
	return domain.SessionRecord{}, false
}

func (r *Registry) probe(ctx context.Context, cred domain.Credential) (bool, error) {
	dc, err := r.driver.NewContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire driver context: %w", err)
	}
	defer dc.Release()

	if err := dc.ApplyCredential(ctx, cred); err != nil {
		return false, fmt.Errorf("failed to apply credential: %w", err)
	}
	if err := dc.Navigate(ctx, probeURL, r.probeTimeout); err != nil {
		return false, fmt.Errorf("probe navigation failed: %w", err)
	}
	return dc.ProbeAuthenticated(ctx, r.probeTimeout)
}

func newSerialTag(now time.Time) string {
	return fmt.Sprintf("FB_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

var _ domain.SessionRegistry = (*Registry)(nil)
