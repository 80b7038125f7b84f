// Package store composes session store backends. The fallback decorator
// expresses the backend degradation policy in one place: writes try the
// primary store and fall back to the secondary on failure, so a configured
// but unreachable document store never loses a session or surfaces an error
// to the orchestration layer.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/mfriesen/actionreplay/internal/domain"
	"github.com/mfriesen/actionreplay/internal/metrics"
)

// FallbackStore decorates a primary SessionStore with a secondary one. A
// circuit breaker in front of the primary stops hammering an unreachable
// backend; while the circuit is open, operations go straight to the
// secondary.
type FallbackStore struct {
	primary   domain.SessionStore
	secondary domain.SessionStore
	cb        circuitbreaker.CircuitBreaker[any]
}

func NewFallback(primary, secondary domain.SessionStore) *FallbackStore {
	cb := circuitbreaker.Builder[any]().
		WithFailureThreshold(3).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Primary store circuit state changed",
				"backend", primary.Name(),
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
		}).
		Build()

	return &FallbackStore{primary: primary, secondary: secondary, cb: cb}
}

func (f *FallbackStore) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

// do runs op against the primary under the breaker, falling back to the
// secondary on failure or while the circuit is open.
func (f *FallbackStore) do(op string, primaryOp, secondaryOp func() error) error {
	if f.cb.TryAcquirePermit() {
		err := primaryOp()
		if err == nil {
			f.cb.RecordSuccess()
			metrics.StoreOpsTotal.WithLabelValues(f.primary.Name(), op, "ok").Inc()
			return nil
		}
		f.cb.RecordError(err)
		metrics.StoreOpsTotal.WithLabelValues(f.primary.Name(), op, "error").Inc()
		slog.Error("Primary store operation failed, falling back",
			"backend", f.primary.Name(), "operation", op, "error", err)
	}

	metrics.StoreFallbacksTotal.WithLabelValues(op).Inc()
	err := secondaryOp()
	if err != nil {
		metrics.StoreOpsTotal.WithLabelValues(f.secondary.Name(), op, "error").Inc()
		return err
	}
	metrics.StoreOpsTotal.WithLabelValues(f.secondary.Name(), op, "ok").Inc()
	return nil
}

func (f *FallbackStore) ListActive(ctx context.Context) ([]domain.SessionRecord, error) {
	var records []domain.SessionRecord
	err := f.do("list_active",
		func() error {
			var err error
			records, err = f.primary.ListActive(ctx)
			return err
		},
		func() error {
			var err error
			records, err = f.secondary.ListActive(ctx)
			return err
		},
	)
	return records, err
}

func (f *FallbackStore) Upsert(ctx context.Context, rec domain.SessionRecord) error {
	return f.do("upsert",
		func() error { return f.primary.Upsert(ctx, rec) },
		func() error { return f.secondary.Upsert(ctx, rec) },
	)
}

func (f *FallbackStore) Deactivate(ctx context.Context, identity string) error {
	return f.do("deactivate",
		func() error { return f.primary.Deactivate(ctx, identity) },
		func() error { return f.secondary.Deactivate(ctx, identity) },
	)
}

func (f *FallbackStore) MarkUsed(ctx context.Context, identity string, at time.Time) error {
	return f.do("mark_used",
		func() error { return f.primary.MarkUsed(ctx, identity, at) },
		func() error { return f.secondary.MarkUsed(ctx, identity, at) },
	)
}

// Ping reports the primary's health; the service stays ready as long as the
// secondary is reachable.
func (f *FallbackStore) Ping(ctx context.Context) error {
	if err := f.primary.Ping(ctx); err == nil {
		return nil
	}
	return f.secondary.Ping(ctx)
}

var _ domain.SessionStore = (*FallbackStore)(nil)
