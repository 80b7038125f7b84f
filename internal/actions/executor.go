package actions

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mfriesen/actionreplay/internal/domain"
	"github.com/mfriesen/actionreplay/internal/logging"
	"github.com/mfriesen/actionreplay/internal/metrics"
)

// evictor is the slice of the registry the executor needs: requesting
// eviction when the driver signals authentication loss.
type evictor interface {
	Evict(ctx context.Context, identity string)
}

// Executor drives one session through one action using the driver. It
// classifies failures and triggers eviction on session-invalid ones; any
// other driver failure leaves the session registered.
type Executor struct {
	driver        domain.ActionDriver
	registry      evictor
	clock         clockwork.Clock
	probeTimeout  time.Duration
	actionTimeout time.Duration
}

func NewExecutor(driver domain.ActionDriver, registry evictor, clock clockwork.Clock, probeTimeout, actionTimeout time.Duration) *Executor {
	return &Executor{
		driver:        driver,
		registry:      registry,
		clock:         clock,
		probeTimeout:  probeTimeout,
		actionTimeout: actionTimeout,
	}
}

// Execute runs req against one session. It never returns an error: every
// failure is classified into the outcome, so the orchestrator can keep
// processing the remaining sessions.
func (e *Executor) Execute(ctx context.Context, session domain.SessionRecord, req domain.ActionRequest) domain.ActionOutcome {
	start := e.clock.Now()

	outcome := e.run(ctx, session, req)

	status := "ok"
	if !outcome.Succeeded {
		status = string(outcome.Failure)
	}
	metrics.ActionsTotal.WithLabelValues(string(req.Kind), status).Inc()
	metrics.ActionDuration.WithLabelValues(string(req.Kind)).Observe(e.clock.Since(start).Seconds())

	log := logging.WithIdentity(session.Identity)
	if outcome.Succeeded {
		log.Info("Action completed", "kind", req.Kind, "target", req.Target)
	} else {
		log.Warn("Action failed", "kind", req.Kind, "target", req.Target, "failure", outcome.Failure, "error", outcome.Error)
	}

	return outcome
}

func (e *Executor) run(ctx context.Context, session domain.SessionRecord, req domain.ActionRequest) domain.ActionOutcome {
	dc, err := e.driver.NewContext(ctx)
	if err != nil {
		return e.fail(session, domain.FailureActionFailed, err)
	}
	// Released on every exit path: success, failure or timeout.
	defer dc.Release()

	if err := dc.ApplyCredential(ctx, session.Credential); err != nil {
		return e.fail(session, domain.FailureActionFailed, err)
	}

	if err := dc.Navigate(ctx, req.Target, e.actionTimeout); err != nil {
		return e.fail(session, domain.FailureActionFailed, err)
	}

	authenticated, err := dc.ProbeAuthenticated(ctx, e.probeTimeout)
	if err != nil {
		return e.fail(session, domain.FailureActionFailed, err)
	}
	if !authenticated {
		// A dead session must not waste future cycles.
		e.registry.Evict(ctx, session.Identity)
		return e.fail(session, domain.FailureSessionInvalid, domain.ErrSessionInvalid)
	}

	if err := dc.DispatchAction(ctx, req.Kind, req.Comment, e.actionTimeout); err != nil {
		if errors.Is(err, domain.ErrSessionInvalid) {
			e.registry.Evict(ctx, session.Identity)
			return e.fail(session, domain.FailureSessionInvalid, err)
		}
		return e.fail(session, domain.FailureActionFailed, err)
	}

	return domain.ActionOutcome{
		Identity:    session.Identity,
		Succeeded:   true,
		CompletedAt: e.clock.Now(),
	}
}

func (e *Executor) fail(session domain.SessionRecord, kind domain.FailureKind, err error) domain.ActionOutcome {
	return domain.ActionOutcome{
		Identity:    session.Identity,
		Succeeded:   false,
		Failure:     kind,
		Error:       err.Error(),
		CompletedAt: e.clock.Now(),
	}
}
