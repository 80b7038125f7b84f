package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mfriesen/actionreplay/internal/domain"
)

// sessionSource is the slice of the registry the orchestrator consumes.
type sessionSource interface {
	ListActive(ctx context.Context) []domain.SessionRecord
	MarkUsed(ctx context.Context, identity string)
}

// sessionExecutor runs one (session, request) pairing.
type sessionExecutor interface {
	Execute(ctx context.Context, session domain.SessionRecord, req domain.ActionRequest) domain.ActionOutcome
}

// Orchestrator fans one action request out over every registered session,
// strictly sequentially with a fixed pacing interval between sessions. The
// sequencing is a deliberate rate-limit control, not an implementation
// accident: sessions are never run in parallel.
type Orchestrator struct {
	registry sessionSource
	executor sessionExecutor
	history  *History
	clock    clockwork.Clock
	pacing   time.Duration
}

func NewOrchestrator(registry sessionSource, executor sessionExecutor, history *History, clock clockwork.Clock, pacing time.Duration) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		executor: executor,
		history:  history,
		clock:    clock,
		pacing:   pacing,
	}
}

// Run executes req once per active session. Individual session failures are
// captured into the summary and never abort the remaining sessions; only a
// total absence of sessions is a hard failure, and then nothing is recorded
// to history. Cancellation of ctx aborts between sessions and also leaves
// history untouched.
func (o *Orchestrator) Run(ctx context.Context, req domain.ActionRequest) (*domain.ActionSummary, error) {
	sessions := o.registry.ListActive(ctx)
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%w", domain.ErrNoSessionsAvailable)
	}

	summary := &domain.ActionSummary{
		ID:       uuid.New(),
		Request:  req,
		Outcomes: make([]domain.ActionOutcome, 0, len(sessions)),
	}

	for i, session := range sessions {
		outcome := o.executor.Execute(ctx, session, req)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.Succeeded {
			summary.SuccessCount++
		} else {
			summary.FailureCount++
		}

		// Even a failed attempt counts as a use, short of eviction; the
		// store skips identities that are no longer active.
		o.registry.MarkUsed(ctx, session.Identity)

		// Pacing is skipped after the final session.
		if i < len(sessions)-1 {
			if err := o.pace(ctx); err != nil {
				return nil, err
			}
		}
	}

	summary.Timestamp = o.clock.Now()
	o.history.Record(*summary)
	return summary, nil
}

func (o *Orchestrator) pace(ctx context.Context) error {
	if o.pacing <= 0 {
		return nil
	}
	select {
	case <-o.clock.After(o.pacing):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("run cancelled during pacing: %w", ctx.Err())
	}
}
