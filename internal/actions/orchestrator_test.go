package actions

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfriesen/actionreplay/internal/domain"
)

// --- Mock implementations ---

type mockSessionSource struct {
	listActiveFn func(ctx context.Context) []domain.SessionRecord
	markUsedFn   func(ctx context.Context, identity string)
}

func (m *mockSessionSource) ListActive(ctx context.Context) []domain.SessionRecord {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil
}

func (m *mockSessionSource) MarkUsed(ctx context.Context, identity string) {
	if m.markUsedFn != nil {
		m.markUsedFn(ctx, identity)
	}
}

type mockExecutor struct {
	executeFn func(ctx context.Context, session domain.SessionRecord, req domain.ActionRequest) domain.ActionOutcome
}

func (m *mockExecutor) Execute(ctx context.Context, session domain.SessionRecord, req domain.ActionRequest) domain.ActionOutcome {
	if m.executeFn != nil {
		return m.executeFn(ctx, session, req)
	}
	return domain.ActionOutcome{Identity: session.Identity, Succeeded: true}
}

func sessionsNamed(identities ...string) []domain.SessionRecord {
	records := make([]domain.SessionRecord, 0, len(identities))
	for _, id := range identities {
		records = append(records, domain.SessionRecord{Identity: id, Active: true})
	}
	return records
}

func likeRequest() domain.ActionRequest {
	return domain.ActionRequest{Target: "https://www.facebook.com/p/1", Kind: domain.KindLike}
}

// --- Tests ---

func TestOrchestratorRunOneOutcomePerSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	history := NewHistory(clock, 10)

	source := &mockSessionSource{
		listActiveFn: func(ctx context.Context) []domain.SessionRecord {
			return sessionsNamed("alpha", "beta", "gamma")
		},
	}
	executor := &mockExecutor{
		executeFn: func(ctx context.Context, session domain.SessionRecord, req domain.ActionRequest) domain.ActionOutcome {
			if session.Identity == "beta" {
				return domain.ActionOutcome{Identity: session.Identity, Failure: domain.FailureActionFailed, Error: "boom"}
			}
			return domain.ActionOutcome{Identity: session.Identity, Succeeded: true}
		},
	}

	o := NewOrchestrator(source, executor, history, clock, 0)
	summary, err := o.Run(context.Background(), likeRequest())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total())
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)
	assert.Equal(t, "alpha", summary.Outcomes[0].Identity)
	assert.Equal(t, "beta", summary.Outcomes[1].Identity)
	assert.Equal(t, "gamma", summary.Outcomes[2].Identity)
	assert.Equal(t, clock.Now(), summary.Timestamp)
}

func TestOrchestratorRunNoSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	history := NewHistory(clock, 10)
	source := &mockSessionSource{}

	o := NewOrchestrator(source, &mockExecutor{}, history, clock, 0)
	summary, err := o.Run(context.Background(), likeRequest())

	assert.Nil(t, summary)
	assert.ErrorIs(t, err, domain.ErrNoSessionsAvailable)
	assert.Zero(t, history.Total(), "an empty run must not reach history")
}

func TestOrchestratorRunFailureNeverAbortsSiblings(t *testing.T) {
	clock := clockwork.NewFakeClock()
	history := NewHistory(clock, 10)

	executed := []string{}
	source := &mockSessionSource{
		listActiveFn: func(ctx context.Context) []domain.SessionRecord {
			return sessionsNamed("alpha", "beta")
		},
	}
	executor := &mockExecutor{
		executeFn: func(ctx context.Context, session domain.SessionRecord, req domain.ActionRequest) domain.ActionOutcome {
			executed = append(executed, session.Identity)
			return domain.ActionOutcome{Identity: session.Identity, Failure: domain.FailureSessionInvalid}
		},
	}

	o := NewOrchestrator(source, executor, history, clock, 0)
	summary, err := o.Run(context.Background(), likeRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "beta"}, executed)
	assert.Equal(t, 2, summary.FailureCount)
}

func TestOrchestratorRunMarksEverySessionUsed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	history := NewHistory(clock, 10)

	var used []string
	source := &mockSessionSource{
		listActiveFn: func(ctx context.Context) []domain.SessionRecord {
			return sessionsNamed("alpha", "beta")
		},
		markUsedFn: func(ctx context.Context, identity string) {
			used = append(used, identity)
		},
	}
	executor := &mockExecutor{
		executeFn: func(ctx context.Context, session domain.SessionRecord, req domain.ActionRequest) domain.ActionOutcome {
			// Failures still count as a use.
			return domain.ActionOutcome{Identity: session.Identity, Failure: domain.FailureActionFailed}
		},
	}

	o := NewOrchestrator(source, executor, history, clock, 0)
	_, err := o.Run(context.Background(), likeRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, used)
}

func TestOrchestratorRunRecordsHistory(t *testing.T) {
	clock := clockwork.NewFakeClock()
	history := NewHistory(clock, 10)
	source := &mockSessionSource{
		listActiveFn: func(ctx context.Context) []domain.SessionRecord {
			return sessionsNamed("alpha")
		},
	}

	o := NewOrchestrator(source, &mockExecutor{}, history, clock, 0)
	summary, err := o.Run(context.Background(), likeRequest())
	require.NoError(t, err)

	require.Equal(t, 1, history.Total())
	page, _ := history.Page(0, 1)
	assert.Equal(t, summary.ID, page[0].ID)
}

func TestOrchestratorPacingBetweenSessionsOnly(t *testing.T) {
	clock := clockwork.NewFakeClock()
	history := NewHistory(clock, 10)
	pacing := 2 * time.Second

	source := &mockSessionSource{
		listActiveFn: func(ctx context.Context) []domain.SessionRecord {
			return sessionsNamed("alpha", "beta", "gamma")
		},
	}

	o := NewOrchestrator(source, &mockExecutor{}, history, clock, pacing)

	type result struct {
		summary *domain.ActionSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := o.Run(context.Background(), likeRequest())
		done <- result{summary, err}
	}()

	// Two gaps for three sessions; no trailing wait after the last.
	for i := 0; i < 2; i++ {
		clock.BlockUntil(1)
		clock.Advance(pacing)
	}

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, 3, res.summary.Total())
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after advancing through both pacing gaps")
	}
}

func TestOrchestratorRunCancelledDuringPacing(t *testing.T) {
	clock := clockwork.NewFakeClock()
	history := NewHistory(clock, 10)

	source := &mockSessionSource{
		listActiveFn: func(ctx context.Context) []domain.SessionRecord {
			return sessionsNamed("alpha", "beta")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := NewOrchestrator(source, &mockExecutor{}, history, clock, time.Second)

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx, likeRequest())
		errCh <- err
	}()

	clock.BlockUntil(1)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled run did not return")
	}
	assert.Zero(t, history.Total(), "an aborted run must not reach history")
}
