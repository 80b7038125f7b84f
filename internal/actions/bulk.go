package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mfriesen/actionreplay/internal/domain"
	"github.com/mfriesen/actionreplay/internal/metrics"
)

const (
	// BulkMin and BulkMax bound the batch size. Outside this range the
	// whole call is rejected before any execution.
	BulkMin = 1
	BulkMax = 10
)

// runner is the orchestrator surface the dispatcher drives.
type runner interface {
	Run(ctx context.Context, req domain.ActionRequest) (*domain.ActionSummary, error)
}

// Bulk sequences independent action requests, isolating failures per item
// and pacing between items. One item's failure never aborts its siblings.
type Bulk struct {
	orchestrator runner
	clock        clockwork.Clock
	pacing       time.Duration
}

func NewBulk(orchestrator runner, clock clockwork.Clock, pacing time.Duration) *Bulk {
	return &Bulk{orchestrator: orchestrator, clock: clock, pacing: pacing}
}

// RunBulk validates the batch size up front (no partial side effects on a
// size violation), then runs each item in submission order. A malformed item
// records a failed result at its index without invoking the orchestrator;
// the inter-item pacing interval applies between items, not after the last.
func (b *Bulk) RunBulk(ctx context.Context, items []domain.ActionRequest) ([]domain.BulkItemResult, error) {
	if len(items) < BulkMin || len(items) > BulkMax {
		return nil, fmt.Errorf("%w: got %d items", domain.ErrInvalidBulkSize, len(items))
	}

	results := make([]domain.BulkItemResult, 0, len(items))
	for i, item := range items {
		results = append(results, b.runItem(ctx, i, item))

		if i < len(items)-1 {
			if err := b.pace(ctx); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

func (b *Bulk) runItem(ctx context.Context, index int, item domain.ActionRequest) domain.BulkItemResult {
	req, err := domain.NewActionRequest(item.Target, item.Kind, item.Comment)
	if err != nil {
		metrics.BulkItemsTotal.WithLabelValues("rejected").Inc()
		return domain.BulkItemResult{Index: index, OK: false, Error: err.Error()}
	}

	summary, err := b.orchestrator.Run(ctx, *req)
	if err != nil {
		metrics.BulkItemsTotal.WithLabelValues("failed").Inc()
		return domain.BulkItemResult{Index: index, OK: false, Error: err.Error()}
	}

	metrics.BulkItemsTotal.WithLabelValues("ok").Inc()
	return domain.BulkItemResult{Index: index, OK: true, Summary: summary}
}

func (b *Bulk) pace(ctx context.Context) error {
	if b.pacing <= 0 {
		return nil
	}
	select {
	case <-b.clock.After(b.pacing):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bulk dispatch cancelled during pacing: %w", ctx.Err())
	}
}
