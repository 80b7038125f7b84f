package actions

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mfriesen/actionreplay/internal/domain"
)

// DefaultCapacity bounds the in-memory action log.
const DefaultCapacity = 100

// statsWindows maps the recognized stats windows to durations. Anything
// else defaults to 24h.
var statsWindows = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

const defaultWindow = "24h"

const recentLimit = 5

// Stats aggregates the log over a sliding time window.
type Stats struct {
	Window          string                    `json:"period"`
	TotalActions    int                       `json:"totalActions"`
	TotalSuccessful int                       `json:"totalSuccessful"`
	TotalFailed     int                       `json:"totalFailed"`
	ByKind          map[domain.ActionKind]int `json:"actionTypes"`
	Recent          []domain.ActionSummary    `json:"recentActions"`
}

// History is the bounded, insertion-ordered log of completed action
// requests, newest first. It lives for the process lifetime only and is
// never persisted. All reads are computed fresh from the log; it is small
// and bounded by construction, so there is no caching layer.
type History struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	capacity int
	entries  []domain.ActionSummary // newest first
}

func NewHistory(clock clockwork.Clock, capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{clock: clock, capacity: capacity}
}

// Record pushes a summary to the front and trims to capacity. Push and trim
// are one atomic unit under the lock, so the length invariant holds at all
// times even under concurrent recording.
func (h *History) Record(summary domain.ActionSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append([]domain.ActionSummary{summary}, h.entries...)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[:h.capacity]
	}
}

// Page returns a contiguous slice of the log in current order, plus whether
// more entries follow. Offset is clamped to [0, len]; a non-positive limit
// yields an empty page.
func (h *History) Page(offset, limit int) ([]domain.ActionSummary, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset > len(h.entries) {
		offset = len(h.entries)
	}
	if limit < 0 {
		limit = 0
	}

	end := offset + limit
	if end > len(h.entries) {
		end = len(h.entries)
	}

	page := make([]domain.ActionSummary, end-offset)
	copy(page, h.entries[offset:end])
	return page, end < len(h.entries)
}

// Total returns the current number of logged summaries.
func (h *History) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// StatsSince aggregates entries newer than now minus the window. An
// unrecognized window defaults to 24h.
func (h *History) StatsSince(window string) Stats {
	d, ok := statsWindows[window]
	if !ok {
		window = defaultWindow
		d = statsWindows[defaultWindow]
	}
	cutoff := h.clock.Now().Add(-d)

	h.mu.Lock()
	defer h.mu.Unlock()

	stats := Stats{
		Window: window,
		ByKind: make(map[domain.ActionKind]int),
		Recent: []domain.ActionSummary{},
	}

	for _, entry := range h.entries {
		if entry.Timestamp.Before(cutoff) {
			continue
		}
		stats.TotalActions++
		stats.TotalSuccessful += entry.SuccessCount
		stats.TotalFailed += entry.FailureCount
		stats.ByKind[entry.Request.Kind]++
		if len(stats.Recent) < recentLimit {
			stats.Recent = append(stats.Recent, entry)
		}
	}

	return stats
}
