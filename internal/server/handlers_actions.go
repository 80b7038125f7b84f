package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mfriesen/actionreplay/internal/domain"
	apperrors "github.com/mfriesen/actionreplay/internal/errors"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type performRequest struct {
	Target  string `json:"targetUrl"`
	Kind    string `json:"action"`
	Comment string `json:"comment"`
}

// handlePerform runs one action across every active session and returns the
// per-session outcomes.
func (s *Server) handlePerform(c echo.Context) error {
	var body performRequest
	if err := c.Bind(&body); err != nil {
		return apperrors.InvalidInput("invalid request body")
	}

	req, err := domain.NewActionRequest(body.Target, domain.ActionKind(body.Kind), body.Comment)
	if err != nil {
		return err
	}

	summary, err := s.runner.Run(c.Request().Context(), *req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":      true,
		"id":           summary.ID,
		"total":        summary.Total(),
		"successCount": summary.SuccessCount,
		"failureCount": summary.FailureCount,
		"outcomes":     summary.Outcomes,
	})
}

type bulkRequest struct {
	Actions []performRequest `json:"actions"`
}

// handleBulk sequences an array of 1..10 actions. Items are isolated: one
// failing item never aborts the rest, and malformed items surface as failed
// results in position.
func (s *Server) handleBulk(c echo.Context) error {
	var body bulkRequest
	if err := c.Bind(&body); err != nil {
		return apperrors.InvalidInput("invalid request body")
	}

	items := make([]domain.ActionRequest, 0, len(body.Actions))
	for _, a := range body.Actions {
		items = append(items, domain.ActionRequest{
			Target:  a.Target,
			Kind:    domain.ActionKind(a.Kind),
			Comment: a.Comment,
		})
	}

	results, err := s.bulk.RunBulk(c.Request().Context(), items)
	if err != nil {
		return err
	}

	succeeded := 0
	for _, r := range results {
		if r.OK {
			succeeded++
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"total":     len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
		"results":   results,
	})
}

// handleHistory pages through the in-memory action log, newest first.
func (s *Server) handleHistory(c echo.Context) error {
	limit := intQueryParam(c, "limit", defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	offset := intQueryParam(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, hasMore := s.history.Page(offset, limit)

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"total":   s.history.Total(),
		"limit":   limit,
		"offset":  offset,
		"hasMore": hasMore,
		"actions": entries,
	})
}

// handleStats aggregates the log over a sliding window (1h, 24h, 7d or 30d;
// defaults to 24h).
func (s *Server) handleStats(c echo.Context) error {
	stats := s.history.StatsSince(c.QueryParam("period"))

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
