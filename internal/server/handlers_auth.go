package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mfriesen/actionreplay/internal/domain"
	"github.com/mfriesen/actionreplay/internal/driver"
	apperrors "github.com/mfriesen/actionreplay/internal/errors"
)

// Session keys
const (
	sessionName        = "actionreplay-session"
	sessionKeyOperator = "operator"
)

// --- Auth middleware ---

// requireLogin gates the session-management and action endpoints behind an
// operator cookie established by a successful login or cookie import.
func (s *Server) requireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := s.sessionStore.Get(c.Request(), sessionName)
		if err != nil {
			return apperrors.Unauthorized("login required")
		}

		operator, ok := session.Values[sessionKeyOperator].(string)
		if !ok || operator == "" {
			return apperrors.Unauthorized("login required")
		}

		c.Set("operator", operator)
		return next(c)
	}
}

func (s *Server) establishOperator(c echo.Context, identity string) error {
	session, _ := s.sessionStore.Get(c.Request(), sessionName)
	session.Values[sessionKeyOperator] = identity
	return session.Save(c.Request(), c.Response())
}

// --- Auth handlers ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Identity     string                   `json:"fbId"`
	SerialTag    string                   `json:"serialKey"`
	Method       domain.AcquisitionMethod `json:"method"`
	CreatedAt    string                   `json:"createdAt"`
	LastUsedAt   string                   `json:"lastUsedAt"`
	TotalActions int                      `json:"totalActions"`
}

func toSessionResponse(rec domain.SessionRecord) sessionResponse {
	return sessionResponse{
		Identity:     domain.MaskIdentity(rec.Identity),
		SerialTag:    rec.SerialTag,
		Method:       rec.Method,
		CreatedAt:    rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		LastUsedAt:   rec.LastUsedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		TotalActions: rec.TotalActions,
	}
}

// handleLogin drives the remote login form with submitted credentials and
// registers the harvested session.
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.InvalidInput("invalid request body")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return apperrors.InvalidInput("email and password are required")
	}

	result, err := s.login.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	rec, err := s.registry.Save(c.Request().Context(), result.Identity, result.Credential, domain.MethodInteractiveLogin)
	if err != nil {
		return err
	}

	if err := s.establishOperator(c, rec.Identity); err != nil {
		return apperrors.Internal("failed to establish operator session", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"session": toSessionResponse(*rec),
	})
}

type cookieImportRequest struct {
	Cookies  string `json:"cookies"`
	Identity string `json:"fbId"`
}

// handleCookieImport registers a session from pasted cookie material. The
// identity comes from the c_user cookie when present, then the explicit
// fbId field, then a generated placeholder.
func (s *Server) handleCookieImport(c echo.Context) error {
	var req cookieImportRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.InvalidInput("invalid request body")
	}

	cred := domain.NewCredential(req.Cookies)
	if cred.Empty() {
		return apperrors.InvalidInput("cookies are required")
	}

	identity, ok := driver.IdentityFromCredential(cred)
	if !ok {
		identity = strings.TrimSpace(req.Identity)
	}
	if identity == "" {
		identity = fmt.Sprintf("temp_%d", s.clock.Now().UnixMilli())
	}

	rec, err := s.registry.Save(c.Request().Context(), identity, cred, domain.MethodImported)
	if err != nil {
		return err
	}

	if err := s.establishOperator(c, rec.Identity); err != nil {
		return apperrors.Internal("failed to establish operator session", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"session": toSessionResponse(*rec),
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	session, _ := s.sessionStore.Get(c.Request(), sessionName)
	session.Options.MaxAge = -1
	if err := session.Save(c.Request(), c.Response()); err != nil {
		return apperrors.Internal("failed to clear operator session", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// --- Session management handlers ---

func (s *Server) handleListSessions(c echo.Context) error {
	records := s.registry.ListActive(c.Request().Context())

	sessions := make([]sessionResponse, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, toSessionResponse(rec))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// handleRemoveSession evicts a session by identity. The :identity parameter
// accepts the full identity, not the masked form.
func (s *Server) handleRemoveSession(c echo.Context) error {
	identity := c.Param("identity")
	if identity == "" {
		return apperrors.InvalidInput("identity is required")
	}

	found := false
	for _, rec := range s.registry.ListActive(c.Request().Context()) {
		if rec.Identity == identity {
			found = true
			break
		}
	}
	if !found {
		return apperrors.NotFound("session not found")
	}

	s.registry.Evict(c.Request().Context(), identity)
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleValidateSession(c echo.Context) error {
	identity := c.Param("identity")
	if identity == "" {
		return apperrors.InvalidInput("identity is required")
	}

	valid, err := s.registry.Validate(c.Request().Context(), identity)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"valid":   valid,
	})
}
