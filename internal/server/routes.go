package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Session acquisition and management
	s.echo.POST("/auth/login", s.handleLogin)
	s.echo.POST("/auth/cookies", s.handleCookieImport)
	s.echo.POST("/auth/logout", s.handleLogout)
	s.echo.GET("/auth/sessions", s.handleListSessions, s.requireLogin)
	s.echo.DELETE("/auth/sessions/:identity", s.handleRemoveSession, s.requireLogin)
	s.echo.POST("/auth/sessions/:identity/validate", s.handleValidateSession, s.requireLogin)

	// Action execution (operator login required)
	s.echo.POST("/action/perform", s.handlePerform, s.requireLogin)
	s.echo.POST("/action/bulk", s.handleBulk, s.requireLogin)
	s.echo.GET("/action/history", s.handleHistory, s.requireLogin)
	s.echo.GET("/action/stats", s.handleStats, s.requireLogin)
}
