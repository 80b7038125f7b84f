package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mfriesen/actionreplay/internal/actions"
	"github.com/mfriesen/actionreplay/internal/config"
	"github.com/mfriesen/actionreplay/internal/domain"
	apperrors "github.com/mfriesen/actionreplay/internal/errors"
)

const sessionMaxAgeHours = 24

// actionRunner runs one action request across all sessions.
type actionRunner interface {
	Run(ctx context.Context, req domain.ActionRequest) (*domain.ActionSummary, error)
}

// bulkRunner sequences a batch of requests.
type bulkRunner interface {
	RunBulk(ctx context.Context, items []domain.ActionRequest) ([]domain.BulkItemResult, error)
}

// historyReader serves recent-activity queries.
type historyReader interface {
	Page(offset, limit int) ([]domain.ActionSummary, bool)
	Total() int
	StatsSince(window string) actions.Stats
}

// storePinger reports durable-backend health for readiness checks.
type storePinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	registry     domain.SessionRegistry
	runner       actionRunner
	bulk         bulkRunner
	history      historyReader
	login        domain.LoginDriver
	store        storePinger
	sessionStore *sessions.CookieStore
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(cfg *config.Config, registry domain.SessionRegistry, runner actionRunner, bulk bulkRunner, history historyReader, login domain.LoginDriver, store storePinger, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600 * sessionMaxAgeHours,
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		registry:     registry,
		runner:       runner,
		bulk:         bulk,
		history:      history,
		login:        login,
		store:        store,
		sessionStore: sessionStore,
		clock:        clock,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(":" + s.config.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
