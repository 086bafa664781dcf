// Package api exposes the session engine's request/response operations over
// REST. The live editing actions travel over the websocket gateway instead;
// this surface carries everything that appends to the event log plus the
// derived-state and submission queries.
package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/codeclub/liveclass/internal/event"
	"github.com/codeclub/liveclass/internal/session"
	"github.com/codeclub/liveclass/internal/stats"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		Deriver        *session.Deriver
		Log            event.Log
		// WSHandler, when set, is mounted at /ws for the live editing
		// gateway.
		WSHandler http.Handler
		// Stats, when set, exposes aggregate activity counters at
		// /v1/stats.
		Stats *stats.Tracker
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	s.app.Use(middleware.Recover())

	s.app.HTTPErrorHandler = appHTTPErrorHandler

	s.app.GET("/healthz", health)
	if s.opts.WSHandler != nil {
		s.app.GET("/ws", echo.WrapHandler(s.opts.WSHandler))
	}

	v1 := s.app.Group("/v1")
	registerSessionAPI(v1, s.opts.Deriver, s.opts.Log, validator.New())
	if s.opts.Stats != nil {
		v1.GET("/stats", func(ctx echo.Context) error {
			return ctx.JSON(http.StatusOK, s.opts.Stats.Snapshot())
		})
	}
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
