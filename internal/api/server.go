// Package api serves the query conversions over HTTP with echo.
//
// All routes live under /v1 and reply with a Response envelope:
//
//	POST   /v1/convert        legacy v3 composite query -> v5 envelopes
//	                          (?to=legacy: v5 envelopes -> legacy query)
//	POST   /v1/prepare        legacy query + panel + range -> query_range payload
//	POST   /v1/validate       v5 composite query -> problems
//	POST   /v1/paginate       list query + cursor -> next page filters/offset
//	POST   /v1/aggregations   expression text -> parsed aggregations
//	POST   /v1/filters/parse  filter text -> filter group
//	POST   /v1/compile        CUE query definition -> query + envelopes
//	POST   /v1/edit           query + edit actions -> edited query + envelopes
//	POST   /v1/views          save a view
//	GET    /v1/views          list views (keyset paginated)
//	GET    /v1/views/:id      get a view
//	DELETE /v1/views/:id      delete a view
//
// The views routes are registered only when a ViewStore is configured.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/roach88/querybuilder/internal/store"
)

// ViewStore is the saved-view storage used by the views routes.
// *store.Store implements it.
type ViewStore interface {
	SaveView(ctx context.Context, nv store.NewView) (store.View, bool, error)
	GetView(ctx context.Context, id string) (store.View, error)
	ListViews(ctx context.Context, sourcePage, cursor string, limit int) (store.Page, error)
	DeleteView(ctx context.Context, id string) error
}

// ShutdownTimeout bounds how long Start waits for in-flight requests.
const ShutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	// Store enables the views routes when non-nil.
	Store ViewStore

	// Logger receives access logs and handler errors.
	Logger zerolog.Logger

	// PageSize is used by /v1/paginate when a request leaves it unset.
	PageSize int
}

// Server is the HTTP API.
type Server struct {
	echo     *echo.Echo
	store    ViewStore
	log      zerolog.Logger
	pageSize int
}

// New builds a Server with its routes registered.
func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		store:    opts.Store,
		log:      opts.Logger.With().Str("scope", "api").Logger(),
		pageSize: opts.PageSize,
	}
	if s.pageSize <= 0 {
		s.pageSize = 10
	}

	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = s.handleError
	e.Use(accessLog(s.log))

	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.echo.Group("/v1")
	v1.POST("/convert", s.convert)
	v1.POST("/prepare", s.prepare)
	v1.POST("/validate", s.validate)
	v1.POST("/paginate", s.paginate)
	v1.POST("/aggregations", s.aggregations)
	v1.POST("/filters/parse", s.parseFilter)
	v1.POST("/compile", s.compile)
	v1.POST("/edit", s.edit)

	if s.store == nil {
		return
	}
	views := v1.Group("/views")
	views.POST("", s.saveView)
	views.GET("", s.listViews)
	views.GET("/:id", s.getView)
	views.DELETE("/:id", s.deleteView)
}

// ServeHTTP lets tests drive the server with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Routes lists the registered method and path pairs.
func (s *Server) Routes() []string {
	routes := s.echo.Routes()
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		out = append(out, r.Method+" "+r.Path)
	}
	return out
}

// Start listens on addr until ctx is cancelled, then shuts down, giving
// in-flight requests up to ShutdownTimeout to finish.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Starting server")
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info().Msg("Server gracefully stopped")
	return nil
}

// handleError renders errors that escaped a handler, including echo's own
// 404 and 405, as a Response.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	code := CodeInternalError
	message := MessageFor(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		code = codeForStatus(he.Code)
		message = MessageFor(code)
		if m, ok := he.Message.(string); ok && m != "" {
			message = m
		}
	} else {
		s.log.Error().Err(err).Str("request-id", RequestID(c)).Msg("Unhandled error")
	}

	if err := Fail(c, status, code, message); err != nil {
		s.log.Error().Err(err).Msg("Failed to write error response")
	}
}
