package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gonmt/nmtgw/internal/tracing"
)

// Server is the HTTP server fronting the translation gateway. It binds
// the chi router to the configured address and provides graceful
// shutdown support.
type Server struct {
	router  chi.Router
	handler *Handler
	addr    string
	httpSrv *http.Server
}

// NewServer creates a new Server with the given Handler, listen address,
// and HTTP timeout durations. Zero-value timeouts leave the corresponding
// http.Server field at its default (no timeout). If tracingEnabled is
// true, the OpenTelemetry HTTP middleware is added to extract/inject
// trace context.
func NewServer(handler *Handler, addr string, readTimeout, writeTimeout, idleTimeout time.Duration, tracingEnabled bool) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if tracingEnabled {
		r.Use(tracing.HTTPMiddleware)
	}

	r.Post("/translate", handler.HandleTranslate)
	r.Get("/translate", handler.HandleTranslateGet(false))
	r.Get("/lang_pairs", handler.HandleLangPairs)
	r.Get("/get_languages", handler.HandleGetLanguages)
	r.Get("/language_detection", handler.HandleLanguageDetection)
	r.Post("/language_detection", handler.HandleLanguageDetection)
	r.Get("/model_name", handler.HandleModelName)
	r.Get("/discover/all", handler.HandleDiscoverAll)
	r.Get("/discover/{family}", func(w http.ResponseWriter, req *http.Request) {
		handler.HandleDiscoverFamily(chi.URLParam(req, "family"))(w, req)
	})
	r.Post("/discover/clear-cache", handler.HandleDiscoverClearCache)
	r.Get("/healthz", handler.HandleHealthz)
	r.Get("/readyz", handler.HandleReadyz)
	r.Get("/cache", handler.HandleCache)

	r.Post("/compat/translate", handler.HandleTranslateCompat)
	r.Get("/compat/translate", handler.HandleTranslateGet(true))

	srv := &Server{
		router:  r,
		handler: handler,
		addr:    addr,
	}

	srv.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	return srv
}

// Router returns the underlying chi.Router, useful for testing or
// additional route mounting by the caller.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start begins listening for HTTP connections on the configured
// address. It blocks until the server is shut down or encounters a
// fatal error.
func (s *Server) Start() error {
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
