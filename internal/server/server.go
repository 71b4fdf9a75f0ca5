// Package server exposes downloads and metadata lookups over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/censusdis/internal/census"
	"github.com/sells-group/censusdis/internal/data"
)

// RequestIDHeader carries the ID assigned to each request.
const RequestIDHeader = "X-Request-Id"

// Server routes HTTP requests to a Downloader.
type Server struct {
	d      *data.Downloader
	router chi.Router
}

// New returns a Server. corsOrigins lists the allowed origins; empty
// allows any.
func New(d *data.Downloader, corsOrigins []string) *Server {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	s := &Server{d: d}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/datasets", s.datasets)
		r.Get("/variables", s.variables)
		r.Get("/groups", s.groups)
		r.Get("/geographies", s.geographies)
		r.Get("/data", s.data)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// NewHTTPServer wraps h with the timeouts used in production.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

// badRequest reports an invalid query parameter.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

// writeError maps err to a status: 400 for problems with the request and
// 502 for failures reaching the Census API.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	var br *badRequest
	if census.IsAPIError(err) || errors.As(err, &br) {
		status = http.StatusBadRequest
	}
	zap.L().Warn("server: request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", w.Header().Get(RequestIDHeader)),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
