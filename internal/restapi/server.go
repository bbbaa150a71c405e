// Package restapi is the Domain Server's HTTP/2+JSON (or MessagePack)
// front end and WebSocket endpoint, grounded on spec.md §6's EXTERNAL
// INTERFACES table.
package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doismellburning/audiocloud-domain/internal/apierror"
)

// AuthMode controls how the bearer-token check behaves, grounded on
// spec.md §6's "Absence is rejected in production; in development it
// is treated as super-user."
type AuthMode int

const (
	AuthProduction AuthMode = iota
	AuthDevelopment
)

var requestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "audiocloud_domain",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests handled by the Domain Server.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

func init() {
	prometheus.MustRegister(requestDuration)
}

// HealthChecker reports whether the server's dependencies (supervisors,
// buses, stores) are currently healthy.
type HealthChecker interface {
	Healthy() bool
}

// Server is the Domain Server's HTTP surface.
type Server struct {
	mux       *http.ServeMux
	secureKey string
	mode      AuthMode
	health    HealthChecker
	logger    *log.Logger
}

// New builds a Server with /healthz and /metrics already registered.
// Route registration for the v1 API is left to callers via Handle,
// since the concrete task/instance/media handlers depend on
// supervisors this package doesn't import.
func New(secureKey string, mode AuthMode, health HealthChecker, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		mux:       http.NewServeMux(),
		secureKey: secureKey,
		mode:      mode,
		health:    health,
		logger:    logger.With("component", "restapi"),
	}
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

// APIHandler is a v1-route handler that may fail with an apierror.Error.
type APIHandler func(w http.ResponseWriter, r *http.Request, c codec) error

// Handle registers an authenticated v1 API route, wrapping it with
// codec negotiation, bearer-token auth, error-to-status mapping, and
// request-duration metrics.
func (s *Server) Handle(pattern string, handler APIHandler) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		c := negotiateCodec(r)

		if err := s.authenticate(r); err != nil {
			s.writeError(w, c, err)
			return
		}

		status := http.StatusOK
		if err := handler(w, r, c); err != nil {
			status = s.writeError(w, c, err)
		}

		requestDuration.WithLabelValues(r.Method, pattern, http.StatusText(status)).Observe(time.Since(start).Seconds())
	})
}

// authenticate enforces spec.md §6's "Authorization: Bearer
// <secure_key>" rule.
func (s *Server) authenticate(r *http.Request) error {
	token := r.Header.Get("Authorization")
	const prefix = "Bearer "

	if token == "" {
		if s.mode == AuthDevelopment {
			return nil
		}
		return apierror.New(apierror.Unauthorized, "missing Authorization header")
	}

	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return apierror.New(apierror.Unauthorized, "malformed Authorization header")
	}
	if token[len(prefix):] != s.secureKey {
		return apierror.New(apierror.Unauthorized, "invalid bearer token")
	}
	return nil
}

// writeError encodes err as the tagged union {kind, details} of
// spec.md §6, mapping it to the matching HTTP status, and returns the
// status written for metrics labeling.
func (s *Server) writeError(w http.ResponseWriter, c codec, err error) int {
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierror.Wrap(apierror.Internal, err, "unexpected error")
	}

	status := apiErr.Kind.HTTPStatus()
	body, encodeErr := c.Encode(apiErr)
	if encodeErr != nil {
		s.logger.Warn("failed to encode error body", "error", encodeErr)
		w.WriteHeader(http.StatusInternalServerError)
		return http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(body)
	return status
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil && !s.health.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "unhealthy"})
		return
	}
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok"})
}

// ListenAndServe starts the HTTP/2-capable server on addr until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: s.mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
