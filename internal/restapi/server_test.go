package restapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/audiocloud-domain/internal/apierror"
)

func okHandler(w http.ResponseWriter, r *http.Request, c codec) error {
	return writeJSON(w, c, http.StatusOK, map[string]string{"ok": "yes"})
}

func failHandler(w http.ResponseWriter, r *http.Request, c codec) error {
	return apierror.New(apierror.Conflict, "already exists")
}

func TestServer_RejectsMissingBearerTokenInProduction(t *testing.T) {
	s := New("secret", AuthProduction, nil, nil)
	s.Handle("/v1/ping", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_AllowsMissingBearerTokenInDevelopment(t *testing.T) {
	s := New("secret", AuthDevelopment, nil, nil)
	s.Handle("/v1/ping", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RejectsWrongBearerToken(t *testing.T) {
	s := New("secret", AuthProduction, nil, nil)
	s.Handle("/v1/ping", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_AcceptsCorrectBearerToken(t *testing.T) {
	s := New("secret", AuthProduction, nil, nil)
	s.Handle("/v1/ping", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_MapsApierrorKindToHTTPStatus(t *testing.T) {
	s := New("secret", AuthDevelopment, nil, nil)
	s.Handle("/v1/conflict", failHandler)

	req := httptest.NewRequest(http.MethodGet, "/v1/conflict", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

type alwaysHealthy struct{ healthy bool }

func (h alwaysHealthy) Healthy() bool { return h.healthy }

func TestServer_HealthzReflectsHealthChecker(t *testing.T) {
	s := New("secret", AuthDevelopment, alwaysHealthy{healthy: false}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_HealthzOKWithNoChecker(t *testing.T) {
	s := New("secret", AuthDevelopment, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_MetricsEndpointIsRegistered(t *testing.T) {
	s := New("secret", AuthDevelopment, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
