package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projecthub/internal/metrics"
	"projecthub/internal/models"
	"projecthub/internal/policy"
	"projecthub/internal/security"
	"projecthub/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthenticator struct {
	claims *security.AccessClaims
	err    error
}

func (s stubAuthenticator) Authenticate(context.Context, string) (*security.AccessClaims, error) {
	return s.claims, s.err
}

func newRouter(auth Authenticator, m *metrics.Metrics, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()), Metrics(m))
	handlers := append([]gin.HandlerFunc{Auth(auth, zerolog.Nop(), m)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": identity.ID, "role": identity.Role})
	})
	r.GET("/protected", handlers...)
	return r
}

func doGet(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func clientClaims() *security.AccessClaims {
	return &security.AccessClaims{Identity: models.Identity{ID: "u1", Role: models.UserRoleClient}}
}

func TestAuthOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		auth     stubAuthenticator
		status   int
		errorMsg string
		outcome  string
	}{
		{"missing header", "", stubAuthenticator{}, http.StatusUnauthorized, "missing_token", metrics.OutcomeMissing},
		{"wrong scheme", "Basic abc", stubAuthenticator{}, http.StatusUnauthorized, "missing_token", metrics.OutcomeMissing},
		{"invalid", "Bearer x", stubAuthenticator{err: fmt.Errorf("%w: bad", service.ErrInvalidToken)}, http.StatusUnauthorized, "invalid_token", metrics.OutcomeInvalid},
		{"revoked", "Bearer x", stubAuthenticator{err: service.ErrTokenRevoked}, http.StatusUnauthorized, "token_revoked", metrics.OutcomeRevoked},
		{"store down", "Bearer x", stubAuthenticator{err: errors.New("dial tcp: refused")}, http.StatusInternalServerError, "internal_error", metrics.OutcomeStoreError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			rec := doGet(newRouter(tt.auth, m), tt.header)

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.errorMsg), rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "refused")
			assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthChecks.WithLabelValues(tt.outcome)))
		})
	}
}

func TestAuthSetsIdentity(t *testing.T) {
	rec := doGet(newRouter(stubAuthenticator{claims: clientClaims()}, nil), "Bearer good")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"u1","role":"client"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequireAction(t *testing.T) {
	m := metrics.New()
	r := newRouter(stubAuthenticator{claims: clientClaims()}, m, RequireAction(policy.ActionListAllProjects, m))

	rec := doGet(r, "Bearer good")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden","reason":"role_not_allowed"}`, rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PolicyDenials.WithLabelValues(policy.ReasonRoleNotAllowed)))

	provider := &security.AccessClaims{Identity: models.Identity{ID: "p1", Role: models.UserRoleProvider}}
	r = newRouter(stubAuthenticator{claims: provider}, m, RequireAction(policy.ActionListAllProjects, m))
	assert.Equal(t, http.StatusOK, doGet(r, "Bearer good").Code)
}

func TestRequestIDPropagates(t *testing.T) {
	r := newRouter(stubAuthenticator{claims: clientClaims()}, nil)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestRecoveryHidesPanic(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()))
	r.GET("/boom", func(*gin.Context) { panic("secret detail") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, rec.Body.String())
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	m := metrics.New()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/projects/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/projects/:id", "GET", "204")))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDReplacesUnsafeValues(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, CurrentRequestID(c)) })

	for _, header := range []string{"", "has space", strings.Repeat("a", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/id", nil)
		if header != "" {
			req.Header.Set(requestIDHeader, header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		got := rec.Header().Get(requestIDHeader)
		assert.NotEqual(t, header, got)
		assert.Len(t, got, 27)
		assert.Equal(t, got, rec.Body.String())
	}
}
