package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contravention-api/internal/models"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	seen   string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.seen = token
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/employees/:id", handlers...)
	return router
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/employees/emp-1", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWTRequiresBearerToken(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u-1", Role: models.RoleAdmin}}
	router := newRouter(JWT(validator))

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Bearer ").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Bearer bad").Code)
	assert.Equal(t, http.StatusNoContent, serve(router, "bearer  good").Code)
	assert.Equal(t, "good", validator.seen)
}

func TestRBACAllowsRolesAndSelf(t *testing.T) {
	cases := []struct {
		name   string
		claims *models.JWTClaims
		status int
	}{
		{"admin", &models.JWTClaims{Role: models.RoleAdmin}, http.StatusNoContent},
		{"self", &models.JWTClaims{Role: models.RoleEmployee, EmployeeID: "emp-1"}, http.StatusNoContent},
		{"other employee", &models.JWTClaims{Role: models.RoleEmployee, EmployeeID: "emp-2"}, http.StatusForbidden},
		{"employee without link", &models.JWTClaims{Role: models.RoleEmployee}, http.StatusForbidden},
		{"submitter", &models.JWTClaims{Role: models.RoleSubmitter}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(JWT(&stubValidator{claims: tc.claims}), RBAC(string(models.RoleAdmin), Self))
			assert.Equal(t, tc.status, serve(router, "Bearer good").Code)
		})
	}

	router := newRouter(RBAC(string(models.RoleAdmin)))
	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
}

func TestServiceToken(t *testing.T) {
	router := newRouter(ServiceToken("s3cret"))
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/employees/emp-1", nil)
	req.Header.Set("X-Service-Token", "s3cret")
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(newRouter(ServiceToken("")), "").Code)
}

type stubAuditWriter struct {
	mu   sync.Mutex
	logs []models.AuditLog
	err  error
}

func (s *stubAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *log)
	return s.err
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	writer := &stubAuditWriter{err: errors.New("ignored")}
	claims := &models.JWTClaims{UserID: "u-1", Role: models.RoleAdmin}
	router := newRouter(JWT(&stubValidator{claims: claims}), Audit(writer, nil, "POINTS_VIEW", "employee_points"))

	require.Equal(t, http.StatusNoContent, serve(router, "Bearer good").Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, "").Code)

	require.Len(t, writer.logs, 1)
	log := writer.logs[0]
	assert.Equal(t, "POINTS_VIEW", log.Action)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "u-1", *log.UserID)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "emp-1", *log.ResourceID)
}

type stubObserver struct {
	path   string
	status int
}

func (s *stubObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	s.path = path
	s.status = status
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &stubObserver{}
	router := newRouter(Metrics(observer))
	serve(router, "")
	assert.Equal(t, "/employees/:id", observer.path)
	assert.Equal(t, http.StatusNoContent, observer.status)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/reports", func(c *gin.Context) {
		SetCacheHit(c, true)
		SetMeta(c, "fiscal_year", 2026)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/reports", nil))

	assert.Equal(t, true, meta[cacheHitKey])
	assert.Equal(t, 2026, meta["fiscal_year"])
	assert.Contains(t, meta, "processing_time_ms")
	assert.Nil(t, ExtractMeta(nil))
}
