package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/handler"
	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (t tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if c, ok := t[token]; ok {
		return c, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func testEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(Handlers{Ops: handler.NewMetricsHandler(nil, nil)}, Options{
		APIPrefix: "/api/v1",
		Tokens: tokenStub{
			"faculty": {UserID: "u-fac", Role: models.RoleFaculty},
			"staff":   {UserID: "u-staff", Role: models.RoleStaff},
		},
		Logger: zap.NewNop(),
	})
}

func request(r http.Handler, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoutesAreMounted(t *testing.T) {
	r := testEngine()
	routes := map[string]bool{}
	for _, info := range r.Routes() {
		routes[info.Method+" "+info.Path] = true
	}

	for _, want := range []string{
		"POST /api/v1/auth/login",
		"GET /api/v1/auth/me",
		"GET /api/v1/semesters/active",
		"POST /api/v1/semesters/:id/activate",
		"GET /api/v1/schedules/grid",
		"GET /api/v1/schedules/utilization",
		"POST /api/v1/schedules/check",
		"POST /api/v1/schedules/bulk",
		"POST /api/v1/schedules/:id/deactivate",
		"GET /api/v1/faculty/:id/schedules",
		"GET /api/v1/rooms/:id/schedules",
		"GET /api/v1/sections/:id/schedules",
		"POST /api/v1/exports",
		"GET /api/v1/exports/:id",
		"GET /api/v1/export/:token",
		"POST /api/v1/notifications/faculty/:id/digest",
		"GET /metrics",
		"GET /ready",
	} {
		assert.True(t, routes[want], want)
	}
	assert.False(t, routes["GET /docs/*any"])
}

func TestRouterAccessRules(t *testing.T) {
	r := testEngine()

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/api/v1/schedules", ""))
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodPost, "/api/v1/schedules", "faculty"))
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodDelete, "/api/v1/rooms/r1", "staff"))
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodGet, "/api/v1/users", "staff"))
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodGet, "/api/v1/notifications", "faculty"))
}
