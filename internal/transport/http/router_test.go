package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/waterworks/internal/handlers"
	"github.com/Skotchmaster/waterworks/internal/middleware/auth"
	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/repo"
	"github.com/Skotchmaster/waterworks/internal/service"
	"github.com/Skotchmaster/waterworks/internal/testutil"
)

func newServer(t *testing.T) (*echo.Echo, *repo.GormRepo) {
	t.Helper()
	db := testutil.InitTestDB(t)
	r := &repo.GormRepo{DB: db}
	tokens := service.NewTokenService(r, nil, service.DefaultPolicy())

	e := echo.New()
	Register(e, &Deps{
		DB:              db,
		Gate:            &auth.Gate{Tokens: tokens},
		AuthHandler:     &handlers.AuthHandler{Auth: &service.AuthService{Repo: r, Tokens: tokens}, Tokens: tokens},
		ActivityHandler: &handlers.ActivityHandler{Repo: r},
		ReportHandler:   &handlers.ReportHandler{DB: db},
	})
	return e, r
}

func serve(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e, _ := newServer(t)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health/ready", "", "").Code)
}

func TestGatedRoutesRequireToken(t *testing.T) {
	e, _ := newServer(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/logout"},
		{http.MethodPost, "/api/logout-all"},
		{http.MethodPost, "/api/refresh-token"},
		{http.MethodGet, "/api/token-status"},
		{http.MethodGet, "/api/user"},
		{http.MethodPost, "/api/reports/staff/monthly/1/publish"},
		{http.MethodDelete, "/api/reports/admin/monthly/1"},
		{http.MethodDelete, "/api/admin/cleanup-tokens"},
		{http.MethodGet, "/api/admin/activity-logs"},
	} {
		rec := serve(e, route.method, route.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}
}

func TestLoginThenAdminRoute(t *testing.T) {
	e, r := newServer(t)
	testutil.SeedUser(t, r.DB, "staff@water.local", models.RoleStaff)

	rec := serve(e, http.MethodPost, "/api/login", `{"email":"staff@water.local","password":"password123"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	token := body["token"].(string)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/user", "", token).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/api/admin/activity-logs", "", token).Code)
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodPost, "/api/reports/staff/monthly/42/publish", "", token).Code)
}
