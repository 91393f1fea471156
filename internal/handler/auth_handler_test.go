package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"einvoice/internal/database"
	"einvoice/internal/repository"
	"einvoice/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newAccountRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	gin.SetMode(gin.TestMode)
	auth := newAuthenticator()
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authService := service.NewAuthService(userRepo, orgRepo, auditRepo, repository.NewTransactionManager(db), auth, time.Hour)

	r := gin.New()
	api := r.Group("")
	NewAuthHandler(authService, auth).RegisterRoutes(api)
	NewUserHandler(service.NewUserService(userRepo, auditRepo), auth).RegisterRoutes(api)
	NewOrganizationHandler(service.NewOrganizationService(orgRepo, auditRepo), auth).RegisterRoutes(api)
	return r
}

func cookieHeader(w *httptest.ResponseRecorder) string {
	parts := make([]string, 0, 2)
	for _, c := range w.Result().Cookies() {
		if c.Value != "" {
			parts = append(parts, c.Name+"="+c.Value)
		}
	}
	return strings.Join(parts, "; ")
}

func TestAuthFlow(t *testing.T) {
	r := newAccountRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/api/auth/register", "", `{
		"business_name":"Textiles Ltd","ntn_cnic":"9999999","province":"Punjab",
		"username":"fatima","email":"fatima@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"role":"admin"`)
	cookies := cookieHeader(w)
	require.Contains(t, cookies, "access_token=")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Cookie", cookies)
	me := httptest.NewRecorder()
	r.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"ntn_cnic":"9999999"`)

	w, _ = doJSON(t, r, http.MethodPost, "/api/auth/register", "", `{
		"business_name":"Other","ntn_cnic":"9999999","province":"Sindh",
		"username":"ali","email":"ali@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/auth/login", "", `{"email":"fatima@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/auth/login", "", `{"email":"fatima@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set("Cookie", cookies)
	refreshed := httptest.NewRecorder()
	r.ServeHTTP(refreshed, req)
	require.Equal(t, http.StatusOK, refreshed.Code, refreshed.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set("Cookie", cookies)
	reused := httptest.NewRecorder()
	r.ServeHTTP(reused, req)
	assert.Equal(t, http.StatusUnauthorized, reused.Code, "a refresh token is consumed on use")
}

func TestAdminOnlyRoutes(t *testing.T) {
	r := newAccountRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/auth/register", "", `{
		"business_name":"Textiles Ltd","ntn_cnic":"9999999","province":"Punjab",
		"username":"fatima","email":"fatima@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	admin := cookieHeader(w)

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"username":"clerk","email":"clerk@example.com","password":"secret123","role":"user"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", admin)
	created := httptest.NewRecorder()
	r.ServeHTTP(created, req)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	w, _ = doJSON(t, r, http.MethodPost, "/api/auth/login", "", `{"email":"clerk@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, w.Code)
	clerk := cookieHeader(w)

	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Cookie", clerk)
	forbidden := httptest.NewRecorder()
	r.ServeHTTP(forbidden, req)
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/organization", nil)
	req.Header.Set("Cookie", clerk)
	org := httptest.NewRecorder()
	r.ServeHTTP(org, req)
	assert.Equal(t, http.StatusOK, org.Code)
	assert.Contains(t, org.Body.String(), `"has_fbr_token":false`)
}
