package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"einvoice/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthConfig(secret string) config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:         secret,
		AccessTokenTTL:    time.Hour,
		RefreshTokenTTL:   24 * time.Hour,
		AccessCookieName:  "access_token",
		RefreshCookieName: "refresh_token",
	}
}

func newProtectedRouter(a *Authenticator, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/p", a.RequireRole(roles...), func(c *gin.Context) {
		userID, _ := UserID(c)
		orgID, _ := OrgID(c)
		c.JSON(http.StatusOK, gin.H{"user": userID.String(), "org": orgID.String()})
	})
	return r
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthenticator(testAuthConfig("s3cret"))
	userID, orgID := uuid.New(), uuid.New()

	token, err := a.IssueAccessToken(userID, "admin", &orgID)
	require.NoError(t, err)

	claims, err := a.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, orgID.String(), claims.OrgID)
	assert.Equal(t, "admin", claims.Role)
}

func TestParse_RejectsOtherSecretAndExpiry(t *testing.T) {
	issuer := NewAuthenticator(testAuthConfig("one"))
	token, err := issuer.IssueAccessToken(uuid.New(), "user", nil)
	require.NoError(t, err)

	_, err = NewAuthenticator(testAuthConfig("two")).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	later := NewAuthenticator(testAuthConfig("one"))
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireRole(t *testing.T) {
	a := NewAuthenticator(testAuthConfig("s3cret"))
	userID, orgID := uuid.New(), uuid.New()
	adminToken, _ := a.IssueAccessToken(userID, "admin", &orgID)
	userToken, _ := a.IssueAccessToken(userID, "user", &orgID)
	r := newProtectedRouter(a, "admin")

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bad format", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.Header.Set("Authorization", "Token abc")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.Header.Set("Authorization", "Bearer "+userToken)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("bearer", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), userID.String())
		assert.Contains(t, w.Body.String(), orgID.String())
	})

	t.Run("cookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: adminToken})
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestTokenCookies(t *testing.T) {
	cfg := testAuthConfig("s3cret")
	cfg.CookieSecure = true
	cfg.CookieSameSiteNone = true
	a := NewAuthenticator(cfg)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	a.SetTokenCookies(c, "acc", "ref")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "access_token", cookies[0].Name)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteNoneMode, cookies[0].SameSite)
	assert.Equal(t, "refresh_token", cookies[1].Name)
	assert.Equal(t, "ref", cookies[1].Value)
}
