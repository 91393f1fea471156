package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"einvoice/internal/config"
	"einvoice/internal/logger"
	"einvoice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Gin context keys set by RequireRole.
const (
	ContextUserID = "userID"
	ContextRole   = "userRole"
	ContextOrgID  = "orgID"
)

var (
	ErrMissingToken = errors.New("authorization is missing")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims carried by an access token.
type Claims struct {
	Role  string `json:"role"`
	OrgID string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies access tokens with the configured secret.
type Authenticator struct {
	cfg    config.AuthConfig
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{cfg: cfg, secret: []byte(cfg.JWTSecret), now: time.Now}
}

// IssueAccessToken signs an HS256 token for the user.
func (a *Authenticator) IssueAccessToken(userID uuid.UUID, role string, orgID *uuid.UUID) (string, error) {
	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.AccessTokenTTL)),
		},
	}
	if orgID != nil {
		claims.OrgID = orgID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies tokenString and returns its claims.
func (a *Authenticator) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest reads the access token cookie, falling back to a Bearer header.
func (a *Authenticator) TokenFromRequest(c *gin.Context) (string, error) {
	if token, err := c.Cookie(a.cfg.AccessCookieName); err == nil && token != "" {
		return token, nil
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization format, expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// RequireRole validates the access token and checks the role claim against allowedRoles.
func (a *Authenticator) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := a.TokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		claims, err := a.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		if !slices.Contains(allowedRoles, claims.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		userID := uuid.MustParse(claims.Subject)
		c.Set(ContextUserID, userID)
		c.Set(ContextRole, claims.Role)
		if orgID, err := uuid.Parse(claims.OrgID); err == nil {
			c.Set(ContextOrgID, orgID)
		}
		c.Request = c.Request.WithContext(logger.WithActor(c.Request.Context(), claims.Subject, claims.OrgID))

		c.Next()
	}
}

// SetTokenCookies sets the access and refresh tokens as HttpOnly cookies.
// Cross-origin deployments need SameSite=None with Secure.
func (a *Authenticator) SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	c.SetSameSite(a.sameSite())
	c.SetCookie(a.cfg.AccessCookieName, accessToken, int(a.cfg.AccessTokenTTL.Seconds()), "/", "", a.cfg.CookieSecure, true)
	c.SetCookie(a.cfg.RefreshCookieName, refreshToken, int(a.cfg.RefreshTokenTTL.Seconds()), "/", "", a.cfg.CookieSecure, true)
}

// ClearTokenCookies expires both auth cookies.
func (a *Authenticator) ClearTokenCookies(c *gin.Context) {
	c.SetSameSite(a.sameSite())
	c.SetCookie(a.cfg.AccessCookieName, "", -1, "/", "", a.cfg.CookieSecure, true)
	c.SetCookie(a.cfg.RefreshCookieName, "", -1, "/", "", a.cfg.CookieSecure, true)
}

// RefreshCookieName is where the refresh token is looked up first.
func (a *Authenticator) RefreshCookieName() string {
	return a.cfg.RefreshCookieName
}

func (a *Authenticator) sameSite() http.SameSite {
	if a.cfg.CookieSameSiteNone {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// UserID returns the authenticated user id.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// OrgID returns the organization of the authenticated user, if any.
func OrgID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextOrgID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
