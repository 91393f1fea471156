package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"einvoice/internal/config"
	"einvoice/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *middleware.Authenticator, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth := middleware.NewAuthenticator(config.AuthConfig{
		JWTSecret:        "s3cret",
		AccessTokenTTL:   time.Hour,
		RefreshTokenTTL:  time.Hour,
		AccessCookieName: "access_token",
	})
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", ServeWs(hub, auth))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, auth, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string, auth *middleware.Authenticator, orgID uuid.UUID) *gorilla.Conn {
	t.Helper()
	token, err := auth.IssueAccessToken(uuid.New(), "user", &orgID)
	require.NoError(t, err)
	conn, _, err := gorilla.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServeWs_RejectsMissingToken(t *testing.T) {
	_, _, url := startHub(t)
	_, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPublish_OnlyReachesOwnOrganization(t *testing.T) {
	hub, auth, url := startHub(t)
	orgA, orgB := uuid.New(), uuid.New()

	connA := dial(t, url, auth, orgA)
	connB := dial(t, url, auth, orgB)
	require.Eventually(t, func() bool {
		return hub.ClientCount(orgA) == 1 && hub.ClientCount(orgB) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(orgA, EventInvoicesBulkCreated, map[string]int{"count": 2})

	var msg Message
	require.NoError(t, connA.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, connA.ReadJSON(&msg))
	assert.Equal(t, EventInvoicesBulkCreated, msg.Event)
	assert.Equal(t, map[string]any{"count": 2.0}, msg.Data)

	require.NoError(t, connB.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := connB.ReadMessage()
	assert.Error(t, err, "other organizations must not receive the event")
}

func TestPublish_NilHub(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Publish(uuid.New(), EventInvoiceUpdated, nil) })
}
