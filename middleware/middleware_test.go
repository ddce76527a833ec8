package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"room-booking/logging"
	"room-booking/models"
	"room-booking/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTokens map[string]*services.AccessClaims

func (s stubTokens) ParseAccess(raw string) (*services.AccessClaims, error) {
	if c, ok := s[raw]; ok {
		return c, nil
	}
	return nil, services.ErrInvalidToken
}

func claims(sub, role string) *services.AccessClaims {
	return &services.AccessClaims{Role: role, RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}
}

var tokens = stubTokens{
	"user-token":  claims("7", models.RoleUser),
	"admin-token": claims("1", models.RoleAdmin),
	"bad-subject": claims("abc", models.RoleUser),
}

func newAuthRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", JWTAuth(tokens), func(c *gin.Context) {
		id, ok := UserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "ok": ok})
	})
	r.GET("/admin", JWTAuth(tokens), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/maybe", OptionalAuth(tokens), func(c *gin.Context) {
		id, ok := UserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "ok": ok})
	})
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newAuthRouter()

	w := do(r, http.MethodGet, "/me", "user-token")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		ID uint `json:"id"`
		OK bool `json:"ok"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, uint(7), body.ID)
	assert.True(t, body.OK)

	for _, tok := range []string{"", "nope", "bad-subject"} {
		w := do(r, http.MethodGet, "/me", tok)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "token %q", tok)

		var env struct {
			Success bool `json:"success"`
			Error   struct {
				Code string `json:"code"`
				Kind string `json:"kind"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.False(t, env.Success)
		assert.Equal(t, "error.invalidToken", env.Error.Code)
		assert.Equal(t, "Unauthorized", env.Error.Kind)
	}
}

func TestRequireAdmin(t *testing.T) {
	r := newAuthRouter()
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/admin", "admin-token").Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", "user-token").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/admin", "").Code)
}

func TestOptionalAuth(t *testing.T) {
	r := newAuthRouter()
	assert.Contains(t, do(r, http.MethodGet, "/maybe", "").Body.String(), `"ok":false`)
	assert.Contains(t, do(r, http.MethodGet, "/maybe", "nope").Body.String(), `"ok":false`)
	assert.Contains(t, do(r, http.MethodGet, "/maybe", "user-token").Body.String(), `"id":7`)
}

func TestRequestIDAndLogger(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(logging.Nop()), Metrics())
	r.GET("/ping", func(c *gin.Context) {
		assert.NotNil(t, LoggerFrom(c))
		c.String(http.StatusOK, "pong")
	})

	w := do(r, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/missing", "").Code)
}

func TestIPRateLimiter(t *testing.T) {
	lim := NewIPRateLimiter(1, 2)
	clock := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	lim.now = func() time.Time { return clock }

	r := gin.New()
	r.POST("/login", lim.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	w := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// separate bucket per client
	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code)

	clock = clock.Add(time.Second)
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
}
