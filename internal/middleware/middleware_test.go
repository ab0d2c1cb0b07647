package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, userID uint, role string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"email":   "user@example.com",
		"role":    role,
		"exp":     exp.Unix(),
	})
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", Auth(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c), "role": GetUserRole(c)})
	})
	r.GET("/admin", Auth(testSecret), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	valid := signToken(t, 7, "customer", time.Now().Add(time.Hour))

	w := do(r, http.MethodGet, "/me", "", map[string]string{"Authorization": "Bearer " + valid})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"role":"customer"}`, w.Body.String())

	w = do(r, http.MethodGet, "/me?token="+valid, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/me", "", map[string]string{"Authorization": "Token " + valid})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired := signToken(t, 7, "customer", time.Now().Add(-time.Hour))
	w = do(r, http.MethodGet, "/me", "", map[string]string{"Authorization": "Bearer " + expired})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "expired")

	w = do(r, http.MethodGet, "/admin", "", map[string]string{"Authorization": "Bearer " + valid})
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := signToken(t, 1, "admin", time.Now().Add(time.Hour))
	w = do(r, http.MethodGet, "/admin", "", map[string]string{"Authorization": "Bearer " + admin})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	t.Cleanup(rl.Stop)
	r := gin.New()
	r.Use(RateLimit(rl))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", "", nil).Code)
	w := do(r, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimit_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	t.Cleanup(rl.Stop)
	r := gin.New()
	r.Use(RateLimit(rl))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", "", nil).Code)
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com/"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodGet, "/ping", "", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodGet, "/ping", "", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodOptions, "/ping", "", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func newIdempotentRouter(t *testing.T) (*gin.Engine, *miniredis.Miniredis, *int) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	calls := 0
	r := gin.New()
	r.Use(Idempotency(rdb, time.Hour))
	r.POST("/payments", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})
	r.POST("/boom", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	return r, mr, &calls
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	r, _, calls := newIdempotentRouter(t)
	hdr := map[string]string{IdempotencyHeader: "abc-123"}

	first := do(r, http.MethodPost, "/payments", `{"amount":"100"}`, hdr)
	require.Equal(t, http.StatusCreated, first.Code)

	second := do(r, http.MethodPost, "/payments", `{"amount":"100"}`, hdr)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, *calls)

	conflict := do(r, http.MethodPost, "/payments", `{"amount":"200"}`, hdr)
	assert.Equal(t, http.StatusUnprocessableEntity, conflict.Code)

	// no key, no dedupe
	do(r, http.MethodPost, "/payments", `{"amount":"100"}`, nil)
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_InProgressAndServerErrors(t *testing.T) {
	r, mr, calls := newIdempotentRouter(t)

	require.NoError(t, mr.Set("idem:POST:/payments:0:busy", `{"in_progress":true,"body_sha256":"x"}`))
	w := do(r, http.MethodPost, "/payments", ``, map[string]string{IdempotencyHeader: "busy"})
	// body hash differs from the provisional one
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	hdr := map[string]string{IdempotencyHeader: "retry-me"}
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodPost, "/boom", `{}`, hdr).Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodPost, "/boom", `{}`, hdr).Code)
	assert.Equal(t, 2, *calls)
	assert.False(t, mr.Exists("idem:POST:/boom:0:retry-me"))
}

func TestIdempotency_NilClientPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Idempotency(nil, time.Hour))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/x", `{}`, map[string]string{IdempotencyHeader: "k"}).Code)
}

func TestRequestLogger_RequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})

	w := do(r, http.MethodGet, "/ping", "", nil)
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	w = do(r, http.MethodGet, "/ping", "", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
