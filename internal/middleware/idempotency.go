package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/sjperalta/autolease-api/pkg/logger"
)

// IdempotencyHeader carries the client-chosen key for a mutating request
const IdempotencyHeader = "Idempotency-Key"

const (
	// provisionalTTL bounds how long an in-flight request holds its key
	provisionalTTL = 60 * time.Second
	maxKeyLength   = 128
)

type idempotencyEntry struct {
	InProgress bool      `json:"in_progress"`
	Code       int       `json:"code"`
	Body       []byte    `json:"body"`
	BodySHA256 string    `json:"body_sha256"`
	CreatedAt  time.Time `json:"created_at"`
}

type bodyRecorder struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response when a mutating request repeats its
// Idempotency-Key. Requests without the header, or with no Redis client, pass
// through unchanged. Keys are scoped to the route and the authenticated user.
func Idempotency(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if idemKey == "" {
			c.Next()
			return
		}
		if len(idemKey) > maxKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key is too long"})
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		sum := sha256.Sum256(body)
		bodyHash := hex.EncodeToString(sum[:])

		key := fmt.Sprintf("idem:%s:%s:%d:%s", c.Request.Method, c.FullPath(), GetUserID(c), idemKey)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		provisional, _ := json.Marshal(idempotencyEntry{InProgress: true, BodySHA256: bodyHash, CreatedAt: time.Now().UTC()})
		ok, err := rdb.SetNX(ctx, key, provisional, provisionalTTL).Result()
		if err != nil {
			logger.Error("Idempotency store unavailable", "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "idempotency store unavailable"})
			return
		}
		if !ok {
			replay(c, rdb, ctx, key, bodyHash)
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status >= http.StatusInternalServerError {
			// let the client retry after a server error
			_ = rdb.Del(context.Background(), key).Err()
			return
		}
		final, _ := json.Marshal(idempotencyEntry{
			Code:       status,
			Body:       rec.buf.Bytes(),
			BodySHA256: bodyHash,
			CreatedAt:  time.Now().UTC(),
		})
		if err := rdb.Set(context.Background(), key, final, ttl).Err(); err != nil {
			logger.Warn("Failed to store idempotent response", "key", key, "error", err)
		}
	}
}

func replay(c *gin.Context, rdb *redis.Client, ctx context.Context, key, bodyHash string) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request is already in progress"})
		return
	}
	var cur idempotencyEntry
	if err := json.Unmarshal(raw, &cur); err != nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request is already in progress"})
		return
	}
	if cur.BodySHA256 != bodyHash {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "Idempotency-Key reused with a different body"})
		return
	}
	if cur.InProgress {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request is already in progress"})
		return
	}
	c.Header("Idempotent-Replayed", "true")
	c.Data(cur.Code, "application/json; charset=utf-8", cur.Body)
	c.Abort()
}
