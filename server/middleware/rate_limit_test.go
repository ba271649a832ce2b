package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRateLimiter_PerClientBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, zap.NewNop())
	defer rl.Shutdown()

	r := gin.New()
	r.GET("/", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/", "").Code)
	assert.Equal(t, http.StatusOK, get(r, "/", "").Code)

	w := get(r, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// a different client has its own bucket
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 2, rl.GetGlobalStats()["active_clients"])
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(10, 10, zap.NewNop())
	defer rl.Shutdown()

	rl.Allow("10.0.0.1")
	assert.Equal(t, 0, rl.evictIdle(time.Now()))
	assert.Equal(t, 1, rl.evictIdle(time.Now().Add(clientIdleTTL+time.Second)))
	assert.Equal(t, 0, rl.GetGlobalStats()["active_clients"])

	rl.Shutdown()
}
