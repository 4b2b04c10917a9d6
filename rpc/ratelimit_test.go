package rpc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsBurstThenThrottles(t *testing.T) {
	limiter := NewRateLimiter(2)
	now := time.Unix(1_000, 0)
	limiter.clockNow = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))

	now = now.Add(30 * time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestRateLimiterEvictsStaleEntries(t *testing.T) {
	limiter := NewRateLimiter(1)
	now := time.Unix(1_000, 0)
	limiter.clockNow = func() time.Time { return now }

	limiter.Allow("a")
	limiter.Allow("b")
	now = now.Add(visitorTTL + time.Second)
	limiter.Allow("c")
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.visitors, 1)
}

func TestClientIDIgnoresForwardedForWhenNotTrusted(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	assert.Equal(t, "10.0.0.5", clientID(req, false))
	assert.Equal(t, "203.0.113.9", clientID(req, true))

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	assert.Equal(t, "10.0.0.5", clientID(req, true))
}

func TestRateLimitMiddlewareOverRPC(t *testing.T) {
	ts := newTestServer(t, ServerConfig{RateLimitPerMinute: 1})
	resp := ts.call(t, "", "quest_status")
	assert.Nil(t, resp.Error)

	resp = ts.call(t, "", "quest_status")
	if assert.NotNil(t, resp.Error) {
		assert.Equal(t, codeRateLimited, resp.Error.Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, resp.status)
}
