package rpc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticatorVerify(t *testing.T) {
	auth := NewAuthenticator(testJWTSecret, testJWTIssuer)
	require.True(t, auth.Enabled())

	token, err := IssueToken(testJWTSecret, testJWTIssuer, "alice", time.Minute, time.Now())
	require.NoError(t, err)
	sub, err := auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)

	expired, err := IssueToken(testJWTSecret, testJWTIssuer, "alice", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = auth.Verify(expired)
	assert.Error(t, err)

	wrongIssuer, err := IssueToken(testJWTSecret, "someone-else", "alice", time.Minute, time.Now())
	require.NoError(t, err)
	_, err = auth.Verify(wrongIssuer)
	assert.Error(t, err)

	_, err = IssueToken(testJWTSecret, testJWTIssuer, "  ", time.Minute, time.Now())
	assert.ErrorIs(t, err, errMissingSub)
}

func TestAuthenticatorDisabled(t *testing.T) {
	auth := NewAuthenticator("", "")
	assert.False(t, auth.Enabled())
	_, err := auth.Verify("anything")
	assert.ErrorIs(t, err, errAuthDisabled)

	ts := newTestServer(t, ServerConfig{JWTSecret: " "})
	resp := ts.call(t, "", "quest_instantiate", `{"quest_creation_fee":"1","initial_balance":"1"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeUnauthorized, resp.Error.Code)

	// A stray header is ignored: queries stay public, mutations stay refused.
	stray := tokenFor(t, "creator")
	var balance struct {
		Balance string `json:"balance"`
	}
	ts.call(t, stray, "quest_getBalance", `{"address":"creator"}`).decode(t, &balance)
	assert.Equal(t, "0", balance.Balance)

	resp = ts.call(t, stray, "quest_transfer", `{"recipient":"worker","amount":"1"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeUnauthorized, resp.Error.Code)
	assert.Equal(t, "authentication not configured", resp.Error.Message)
}

func TestExtractBearer(t *testing.T) {
	assert.Equal(t, "abc", extractBearer("Bearer abc"))
	assert.Equal(t, "abc", extractBearer("bearer   abc "))
	assert.Empty(t, extractBearer("Basic abc"))
	assert.Empty(t, extractBearer("Bearer"))
}

func TestAuthMiddlewareAttachesSender(t *testing.T) {
	auth := NewAuthenticator(testJWTSecret, testJWTIssuer)
	var seen string
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = senderFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "bob"))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "bob", seen)

	seen = ""
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Empty(t, seen)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
