package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"questchain/core"
	"questchain/crypto"
	"questchain/storage"
	"questchain/storage/eventlog"
)

const testJWTSecret = "rpc-test-secret-rpc-test-secret!"
const testJWTIssuer = "rpc-tests"

type testServer struct {
	server  *Server
	ledger  *core.Ledger
	journal *eventlog.Store
}

type testResponse struct {
	status  int
	header  http.Header
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
	ID      interface{}     `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
}

func newTestServer(t testing.TB, cfg ServerConfig) *testServer {
	t.Helper()
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = testJWTSecret
		cfg.JWTIssuer = testJWTIssuer
	}
	ledger, err := core.NewLedger(storage.NewMemDB(), false)
	require.NoError(t, err)
	ledger.SetValidator(crypto.PlainValidator{})
	now := time.Unix(1_700_000_000, 0)
	ledger.SetClock(func() time.Time { return now })
	ledger.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	journal, err := eventlog.Open(":memory:")
	require.NoError(t, err)
	ledger.SetJournal(journal)
	t.Cleanup(func() {
		_ = journal.Close()
		_ = ledger.Close()
	})

	srv, err := NewServer(ledger, journal, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return &testServer{server: srv, ledger: ledger, journal: journal}
}

func tokenFor(t testing.TB, subject string) string {
	t.Helper()
	token, err := IssueToken(testJWTSecret, testJWTIssuer, subject, time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

func (ts *testServer) call(t testing.TB, token, method string, params ...interface{}) testResponse {
	t.Helper()
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		if raw, ok := p.(string); ok {
			rawParams = append(rawParams, json.RawMessage(raw))
			continue
		}
		encoded, err := json.Marshal(p)
		require.NoError(t, err)
		rawParams = append(rawParams, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: rawParams, ID: 1})
	require.NoError(t, err)
	return ts.post(t, token, body)
}

func (ts *testServer) post(t testing.TB, token string, body []byte) testResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	resp.status = rec.Code
	resp.header = rec.Header()
	return resp
}

func (r testResponse) decode(t testing.TB, out interface{}) {
	t.Helper()
	require.Nil(t, r.Error, "unexpected rpc error")
	require.NoError(t, json.Unmarshal(r.Result, out))
}

// instantiate initializes the ledger with "creator" as owner holding 1000.
func (ts *testServer) instantiate(t testing.TB) {
	t.Helper()
	resp := ts.call(t, tokenFor(t, "creator"), "quest_instantiate", `{"quest_creation_fee":"5","initial_balance":"1000"}`)
	require.Nil(t, resp.Error)
}
