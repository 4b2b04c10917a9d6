package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"questchain/config"
	"questchain/rpc"
)

func TestBuildRequest(t *testing.T) {
	body, err := buildRequest("quest_getBalance", []string{`{"address":"alice"}`})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var req rpc.RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Method != "quest_getBalance" || len(req.Params) != 1 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if _, err := buildRequest("quest_getBalance", []string{`{address}`}); err == nil {
		t.Fatalf("expected invalid JSON to be rejected")
	}
}

func TestCallReportsRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer header")
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32030,"message":"insufficient funds"}}`))
	}))
	defer srv.Close()

	_, err := call(context.Background(), srv.Client(), srv.URL, "tok", []byte(`{}`))
	rpcErr, ok := err.(*rpc.RPCError)
	if !ok || rpcErr.Code != -32030 {
		t.Fatalf("expected rpc error, got %v", err)
	}
}

func TestRunTokenUsesConfigSecret(t *testing.T) {
	t.Setenv(config.EnvJWTSecret, "")
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := "[RPC]\nJWTSecret = \"0123456789abcdef0123456789abcdef\"\nJWTIssuer = \"questchain\"\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var out bytes.Buffer
	if err := runToken([]string{"--config", path, "--sub", "alice"}, &out); err != nil {
		t.Fatalf("token: %v", err)
	}
	token := strings.TrimSpace(out.String())
	sub, err := rpc.NewAuthenticator("0123456789abcdef0123456789abcdef", "questchain").Verify(token)
	if err != nil || sub != "alice" {
		t.Fatalf("verify: sub=%q err=%v", sub, err)
	}

	if err := runToken([]string{"--config", filepath.Join(t.TempDir(), "missing.toml"), "--sub", "alice"}, &out); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
