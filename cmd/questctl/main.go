package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"questchain/config"
	"questchain/rpc"
)

const (
	tokenCommand  = "token"
	callCommand   = "call"
	defaultConfig = "./config.toml"
	defaultRPC    = "http://127.0.0.1:8545"
	tokenEnv      = "QUEST_TOKEN"
)

type fileConfig struct {
	RPC struct {
		JWTSecret string `toml:"JWTSecret"`
		JWTIssuer string `toml:"JWTIssuer"`
	} `toml:"RPC"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case tokenCommand:
		err = runToken(os.Args[2:], os.Stdout)
	case callCommand:
		err = runCall(os.Args[2:], os.Stdout)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  questctl token --sub <address> [--ttl 1h] [--config ./config.toml]
  questctl call [--rpc %s] [--token <jwt>] <method> [params-json]
`, defaultRPC)
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(tokenCommand, flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the questd config file")
	subject := fs.String("sub", "", "Address the token authorizes")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret, issuer, err := loadSigningKey(*configPath)
	if err != nil {
		return err
	}
	token, err := rpc.IssueToken(secret, issuer, *subject, *ttl, time.Now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// loadSigningKey reads the RPC signing secret from the config file, letting
// QUEST_JWT_SECRET take precedence.
func loadSigningKey(path string) (string, string, error) {
	var cfg fileConfig
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return "", "", fmt.Errorf("failed to read config: %w", err)
		}
	}
	secret := cfg.RPC.JWTSecret
	if env := strings.TrimSpace(os.Getenv(config.EnvJWTSecret)); env != "" {
		secret = env
	}
	if strings.TrimSpace(secret) == "" {
		return "", "", fmt.Errorf("no JWT secret in %s or %s", path, config.EnvJWTSecret)
	}
	issuer := cfg.RPC.JWTIssuer
	if issuer == "" {
		issuer = config.Default().RPC.JWTIssuer
	}
	return secret, issuer, nil
}

func runCall(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(callCommand, flag.ContinueOnError)
	endpoint := fs.String("rpc", defaultRPC, "questd JSON-RPC endpoint")
	token := fs.String("token", os.Getenv(tokenEnv), "Bearer token for mutating methods")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("method required")
	}

	body, err := buildRequest(fs.Arg(0), fs.Args()[1:])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	result, err := call(ctx, http.DefaultClient, *endpoint, *token, body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, pretty.String())
	return err
}

func buildRequest(method string, params []string) ([]byte, error) {
	req := rpc.RPCRequest{JSONRPC: "2.0", Method: method, ID: 1, Params: []json.RawMessage{}}
	for _, raw := range params {
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("param is not valid JSON: %s", raw)
		}
		req.Params = append(req.Params, json.RawMessage(raw))
	}
	return json.Marshal(req)
}

func call(ctx context.Context, client *http.Client, endpoint, token string, body []byte) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token = strings.TrimSpace(token); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *rpc.RPCError   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return nil, decoded.Error
	}
	if len(decoded.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return decoded.Result, nil
}
