package rpc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	contextKeySender    contextKey = "rpc.sender"
	contextKeyRequestID contextKey = "rpc.request_id"
)

var (
	errAuthDisabled = errors.New("rpc: authentication not configured")
	errMissingSub   = errors.New("rpc: token subject required")
)

// Authenticator verifies HS256 bearer tokens. The token subject is the
// identity that signs every mutating call of the request.
type Authenticator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewAuthenticator returns an authenticator for secret. An empty secret
// disables authentication and every mutating call is rejected.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{
		secret: []byte(strings.TrimSpace(secret)),
		issuer: strings.TrimSpace(issuer),
		leeway: 30 * time.Second,
	}
}

// Enabled reports whether a signing secret is configured.
func (a *Authenticator) Enabled() bool { return a != nil && len(a.secret) > 0 }

// Verify parses token and returns its subject.
func (a *Authenticator) Verify(token string) (string, error) {
	if !a.Enabled() {
		return "", errAuthDisabled
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("rpc: token invalid")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", errMissingSub
	}
	return subject, nil
}

// IssueToken mints an HS256 token for subject valid for ttl.
func IssueToken(secret, issuer, subject string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errAuthDisabled
	}
	if strings.TrimSpace(subject) == "" {
		return "", errMissingSub
	}
	claims := jwt.RegisteredClaims{
		Subject:   strings.TrimSpace(subject),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if issuer = strings.TrimSpace(issuer); issuer != "" {
		claims.Issuer = issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(strings.TrimSpace(secret)))
}

func extractBearer(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware attaches the verified sender to the request context. Requests
// without credentials, or any request while authentication is disabled, pass
// through anonymously; a presented token that fails verification is rejected
// outright.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if strings.TrimSpace(header) == "" || !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		token := extractBearer(header)
		if token == "" {
			writeError(w, http.StatusUnauthorized, nil, codeUnauthorized, "malformed authorization header", nil)
			return
		}
		sender, err := a.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, nil, codeUnauthorized, "invalid token", err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), contextKeySender, sender)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func senderFromContext(ctx context.Context) (string, bool) {
	sender, ok := ctx.Value(contextKeySender).(string)
	return sender, ok && sender != ""
}
