package mcpauth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/auth"
)

// APIKeyEnv names the environment variable holding the MCP API key.
const APIKeyEnv = "CSVEXPORT_MCP_API_KEY"

// Scope is the single scope granted to a valid API key.
const Scope = "csvexport:export"

type tokenInfoKey struct{}

// ContextWithTokenInfo adds TokenInfo to a context.
func ContextWithTokenInfo(ctx context.Context, info *auth.TokenInfo) context.Context {
	return context.WithValue(ctx, tokenInfoKey{}, info)
}

// TokenInfoFromContext retrieves TokenInfo from a context.
func TokenInfoFromContext(ctx context.Context) *auth.TokenInfo {
	if info, ok := ctx.Value(tokenInfoKey{}).(*auth.TokenInfo); ok {
		return info
	}
	return nil
}

// Authenticator checks Bearer tokens against a pre-shared API key.
type Authenticator struct {
	apiKey string
}

// NewAuthenticator returns an authenticator for apiKey. An empty key disables
// the endpoint.
func NewAuthenticator(apiKey string) *Authenticator {
	return &Authenticator{apiKey: apiKey}
}

// FromEnv builds an authenticator from CSVEXPORT_MCP_API_KEY.
func FromEnv() *Authenticator {
	return NewAuthenticator(os.Getenv(APIKeyEnv))
}

func (a *Authenticator) Enabled() bool {
	return a.apiKey != ""
}

// KeyID returns a short fingerprint of the configured key, safe to log.
func (a *Authenticator) KeyID() string {
	if a.apiKey == "" {
		return ""
	}
	return HashToken(a.apiKey)[:8]
}

// TokenVerifier returns a verifier usable with auth.RequireBearerToken.
func (a *Authenticator) TokenVerifier() func(ctx context.Context, token string, req *http.Request) (*auth.TokenInfo, error) {
	return func(ctx context.Context, token string, req *http.Request) (*auth.TokenInfo, error) {
		return a.verify(token)
	}
}

func (a *Authenticator) verify(token string) (*auth.TokenInfo, error) {
	if a.apiKey == "" {
		return nil, auth.ErrInvalidToken
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(a.apiKey)) != 1 {
		return nil, auth.ErrInvalidToken
	}

	return &auth.TokenInfo{
		Scopes: []string{Scope},
		Extra: map[string]any{
			"key_id": a.KeyID(),
		},
	}, nil
}

// HashToken returns the hex SHA-256 of token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ValidateAuthHeader extracts and checks the Bearer token in an Authorization header.
func (a *Authenticator) ValidateAuthHeader(authHeader string) (*auth.TokenInfo, error) {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return nil, auth.ErrInvalidToken
	}

	return a.verify(token)
}
