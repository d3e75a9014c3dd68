package mcp

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/localrivet/csvexport/internal/config"
	"github.com/localrivet/csvexport/internal/export"
	"github.com/localrivet/csvexport/internal/mcp/mcpauth"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Handler serves the MCP endpoint behind Bearer token authentication.
type Handler struct {
	cfg             *config.Config
	engine          *export.Engine
	logger          *slog.Logger
	authenticator   *mcpauth.Authenticator
	httpHandler     http.Handler
	resourceMetaURL string
}

// NewHandler creates an MCP handler. baseURL is used to build the resource
// metadata URL advertised on 401 responses.
func NewHandler(cfg *config.Config, engine *export.Engine, authenticator *mcpauth.Authenticator, logger *slog.Logger, baseURL string) *Handler {
	baseURL = strings.TrimSuffix(baseURL, "/")

	h := &Handler{
		cfg:             cfg,
		engine:          engine,
		logger:          logger,
		authenticator:   authenticator,
		resourceMetaURL: baseURL + "/.well-known/oauth-protected-resource",
	}

	if !authenticator.Enabled() {
		logger.Warn(mcpauth.APIKeyEnv + " not set - MCP endpoint will reject all requests")
	} else {
		logger.Info("MCP endpoint enabled", "key_id", authenticator.KeyID())
	}

	server := NewServer(cfg, engine, logger)
	streamHandler := mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return server },
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	h.httpHandler = h.authMiddleware(streamHandler)

	return h
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debug("MCP request",
			"method", r.Method,
			"path", r.URL.Path,
			"session", r.Header.Get("Mcp-Session-Id"),
		)

		if !h.authenticator.Enabled() {
			http.Error(w, "MCP endpoint not configured", http.StatusServiceUnavailable)
			return
		}

		tokenInfo, err := h.authenticator.ValidateAuthHeader(r.Header.Get("Authorization"))
		if err != nil {
			h.logger.Debug("MCP request rejected", "remote", r.RemoteAddr)
			h.writeUnauthorized(w)
			return
		}

		ctx := mcpauth.ContextWithTokenInfo(r.Context(), tokenInfo)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeUnauthorized sends a 401 with an RFC 9728 WWW-Authenticate challenge.
func (h *Handler) writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer resource_metadata="%s", scope="%s"`, h.resourceMetaURL, mcpauth.Scope))
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.httpHandler.ServeHTTP(w, r)
}

// Enabled reports whether an API key is configured.
func (h *Handler) Enabled() bool {
	return h.authenticator.Enabled()
}
