package oauth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/localrivet/csvexport/internal/mcp/mcpauth"
)

// MCPPath is where the MCP endpoint is mounted relative to the base URL.
const MCPPath = "/mcp"

// Handler serves the discovery documents MCP clients fetch before calling the
// endpoint. Authentication is a pre-shared API key, so no authorization flow
// is advertised.
type Handler struct {
	baseURL string
}

func NewHandler(baseURL string) *Handler {
	return &Handler{
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// RegisterRoutes registers the discovery routes and their CORS preflights on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	for _, path := range []string{"/.well-known/oauth-protected-resource", "/.well-known/oauth-authorization-server"} {
		mux.HandleFunc("OPTIONS "+path, h.handlePreflight)
	}
	mux.HandleFunc("GET /.well-known/oauth-protected-resource", h.HandleProtectedResourceMetadata)
	mux.HandleFunc("GET /.well-known/oauth-authorization-server", h.HandleAuthServerMetadata)
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "86400")
}

func (h *Handler) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleProtectedResourceMetadata serves RFC 9728 protected resource metadata.
func (h *Handler) HandleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		h.handlePreflight(w, r)
		return
	}

	writeMetadata(w, ProtectedResourceMetadata{
		Resource:               h.baseURL + MCPPath,
		AuthorizationServers:   []string{h.baseURL},
		ScopesSupported:        []string{mcpauth.Scope},
		BearerMethodsSupported: []string{"header"},
	})
}

// HandleAuthServerMetadata serves RFC 8414 authorization server metadata.
func (h *Handler) HandleAuthServerMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		h.handlePreflight(w, r)
		return
	}

	writeMetadata(w, AuthorizationServerMetadata{
		Issuer:                            h.baseURL,
		TokenEndpoint:                     h.baseURL + "/oauth/token",
		ScopesSupported:                   []string{mcpauth.Scope},
		ResponseTypesSupported:            []string{},
		GrantTypesSupported:               []string{},
		TokenEndpointAuthMethodsSupported: []string{"bearer"},
	})
}

func writeMetadata(w http.ResponseWriter, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	json.NewEncoder(w).Encode(v)
}
