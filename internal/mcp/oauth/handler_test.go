package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/localrivet/csvexport/internal/mcp/mcpauth"
)

func TestNewHandler_TrailingSlash(t *testing.T) {
	h := NewHandler("https://example.com/")
	if h.baseURL != "https://example.com" {
		t.Errorf("Expected trailing slash to be removed, got %s", h.baseURL)
	}
}

func TestHandler_ProtectedResourceMetadata(t *testing.T) {
	h := NewHandler("https://exports.example.com")

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil)
	w := httptest.NewRecorder()

	h.HandleProtectedResourceMetadata(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", w.Header().Get("Content-Type"))
	}

	var metadata ProtectedResourceMetadata
	if err := json.NewDecoder(w.Body).Decode(&metadata); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if metadata.Resource != "https://exports.example.com/mcp" {
		t.Errorf("resource = %s, want https://exports.example.com/mcp", metadata.Resource)
	}
	if len(metadata.AuthorizationServers) != 1 || metadata.AuthorizationServers[0] != "https://exports.example.com" {
		t.Errorf("authorization_servers = %v", metadata.AuthorizationServers)
	}
	if len(metadata.ScopesSupported) != 1 || metadata.ScopesSupported[0] != mcpauth.Scope {
		t.Errorf("scopes_supported = %v, want [%s]", metadata.ScopesSupported, mcpauth.Scope)
	}
	if len(metadata.BearerMethodsSupported) != 1 || metadata.BearerMethodsSupported[0] != "header" {
		t.Errorf("bearer_methods_supported = %v, want [header]", metadata.BearerMethodsSupported)
	}
}

func TestHandler_AuthServerMetadata(t *testing.T) {
	h := NewHandler("https://exports.example.com")

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	w := httptest.NewRecorder()

	h.HandleAuthServerMetadata(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var metadata AuthorizationServerMetadata
	if err := json.NewDecoder(w.Body).Decode(&metadata); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if metadata.Issuer != "https://exports.example.com" {
		t.Errorf("issuer = %s", metadata.Issuer)
	}
	if metadata.TokenEndpoint != "https://exports.example.com/oauth/token" {
		t.Errorf("token_endpoint = %s", metadata.TokenEndpoint)
	}
	if len(metadata.GrantTypesSupported) != 0 {
		t.Errorf("grant_types_supported = %v, want empty", metadata.GrantTypesSupported)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler("https://example.com").RegisterRoutes(mux)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/.well-known/oauth-protected-resource", http.StatusOK},
		{http.MethodGet, "/.well-known/oauth-authorization-server", http.StatusOK},
		{http.MethodOptions, "/.well-known/oauth-protected-resource", http.StatusNoContent},
		{http.MethodOptions, "/.well-known/oauth-authorization-server", http.StatusNoContent},
		{http.MethodPost, "/.well-known/oauth-protected-resource", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code != http.StatusMethodNotAllowed && w.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("missing Access-Control-Allow-Origin: *")
			}
		})
	}
}

func TestHandler_CacheControl(t *testing.T) {
	h := NewHandler("https://example.com")

	w := httptest.NewRecorder()
	h.HandleProtectedResourceMetadata(w, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil))

	if got := w.Header().Get("Cache-Control"); got != "no-store, no-cache, must-revalidate" {
		t.Errorf("Cache-Control = %s", got)
	}
}
