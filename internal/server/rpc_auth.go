package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// userHeader carries the caller's user id. Every connection is scoped
// to exactly one user; the header is trusted once the bearer secret
// has been verified.
const userHeader = "X-Taskfuse-User"

// requireAuth wraps an http.Handler with bearer-token authentication
// and user-id extraction. Auth failures get a JSON-RPC 2.0 error body
// rather than a bare HTTP error so RPC clients can parse them.
//
// An empty secret rejects everything: the RPC surface requires
// explicit opt-in.
func requireAuth(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validToken(secret, r.Header.Get("Authorization")) {
			writeRPCError(w, http.StatusUnauthorized, -32600, "Unauthorized")
			return
		}
		if strings.TrimSpace(r.Header.Get(userHeader)) == "" {
			writeRPCError(w, http.StatusBadRequest, -32600, "missing "+userHeader+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// validToken checks the Authorization header against the secret using
// a constant-time comparison.
func validToken(secret, authHeader string) bool {
	if secret == "" {
		return false
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}

func writeRPCError(w http.ResponseWriter, status int, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
		"id": nil,
	})
}
