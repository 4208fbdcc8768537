package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidToken(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
		want   bool
	}{
		{"valid", "s3cret", "Bearer s3cret", true},
		{"wrong token", "s3cret", "Bearer nope", false},
		{"missing scheme", "s3cret", "s3cret", false},
		{"wrong scheme", "s3cret", "Basic s3cret", false},
		{"empty header", "s3cret", "", false},
		{"empty secret rejects everything", "", "Bearer ", false},
		{"token with extra suffix", "s3cret", "Bearer s3cret2", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := validToken(tc.secret, tc.header); got != tc.want {
				t.Errorf("validToken(%q, %q) = %v, want %v", tc.secret, tc.header, got, tc.want)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	var reached bool
	h := requireAuth("s3cret", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	do := func(auth, user string) *httptest.ResponseRecorder {
		reached = false
		req := httptest.NewRequest(http.MethodGet, "/rpc/ws", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		if user != "" {
			req.Header.Set(userHeader, user)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("bad token", func(t *testing.T) {
		rec := do("Bearer wrong", "alice")
		if rec.Code != http.StatusUnauthorized || reached {
			t.Fatalf("code = %d, reached = %v", rec.Code, reached)
		}
		// The body is a parseable JSON-RPC error.
		var body struct {
			JSONRPC string `json:"jsonrpc"`
			Error   struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("body not JSON: %v", err)
		}
		if body.JSONRPC != "2.0" || body.Error.Code != -32600 {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("missing user header", func(t *testing.T) {
		rec := do("Bearer s3cret", "")
		if rec.Code != http.StatusBadRequest || reached {
			t.Fatalf("code = %d, reached = %v", rec.Code, reached)
		}
	})

	t.Run("blank user header", func(t *testing.T) {
		rec := do("Bearer s3cret", "   ")
		if rec.Code != http.StatusBadRequest || reached {
			t.Fatalf("code = %d, reached = %v", rec.Code, reached)
		}
	})

	t.Run("authorized", func(t *testing.T) {
		rec := do("Bearer s3cret", "alice")
		if rec.Code != http.StatusOK || !reached {
			t.Fatalf("code = %d, reached = %v", rec.Code, reached)
		}
	})
}
