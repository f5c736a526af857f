package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/tipwarden/internal/auth"
)

func newTestTokenService() *auth.TokenService {
	return auth.NewTokenService(testKey, "tipwarden", 24)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	tokenSvc := newTestTokenService()
	token, err := tokenSvc.CreateToken(&auth.Identity{
		Subject: "reviewer-1",
		Roles:   []string{auth.RoleReviewer},
	})
	require.NoError(t, err)

	var gotIdentity *auth.Identity
	handler := auth.Middleware(tokenSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = auth.GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotIdentity)
	assert.Equal(t, "reviewer-1", gotIdentity.Subject)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	handler := auth.Middleware(newTestTokenService())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "missing authorization header", body["error"])
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	handler := auth.Middleware(newTestTokenService())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_DevTokenRejectedOutsideDevMode(t *testing.T) {
	handler := auth.Middleware(newTestTokenService())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer dev")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_DevMode(t *testing.T) {
	devIdentity := &auth.Identity{Subject: "dev", Roles: []string{auth.RoleReviewer}}

	handler := auth.MiddlewareWithDevMode(newTestTokenService(), devIdentity)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := auth.GetIdentity(r.Context())
		assert.Equal(t, "dev", got.Subject)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer dev")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := auth.RequireRole(auth.RoleReviewer)(next)

	tests := []struct {
		name     string
		identity *auth.Identity
		want     int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"viewer", &auth.Identity{Subject: "v", Roles: []string{auth.RoleViewer}}, http.StatusForbidden},
		{"reviewer", &auth.Identity{Subject: "r", Roles: []string{auth.RoleReviewer}}, http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/tips/abc/approve", nil)
			if tc.identity != nil {
				req = req.WithContext(auth.WithIdentity(req.Context(), tc.identity))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
