package myMiddleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-social/internal/user"

	"github.com/stretchr/testify/assert"
)

type fakeValidator map[string]user.Identity

func (f fakeValidator) ValidateToken(token string) (user.Identity, error) {
	id, ok := f[token]
	if !ok {
		return user.Identity{}, errors.New("bad token")
	}
	return id, nil
}

func TestAuthMiddleware(t *testing.T) {
	alice := user.Identity{UserID: 1, Username: "alice"}
	am := NewAuthMiddleware(fakeValidator{"good": alice})

	var seen user.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r)
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name         string
		header       string
		query        string
		required     bool
		wantStatus   int
		wantIdentity user.Identity
	}{
		{"bearer header", "Bearer good", "", true, http.StatusNoContent, alice},
		{"query fallback", "", "good", true, http.StatusNoContent, alice},
		{"missing token", "", "", true, http.StatusUnauthorized, user.Identity{}},
		{"invalid token", "Bearer bad", "", true, http.StatusUnauthorized, user.Identity{}},
		{"optional anonymous", "", "", false, http.StatusNoContent, user.Identity{}},
		{"optional invalid is anonymous", "Bearer bad", "", false, http.StatusNoContent, user.Identity{}},
		{"optional valid", "Bearer good", "", false, http.StatusNoContent, alice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = user.Identity{UserID: -1}
			target := "/ws"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler := am.Optional(next)
			if tt.required {
				handler = am.Handle(next)
			}
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, tt.wantIdentity, seen)
			}
		})
	}
}

func TestIdentityFromEmptyContextIsAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, IdentityFrom(req).Anonymous())
}
