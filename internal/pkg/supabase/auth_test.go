package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/palmistry/internal/config"
)

func TestUserFromClaims(t *testing.T) {
	exp := float64(time.Now().Add(time.Hour).Unix())

	tests := []struct {
		name    string
		claims  map[string]any
		wantID  string
		wantErr bool
	}{
		{name: "user token", claims: map[string]any{"sub": "u1", "email": "a@b.c", "role": "authenticated", "exp": exp}, wantID: "u1"},
		{name: "numeric expiry as json.Number", claims: map[string]any{"sub": "u1", "email": "a@b.c", "exp": json.Number("1900000000")}, wantID: "u1"},
		{name: "no expiry", claims: map[string]any{"sub": "u1"}, wantErr: true},
		{name: "anon key", claims: map[string]any{"role": "anon", "sub": "x", "exp": exp}, wantErr: true},
		{name: "no subject", claims: map[string]any{"exp": exp}, wantErr: true},
		{name: "subject not a string", claims: map[string]any{"sub": 42, "exp": exp}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := UserFromClaims(tt.claims)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, user.ID)
			assert.Equal(t, "a@b.c", user.Email)
		})
	}
}

func TestGoTrueVerifier(t *testing.T) {
	const userID = "6f1c7d52-5a1e-4e53-9d3a-1b7f1e2b3c4d"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":401,"msg":"invalid JWT"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": userID, "email": "palm@example.com", "aud": "authenticated"})
	}))
	defer srv.Close()

	v := NewGoTrueVerifier(newAuthClient(srv.URL, "anon-key"))

	user, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "palm@example.com", user.Email)

	_, err = v.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify(context.Background(), " ")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier(config.AuthConfig{SupabaseURL: "https://abc.supabase.co", AnonKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &GoTrueVerifier{}, v)

	_, err = NewVerifier(config.AuthConfig{})
	assert.Error(t, err)
}

func TestExtractProjectRef(t *testing.T) {
	assert.Equal(t, "akrqbuajqkirdekonpzy", extractProjectRef("https://akrqbuajqkirdekonpzy.supabase.co"))
	assert.Equal(t, "abc", extractProjectRef("abc.supabase.co"))
}
