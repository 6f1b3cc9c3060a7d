package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/supabase-community/gotrue-go"

	"github.com/illegalcall/palmistry/internal/config"
)

var ErrUnauthorized = errors.New("unauthorized")

// User is the authenticated caller.
type User struct {
	ID    string
	Email string
}

// TokenVerifier turns a bearer access token into a user.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (User, error)
}

// NewVerifier builds the remote verifier used when no JWT secret is
// configured. Tokens are then checked by asking GoTrue for their user.
func NewVerifier(cfg config.AuthConfig) (TokenVerifier, error) {
	if cfg.SupabaseURL == "" || cfg.AnonKey == "" {
		return nil, fmt.Errorf("SUPABASE_JWT_SECRET or SUPABASE_URL and SUPABASE_ANON_KEY must be set")
	}
	return NewGoTrueVerifier(newAuthClient(cfg.SupabaseURL, cfg.AnonKey)), nil
}

// UserFromClaims reads the caller from the claims of a token whose signature
// was already checked. Tokens without an expiry or a subject are rejected, as
// are anon-key tokens.
func UserFromClaims(claims map[string]any) (User, error) {
	switch claims["exp"].(type) {
	case float64, json.Number:
	default:
		return User{}, fmt.Errorf("%w: token has no expiry", ErrUnauthorized)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return User{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	if role, _ := claims["role"].(string); role == "anon" {
		return User{}, fmt.Errorf("%w: anonymous token", ErrUnauthorized)
	}
	email, _ := claims["email"].(string)
	return User{ID: sub, Email: email}, nil
}

type GoTrueVerifier struct {
	client gotrue.Client
}

func NewGoTrueVerifier(client gotrue.Client) *GoTrueVerifier {
	return &GoTrueVerifier{client: client}
}

func (v *GoTrueVerifier) Verify(_ context.Context, token string) (User, error) {
	if strings.TrimSpace(token) == "" {
		return User{}, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}
	resp, err := v.client.WithToken(token).GetUser()
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return User{ID: resp.ID.String(), Email: resp.Email}, nil
}
