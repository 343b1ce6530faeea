package auth

import (
	"chat-relay/errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const secret = "a-test-secret-long-enough"

func TestTokens_RoundTrip(t *testing.T) {
	req := require.New(t)
	tokens, err := NewTokens(secret, time.Hour)
	req.NoError(err)

	token, err := tokens.GenerateToken("alice")
	req.NoError(err)

	claims, err := tokens.ValidateToken(token)
	req.NoError(err)
	req.Equal("alice", claims.UserID)
	req.Equal("chat-relay", claims.Issuer)
}

func TestTokens_Rejects(t *testing.T) {
	req := require.New(t)
	tokens, err := NewTokens(secret, time.Hour)
	req.NoError(err)
	other, err := NewTokens("another-secret-long-enough", time.Hour)
	req.NoError(err)

	// Given a token signed with a different key
	forged, err := other.GenerateToken("mallory")
	req.NoError(err)
	_, err = tokens.ValidateToken(forged)
	req.Error(err)

	// Given an expired token
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := tokens.GenerateToken("alice")
	req.NoError(err)
	tokens.now = time.Now
	_, err = tokens.ValidateToken(expired)
	req.Error(err)

	_, err = NewTokens("short", time.Hour)
	req.Error(err)
}

func TestJWTIdentity_Resolve(t *testing.T) {
	req := require.New(t)
	tokens, err := NewTokens(secret, time.Hour)
	req.NoError(err)
	identity := NewJWTIdentity(slog.Default(), tokens)
	token, err := tokens.GenerateToken("alice")
	req.NoError(err)

	// The token decides, not the claim
	user, err := identity.Resolve(token, "mallory")
	req.NoError(err)
	req.Equal("alice", user)

	_, err = identity.Resolve("", "alice")
	req.ErrorIs(err, errors.ErrUnknownIdentity)

	_, err = identity.Resolve("not-a-jwt", "alice")
	req.ErrorIs(err, errors.ErrUnknownIdentity)
	req.True(errors.IsValidation(err))
}

func TestTrustedIdentity_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		claimed string
		want    string
		wantErr bool
	}{
		{"plain", "alice", "alice", false},
		{"trimmed", "  bob ", "bob", false},
		{"unicode letters", "zoé", "zoé", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"too long", strings.Repeat("a", 65), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			user, err := TrustedIdentity{}.Resolve("", tt.claimed)
			if tt.wantErr {
				req.ErrorIs(err, errors.ErrUnknownIdentity)
				return
			}
			req.NoError(err)
			req.Equal(tt.want, user)
		})
	}
}
