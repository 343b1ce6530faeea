package auth

import (
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"strings"
)

// JWTIdentity binds a connection to the user named in its bearer token.
// The name claimed in a join request is ignored when it disagrees.
type JWTIdentity struct {
	log    *slog.Logger
	tokens *Tokens
}

func NewJWTIdentity(log *slog.Logger, tokens *Tokens) *JWTIdentity {
	return &JWTIdentity{log: log, tokens: tokens}
}

func (j *JWTIdentity) Resolve(token, claimed string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: token is missing", errors.ErrUnknownIdentity)
	}
	claims, err := j.tokens.ValidateToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrUnknownIdentity, err)
	}
	if err := ValidateUsername(claims.UserID); err != nil {
		return "", err
	}
	if claimed != "" && claimed != claims.UserID {
		j.log.Warn("Claimed user differs from token subject", "claimed", claimed, "user", claims.UserID)
	}
	return claims.UserID, nil
}

// TrustedIdentity takes the claimed name as is. Meant for local runs where
// an upstream proxy already authenticated the caller.
type TrustedIdentity struct{}

func (TrustedIdentity) Resolve(_, claimed string) (string, error) {
	if err := ValidateUsername(claimed); err != nil {
		return "", err
	}
	return strings.TrimSpace(claimed), nil
}
