// Package auth implements the token-validation contract: given
// {username, token}, return the opaque user-id or reject. Registration,
// login, and credential storage live elsewhere; this adapter only
// checks the single-valued auth-token invariant already carried on the
// User row (domain/models/user.go).
package auth

import (
	"context"
	"crypto/subtle"

	"github.com/longregen/alicia/internal/domain"
	"github.com/longregen/alicia/internal/ports"
)

// Validator is the default ports.TokenValidator: it looks the user up
// by display name and compares the token in constant time.
type Validator struct {
	users ports.UserRepository
}

func NewValidator(users ports.UserRepository) *Validator {
	return &Validator{users: users}
}

func (v *Validator) Validate(ctx context.Context, username, token string) (string, error) {
	if username == "" || token == "" {
		return "", domain.ErrTokenInvalid
	}

	user, err := v.users.GetByDisplayName(ctx, username)
	if err != nil {
		return "", domain.ErrTokenInvalid
	}

	if user.AuthToken == "" || subtle.ConstantTimeCompare([]byte(user.AuthToken), []byte(token)) != 1 {
		return "", domain.ErrTokenInvalid
	}

	return user.ID, nil
}
