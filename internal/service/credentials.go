package service

import (
	"context"
	"errors"

	"github.com/squatlab/backend/internal/hash"
	"github.com/squatlab/backend/internal/models"
	"github.com/squatlab/backend/internal/repo"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialVerifier checks a username/password pair against the user store.
type CredentialVerifier struct {
	Users repo.UserStore
}

func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (*models.User, error) {
	user, err := v.Users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
