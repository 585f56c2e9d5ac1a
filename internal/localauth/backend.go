// Package localauth is a self-hosted stand-in for the hosted auth service.
// It keeps credentials in a CredentialRepository and issues its own tokens,
// reporting failures with the same messages the hosted service uses.
package localauth

import (
	"auth_service/internal/domain"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var _ domain.AuthBackend = (*Backend)(nil)

var (
	errUserExists = &domain.BackendError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "user_already_exists",
		Message: "User already registered",
		Err:     domain.ErrAlreadyExists,
	}
	errBadCredentials = &domain.BackendError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_credentials",
		Message: "Invalid login credentials",
		Err:     domain.ErrInvalidCredentials,
	}
	errBadToken = &domain.BackendError{
		Status:  http.StatusUnauthorized,
		Code:    "bad_jwt",
		Message: "invalid JWT",
		Err:     domain.ErrInvalidToken,
	}
)

type Backend struct {
	repo   domain.CredentialRepository
	tokens *TokenManager
	log    *logrus.Logger
	cost   int
}

func NewBackend(repo domain.CredentialRepository, tokens *TokenManager, logger *logrus.Logger) *Backend {
	return &Backend{
		repo:   repo,
		tokens: tokens,
		log:    logger,
		cost:   bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (b *Backend) SignUp(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	email = normalizeEmail(email)
	b.log.Infof("LocalAuth: Attempting sign-up for email: %s", email)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		b.log.Errorf("LocalAuth: Failed to hash password for %s: %v", email, err)
		return nil, fmt.Errorf("internal error processing password: %w", err)
	}

	cred, err := b.repo.CreateCredential(ctx, &domain.Credential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			b.log.Warnf("LocalAuth: Sign-up failed - email already registered: %s", email)
			return nil, errUserExists
		}
		return nil, err
	}

	b.log.Infof("LocalAuth: User signed up. ID: %s", cred.ID)
	return b.issue(cred)
}

func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	email = normalizeEmail(email)
	b.log.Infof("LocalAuth: Attempting sign-in for email: %s", email)

	cred, err := b.repo.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			b.log.Warnf("LocalAuth: Sign-in failed - user not found: %s", email)
			return nil, errBadCredentials
		}
		return nil, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			b.log.Warnf("LocalAuth: Sign-in failed - incorrect password for user %s", cred.ID)
			return nil, errBadCredentials
		}
		b.log.Errorf("LocalAuth: Error comparing password hash for user %s: %v", cred.ID, err)
		return nil, fmt.Errorf("internal error during authentication: %w", err)
	}

	b.log.Infof("LocalAuth: Sign-in successful for user %s", cred.ID)
	return b.issue(cred)
}

// SignOut revokes the access token. Revoked or malformed tokens are rejected.
func (b *Backend) SignOut(ctx context.Context, accessToken string) error {
	claims, err := b.Authenticate(ctx, accessToken)
	if err != nil {
		return err
	}
	if err := b.repo.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	b.log.Infof("LocalAuth: Session of user %s signed out", claims.Subject)
	return nil
}

// Authenticate verifies an access token and checks it was not revoked.
func (b *Backend) Authenticate(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := b.tokens.Verify(accessToken)
	if err != nil {
		b.log.Warnf("LocalAuth: Token rejected: %v", err)
		return nil, errBadToken
	}
	revoked, err := b.repo.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		b.log.Warnf("LocalAuth: Token %s of user %s was revoked", claims.ID, claims.Subject)
		return nil, errBadToken
	}
	return claims, nil
}

func (b *Backend) issue(cred *domain.Credential) (*domain.AuthSession, error) {
	token, claims, err := b.tokens.Generate(cred.ID, cred.Email)
	if err != nil {
		return nil, err
	}
	return &domain.AuthSession{
		User: &domain.Identity{
			ID:       cred.ID,
			Email:    cred.Email,
			Metadata: cred.Metadata,
		},
		AccessToken:  token,
		RefreshToken: uuid.NewString(),
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}
