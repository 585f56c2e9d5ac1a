package domain

import (
	"context"
	"time"
)

// Credential is an account record of the self-hosted auth backend.
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	Metadata     map[string]any
	CreatedAt    time.Time
}

type CredentialRepository interface {
	CreateCredential(ctx context.Context, cred *Credential) (*Credential, error)
	GetCredentialByEmail(ctx context.Context, email string) (*Credential, error)
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}
