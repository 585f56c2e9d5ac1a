package repository

import (
	"auth_service/internal/domain"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type postgresCredentialRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewPostgresCredentialRepository(db *sql.DB, logger *logrus.Logger) domain.CredentialRepository {
	return &postgresCredentialRepository{
		db:  db,
		log: logger,
	}
}

func (r *postgresCredentialRepository) CreateCredential(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	query := `
        INSERT INTO credentials (id, email, password_hash, user_metadata)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at`

	metadata, err := json.Marshal(cred.Metadata)
	if err != nil {
		return nil, fmt.Errorf("could not encode user metadata: %w", err)
	}
	if cred.Metadata == nil {
		metadata = []byte("{}")
	}

	r.log.Debugf("Repository: Attempting to create credential with email: %s", cred.Email)

	err = r.db.QueryRowContext(ctx, query, cred.ID, cred.Email, cred.PasswordHash, metadata).Scan(&cred.CreatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			r.log.Warnf("Repository: Attempted to create credential with duplicate email: %s", cred.Email)
			return nil, fmt.Errorf("credential with email '%s': %w", cred.Email, domain.ErrAlreadyExists)
		}
		r.log.Errorf("Repository: Failed to create credential '%s': %v", cred.Email, err)
		return nil, fmt.Errorf("could not create credential: %w", err)
	}

	r.log.Infof("Repository: Credential created with ID: %s, Email: %s", cred.ID, cred.Email)
	return cred, nil
}

func (r *postgresCredentialRepository) GetCredentialByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	query := `
        SELECT id, email, password_hash, user_metadata, created_at
        FROM credentials
        WHERE email = $1`
	cred := &domain.Credential{}
	var metadata []byte

	r.log.Debugf("Repository: Attempting to find credential by email: %s", email)

	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&cred.ID,
		&cred.Email,
		&cred.PasswordHash,
		&metadata,
		&cred.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Repository: Credential with email %s not found", email)
			return nil, fmt.Errorf("credential with email %s: %w", email, domain.ErrNotFound)
		}
		r.log.Errorf("Repository: Failed to get credential by email %s: %v", email, err)
		return nil, fmt.Errorf("could not get credential by email: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &cred.Metadata); err != nil {
			r.log.Warnf("Repository: Ignoring undecodable metadata of credential %s: %v", cred.ID, err)
		}
	}

	return cred, nil
}

func (r *postgresCredentialRepository) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	query := `
        INSERT INTO revoked_tokens (token_id, expires_at)
        VALUES ($1, $2)
        ON CONFLICT (token_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, tokenID, expiresAt.UTC()); err != nil {
		r.log.Errorf("Repository: Failed to revoke token %s: %v", tokenID, err)
		return fmt.Errorf("could not revoke token: %w", err)
	}
	return nil
}

func (r *postgresCredentialRepository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1)`, tokenID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("could not check token revocation: %w", err)
	}
	return exists, nil
}
