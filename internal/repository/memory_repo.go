package repository

import (
	"auth_service/internal/domain"
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps credentials, profiles and revoked tokens in process.
// It backs the "memory" backend mode and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	credentials map[string]*domain.Credential // by email
	profiles    map[string]*domain.UserProfile
	revoked     map[string]time.Time
}

var (
	_ domain.ProfileStore         = (*MemoryStore)(nil)
	_ domain.CredentialRepository = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials: make(map[string]*domain.Credential),
		profiles:    make(map[string]*domain.UserProfile),
		revoked:     make(map[string]time.Time),
	}
}

func (s *MemoryStore) CreateCredential(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[cred.Email]; ok {
		return nil, fmt.Errorf("credential with email '%s': %w", cred.Email, domain.ErrAlreadyExists)
	}
	cp := *cred
	cp.CreatedAt = time.Now().UTC()
	s.credentials[cred.Email] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) GetCredentialByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.credentials[email]
	if !ok {
		return nil, fmt.Errorf("credential with email %s: %w", email, domain.ErrNotFound)
	}
	out := *cred
	return &out, nil
}

func (s *MemoryStore) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[tokenID] = expiresAt
	return nil
}

func (s *MemoryStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[tokenID]
	return ok, nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}
	return profile.Clone(), nil
}

func (s *MemoryStore) InsertProfile(ctx context.Context, profile *domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ID]; ok {
		return &domain.BackendError{
			Status:  409,
			Code:    "23505",
			Message: fmt.Sprintf("duplicate key value violates unique constraint \"profiles_pkey\" (id %s)", profile.ID),
			Err:     domain.ErrAlreadyExists,
		}
	}
	if err := s.checkUsernameLocked(profile.ID, profile.Username); err != nil {
		return err
	}
	s.profiles[profile.ID] = profile.Clone()
	return nil
}

// checkUsernameLocked mirrors the UNIQUE constraint on profiles.username.
// Empty usernames never collide.
func (s *MemoryStore) checkUsernameLocked(id, username string) error {
	if username == "" {
		return nil
	}
	for existingID, existing := range s.profiles {
		if existingID != id && existing.Username == username {
			return &domain.BackendError{
				Status:  409,
				Code:    "23505",
				Message: "duplicate key value violates unique constraint \"profiles_username_key\"",
				Err:     domain.ErrAlreadyExists,
			}
		}
	}
	return nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}
	if patch.Username != nil {
		if err := s.checkUsernameLocked(id, *patch.Username); err != nil {
			return err
		}
	}
	merged := patch.Apply(profile)
	at := updatedAt.UTC()
	merged.UpdatedAt = &at
	s.profiles[id] = merged
	return nil
}
