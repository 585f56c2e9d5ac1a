package usecase

import (
	"auth_service/internal/domain"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProviderFactory builds a fresh provider for a new session.
type ProviderFactory func() domain.AuthStateProvider

type sessionEntry struct {
	provider domain.AuthStateProvider
	lastSeen time.Time
}

// SessionRegistry keeps one auth state provider per client session.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	factory  ProviderFactory
	log      *logrus.Logger
	now      func() time.Time
}

func NewSessionRegistry(factory ProviderFactory, logger *logrus.Logger) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*sessionEntry),
		factory:  factory,
		log:      logger,
		now:      time.Now,
	}
}

// Create registers a new anonymous session and returns its id.
func (r *SessionRegistry) Create() (string, domain.AuthStateProvider) {
	id := uuid.NewString()
	provider := r.factory()

	r.mu.Lock()
	r.sessions[id] = &sessionEntry{provider: provider, lastSeen: r.now()}
	r.mu.Unlock()

	r.log.Infof("Registry: Session %s created", id)
	return id, provider
}

// Get returns the session's provider and marks the session as used.
func (r *SessionRegistry) Get(id string) (domain.AuthStateProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	entry.lastSeen = r.now()
	return entry.provider, nil
}

// Delete logs the session out and forgets it.
func (r *SessionRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	entry.provider.Logout(ctx)
	r.log.Infof("Registry: Session %s deleted", id)
	return nil
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle logs out and removes every session not used within idleTTL.
// It returns the number of sessions evicted.
func (r *SessionRegistry) EvictIdle(ctx context.Context, idleTTL time.Duration) int {
	cutoff := r.now().Add(-idleTTL)

	r.mu.Lock()
	var evicted []domain.AuthStateProvider
	for id, entry := range r.sessions {
		if entry.lastSeen.Before(cutoff) {
			evicted = append(evicted, entry.provider)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, provider := range evicted {
		provider.Logout(ctx)
	}
	if len(evicted) > 0 {
		r.log.Infof("Registry: Evicted %d idle sessions", len(evicted))
	}
	return len(evicted)
}

// Run evicts idle sessions until ctx is done. A non-positive idleTTL
// disables eviction.
func (r *SessionRegistry) Run(ctx context.Context, idleTTL time.Duration) {
	if idleTTL <= 0 {
		r.log.Info("Registry: Idle session eviction disabled")
		return
	}
	interval := idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Infof("Registry: Evicting sessions idle for more than %s", idleTTL)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Registry: Janitor stopped")
			return
		case <-ticker.C:
			r.EvictIdle(ctx, idleTTL)
		}
	}
}
