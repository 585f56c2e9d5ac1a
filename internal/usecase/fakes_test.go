package usecase

import (
	"auth_service/internal/domain"
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeBackend struct {
	mu sync.Mutex

	signInSession *domain.AuthSession
	signInErr     error
	signInGate    chan struct{}
	signInPanic   any
	// badPassword is rejected immediately, bypassing signInGate.
	badPassword string

	signUpSession *domain.AuthSession
	signUpErr     error

	signOutErr error

	signInCalls  int
	signUpCalls  int
	signOutCalls int
	lastToken    string
}

func (f *fakeBackend) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	f.mu.Lock()
	f.signInCalls++
	if f.badPassword != "" && password == f.badPassword {
		f.mu.Unlock()
		return nil, domain.ErrInvalidCredentials
	}
	gate := f.signInGate
	session, err, p := f.signInSession, f.signInErr, f.signInPanic
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p != nil {
		panic(p)
	}
	return session, err
}

func (f *fakeBackend) SignUp(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUpCalls++
	return f.signUpSession, f.signUpErr
}

func (f *fakeBackend) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	f.lastToken = accessToken
	return f.signOutErr
}

func (f *fakeBackend) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signInCalls + f.signUpCalls + f.signOutCalls
}

type updateCall struct {
	id        string
	patch     domain.ProfilePatch
	updatedAt time.Time
	token     string
}

type fakeProfiles struct {
	mu sync.Mutex

	rows      map[string]*domain.UserProfile
	getErr    error
	insertErr error
	updateErr error
	// updateGate holds UpdateProfile after the write is recorded.
	updateGate chan struct{}

	getCalls    int
	inserted    []*domain.UserProfile
	insertToken string
	updates     []updateCall
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{rows: make(map[string]*domain.UserProfile)}
}

func (f *fakeProfiles) GetProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return row.Clone(), nil
}

func (f *fakeProfiles) InsertProfile(ctx context.Context, profile *domain.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertToken, _ = domain.AccessTokenFromContext(ctx)
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, profile.Clone())
	f.rows[profile.ID] = profile.Clone()
	return nil
}

func (f *fakeProfiles) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch, updatedAt time.Time) error {
	f.mu.Lock()
	token, _ := domain.AccessTokenFromContext(ctx)
	f.updates = append(f.updates, updateCall{id: id, patch: patch, updatedAt: updatedAt, token: token})
	gate, err := f.updateGate, f.updateErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeProfiles) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeProfiles) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls + len(f.inserted) + len(f.updates)
}

func sessionFor(id, email string, metadata map[string]any) *domain.AuthSession {
	return &domain.AuthSession{
		User:        &domain.Identity{ID: id, Email: email, Metadata: metadata},
		AccessToken: "token-" + id,
	}
}
