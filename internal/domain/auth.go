package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrNoIdentity         = errors.New("backend returned no user")
	ErrNotAuthenticated   = errors.New("no user ID available")
	ErrSessionChanged     = errors.New("session changed while request was in flight")
	ErrInvalidToken       = errors.New("invalid token")
)

// BackendError is an error reported by the remote auth/storage service.
type BackendError struct {
	Status  int
	Code    string
	Message string
	// Err optionally classifies the failure with one of the sentinel errors.
	Err error
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ErrorMessage extracts the human readable reason of err. Backend errors
// report their own message without status decoration.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return err.Error()
}

// Identity is the authenticated account as reported by the auth backend.
type Identity struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// DisplayName is the metadata "name" if set, else the local part of the email.
func (i *Identity) DisplayName() string {
	if name, ok := i.Metadata["name"].(string); ok && name != "" {
		return name
	}
	local, _, _ := strings.Cut(i.Email, "@")
	return local
}

// AuthSession is the outcome of a sign-in or sign-up call.
type AuthSession struct {
	User         *Identity
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthState is the observable state held by the provider.
type AuthState struct {
	CurrentUser *UserProfile `json:"current_user"`
	IsLoading   bool         `json:"is_loading"`
}

func (s AuthState) Authenticated() bool { return s.CurrentUser != nil }

// Result is the outcome of every provider action.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	Err error `json:"-"`
}

func Succeeded() Result { return Result{Success: true} }

func Failed(err error) Result {
	return Result{Success: false, Error: ErrorMessage(err), Err: err}
}

// AuthBackend is the password authentication half of the hosted service.
type AuthBackend interface {
	SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error)
	SignUp(ctx context.Context, email, password string) (*AuthSession, error)
	SignOut(ctx context.Context, accessToken string) error
}

// ProfileStore is the row storage half of the hosted service, scoped to the
// profiles collection. GetProfile has single-row semantics and returns
// ErrNotFound when zero or several rows match.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*UserProfile, error)
	InsertProfile(ctx context.Context, profile *UserProfile) error
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch, updatedAt time.Time) error
}

// AuthStateProvider is the capability handed to consumers.
type AuthStateProvider interface {
	State() AuthState
	CurrentUser() *UserProfile
	IsLoading() bool
	Login(ctx context.Context, email, password string) Result
	Register(ctx context.Context, email, password, username string) Result
	Logout(ctx context.Context)
	UpdateProfile(ctx context.Context, patch ProfilePatch) Result
	Subscribe(buffer int) (<-chan AuthState, func())
}
