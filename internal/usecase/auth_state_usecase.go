package usecase

import (
	"auth_service/internal/domain"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var _ domain.AuthStateProvider = (*authStateUseCase)(nil)

// Options tunes an auth state provider.
type Options struct {
	// RemoteSignOut makes Logout also revoke the session on the backend.
	// Logout is local only when false.
	RemoteSignOut bool
	// CallTimeout bounds each backend call. Zero means no bound.
	CallTimeout time.Duration
	// Now is the clock used for updated_at. Defaults to time.Now.
	Now func() time.Time
}

type authStateUseCase struct {
	backend  domain.AuthBackend
	profiles domain.ProfileStore
	log      *logrus.Logger
	opts     Options

	mu          sync.Mutex
	user        *domain.UserProfile
	accessToken string
	// epoch is bumped by every committed login and by logout. An operation
	// only commits if the epoch it started under is still current.
	epoch       uint64
	inflight    int
	subscribers map[int]chan domain.AuthState
	nextSub     int
}

// NewAuthStateUseCase creates a provider in the Anonymous state.
func NewAuthStateUseCase(backend domain.AuthBackend, profiles domain.ProfileStore, logger *logrus.Logger, opts Options) domain.AuthStateProvider {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &authStateUseCase{
		backend:     backend,
		profiles:    profiles,
		log:         logger,
		opts:        opts,
		subscribers: make(map[int]chan domain.AuthState),
	}
}

func (uc *authStateUseCase) State() domain.AuthState {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.snapshotLocked()
}

func (uc *authStateUseCase) CurrentUser() *domain.UserProfile {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.user.Clone()
}

func (uc *authStateUseCase) IsLoading() bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.inflight > 0
}

// Login authenticates with the backend and loads the matching profile row.
// If the row cannot be read, a fallback profile is built from the identity.
func (uc *authStateUseCase) Login(ctx context.Context, email, password string) (res domain.Result) {
	uc.log.Infof("Use Case: Attempting login for email: %s", email)

	ticket := uc.begin()
	defer uc.finish()
	defer uc.recoverInto(&res, "Login")

	callCtx, cancel := uc.callContext(ctx)
	session, err := uc.backend.SignInWithPassword(callCtx, email, password)
	cancel()
	if err != nil {
		uc.log.Errorf("Use Case: Login error for %s: %v", email, err)
		return domain.Failed(err)
	}
	if session == nil || session.User == nil {
		uc.log.Warnf("Use Case: Login for %s succeeded without an identity", email)
		return domain.Failed(domain.ErrNoIdentity)
	}

	identity := session.User
	callCtx, cancel = uc.callContext(domain.ContextWithAccessToken(ctx, session.AccessToken))
	profile, err := uc.profiles.GetProfile(callCtx, identity.ID)
	cancel()
	if err != nil {
		uc.log.Errorf("Use Case: Profile fetch error for user %s: %v", identity.ID, err)
		profile = domain.FallbackProfile(identity)
	} else if profile == nil {
		uc.log.Errorf("Use Case: Profile fetch for user %s returned no row", identity.ID)
		profile = domain.FallbackProfile(identity)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.epoch != ticket {
		uc.log.Warnf("Use Case: Discarding stale login for user %s", identity.ID)
		return domain.Failed(domain.ErrSessionChanged)
	}
	uc.epoch++
	uc.user = profile.Clone()
	uc.accessToken = session.AccessToken
	uc.publishLocked()

	uc.log.Infof("Use Case: Login successful for user %s (partial profile: %t)", identity.ID, profile.Partial)
	return domain.Succeeded()
}

// Register signs the account up and inserts its profile row. It never
// changes the current user; callers log in separately.
func (uc *authStateUseCase) Register(ctx context.Context, email, password, username string) (res domain.Result) {
	uc.log.Infof("Use Case: Attempting registration for email: %s", email)

	uc.begin()
	defer uc.finish()
	defer uc.recoverInto(&res, "Register")

	callCtx, cancel := uc.callContext(ctx)
	session, err := uc.backend.SignUp(callCtx, email, password)
	cancel()
	if err != nil {
		uc.log.Warnf("Use Case: Sign-up failed for %s: %v", email, err)
		return domain.Failed(err)
	}
	if session == nil || session.User == nil {
		uc.log.Infof("Use Case: Sign-up for %s returned no identity, no profile created", email)
		return domain.Succeeded()
	}

	row := domain.NewProfileRow(session.User.ID, session.User.Email, username)
	callCtx, cancel = uc.callContext(domain.ContextWithAccessToken(ctx, session.AccessToken))
	err = uc.profiles.InsertProfile(callCtx, row)
	cancel()
	if err != nil {
		uc.log.Errorf("Use Case: Profile insert failed for user %s: %v", row.ID, err)
		return domain.Failed(err)
	}

	uc.log.Infof("Use Case: User registered successfully. ID: %s, Username: %s", row.ID, username)
	return domain.Succeeded()
}

// Logout clears the current user. The backend session is only revoked when
// RemoteSignOut is enabled.
func (uc *authStateUseCase) Logout(ctx context.Context) {
	uc.mu.Lock()
	uc.epoch++
	token := uc.accessToken
	uc.user = nil
	uc.accessToken = ""
	uc.publishLocked()
	uc.mu.Unlock()
	uc.log.Info("Use Case: User logged out")

	if !uc.opts.RemoteSignOut || token == "" {
		return
	}

	uc.begin()
	defer uc.finish()
	var res domain.Result
	defer uc.recoverInto(&res, "Logout")

	callCtx, cancel := uc.callContext(ctx)
	defer cancel()
	if err := uc.backend.SignOut(callCtx, token); err != nil {
		uc.log.Warnf("Use Case: Remote sign-out failed: %v", err)
	}
}

// UpdateProfile writes the patch to the backend row of the current user and,
// on success, merges it into the local profile.
func (uc *authStateUseCase) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (res domain.Result) {
	uc.mu.Lock()
	if uc.user == nil || uc.user.ID == "" {
		uc.mu.Unlock()
		uc.log.Error("Use Case: No user ID available")
		return domain.Failed(domain.ErrNotAuthenticated)
	}
	userID := uc.user.ID
	token := uc.accessToken
	ticket := uc.epoch
	uc.inflight++
	uc.publishLocked()
	uc.mu.Unlock()

	defer uc.finish()
	defer uc.recoverInto(&res, "UpdateProfile")

	callCtx, cancel := uc.callContext(domain.ContextWithAccessToken(ctx, token))
	err := uc.profiles.UpdateProfile(callCtx, userID, patch, uc.opts.Now().UTC())
	cancel()
	if err != nil {
		uc.log.Errorf("Use Case: Update profile error for user %s: %v", userID, err)
		return domain.Failed(err)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.epoch != ticket || uc.user == nil || uc.user.ID != userID {
		uc.log.Warnf("Use Case: Profile of user %s updated remotely but session changed, local merge skipped", userID)
		return domain.Failed(domain.ErrSessionChanged)
	}
	uc.user = patch.Apply(uc.user)
	uc.publishLocked()

	uc.log.Infof("Use Case: Profile updated for user %s", userID)
	return domain.Succeeded()
}

// Subscribe returns a channel receiving every state transition. When the
// subscriber falls behind, older states are dropped in favor of the latest.
func (uc *authStateUseCase) Subscribe(buffer int) (<-chan domain.AuthState, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.AuthState, buffer)

	uc.mu.Lock()
	id := uc.nextSub
	uc.nextSub++
	uc.subscribers[id] = ch
	uc.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			uc.mu.Lock()
			delete(uc.subscribers, id)
			close(ch)
			uc.mu.Unlock()
		})
	}
}

// begin marks an operation in flight and returns the epoch it started under.
func (uc *authStateUseCase) begin() uint64 {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.inflight++
	uc.publishLocked()
	return uc.epoch
}

func (uc *authStateUseCase) finish() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.inflight--
	uc.publishLocked()
}

func (uc *authStateUseCase) recoverInto(res *domain.Result, op string) {
	if r := recover(); r != nil {
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("%v", r)
		}
		uc.log.Errorf("Use Case: %s error: %v", op, err)
		*res = domain.Failed(err)
	}
}

func (uc *authStateUseCase) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, uc.opts.CallTimeout)
	}
	return ctx, func() {}
}

func (uc *authStateUseCase) snapshotLocked() domain.AuthState {
	return domain.AuthState{
		CurrentUser: uc.user.Clone(),
		IsLoading:   uc.inflight > 0,
	}
}

func (uc *authStateUseCase) publishLocked() {
	if len(uc.subscribers) == 0 {
		return
	}
	state := uc.snapshotLocked()
	for _, ch := range uc.subscribers {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}
