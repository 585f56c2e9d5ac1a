package usecase

import (
	"auth_service/internal/domain"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(backend *fakeBackend, profiles *fakeProfiles, opts Options) domain.AuthStateProvider {
	return NewAuthStateUseCase(backend, profiles, newTestLogger(), opts)
}

func TestLoginLoadsProfileRow(t *testing.T) {
	backend := &fakeBackend{signInSession: sessionFor("u1", "a@x.com", nil)}
	profiles := newFakeProfiles()
	row := &domain.UserProfile{ID: "u1", Email: "a@x.com", Name: "Alice", Username: "alice"}
	profiles.rows["u1"] = row

	provider := newProvider(backend, profiles, Options{})
	res := provider.Login(context.Background(), "a@x.com", "pw")

	require.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, row, provider.CurrentUser())
	assert.False(t, provider.CurrentUser().Partial)
	assert.False(t, provider.IsLoading())
}

func TestLoginFallsBackWhenProfileReadFails(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		metadata map[string]any
		wantName string
	}{
		{name: "metadata name", email: "bob@x.com", metadata: map[string]any{"name": "Bobby"}, wantName: "Bobby"},
		{name: "empty metadata name", email: "bob@x.com", metadata: map[string]any{"name": ""}, wantName: "bob"},
		{name: "no metadata", email: "carol.d@mail.example", wantName: "carol.d"},
		{name: "first at sign", email: "x@y@z.com", wantName: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{signInSession: sessionFor("u2", tt.email, tt.metadata)}
			profiles := newFakeProfiles()
			profiles.getErr = errors.New("JSON object requested, multiple (or no) rows returned")

			provider := newProvider(backend, profiles, Options{})
			res := provider.Login(context.Background(), tt.email, "pw")

			require.True(t, res.Success)
			user := provider.CurrentUser()
			require.NotNil(t, user)
			assert.Equal(t, "u2", user.ID)
			assert.Equal(t, tt.email, user.Email)
			assert.Equal(t, tt.wantName, user.Name)
			assert.True(t, user.Partial)
		})
	}
}

func TestLoginWithInvalidCredentialsKeepsState(t *testing.T) {
	backend := &fakeBackend{signInErr: domain.ErrInvalidCredentials}
	provider := newProvider(backend, newFakeProfiles(), Options{})

	res := provider.Login(context.Background(), "a@x.com", "wrong")
	assert.False(t, res.Success)
	assert.Equal(t, "invalid login credentials", res.Error)
	assert.Nil(t, provider.CurrentUser())

	profiles := newFakeProfiles()
	profiles.rows["u1"] = &domain.UserProfile{ID: "u1", Email: "a@x.com", Name: "Alice"}
	backend = &fakeBackend{signInSession: sessionFor("u1", "a@x.com", nil)}
	provider = newProvider(backend, profiles, Options{})
	require.True(t, provider.Login(context.Background(), "a@x.com", "pw").Success)

	backend.mu.Lock()
	backend.signInSession = nil
	backend.signInErr = domain.ErrInvalidCredentials
	backend.mu.Unlock()

	res = provider.Login(context.Background(), "a@x.com", "wrong")
	assert.False(t, res.Success)
	require.NotNil(t, provider.CurrentUser())
	assert.Equal(t, "u1", provider.CurrentUser().ID)
}

func TestLoginWithoutIdentityFails(t *testing.T) {
	backend := &fakeBackend{signInSession: &domain.AuthSession{}}
	profiles := newFakeProfiles()
	provider := newProvider(backend, profiles, Options{})

	res := provider.Login(context.Background(), "a@x.com", "pw")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, domain.ErrNoIdentity)
	assert.Nil(t, provider.CurrentUser())
	assert.Zero(t, profiles.totalCalls())
}

func TestLoginRecoversFromPanickingBackend(t *testing.T) {
	backend := &fakeBackend{signInPanic: "connection reset"}
	provider := newProvider(backend, newFakeProfiles(), Options{})

	res := provider.Login(context.Background(), "a@x.com", "pw")
	assert.False(t, res.Success)
	assert.Equal(t, "connection reset", res.Error)
	assert.False(t, provider.IsLoading())
}

func TestRegisterInsertsProfileRow(t *testing.T) {
	backend := &fakeBackend{signUpSession: sessionFor("u3", "new@x.com", nil)}
	profiles := newFakeProfiles()
	provider := newProvider(backend, profiles, Options{})

	res := provider.Register(context.Background(), "new@x.com", "pw", "newbie")
	require.True(t, res.Success)
	assert.Empty(t, res.Error)

	require.Len(t, profiles.inserted, 1)
	assert.Equal(t, &domain.UserProfile{
		ID:       "u3",
		Email:    "new@x.com",
		Username: "newbie",
	}, profiles.inserted[0])
	assert.Equal(t, "token-u3", profiles.insertToken)

	assert.Nil(t, provider.CurrentUser())
	assert.False(t, provider.State().Authenticated())
}

func TestRegisterReportsBackendMessages(t *testing.T) {
	t.Run("sign-up error", func(t *testing.T) {
		backend := &fakeBackend{signUpErr: &domain.BackendError{Status: 422, Message: "User already registered"}}
		profiles := newFakeProfiles()
		provider := newProvider(backend, profiles, Options{})

		res := provider.Register(context.Background(), "a@x.com", "pw", "alice")
		assert.Equal(t, domain.Result{Success: false, Error: "User already registered", Err: backend.signUpErr}, res)
		assert.Empty(t, profiles.inserted)
		assert.Nil(t, provider.CurrentUser())
	})

	t.Run("insert error", func(t *testing.T) {
		backend := &fakeBackend{signUpSession: sessionFor("u4", "b@x.com", nil)}
		profiles := newFakeProfiles()
		profiles.insertErr = &domain.BackendError{Status: 409, Code: "23505", Message: "duplicate key value violates unique constraint"}
		provider := newProvider(backend, profiles, Options{})

		res := provider.Register(context.Background(), "b@x.com", "pw", "bob")
		assert.False(t, res.Success)
		assert.Equal(t, "duplicate key value violates unique constraint", res.Error)
	})

	t.Run("no identity", func(t *testing.T) {
		backend := &fakeBackend{signUpSession: &domain.AuthSession{}}
		profiles := newFakeProfiles()
		provider := newProvider(backend, profiles, Options{})

		res := provider.Register(context.Background(), "c@x.com", "pw", "carol")
		assert.True(t, res.Success)
		assert.Empty(t, profiles.inserted)
	})
}

func TestUpdateProfileRequiresUser(t *testing.T) {
	backend := &fakeBackend{}
	profiles := newFakeProfiles()
	provider := newProvider(backend, profiles, Options{})

	res := provider.UpdateProfile(context.Background(), domain.ProfilePatch{Bio: domain.StringPtr("hi")})
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, domain.ErrNotAuthenticated)
	assert.Zero(t, profiles.totalCalls())
	assert.Zero(t, backend.totalCalls())
}

func TestUpdateProfileMergesPatch(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	backend := &fakeBackend{signInSession: sessionFor("u1", "a@x.com", nil)}
	profiles := newFakeProfiles()
	profiles.rows["u1"] = &domain.UserProfile{ID: "u1", Email: "a@x.com", Name: "Alice", Username: "alice", Phone: "555"}
	provider := newProvider(backend, profiles, Options{Now: func() time.Time { return now }})
	require.True(t, provider.Login(context.Background(), "a@x.com", "pw").Success)

	before := provider.CurrentUser()
	res := provider.UpdateProfile(context.Background(), domain.ProfilePatch{Bio: domain.StringPtr("hi")})
	require.True(t, res.Success)

	after := provider.CurrentUser()
	assert.Equal(t, "hi", after.Bio)
	before.Bio = "hi"
	assert.Equal(t, before, after)

	require.Len(t, profiles.updates, 1)
	call := profiles.updates[0]
	assert.Equal(t, "u1", call.id)
	assert.Equal(t, now, call.updatedAt)
	assert.Equal(t, "token-u1", call.token)
	assert.Equal(t, map[string]any{"bio": "hi"}, call.patch.Fields())
}

func TestUpdateProfileBackendErrorKeepsLocalState(t *testing.T) {
	backend := &fakeBackend{signInSession: sessionFor("u1", "a@x.com", nil)}
	profiles := newFakeProfiles()
	profiles.rows["u1"] = &domain.UserProfile{ID: "u1", Email: "a@x.com", Name: "Alice"}
	provider := newProvider(backend, profiles, Options{})
	require.True(t, provider.Login(context.Background(), "a@x.com", "pw").Success)

	profiles.mu.Lock()
	profiles.updateErr = errors.New("permission denied for table profiles")
	profiles.mu.Unlock()

	res := provider.UpdateProfile(context.Background(), domain.ProfilePatch{Name: domain.StringPtr("Al")})
	assert.False(t, res.Success)
	assert.Equal(t, "permission denied for table profiles", res.Error)
	assert.Equal(t, "Alice", provider.CurrentUser().Name)
}

func TestLogoutIsLocalByDefault(t *testing.T) {
	backend := &fakeBackend{signInSession: sessionFor("u1", "a@x.com", nil)}
	profiles := newFakeProfiles()
	provider := newProvider(backend, profiles, Options{})

	provider.Logout(context.Background())
	assert.Nil(t, provider.CurrentUser())
	assert.Zero(t, backend.totalCalls())

	require.True(t, provider.Login(context.Background(), "a@x.com", "pw").Success)
	callsBefore := backend.totalCalls()
	provider.Logout(context.Background())
	assert.Nil(t, provider.CurrentUser())
	assert.Equal(t, callsBefore, backend.totalCalls())
}

func TestLogoutRevokesRemotelyWhenEnabled(t *testing.T) {
	backend := &fakeBackend{
		signInSession: sessionFor("u1", "a@x.com", nil),
		signOutErr:    errors.New("network down"),
	}
	provider := newProvider(backend, newFakeProfiles(), Options{RemoteSignOut: true})
	require.True(t, provider.Login(context.Background(), "a@x.com", "pw").Success)

	provider.Logout(context.Background())
	assert.Nil(t, provider.CurrentUser())
	assert.Equal(t, 1, backend.signOutCalls)
	assert.Equal(t, "token-u1", backend.lastToken)
	assert.False(t, provider.IsLoading())
}

func TestStaleLoginDoesNotResurrectUser(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{signInSession: sessionFor("u1", "a@x.com", nil), signInGate: gate}
	profiles := newFakeProfiles()
	profiles.rows["u1"] = &domain.UserProfile{ID: "u1", Email: "a@x.com"}
	provider := newProvider(backend, profiles, Options{})

	done := make(chan domain.Result, 1)
	go func() {
		done <- provider.Login(context.Background(), "a@x.com", "pw")
	}()

	require.Eventually(t, provider.IsLoading, time.Second, 5*time.Millisecond)
	provider.Logout(context.Background())
	close(gate)

	res := <-done
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, domain.ErrSessionChanged)
	assert.Nil(t, provider.CurrentUser())
	assert.False(t, provider.IsLoading())
}

func TestFailedLoginDoesNotFenceInFlightUpdate(t *testing.T) {
	backend := &fakeBackend{signInSession: sessionFor("u1", "a@x.com", nil), badPassword: "wrong"}
	profiles := newFakeProfiles()
	profiles.rows["u1"] = &domain.UserProfile{ID: "u1", Email: "a@x.com", Name: "Alice"}
	provider := newProvider(backend, profiles, Options{})
	require.True(t, provider.Login(context.Background(), "a@x.com", "pw").Success)

	gate := make(chan struct{})
	profiles.mu.Lock()
	profiles.updateGate = gate
	profiles.mu.Unlock()

	done := make(chan domain.Result, 1)
	go func() {
		done <- provider.UpdateProfile(context.Background(), domain.ProfilePatch{Bio: domain.StringPtr("hi")})
	}()
	require.Eventually(t, func() bool { return profiles.updateCount() == 1 }, time.Second, 5*time.Millisecond)

	res := provider.Login(context.Background(), "a@x.com", "wrong")
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, domain.ErrInvalidCredentials)
	close(gate)

	res = <-done
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "hi", provider.CurrentUser().Bio)
	assert.Equal(t, "Alice", provider.CurrentUser().Name)
}

func TestFailedLoginDoesNotDiscardPendingLogin(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{
		signInSession: sessionFor("u1", "a@x.com", nil),
		signInGate:    gate,
		badPassword:   "wrong",
	}
	profiles := newFakeProfiles()
	profiles.rows["u1"] = &domain.UserProfile{ID: "u1", Email: "a@x.com", Name: "Alice"}
	provider := newProvider(backend, profiles, Options{})

	done := make(chan domain.Result, 1)
	go func() {
		done <- provider.Login(context.Background(), "a@x.com", "pw")
	}()
	require.Eventually(t, provider.IsLoading, time.Second, 5*time.Millisecond)

	res := provider.Login(context.Background(), "a@x.com", "wrong")
	require.False(t, res.Success)
	assert.Nil(t, provider.CurrentUser())
	close(gate)

	res = <-done
	require.True(t, res.Success, res.Error)
	require.NotNil(t, provider.CurrentUser())
	assert.Equal(t, "u1", provider.CurrentUser().ID)
	assert.False(t, provider.IsLoading())
}

func TestCommittedLoginSupersedesInFlightUpdate(t *testing.T) {
	backend := &fakeBackend{signInSession: sessionFor("u1", "a@x.com", nil)}
	profiles := newFakeProfiles()
	profiles.rows["u1"] = &domain.UserProfile{ID: "u1", Email: "a@x.com"}
	provider := newProvider(backend, profiles, Options{})
	require.True(t, provider.Login(context.Background(), "a@x.com", "pw").Success)

	gate := make(chan struct{})
	profiles.mu.Lock()
	profiles.updateGate = gate
	profiles.mu.Unlock()

	done := make(chan domain.Result, 1)
	go func() {
		done <- provider.UpdateProfile(context.Background(), domain.ProfilePatch{Bio: domain.StringPtr("hi")})
	}()
	require.Eventually(t, func() bool { return profiles.updateCount() == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, provider.Login(context.Background(), "a@x.com", "pw").Success)
	close(gate)

	res := <-done
	assert.ErrorIs(t, res.Err, domain.ErrSessionChanged)
	assert.Empty(t, provider.CurrentUser().Bio)
}

func TestCallTimeoutBoundsBackendCalls(t *testing.T) {
	backend := &fakeBackend{signInSession: sessionFor("u1", "a@x.com", nil), signInGate: make(chan struct{})}
	provider := newProvider(backend, newFakeProfiles(), Options{CallTimeout: 20 * time.Millisecond})

	res := provider.Login(context.Background(), "a@x.com", "pw")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Nil(t, provider.CurrentUser())
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	backend := &fakeBackend{signInSession: sessionFor("u1", "a@x.com", nil)}
	profiles := newFakeProfiles()
	profiles.rows["u1"] = &domain.UserProfile{ID: "u1", Email: "a@x.com", Name: "Alice"}
	provider := newProvider(backend, profiles, Options{})

	states, cancel := provider.Subscribe(16)
	defer cancel()

	require.True(t, provider.Login(context.Background(), "a@x.com", "pw").Success)
	provider.Logout(context.Background())

	var seen []domain.AuthState
	for len(seen) < 4 {
		select {
		case s := <-states:
			seen = append(seen, s)
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %d states", len(seen))
		}
	}

	// begin (loading), committed user, finish, logout
	assert.True(t, seen[0].IsLoading)
	assert.Nil(t, seen[0].CurrentUser)
	require.NotNil(t, seen[1].CurrentUser)
	assert.Equal(t, "Alice", seen[1].CurrentUser.Name)
	assert.False(t, seen[2].IsLoading)
	assert.NotNil(t, seen[2].CurrentUser)
	assert.Nil(t, seen[3].CurrentUser)
}

func TestSubscribeKeepsLatestStateWhenFull(t *testing.T) {
	backend := &fakeBackend{signInSession: sessionFor("u1", "a@x.com", nil)}
	provider := newProvider(backend, newFakeProfiles(), Options{})

	states, cancel := provider.Subscribe(1)
	require.True(t, provider.Login(context.Background(), "a@x.com", "pw").Success)

	last := <-states
	assert.False(t, last.IsLoading)
	require.NotNil(t, last.CurrentUser)
	assert.Equal(t, "u1", last.CurrentUser.ID)

	cancel()
	cancel()
	_, open := <-states
	assert.False(t, open)
}
