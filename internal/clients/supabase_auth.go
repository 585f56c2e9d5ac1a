package clients

import (
	"auth_service/internal/domain"
	"context"
	"net/http"
	"net/url"
	"time"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is the GoTrue session payload. Sign-up without auto-confirm
// returns the bare user instead, hence the top-level identity fields.
type authResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    int64            `json:"expires_in"`
	ExpiresAt    int64            `json:"expires_at"`
	User         *domain.Identity `json:"user"`

	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata"`
}

func (r *authResponse) session(now time.Time) *domain.AuthSession {
	session := &domain.AuthSession{
		User:         r.User,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
	}
	if session.User == nil && r.ID != "" {
		session.User = &domain.Identity{ID: r.ID, Email: r.Email, Metadata: r.Metadata}
	}
	switch {
	case r.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(r.ExpiresAt, 0).UTC()
	case r.ExpiresIn > 0:
		session.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second).UTC()
	}
	return session
}

func (c *SupabaseClient) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	c.log.Infof("SupabaseClient: Signing in %s", email)
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"password"}},
		credentialsRequest{Email: email, Password: password}, nil, &resp)
	if err != nil {
		return nil, err
	}
	return resp.session(time.Now()), nil
}

func (c *SupabaseClient) SignUp(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	c.log.Infof("SupabaseClient: Signing up %s", email)
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil,
		credentialsRequest{Email: email, Password: password}, nil, &resp)
	if err != nil {
		return nil, err
	}
	return resp.session(time.Now()), nil
}

func (c *SupabaseClient) SignOut(ctx context.Context, accessToken string) error {
	c.log.Info("SupabaseClient: Signing out session")
	return c.do(domain.ContextWithAccessToken(ctx, accessToken), http.MethodPost, "/auth/v1/logout", nil, nil, nil, nil)
}
