package clients

import (
	"auth_service/internal/domain"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const profilesPath = "/rest/v1/profiles"

// PostgREST answers 406 with this code when a single object was requested
// but zero or several rows matched.
const singleRowCode = "PGRST116"

func (c *SupabaseClient) GetProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	query := url.Values{
		"id":     {"eq." + id},
		"select": {"*"},
	}
	headers := map[string]string{"Accept": "application/vnd.pgrst.object+json"}

	var profile domain.UserProfile
	err := c.do(ctx, http.MethodGet, profilesPath, query, nil, headers, &profile)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("profile %s: %w", id, err)
		}
		return nil, err
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}
	return &profile, nil
}

func (c *SupabaseClient) InsertProfile(ctx context.Context, profile *domain.UserProfile) error {
	c.log.Infof("SupabaseClient: Inserting profile %s", profile.ID)
	headers := map[string]string{"Prefer": "return=minimal"}
	return c.do(ctx, http.MethodPost, profilesPath, nil, []*domain.UserProfile{profile}, headers, nil)
}

func (c *SupabaseClient) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch, updatedAt time.Time) error {
	c.log.Infof("SupabaseClient: Updating profile %s", id)
	body := patch.Fields()
	body["updated_at"] = updatedAt.UTC().Format(time.RFC3339Nano)
	headers := map[string]string{"Prefer": "return=minimal"}
	return c.do(ctx, http.MethodPatch, profilesPath, url.Values{"id": {"eq." + id}}, body, headers, nil)
}
