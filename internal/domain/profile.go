package domain

import (
	"strings"
	"time"
)

// UserProfile mirrors a row of the backend "profiles" table.
type UserProfile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Username  string     `json:"username"`
	Bio       string     `json:"bio"`
	Phone     string     `json:"phone"`
	Gender    string     `json:"gender"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Partial is set when the profile was synthesized from the auth identity
	// because the row could not be read.
	Partial bool `json:"-"`
}

// Clone returns a deep copy so callers never share state with the provider.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		cp.UpdatedAt = &t
	}
	return &cp
}

// NewProfileRow builds the row inserted right after sign-up.
func NewProfileRow(id, email, username string) *UserProfile {
	return &UserProfile{
		ID:       id,
		Email:    email,
		Name:     "",
		Username: username,
		Bio:      "",
		Phone:    "",
		Gender:   "",
	}
}

// FallbackProfile builds the minimal profile used when the row read fails
// after a successful sign-in.
func FallbackProfile(identity *Identity) *UserProfile {
	return &UserProfile{
		ID:      identity.ID,
		Email:   identity.Email,
		Name:    identity.DisplayName(),
		Partial: true,
	}
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Gender   *string `json:"gender,omitempty"`
}

func (p ProfilePatch) IsEmpty() bool {
	return p.Email == nil && p.Name == nil && p.Username == nil &&
		p.Bio == nil && p.Phone == nil && p.Gender == nil
}

// Apply returns a copy of profile with the set fields of the patch merged in.
func (p ProfilePatch) Apply(profile *UserProfile) *UserProfile {
	merged := profile.Clone()
	if merged == nil {
		return nil
	}
	if p.Email != nil {
		merged.Email = *p.Email
	}
	if p.Name != nil {
		merged.Name = *p.Name
	}
	if p.Username != nil {
		merged.Username = *p.Username
	}
	if p.Bio != nil {
		merged.Bio = *p.Bio
	}
	if p.Phone != nil {
		merged.Phone = *p.Phone
	}
	if p.Gender != nil {
		merged.Gender = *p.Gender
	}
	return merged
}

// Fields returns the set fields keyed by column name.
func (p ProfilePatch) Fields() map[string]any {
	fields := make(map[string]any, 6)
	if p.Email != nil {
		fields["email"] = *p.Email
	}
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Username != nil {
		fields["username"] = *p.Username
	}
	if p.Bio != nil {
		fields["bio"] = *p.Bio
	}
	if p.Phone != nil {
		fields["phone"] = *p.Phone
	}
	if p.Gender != nil {
		fields["gender"] = *p.Gender
	}
	return fields
}

// PatchFromMap builds a patch from loosely typed input such as a decoded JSON
// object. Unknown keys and non-string values are reported back to the caller.
func PatchFromMap(in map[string]any) (ProfilePatch, []string) {
	var patch ProfilePatch
	var rejected []string
	for key, raw := range in {
		value, ok := raw.(string)
		if !ok {
			rejected = append(rejected, key)
			continue
		}
		v := value
		switch strings.ToLower(key) {
		case "email":
			patch.Email = &v
		case "name":
			patch.Name = &v
		case "username":
			patch.Username = &v
		case "bio":
			patch.Bio = &v
		case "phone":
			patch.Phone = &v
		case "gender":
			patch.Gender = &v
		default:
			rejected = append(rejected, key)
		}
	}
	return patch, rejected
}

// StringPtr is a small helper for building patches.
func StringPtr(s string) *string { return &s }
