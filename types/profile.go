package types

import "time"

// Accepted gender values. The stores keep whatever string they receive; only
// the HTTP boundary restricts input to this set.
const (
	GenderMale           = "male"
	GenderFemale         = "female"
	GenderNonBinary      = "non-binary"
	GenderOther          = "other"
	GenderPreferNotToSay = "prefer-not-to-say"
)

// UserProfile is the canonical onboarding profile. The same ID is used in the
// primary and secondary store.
type UserProfile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Age         *int      `json:"age"`
	Gender      *string   `json:"gender"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateProfileInput is the onboarding form.
type CreateProfileInput struct {
	Username    string  `json:"username" binding:"required,username"`
	DisplayName string  `json:"display_name" binding:"required,min=1,max=100"`
	Age         *int    `json:"age,omitempty" binding:"omitempty,min=13,max=120"`
	Gender      *string `json:"gender,omitempty" binding:"omitempty,oneof=male female non-binary other prefer-not-to-say"`
}

// ProfileUpdate carries the mutable profile fields. Username is deliberately
// absent: it is fixed at onboarding.
type ProfileUpdate struct {
	DisplayName string  `json:"display_name" binding:"required,min=1,max=100"`
	Age         *int    `json:"age,omitempty" binding:"omitempty,min=13,max=120"`
	Gender      *string `json:"gender,omitempty" binding:"omitempty,oneof=male female non-binary other prefer-not-to-say"`
}

// ProfileResult is returned by writes. Warning is set when only the secondary
// store accepted the write.
type ProfileResult struct {
	Profile *UserProfile `json:"data"`
	Warning string       `json:"warning,omitempty"`
}

// LegacyProfile mirrors the older profiles table keyed by the auth user id.
type LegacyProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
	Provider  *string   `json:"provider"`
	Location  *string   `json:"location"`
	Platform  *string   `json:"platform"`
	Browser   *string   `json:"browser"`
	Username  *string   `json:"username"`
	Age       *int      `json:"age"`
	Gender    *string   `json:"gender"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SignInMetadata is recorded on every successful OAuth callback.
type SignInMetadata struct {
	Platform string `json:"platform"`
	Browser  string `json:"browser"`
	Location string `json:"location"`
}

// UnknownValue is stored when a sign-in attribute could not be determined.
const UnknownValue = "unknown"

// WithDefaults replaces empty fields with UnknownValue.
func (m SignInMetadata) WithDefaults() SignInMetadata {
	if m.Platform == "" {
		m.Platform = UnknownValue
	}
	if m.Browser == "" {
		m.Browser = UnknownValue
	}
	if m.Location == "" {
		m.Location = UnknownValue
	}
	return m
}

// UploadResult is returned by the image upload endpoint.
type UploadResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Key     string `json:"key"`
}

// D1 status values reported by the diagnostic endpoint.
const (
	D1StatusAvailable    = "available"
	D1StatusNotAvailable = "not_available"
	D1StatusError        = "error"
)

// D1Status is the diagnostic view of the secondary store.
type D1Status struct {
	Status       string   `json:"status"`
	Message      string   `json:"message"`
	IsWorker     bool     `json:"is_worker"`
	Tables       []string `json:"tables"`
	ProfileCount *int     `json:"profile_count,omitempty"`
	Error        string   `json:"error,omitempty"`
}
