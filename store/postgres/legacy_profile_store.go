package postgres

import (
	"context"

	"github.com/opendots/opendots-backend/store"
	"github.com/opendots/opendots-backend/types"
)

var _ store.LegacyProfileStore = (*LegacyProfileStore)(nil)

// LegacyProfileStore maintains the profiles table populated from auth users.
type LegacyProfileStore struct {
	db DBTX
}

func NewLegacyProfileStore(db DBTX) *LegacyProfileStore {
	return &LegacyProfileStore{db: db}
}

// UpdateSignInMetadata calls update_user_profile_metadata. The function
// returns false when the user has no legacy row yet.
func (s *LegacyProfileStore) UpdateSignInMetadata(ctx context.Context, userID string, meta types.SignInMetadata) (bool, error) {
	meta = meta.WithDefaults()

	var updated bool
	err := s.db.QueryRow(ctx,
		`SELECT update_user_profile_metadata($1, $2, $3, $4)`,
		userID, meta.Platform, meta.Browser, meta.Location,
	).Scan(&updated)
	if err != nil {
		return false, mapError(err, "update sign-in metadata")
	}
	return updated, nil
}

func (s *LegacyProfileStore) GetLegacyProfile(ctx context.Context, userID string) (*types.LegacyProfile, error) {
	query := `SELECT id::text, email, full_name, avatar_url, provider, location, platform, browser,
	                 username, age, gender, created_at, updated_at
	          FROM profiles WHERE id = $1`

	p := &types.LegacyProfile{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.Provider, &p.Location, &p.Platform, &p.Browser,
		&p.Username, &p.Age, &p.Gender, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, "get legacy profile")
	}
	return p, nil
}
