package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/store"
	"github.com/opendots/opendots-backend/types"
)

// Ensure ProfileStore implements store.ProfileStore.
var _ store.ProfileStore = (*ProfileStore)(nil)

const profileColumns = `id::text, user_id::text, username, display_name, age, gender, created_at, updated_at`

// ProfileStore reads and writes the user_profiles table.
type ProfileStore struct {
	db DBTX
}

// NewProfileStore creates a Postgres-backed profile store.
func NewProfileStore(db DBTX) *ProfileStore {
	return &ProfileStore{db: db}
}

// IsUsernameAvailable calls the is_username_available function installed by
// the migrations. When the function is missing (a database that was never
// migrated) it falls back to a direct lookup.
func (s *ProfileStore) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	var available bool
	err := s.db.QueryRow(ctx, `SELECT is_username_available($1)`, username).Scan(&available)
	if err == nil {
		return available, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUndefinedFunc {
		return false, mapError(err, "check username availability")
	}

	logger.GetLogger().Warnw("is_username_available function missing, using direct query")
	var taken bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_profiles WHERE lower(username) = lower($1))`,
		username).Scan(&taken)
	if err != nil {
		return false, mapError(err, "check username availability")
	}
	return !taken, nil
}

// GetProfile returns the profile for userID or store.ErrNotFound.
func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`

	p := &types.UserProfile{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.ID, &p.UserID, &p.Username, &p.DisplayName, &p.Age, &p.Gender, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, "get profile")
	}
	return p, nil
}

// CreateProfile inserts p with its preassigned id and timestamps.
func (s *ProfileStore) CreateProfile(ctx context.Context, p *types.UserProfile) error {
	query := `INSERT INTO user_profiles (id, user_id, username, display_name, age, gender, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.Exec(ctx, query,
		p.ID, p.UserID, p.Username, p.DisplayName, p.Age, p.Gender, p.CreatedAt, p.UpdatedAt,
	)
	return mapError(err, "create profile")
}

// UpdateProfile overwrites the mutable fields and returns the stored row.
func (s *ProfileStore) UpdateProfile(ctx context.Context, userID string, update types.ProfileUpdate, updatedAt time.Time) (*types.UserProfile, error) {
	query := `UPDATE user_profiles
	          SET display_name = $2, age = $3, gender = $4, updated_at = $5
	          WHERE user_id = $1
	          RETURNING ` + profileColumns

	p := &types.UserProfile{}
	err := s.db.QueryRow(ctx, query, userID, update.DisplayName, update.Age, update.Gender, updatedAt).Scan(
		&p.ID, &p.UserID, &p.Username, &p.DisplayName, &p.Age, &p.Gender, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, "update profile")
	}
	return p, nil
}
