package d1

import (
	"context"
	"fmt"
	"time"

	"github.com/opendots/opendots-backend/store"
	"github.com/opendots/opendots-backend/types"
)

var (
	_ store.ProfileStore   = (*ProfileStore)(nil)
	_ store.StatusReporter = (*ProfileStore)(nil)
)

const selectProfile = `SELECT id, user_id, username, display_name, age, gender, created_at, updated_at FROM user_profiles`

// ProfileStore keeps the D1 copy of user_profiles.
type ProfileStore struct {
	exec Executor
}

func NewProfileStore(exec Executor) *ProfileStore {
	return &ProfileStore{exec: exec}
}

func (s *ProfileStore) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	rows, err := s.exec.Query(ctx, `SELECT id FROM user_profiles WHERE username = ? LIMIT 1`, username)
	if err != nil {
		return false, fmt.Errorf("d1 check username: %w", err)
	}
	return len(rows) == 0, nil
}

func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	rows, err := s.exec.Query(ctx, selectProfile+` WHERE user_id = ? LIMIT 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("d1 get profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("d1 get profile: %w", store.ErrNotFound)
	}
	return rowToProfile(rows[0]), nil
}

func (s *ProfileStore) CreateProfile(ctx context.Context, p *types.UserProfile) error {
	_, err := s.exec.Exec(ctx,
		`INSERT INTO user_profiles (id, user_id, username, display_name, age, gender, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Username, p.DisplayName, nullableInt(p.Age), nullableString(p.Gender),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("d1 create profile: %w", err)
	}
	return nil
}

// DeleteProfile removes the row with the given profile id. A missing row is
// not an error.
func (s *ProfileStore) DeleteProfile(ctx context.Context, id string) error {
	if _, err := s.exec.Exec(ctx, `DELETE FROM user_profiles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("d1 delete profile: %w", err)
	}
	return nil
}

// UpdateProfile writes the mutable fields and reads the row back.
func (s *ProfileStore) UpdateProfile(ctx context.Context, userID string, update types.ProfileUpdate, updatedAt time.Time) (*types.UserProfile, error) {
	changed, err := s.exec.Exec(ctx,
		`UPDATE user_profiles SET updated_at = ?, display_name = ?, age = ?, gender = ? WHERE user_id = ?`,
		formatTime(updatedAt), update.DisplayName, nullableInt(update.Age), nullableString(update.Gender), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("d1 update profile: %w", err)
	}
	if changed == 0 {
		return nil, fmt.Errorf("d1 update profile: %w", store.ErrNotFound)
	}
	return s.GetProfile(ctx, userID)
}

// Tables lists the user tables, skipping SQLite and Cloudflare internals.
func (s *ProfileStore) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.exec.Query(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE '_cf_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("d1 list tables: %w", err)
	}
	tables := make([]string, 0, len(rows))
	for _, r := range rows {
		tables = append(tables, r.String("name"))
	}
	return tables, nil
}

func (s *ProfileStore) CountProfiles(ctx context.Context) (int, error) {
	rows, err := s.exec.Query(ctx, `SELECT COUNT(*) AS count FROM user_profiles`)
	if err != nil {
		return 0, fmt.Errorf("d1 count profiles: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Int("count"), nil
}

// Ping runs a trivial query to check the database answers.
func (s *ProfileStore) Ping(ctx context.Context) error {
	if _, err := s.exec.Query(ctx, `SELECT 1 AS ok`); err != nil {
		return fmt.Errorf("d1 ping: %w", err)
	}
	return nil
}

func rowToProfile(r Row) *types.UserProfile {
	return &types.UserProfile{
		ID:          r.String("id"),
		UserID:      r.String("user_id"),
		Username:    r.String("username"),
		DisplayName: r.String("display_name"),
		Age:         r.IntPtr("age"),
		Gender:      r.StringPtr("gender"),
		CreatedAt:   r.Time("created_at"),
		UpdatedAt:   r.Time("updated_at"),
	}
}

// Untyped nil keeps both JSON encoding and database/sql binding as NULL.
func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
