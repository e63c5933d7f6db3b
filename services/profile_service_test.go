package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "github.com/opendots/opendots-backend/errors"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/metrics"
	"github.com/opendots/opendots-backend/store"
	"github.com/opendots/opendots-backend/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.IsTest = true
}

// MockProfileStore implements store.ProfileStore.
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockProfileStore) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	args := m.Called(ctx, userID)
	if p, ok := args.Get(0).(*types.UserProfile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfileStore) CreateProfile(ctx context.Context, p *types.UserProfile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProfileStore) UpdateProfile(ctx context.Context, userID string, update types.ProfileUpdate, updatedAt time.Time) (*types.UserProfile, error) {
	args := m.Called(ctx, userID, update, updatedAt)
	if p, ok := args.Get(0).(*types.UserProfile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfileStore) DeleteProfile(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

const testProfileID = "3f1c1f0e-8a9e-4c8b-9d1e-0c6a7f2b4d11"

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestService(primary, secondary *MockProfileStore, m *metrics.ProfileMetrics) *ProfileService {
	opts := []ProfileServiceOption{
		WithProfileMetrics(m),
		withClock(func() time.Time { return fixedNow }),
		withIDGenerator(func() string { return testProfileID }),
	}
	if secondary != nil {
		opts = append(opts, WithSecondaryStore(secondary))
	}
	return NewProfileService(primary, opts...)
}

func sampleProfile(userID string) *types.UserProfile {
	age := 29
	return &types.UserProfile{
		ID:          "a6d0f3f4-0e0b-4c89-9b0c-6f4b1f1b8e77",
		UserID:      userID,
		Username:    "trailrunner",
		DisplayName: "Trail Runner",
		Age:         &age,
		CreatedAt:   fixedNow.Add(-24 * time.Hour),
		UpdatedAt:   fixedNow.Add(-24 * time.Hour),
	}
}

func TestCheckUsernameAvailable_SecondaryTakenShortCircuits(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)

	secondary.On("IsUsernameAvailable", mock.Anything, "trailrunner").Return(false, nil)

	available, err := svc.CheckUsernameAvailable(context.Background(), "trailrunner")
	require.NoError(t, err)
	assert.False(t, available)
	primary.AssertNotCalled(t, "IsUsernameAvailable", mock.Anything, mock.Anything)
	secondary.AssertExpectations(t)
}

func TestCheckUsernameAvailable_PrimaryDecides(t *testing.T) {
	tests := []struct {
		name         string
		secondaryOK  bool
		secondaryErr error
		primaryOK    bool
	}{
		{name: "secondary available, primary taken", secondaryOK: true, primaryOK: false},
		{name: "secondary available, primary available", secondaryOK: true, primaryOK: true},
		{name: "secondary error, primary available", secondaryErr: store.ErrUnavailable, primaryOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary, secondary := new(MockProfileStore), new(MockProfileStore)
			svc := newTestService(primary, secondary, nil)

			secondary.On("IsUsernameAvailable", mock.Anything, "trailrunner").Return(tt.secondaryOK, tt.secondaryErr)
			primary.On("IsUsernameAvailable", mock.Anything, "trailrunner").Return(tt.primaryOK, nil)

			available, err := svc.CheckUsernameAvailable(context.Background(), "trailrunner")
			require.NoError(t, err)
			assert.Equal(t, tt.primaryOK, available)
			primary.AssertExpectations(t)
		})
	}
}

func TestCheckUsernameAvailable_SecondaryDisabled(t *testing.T) {
	primary := new(MockProfileStore)
	svc := newTestService(primary, nil, nil)

	primary.On("IsUsernameAvailable", mock.Anything, "trailrunner").Return(true, nil)

	available, err := svc.CheckUsernameAvailable(context.Background(), "trailrunner")
	require.NoError(t, err)
	assert.True(t, available)
	assert.False(t, svc.SecondaryEnabled())
}

func TestCheckUsernameAvailable_PrimaryError(t *testing.T) {
	primary := new(MockProfileStore)
	svc := newTestService(primary, nil, nil)

	primary.On("IsUsernameAvailable", mock.Anything, "trailrunner").Return(false, fmt.Errorf("rpc: %w", store.ErrUnavailable))

	_, err := svc.CheckUsernameAvailable(context.Background(), "trailrunner")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.UpstreamError))
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestGetProfile_SecondaryHit(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	reg := prometheus.NewRegistry()
	m := metrics.NewProfileMetrics(reg)
	svc := newTestService(primary, secondary, m)

	want := sampleProfile("user-1")
	secondary.On("GetProfile", mock.Anything, "user-1").Return(want, nil)

	got, err := svc.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	primary.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
	svc.WaitForBackfills()
	secondary.AssertNotCalled(t, "CreateProfile", mock.Anything, mock.Anything)
}

func TestGetProfile_AbsentInBoth(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)

	secondary.On("GetProfile", mock.Anything, "user-1").Return(nil, store.ErrNotFound)
	primary.On("GetProfile", mock.Anything, "user-1").Return(nil, store.ErrNotFound)

	got, err := svc.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	svc.WaitForBackfills()
	secondary.AssertNotCalled(t, "CreateProfile", mock.Anything, mock.Anything)
	primary.AssertNotCalled(t, "CreateProfile", mock.Anything, mock.Anything)
}

func TestGetProfile_PrimaryOnlyBackfillsOnce(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	reg := prometheus.NewRegistry()
	m := metrics.NewProfileMetrics(reg)
	svc := newTestService(primary, secondary, m)

	want := sampleProfile("user-1")
	secondary.On("GetProfile", mock.Anything, "user-1").Return(nil, store.ErrNotFound)
	primary.On("GetProfile", mock.Anything, "user-1").Return(want, nil)
	secondary.On("CreateProfile", mock.Anything, mock.MatchedBy(func(p *types.UserProfile) bool {
		return p.ID == want.ID && p.UserID == "user-1" && p.Username == want.Username
	})).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	got, err := svc.GetProfile(ctx, "user-1")
	// The backfill must survive the end of the request.
	cancel()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	svc.WaitForBackfills()
	secondary.AssertNumberOfCalls(t, "CreateProfile", 1)
	createCtx := secondary.Calls[len(secondary.Calls)-1].Arguments.Get(0).(context.Context)
	_, hasDeadline := createCtx.Deadline()
	assert.True(t, hasDeadline)
	assert.Equal(t, 1.0, counterValue(t, reg, "profile_backfills_total", map[string]string{"result": "success"}))
}

func TestGetProfile_BackfillFailureIsSwallowed(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	reg := prometheus.NewRegistry()
	svc := newTestService(primary, secondary, metrics.NewProfileMetrics(reg))

	want := sampleProfile("user-1")
	secondary.On("GetProfile", mock.Anything, "user-1").Return(nil, store.ErrNotFound)
	primary.On("GetProfile", mock.Anything, "user-1").Return(want, nil)
	secondary.On("CreateProfile", mock.Anything, mock.Anything).Return(store.ErrUnavailable).Once()

	got, err := svc.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	svc.WaitForBackfills()
	assert.Equal(t, 1.0, counterValue(t, reg, "profile_backfills_total", map[string]string{"result": "failure"}))
}

func TestGetProfile_SecondaryUnreachablePrimaryAbsent(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)

	secondary.On("GetProfile", mock.Anything, "user-1").Return(nil, fmt.Errorf("d1: %w", store.ErrUnavailable))
	primary.On("GetProfile", mock.Anything, "user-1").Return(nil, store.ErrNotFound)

	got, err := svc.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	svc.WaitForBackfills()
	secondary.AssertNotCalled(t, "CreateProfile", mock.Anything, mock.Anything)
}

func TestGetProfile_PrimaryErrorReturned(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)

	secondary.On("GetProfile", mock.Anything, "user-1").Return(nil, store.ErrNotFound)
	primary.On("GetProfile", mock.Anything, "user-1").Return(nil, store.ErrUnavailable)

	got, err := svc.GetProfile(context.Background(), "user-1")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.UpstreamError))
}

func TestGetProfile_SecondaryDisabledNoBackfill(t *testing.T) {
	primary := new(MockProfileStore)
	svc := newTestService(primary, nil, nil)

	primary.On("GetProfile", mock.Anything, "user-1").Return(sampleProfile("user-1"), nil)

	got, err := svc.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	svc.WaitForBackfills()
	primary.AssertNumberOfCalls(t, "GetProfile", 1)
}

func TestHasCompletedOnboarding(t *testing.T) {
	t.Run("profile present", func(t *testing.T) {
		primary := new(MockProfileStore)
		svc := newTestService(primary, nil, nil)
		primary.On("GetProfile", mock.Anything, "user-1").Return(sampleProfile("user-1"), nil)
		assert.True(t, svc.HasCompletedOnboarding(context.Background(), "user-1"))
	})

	t.Run("profile absent", func(t *testing.T) {
		primary := new(MockProfileStore)
		svc := newTestService(primary, nil, nil)
		primary.On("GetProfile", mock.Anything, "user-1").Return(nil, store.ErrNotFound)
		assert.False(t, svc.HasCompletedOnboarding(context.Background(), "user-1"))
	})

	t.Run("store error", func(t *testing.T) {
		primary := new(MockProfileStore)
		svc := newTestService(primary, nil, nil)
		primary.On("GetProfile", mock.Anything, "user-1").Return(nil, errors.New("connection reset"))
		assert.False(t, svc.HasCompletedOnboarding(context.Background(), "user-1"))
	})

	t.Run("no user", func(t *testing.T) {
		primary := new(MockProfileStore)
		svc := newTestService(primary, nil, nil)
		assert.False(t, svc.HasCompletedOnboarding(context.Background(), ""))
		primary.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
	})
}

func TestOnboardingStatus(t *testing.T) {
	primary := new(MockProfileStore)
	svc := newTestService(primary, nil, nil)
	primary.On("GetProfile", mock.Anything, "user-1").Return(sampleProfile("user-1"), nil)
	primary.On("GetProfile", mock.Anything, "user-2").Return(nil, store.ErrNotFound)
	primary.On("GetProfile", mock.Anything, "user-3").Return(nil, errors.New("connection reset"))

	done, err := svc.OnboardingStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = svc.OnboardingStatus(context.Background(), "user-2")
	require.NoError(t, err)
	assert.False(t, done)

	_, err = svc.OnboardingStatus(context.Background(), "user-3")
	assert.Error(t, err)
}

func onboardingInput() types.CreateProfileInput {
	age := 31
	gender := types.GenderNonBinary
	return types.CreateProfileInput{
		Username:    "trailrunner",
		DisplayName: "Trail Runner",
		Age:         &age,
		Gender:      &gender,
	}
}

func expectFreshUser(primary, secondary *MockProfileStore, userID, username string) {
	secondary.On("GetProfile", mock.Anything, userID).Return(nil, store.ErrNotFound)
	primary.On("GetProfile", mock.Anything, userID).Return(nil, store.ErrNotFound)
	secondary.On("IsUsernameAvailable", mock.Anything, username).Return(true, nil)
	primary.On("IsUsernameAvailable", mock.Anything, username).Return(true, nil)
}

func TestCreateProfile_WritesBothStores(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	reg := prometheus.NewRegistry()
	svc := newTestService(primary, secondary, metrics.NewProfileMetrics(reg))
	expectFreshUser(primary, secondary, "user-1", "trailrunner")

	var secondaryRow, primaryRow *types.UserProfile
	secondary.On("CreateProfile", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		secondaryRow = args.Get(1).(*types.UserProfile)
	}).Return(nil)
	primary.On("CreateProfile", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		primaryRow = args.Get(1).(*types.UserProfile)
	}).Return(nil)

	result, err := svc.CreateProfile(context.Background(), "user-1", onboardingInput())
	require.NoError(t, err)
	assert.Empty(t, result.Warning)

	require.NotNil(t, secondaryRow)
	require.NotNil(t, primaryRow)
	assert.Equal(t, secondaryRow.ID, primaryRow.ID)
	assert.Equal(t, "3f1c1f0e-8a9e-4c8b-9d1e-0c6a7f2b4d11", result.Profile.ID)
	assert.Equal(t, fixedNow, result.Profile.CreatedAt)
	assert.Equal(t, result.Profile.CreatedAt, result.Profile.UpdatedAt)
	assert.Equal(t, "user-1", result.Profile.UserID)
	assert.Equal(t, 1.0, counterValue(t, reg, "profile_dual_writes_total", map[string]string{"operation": "create", "outcome": metrics.OutcomeBoth}))
}

func TestCreateProfile_RequiresUser(t *testing.T) {
	svc := newTestService(new(MockProfileStore), nil, nil)

	_, err := svc.CreateProfile(context.Background(), "", onboardingInput())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.AuthError))
}

func TestCreateProfile_AlreadyCompleted(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)

	secondary.On("GetProfile", mock.Anything, "user-1").Return(sampleProfile("user-1"), nil)

	_, err := svc.CreateProfile(context.Background(), "user-1", onboardingInput())
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ConflictError, appErr.Type)
	assert.Contains(t, appErr.Message, "already completed")
	primary.AssertNotCalled(t, "CreateProfile", mock.Anything, mock.Anything)
	secondary.AssertNotCalled(t, "CreateProfile", mock.Anything, mock.Anything)
}

func TestCreateProfile_UsernameTaken(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)

	secondary.On("GetProfile", mock.Anything, "user-1").Return(nil, store.ErrNotFound)
	primary.On("GetProfile", mock.Anything, "user-1").Return(nil, store.ErrNotFound)
	secondary.On("IsUsernameAvailable", mock.Anything, "trailrunner").Return(false, nil)

	_, err := svc.CreateProfile(context.Background(), "user-1", onboardingInput())
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ValidationError, appErr.Type)
	assert.Equal(t, "Username is already taken", appErr.Message)
}

func TestCreateProfile_SecondaryOnlyWarning(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	reg := prometheus.NewRegistry()
	svc := newTestService(primary, secondary, metrics.NewProfileMetrics(reg))
	expectFreshUser(primary, secondary, "user-1", "trailrunner")

	secondary.On("CreateProfile", mock.Anything, mock.Anything).Return(nil)
	primary.On("CreateProfile", mock.Anything, mock.Anything).Return(fmt.Errorf("insert: %w", store.ErrUnavailable))

	result, err := svc.CreateProfile(context.Background(), "user-1", onboardingInput())
	require.NoError(t, err)
	assert.Equal(t, "Profile created in D1 only, Supabase sync failed", result.Warning)
	assert.Equal(t, "trailrunner", result.Profile.Username)
	assert.Equal(t, 1.0, counterValue(t, reg, "profile_dual_writes_total", map[string]string{"operation": "create", "outcome": metrics.OutcomeSecondaryOnly}))
}

func TestCreateProfile_PrimaryOnlySucceedsWithoutWarning(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)
	expectFreshUser(primary, secondary, "user-1", "trailrunner")

	secondary.On("CreateProfile", mock.Anything, mock.Anything).Return(store.ErrUnavailable)
	primary.On("CreateProfile", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.CreateProfile(context.Background(), "user-1", onboardingInput())
	require.NoError(t, err)
	assert.Empty(t, result.Warning)
}

func TestCreateProfile_BothFail(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)
	expectFreshUser(primary, secondary, "user-1", "trailrunner")

	secondaryErr := errors.New("d1 timeout")
	primaryErr := errors.New("pg timeout")
	secondary.On("CreateProfile", mock.Anything, mock.Anything).Return(secondaryErr)
	primary.On("CreateProfile", mock.Anything, mock.Anything).Return(primaryErr)

	_, err := svc.CreateProfile(context.Background(), "user-1", onboardingInput())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.UpstreamError))
	assert.ErrorIs(t, err, primaryErr)
	assert.ErrorIs(t, err, secondaryErr)
}

func TestCreateProfile_PrimaryUniqueViolation(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{
			name:    "username index",
			err:     fmt.Errorf("%w: user_profiles_username_key", store.ErrConflict),
			message: "Username is already taken",
		},
		{
			name:    "user id index",
			err:     fmt.Errorf("%w: user_profiles_user_id_key", store.ErrConflict),
			message: "Onboarding already completed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary, secondary := new(MockProfileStore), new(MockProfileStore)
			svc := newTestService(primary, secondary, nil)
			expectFreshUser(primary, secondary, "user-1", "trailrunner")

			secondary.On("CreateProfile", mock.Anything, mock.Anything).Return(nil)
			primary.On("CreateProfile", mock.Anything, mock.Anything).Return(tt.err)
			secondary.On("DeleteProfile", mock.Anything, testProfileID).Return(nil).Once()

			_, err := svc.CreateProfile(context.Background(), "user-1", onboardingInput())
			require.Error(t, err)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.ConflictError, appErr.Type)
			assert.Equal(t, tt.message, appErr.Message)
			secondary.AssertExpectations(t)
		})
	}
}

func TestCreateProfile_RejectedRowRemovedEvenIfCleanupFails(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)
	expectFreshUser(primary, secondary, "user-1", "trailrunner")

	secondary.On("CreateProfile", mock.Anything, mock.Anything).Return(nil)
	primary.On("CreateProfile", mock.Anything, mock.Anything).
		Return(fmt.Errorf("%w: user_profiles_user_id_key", store.ErrConflict))
	secondary.On("DeleteProfile", mock.Anything, testProfileID).Return(errors.New("d1 down")).Once()

	_, err := svc.CreateProfile(context.Background(), "user-1", onboardingInput())
	assert.True(t, apperrors.IsType(err, apperrors.ConflictError))
	secondary.AssertExpectations(t)
}

func TestCreateProfile_NonFatalPrimaryFailureKeepsSecondaryRow(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)
	expectFreshUser(primary, secondary, "user-1", "trailrunner")

	secondary.On("CreateProfile", mock.Anything, mock.Anything).Return(nil)
	primary.On("CreateProfile", mock.Anything, mock.Anything).Return(store.ErrUnavailable)

	result, err := svc.CreateProfile(context.Background(), "user-1", onboardingInput())
	require.NoError(t, err)
	assert.Equal(t, WarningCreatedSecondaryOnly, result.Warning)
	secondary.AssertNotCalled(t, "DeleteProfile", mock.Anything, mock.Anything)
}

func TestUpdateProfile_NeverChangesUsername(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)

	existing := sampleProfile("user-1")
	update := types.ProfileUpdate{DisplayName: "New Name"}

	updated := *existing
	updated.DisplayName = "New Name"
	updated.Age = nil
	updated.UpdatedAt = fixedNow

	secondary.On("UpdateProfile", mock.Anything, "user-1", update, fixedNow).Return(&updated, nil)
	primary.On("UpdateProfile", mock.Anything, "user-1", update, fixedNow).Return(&updated, nil)

	result, err := svc.UpdateProfile(context.Background(), "user-1", update)
	require.NoError(t, err)
	assert.Empty(t, result.Warning)
	assert.Equal(t, existing.Username, result.Profile.Username)
	assert.Equal(t, "New Name", result.Profile.DisplayName)
	assert.Nil(t, result.Profile.Age)
}

func TestUpdateProfile_SecondaryOnlyWarning(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)

	update := types.ProfileUpdate{DisplayName: "New Name"}
	secondaryRow := sampleProfile("user-1")
	secondaryRow.DisplayName = "New Name"

	secondary.On("UpdateProfile", mock.Anything, "user-1", update, fixedNow).Return(secondaryRow, nil)
	primary.On("UpdateProfile", mock.Anything, "user-1", update, fixedNow).Return(nil, store.ErrUnavailable)

	result, err := svc.UpdateProfile(context.Background(), "user-1", update)
	require.NoError(t, err)
	assert.Equal(t, "Profile updated in D1 only, Supabase sync failed", result.Warning)
	assert.Same(t, secondaryRow, result.Profile)
}

func TestUpdateProfile_NotFoundInEither(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)

	update := types.ProfileUpdate{DisplayName: "New Name"}
	secondary.On("UpdateProfile", mock.Anything, "user-1", update, fixedNow).Return(nil, store.ErrNotFound)
	primary.On("UpdateProfile", mock.Anything, "user-1", update, fixedNow).Return(nil, store.ErrNotFound)

	_, err := svc.UpdateProfile(context.Background(), "user-1", update)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.NotFoundError))
}

func TestUpdateProfile_SecondaryDisabledNotFound(t *testing.T) {
	primary := new(MockProfileStore)
	svc := newTestService(primary, nil, nil)

	update := types.ProfileUpdate{DisplayName: "New Name"}
	primary.On("UpdateProfile", mock.Anything, "user-1", update, fixedNow).Return(nil, store.ErrNotFound)

	_, err := svc.UpdateProfile(context.Background(), "user-1", update)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.NotFoundError))
}

func TestUpdateProfile_BothFail(t *testing.T) {
	primary, secondary := new(MockProfileStore), new(MockProfileStore)
	svc := newTestService(primary, secondary, nil)

	update := types.ProfileUpdate{DisplayName: "New Name"}
	secondary.On("UpdateProfile", mock.Anything, "user-1", update, fixedNow).Return(nil, store.ErrUnavailable)
	primary.On("UpdateProfile", mock.Anything, "user-1", update, fixedNow).Return(nil, store.ErrNotFound)

	_, err := svc.UpdateProfile(context.Background(), "user-1", update)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.UpstreamError))
}

// counterValue returns the value of the counter series matching labels, or 0.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue series
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
