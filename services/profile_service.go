package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/opendots/opendots-backend/errors"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/metrics"
	"github.com/opendots/opendots-backend/store"
	"github.com/opendots/opendots-backend/types"
)

const (
	// DefaultBackfillTimeout bounds the asynchronous copy into the secondary store.
	DefaultBackfillTimeout = 5 * time.Second

	WarningCreatedSecondaryOnly = "Profile created in D1 only, Supabase sync failed"
	WarningUpdatedSecondaryOnly = "Profile updated in D1 only, Supabase sync failed"
)

// ProfileService keeps user profiles in the primary store and, when
// configured, mirrors them into the secondary store. The primary is
// authoritative; the secondary is a cache that is backfilled on reads and
// written first on writes.
type ProfileService struct {
	primary         store.ProfileStore
	secondary       store.ProfileStore
	metrics         *metrics.ProfileMetrics
	backfillTimeout time.Duration
	now             func() time.Time
	newID           func() string

	backfills sync.WaitGroup
}

// ProfileServiceOption customizes a ProfileService.
type ProfileServiceOption func(*ProfileService)

// WithSecondaryStore enables the secondary store. A nil store leaves it disabled.
func WithSecondaryStore(s store.ProfileStore) ProfileServiceOption {
	return func(ps *ProfileService) { ps.secondary = s }
}

func WithProfileMetrics(m *metrics.ProfileMetrics) ProfileServiceOption {
	return func(ps *ProfileService) { ps.metrics = m }
}

func WithBackfillTimeout(d time.Duration) ProfileServiceOption {
	return func(ps *ProfileService) { ps.backfillTimeout = d }
}

func withClock(now func() time.Time) ProfileServiceOption {
	return func(ps *ProfileService) { ps.now = now }
}

func withIDGenerator(gen func() string) ProfileServiceOption {
	return func(ps *ProfileService) { ps.newID = gen }
}

// NewProfileService creates the reconciliation layer over primary.
func NewProfileService(primary store.ProfileStore, opts ...ProfileServiceOption) *ProfileService {
	s := &ProfileService{
		primary:         primary,
		backfillTimeout: DefaultBackfillTimeout,
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SecondaryEnabled reports whether a secondary store is configured.
func (s *ProfileService) SecondaryEnabled() bool {
	return s.secondary != nil
}

// WaitForBackfills blocks until in-flight backfills finish. Used on shutdown.
func (s *ProfileService) WaitForBackfills() {
	s.backfills.Wait()
}

// CheckUsernameAvailable asks the secondary first; a username taken there is
// final. Otherwise the primary decides.
func (s *ProfileService) CheckUsernameAvailable(ctx context.Context, username string) (bool, error) {
	log := logger.GetLogger()

	plan := readPlan[bool]{
		primary: func(ctx context.Context) (bool, bool, error) {
			defer s.metrics.Timer(metrics.StorePrimary, "username_available")()
			available, err := s.primary.IsUsernameAvailable(ctx, username)
			if err != nil {
				s.metrics.ObserveRead(metrics.StorePrimary, metrics.ResultError)
				return false, false, err
			}
			return available, true, nil
		},
		onSecondaryError: func(err error) {
			s.metrics.ObserveRead(metrics.StoreSecondary, metrics.ResultError)
			log.Warnw("Secondary store username check failed, using primary", "username", username, "error", err)
		},
	}
	if s.secondary != nil {
		plan.secondary = func(ctx context.Context) (bool, bool, error) {
			defer s.metrics.Timer(metrics.StoreSecondary, "username_available")()
			available, err := s.secondary.IsUsernameAvailable(ctx, username)
			if err != nil {
				return false, false, err
			}
			if !available {
				s.metrics.ObserveRead(metrics.StoreSecondary, metrics.ResultHit)
				return false, true, nil
			}
			s.metrics.ObserveRead(metrics.StoreSecondary, metrics.ResultMiss)
			return true, false, nil
		}
	}

	available, _, err := readThrough(ctx, plan)
	if err != nil {
		log.Errorw("Failed to check username availability", "username", username, "error", err)
		return false, apperrors.Upstream(err, "Failed to check username availability")
	}
	return available, nil
}

// GetProfile returns the user's profile or nil when neither store has one.
// A profile found only in the primary is copied into the secondary in the
// background.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	log := logger.GetLogger()

	plan := readPlan[*types.UserProfile]{
		primary: func(ctx context.Context) (*types.UserProfile, bool, error) {
			defer s.metrics.Timer(metrics.StorePrimary, "get")()
			p, err := s.primary.GetProfile(ctx, userID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				s.metrics.ObserveRead(metrics.StorePrimary, metrics.ResultMiss)
				return nil, false, nil
			case err != nil:
				s.metrics.ObserveRead(metrics.StorePrimary, metrics.ResultError)
				return nil, false, err
			}
			s.metrics.ObserveRead(metrics.StorePrimary, metrics.ResultHit)
			return p, true, nil
		},
		backfill: func(p *types.UserProfile) {
			s.backfill(ctx, p)
		},
		onSecondaryError: func(err error) {
			s.metrics.ObserveRead(metrics.StoreSecondary, metrics.ResultError)
			log.Warnw("Secondary store profile lookup failed, using primary", "user_id", userID, "error", err)
		},
	}
	if s.secondary != nil {
		plan.secondary = func(ctx context.Context) (*types.UserProfile, bool, error) {
			defer s.metrics.Timer(metrics.StoreSecondary, "get")()
			p, err := s.secondary.GetProfile(ctx, userID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				s.metrics.ObserveRead(metrics.StoreSecondary, metrics.ResultMiss)
				return nil, false, nil
			case err != nil:
				return nil, false, err
			}
			s.metrics.ObserveRead(metrics.StoreSecondary, metrics.ResultHit)
			return p, true, nil
		}
	}

	p, found, err := readThrough(ctx, plan)
	if err != nil {
		log.Errorw("Failed to load profile", "user_id", userID, "error", err)
		return nil, apperrors.Upstream(err, "Failed to load profile")
	}
	if !found {
		return nil, nil
	}
	return p, nil
}

// backfill copies p into the secondary store without blocking the caller.
// The copy outlives the request but not the backfill timeout.
func (s *ProfileService) backfill(ctx context.Context, p *types.UserProfile) {
	copied := *p
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.backfillTimeout)

	s.backfills.Add(1)
	go func() {
		defer s.backfills.Done()
		defer cancel()

		log := logger.GetLogger()
		if err := s.secondary.CreateProfile(bctx, &copied); err != nil {
			s.metrics.ObserveBackfill(false)
			log.Warnw("Failed to backfill profile into secondary store", "user_id", copied.UserID, "error", err)
			return
		}
		s.metrics.ObserveBackfill(true)
		log.Debugw("Backfilled profile into secondary store", "user_id", copied.UserID)
	}()
}

// HasCompletedOnboarding reports whether the user has a profile. Lookup
// errors are logged and treated as not onboarded.
func (s *ProfileService) HasCompletedOnboarding(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		logger.GetLogger().Warnw("Onboarding check failed, treating as not onboarded", "user_id", userID, "error", err)
		return false
	}
	return p != nil
}

// OnboardingStatus is HasCompletedOnboarding with the lookup error surfaced,
// for callers that must tell "no profile" apart from "stores unreachable".
func (s *ProfileService) OnboardingStatus(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// CreateProfile completes onboarding for userID. Both stores receive the same
// id and timestamps.
func (s *ProfileService) CreateProfile(ctx context.Context, userID string, input types.CreateProfileInput) (*types.ProfileResult, error) {
	log := logger.GetLogger()

	if userID == "" {
		return nil, apperrors.AuthenticationFailed("User not authenticated")
	}

	existing, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("Onboarding already completed", "")
	}

	available, err := s.CheckUsernameAvailable(ctx, input.Username)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, apperrors.ValidationFailed("Username is already taken", "username")
	}

	now := s.now().UTC()
	profile := &types.UserProfile{
		ID:          s.newID(),
		UserID:      userID,
		Username:    input.Username,
		DisplayName: input.DisplayName,
		Age:         input.Age,
		Gender:      input.Gender,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	plan := writePlan[*types.UserProfile]{
		primary: func(ctx context.Context) (*types.UserProfile, error) {
			defer s.metrics.Timer(metrics.StorePrimary, "create")()
			if err := s.primary.CreateProfile(ctx, profile); err != nil {
				return nil, err
			}
			return profile, nil
		},
		fallback: func(*types.UserProfile) *types.UserProfile { return profile },
		fatal: func(err error) bool {
			return errors.Is(err, store.ErrConflict)
		},
	}
	if s.secondary != nil {
		plan.secondary = func(ctx context.Context) (*types.UserProfile, error) {
			defer s.metrics.Timer(metrics.StoreSecondary, "create")()
			if err := s.secondary.CreateProfile(ctx, profile); err != nil {
				log.Warnw("Secondary store create failed", "user_id", userID, "error", err)
				return nil, err
			}
			return profile, nil
		}
		// A row the primary refused must not make the user look onboarded.
		if deleter, ok := s.secondary.(store.ProfileDeleter); ok {
			plan.undoSecondary = func(ctx context.Context, p *types.UserProfile) {
				if err := deleter.DeleteProfile(ctx, p.ID); err != nil {
					log.Errorw("Failed to remove secondary profile rejected by primary",
						"user_id", userID, "profile_id", p.ID, "error", err)
				}
			}
		}
	}

	created, outcome, err := dualWrite(ctx, plan)
	s.metrics.ObserveWrite("create", outcomeLabel(outcome))
	if err != nil {
		if primaryErrorIs(err, store.ErrConflict) {
			log.Infow("Profile create rejected by unique constraint", "user_id", userID, "error", err)
			if strings.Contains(primaryError(err).Error(), "username") {
				return nil, apperrors.Conflict("Username is already taken", "")
			}
			return nil, apperrors.Conflict("Onboarding already completed", "")
		}
		log.Errorw("Failed to create profile", "user_id", userID, "error", err)
		return nil, apperrors.Upstream(err, "Failed to create profile")
	}

	result := &types.ProfileResult{Profile: created}
	if outcome == wroteSecondaryOnly {
		log.Warnw("Profile created in secondary store only", "user_id", userID)
		result.Warning = WarningCreatedSecondaryOnly
	}
	log.Infow("Profile created", "user_id", userID, "profile_id", created.ID, "outcome", outcomeLabel(outcome))
	return result, nil
}

// UpdateProfile changes the mutable profile fields. The username is never
// part of an update.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, update types.ProfileUpdate) (*types.ProfileResult, error) {
	log := logger.GetLogger()

	if userID == "" {
		return nil, apperrors.AuthenticationFailed("User not authenticated")
	}

	now := s.now().UTC()
	plan := writePlan[*types.UserProfile]{
		primary: func(ctx context.Context) (*types.UserProfile, error) {
			defer s.metrics.Timer(metrics.StorePrimary, "update")()
			return s.primary.UpdateProfile(ctx, userID, update, now)
		},
		fallback: func(secondaryRow *types.UserProfile) *types.UserProfile { return secondaryRow },
	}
	if s.secondary != nil {
		plan.secondary = func(ctx context.Context) (*types.UserProfile, error) {
			defer s.metrics.Timer(metrics.StoreSecondary, "update")()
			p, err := s.secondary.UpdateProfile(ctx, userID, update, now)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				log.Warnw("Secondary store update failed", "user_id", userID, "error", err)
			}
			return p, err
		}
	}

	updated, outcome, err := dualWrite(ctx, plan)
	s.metrics.ObserveWrite("update", outcomeLabel(outcome))
	if err != nil {
		if primaryErrorIs(err, store.ErrNotFound) {
			var dw *DualWriteError
			if !errors.As(err, &dw) || dw.Secondary == nil || errors.Is(dw.Secondary, store.ErrNotFound) {
				return nil, apperrors.NotFound("profile", userID)
			}
		}
		log.Errorw("Failed to update profile", "user_id", userID, "error", err)
		return nil, apperrors.Upstream(err, "Failed to update profile")
	}

	result := &types.ProfileResult{Profile: updated}
	if outcome == wroteSecondaryOnly {
		log.Warnw("Profile updated in secondary store only", "user_id", userID)
		result.Warning = WarningUpdatedSecondaryOnly
	}
	return result, nil
}

func outcomeLabel(o writeOutcome) string {
	switch o {
	case wroteBoth:
		return metrics.OutcomeBoth
	case wrotePrimaryOnly:
		return metrics.OutcomePrimaryOnly
	case wroteSecondaryOnly:
		return metrics.OutcomeSecondaryOnly
	default:
		return metrics.OutcomeFailed
	}
}
