package handlers

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/middleware"
	"github.com/opendots/opendots-backend/services"
	"github.com/opendots/opendots-backend/types"
	"github.com/stretchr/testify/mock"
)

func init() {
	logger.IsTest = true
	gin.SetMode(gin.TestMode)
	RegisterValidators()
}

// MockProfileService is the canonical profile service mock for handler tests.
type MockProfileService struct {
	mock.Mock
}

var _ ProfileServiceInterface = (*MockProfileService)(nil)

func (m *MockProfileService) CheckUsernameAvailable(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockProfileService) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserProfile), args.Error(1)
}

func (m *MockProfileService) HasCompletedOnboarding(ctx context.Context, userID string) bool {
	return m.Called(ctx, userID).Bool(0)
}

func (m *MockProfileService) CreateProfile(ctx context.Context, userID string, input types.CreateProfileInput) (*types.ProfileResult, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ProfileResult), args.Error(1)
}

func (m *MockProfileService) UpdateProfile(ctx context.Context, userID string, update types.ProfileUpdate) (*types.ProfileResult, error) {
	args := m.Called(ctx, userID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ProfileResult), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

var _ AuthServiceInterface = (*MockAuthService)(nil)

func (m *MockAuthService) SignInURL(provider, redirectTo string) (*types.OAuthStart, error) {
	args := m.Called(provider, redirectTo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.OAuthStart), args.Error(1)
}

func (m *MockAuthService) ExchangeCode(ctx context.Context, code, verifier string) (*types.Session, error) {
	args := m.Called(ctx, code, verifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Session), args.Error(1)
}

func (m *MockAuthService) RefreshSession(ctx context.Context, refreshToken string) (*types.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Session), args.Error(1)
}

func (m *MockAuthService) RecordSignIn(ctx context.Context, session *types.Session, meta types.SignInMetadata) {
	m.Called(ctx, session, meta)
}

func (m *MockAuthService) SignOut(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

type MockImageStore struct {
	mock.Mock
}

var _ ImageStoreInterface = (*MockImageStore)(nil)

func (m *MockImageStore) Upload(ctx context.Context, userID, filename, contentType string, body io.Reader, size int64) (*types.UploadResult, error) {
	// Drain the body so tests can assert on what was streamed.
	data, _ := io.ReadAll(body)
	args := m.Called(ctx, userID, filename, contentType, data, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UploadResult), args.Error(1)
}

func (m *MockImageStore) Get(ctx context.Context, key string) (*services.Image, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Image), args.Error(1)
}

// newTestRouter mounts the error handler and, when userID is set, marks the
// request as authenticated the way the session middleware does.
func newTestRouter(userID string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	if userID != "" {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.UserIDKey, userID)
			c.Set(middleware.AccessTokenKey, "access-"+userID)
			c.Next()
		})
	}
	return r
}
