package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/oauth2"

	"github.com/aromapulse/authgate/src/models"
)

// MockAccountStore implements models.AccountStore
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) FindOrCreateByProviderIdentity(ctx context.Context, provider models.Provider, providerUserID string, profile *models.Profile) (*models.User, error) {
	args := m.Called(ctx, provider, providerUserID, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountStore) CreateWithPassword(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	args := m.Called(ctx, email, name, passwordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockAuditSink implements models.AuditSink
type MockAuditSink struct {
	mock.Mock
}

func (m *MockAuditSink) Write(ctx context.Context, event *models.LoginEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockLoginLogStore implements models.LoginLogStore
type MockLoginLogStore struct {
	mock.Mock
}

func (m *MockLoginLogStore) List(ctx context.Context, filter models.LoginLogFilter) ([]models.LoginLog, int64, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]models.LoginLog)
	return logs, args.Get(1).(int64), args.Error(2)
}

func (m *MockLoginLogStore) Stats(ctx context.Context, since time.Time) (*models.LoginStats, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoginStats), args.Error(1)
}

func (m *MockLoginLogStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockProvider implements oauth.Provider
type MockProvider struct {
	mock.Mock
	ProviderName models.Provider
}

func (m *MockProvider) Name() models.Provider {
	return m.ProviderName
}

func (m *MockProvider) AuthorizationURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockProvider) Exchange(ctx context.Context, code, state string) (*oauth2.Token, error) {
	args := m.Called(ctx, code, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth2.Token), args.Error(1)
}

func (m *MockProvider) FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}
