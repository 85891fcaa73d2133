package softdelete_test

import (
	"context"
	"time"

	softdelete "github.com/goliatone/go-auth-softdelete"
	"github.com/stretchr/testify/mock"
)

// MockSessionRevoker implements softdelete.SessionRevoker
type MockSessionRevoker struct {
	mock.Mock
}

func (m *MockSessionRevoker) RevokeUserSessions(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockUserStatusStore implements softdelete.UserStatusStore
type MockUserStatusStore struct {
	mock.Mock
}

func (m *MockUserStatusStore) UpdateStatus(ctx context.Context, userID string, status softdelete.UserStatus, deletedAt *time.Time) error {
	args := m.Called(ctx, userID, status, deletedAt)
	return args.Error(0)
}

// MockAdapter implements softdelete.Adapter
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) FindOne(ctx context.Context, model string, where []softdelete.Where, dest any) error {
	args := m.Called(ctx, model, where, dest)
	return args.Error(0)
}

func (m *MockAdapter) Update(ctx context.Context, model string, where []softdelete.Where, values map[string]any) error {
	args := m.Called(ctx, model, where, values)
	return args.Error(0)
}

func (m *MockAdapter) Create(ctx context.Context, model string, record any) error {
	args := m.Called(ctx, model, record)
	return args.Error(0)
}

func (m *MockAdapter) Delete(ctx context.Context, model string, where []softdelete.Where) error {
	args := m.Called(ctx, model, where)
	return args.Error(0)
}

// MockRateLimiter implements softdelete.RestoreRateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, req softdelete.RateLimitRequest) (softdelete.RateLimitDecision, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(softdelete.RateLimitDecision), args.Error(1)
}

// MockResettingRateLimiter implements softdelete.RestoreRateLimitResetter
type MockResettingRateLimiter struct {
	MockRateLimiter
}

func (m *MockResettingRateLimiter) Reset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}
