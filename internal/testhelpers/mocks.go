package testhelpers

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/quecocinohoy/backend/internal/gateway"
	"github.com/quecocinohoy/backend/internal/model"
	"github.com/quecocinohoy/backend/internal/types"
)

// MockPaymentGateway is a mock of the payment processor client
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreatePreapproval(ctx context.Context, in gateway.CreatePreapprovalRequest) (*gateway.Preapproval, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Preapproval), args.Error(1)
}

func (m *MockPaymentGateway) GetPreapproval(ctx context.Context, id string) (*gateway.Preapproval, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Preapproval), args.Error(1)
}

func (m *MockPaymentGateway) CancelPreapproval(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockRecipeTextGenerator returns canned model output
type MockRecipeTextGenerator struct {
	mock.Mock
}

func (m *MockRecipeTextGenerator) GenerateRecipeText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}

// MockImageGenerator is a mock of the image service
type MockImageGenerator struct {
	mock.Mock
}

func (m *MockImageGenerator) GenerateRecipeImage(ctx context.Context, userID uuid.UUID, recipe *model.Recipe) (string, error) {
	args := m.Called(ctx, userID, recipe)
	return args.String(0), args.Error(1)
}

func (m *MockImageGenerator) GenerateImageDataURI(ctx context.Context, title string) (string, error) {
	args := m.Called(ctx, title)
	return args.String(0), args.Error(1)
}

// MockQuotaLimiter is a mock of the generation quota limiter
type MockQuotaLimiter struct {
	mock.Mock
}

func (m *MockQuotaLimiter) Allow(ctx context.Context, key string, limit int) (types.QuotaStatus, error) {
	args := m.Called(ctx, key, limit)
	return args.Get(0).(types.QuotaStatus), args.Error(1)
}

func (m *MockQuotaLimiter) Release(ctx context.Context, key string, charged types.QuotaStatus) error {
	args := m.Called(ctx, key, charged)
	return args.Error(0)
}

// StaticEntitlements answers IsPremium from a fixed set of users.
type StaticEntitlements map[uuid.UUID]bool

func (s StaticEntitlements) IsPremium(_ context.Context, userID uuid.UUID) (bool, error) {
	return s[userID], nil
}
