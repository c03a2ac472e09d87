package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/quecocinohoy/backend/internal/gateway"
	"github.com/quecocinohoy/backend/internal/model"
	"github.com/quecocinohoy/backend/internal/types"
)

// PaymentGateway is the subset of the payment processor API the subscription
// flow uses.
type PaymentGateway interface {
	CreatePreapproval(ctx context.Context, in gateway.CreatePreapprovalRequest) (*gateway.Preapproval, error)
	GetPreapproval(ctx context.Context, id string) (*gateway.Preapproval, error)
	CancelPreapproval(ctx context.Context, id string) error
}

// RecipeTextGenerator produces the raw text of one recipe.
type RecipeTextGenerator interface {
	GenerateRecipeText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// RecipeImageGenerator renders recipe pictures.
type RecipeImageGenerator interface {
	GenerateRecipeImage(ctx context.Context, userID uuid.UUID, recipe *model.Recipe) (string, error)
	GenerateImageDataURI(ctx context.Context, title string) (string, error)
}

// EntitlementReader answers whether a user is premium on the server side.
type EntitlementReader interface {
	IsPremium(ctx context.Context, userID uuid.UUID) (bool, error)
}

// QuotaLimiter counts generations per user in fixed windows. Release gives
// back a generation that Allow charged but that did not produce a recipe.
type QuotaLimiter interface {
	Allow(ctx context.Context, key string, limit int) (types.QuotaStatus, error)
	Release(ctx context.Context, key string, charged types.QuotaStatus) error
}

// HistoryRecorder stores the ingredients behind a generated recipe.
type HistoryRecorder interface {
	Record(ctx context.Context, userID uuid.UUID, ingredients []string, recipe *model.Recipe) error
}

// TokenIssuer creates and checks access tokens.
type TokenIssuer interface {
	GenerateToken(claims *types.TokenClaims) (string, error)
	ValidateToken(token string) (*types.TokenClaims, error)
}
