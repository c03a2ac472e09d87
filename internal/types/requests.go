package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/quecocinohoy/backend/internal/model"
	"github.com/quecocinohoy/backend/internal/models"
)

// RegisterRequest represents the request body for creating an account
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest represents the request body for signing in
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Capabilities tells the client which premium features the user can use.
type Capabilities struct {
	FavoritesLimit    int  `json:"favoritesLimit"` // 0 means unlimited
	DietFilters       bool `json:"dietFilters"`
	ImageGeneration   bool `json:"imageGeneration"`
	NutritionalMacros bool `json:"nutritionalMacros"`
}

type UserResponse struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	IsPremium    bool         `json:"isPremium"`
	Capabilities Capabilities `json:"capabilities"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// CreateSubscriptionRequest starts a checkout for planType.
type CreateSubscriptionRequest struct {
	Email       string          `json:"email" validate:"omitempty,email"`
	PlanType    models.PlanType `json:"planType" validate:"required,oneof=monthly yearly"`
	FrontendURL string          `json:"frontendUrl" validate:"omitempty,url"`
}

type CreateSubscriptionResponse struct {
	Success        bool   `json:"success"`
	InitPoint      string `json:"initPoint"`
	SubscriptionID string `json:"subscriptionId"`
}

type CancelSubscriptionResponse struct {
	Success bool `json:"success"`
}

type SubscriptionStatusResponse struct {
	Subscription   *models.Subscription `json:"subscription"`
	IsPremium      bool                 `json:"isPremium"`
	PremiumSince   *time.Time           `json:"premiumSince,omitempty"`
	PremiumEndedAt *time.Time           `json:"premiumEndedAt,omitempty"`
	Capabilities   Capabilities         `json:"capabilities"`
}

// GatewayNotification is the webhook body sent by the payment gateway.
type GatewayNotification struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

type DietFilters struct {
	Vegetarian bool `json:"vegetarian"`
	Vegan      bool `json:"vegan"`
	GlutenFree bool `json:"glutenFree"`
}

// GenerateRecipesRequest represents the request body for recipe generation
type GenerateRecipesRequest struct {
	Ingredients         []string    `json:"ingredients" validate:"required,min=1,max=30,dive,max=100"`
	UseStrictMatching   bool        `json:"useStrictMatching"`
	ExcludeRecipes      []string    `json:"excludeRecipes" validate:"max=50"`
	IsPremium           bool        `json:"isPremium"`
	DietFilters         DietFilters `json:"dietFilters"`
	ShouldGenerateImage bool        `json:"shouldGenerateImage"`
}

type GenerateRecipesResponse struct {
	Recipes []model.Recipe `json:"recipes"`
}

type GenerateImageRequest struct {
	Title     string `json:"title" validate:"required,max=300"`
	IsPremium bool   `json:"isPremium"`
}

type GenerateImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

type AddFavoriteRequest struct {
	Recipe model.Recipe `json:"recipe" validate:"required"`
}

type FavoriteResponse struct {
	ID        uuid.UUID    `json:"id"`
	RecipeID  string       `json:"recipeId"`
	Recipe    model.Recipe `json:"recipe"`
	CreatedAt time.Time    `json:"createdAt"`
}

type ListFavoritesResponse struct {
	Favorites []FavoriteResponse `json:"favorites"`
	Limit     int                `json:"limit"`
}

type CreateShareRequest struct {
	Recipe model.Recipe `json:"recipe" validate:"required"`
}

type ShareResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type SharedRecipeResponse struct {
	ID        string       `json:"id"`
	Recipe    model.Recipe `json:"recipe"`
	CreatedAt time.Time    `json:"createdAt"`
}

type HistoryEntry struct {
	ID          uuid.UUID `json:"id"`
	Ingredients []string  `json:"ingredients"`
	RecipeID    string    `json:"recipeId"`
	RecipeTitle string    `json:"recipeTitle"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ListHistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// QuotaStatus is the outcome of one generation quota check.
type QuotaStatus struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}
