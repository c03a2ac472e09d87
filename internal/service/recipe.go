package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/model"
	"github.com/quecocinohoy/backend/internal/types"
)

// QuotaConfig sets the hourly generation allowance per plan.
type QuotaConfig struct {
	FreePerHour    int
	PremiumPerHour int
}

// RecipeService runs the generation path: validation, gates, quota, prompt,
// model call, normalization and the optional picture.
type RecipeService struct {
	llm          RecipeTextGenerator
	images       RecipeImageGenerator
	entitlements EntitlementReader
	quota        QuotaLimiter
	history      HistoryRecorder
	quotaCfg     QuotaConfig
	imageTimeout time.Duration
	log          *logger.Logger
}

// RecipeServiceParams groups the dependencies of NewRecipeService. Quota and
// History may be nil.
type RecipeServiceParams struct {
	LLM          RecipeTextGenerator
	Images       RecipeImageGenerator
	Entitlements EntitlementReader
	Quota        QuotaLimiter
	History      HistoryRecorder
	QuotaConfig  QuotaConfig
	ImageTimeout time.Duration
	Logger       *logger.Logger
}

func NewRecipeService(p RecipeServiceParams) *RecipeService {
	if p.ImageTimeout <= 0 {
		p.ImageTimeout = 25 * time.Second
	}
	return &RecipeService{
		llm:          p.LLM,
		images:       p.Images,
		entitlements: p.Entitlements,
		quota:        p.Quota,
		history:      p.History,
		quotaCfg:     p.QuotaConfig,
		imageTimeout: p.ImageTimeout,
		log:          p.Logger.Named("recipes"),
	}
}

// Generate produces one recipe for the ingredients in req.
func (s *RecipeService) Generate(ctx context.Context, userID uuid.UUID, req types.GenerateRecipesRequest) (*types.GenerateRecipesResponse, error) {
	ingredients := cleanIngredients(req.Ingredients)
	if len(ingredients) == 0 {
		return nil, ierr.NewError("no ingredients").
			WithHint("Ingresá al menos un ingrediente.").
			Mark(ierr.ErrValidation)
	}

	isPremium, err := s.effectivePremium(ctx, userID, req.IsPremium)
	if err != nil {
		return nil, err
	}

	if err := checkDietFilters(req.DietFilters, isPremium); err != nil {
		return nil, err
	}

	charged, err := s.checkQuota(ctx, userID, isPremium)
	if err != nil {
		return nil, err
	}

	system, user := BuildRecipePrompt(RecipePromptInput{
		Ingredients:       ingredients,
		UseStrictMatching: req.UseStrictMatching,
		ExcludeRecipes:    cleanIngredients(req.ExcludeRecipes),
		DietFilters:       req.DietFilters,
		IncludeMacros:     isPremium,
	})

	start := time.Now()
	raw, err := s.llm.GenerateRecipeText(ctx, system, user)
	if err != nil {
		s.releaseQuota(ctx, userID, charged)
		return nil, err
	}

	recipe, err := NormalizeRecipe(raw)
	if err != nil {
		s.log.Warnw("model output could not be parsed", "user_id", userID, "output", truncate(raw, 300))
		s.releaseQuota(ctx, userID, charged)
		return nil, err
	}
	if !isPremium {
		recipe.Macros = nil
	}
	s.log.Infow("recipe generated", "user_id", userID, "recipe_id", recipe.ID, "premium", isPremium, "duration", time.Since(start))

	if CanGenerateImage(isPremium, req.ShouldGenerateImage) {
		recipe.ImageURL = s.generateImage(ctx, userID, recipe)
	}

	if s.history != nil {
		if err := s.history.Record(ctx, userID, ingredients, recipe); err != nil {
			s.log.Warnw("failed to record search history", "user_id", userID, "error", err)
		}
	}

	return &types.GenerateRecipesResponse{Recipes: []model.Recipe{*recipe}}, nil
}

// GenerateImage renders a single picture for a title. Premium only.
func (s *RecipeService) GenerateImage(ctx context.Context, userID uuid.UUID, req types.GenerateImageRequest) (*types.GenerateImageResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ierr.NewError("missing title").
			WithHint("Falta el nombre de la receta.").
			Mark(ierr.ErrValidation)
	}

	isPremium, err := s.effectivePremium(ctx, userID, req.IsPremium)
	if err != nil {
		return nil, err
	}
	if !isPremium {
		return nil, ierr.NewError("image generation requires premium").
			WithHint("La generación de imágenes es exclusiva de Premium.").
			WithReportableDetails(map[string]any{"feature": "image_generation"}).
			Mark(ierr.ErrPermissionDenied)
	}

	url, err := s.images.GenerateImageDataURI(ctx, title)
	if err != nil {
		return nil, err
	}
	return &types.GenerateImageResponse{ImageURL: url}, nil
}

// generateImage returns "" when the picture fails or takes longer than the
// image timeout. The recipe is returned either way.
func (s *RecipeService) generateImage(ctx context.Context, userID uuid.UUID, recipe *model.Recipe) string {
	if s.images == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, s.imageTimeout)
	defer cancel()

	url, err := s.images.GenerateRecipeImage(ctx, userID, recipe)
	if err != nil {
		s.log.Warnw("continuing without image", "user_id", userID, "recipe_id", recipe.ID, "error", err, "timed_out", ctx.Err() != nil)
		return ""
	}
	return url
}

// effectivePremium trusts the client's flag only when the server agrees.
func (s *RecipeService) effectivePremium(ctx context.Context, userID uuid.UUID, claimed bool) (bool, error) {
	if !claimed {
		return false, nil
	}
	return s.entitlements.IsPremium(ctx, userID)
}

// checkQuota charges one generation. The returned status is nil when nothing
// was charged.
func (s *RecipeService) checkQuota(ctx context.Context, userID uuid.UUID, isPremium bool) (*types.QuotaStatus, error) {
	if s.quota == nil {
		return nil, nil
	}
	limit := s.quotaCfg.FreePerHour
	if isPremium {
		limit = s.quotaCfg.PremiumPerHour
	}
	if limit <= 0 {
		return nil, nil
	}

	status, err := s.quota.Allow(ctx, userID.String(), limit)
	if err != nil {
		s.log.Warnw("quota check failed, allowing generation", "user_id", userID, "error", err)
		return nil, nil
	}
	if status.Allowed {
		return &status, nil
	}

	hint := fmt.Sprintf("Llegaste al límite de %d recetas por hora. Vas a poder generar más a las %s.",
		status.Limit, status.ResetAt.Format("15:04"))
	if !isPremium {
		hint += " Con Premium el límite es mayor."
	}
	return nil, ierr.NewError("generation quota exceeded").
		WithHint(hint).
		WithReportableDetails(map[string]any{
			"limit":   status.Limit,
			"resetAt": status.ResetAt.UTC().Format(time.RFC3339),
		}).
		Mark(ierr.ErrQuotaExceeded)
}

// releaseQuota refunds a generation that failed upstream.
func (s *RecipeService) releaseQuota(ctx context.Context, userID uuid.UUID, charged *types.QuotaStatus) {
	if charged == nil {
		return
	}
	// the refund still applies when the caller went away
	if err := s.quota.Release(context.WithoutCancel(ctx), userID.String(), *charged); err != nil {
		s.log.Warnw("failed to release generation quota", "user_id", userID, "error", err)
	}
}

func checkDietFilters(filters types.DietFilters, isPremium bool) error {
	requested := map[DietFilter]bool{
		DietVegetarian: filters.Vegetarian,
		DietVegan:      filters.Vegan,
		DietGlutenFree: filters.GlutenFree,
	}
	for _, kind := range []DietFilter{DietVegetarian, DietVegan, DietGlutenFree} {
		if requested[kind] && !CanUseDietFilter(kind, isPremium) {
			return ierr.NewError("diet filter requires premium").
				WithHint("Los filtros vegano y sin TACC son exclusivos de Premium.").
				WithReportableDetails(map[string]any{"feature": "diet_filter", "filter": string(kind)}).
				Mark(ierr.ErrPermissionDenied)
		}
	}
	return nil
}

// cleanIngredients trims entries and drops empty ones, keeping order.
func cleanIngredients(in []string) []string {
	return lo.FilterMap(in, func(item string, _ int) (string, bool) {
		item = strings.TrimSpace(item)
		return item, item != ""
	})
}
