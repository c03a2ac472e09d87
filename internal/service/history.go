package service

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/model"
	"github.com/quecocinohoy/backend/internal/models"
	"github.com/quecocinohoy/backend/internal/types"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// HistoryService keeps the ingredient searches behind generated recipes.
type HistoryService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHistoryService(db *gorm.DB, log *logger.Logger) *HistoryService {
	return &HistoryService{db: db, log: log.Named("history")}
}

// Record stores one search. Callers treat failures as non-fatal.
func (s *HistoryService) Record(ctx context.Context, userID uuid.UUID, ingredients []string, recipe *model.Recipe) error {
	entry := models.SearchHistory{
		ID:          uuid.New(),
		UserID:      userID,
		Ingredients: model.JSONBStringArray(NormalizeIngredients(ingredients)),
		Embedding:   IngredientEmbedding(ingredients),
	}
	if recipe != nil {
		entry.RecipeID = recipe.ID
		entry.RecipeTitle = recipe.Title
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return ierr.WithError(err).WithMessage("failed to record search history").Mark(ierr.ErrDatabase)
	}
	return nil
}

// List returns the most recent searches first.
func (s *HistoryService) List(ctx context.Context, userID uuid.UUID, limit int) ([]types.HistoryEntry, error) {
	var rows []models.SearchHistory
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, historyError(err)
	}
	return toHistoryEntries(rows), nil
}

// Similar returns past searches closest to ingredients. Vector distance is
// used on postgres; other dialects fall back to the most recent searches.
func (s *HistoryService) Similar(ctx context.Context, userID uuid.UUID, ingredients []string, limit int) ([]types.HistoryEntry, error) {
	if len(NormalizeIngredients(ingredients)) == 0 {
		return nil, ierr.NewError("no ingredients").
			WithHint("Ingresá al menos un ingrediente.").
			Mark(ierr.ErrValidation)
	}

	db := s.db.WithContext(ctx)
	if db.Dialector.Name() != "postgres" {
		return s.List(ctx, userID, limit)
	}

	var rows []models.SearchHistory
	err := db.Where("user_id = ?", userID).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:  "embedding <-> ?",
			Vars: []interface{}{IngredientEmbedding(ingredients)},
		}}).
		Limit(clampLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, historyError(err)
	}
	return toHistoryEntries(rows), nil
}

// Clear deletes every search of the user.
func (s *HistoryService) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.SearchHistory{}).Error; err != nil {
		return historyError(err)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return min(limit, MaxHistoryLimit)
}

func historyError(err error) error {
	return ierr.WithError(err).
		WithMessage("search history query failed").
		WithHint("No pudimos cargar tu historial. Intentá de nuevo.").
		Mark(ierr.ErrDatabase)
}

func toHistoryEntries(rows []models.SearchHistory) []types.HistoryEntry {
	entries := make([]types.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, types.HistoryEntry{
			ID:          r.ID,
			Ingredients: []string(r.Ingredients),
			RecipeID:    r.RecipeID,
			RecipeTitle: r.RecipeTitle,
			CreatedAt:   r.CreatedAt,
		})
	}
	return entries
}
