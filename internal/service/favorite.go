package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/model"
	"github.com/quecocinohoy/backend/internal/models"
)

type FavoriteService struct {
	db           *gorm.DB
	entitlements EntitlementReader
	log          *logger.Logger
}

func NewFavoriteService(db *gorm.DB, entitlements EntitlementReader, log *logger.Logger) *FavoriteService {
	return &FavoriteService{db: db, entitlements: entitlements, log: log.Named("favorites")}
}

// Add saves recipe for the user. Saving the same recipe twice returns the
// existing favorite. Free accounts are capped at FreeFavoritesLimit; the
// count and the insert are not atomic, so two concurrent adds can exceed it by one.
func (s *FavoriteService) Add(ctx context.Context, userID uuid.UUID, recipe model.Recipe) (*models.Favorite, error) {
	db := s.db.WithContext(ctx)

	if existing, err := s.find(db, userID, recipe.ID); err != nil || existing != nil {
		return existing, err
	}

	isPremium, err := s.entitlements.IsPremium(ctx, userID)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := db.Model(&models.Favorite{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, favoriteError(err)
	}
	if !CanAddFavorite(int(count), isPremium) {
		return nil, ierr.NewError("favorites limit reached").
			WithHintf("Con el plan gratuito podés guardar hasta %d recetas favoritas. Pasate a Premium para guardar todas las que quieras.", FreeFavoritesLimit).
			WithReportableDetails(map[string]any{"feature": "favorites", "limit": FreeFavoritesLimit}).
			Mark(ierr.ErrPermissionDenied)
	}

	fav := models.Favorite{
		ID:       uuid.New(),
		UserID:   userID,
		RecipeID: recipe.ID,
		Title:    recipe.Title,
		Recipe:   datatypes.NewJSONType(recipe.ForStorage(isPremium)),
	}
	if err := db.Create(&fav).Error; err != nil {
		// lost a race with an identical add
		if existing, findErr := s.find(db, userID, recipe.ID); findErr == nil && existing != nil {
			return existing, nil
		}
		return nil, favoriteError(err)
	}

	s.log.Debugw("favorite added", "user_id", userID, "recipe_id", recipe.ID)
	return &fav, nil
}

// List returns the user's favorites, newest first.
func (s *FavoriteService) List(ctx context.Context, userID uuid.UUID) ([]models.Favorite, error) {
	var favs []models.Favorite
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&favs).Error; err != nil {
		return nil, favoriteError(err)
	}
	return favs, nil
}

// Remove deletes one favorite.
func (s *FavoriteService) Remove(ctx context.Context, userID uuid.UUID, recipeID string) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND recipe_id = ?", userID, recipeID).Delete(&models.Favorite{})
	if res.Error != nil {
		return favoriteError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ierr.NewError("favorite not found").
			WithHint("Esa receta no está en tus favoritas.").
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *FavoriteService) find(db *gorm.DB, userID uuid.UUID, recipeID string) (*models.Favorite, error) {
	var fav models.Favorite
	err := db.Where("user_id = ? AND recipe_id = ?", userID, recipeID).First(&fav).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, favoriteError(err)
	}
	return &fav, nil
}

func favoriteError(err error) error {
	return ierr.WithError(err).
		WithMessage("favorites query failed").
		WithHint("No pudimos actualizar tus favoritas. Intentá de nuevo.").
		Mark(ierr.ErrDatabase)
}
