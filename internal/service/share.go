package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/teris-io/shortid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/model"
	"github.com/quecocinohoy/backend/internal/models"
	"github.com/quecocinohoy/backend/internal/types"
)

// SharePath is the frontend route of a recipe permalink.
const SharePath = "/receta/"

// ShareService publishes recipe snapshots behind short permalinks.
type ShareService struct {
	db           *gorm.DB
	entitlements EntitlementReader
	cache        *cache.Cache
	frontendURL  string
	log          *logger.Logger
}

func NewShareService(db *gorm.DB, entitlements EntitlementReader, frontendURL string, log *logger.Logger) *ShareService {
	return &ShareService{
		db:           db,
		entitlements: entitlements,
		cache:        cache.New(10*time.Minute, 20*time.Minute),
		frontendURL:  strings.TrimRight(frontendURL, "/"),
		log:          log.Named("shares"),
	}
}

// Create stores a snapshot of recipe and returns its permalink.
func (s *ShareService) Create(ctx context.Context, ownerID uuid.UUID, recipe model.Recipe) (*types.ShareResponse, error) {
	isPremium, err := s.entitlements.IsPremium(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	id, err := shortid.Generate()
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to generate share id").Mark(ierr.ErrSystem)
	}

	shared := models.SharedRecipe{
		ID:       id,
		OwnerID:  ownerID,
		RecipeID: recipe.ID,
		Recipe:   datatypes.NewJSONType(recipe.ForStorage(isPremium)),
	}
	if err := s.db.WithContext(ctx).Create(&shared).Error; err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to save shared recipe").
			WithHint("No pudimos compartir la receta. Intentá de nuevo.").
			Mark(ierr.ErrDatabase)
	}

	s.cache.SetDefault(id, &shared)
	return &types.ShareResponse{ID: id, URL: s.permalink(id)}, nil
}

// Get returns a shared recipe. Lookups are cached in-process.
func (s *ShareService) Get(ctx context.Context, id string) (*models.SharedRecipe, error) {
	if cached, ok := s.cache.Get(id); ok {
		return cached.(*models.SharedRecipe), nil
	}

	var shared models.SharedRecipe
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&shared).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ierr.NewError(fmt.Sprintf("shared recipe %s not found", id)).
			WithHint("La receta compartida no existe o fue eliminada.").
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to load shared recipe").
			WithHint("No pudimos cargar la receta. Intentá de nuevo.").
			Mark(ierr.ErrDatabase)
	}

	s.cache.SetDefault(id, &shared)
	return &shared, nil
}

func (s *ShareService) permalink(id string) string {
	return s.frontendURL + SharePath + id
}
