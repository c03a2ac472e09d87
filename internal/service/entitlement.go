package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/models"
	"github.com/quecocinohoy/backend/internal/types"
)

// FreeFavoritesLimit is how many favorites a free account can keep.
const FreeFavoritesLimit = 3

type DietFilter string

const (
	DietVegetarian DietFilter = "vegetarian"
	DietVegan      DietFilter = "vegan"
	DietGlutenFree DietFilter = "gluten-free"
)

// CanAddFavorite reports whether a user holding currentFavoriteCount favorites
// may add another one.
func CanAddFavorite(currentFavoriteCount int, isPremium bool) bool {
	return isPremium || currentFavoriteCount < FreeFavoritesLimit
}

// CanUseDietFilter reports whether the filter is available on the user's plan.
// Unknown filters are denied.
func CanUseDietFilter(kind DietFilter, isPremium bool) bool {
	switch kind {
	case DietVegetarian:
		return true
	case DietVegan, DietGlutenFree:
		return isPremium
	default:
		return false
	}
}

// CanGenerateImage requires both premium access and an explicit request.
func CanGenerateImage(isPremium, requestedByUser bool) bool {
	return isPremium && requestedByUser
}

// CapabilitiesFor summarises the gates for the client.
func CapabilitiesFor(isPremium bool) types.Capabilities {
	caps := types.Capabilities{
		FavoritesLimit:    FreeFavoritesLimit,
		DietFilters:       CanUseDietFilter(DietVegan, isPremium),
		ImageGeneration:   CanGenerateImage(isPremium, true),
		NutritionalMacros: isPremium,
	}
	if isPremium {
		caps.FavoritesLimit = 0
	}
	return caps
}

const entitlementCacheTTL = 5 * time.Minute

// EntitlementService reads entitlement records, caching them in redis when a
// client is configured.
type EntitlementService struct {
	db    *gorm.DB
	redis *redis.Client
	log   *logger.Logger
}

func NewEntitlementService(db *gorm.DB, redisClient *redis.Client, log *logger.Logger) *EntitlementService {
	return &EntitlementService{db: db, redis: redisClient, log: log.Named("entitlements")}
}

func entitlementKey(userID uuid.UUID) string {
	return fmt.Sprintf("entitlement:%s", userID)
}

// Get returns the user's entitlement. A user without a record is free.
func (s *EntitlementService) Get(ctx context.Context, userID uuid.UUID) (*models.Entitlement, error) {
	if cached := s.fromCache(ctx, userID); cached != nil {
		return cached, nil
	}

	var ent models.Entitlement
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&ent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ent = models.Entitlement{UserID: userID}
	} else if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to load entitlement").
			WithHint("No pudimos verificar tu plan. Intentá de nuevo.").
			Mark(ierr.ErrDatabase)
	}

	s.toCache(ctx, &ent)
	return &ent, nil
}

// IsPremium reports the server-side premium flag.
func (s *EntitlementService) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	ent, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return ent.IsPremium, nil
}

// Invalidate drops the cached record after a transition.
func (s *EntitlementService) Invalidate(ctx context.Context, userID uuid.UUID) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, entitlementKey(userID)).Err(); err != nil {
		s.log.Warnw("failed to invalidate entitlement cache", "user_id", userID, "error", err)
	}
}

func (s *EntitlementService) fromCache(ctx context.Context, userID uuid.UUID) *models.Entitlement {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, entitlementKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warnw("entitlement cache read failed", "user_id", userID, "error", err)
		}
		return nil
	}
	var ent models.Entitlement
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil
	}
	return &ent
}

func (s *EntitlementService) toCache(ctx context.Context, ent *models.Entitlement) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, entitlementKey(ent.UserID), data, entitlementCacheTTL).Err(); err != nil {
		s.log.Warnw("entitlement cache write failed", "user_id", ent.UserID, "error", err)
	}
}

// applyDecision updates the entitlement row inside tx. It reports whether
// anything changed so repeated deliveries leave the row untouched.
func applyDecision(tx *gorm.DB, userID uuid.UUID, decision StatusDecision, now time.Time) (bool, error) {
	if decision == DecisionIgnore {
		return false, nil
	}

	var ent models.Entitlement
	err := tx.Where("user_id = ?", userID).First(&ent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ent = models.Entitlement{UserID: userID}
	} else if err != nil {
		return false, err
	}

	changed := false
	switch decision {
	case DecisionGrant:
		if !ent.IsPremium {
			ent.IsPremium = true
			ent.PremiumEndedAt = nil
			changed = true
		}
		if ent.PremiumSince == nil {
			ent.PremiumSince = &now
			changed = true
		}
	case DecisionRevoke:
		if ent.IsPremium || ent.PremiumEndedAt == nil {
			ent.IsPremium = false
			ent.PremiumEndedAt = &now
			changed = true
		}
	}

	if !changed {
		return false, nil
	}
	return true, tx.Save(&ent).Error
}
