package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/quecocinohoy/backend/internal/middleware"
	"github.com/quecocinohoy/backend/internal/models"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/types"
)

type FavoriteHandler struct {
	favorites    *service.FavoriteService
	entitlements service.EntitlementReader
}

func NewFavoriteHandler(favorites *service.FavoriteService, entitlements service.EntitlementReader) *FavoriteHandler {
	return &FavoriteHandler{favorites: favorites, entitlements: entitlements}
}

func (h *FavoriteHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	favorites := router.Group("/favorites", auth)
	{
		favorites.GET("", h.List)
		favorites.POST("", h.Add)
		favorites.DELETE("/:recipeId", h.Remove)
	}
}

func (h *FavoriteHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	favs, err := h.favorites.List(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	isPremium, err := h.entitlements.IsPremium(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, types.ListFavoritesResponse{
		Favorites: lo.Map(favs, func(f models.Favorite, _ int) types.FavoriteResponse { return toFavoriteResponse(&f) }),
		Limit:     service.CapabilitiesFor(isPremium).FavoritesLimit,
	})
}

func (h *FavoriteHandler) Add(c *gin.Context) {
	var req types.AddFavoriteRequest
	if !bindJSON(c, &req) {
		return
	}

	fav, err := h.favorites.Add(c.Request.Context(), middleware.UserID(c), req.Recipe)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, toFavoriteResponse(fav))
}

func (h *FavoriteHandler) Remove(c *gin.Context) {
	if err := h.favorites.Remove(c.Request.Context(), middleware.UserID(c), c.Param("recipeId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func toFavoriteResponse(f *models.Favorite) types.FavoriteResponse {
	return types.FavoriteResponse{
		ID:        f.ID,
		RecipeID:  f.RecipeID,
		Recipe:    f.Recipe.Data(),
		CreatedAt: f.CreatedAt,
	}
}
