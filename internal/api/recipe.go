package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quecocinohoy/backend/internal/middleware"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/types"
)

type RecipeHandler struct {
	recipes *service.RecipeService
}

func NewRecipeHandler(recipes *service.RecipeService) *RecipeHandler {
	return &RecipeHandler{recipes: recipes}
}

func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	recipes := router.Group("/recipes", auth)
	{
		recipes.POST("/generate", h.Generate)
		recipes.POST("/image", h.GenerateImage)
	}
}

// Generate returns {recipes: [recipe]} for the posted ingredients.
func (h *RecipeHandler) Generate(c *gin.Context) {
	var req types.GenerateRecipesRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.recipes.Generate(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RecipeHandler) GenerateImage(c *gin.Context) {
	var req types.GenerateImageRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.recipes.GenerateImage(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
