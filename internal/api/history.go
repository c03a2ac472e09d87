package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/middleware"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/types"
)

type HistoryHandler struct {
	history *service.HistoryService
}

func NewHistoryHandler(history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

func (h *HistoryHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	history := router.Group("/history", auth)
	{
		history.GET("", h.List)
		history.DELETE("", h.Clear)
		history.GET("/similar", h.Similar)
	}
}

func (h *HistoryHandler) List(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	entries, err := h.history.List(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, types.ListHistoryResponse{Entries: entries})
}

func (h *HistoryHandler) Similar(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	ingredients := strings.Split(c.Query("ingredients"), ",")

	entries, err := h.history.Similar(c.Request.Context(), middleware.UserID(c), ingredients, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, types.ListHistoryResponse{Entries: entries})
}

func (h *HistoryHandler) Clear(c *gin.Context) {
	if err := h.history.Clear(c.Request.Context(), middleware.UserID(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		_ = c.Error(ierr.NewError("invalid limit").
			WithHint("El parámetro limit debe ser un número positivo.").
			Mark(ierr.ErrValidation))
		return 0, false
	}
	return limit, true
}
