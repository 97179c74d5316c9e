package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/novafit/nutriparse/backend/internal/service"
)

// NutritionHandler serves stored meals and day-level summaries.
type NutritionHandler struct {
	nutritionService service.INutritionService
}

func NewNutritionHandler(nutritionService service.INutritionService) *NutritionHandler {
	return &NutritionHandler{nutritionService: nutritionService}
}

func (h *NutritionHandler) RegisterRoutes(router *gin.RouterGroup) {
	nutrition := router.Group("/nutrition")
	{
		nutrition.GET("/meals", h.ListMeals)
		nutrition.DELETE("/meals/:id", h.DeleteMeal)
		nutrition.GET("/daily-summary", h.DailySummary)
	}
}

// parseDay reads the optional date query parameter, defaulting to today.
func parseDay(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return time.Now().UTC(), true
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return time.Time{}, false
	}
	return day, true
}

// ListMeals returns the meals logged on a day, grouped from their entries.
func (h *NutritionHandler) ListMeals(c *gin.Context) {
	day, ok := parseDay(c)
	if !ok {
		return
	}

	meals, err := h.nutritionService.ListMeals(c.Request.Context(), day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list meals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"meals": meals})
}

// DeleteMeal removes one logged meal and all of its entries.
func (h *NutritionHandler) DeleteMeal(c *gin.Context) {
	mealGroupID := c.Param("id")

	err := h.nutritionService.DeleteMeal(c.Request.Context(), mealGroupID)
	if err != nil {
		if errors.Is(err, service.ErrFoodNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete meal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "meal deleted"})
}

// DailySummary aggregates one day of logged meals into day totals.
func (h *NutritionHandler) DailySummary(c *gin.Context) {
	day, ok := parseDay(c)
	if !ok {
		return
	}

	summary, err := h.nutritionService.DailySummary(c.Request.Context(), day)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientData) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": service.ErrInsufficientData.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build daily summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
