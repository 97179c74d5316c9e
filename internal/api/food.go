package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/novafit/nutriparse/backend/internal/service"
	"github.com/novafit/nutriparse/backend/internal/types"
)

// FoodHandler serves free-text meal logging and multi-provider food search.
type FoodHandler struct {
	nutritionService  service.INutritionService
	aggregatorService service.IAggregatorService
}

func NewFoodHandler(nutritionService service.INutritionService, aggregatorService service.IAggregatorService) *FoodHandler {
	return &FoodHandler{
		nutritionService:  nutritionService,
		aggregatorService: aggregatorService,
	}
}

// RegisterRoutes wires the food endpoints. parseMiddleware applies only to
// parse-and-log, which fans out to external providers.
func (h *FoodHandler) RegisterRoutes(router *gin.RouterGroup, parseMiddleware ...gin.HandlerFunc) {
	food := router.Group("/food")
	{
		handlers := append(parseMiddleware, h.ParseAndLog)
		food.POST("/parse-and-log", handlers...)
		food.GET("/search", h.Search)
		food.GET("/entries", h.ListEntries)
	}
}

// ParseAndLog accepts a free-text meal description and returns the logged
// nutrition breakdown.
func (h *FoodHandler) ParseAndLog(c *gin.Context) {
	var req types.FoodParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.nutritionService.ParseAndLog(c.Request.Context(), req.Text)
	if err != nil {
		status, code := mapPipelineError(err)
		c.JSON(status, gin.H{"error": code})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Search runs the query against every configured nutrition provider and
// returns the merged, confidence-ranked candidates.
func (h *FoodHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	results := h.aggregatorService.Search(c.Request.Context(), query)
	if results == nil {
		results = []types.NormalizedFood{}
	}

	c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
}

// ListEntries returns the most recent logged food entries.
func (h *FoodHandler) ListEntries(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	entries, err := h.nutritionService.ListEntries(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list entries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// mapPipelineError translates pipeline errors to HTTP status and wire code.
// Input problems the caller can fix map to 422, lookup misses to 400, and
// configuration or upstream failures to 500.
func mapPipelineError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidDomain),
		errors.Is(err, service.ErrInsufficientData),
		errors.Is(err, service.ErrMalformedParserResponse):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrFoodNotFound),
		errors.Is(err, service.ErrNoCalorieData),
		errors.Is(err, service.ErrUnsupportedUnit),
		errors.Is(err, service.ErrLowSimilarityMatch),
		errors.Is(err, service.ErrUSDARequestFailed):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrParserQuotaExceeded):
		return http.StatusTooManyRequests, err.Error()
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
