package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/novafit/nutriparse/backend/internal/api"
	"github.com/novafit/nutriparse/backend/internal/middleware"
	"github.com/novafit/nutriparse/backend/internal/service"
)

// SetupRouter configures the application routes
func SetupRouter(
	nutritionService service.INutritionService,
	aggregatorService service.IAggregatorService,
	redisClient *redis.Client,
) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.CORS())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")

	foodHandler := api.NewFoodHandler(nutritionService, aggregatorService)
	nutritionHandler := api.NewNutritionHandler(nutritionService)

	var parseMiddleware []gin.HandlerFunc
	if redisClient != nil {
		parseLimiter := middleware.NewParseRateLimiter(redisClient)
		parseMiddleware = append(parseMiddleware, parseLimiter.RateLimitMiddleware())
	}

	foodHandler.RegisterRoutes(v1, parseMiddleware...)
	nutritionHandler.RegisterRoutes(v1)

	return router
}
