package server

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/novafit/nutriparse/backend/config"
	"github.com/novafit/nutriparse/backend/internal/connector"
	"github.com/novafit/nutriparse/backend/internal/router"
	"github.com/novafit/nutriparse/backend/internal/service"
)

// Server represents the HTTP server
type Server struct {
	engine *gin.Engine
	http   *http.Server
	cfg    *config.Config
}

// New wires the full pipeline (connectors, services, routes) and returns a
// server ready to start.
func New(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	usda := connector.NewUSDAConnector(cfg.USDAAPIKey)
	fatsecret := connector.NewFatSecretConnector(cfg.FatSecretClientID, cfg.FatSecretClientSecret)
	off := connector.NewOpenFoodFactsConnector(cfg.OpenFoodFactsUserAgent)

	connectors := []connector.Connector{usda, fatsecret, off}

	parserService := service.NewParserService(cfg)
	matcherService := service.NewMatcherService(usda)
	portionResolver := service.NewPortionResolver(db, usda, fatsecret, off)
	nutritionService := service.NewNutritionService(db, parserService, matcherService, portionResolver)
	aggregatorService := service.NewAggregatorService(connectors, db, redisClient)

	engine := router.SetupRouter(nutritionService, aggregatorService, redisClient)

	return &Server{
		engine: engine,
		cfg:    cfg,
	}
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:    ":" + s.cfg.ServerPort,
		Handler: s.engine,
	}

	log.Printf("Listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http != nil {
		return s.http.Shutdown(ctx)
	}
	return nil
}
