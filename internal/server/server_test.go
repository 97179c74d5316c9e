package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/novafit/nutriparse/backend/config"
	"github.com/novafit/nutriparse/backend/internal/models"
)

func TestNew(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.FoodEntry{}, &models.FoodPortionCache{}))

	cfg := &config.Config{
		ServerHost: "localhost",
		ServerPort: "8080",
	}

	server := New(cfg, db, nil)
	assert.NotNil(t, server)

	// Health check endpoint
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	server.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutesRegistered(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.FoodEntry{}, &models.FoodPortionCache{}))

	server := New(&config.Config{ServerPort: "8080"}, db, nil)

	// No entries logged yet: listing succeeds with an empty set
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/food/entries", nil)
	server.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/nutrition/meals", nil)
	server.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
