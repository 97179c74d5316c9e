package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novafit/nutriparse/backend/internal/service"
	"github.com/novafit/nutriparse/backend/internal/types"
)

// stubNutritionService serves canned pipeline results.
type stubNutritionService struct {
	parseResult *types.FoodParseLogResponse
	parseErr    error
	meals       []types.MealGroupResponse
	deleteErr   error
	entries     []types.FoodEntryResponse
	summary     *types.FoodParseLogResponse
	summaryErr  error
}

var _ service.INutritionService = (*stubNutritionService)(nil)

func (s *stubNutritionService) ParseAndLog(ctx context.Context, text string) (*types.FoodParseLogResponse, error) {
	return s.parseResult, s.parseErr
}

func (s *stubNutritionService) ListMeals(ctx context.Context, day time.Time) ([]types.MealGroupResponse, error) {
	return s.meals, nil
}

func (s *stubNutritionService) DeleteMeal(ctx context.Context, mealGroupID string) error {
	return s.deleteErr
}

func (s *stubNutritionService) ListEntries(ctx context.Context, limit int) ([]types.FoodEntryResponse, error) {
	return s.entries, nil
}

func (s *stubNutritionService) DailySummary(ctx context.Context, day time.Time) (*types.FoodParseLogResponse, error) {
	return s.summary, s.summaryErr
}

// stubAggregator returns canned search results.
type stubAggregator struct {
	results []types.NormalizedFood
}

var _ service.IAggregatorService = (*stubAggregator)(nil)

func (s *stubAggregator) Search(ctx context.Context, query string) []types.NormalizedFood {
	return s.results
}

func newFoodRouter(nutrition service.INutritionService, aggregator service.IAggregatorService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewFoodHandler(nutrition, aggregator)
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestParseAndLogSuccess(t *testing.T) {
	nutrition := &stubNutritionService{
		parseResult: &types.FoodParseLogResponse{
			Meals:         []types.ParsedMeal{{MealType: "meal", TotalCalories: 260}},
			TotalCalories: 260,
		},
	}
	router := newFoodRouter(nutrition, &stubAggregator{})

	body, _ := json.Marshal(types.FoodParseRequest{Text: "200 gramos de arroz"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/food/parse-and-log", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp types.FoodParseLogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 260.0, resp.TotalCalories)
}

func TestParseAndLogRejectsShortText(t *testing.T) {
	router := newFoodRouter(&stubNutritionService{}, &stubAggregator{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/food/parse-and-log", bytes.NewBufferString(`{"text":"ab"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseAndLogErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{service.ErrInvalidDomain, http.StatusUnprocessableEntity, "invalid_domain"},
		{service.ErrInsufficientData, http.StatusUnprocessableEntity, "insufficient_data"},
		{service.ErrMalformedParserResponse, http.StatusUnprocessableEntity, "malformed_parser_response"},
		{service.ErrFoodNotFound, http.StatusBadRequest, "food_not_found"},
		{service.ErrNoCalorieData, http.StatusBadRequest, "no_calorie_data"},
		{service.ErrLowSimilarityMatch, http.StatusBadRequest, "low_similarity_match"},
		{service.ErrUnsupportedUnit, http.StatusBadRequest, "unsupported_unit"},
		{service.ErrUSDARequestFailed, http.StatusBadRequest, "usda_request_failed"},
		{service.ErrParserQuotaExceeded, http.StatusTooManyRequests, "parser_quota_exceeded"},
		{service.ErrMissingParserAPIKey, http.StatusInternalServerError, "internal_error"},
		{service.ErrParserRequestFailed, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode+"/"+tt.err.Error(), func(t *testing.T) {
			router := newFoodRouter(&stubNutritionService{parseErr: tt.err}, &stubAggregator{})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/food/parse-and-log", bytes.NewBufferString(`{"text":"dos huevos fritos"}`))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp["error"])
		})
	}
}

func TestSearchReturnsResults(t *testing.T) {
	aggregator := &stubAggregator{results: []types.NormalizedFood{
		{Name: "Cola Drink", Source: "openfoodfacts", CaloriesPer100g: 42, ConfidenceScore: 0.98},
	}}
	router := newFoodRouter(&stubNutritionService{}, aggregator)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/food/search?q=coca+cola", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Query   string                 `json:"query"`
		Results []types.NormalizedFood `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "coca cola", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "openfoodfacts", resp.Results[0].Source)
}

func TestSearchRequiresQuery(t *testing.T) {
	router := newFoodRouter(&stubNutritionService{}, &stubAggregator{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/food/search", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchEmptyResultsIsOK(t *testing.T) {
	router := newFoodRouter(&stubNutritionService{}, &stubAggregator{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/food/search?q=nothing", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestListEntriesEndpoint(t *testing.T) {
	nutrition := &stubNutritionService{entries: []types.FoodEntryResponse{
		{ID: "abc", NormalizedName: "rice", TotalCalories: 260},
	}}
	router := newFoodRouter(nutrition, &stubAggregator{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/food/entries?limit=10", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rice"`)
}

func TestListEntriesRejectsBadLimit(t *testing.T) {
	router := newFoodRouter(&stubNutritionService{}, &stubAggregator{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/food/entries?limit=zero", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
