package service

import (
	"context"
	"time"

	"github.com/novafit/nutriparse/backend/internal/types"
)

// IParserService defines the interface for text-to-items extraction
type IParserService interface {
	SplitTextByMealType(text string) []MealSection
	Extract(ctx context.Context, text string) ([]types.ParsedItem, error)
}

// IMatcherService defines the interface for nutrition-database matching
type IMatcherService interface {
	Match(ctx context.Context, query string) (*MatchedFood, error)
}

// IPortionResolver defines the interface for serving-to-grams resolution
type IPortionResolver interface {
	ResolveGrams(ctx context.Context, foodName string, quantity float64, unit string, preferredServing *float64) float64
}

// IAggregatorService defines the interface for multi-provider food search
type IAggregatorService interface {
	Search(ctx context.Context, query string) []types.NormalizedFood
}

// INutritionService defines the interface for meal logging operations
type INutritionService interface {
	ParseAndLog(ctx context.Context, text string) (*types.FoodParseLogResponse, error)
	ListMeals(ctx context.Context, day time.Time) ([]types.MealGroupResponse, error)
	DeleteMeal(ctx context.Context, mealGroupID string) error
	ListEntries(ctx context.Context, limit int) ([]types.FoodEntryResponse, error)
	DailySummary(ctx context.Context, day time.Time) (*types.FoodParseLogResponse, error)
}
