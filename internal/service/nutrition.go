package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/novafit/nutriparse/backend/internal/models"
	"github.com/novafit/nutriparse/backend/internal/types"
)

// NutritionService runs the full meal pipeline: split text into meals,
// extract items, resolve portions and nutrition, and persist the entries.
type NutritionService struct {
	db       *gorm.DB
	parser   IParserService
	matcher  IMatcherService
	portions IPortionResolver
}

var _ INutritionService = (*NutritionService)(nil)

func NewNutritionService(db *gorm.DB, parser IParserService, matcher IMatcherService, portions IPortionResolver) *NutritionService {
	return &NutritionService{db: db, parser: parser, matcher: matcher, portions: portions}
}

// ParseAndLog processes one free-text description, persists every resolved
// item, and returns the meal-separated nutrition breakdown.
func (s *NutritionService) ParseAndLog(ctx context.Context, text string) (*types.FoodParseLogResponse, error) {
	sections := s.parser.SplitTextByMealType(text)
	if len(sections) == 0 {
		return nil, ErrInsufficientData
	}

	response := &types.FoodParseLogResponse{}
	mealCounter := 0

	for _, section := range sections {
		items, err := s.parser.Extract(ctx, section.Text)
		if err != nil {
			return nil, err
		}

		mealCounter++
		meal := types.ParsedMeal{
			MealType:      section.MealType,
			MealLabel:     mealLabel(section.MealType, mealCounter),
			MealGroupID:   uuid.New().String(),
			MealTimestamp: time.Now().UTC(),
		}

		for _, item := range items {
			distribution, err := s.resolveItem(ctx, section.Text, item, meal)
			if err != nil {
				return nil, err
			}
			meal.Items = append(meal.Items, *distribution)
			meal.TotalQuantityGrams = round2(meal.TotalQuantityGrams + distribution.QuantityGrams)
			meal.TotalCalories = round2(meal.TotalCalories + distribution.TotalCalories)
			meal.TotalCarbs = round2(meal.TotalCarbs + distribution.TotalCarbs)
			meal.TotalProtein = round2(meal.TotalProtein + distribution.TotalProtein)
			meal.TotalFat = round2(meal.TotalFat + distribution.TotalFat)
		}

		response.Meals = append(response.Meals, meal)
		response.TotalQuantityGrams = round2(response.TotalQuantityGrams + meal.TotalQuantityGrams)
		response.TotalCalories = round2(response.TotalCalories + meal.TotalCalories)
		response.TotalCarbs = round2(response.TotalCarbs + meal.TotalCarbs)
		response.TotalProtein = round2(response.TotalProtein + meal.TotalProtein)
		response.TotalFat = round2(response.TotalFat + meal.TotalFat)
	}

	return response, nil
}

func mealLabel(mealType string, counter int) string {
	switch mealType {
	case "breakfast":
		return "Breakfast"
	case "lunch":
		return "Lunch"
	case "dinner":
		return "Dinner"
	case "snack":
		return "Snack"
	default:
		return fmt.Sprintf("Meal %d", counter)
	}
}

// resolveItem turns one parsed item into a persisted entry and its nutrition
// distribution.
func (s *NutritionService) resolveItem(ctx context.Context, originalText string, item types.ParsedItem, meal types.ParsedMeal) (*types.FoodItemDistribution, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(item.Name))

	var (
		caloriesPer100g float64
		proteinPer100g  float64
		fatPer100g      float64
		carbsPer100g    float64
		providerFoodID  string
		servingHint     *float64
	)

	// Recently logged foods in exact-weight units skip the provider round
	// trip and reuse the audited per-100g values.
	if previous, ok := s.recentEntry(ctx, normalizedName); ok && IsWeightUnit(item.Unit) {
		caloriesPer100g = previous.CaloriesPer100g
		proteinPer100g = previous.ProteinPer100g
		fatPer100g = previous.FatPer100g
		carbsPer100g = previous.CarbsPer100g
		providerFoodID = previous.ProviderFoodID
	} else {
		matched, err := s.matcher.Match(ctx, item.Name)
		if err != nil {
			return nil, err
		}
		caloriesPer100g = matched.CaloriesPer100g
		proteinPer100g = matched.ProteinPer100g
		fatPer100g = matched.FatPer100g
		carbsPer100g = matched.CarbsPer100g
		providerFoodID = fmt.Sprintf("%d", matched.FdcID)
		servingHint = matched.ServingSizeGrams
	}

	var grams float64
	if converted, err := ConvertWeightToGrams(item.Quantity, item.Unit); err == nil {
		grams = converted
	} else {
		grams = s.portions.ResolveGrams(ctx, item.Name, item.Quantity, item.Unit, servingHint)
	}

	distribution := &types.FoodItemDistribution{
		Food:            item.Name,
		QuantityGrams:   round2(grams),
		CaloriesPer100g: caloriesPer100g,
		CarbsPer100g:    carbsPer100g,
		ProteinPer100g:  proteinPer100g,
		FatPer100g:      fatPer100g,
		TotalCalories:   round2(caloriesPer100g * grams / 100),
		TotalCarbs:      round2(carbsPer100g * grams / 100),
		TotalProtein:    round2(proteinPer100g * grams / 100),
		TotalFat:        round2(fatPer100g * grams / 100),
	}

	entry := models.FoodEntry{
		OriginalText:    truncate(originalText, 255),
		NormalizedName:  normalizedName,
		QuantityGrams:   distribution.QuantityGrams,
		ProviderFoodID:  providerFoodID,
		CaloriesPer100g: caloriesPer100g,
		CarbsPer100g:    carbsPer100g,
		ProteinPer100g:  proteinPer100g,
		FatPer100g:      fatPer100g,
		TotalCalories:   distribution.TotalCalories,
		MealType:        meal.MealType,
		MealGroupID:     meal.MealGroupID,
		MealLabel:       meal.MealLabel,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("failed to persist food entry for %q: %v", normalizedName, err)
		return nil, fmt.Errorf("failed to persist food entry: %w", err)
	}

	return distribution, nil
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

func (s *NutritionService) recentEntry(ctx context.Context, normalizedName string) (*models.FoodEntry, bool) {
	var entry models.FoodEntry
	err := s.db.WithContext(ctx).
		Where("normalized_name = ?", normalizedName).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		return nil, false
	}
	return &entry, true
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.Add(24 * time.Hour)
}

// ListMeals returns the meals logged on a given day, reconstructed from
// their entries.
func (s *NutritionService) ListMeals(ctx context.Context, day time.Time) ([]types.MealGroupResponse, error) {
	start, end := dayBounds(day)

	var entries []models.FoodEntry
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start, end).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}

	return groupEntries(entries), nil
}

func groupEntries(entries []models.FoodEntry) []types.MealGroupResponse {
	byGroup := make(map[string]*types.MealGroupResponse)
	var order []string

	for _, entry := range entries {
		groupID := entry.MealGroupID
		if groupID == "" {
			groupID = entry.ID.String()
		}
		meal, ok := byGroup[groupID]
		if !ok {
			meal = &types.MealGroupResponse{
				ID:        groupID,
				MealType:  entry.MealType,
				MealLabel: entry.MealLabel,
				Timestamp: entry.CreatedAt,
			}
			byGroup[groupID] = meal
			order = append(order, groupID)
		}

		meal.Items = append(meal.Items, types.FoodItemDistribution{
			Food:            entry.NormalizedName,
			QuantityGrams:   entry.QuantityGrams,
			CaloriesPer100g: entry.CaloriesPer100g,
			CarbsPer100g:    entry.CarbsPer100g,
			ProteinPer100g:  entry.ProteinPer100g,
			FatPer100g:      entry.FatPer100g,
			TotalCalories:   entry.TotalCalories,
			TotalCarbs:      round2(entry.CarbsPer100g * entry.QuantityGrams / 100),
			TotalProtein:    round2(entry.ProteinPer100g * entry.QuantityGrams / 100),
			TotalFat:        round2(entry.FatPer100g * entry.QuantityGrams / 100),
		})
		meal.TotalCalories = round2(meal.TotalCalories + entry.TotalCalories)
		meal.TotalCarbs = round2(meal.TotalCarbs + entry.CarbsPer100g*entry.QuantityGrams/100)
		meal.TotalProtein = round2(meal.TotalProtein + entry.ProteinPer100g*entry.QuantityGrams/100)
		meal.TotalFat = round2(meal.TotalFat + entry.FatPer100g*entry.QuantityGrams/100)
	}

	meals := make([]types.MealGroupResponse, 0, len(order))
	for _, groupID := range order {
		meals = append(meals, *byGroup[groupID])
	}
	sort.SliceStable(meals, func(i, j int) bool {
		return meals[i].Timestamp.Before(meals[j].Timestamp)
	})
	return meals
}

// DeleteMeal removes every entry of one logged meal.
func (s *NutritionService) DeleteMeal(ctx context.Context, mealGroupID string) error {
	result := s.db.WithContext(ctx).
		Where("meal_group_id = ?", mealGroupID).
		Delete(&models.FoodEntry{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete meal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFoodNotFound
	}
	return nil
}

// ListEntries returns the most recent audit entries.
func (s *NutritionService) ListEntries(ctx context.Context, limit int) ([]types.FoodEntryResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var entries []models.FoodEntry
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	responses := make([]types.FoodEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, types.FoodEntryResponse{
			ID:              entry.ID.String(),
			OriginalText:    entry.OriginalText,
			NormalizedName:  entry.NormalizedName,
			QuantityGrams:   entry.QuantityGrams,
			ProviderFoodID:  entry.ProviderFoodID,
			CaloriesPer100g: entry.CaloriesPer100g,
			TotalCalories:   entry.TotalCalories,
			CreatedAt:       entry.CreatedAt,
		})
	}
	return responses, nil
}

// DailySummary aggregates one day of logged meals into day totals.
func (s *NutritionService) DailySummary(ctx context.Context, day time.Time) (*types.FoodParseLogResponse, error) {
	meals, err := s.ListMeals(ctx, day)
	if err != nil {
		return nil, err
	}
	if len(meals) == 0 {
		return nil, ErrInsufficientData
	}

	response := &types.FoodParseLogResponse{}
	for _, meal := range meals {
		parsed := types.ParsedMeal{
			MealType:      meal.MealType,
			MealLabel:     meal.MealLabel,
			MealGroupID:   meal.ID,
			MealTimestamp: meal.Timestamp,
			Items:         meal.Items,
			TotalCalories: meal.TotalCalories,
			TotalCarbs:    meal.TotalCarbs,
			TotalProtein:  meal.TotalProtein,
			TotalFat:      meal.TotalFat,
		}
		for _, item := range meal.Items {
			parsed.TotalQuantityGrams = round2(parsed.TotalQuantityGrams + item.QuantityGrams)
		}

		response.Meals = append(response.Meals, parsed)
		response.TotalQuantityGrams = round2(response.TotalQuantityGrams + parsed.TotalQuantityGrams)
		response.TotalCalories = round2(response.TotalCalories + parsed.TotalCalories)
		response.TotalCarbs = round2(response.TotalCarbs + parsed.TotalCarbs)
		response.TotalProtein = round2(response.TotalProtein + parsed.TotalProtein)
		response.TotalFat = round2(response.TotalFat + parsed.TotalFat)
	}
	return response, nil
}
