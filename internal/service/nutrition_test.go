package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novafit/nutriparse/backend/internal/models"
	"github.com/novafit/nutriparse/backend/internal/types"
)

// stubParser returns canned items per section text.
type stubParser struct {
	sections []MealSection
	items    map[string][]types.ParsedItem
	err      error
}

var _ IParserService = (*stubParser)(nil)

func (s *stubParser) SplitTextByMealType(text string) []MealSection {
	if s.sections != nil {
		return s.sections
	}
	return []MealSection{{MealType: "meal", Text: text}}
}

func (s *stubParser) Extract(ctx context.Context, text string) ([]types.ParsedItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.items[text], nil
}

// stubMatcher returns canned matches per food name.
type stubMatcher struct {
	matches map[string]*MatchedFood
}

var _ IMatcherService = (*stubMatcher)(nil)

func (s *stubMatcher) Match(ctx context.Context, query string) (*MatchedFood, error) {
	if matched, ok := s.matches[query]; ok {
		return matched, nil
	}
	return nil, ErrFoodNotFound
}

// stubPortions resolves every serving-like unit to a fixed weight.
type stubPortions struct {
	gramsPerUnit float64
}

var _ IPortionResolver = (*stubPortions)(nil)

func (s *stubPortions) ResolveGrams(ctx context.Context, foodName string, quantity float64, unit string, preferredServing *float64) float64 {
	if grams, err := ConvertWeightToGrams(quantity, unit); err == nil {
		return grams
	}
	if preferredServing != nil {
		return quantity * *preferredServing
	}
	return quantity * s.gramsPerUnit
}

func riceMatch() *MatchedFood {
	return &MatchedFood{
		FdcID: 10, Description: "Rice, white, cooked", Similarity: 95,
		CaloriesPer100g: 130, ProteinPer100g: 2.7, FatPer100g: 0.3, CarbsPer100g: 28,
	}
}

func TestParseAndLogSingleMeal(t *testing.T) {
	db := newTestDB(t)
	parser := &stubParser{
		items: map[string][]types.ParsedItem{
			"200 gramos de arroz": {{Name: "rice", Quantity: 200, Unit: "g"}},
		},
	}
	matcher := &stubMatcher{matches: map[string]*MatchedFood{"rice": riceMatch()}}
	svc := NewNutritionService(db, parser, matcher, &stubPortions{gramsPerUnit: 100})

	result, err := svc.ParseAndLog(context.Background(), "200 gramos de arroz")
	require.NoError(t, err)
	require.Len(t, result.Meals, 1)
	require.Len(t, result.Meals[0].Items, 1)

	item := result.Meals[0].Items[0]
	assert.Equal(t, 200.0, item.QuantityGrams)
	assert.Equal(t, 260.0, item.TotalCalories)
	assert.Equal(t, 56.0, item.TotalCarbs)
	assert.Equal(t, 260.0, result.TotalCalories)

	var entries []models.FoodEntry
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "rice", entries[0].NormalizedName)
	assert.Equal(t, "meal", entries[0].MealType)
	assert.NotEmpty(t, entries[0].MealGroupID)
}

func TestParseAndLogMultipleMeals(t *testing.T) {
	db := newTestDB(t)
	parser := &stubParser{
		sections: []MealSection{
			{MealType: "breakfast", Text: "huevos"},
			{MealType: "dinner", Text: "arroz"},
		},
		items: map[string][]types.ParsedItem{
			"huevos": {{Name: "egg", Quantity: 100, Unit: "g"}},
			"arroz":  {{Name: "rice", Quantity: 100, Unit: "g"}},
		},
	}
	matcher := &stubMatcher{matches: map[string]*MatchedFood{
		"egg":  {FdcID: 1, Description: "Egg, whole, cooked", CaloriesPer100g: 155, ProteinPer100g: 13, FatPer100g: 11, CarbsPer100g: 1.1},
		"rice": riceMatch(),
	}}
	svc := NewNutritionService(db, parser, matcher, &stubPortions{gramsPerUnit: 100})

	result, err := svc.ParseAndLog(context.Background(), "desayuné huevos y cené arroz")
	require.NoError(t, err)
	require.Len(t, result.Meals, 2)

	assert.Equal(t, "breakfast", result.Meals[0].MealType)
	assert.Equal(t, "Breakfast", result.Meals[0].MealLabel)
	assert.Equal(t, "dinner", result.Meals[1].MealType)
	assert.NotEqual(t, result.Meals[0].MealGroupID, result.Meals[1].MealGroupID)

	assert.Equal(t, 155.0+130.0, result.TotalCalories)

	var entries []models.FoodEntry
	require.NoError(t, db.Find(&entries).Error)
	assert.Len(t, entries, 2)
}

func TestParseAndLogServingUnitUsesResolver(t *testing.T) {
	db := newTestDB(t)
	parser := &stubParser{
		items: map[string][]types.ParsedItem{
			"una taza de arroz": {{Name: "rice", Quantity: 1, Unit: "cup"}},
		},
	}
	matcher := &stubMatcher{matches: map[string]*MatchedFood{"rice": riceMatch()}}
	svc := NewNutritionService(db, parser, matcher, &stubPortions{gramsPerUnit: 158})

	result, err := svc.ParseAndLog(context.Background(), "una taza de arroz")
	require.NoError(t, err)
	item := result.Meals[0].Items[0]
	assert.Equal(t, 158.0, item.QuantityGrams)
	assert.Equal(t, 205.4, item.TotalCalories)
}

func TestParseAndLogPropagatesParserErrors(t *testing.T) {
	db := newTestDB(t)
	parser := &stubParser{err: ErrInvalidDomain}
	svc := NewNutritionService(db, parser, &stubMatcher{}, &stubPortions{})

	_, err := svc.ParseAndLog(context.Background(), "me corté el pelo")
	assert.ErrorIs(t, err, ErrInvalidDomain)
}

func TestParseAndLogPropagatesMatchErrors(t *testing.T) {
	db := newTestDB(t)
	parser := &stubParser{
		items: map[string][]types.ParsedItem{
			"algo raro": {{Name: "unknown thing", Quantity: 1, Unit: "serving"}},
		},
	}
	svc := NewNutritionService(db, parser, &stubMatcher{}, &stubPortions{gramsPerUnit: 100})

	_, err := svc.ParseAndLog(context.Background(), "algo raro")
	assert.ErrorIs(t, err, ErrFoodNotFound)
}

func TestParseAndLogReusesRecentEntryForWeightUnits(t *testing.T) {
	db := newTestDB(t)
	seed := models.FoodEntry{
		OriginalText: "seed", NormalizedName: "rice", QuantityGrams: 100,
		ProviderFoodID: "10", CaloriesPer100g: 130, ProteinPer100g: 2.7,
		FatPer100g: 0.3, CarbsPer100g: 28, TotalCalories: 130, MealType: "meal",
	}
	require.NoError(t, db.Create(&seed).Error)

	parser := &stubParser{
		items: map[string][]types.ParsedItem{
			"150 gramos de arroz": {{Name: "rice", Quantity: 150, Unit: "g"}},
		},
	}
	// matcher would fail; the audit short-circuit must avoid it
	svc := NewNutritionService(db, parser, &stubMatcher{}, &stubPortions{gramsPerUnit: 100})

	result, err := svc.ParseAndLog(context.Background(), "150 gramos de arroz")
	require.NoError(t, err)
	item := result.Meals[0].Items[0]
	assert.Equal(t, 150.0, item.QuantityGrams)
	assert.Equal(t, 195.0, item.TotalCalories)
}

func TestListMealsGroupsByMealGroup(t *testing.T) {
	db := newTestDB(t)
	svc := NewNutritionService(db, &stubParser{}, &stubMatcher{}, &stubPortions{})
	ctx := context.Background()

	entries := []models.FoodEntry{
		{OriginalText: "a", NormalizedName: "egg", QuantityGrams: 100, ProviderFoodID: "1",
			CaloriesPer100g: 155, TotalCalories: 155, MealType: "breakfast", MealGroupID: "g1", MealLabel: "Breakfast"},
		{OriginalText: "a", NormalizedName: "toast", QuantityGrams: 40, ProviderFoodID: "2",
			CaloriesPer100g: 265, TotalCalories: 106, MealType: "breakfast", MealGroupID: "g1", MealLabel: "Breakfast"},
		{OriginalText: "b", NormalizedName: "rice", QuantityGrams: 150, ProviderFoodID: "3",
			CaloriesPer100g: 130, TotalCalories: 195, MealType: "dinner", MealGroupID: "g2", MealLabel: "Dinner"},
	}
	for i := range entries {
		require.NoError(t, db.Create(&entries[i]).Error)
	}

	meals, err := svc.ListMeals(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, meals, 2)

	assert.Equal(t, "g1", meals[0].ID)
	assert.Len(t, meals[0].Items, 2)
	assert.Equal(t, 261.0, meals[0].TotalCalories)
	assert.Equal(t, "g2", meals[1].ID)
	assert.Len(t, meals[1].Items, 1)
}

func TestDeleteMeal(t *testing.T) {
	db := newTestDB(t)
	svc := NewNutritionService(db, &stubParser{}, &stubMatcher{}, &stubPortions{})
	ctx := context.Background()

	entry := models.FoodEntry{OriginalText: "a", NormalizedName: "egg", QuantityGrams: 100,
		ProviderFoodID: "1", CaloriesPer100g: 155, TotalCalories: 155, MealGroupID: "g1"}
	require.NoError(t, db.Create(&entry).Error)

	require.NoError(t, svc.DeleteMeal(ctx, "g1"))

	var count int64
	db.Model(&models.FoodEntry{}).Count(&count)
	assert.Equal(t, int64(0), count)

	assert.ErrorIs(t, svc.DeleteMeal(ctx, "g1"), ErrFoodNotFound)
}

func TestDailySummaryEmptyDay(t *testing.T) {
	db := newTestDB(t)
	svc := NewNutritionService(db, &stubParser{}, &stubMatcher{}, &stubPortions{})

	_, err := svc.DailySummary(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestDailySummaryTotals(t *testing.T) {
	db := newTestDB(t)
	svc := NewNutritionService(db, &stubParser{}, &stubMatcher{}, &stubPortions{})
	ctx := context.Background()

	entries := []models.FoodEntry{
		{OriginalText: "a", NormalizedName: "egg", QuantityGrams: 100, ProviderFoodID: "1",
			CaloriesPer100g: 155, TotalCalories: 155, MealType: "breakfast", MealGroupID: "g1"},
		{OriginalText: "b", NormalizedName: "rice", QuantityGrams: 150, ProviderFoodID: "3",
			CaloriesPer100g: 130, TotalCalories: 195, MealType: "dinner", MealGroupID: "g2"},
	}
	for i := range entries {
		require.NoError(t, db.Create(&entries[i]).Error)
	}

	summary, err := svc.DailySummary(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, summary.Meals, 2)
	assert.Equal(t, 350.0, summary.TotalCalories)
	assert.Equal(t, 250.0, summary.TotalQuantityGrams)
}

func TestListEntries(t *testing.T) {
	db := newTestDB(t)
	svc := NewNutritionService(db, &stubParser{}, &stubMatcher{}, &stubPortions{})
	ctx := context.Background()

	for _, name := range []string{"egg", "rice", "milk"} {
		entry := models.FoodEntry{OriginalText: name, NormalizedName: name, QuantityGrams: 100,
			ProviderFoodID: "1", CaloriesPer100g: 100, TotalCalories: 100}
		require.NoError(t, db.Create(&entry).Error)
	}

	entries, err := svc.ListEntries(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
