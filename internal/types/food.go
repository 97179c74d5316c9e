package types

import "time"

// ParsedItem is a single food item extracted from free text by the parser.
type ParsedItem struct {
	Name     string  `json:"name" binding:"required,min=1,max=200"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
	Unit     string  `json:"unit" binding:"required,min=1,max=20"`
}

// NormalizedFood is the provider-agnostic nutrition record produced by every
// connector. Values are per 100 g; confidence is a clamped [0,1] heuristic.
type NormalizedFood struct {
	Name            string   `json:"name"`
	Brand           string   `json:"brand,omitempty"`
	CaloriesPer100g float64  `json:"calories_per_100g"`
	ProteinPer100g  float64  `json:"protein_per_100g"`
	FatPer100g      float64  `json:"fat_per_100g"`
	CarbsPer100g    float64  `json:"carbs_per_100g"`
	FiberPer100g    *float64 `json:"fiber_per_100g,omitempty"`
	Source          string   `json:"source"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// FoodParseRequest is the incoming payload for parse-and-log.
type FoodParseRequest struct {
	Text string `json:"text" binding:"required,min=3,max=3000"`
}

// FoodItemDistribution is the nutrition breakdown for one resolved item.
type FoodItemDistribution struct {
	Food            string  `json:"food"`
	QuantityGrams   float64 `json:"quantity_grams"`
	CaloriesPer100g float64 `json:"calories_per_100g"`
	CarbsPer100g    float64 `json:"carbs_per_100g"`
	ProteinPer100g  float64 `json:"protein_per_100g"`
	FatPer100g      float64 `json:"fat_per_100g"`
	TotalCalories   float64 `json:"total_calories"`
	TotalCarbs      float64 `json:"total_carbs"`
	TotalProtein    float64 `json:"total_protein"`
	TotalFat        float64 `json:"total_fat"`
}

// ParsedMeal is one detected meal with itemized nutrition and meal totals.
type ParsedMeal struct {
	MealType           string                 `json:"meal_type"`
	MealLabel          string                 `json:"meal_label"`
	MealGroupID        string                 `json:"meal_group_id"`
	MealTimestamp      time.Time              `json:"meal_timestamp"`
	Items              []FoodItemDistribution `json:"items"`
	TotalQuantityGrams float64                `json:"total_quantity_grams"`
	TotalCalories      float64                `json:"total_calories"`
	TotalCarbs         float64                `json:"total_carbs"`
	TotalProtein       float64                `json:"total_protein"`
	TotalFat           float64                `json:"total_fat"`
}

// FoodParseLogResponse is the meal-separated parse result with day totals.
type FoodParseLogResponse struct {
	Meals              []ParsedMeal `json:"meals"`
	TotalQuantityGrams float64      `json:"total_quantity_grams"`
	TotalCalories      float64      `json:"total_calories"`
	TotalCarbs         float64      `json:"total_carbs"`
	TotalProtein       float64      `json:"total_protein"`
	TotalFat           float64      `json:"total_fat"`
}

// MealGroupResponse is a stored meal reconstructed from its food entries.
type MealGroupResponse struct {
	ID            string                 `json:"id"`
	MealType      string                 `json:"meal_type"`
	MealLabel     string                 `json:"meal_label"`
	Timestamp     time.Time              `json:"timestamp"`
	Items         []FoodItemDistribution `json:"items"`
	TotalCalories float64                `json:"total_calories"`
	TotalCarbs    float64                `json:"total_carbs"`
	TotalProtein  float64                `json:"total_protein"`
	TotalFat      float64                `json:"total_fat"`
}

// FoodEntryResponse is the audit-record shape returned to callers.
type FoodEntryResponse struct {
	ID              string    `json:"id"`
	OriginalText    string    `json:"original_text"`
	NormalizedName  string    `json:"normalized_name"`
	QuantityGrams   float64   `json:"quantity_grams"`
	ProviderFoodID  string    `json:"provider_food_id"`
	CaloriesPer100g float64   `json:"calories_per_100g"`
	TotalCalories   float64   `json:"total_calories"`
	CreatedAt       time.Time `json:"created_at"`
}
