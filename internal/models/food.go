package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FoodEntry is the append-only audit record persisted for every resolved food
// item. Entries are never updated after creation; recent entries double as a
// local-name-match signal for search ranking.
type FoodEntry struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OriginalText    string    `gorm:"size:255;not null" json:"original_text"`
	NormalizedName  string    `gorm:"size:200;not null;index" json:"normalized_name"`
	QuantityGrams   float64   `gorm:"not null" json:"quantity_grams"`
	ProviderFoodID  string    `gorm:"size:50;not null" json:"provider_food_id"`
	CaloriesPer100g float64   `gorm:"not null" json:"calories_per_100g"`
	CarbsPer100g    float64   `json:"carbs_per_100g"`
	ProteinPer100g  float64   `json:"protein_per_100g"`
	FatPer100g      float64   `json:"fat_per_100g"`
	TotalCalories   float64   `gorm:"not null" json:"total_calories"`
	MealType        string    `gorm:"size:20" json:"meal_type"`
	MealGroupID     string    `gorm:"size:64;index" json:"meal_group_id"`
	MealLabel       string    `gorm:"size:100" json:"meal_label"`
	CreatedAt       time.Time `json:"created_at"`
}

func (FoodEntry) TableName() string {
	return "food_entries"
}

// BeforeCreate assigns the ID so sqlite test databases work without a
// server-side uuid default.
func (e *FoodEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// FoodPortionCache holds resolved grams-per-unit values keyed by normalized
// food name and canonical unit. At most one live row exists per key; a
// resolution either inserts the row or overwrites its value in place.
type FoodPortionCache struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	NormalizedName  string    `gorm:"size:200;not null;index:idx_portion_key" json:"normalized_name"`
	UnitNormalized  string    `gorm:"size:50;not null;index:idx_portion_key" json:"unit_normalized"`
	GramsPerUnit    float64   `gorm:"not null" json:"grams_per_unit"`
	Source          string    `gorm:"size:50;not null" json:"source"`
	ConfidenceScore float64   `gorm:"not null;default:0" json:"confidence_score"`
	Category        string    `gorm:"size:50" json:"category"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (FoodPortionCache) TableName() string {
	return "food_portion_cache"
}

func (c *FoodPortionCache) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
