package main

import (
	"log"

	"github.com/novafit/nutriparse/backend/config"
	"github.com/novafit/nutriparse/backend/internal/database"
	"github.com/novafit/nutriparse/backend/internal/models"
)

// seedRows are curated grams-per-unit values for foods users log constantly.
// Seeding them keeps first requests off the portion providers.
var seedRows = []models.FoodPortionCache{
	{NormalizedName: "rice", UnitNormalized: "cup", GramsPerUnit: 158, Source: "usda", ConfidenceScore: 0.90, Category: "grain_cooked"},
	{NormalizedName: "rice", UnitNormalized: "serving", GramsPerUnit: 150, Source: "usda", ConfidenceScore: 0.90, Category: "grain_cooked"},
	{NormalizedName: "coffee", UnitNormalized: "cup", GramsPerUnit: 240, Source: "usda", ConfidenceScore: 0.90, Category: "beverage"},
	{NormalizedName: "milk", UnitNormalized: "cup", GramsPerUnit: 244, Source: "usda", ConfidenceScore: 0.90, Category: "dairy"},
	{NormalizedName: "milk", UnitNormalized: "ml", GramsPerUnit: 1.03, Source: "usda", ConfidenceScore: 0.90, Category: "dairy"},
	{NormalizedName: "olive oil", UnitNormalized: "tablespoon", GramsPerUnit: 13.5, Source: "usda", ConfidenceScore: 0.90, Category: "oil_fat"},
	{NormalizedName: "egg", UnitNormalized: "piece", GramsPerUnit: 50, Source: "usda", ConfidenceScore: 0.90, Category: "protein_animal"},
	{NormalizedName: "banana", UnitNormalized: "piece", GramsPerUnit: 118, Source: "usda", ConfidenceScore: 0.90, Category: "fruit"},
	{NormalizedName: "apple", UnitNormalized: "piece", GramsPerUnit: 182, Source: "usda", ConfidenceScore: 0.90, Category: "fruit"},
	{NormalizedName: "bread", UnitNormalized: "slice", GramsPerUnit: 28, Source: "usda", ConfidenceScore: 0.90, Category: "grain_cooked"},
	{NormalizedName: "chicken breast", UnitNormalized: "piece", GramsPerUnit: 172, Source: "usda", ConfidenceScore: 0.90, Category: "protein_animal"},
	{NormalizedName: "yogurt", UnitNormalized: "serving", GramsPerUnit: 170, Source: "usda", ConfidenceScore: 0.90, Category: "dairy"},
	{NormalizedName: "oatmeal", UnitNormalized: "cup", GramsPerUnit: 234, Source: "usda", ConfidenceScore: 0.90, Category: "grain_cooked"},
	{NormalizedName: "pasta", UnitNormalized: "cup", GramsPerUnit: 140, Source: "usda", ConfidenceScore: 0.90, Category: "grain_cooked"},
	{NormalizedName: "orange juice", UnitNormalized: "cup", GramsPerUnit: 248, Source: "usda", ConfidenceScore: 0.90, Category: "beverage"},
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	seeded := 0
	for _, row := range seedRows {
		var existing models.FoodPortionCache
		err := db.Where("normalized_name = ? AND unit_normalized = ?", row.NormalizedName, row.UnitNormalized).
			First(&existing).Error
		if err == nil {
			continue
		}
		if createErr := db.Create(&row).Error; createErr != nil {
			log.Printf("Failed to seed %s/%s: %v", row.NormalizedName, row.UnitNormalized, createErr)
			continue
		}
		seeded++
	}

	log.Printf("Seeded %d portion cache rows (%d already present)", seeded, len(seedRows)-seeded)
}
