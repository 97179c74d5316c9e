package service

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"gorm.io/gorm"

	"github.com/novafit/nutriparse/backend/internal/connector"
	"github.com/novafit/nutriparse/backend/internal/models"
)

const (
	portionStepTimeout = 8 * time.Second

	portionConfidencePreferred = 0.95
	portionConfidenceUSDA      = 0.90
	portionConfidenceFatSecret = 0.80
	portionConfidenceOFF       = 0.70
	portionConfidenceFallback  = 0.45
)

// categoryKeywords routes a food name to its fallback category. First match
// wins, checked in declaration order.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"beverage", []string{"coffee", "cafe", "café", "tea", "te", "té", "juice", "jugo", "soda", "refresco", "gaseosa", "water", "agua", "mate", "smoothie", "cola"}},
	{"dairy", []string{"milk", "leche", "yogurt", "yogur", "yoghurt", "kefir", "cream", "crema"}},
	{"oil_fat", []string{"oil", "aceite", "butter", "mantequilla", "manteca", "margarine", "margarina", "mayonnaise", "mayonesa", "lard"}},
	{"grain_cooked", []string{"rice", "arroz", "pasta", "noodle", "fideo", "quinoa", "oat", "avena", "cereal", "couscous", "barley", "lentil", "lenteja", "bean", "frijol", "poroto", "chickpea", "garbanzo"}},
	{"protein_animal", []string{"chicken", "pollo", "beef", "carne", "res", "pork", "cerdo", "fish", "pescado", "salmon", "tuna", "atun", "atún", "turkey", "pavo", "egg", "huevo", "shrimp", "camaron", "camarón", "lamb", "cordero"}},
	{"fruit", []string{"apple", "manzana", "banana", "platano", "plátano", "orange", "naranja", "strawberry", "frutilla", "fresa", "grape", "uva", "pear", "pera", "mango", "melon", "sandia", "sandía", "berry", "kiwi", "pineapple", "anana", "fruit", "fruta"}},
	{"vegetable", []string{"broccoli", "brocoli", "brócoli", "carrot", "zanahoria", "lettuce", "lechuga", "tomato", "tomate", "spinach", "espinaca", "onion", "cebolla", "pepper", "pimiento", "cucumber", "pepino", "zucchini", "zapallo", "salad", "ensalada", "vegetable", "verdura"}},
}

// categoryUnitGrams maps category to grams per canonical unit. The ml entry
// is a density in grams per milliliter.
var categoryUnitGrams = map[string]map[string]float64{
	"beverage":       {"serving": 240, "cup": 240, "tablespoon": 15, "teaspoon": 5, "piece": 240, "ml": 1.0},
	"dairy":          {"serving": 200, "cup": 244, "tablespoon": 15, "teaspoon": 5, "piece": 200, "ml": 1.03},
	"oil_fat":        {"serving": 14, "cup": 218, "tablespoon": 14, "teaspoon": 4.5, "piece": 14, "ml": 0.92},
	"grain_cooked":   {"serving": 150, "cup": 158, "tablespoon": 10, "teaspoon": 3.3, "piece": 40, "ml": 0.8},
	"protein_animal": {"serving": 120, "cup": 140, "tablespoon": 15, "teaspoon": 5, "piece": 50, "ml": 1.0},
	"fruit":          {"serving": 140, "cup": 150, "tablespoon": 10, "teaspoon": 3.5, "piece": 120, "ml": 0.95},
	"vegetable":      {"serving": 100, "cup": 130, "tablespoon": 8, "teaspoon": 3, "piece": 80, "ml": 0.9},
	"generic":        {"serving": 100, "cup": 240, "tablespoon": 15, "teaspoon": 5, "piece": 50, "ml": 1.0},
}

// PortionResolution is a resolved grams-per-unit value with its provenance.
type PortionResolution struct {
	GramsPerUnit    float64
	Source          string
	ConfidenceScore float64
	Category        string
}

// PortionResolver turns (food, unit) pairs into gram weights. Results are
// cached in the database; resolution itself never fails, bottoming out at
// category estimates.
type PortionResolver struct {
	db        *gorm.DB
	usda      *connector.USDAConnector
	fatsecret *connector.FatSecretConnector
	off       *connector.OpenFoodFactsConnector
}

var _ IPortionResolver = (*PortionResolver)(nil)

func NewPortionResolver(db *gorm.DB, usda *connector.USDAConnector, fatsecret *connector.FatSecretConnector, off *connector.OpenFoodFactsConnector) *PortionResolver {
	return &PortionResolver{db: db, usda: usda, fatsecret: fatsecret, off: off}
}

// ResolveGrams converts a quantity in any unit to grams. Weight units convert
// directly; everything else resolves grams-per-unit through the cache and
// provider chain. preferredServing, when set, is a grams-per-serving value
// already known from the nutrition match.
func (r *PortionResolver) ResolveGrams(ctx context.Context, foodName string, quantity float64, unit string, preferredServing *float64) float64 {
	if grams, err := ConvertWeightToGrams(quantity, unit); err == nil {
		return grams
	}

	normalizedName := strings.ToLower(strings.TrimSpace(foodName))
	normalizedUnit := NormalizeUnit(unit)

	if cached, ok := r.cachedPortion(ctx, normalizedName, normalizedUnit); ok {
		return quantity * cached.GramsPerUnit
	}

	resolution := r.resolve(ctx, normalizedName, normalizedUnit, preferredServing)
	r.upsertPortion(ctx, normalizedName, normalizedUnit, resolution)
	return quantity * resolution.GramsPerUnit
}

func (r *PortionResolver) cachedPortion(ctx context.Context, normalizedName, normalizedUnit string) (*models.FoodPortionCache, bool) {
	if r.db == nil {
		return nil, false
	}
	var row models.FoodPortionCache
	err := r.db.WithContext(ctx).
		Where("normalized_name = ? AND unit_normalized = ?", normalizedName, normalizedUnit).
		First(&row).Error
	if err != nil {
		return nil, false
	}
	return &row, true
}

func (r *PortionResolver) upsertPortion(ctx context.Context, normalizedName, normalizedUnit string, resolution PortionResolution) {
	if r.db == nil {
		return
	}
	var existing models.FoodPortionCache
	err := r.db.WithContext(ctx).
		Where("normalized_name = ? AND unit_normalized = ?", normalizedName, normalizedUnit).
		First(&existing).Error
	if err == nil {
		updates := map[string]any{
			"grams_per_unit":   resolution.GramsPerUnit,
			"source":           resolution.Source,
			"confidence_score": resolution.ConfidenceScore,
			"category":         resolution.Category,
		}
		if err := r.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			log.Printf("failed to update portion cache for %q/%q: %v", normalizedName, normalizedUnit, err)
		}
		return
	}

	row := models.FoodPortionCache{
		NormalizedName:  normalizedName,
		UnitNormalized:  normalizedUnit,
		GramsPerUnit:    resolution.GramsPerUnit,
		Source:          resolution.Source,
		ConfidenceScore: resolution.ConfidenceScore,
		Category:        resolution.Category,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("failed to insert portion cache for %q/%q: %v", normalizedName, normalizedUnit, err)
	}
}

// resolve walks the provider chain for one (name, unit) pair.
func (r *PortionResolver) resolve(ctx context.Context, normalizedName, normalizedUnit string, preferredServing *float64) PortionResolution {
	category := categorize(normalizedName)

	if preferredServing != nil && *preferredServing > 0 && normalizedUnit == "serving" {
		return PortionResolution{
			GramsPerUnit:    *preferredServing,
			Source:          "preferred_serving",
			ConfidenceScore: portionConfidencePreferred,
			Category:        category,
		}
	}

	if grams, ok := r.resolveFromUSDA(ctx, normalizedName, normalizedUnit); ok {
		return PortionResolution{GramsPerUnit: grams, Source: "usda", ConfidenceScore: portionConfidenceUSDA, Category: category}
	}
	if grams, ok := r.resolveFromFatSecret(ctx, normalizedName, normalizedUnit); ok {
		return PortionResolution{GramsPerUnit: grams, Source: "fatsecret", ConfidenceScore: portionConfidenceFatSecret, Category: category}
	}
	if grams, ok := r.resolveFromOpenFoodFacts(ctx, normalizedName, normalizedUnit); ok {
		return PortionResolution{GramsPerUnit: grams, Source: "openfoodfacts", ConfidenceScore: portionConfidenceOFF, Category: category}
	}

	return PortionResolution{
		GramsPerUnit:    categoryGrams(category, normalizedUnit),
		Source:          "category_fallback",
		ConfidenceScore: portionConfidenceFallback,
		Category:        category,
	}
}

// resolveFromUSDA checks the closest USDA matches for a serving size or a
// food portion in the requested unit.
func (r *PortionResolver) resolveFromUSDA(ctx context.Context, normalizedName, normalizedUnit string) (float64, bool) {
	if r.usda == nil {
		return 0, false
	}
	stepCtx, cancel := context.WithTimeout(ctx, portionStepTimeout)
	defer cancel()

	foods, err := r.usda.RawSearch(stepCtx, normalizedName, 5)
	if err != nil || len(foods) == 0 {
		return 0, false
	}

	sort.SliceStable(foods, func(i, j int) bool {
		si := fuzzy.PartialTokenSetRatio(normalizedName, strings.ToLower(foods[i].Description))
		sj := fuzzy.PartialTokenSetRatio(normalizedName, strings.ToLower(foods[j].Description))
		return si > sj
	})
	if len(foods) > 3 {
		foods = foods[:3]
	}

	for _, food := range foods {
		// The labeled serving size only answers "serving"; a piece is not
		// necessarily one serving.
		if normalizedUnit == "serving" {
			if food.ServingSize != nil && *food.ServingSize > 0 {
				unit := strings.ToLower(strings.TrimSpace(food.ServingSizeUnit))
				if _, ok := servingGramUnits[unit]; ok {
					return *food.ServingSize, true
				}
			}
		}

		detail, err := r.usda.FoodDetail(stepCtx, food.FdcID)
		if err != nil {
			continue
		}
		for _, portion := range detail.FoodPortions {
			if portion.GramWeight <= 0 {
				continue
			}
			portionText := strings.ToLower(portion.Modifier + " " + portion.PortionDescription + " " + portion.MeasureUnit.Name)
			if !matchesUnitToken(portionText, normalizedUnit) {
				continue
			}
			amount := portion.Amount
			if amount <= 0 {
				amount = 1
			}
			return portion.GramWeight / amount, true
		}
	}
	return 0, false
}

// resolveFromFatSecret inspects metric serving weights of the closest
// FatSecret matches.
func (r *PortionResolver) resolveFromFatSecret(ctx context.Context, normalizedName, normalizedUnit string) (float64, bool) {
	if r.fatsecret == nil {
		return 0, false
	}
	stepCtx, cancel := context.WithTimeout(ctx, portionStepTimeout)
	defer cancel()

	hits, err := r.fatsecret.RawSearch(stepCtx, normalizedName)
	if err != nil || len(hits) == 0 {
		return 0, false
	}
	if len(hits) > 3 {
		hits = hits[:3]
	}

	for _, hit := range hits {
		servings, err := r.fatsecret.FoodServings(stepCtx, hit.FoodID)
		if err != nil {
			continue
		}
		for _, serving := range servings {
			description := strings.ToLower(serving.Description)
			if normalizedUnit == "serving" {
				if serving.MetricUnit == "g" {
					return serving.MetricAmount, true
				}
				continue
			}
			if serving.MetricUnit == "g" && matchesUnitToken(description, normalizedUnit) {
				return serving.MetricAmount, true
			}
		}
	}
	return 0, false
}

// resolveFromOpenFoodFacts uses product serving sizes, which only describe
// whole servings.
func (r *PortionResolver) resolveFromOpenFoodFacts(ctx context.Context, normalizedName, normalizedUnit string) (float64, bool) {
	if r.off == nil {
		return 0, false
	}
	if normalizedUnit != "serving" {
		return 0, false
	}
	stepCtx, cancel := context.WithTimeout(ctx, portionStepTimeout)
	defer cancel()

	servings := r.off.SearchServings(stepCtx, normalizedName)
	for _, serving := range servings {
		if serving.ServingGrams > 0 {
			return serving.ServingGrams, true
		}
	}
	return 0, false
}

func categorize(normalizedName string) string {
	for _, entry := range categoryKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(normalizedName, keyword) {
				return entry.category
			}
		}
	}
	return "generic"
}

func categoryGrams(category, normalizedUnit string) float64 {
	table, ok := categoryUnitGrams[category]
	if !ok {
		table = categoryUnitGrams["generic"]
	}
	if grams, ok := table[normalizedUnit]; ok {
		return grams
	}
	return table["serving"]
}
