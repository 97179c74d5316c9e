package service

import (
	"math"
	"strings"
)

// weightUnitGrams maps exact-weight units (and their Spanish variants) to a
// fixed grams multiplier. These convert without any external lookup.
var weightUnitGrams = map[string]float64{
	"g":          1.0,
	"gram":       1.0,
	"grams":      1.0,
	"gramo":      1.0,
	"gramos":     1.0,
	"kg":         1000.0,
	"kilogram":   1000.0,
	"kilograms":  1000.0,
	"kilogramo":  1000.0,
	"kilogramos": 1000.0,
	"oz":         28.3495,
	"onza":       28.3495,
	"onzas":      28.3495,
	"lb":         453.592,
	"lbs":        453.592,
	"libra":      453.592,
	"libras":     453.592,
}

// unitAliases canonicalizes volumetric and serving-like unit spellings to a
// single token used as the portion-cache key.
var unitAliases = map[string]string{
	"cup":          "cup",
	"cups":         "cup",
	"taza":         "cup",
	"tazas":        "cup",
	"tbsp":         "tablespoon",
	"tablespoon":   "tablespoon",
	"tablespoons":  "tablespoon",
	"cucharada":    "tablespoon",
	"cucharadas":   "tablespoon",
	"tsp":          "teaspoon",
	"teaspoon":     "teaspoon",
	"teaspoons":    "teaspoon",
	"cucharadita":  "teaspoon",
	"cucharaditas": "teaspoon",
	"serving":      "serving",
	"portion":      "serving",
	"porcion":      "serving",
	"porción":      "serving",
	"unit":         "piece",
	"unidad":       "piece",
	"piece":        "piece",
	"pieza":        "piece",
	"ml":           "ml",
}

// unitTokenMatch lists spellings that identify a canonical unit inside
// provider free text (portion modifiers, serving descriptions).
var unitTokenMatch = map[string][]string{
	"cup":        {"cup", "cups", "taza", "tazas"},
	"tablespoon": {"tablespoon", "tablespoons", "tbsp", "cucharada", "cucharadas"},
	"teaspoon":   {"teaspoon", "teaspoons", "tsp", "cucharadita", "cucharaditas"},
	"piece":      {"piece", "pieces", "unidad", "unidades", "pieza", "piezas"},
	"serving":    {"serving", "portion", "porcion", "porción"},
}

// NormalizeUnit lowercases, trims and alias-canonicalizes a unit token.
func NormalizeUnit(unit string) string {
	cleaned := strings.ToLower(strings.TrimSpace(unit))
	if canonical, ok := unitAliases[cleaned]; ok {
		return canonical
	}
	return cleaned
}

// IsWeightUnit reports whether the unit converts to grams by fixed multiplier.
func IsWeightUnit(unit string) bool {
	_, ok := weightUnitGrams[strings.ToLower(strings.TrimSpace(unit))]
	return ok
}

// IsServingUnit reports whether the unit represents one or more servings.
func IsServingUnit(unit string) bool {
	return NormalizeUnit(unit) == "serving"
}

// ConvertWeightToGrams converts a quantity in a weight unit to grams.
// Returns ErrUnsupportedUnit for units that need food-specific resolution.
func ConvertWeightToGrams(quantity float64, unit string) (float64, error) {
	multiplier, ok := weightUnitGrams[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return 0, ErrUnsupportedUnit
	}
	return quantity * multiplier, nil
}

// matchesUnitToken reports whether free text mentions the canonical unit.
func matchesUnitToken(text, normalizedUnit string) bool {
	tokens, ok := unitTokenMatch[normalizedUnit]
	if !ok {
		tokens = []string{normalizedUnit}
	}
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
