package service

import (
	"context"
	"log"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/novafit/nutriparse/backend/internal/connector"
)

const (
	minSimilarityThreshold = 55.0
	matcherPoolLimit       = 10
	matcherPageSize        = 5
)

// MatchedFood is a USDA food chosen as the best match for a query, with
// per-100g nutrition extracted.
type MatchedFood struct {
	FdcID            int
	Description      string
	DataType         string
	Similarity       float64
	CaloriesPer100g  float64
	ProteinPer100g   float64
	FatPer100g       float64
	CarbsPer100g     float64
	ServingSizeGrams *float64
}

// MatcherService picks the USDA food that best matches a parsed item name,
// using fuzzy similarity plus food-domain scoring heuristics.
type MatcherService struct {
	usda *connector.USDAConnector
}

var _ IMatcherService = (*MatcherService)(nil)

func NewMatcherService(usda *connector.USDAConnector) *MatcherService {
	return &MatcherService{usda: usda}
}

var grainStarchTokens = []string{"rice", "pasta", "noodle", "bean", "lentil", "quinoa", "oat", "potato", "chickpea"}

var preparationStates = []string{"cooked", "boiled", "fried", "baked", "grilled", "roasted", "steamed", "raw"}

// plainQueryVariants rewrites ambiguous plain names so USDA's canonical
// descriptions rank first.
var plainQueryVariants = map[string][]string{
	"coffee": {"coffee brewed", "coffee"},
	"milk":   {"milk fluid", "milk"},
}

// queryVariants expands a query into the ordered list of searches to pool.
func queryVariants(query string) []string {
	normalized := strings.ToLower(strings.TrimSpace(query))

	if variants, ok := plainQueryVariants[normalized]; ok {
		return variants
	}

	if isGrainStarch(normalized) && !hasPreparationState(normalized) {
		return []string{normalized + " cooked", normalized}
	}

	return []string{normalized}
}

func isGrainStarch(query string) bool {
	for _, token := range grainStarchTokens {
		if strings.Contains(query, token) {
			return true
		}
	}
	return false
}

func hasPreparationState(query string) bool {
	for _, state := range preparationStates {
		if strings.Contains(query, state) {
			return true
		}
	}
	return false
}

// Match searches USDA with query variants, selects the highest-weighted food,
// and accepts it only when its raw similarity clears the floor. The weighting
// bonuses order candidates; they never move the acceptance boundary.
func (s *MatcherService) Match(ctx context.Context, query string) (*MatchedFood, error) {
	pool, err := s.candidatePool(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrFoodNotFound
	}

	normalizedQuery := strings.ToLower(strings.TrimSpace(query))

	best := -1
	bestScore := -1.0
	bestSimilarity := 0.0
	for i, food := range pool {
		score, similarity := scoreCandidate(normalizedQuery, food)
		if score > bestScore {
			best = i
			bestScore = score
			bestSimilarity = similarity
		}
	}

	if bestSimilarity < minSimilarityThreshold {
		log.Printf("best match for %q has similarity %.1f, below floor", query, bestSimilarity)
		return nil, ErrLowSimilarityMatch
	}

	return extractMatch(pool[best], bestSimilarity)
}

func (s *MatcherService) candidatePool(ctx context.Context, query string) ([]connector.USDAFood, error) {
	var pool []connector.USDAFood
	seen := make(map[int]struct{})

	for _, variant := range queryVariants(query) {
		foods, err := s.usda.RawSearch(ctx, variant, matcherPageSize)
		if err != nil {
			if strings.Contains(err.Error(), "api key") {
				return nil, ErrMissingUSDAAPIKey
			}
			return nil, ErrUSDARequestFailed
		}
		for _, food := range foods {
			if _, ok := seen[food.FdcID]; ok {
				continue
			}
			seen[food.FdcID] = struct{}{}
			pool = append(pool, food)
			if len(pool) >= matcherPoolLimit {
				return pool, nil
			}
		}
	}
	return pool, nil
}

// scoreCandidate combines fuzzy similarity with category, preparation, and
// semantic adjustments. The weighted score ranks candidates; the raw
// similarity is what the acceptance floor applies to.
func scoreCandidate(normalizedQuery string, food connector.USDAFood) (weighted, similarity float64) {
	description := strings.ToLower(food.Description)

	similarity = float64(fuzzy.TokenSortRatio(normalizedQuery, description))
	if partial := float64(fuzzy.PartialTokenSetRatio(normalizedQuery, description)); partial > similarity {
		similarity = partial
	}

	weighted = similarity
	weighted += categoryBonus(food.DataType)
	weighted += preparationAlignment(normalizedQuery, description)
	weighted += semanticAdjustments(normalizedQuery, description)
	return weighted, similarity
}

// categoryBonus prefers curated USDA data types over branded entries.
func categoryBonus(dataType string) float64 {
	switch strings.ToLower(dataType) {
	case "foundation":
		return 12
	case "sr legacy":
		return 10
	case "survey (fndds)":
		return 6
	case "branded":
		return -6
	default:
		return 0
	}
}

// prepRule scores a description against the preparation state of the query.
type prepRule struct {
	queryStates    []string
	descStates     []string
	aligned        float64
	conflictStates []string
	conflict       float64
}

var cookedFamily = []string{"cooked", "boiled", "baked", "grilled", "roasted", "steamed"}

var prepRules = []prepRule{
	{queryStates: []string{"fried"}, descStates: []string{"fried"}, aligned: 10, conflictStates: []string{"raw"}, conflict: -10},
	{queryStates: cookedFamily, descStates: cookedFamily, aligned: 8, conflictStates: []string{"raw"}, conflict: -8},
	{queryStates: []string{"raw"}, descStates: []string{"raw"}, aligned: 8, conflictStates: cookedFamily, conflict: -8},
}

func containsAny(text string, states []string) bool {
	for _, state := range states {
		if strings.Contains(text, state) {
			return true
		}
	}
	return false
}

func preparationAlignment(normalizedQuery, description string) float64 {
	var adjustment float64
	matchedRule := false

	for _, rule := range prepRules {
		if !containsAny(normalizedQuery, rule.queryStates) {
			continue
		}
		matchedRule = true
		if containsAny(description, rule.descStates) {
			adjustment += rule.aligned
		}
		if containsAny(description, rule.conflictStates) {
			adjustment += rule.conflict
		}
	}

	// Fried queries still lose a little to generically cooked entries.
	if strings.Contains(normalizedQuery, "fried") && !strings.Contains(description, "fried") && strings.Contains(description, "cooked") {
		adjustment -= 3
	}

	// Stateless grain queries lean toward cooked entries since portions are
	// logged as eaten.
	if !matchedRule && isGrainStarch(normalizedQuery) && !hasPreparationState(normalizedQuery) {
		if strings.Contains(description, "cooked") {
			adjustment += 8
		}
		if strings.Contains(description, "raw") {
			adjustment -= 3
		}
	}

	return adjustment
}

var animalProteinTokens = []string{"chicken", "beef", "pork", "fish", "turkey", "lamb", "shrimp", "salmon", "tuna", "egg"}

func semanticAdjustments(normalizedQuery, description string) float64 {
	var adjustment float64

	queryTokens := strings.Fields(normalizedQuery)

	if strings.Contains(description, "meatless") {
		for _, token := range animalProteinTokens {
			if strings.Contains(normalizedQuery, token) {
				adjustment -= 20
				break
			}
		}
	}

	descTokens := strings.FieldsFunc(description, func(r rune) bool {
		return r == ' ' || r == ','
	})
	if len(descTokens) > 0 && len(queryTokens) > 0 {
		first := descTokens[0]
		for _, token := range queryTokens {
			if first == token {
				adjustment += 8
				break
			}
		}
	}

	// "X with Y" dish heads describe composites ("Rice with chicken");
	// reject them unless the query leads with the same component. Only the
	// head segment counts: "prepared with tap water" further along a USDA
	// description is not a composite dish.
	head := description
	if comma := strings.Index(description, ","); comma != -1 {
		head = description[:comma]
	}
	if idx := strings.Index(head, " with "); idx != -1 && len(queryTokens) > 0 {
		withTokens := strings.Fields(head[idx+len(" with "):])
		if len(withTokens) > 0 && withTokens[0] != queryTokens[0] {
			adjustment -= 40
		}
	}

	return adjustment
}

var servingGramUnits = map[string]struct{}{
	"g":     {},
	"gram":  {},
	"grams": {},
	"gm":    {},
}

// extractMatch pulls per-100g nutrition out of the winning candidate.
// similarity is the raw fuzzy similarity, not the weighted ranking score.
func extractMatch(food connector.USDAFood, similarity float64) (*MatchedFood, error) {
	matched := &MatchedFood{
		FdcID:       food.FdcID,
		Description: food.Description,
		DataType:    food.DataType,
		Similarity:  similarity,
	}

	var calories *float64
	for _, nutrient := range food.Nutrients {
		name := strings.ToLower(nutrient.Name)
		unit := strings.ToUpper(nutrient.Unit)

		if strings.Contains(name, "energy") && unit == "KCAL" {
			value := nutrient.Value
			calories = &value
			continue
		}
		if unit != "G" {
			continue
		}
		switch {
		case nutrient.Number == "1003" || strings.Contains(name, "protein"):
			matched.ProteinPer100g = nutrient.Value
		case nutrient.Number == "1004" || strings.Contains(name, "total lipid"):
			matched.FatPer100g = nutrient.Value
		case nutrient.Number == "1005" || strings.Contains(name, "carbohydrate"):
			matched.CarbsPer100g = nutrient.Value
		}
	}

	if calories == nil {
		return nil, ErrNoCalorieData
	}
	matched.CaloriesPer100g = *calories

	if food.ServingSize != nil && *food.ServingSize > 0 {
		unit := strings.ToLower(strings.TrimSpace(food.ServingSizeUnit))
		if _, ok := servingGramUnits[unit]; ok {
			grams := *food.ServingSize
			matched.ServingSizeGrams = &grams
		}
	}

	return matched, nil
}
