package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/novafit/nutriparse/backend/internal/types"
)

const (
	fatSecretDefaultAPIURL   = "https://platform.fatsecret.com/rest/server.api"
	fatSecretDefaultTokenURL = "https://oauth.fatsecret.com/connect/token"
	fatSecretConfidence      = 0.80
	fatSecretSearchLimit     = 5
)

// FatSecretConnector searches the FatSecret platform API using OAuth2
// client-credentials authentication.
type FatSecretConnector struct {
	apiURL string
	oauth  *clientcredentials.Config
	client *http.Client
}

var _ Connector = (*FatSecretConnector)(nil)

func NewFatSecretConnector(clientID, clientSecret string) *FatSecretConnector {
	return &FatSecretConnector{
		apiURL: fatSecretDefaultAPIURL,
		oauth: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     fatSecretDefaultTokenURL,
			Scopes:       []string{"basic"},
		},
		client: &http.Client{Timeout: 8 * time.Second},
	}
}

func (c *FatSecretConnector) SourceName() string {
	return "fatsecret"
}

func (c *FatSecretConnector) configured() bool {
	return c.oauth.ClientID != "" && c.oauth.ClientSecret != ""
}

// fatSecretFoodList tolerates the API returning a single food object where a
// list is expected.
type fatSecretFoodList struct {
	Food json.RawMessage `json:"food"`
}

type fatSecretFood struct {
	FoodID          string `json:"food_id"`
	FoodName        string `json:"food_name"`
	BrandName       string `json:"brand_name"`
	FoodDescription string `json:"food_description"`
}

type fatSecretSearchResponse struct {
	FoodsSearch struct {
		Results fatSecretFoodList `json:"results"`
	} `json:"foods_search"`
}

// Search queries foods.search.v3 and normalizes hits whose description
// carries per-100g values. Any failure yields an empty result set.
func (c *FatSecretConnector) Search(ctx context.Context, query string) []types.NormalizedFood {
	foods, err := c.rawSearch(ctx, query)
	if err != nil {
		log.Printf("fatsecret search failed for %q: %v", query, err)
		return nil
	}

	var results []types.NormalizedFood
	for i, food := range foods {
		if i >= 3 {
			break
		}
		normalized, ok := normalizeFatSecretFood(food)
		if !ok {
			continue
		}
		results = append(results, normalized)
	}
	return results
}

func (c *FatSecretConnector) rawSearch(ctx context.Context, query string) ([]fatSecretFood, error) {
	if !c.configured() {
		return nil, fmt.Errorf("fatsecret credentials not configured")
	}

	params := url.Values{}
	params.Set("method", "foods.search.v3")
	params.Set("search_expression", query)
	params.Set("max_results", strconv.Itoa(fatSecretSearchLimit))
	params.Set("format", "json")

	body, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	var decoded fatSecretSearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}
	return decodeFoodList(decoded.FoodsSearch.Results.Food)
}

// decodeFoodList handles the food node being either an object or an array.
func decodeFoodList(raw json.RawMessage) ([]fatSecretFood, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var foods []fatSecretFood
		if err := json.Unmarshal(raw, &foods); err != nil {
			return nil, err
		}
		return foods, nil
	}
	var food fatSecretFood
	if err := json.Unmarshal(raw, &food); err != nil {
		return nil, err
	}
	return []fatSecretFood{food}, nil
}

func (c *FatSecretConnector) call(ctx context.Context, params url.Values) ([]byte, error) {
	token, err := c.oauth.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("fatsecret token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	token.SetAuthHeader(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fatsecret returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

var (
	fsCaloriesPattern = regexp.MustCompile(`(?i)calories:\s*([0-9.]+)`)
	fsFatPattern      = regexp.MustCompile(`(?i)fat:\s*([0-9.]+)\s*g`)
	fsCarbsPattern    = regexp.MustCompile(`(?i)carbs?:\s*([0-9.]+)\s*g`)
	fsProteinPattern  = regexp.MustCompile(`(?i)protein:\s*([0-9.]+)\s*g`)
	fsFiberPattern    = regexp.MustCompile(`(?i)fiber:\s*([0-9.]+)\s*g`)
)

// normalizeFatSecretFood parses per-100g values out of the description text.
// Descriptions scoped to another serving basis are skipped.
func normalizeFatSecretFood(food fatSecretFood) (types.NormalizedFood, bool) {
	description := strings.ToLower(food.FoodDescription)
	if !strings.Contains(description, "per 100g") && !strings.Contains(description, "100g") {
		return types.NormalizedFood{}, false
	}

	calories := extractMacro(fsCaloriesPattern, food.FoodDescription)
	if calories == nil {
		return types.NormalizedFood{}, false
	}

	result := types.NormalizedFood{
		Name:            food.FoodName,
		Brand:           food.BrandName,
		CaloriesPer100g: *calories,
		Source:          "fatsecret",
		ConfidenceScore: ClampConfidence(fatSecretConfidence),
	}
	if fat := extractMacro(fsFatPattern, food.FoodDescription); fat != nil {
		result.FatPer100g = *fat
	}
	if carbs := extractMacro(fsCarbsPattern, food.FoodDescription); carbs != nil {
		result.CarbsPer100g = *carbs
	}
	if protein := extractMacro(fsProteinPattern, food.FoodDescription); protein != nil {
		result.ProteinPer100g = *protein
	}
	result.FiberPer100g = extractMacro(fsFiberPattern, food.FoodDescription)

	return result, true
}

func extractMacro(pattern *regexp.Regexp, text string) *float64 {
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	return &value
}

// FoodServing is one metric serving of a FatSecret food record.
type FoodServing struct {
	MetricAmount float64
	MetricUnit   string
	Description  string
}

type fatSecretServingsResponse struct {
	Food struct {
		FoodID   string `json:"food_id"`
		FoodName string `json:"food_name"`
		Servings struct {
			Serving json.RawMessage `json:"serving"`
		} `json:"servings"`
	} `json:"food"`
}

type fatSecretServing struct {
	MetricServingAmount string `json:"metric_serving_amount"`
	MetricServingUnit   string `json:"metric_serving_unit"`
	ServingDescription  string `json:"serving_description"`
}

// FoodServings fetches food.get.v4 and returns servings with metric amounts
// in grams or milliliters.
func (c *FatSecretConnector) FoodServings(ctx context.Context, foodID string) ([]FoodServing, error) {
	params := url.Values{}
	params.Set("method", "food.get.v4")
	params.Set("food_id", foodID)
	params.Set("format", "json")

	body, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	var decoded fatSecretServingsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}

	rawServings, err := decodeServingList(decoded.Food.Servings.Serving)
	if err != nil {
		return nil, err
	}

	var servings []FoodServing
	for _, raw := range rawServings {
		amount, err := strconv.ParseFloat(raw.MetricServingAmount, 64)
		if err != nil || amount <= 0 {
			continue
		}
		unit := strings.ToLower(strings.TrimSpace(raw.MetricServingUnit))
		if unit != "g" && unit != "ml" {
			continue
		}
		servings = append(servings, FoodServing{
			MetricAmount: amount,
			MetricUnit:   unit,
			Description:  raw.ServingDescription,
		})
	}
	return servings, nil
}

func decodeServingList(raw json.RawMessage) ([]fatSecretServing, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var servings []fatSecretServing
		if err := json.Unmarshal(raw, &servings); err != nil {
			return nil, err
		}
		return servings, nil
	}
	var serving fatSecretServing
	if err := json.Unmarshal(raw, &serving); err != nil {
		return nil, err
	}
	return []fatSecretServing{serving}, nil
}

// RawSearch exposes provider-shaped hits for portion resolution.
func (c *FatSecretConnector) RawSearch(ctx context.Context, query string) ([]FatSecretHit, error) {
	foods, err := c.rawSearch(ctx, query)
	if err != nil {
		return nil, err
	}
	hits := make([]FatSecretHit, 0, len(foods))
	for _, food := range foods {
		hits = append(hits, FatSecretHit{FoodID: food.FoodID, FoodName: food.FoodName})
	}
	return hits, nil
}

type FatSecretHit struct {
	FoodID   string
	FoodName string
}

// SetEndpoints overrides the API and token endpoints, used by tests.
func (c *FatSecretConnector) SetEndpoints(apiURL, tokenURL string) {
	c.apiURL = apiURL
	c.oauth.TokenURL = tokenURL
}
