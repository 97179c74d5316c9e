package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/novafit/nutriparse/backend/internal/types"
)

const (
	usdaDefaultBaseURL = "https://api.nal.usda.gov/fdc/v1"
	usdaConfidence     = 0.90
	usdaSearchLimit    = 5
)

// USDAConnector searches the USDA FoodData Central database.
type USDAConnector struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ Connector = (*USDAConnector)(nil)

func NewUSDAConnector(apiKey string) *USDAConnector {
	return &USDAConnector{
		apiKey:  apiKey,
		baseURL: usdaDefaultBaseURL,
		client:  &http.Client{Timeout: 8 * time.Second},
	}
}

func (c *USDAConnector) SourceName() string {
	return "usda"
}

type usdaFoodNutrient struct {
	NutrientName   string  `json:"nutrientName"`
	NutrientNumber string  `json:"nutrientNumber"`
	UnitName       string  `json:"unitName"`
	Value          float64 `json:"value"`
}

type usdaSearchFood struct {
	FdcID           int                `json:"fdcId"`
	Description     string             `json:"description"`
	DataType        string             `json:"dataType"`
	BrandOwner      string             `json:"brandOwner"`
	ServingSize     *float64           `json:"servingSize"`
	ServingSizeUnit string             `json:"servingSizeUnit"`
	FoodNutrients   []usdaFoodNutrient `json:"foodNutrients"`
}

type usdaSearchResponse struct {
	Foods []usdaSearchFood `json:"foods"`
}

// Search queries FoodData Central and normalizes the top hits. Any failure
// yields an empty result set.
func (c *USDAConnector) Search(ctx context.Context, query string) []types.NormalizedFood {
	foods, err := c.rawSearch(ctx, query, usdaSearchLimit)
	if err != nil {
		log.Printf("usda search failed for %q: %v", query, err)
		return nil
	}

	var results []types.NormalizedFood
	for _, food := range foods {
		normalized, ok := normalizeUSDAFood(food)
		if !ok {
			continue
		}
		results = append(results, normalized)
	}
	return results
}

// RawSearch exposes the unnormalized FoodData Central hits for callers that
// need serving sizes or data types (portion resolution, similarity matching).
func (c *USDAConnector) RawSearch(ctx context.Context, query string, pageSize int) ([]USDAFood, error) {
	foods, err := c.rawSearch(ctx, query, pageSize)
	if err != nil {
		return nil, err
	}
	out := make([]USDAFood, 0, len(foods))
	for _, food := range foods {
		out = append(out, USDAFood{
			FdcID:           food.FdcID,
			Description:     food.Description,
			DataType:        food.DataType,
			BrandOwner:      food.BrandOwner,
			ServingSize:     food.ServingSize,
			ServingSizeUnit: food.ServingSizeUnit,
			Nutrients:       convertNutrients(food.FoodNutrients),
		})
	}
	return out, nil
}

// USDAFood is the provider-shaped search hit used by the matcher and the
// portion resolver.
type USDAFood struct {
	FdcID           int
	Description     string
	DataType        string
	BrandOwner      string
	ServingSize     *float64
	ServingSizeUnit string
	Nutrients       []USDANutrient
}

type USDANutrient struct {
	Name   string
	Number string
	Unit   string
	Value  float64
}

func convertNutrients(raw []usdaFoodNutrient) []USDANutrient {
	out := make([]USDANutrient, 0, len(raw))
	for _, n := range raw {
		out = append(out, USDANutrient{Name: n.NutrientName, Number: n.NutrientNumber, Unit: n.UnitName, Value: n.Value})
	}
	return out
}

func (c *USDAConnector) rawSearch(ctx context.Context, query string, pageSize int) ([]usdaSearchFood, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("usda api key not configured")
	}

	payload := map[string]any{
		"query":    query,
		"pageSize": pageSize,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/foods/search?api_key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usda returned status %d", resp.StatusCode)
	}

	var decoded usdaSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded.Foods, nil
}

// FoodDetail fetches one food record, including its foodPortions, for
// portion-weight resolution.
func (c *USDAConnector) FoodDetail(ctx context.Context, fdcID int) (*USDAFoodDetail, error) {
	endpoint := fmt.Sprintf("%s/food/%d?api_key=%s", c.baseURL, fdcID, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usda detail returned status %d", resp.StatusCode)
	}

	var detail USDAFoodDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

type USDAFoodPortion struct {
	Amount             float64 `json:"amount"`
	GramWeight         float64 `json:"gramWeight"`
	Modifier           string  `json:"modifier"`
	PortionDescription string  `json:"portionDescription"`
	MeasureUnit        struct {
		Name string `json:"name"`
	} `json:"measureUnit"`
}

type USDAFoodDetail struct {
	FdcID           int               `json:"fdcId"`
	Description     string            `json:"description"`
	ServingSize     *float64          `json:"servingSize"`
	ServingSizeUnit string            `json:"servingSizeUnit"`
	FoodPortions    []USDAFoodPortion `json:"foodPortions"`
}

// normalizeUSDAFood converts a search hit to the provider-agnostic shape.
// Foods without a kcal energy value are dropped.
func normalizeUSDAFood(food usdaSearchFood) (types.NormalizedFood, bool) {
	var calories *float64
	var protein, fat, carbs float64
	var fiber *float64

	for _, nutrient := range food.FoodNutrients {
		name := strings.ToLower(nutrient.NutrientName)
		unit := strings.ToUpper(nutrient.UnitName)

		if strings.Contains(name, "energy") && unit == "KCAL" {
			value := nutrient.Value
			calories = &value
			continue
		}
		if unit != "G" {
			continue
		}
		switch {
		case nutrient.NutrientNumber == "1003" || strings.Contains(name, "protein"):
			protein = nutrient.Value
		case nutrient.NutrientNumber == "1004" || strings.Contains(name, "total lipid"):
			fat = nutrient.Value
		case nutrient.NutrientNumber == "1005" || strings.Contains(name, "carbohydrate"):
			carbs = nutrient.Value
		case nutrient.NutrientNumber == "1079" || strings.Contains(name, "fiber"):
			value := nutrient.Value
			fiber = &value
		}
	}

	if calories == nil {
		return types.NormalizedFood{}, false
	}

	return types.NormalizedFood{
		Name:            food.Description,
		Brand:           food.BrandOwner,
		CaloriesPer100g: *calories,
		ProteinPer100g:  protein,
		FatPer100g:      fat,
		CarbsPer100g:    carbs,
		FiberPer100g:    fiber,
		Source:          "usda",
		ConfidenceScore: ClampConfidence(usdaConfidence),
	}, true
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *USDAConnector) SetBaseURL(url string) {
	c.baseURL = url
}
