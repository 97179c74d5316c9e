package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/novafit/nutriparse/backend/internal/types"
)

const (
	offDefaultBaseURL  = "https://world.openfoodfacts.org"
	offBaseConfidence  = 0.85
	offBarcodeBonus    = 0.03
	offKJToKcalDivisor = 4.184
	offSearchLimit     = 5
)

// OpenFoodFactsConnector searches the Open Food Facts product database.
// Best for branded and barcoded products.
type OpenFoodFactsConnector struct {
	userAgent string
	baseURL   string
	client    *http.Client
}

var _ Connector = (*OpenFoodFactsConnector)(nil)

func NewOpenFoodFactsConnector(userAgent string) *OpenFoodFactsConnector {
	return &OpenFoodFactsConnector{
		userAgent: userAgent,
		baseURL:   offDefaultBaseURL,
		client:    &http.Client{Timeout: 8 * time.Second},
	}
}

func (c *OpenFoodFactsConnector) SourceName() string {
	return "openfoodfacts"
}

type offProduct struct {
	Code            string             `json:"code"`
	ProductName     string             `json:"product_name"`
	ProductNameEn   string             `json:"product_name_en"`
	Brands          string             `json:"brands"`
	ServingSize     string             `json:"serving_size"`
	ServingQuantity flexNumber         `json:"serving_quantity"`
	Nutriments      map[string]float64 `json:"nutriments"`
}

// flexNumber tolerates a numeric field arriving as either a JSON number or
// a quoted string, both of which Open Food Facts emits.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(string(data), `"`)
	if trimmed == "null" {
		trimmed = ""
	}
	*n = flexNumber(trimmed)
	return nil
}

func (n flexNumber) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

type offSearchResponse struct {
	Products []offProduct `json:"products"`
}

// Search queries the legacy search endpoint and normalizes products that
// carry per-100g energy data. Any failure yields an empty result set.
func (c *OpenFoodFactsConnector) Search(ctx context.Context, query string) []types.NormalizedFood {
	products, err := c.rawSearch(ctx, query)
	if err != nil {
		log.Printf("openfoodfacts search failed for %q: %v", query, err)
		return nil
	}

	var results []types.NormalizedFood
	for _, product := range products {
		normalized, ok := normalizeOFFProduct(product)
		if !ok {
			continue
		}
		results = append(results, normalized)
	}
	return results
}

func (c *OpenFoodFactsConnector) rawSearch(ctx context.Context, query string) ([]offProduct, error) {
	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", strconv.Itoa(offSearchLimit))

	endpoint := fmt.Sprintf("%s/cgi/search.pl?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openfoodfacts returned status %d", resp.StatusCode)
	}

	var decoded offSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded.Products, nil
}

var servingGramsPattern = regexp.MustCompile(`([0-9]+(?:[.,][0-9]+)?)\s*g\b`)

// servingGrams extracts the gram weight of one serving from a product's
// serving_size text, falling back to serving_quantity.
func servingGrams(servingSize string, servingQuantity flexNumber) (float64, bool) {
	if match := servingGramsPattern.FindStringSubmatch(strings.ToLower(servingSize)); match != nil {
		value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", "."), 64)
		if err == nil && value > 0 {
			return value, true
		}
	}
	if servingQuantity != "" {
		if value, err := servingQuantity.Float64(); err == nil && value > 0 {
			return value, true
		}
	}
	return 0, false
}

// ProductServing is an Open Food Facts hit reduced to what portion
// resolution needs.
type ProductServing struct {
	Name         string
	ServingGrams float64
}

// SearchServings returns products whose serving weight could be determined.
func (c *OpenFoodFactsConnector) SearchServings(ctx context.Context, query string) []ProductServing {
	products, err := c.rawSearch(ctx, query)
	if err != nil {
		log.Printf("openfoodfacts serving search failed for %q: %v", query, err)
		return nil
	}

	var servings []ProductServing
	for _, product := range products {
		grams, ok := servingGrams(product.ServingSize, product.ServingQuantity)
		if !ok {
			continue
		}
		name := product.ProductNameEn
		if name == "" {
			name = product.ProductName
		}
		servings = append(servings, ProductServing{Name: name, ServingGrams: grams})
	}
	return servings
}

func normalizeOFFProduct(product offProduct) (types.NormalizedFood, bool) {
	name := strings.TrimSpace(product.ProductNameEn)
	if name == "" {
		name = strings.TrimSpace(product.ProductName)
	}
	if name == "" {
		return types.NormalizedFood{}, false
	}

	calories, ok := product.Nutriments["energy-kcal_100g"]
	if !ok {
		kj, kjOK := product.Nutriments["energy-kj_100g"]
		if !kjOK {
			return types.NormalizedFood{}, false
		}
		calories = kj / offKJToKcalDivisor
	}

	confidence := offBaseConfidence
	if strings.TrimSpace(product.Code) != "" {
		confidence += offBarcodeBonus
	} else {
		confidence -= offBarcodeBonus
	}

	var fiber *float64
	if value, ok := product.Nutriments["fiber_100g"]; ok {
		fiber = &value
	}

	return types.NormalizedFood{
		Name:            name,
		Brand:           strings.TrimSpace(product.Brands),
		CaloriesPer100g: calories,
		ProteinPer100g:  product.Nutriments["proteins_100g"],
		FatPer100g:      product.Nutriments["fat_100g"],
		CarbsPer100g:    product.Nutriments["carbohydrates_100g"],
		FiberPer100g:    fiber,
		Source:          "openfoodfacts",
		ConfidenceScore: ClampConfidence(confidence),
	}, true
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *OpenFoodFactsConnector) SetBaseURL(url string) {
	c.baseURL = url
}
