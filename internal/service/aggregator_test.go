package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novafit/nutriparse/backend/internal/connector"
	"github.com/novafit/nutriparse/backend/internal/types"
)

// stubConnector serves canned results and counts calls.
type stubConnector struct {
	source  string
	results []types.NormalizedFood
	calls   atomic.Int64
}

var _ connector.Connector = (*stubConnector)(nil)

func (s *stubConnector) SourceName() string { return s.source }

func (s *stubConnector) Search(ctx context.Context, query string) []types.NormalizedFood {
	s.calls.Add(1)
	return s.results
}

func fiber(v float64) *float64 { return &v }

func usdaFish() types.NormalizedFood {
	return types.NormalizedFood{
		Name: "Fish, cod, cooked", CaloriesPer100g: 105, ProteinPer100g: 23, FatPer100g: 0.9,
		CarbsPer100g: 0, FiberPer100g: fiber(0), Source: "usda", ConfidenceScore: 0.90,
	}
}

func offCola() types.NormalizedFood {
	return types.NormalizedFood{
		Name: "Cola Drink", Brand: "Coca-Cola", CaloriesPer100g: 42, CarbsPer100g: 10.6,
		FiberPer100g: fiber(0), Source: "openfoodfacts", ConfidenceScore: 0.88,
	}
}

func TestAggregatorGenericQueryRanksUSDAFirst(t *testing.T) {
	usda := &stubConnector{source: "usda", results: []types.NormalizedFood{usdaFish()}}
	off := &stubConnector{source: "openfoodfacts", results: []types.NormalizedFood{
		{Name: "Fish sticks", Brand: "FrozenCo", CaloriesPer100g: 220, CarbsPer100g: 18,
			ProteinPer100g: 10, FatPer100g: 12, FiberPer100g: fiber(1), Source: "openfoodfacts", ConfidenceScore: 0.88},
	}}

	agg := NewAggregatorService([]connector.Connector{usda, off}, nil, nil)
	results := agg.Search(context.Background(), "fish")

	require.Len(t, results, 2)
	assert.Equal(t, "usda", results[0].Source)
}

func TestAggregatorBarcodeQueryRanksOFFFirst(t *testing.T) {
	usda := &stubConnector{source: "usda", results: []types.NormalizedFood{usdaFish()}}
	off := &stubConnector{source: "openfoodfacts", results: []types.NormalizedFood{offCola()}}

	agg := NewAggregatorService([]connector.Connector{usda, off}, nil, nil)
	results := agg.Search(context.Background(), "7791234567890")

	require.NotEmpty(t, results)
	assert.Equal(t, "openfoodfacts", results[0].Source)
}

func TestAggregatorConfidenceClamped(t *testing.T) {
	off := &stubConnector{source: "openfoodfacts", results: []types.NormalizedFood{
		{Name: "Overconfident", CaloriesPer100g: 10, FiberPer100g: fiber(1),
			ProteinPer100g: 1, Source: "openfoodfacts", ConfidenceScore: 0.97},
	}}

	agg := NewAggregatorService([]connector.Connector{off}, nil, nil)
	results := agg.Search(context.Background(), "7791234567890")

	require.Len(t, results, 1)
	assert.LessOrEqual(t, results[0].ConfidenceScore, 1.0)
	assert.GreaterOrEqual(t, results[0].ConfidenceScore, 0.0)
}

func TestAggregatorCapsAtFiveResults(t *testing.T) {
	var foods []types.NormalizedFood
	names := []string{"Apple", "Banana", "Cherry pie", "Dumplings", "Eggplant stew", "Focaccia", "Granola"}
	for i, name := range names {
		foods = append(foods, types.NormalizedFood{
			Name: name, CaloriesPer100g: 100, ProteinPer100g: 5, FiberPer100g: fiber(1),
			Source: "usda", ConfidenceScore: 0.90 - float64(i)*0.01,
		})
	}
	usda := &stubConnector{source: "usda", results: foods}

	agg := NewAggregatorService([]connector.Connector{usda}, nil, nil)
	results := agg.Search(context.Background(), "food")

	assert.Len(t, results, 5)
}

func TestAggregatorDedupesNearIdenticalNames(t *testing.T) {
	usda := &stubConnector{source: "usda", results: []types.NormalizedFood{
		{Name: "Milk, whole", CaloriesPer100g: 61, ProteinPer100g: 3.2, FiberPer100g: fiber(0),
			Source: "usda", ConfidenceScore: 0.90},
	}}
	fatsecret := &stubConnector{source: "fatsecret", results: []types.NormalizedFood{
		{Name: "Whole Milk", CaloriesPer100g: 62, ProteinPer100g: 3.1, FiberPer100g: fiber(0),
			Source: "fatsecret", ConfidenceScore: 0.80},
	}}

	agg := NewAggregatorService([]connector.Connector{usda, fatsecret}, nil, nil)
	results := agg.Search(context.Background(), "milk")

	require.Len(t, results, 1)
	// highest confidence duplicate survives
	assert.Equal(t, "usda", results[0].Source)
}

func TestAggregatorPenalizesMissingFiberAndZeroMacros(t *testing.T) {
	usda := &stubConnector{source: "usda", results: []types.NormalizedFood{
		{Name: "Complete food", CaloriesPer100g: 100, ProteinPer100g: 5, FiberPer100g: fiber(2),
			Source: "usda", ConfidenceScore: 0.90},
		{Name: "Sparse record", CaloriesPer100g: 100,
			Source: "usda", ConfidenceScore: 0.90},
	}}

	agg := NewAggregatorService([]connector.Connector{usda}, nil, nil)
	results := agg.Search(context.Background(), "strange query item")

	require.Len(t, results, 2)
	assert.Equal(t, "Complete food", results[0].Name)
	// missing fiber and all-zero macros each cost 0.05
	assert.InDelta(t, 0.10, results[0].ConfidenceScore-results[1].ConfidenceScore, 1e-9)
}

func TestAggregatorFansOutToAllConnectors(t *testing.T) {
	usda := &stubConnector{source: "usda"}
	off := &stubConnector{source: "openfoodfacts"}
	fatsecret := &stubConnector{source: "fatsecret"}

	agg := NewAggregatorService([]connector.Connector{usda, off, fatsecret}, nil, nil)
	agg.Search(context.Background(), "anything")

	assert.Equal(t, int64(1), usda.calls.Load())
	assert.Equal(t, int64(1), off.calls.Load())
	assert.Equal(t, int64(1), fatsecret.calls.Load())
}

func TestAggregatorEmptyQueryReturnsNil(t *testing.T) {
	usda := &stubConnector{source: "usda"}
	agg := NewAggregatorService([]connector.Connector{usda}, nil, nil)

	assert.Nil(t, agg.Search(context.Background(), "   "))
	assert.Equal(t, int64(0), usda.calls.Load())
}

func TestLooksLikeBrandQuery(t *testing.T) {
	assert.True(t, looksLikeBrandQuery("coca cola zero"))
	assert.True(t, looksLikeBrandQuery("gatorade blue"))
	assert.True(t, looksLikeBrandQuery("7up soda"))
	assert.False(t, looksLikeBrandQuery("grilled chicken"))
	assert.False(t, looksLikeBrandQuery("rice"))
}
