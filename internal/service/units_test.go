package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertWeightToGrams(t *testing.T) {
	tests := []struct {
		name     string
		quantity float64
		unit     string
		want     float64
	}{
		{"grams pass through", 150, "g", 150},
		{"kilograms", 2, "kg", 2000},
		{"ounces", 1, "oz", 28.3495},
		{"pounds exact", 1, "lb", 453.592},
		{"spanish grams", 100, "gramos", 100},
		{"spanish pounds", 2, "libras", 907.184},
		{"case insensitive", 1, "LB", 453.592},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertWeightToGrams(tt.quantity, tt.unit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertWeightToGramsUnsupported(t *testing.T) {
	for _, unit := range []string{"cup", "serving", "tablespoon", "piece", "ml", ""} {
		_, err := ConvertWeightToGrams(1, unit)
		assert.ErrorIs(t, err, ErrUnsupportedUnit, "unit %q", unit)
	}
}

func TestNormalizeUnit(t *testing.T) {
	assert.Equal(t, "cup", NormalizeUnit("Tazas"))
	assert.Equal(t, "tablespoon", NormalizeUnit("cucharadas"))
	assert.Equal(t, "teaspoon", NormalizeUnit("tsp"))
	assert.Equal(t, "serving", NormalizeUnit("porción"))
	assert.Equal(t, "piece", NormalizeUnit("unidad"))
	assert.Equal(t, "ml", NormalizeUnit(" ML "))
	// unknown units pass through lowered
	assert.Equal(t, "handful", NormalizeUnit("Handful"))
}

func TestIsWeightUnit(t *testing.T) {
	assert.True(t, IsWeightUnit("g"))
	assert.True(t, IsWeightUnit("libras"))
	assert.False(t, IsWeightUnit("cup"))
	assert.False(t, IsWeightUnit("serving"))
}

func TestIsServingUnit(t *testing.T) {
	assert.True(t, IsServingUnit("serving"))
	assert.True(t, IsServingUnit("porcion"))
	assert.False(t, IsServingUnit("cup"))
}
