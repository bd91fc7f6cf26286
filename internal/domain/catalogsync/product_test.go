package catalogsync

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductSanitize(t *testing.T) {
	p := Product{
		ID:    " 42 ",
		Title: "Shirt",
		Variants: []Variant{
			{ID: "1", SKU: " SKU-1 "},
			{ID: "2", SKU: "SKU-2", InventoryPolicy: "continue", Position: 2, WeightUnit: "lb"},
		},
		Options: []Option{{Name: "Size"}},
	}

	s := p.Sanitize()

	assert.Equal(t, "42", s.ID)
	assert.Equal(t, DefaultProductStatus, s.Status)
	require.Len(t, s.Variants, 2)
	assert.Equal(t, "SKU-1", s.Variants[0].SKU)
	assert.Equal(t, DefaultInventoryPolicy, s.Variants[0].InventoryPolicy)
	assert.Equal(t, DefaultFulfillmentService, s.Variants[0].FulfillmentService)
	assert.Equal(t, DefaultWeightUnit, s.Variants[0].WeightUnit)
	assert.Equal(t, DefaultVariantPosition, s.Variants[0].Position)
	assert.True(t, s.Variants[0].Price.Equal(decimal.Zero))
	assert.Equal(t, "continue", s.Variants[1].InventoryPolicy)
	assert.Equal(t, 2, s.Variants[1].Position)
	assert.Equal(t, "lb", s.Variants[1].WeightUnit)
	assert.NotNil(t, s.Options[0].Values)
	assert.Equal(t, "SKU-1", s.PrimarySKU())

	// original untouched
	assert.Equal(t, " SKU-1 ", p.Variants[0].SKU)
}

func TestNewProductInput(t *testing.T) {
	compare := decimal.RequireFromString("30.00")
	p := Product{
		ID:          "42",
		Title:       "Shirt",
		Description: "<p>Soft</p>",
		Status:      "active",
		Images:      []Image{{ID: "9", Src: "https://cdn/x.png", Alt: "x", Position: 1}, {ID: "10"}},
		Options:     []Option{{ID: "5", Name: "Size", Position: 1, Values: []string{"S"}}, {ID: "6"}},
		Variants: []Variant{{
			ID: "1", SKU: "SKU-1", InventoryItemID: "100", InventoryQuantity: 5,
			Price: decimal.RequireFromString("25.00"), CompareAtPrice: &compare, Option1: "S",
		}},
	}

	in := NewProductInput(p)

	assert.Equal(t, "<p>Soft</p>", in.BodyHTML)
	require.Len(t, in.Images, 1)
	assert.Equal(t, "https://cdn/x.png", in.Images[0].Src)
	require.Len(t, in.Options, 1)
	assert.Equal(t, "Size", in.Options[0].Name)
	require.Len(t, in.Variants, 1)
	assert.Equal(t, "SKU-1", in.Variants[0].SKU)
	assert.Equal(t, "S", in.Variants[0].Option1)
	assert.True(t, compare.Equal(*in.Variants[0].CompareAtPrice))
}

func TestPrimaryLocation(t *testing.T) {
	_, ok := PrimaryLocation(nil)
	assert.False(t, ok)

	loc, ok := PrimaryLocation([]Location{{ID: "1"}, {ID: "2", Primary: true}})
	require.True(t, ok)
	assert.Equal(t, "2", loc.ID)

	loc, ok = PrimaryLocation([]Location{{ID: "7"}, {ID: "8"}})
	require.True(t, ok)
	assert.Equal(t, "7", loc.ID)
}
