package shopify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProductPayload(t *testing.T) {
	body := []byte(`{"id": 632910392, "title": "IPod Nano", "updated_at": "2024-05-01T10:00:00Z",
		"variants": [{"id": 808950810, "sku": "IPOD-1", "price": "199.00", "position": 1, "inventory_item_id": 341629}]}`)

	p, err := DecodeProductPayload(body)

	require.NoError(t, err)
	assert.Equal(t, "632910392", p.ID)
	assert.Equal(t, "IPod Nano", p.Title)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "IPOD-1", p.Variants[0].SKU)
	assert.Equal(t, "341629", p.Variants[0].InventoryItemID)
}

func TestDecodeProductPayload_Rejects(t *testing.T) {
	for name, body := range map[string]string{
		"empty":      "",
		"not json":   "<xml/>",
		"no id":      `{"title": "x"}`,
		"wrong type": `{"id": 1, "variants": "nope"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeProductPayload([]byte(body))
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestDecodeProductDeletePayload(t *testing.T) {
	id, err := DecodeProductDeletePayload([]byte(`{"id": 788032119674292922}`))
	require.NoError(t, err)
	assert.Equal(t, "788032119674292922", id)

	_, err = DecodeProductDeletePayload([]byte(`{}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeInventoryLevelPayload(t *testing.T) {
	l, err := DecodeInventoryLevelPayload([]byte(`{"inventory_item_id": 271878346596884015, "location_id": 24826418, "available": 7}`))
	require.NoError(t, err)
	assert.Equal(t, "271878346596884015", l.InventoryItemID)
	assert.Equal(t, "24826418", l.LocationID)
	assert.Equal(t, 7, l.Available)
	assert.True(t, l.Tracked)

	l, err = DecodeInventoryLevelPayload([]byte(`{"inventory_item_id": 1, "location_id": 2, "available": 0}`))
	require.NoError(t, err)
	assert.True(t, l.Tracked)
	assert.Equal(t, 0, l.Available)

	for _, body := range []string{
		`{"inventory_item_id": 1, "location_id": 2, "available": null}`,
		`{"inventory_item_id": 1, "location_id": 2}`,
	} {
		l, err = DecodeInventoryLevelPayload([]byte(body))
		require.NoError(t, err, body)
		assert.False(t, l.Tracked, body)
		assert.Equal(t, "1", l.InventoryItemID)
	}

	_, err = DecodeInventoryLevelPayload([]byte(`{"location_id": 2, "available": 3}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
