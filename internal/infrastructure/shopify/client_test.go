package shopify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig(catalogsync.StoreA)
	cfg.AccessToken = "shpat_test"
	cfg.BaseURLOverride = server.URL
	cfg.BaseDelay = time.Millisecond
	cfg.MaxJitter = 0
	cfg.RateLimitWait = time.Millisecond

	client, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	return client
}

const productJSON = `{
  "product": {
    "id": 632910392,
    "title": "IPod Nano - 8GB",
    "body_html": "<p>It's the small iPod</p>",
    "vendor": "Apple",
    "product_type": "Cult Products",
    "handle": "ipod-nano",
    "tags": "Emotive, Flash Memory",
    "created_at": "2023-10-03T13:00:00-04:00",
    "updated_at": "2023-10-03T13:30:00-04:00",
    "images": [{"id": 850703190, "src": "https://cdn.example.com/ipod.png", "position": 1}],
    "options": [{"id": 594680422, "name": "Color", "position": 1, "values": ["Pink", "Red"]}],
    "variants": [
      {"id": 808950810, "sku": "IPOD2008PINK", "price": "199.00", "compare_at_price": null,
       "inventory_item_id": 808950810, "inventory_quantity": 10, "option1": "Pink", "position": 1,
       "weight": 0.2, "weight_unit": "kg", "taxable": false},
      {"id": 49148385, "sku": "IPOD2008RED", "price": "199.00", "compare_at_price": "249.00",
       "inventory_item_id": 49148385, "inventory_quantity": 20, "option1": "Red", "position": 2,
       "requires_shipping": false}
    ]
  }
}`

func TestClient_GetProduct(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products/632910392.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get(AccessTokenHeader))
		_, _ = io.WriteString(w, productJSON)
	})

	product, err := client.GetProduct(t.Context(), "632910392")
	require.NoError(t, err)

	assert.Equal(t, "632910392", product.ID)
	assert.Equal(t, "<p>It's the small iPod</p>", product.Description)
	assert.Equal(t, catalogsync.DefaultProductStatus, product.Status)
	assert.Equal(t, "850703190", product.Images[0].ID)
	assert.Equal(t, []string{"Pink", "Red"}, product.Options[0].Values)
	require.Len(t, product.Variants, 2)

	pink := product.Variants[0]
	assert.Equal(t, "808950810", pink.InventoryItemID)
	assert.True(t, decimal.RequireFromString("199").Equal(pink.Price))
	assert.Nil(t, pink.CompareAtPrice)
	assert.True(t, pink.RequiresShipping)
	assert.False(t, pink.Taxable)
	assert.Equal(t, catalogsync.DefaultInventoryPolicy, pink.InventoryPolicy)
	assert.Equal(t, catalogsync.DefaultFulfillmentService, pink.FulfillmentService)

	red := product.Variants[1]
	require.NotNil(t, red.CompareAtPrice)
	assert.Equal(t, "249.00", red.CompareAtPrice.StringFixed(2))
	assert.False(t, red.RequiresShipping)
	assert.True(t, red.Taxable)
	assert.Equal(t, catalogsync.DefaultWeightUnit, red.WeightUnit)
}

func TestClient_CreateProduct_SendsStoreNeutralPayload(t *testing.T) {
	var received map[string]map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/products.json", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, productJSON)
	})

	compareAt := decimal.RequireFromString("25")
	input := catalogsync.ProductInput{
		Title:    "Tee",
		Tags:     "summer",
		Variants: []catalogsync.VariantInput{{SKU: "TEE-S", Price: decimal.RequireFromString("19.9"), CompareAtPrice: &compareAt, Option1: "S", Taxable: true}},
	}
	product, err := client.CreateProduct(t.Context(), input)
	require.NoError(t, err)
	assert.Equal(t, "632910392", product.ID)

	body := received["product"]
	assert.Equal(t, "Tee", body["title"])
	variants := body["variants"].([]any)
	require.Len(t, variants, 1)
	v := variants[0].(map[string]any)
	assert.Equal(t, "19.90", v["price"])
	assert.Equal(t, "25.00", v["compare_at_price"])
	assert.NotContains(t, v, "id")
	assert.NotContains(t, v, "inventory_item_id")
	assert.Nil(t, v["inventory_management"])
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	core, logs := observer.New(zap.WarnLevel)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"locations":[{"id":1,"name":"Main","primary":true}]}`)
	}, WithLogger(zap.New(core)))

	locations, err := client.GetLocations(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, locations, 1)
	assert.True(t, locations[0].Active)
	assert.Equal(t, 2, logs.FilterMessage("Shopify request failed, retrying").Len())
}

func TestClient_RateLimitHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"webhooks":[]}`)
	})

	subs, err := client.ListWebhooks(t.Context())
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RateLimitExhausted(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetProduct(t.Context(), "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogsync.ErrTargetPlatformRateLimited)
	assert.Equal(t, int32(4), calls.Load(), "first attempt plus three retries")
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"errors":{"title":["can't be blank"]}}`)
	})

	_, err := client.UpdateProduct(t.Context(), "1", catalogsync.ProductInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogsync.ErrTargetPlatformError)
	assert.Contains(t, err.Error(), "HTTP 422")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_DeleteProduct(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/products/42.json", r.URL.Path)
		_, _ = io.WriteString(w, `{}`)
	})
	require.NoError(t, client.DeleteProduct(t.Context(), "42"))
}

func TestClient_GetAllProducts_FollowsLinkHeader(t *testing.T) {
	var pages []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		pageInfo := r.URL.Query().Get("page_info")
		pages = append(pages, pageInfo)
		switch pageInfo {
		case "":
			w.Header().Set("Link", `<https://shop.myshopify.com/admin/api/2023-10/products.json?limit=2&page_info=abc>; rel="next"`)
			_, _ = io.WriteString(w, `{"products":[{"id":1},{"id":2}]}`)
		case "abc":
			w.Header().Set("Link", `<https://x/products.json?page_info=zzz>; rel="previous", <https://x/products.json?page_info=def&limit=2>; rel="next"`)
			_, _ = io.WriteString(w, `{"products":[{"id":3},{"id":4}]}`)
		default:
			_, _ = io.WriteString(w, `{"products":[{"id":5}]}`)
		}
	})

	products, err := client.GetAllProducts(t.Context(), 2)
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, []string{""}, pages)

	pages = nil
	all, err := client.GetAllProducts(t.Context(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, []string{"", "abc", "def"}, pages)
}

func TestClient_Inventory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/inventory_levels.json":
			if r.URL.Query().Get("inventory_item_ids") == "404" {
				_, _ = io.WriteString(w, `{"inventory_levels":[]}`)
				return
			}
			assert.Equal(t, "905684977", r.URL.Query().Get("location_ids"))
			_, _ = io.WriteString(w, `{"inventory_levels":[{"inventory_item_id":808950810,"location_id":905684977,"available":6}]}`)
		case "/inventory_levels/set.json":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, float64(905684977), body["location_id"])
			assert.Equal(t, float64(808950810), body["inventory_item_id"])
			assert.Equal(t, float64(42), body["available"])
			_, _ = io.WriteString(w, `{"inventory_level":{"inventory_item_id":808950810,"location_id":905684977,"available":42}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	level, err := client.GetInventoryLevel(t.Context(), "808950810", "905684977")
	require.NoError(t, err)
	assert.Equal(t, 6, level.Available)
	assert.Equal(t, "905684977", level.LocationID)

	_, err = client.GetInventoryLevel(t.Context(), "404", "905684977")
	assert.ErrorIs(t, err, catalogsync.ErrMissingTargetMapping)

	updated, err := client.UpdateInventoryLevel(t.Context(), "808950810", "905684977", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, updated.Available)
}

func TestClient_Webhooks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/webhooks.json":
			var body map[string]map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "products/create", body["webhook"]["topic"])
			assert.Equal(t, "json", body["webhook"]["format"])
			_, _ = io.WriteString(w, `{"webhook":{"id":7,"topic":"products/create","address":"https://sync.example.com/webhooks/store-a/products/create","format":"json"}}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/webhooks/7.json":
			_, _ = io.WriteString(w, `{}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	sub, err := client.CreateWebhook(t.Context(), catalogsync.TopicProductsCreate, "https://sync.example.com/webhooks/store-a/products/create")
	require.NoError(t, err)
	assert.Equal(t, "7", sub.ID)
	require.NoError(t, client.DeleteWebhook(t.Context(), "7"))
}

func TestExtractPageInfo(t *testing.T) {
	tests := []struct {
		name   string
		header string
		rel    string
		want   string
	}{
		{"empty", "", "next", ""},
		{"next only", `<https://x/products.json?page_info=abc&limit=50>; rel="next"`, "next", "abc"},
		{"previous requested", `<https://x/p.json?page_info=prev>; rel="previous", <https://x/p.json?page_info=nxt>; rel="next"`, "previous", "prev"},
		{"no next", `<https://x/p.json?page_info=prev>; rel="previous"`, "next", ""},
		{"malformed", `garbage`, "next", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractPageInfo(tt.header, tt.rel))
		})
	}
}

func TestRetryPolicy(t *testing.T) {
	cfg := DefaultConfig(catalogsync.StoreA)
	p := newRetryPolicy(cfg, func() float64 { return 0.5 })

	assert.Equal(t, 1500*time.Millisecond, p.NextBackOff())
	assert.Equal(t, 2500*time.Millisecond, p.NextBackOff())

	p.hint(0, false)
	assert.Equal(t, 2*time.Second, p.NextBackOff(), "429 without Retry-After waits the default")
	p.hint(5*time.Second, true)
	assert.Equal(t, 5*time.Second, p.NextBackOff())
	assert.Equal(t, 16500*time.Millisecond, p.NextBackOff())

	p.Reset()
	assert.Equal(t, 1500*time.Millisecond, p.NextBackOff())
}

func TestParseRetryAfter(t *testing.T) {
	d, ok := parseRetryAfter("2.5")
	assert.True(t, ok)
	assert.Equal(t, 2500*time.Millisecond, d)

	_, ok = parseRetryAfter("")
	assert.False(t, ok)
	_, ok = parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT")
	assert.False(t, ok)
}
