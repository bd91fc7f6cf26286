package shopify

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

// MaxPageSize is the largest page the products endpoint serves
const MaxPageSize = 250

var pageInfoPattern = regexp.MustCompile(`page_info=([^&>]+)`)

// GetProduct fetches a single product
func (c *Client) GetProduct(ctx context.Context, productID string) (*catalogsync.Product, error) {
	var env productEnvelope
	if _, err := c.do(ctx, "get_product", http.MethodGet, productPath(productID), nil, nil, &env); err != nil {
		return nil, err
	}
	p := env.Product.toDomain()
	return &p, nil
}

// CreateProduct creates a product and returns it as stored by the platform
func (c *Client) CreateProduct(ctx context.Context, input catalogsync.ProductInput) (*catalogsync.Product, error) {
	var env productEnvelope
	if _, err := c.do(ctx, "create_product", http.MethodPost, "/products.json", nil, newProductInput(input), &env); err != nil {
		return nil, err
	}
	p := env.Product.toDomain()
	return &p, nil
}

// UpdateProduct replaces the product's catalog fields
func (c *Client) UpdateProduct(ctx context.Context, productID string, input catalogsync.ProductInput) (*catalogsync.Product, error) {
	var env productEnvelope
	if _, err := c.do(ctx, "update_product", http.MethodPut, productPath(productID), nil, newProductInput(input), &env); err != nil {
		return nil, err
	}
	p := env.Product.toDomain()
	return &p, nil
}

// DeleteProduct removes a product
func (c *Client) DeleteProduct(ctx context.Context, productID string) error {
	_, err := c.do(ctx, "delete_product", http.MethodDelete, productPath(productID), nil, nil, nil)
	return err
}

// GetAllProducts walks the cursor pagination until limit products were read.
// A limit of 0 reads the whole catalog.
func (c *Client) GetAllProducts(ctx context.Context, limit int) ([]catalogsync.Product, error) {
	pageSize := MaxPageSize
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}

	var products []catalogsync.Product
	pageInfo := ""
	for {
		query := url.Values{"limit": {strconv.Itoa(pageSize)}}
		if pageInfo != "" {
			query.Set("page_info", pageInfo)
		}

		var env productsEnvelope
		resp, err := c.do(ctx, "list_products", http.MethodGet, "/products.json", query, nil, &env)
		if err != nil {
			return nil, err
		}
		for _, wp := range env.Products {
			products = append(products, wp.toDomain())
			if limit > 0 && len(products) >= limit {
				return products, nil
			}
		}

		pageInfo = extractPageInfo(resp.header.Get("Link"), "next")
		if pageInfo == "" || len(env.Products) == 0 {
			return products, nil
		}
	}
}

// extractPageInfo returns the page_info cursor of the link with the given rel
func extractPageInfo(linkHeader, rel string) string {
	if linkHeader == "" {
		return ""
	}
	for _, link := range strings.Split(linkHeader, ",") {
		target, params, ok := strings.Cut(link, ";")
		if !ok || !strings.Contains(params, `rel="`+rel+`"`) {
			continue
		}
		if m := pageInfoPattern.FindStringSubmatch(target); m != nil {
			return m[1]
		}
		return ""
	}
	return ""
}

func productPath(productID string) string {
	return "/products/" + url.PathEscape(productID) + ".json"
}
