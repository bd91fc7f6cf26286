package shopify

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

// Wire shapes of the Admin REST API. IDs arrive as JSON numbers and are
// carried as strings in the domain.

type productEnvelope struct {
	Product wireProduct `json:"product"`
}

type productsEnvelope struct {
	Products []wireProduct `json:"products"`
}

type wireProduct struct {
	ID          json.Number   `json:"id"`
	Title       string        `json:"title"`
	BodyHTML    string        `json:"body_html"`
	Vendor      string        `json:"vendor"`
	ProductType string        `json:"product_type"`
	Status      string        `json:"status"`
	Handle      string        `json:"handle"`
	Tags        string        `json:"tags"`
	Images      []wireImage   `json:"images"`
	Variants    []wireVariant `json:"variants"`
	Options     []wireOption  `json:"options"`
	CreatedAt   *time.Time    `json:"created_at"`
	UpdatedAt   *time.Time    `json:"updated_at"`
}

type wireImage struct {
	ID       json.Number `json:"id"`
	Src      string      `json:"src"`
	Alt      string      `json:"alt"`
	Position int         `json:"position"`
}

type wireOption struct {
	ID       json.Number `json:"id"`
	Name     string      `json:"name"`
	Position int         `json:"position"`
	Values   []string    `json:"values"`
}

type wireVariant struct {
	ID                  json.Number         `json:"id"`
	SKU                 string              `json:"sku"`
	Price               decimal.Decimal     `json:"price"`
	CompareAtPrice      decimal.NullDecimal `json:"compare_at_price"`
	InventoryItemID     json.Number         `json:"inventory_item_id"`
	InventoryQuantity   int                 `json:"inventory_quantity"`
	InventoryPolicy     string              `json:"inventory_policy"`
	FulfillmentService  string              `json:"fulfillment_service"`
	InventoryManagement string              `json:"inventory_management"`
	Option1             string              `json:"option1"`
	Option2             string              `json:"option2"`
	Option3             string              `json:"option3"`
	Position            int                 `json:"position"`
	Weight              float64             `json:"weight"`
	WeightUnit          string              `json:"weight_unit"`
	RequiresShipping    *bool               `json:"requires_shipping"`
	Taxable             *bool               `json:"taxable"`
}

// toDomain converts a wire product and applies the sanitizer defaults
func (p wireProduct) toDomain() catalogsync.Product {
	out := catalogsync.Product{
		ID:          p.ID.String(),
		Title:       p.Title,
		Description: p.BodyHTML,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Status:      p.Status,
		Handle:      p.Handle,
		Tags:        p.Tags,
	}
	if p.CreatedAt != nil {
		out.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		out.UpdatedAt = *p.UpdatedAt
	}
	for _, img := range p.Images {
		out.Images = append(out.Images, catalogsync.Image{
			ID: img.ID.String(), Src: img.Src, Alt: img.Alt, Position: img.Position,
		})
	}
	for _, opt := range p.Options {
		out.Options = append(out.Options, catalogsync.Option{
			ID: opt.ID.String(), Name: opt.Name, Position: opt.Position, Values: opt.Values,
		})
	}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, v.toDomain())
	}
	return out.Sanitize()
}

func (v wireVariant) toDomain() catalogsync.Variant {
	out := catalogsync.Variant{
		ID:                  v.ID.String(),
		SKU:                 v.SKU,
		Price:               v.Price,
		InventoryItemID:     v.InventoryItemID.String(),
		InventoryQuantity:   v.InventoryQuantity,
		InventoryPolicy:     v.InventoryPolicy,
		FulfillmentService:  v.FulfillmentService,
		InventoryManagement: v.InventoryManagement,
		Option1:             v.Option1,
		Option2:             v.Option2,
		Option3:             v.Option3,
		Position:            v.Position,
		Weight:              v.Weight,
		WeightUnit:          v.WeightUnit,
		RequiresShipping:    v.RequiresShipping == nil || *v.RequiresShipping,
		Taxable:             v.Taxable == nil || *v.Taxable,
	}
	if v.CompareAtPrice.Valid {
		compareAt := v.CompareAtPrice.Decimal
		out.CompareAtPrice = &compareAt
	}
	return out
}

// Outbound payloads

type productInputEnvelope struct {
	Product productInput `json:"product"`
}

type productInput struct {
	Title       string         `json:"title"`
	BodyHTML    string         `json:"body_html"`
	Vendor      string         `json:"vendor,omitempty"`
	ProductType string         `json:"product_type,omitempty"`
	Status      string         `json:"status,omitempty"`
	Tags        string         `json:"tags"`
	Images      []imageInput   `json:"images,omitempty"`
	Variants    []variantInput `json:"variants,omitempty"`
	Options     []optionInput  `json:"options,omitempty"`
}

type imageInput struct {
	Src      string `json:"src"`
	Alt      string `json:"alt,omitempty"`
	Position int    `json:"position,omitempty"`
}

type optionInput struct {
	Name     string   `json:"name"`
	Position int      `json:"position,omitempty"`
	Values   []string `json:"values,omitempty"`
}

type variantInput struct {
	SKU                 string  `json:"sku,omitempty"`
	Price               string  `json:"price"`
	CompareAtPrice      *string `json:"compare_at_price"`
	InventoryPolicy     string  `json:"inventory_policy,omitempty"`
	FulfillmentService  string  `json:"fulfillment_service,omitempty"`
	InventoryManagement *string `json:"inventory_management"`
	Option1             string  `json:"option1,omitempty"`
	Option2             string  `json:"option2,omitempty"`
	Option3             string  `json:"option3,omitempty"`
	Weight              float64 `json:"weight"`
	WeightUnit          string  `json:"weight_unit,omitempty"`
	RequiresShipping    bool    `json:"requires_shipping"`
	Taxable             bool    `json:"taxable"`
}

func newProductInput(in catalogsync.ProductInput) productInputEnvelope {
	p := productInput{
		Title:       in.Title,
		BodyHTML:    in.BodyHTML,
		Vendor:      in.Vendor,
		ProductType: in.ProductType,
		Status:      in.Status,
		Tags:        in.Tags,
	}
	for _, img := range in.Images {
		p.Images = append(p.Images, imageInput{Src: img.Src, Alt: img.Alt, Position: img.Position})
	}
	for _, opt := range in.Options {
		p.Options = append(p.Options, optionInput{Name: opt.Name, Position: opt.Position, Values: opt.Values})
	}
	for _, v := range in.Variants {
		vi := variantInput{
			SKU:                v.SKU,
			Price:              v.Price.StringFixed(2),
			InventoryPolicy:    v.InventoryPolicy,
			FulfillmentService: v.FulfillmentService,
			Option1:            v.Option1,
			Option2:            v.Option2,
			Option3:            v.Option3,
			Weight:             v.Weight,
			WeightUnit:         v.WeightUnit,
			RequiresShipping:   v.RequiresShipping,
			Taxable:            v.Taxable,
		}
		if v.CompareAtPrice != nil {
			s := v.CompareAtPrice.StringFixed(2)
			vi.CompareAtPrice = &s
		}
		if v.InventoryManagement != "" {
			m := v.InventoryManagement
			vi.InventoryManagement = &m
		}
		p.Variants = append(p.Variants, vi)
	}
	return productInputEnvelope{Product: p}
}

type inventoryLevelsEnvelope struct {
	InventoryLevels []wireInventoryLevel `json:"inventory_levels"`
}

type inventoryLevelEnvelope struct {
	InventoryLevel wireInventoryLevel `json:"inventory_level"`
}

type wireInventoryLevel struct {
	InventoryItemID json.Number `json:"inventory_item_id"`
	LocationID      json.Number `json:"location_id"`
	Available       *int        `json:"available"`
	UpdatedAt       *time.Time  `json:"updated_at"`
}

func (l wireInventoryLevel) toDomain() *catalogsync.InventoryLevel {
	out := &catalogsync.InventoryLevel{
		InventoryItemID: l.InventoryItemID.String(),
		LocationID:      l.LocationID.String(),
	}
	if l.Available != nil {
		out.Available = *l.Available
	}
	if l.UpdatedAt != nil {
		out.UpdatedAt = *l.UpdatedAt
	}
	return out
}

// setInventoryLevel is the body of inventory_levels/set.json
type setInventoryLevel struct {
	LocationID      json.Number `json:"location_id"`
	InventoryItemID json.Number `json:"inventory_item_id"`
	Available       int         `json:"available"`
}

type locationsEnvelope struct {
	Locations []wireLocation `json:"locations"`
}

type wireLocation struct {
	ID      json.Number `json:"id"`
	Name    string      `json:"name"`
	Primary bool        `json:"primary"`
	Active  *bool       `json:"active"`
}

func (l wireLocation) toDomain() catalogsync.Location {
	return catalogsync.Location{
		ID:      l.ID.String(),
		Name:    l.Name,
		Primary: l.Primary,
		Active:  l.Active == nil || *l.Active,
	}
}

type webhookEnvelope struct {
	Webhook wireWebhook `json:"webhook"`
}

type webhooksEnvelope struct {
	Webhooks []wireWebhook `json:"webhooks"`
}

type wireWebhook struct {
	ID        json.Number `json:"id,omitempty"`
	Topic     string      `json:"topic"`
	Address   string      `json:"address"`
	Format    string      `json:"format"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
}

func (w wireWebhook) toDomain() catalogsync.WebhookSubscription {
	out := catalogsync.WebhookSubscription{
		ID:      w.ID.String(),
		Topic:   w.Topic,
		Address: w.Address,
		Format:  w.Format,
	}
	if w.CreatedAt != nil {
		out.CreatedAt = *w.CreatedAt
	}
	return out
}
