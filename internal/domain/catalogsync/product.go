package catalogsync

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Defaults applied to fields the source platform omitted
const (
	DefaultProductStatus      = "draft"
	DefaultInventoryPolicy    = "deny"
	DefaultFulfillmentService = "manual"
	DefaultWeightUnit         = "kg"
	DefaultVariantPosition    = 1
)

// ---------------------------------------------------------------------------
// Product (sanitized source product)
// ---------------------------------------------------------------------------

// Product is a platform product after sanitization.
// IDs are the external identifiers on the platform the product came from.
type Product struct {
	ID          string
	Title       string
	Description string
	Vendor      string
	ProductType string
	Status      string
	Handle      string
	Tags        string
	Images      []Image
	Variants    []Variant
	Options     []Option
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Image is a product image
type Image struct {
	ID       string `json:"id,omitempty"`
	Src      string `json:"src"`
	Alt      string `json:"alt"`
	Position int    `json:"position"`
}

// Option is a product option such as "Size" with its values
type Option struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Values   []string `json:"values"`
}

// Variant is a purchasable variant of a product
type Variant struct {
	ID                  string
	SKU                 string
	Price               decimal.Decimal
	CompareAtPrice      *decimal.Decimal
	InventoryItemID     string
	InventoryQuantity   int
	InventoryPolicy     string
	FulfillmentService  string
	InventoryManagement string
	Option1             string
	Option2             string
	Option3             string
	Position            int
	Weight              float64
	WeightUnit          string
	RequiresShipping    bool
	Taxable             bool
}

// Sanitize fills defaults for missing fields and trims identifiers.
// Boolean defaults (requires_shipping, taxable) are resolved by the platform
// adapter because only it can tell "absent" from "false".
func (p Product) Sanitize() Product {
	out := p
	out.ID = strings.TrimSpace(p.ID)
	if out.Status == "" {
		out.Status = DefaultProductStatus
	}

	out.Images = make([]Image, 0, len(p.Images))
	out.Images = append(out.Images, p.Images...)

	out.Options = make([]Option, 0, len(p.Options))
	for _, opt := range p.Options {
		if opt.Values == nil {
			opt.Values = []string{}
		}
		out.Options = append(out.Options, opt)
	}

	out.Variants = make([]Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		v.SKU = strings.TrimSpace(v.SKU)
		if v.InventoryPolicy == "" {
			v.InventoryPolicy = DefaultInventoryPolicy
		}
		if v.FulfillmentService == "" {
			v.FulfillmentService = DefaultFulfillmentService
		}
		if v.WeightUnit == "" {
			v.WeightUnit = DefaultWeightUnit
		}
		if v.Position == 0 {
			v.Position = DefaultVariantPosition
		}
		out.Variants = append(out.Variants, v)
	}
	return out
}

// PrimarySKU returns the SKU of the first variant, or "" if there is none
func (p Product) PrimarySKU() string {
	if len(p.Variants) == 0 {
		return ""
	}
	return p.Variants[0].SKU
}

// OptionKey returns the option-value tuple identifying the variant within its
// product, or "" if the variant has no option values.
func (v Variant) OptionKey() string {
	if v.Option1 == "" && v.Option2 == "" && v.Option3 == "" {
		return ""
	}
	return strings.ToLower(v.Option1 + "\x1f" + v.Option2 + "\x1f" + v.Option3)
}

// ---------------------------------------------------------------------------
// ProductInput (payload sent to the target platform)
// ---------------------------------------------------------------------------

// ProductInput is the store-neutral payload for creating or updating a
// product on a target platform. It never carries source-store identifiers.
type ProductInput struct {
	Title       string
	BodyHTML    string
	Vendor      string
	ProductType string
	Status      string
	Tags        string
	Images      []ImageInput
	Variants    []VariantInput
	Options     []OptionInput
}

// ImageInput is an image reference without a platform ID
type ImageInput struct {
	Src      string
	Alt      string
	Position int
}

// OptionInput is an option without a platform ID
type OptionInput struct {
	Name     string
	Position int
	Values   []string
}

// VariantInput is a variant without platform or inventory item IDs
type VariantInput struct {
	SKU                 string
	Price               decimal.Decimal
	CompareAtPrice      *decimal.Decimal
	InventoryPolicy     string
	FulfillmentService  string
	InventoryManagement string
	Option1             string
	Option2             string
	Option3             string
	Weight              float64
	WeightUnit          string
	RequiresShipping    bool
	Taxable             bool
}

// NewProductInput strips store-specific identifiers from a sanitized product
// and drops empty entries so the target platform applies its own defaults.
func NewProductInput(p Product) ProductInput {
	in := ProductInput{
		Title:       p.Title,
		BodyHTML:    p.Description,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Status:      p.Status,
		Tags:        p.Tags,
	}

	for _, img := range p.Images {
		if img.Src == "" {
			continue
		}
		in.Images = append(in.Images, ImageInput{Src: img.Src, Alt: img.Alt, Position: img.Position})
	}

	for _, opt := range p.Options {
		if opt.Name == "" {
			continue
		}
		in.Options = append(in.Options, OptionInput{Name: opt.Name, Position: opt.Position, Values: opt.Values})
	}

	for _, v := range p.Variants {
		in.Variants = append(in.Variants, VariantInput{
			SKU:                 v.SKU,
			Price:               v.Price,
			CompareAtPrice:      v.CompareAtPrice,
			InventoryPolicy:     v.InventoryPolicy,
			FulfillmentService:  v.FulfillmentService,
			InventoryManagement: v.InventoryManagement,
			Option1:             v.Option1,
			Option2:             v.Option2,
			Option3:             v.Option3,
			Weight:              v.Weight,
			WeightUnit:          v.WeightUnit,
			RequiresShipping:    v.RequiresShipping,
			Taxable:             v.Taxable,
		})
	}
	return in
}
