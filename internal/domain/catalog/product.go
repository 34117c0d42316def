package catalog

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Category groups products on the shop page.
type Category string

const (
	CategoryCourses    Category = "courses"
	CategoryIndicators Category = "indicators"
	CategoryBundles    Category = "bundles"
	// CategoryAll is a filter value, never a product category.
	CategoryAll Category = "all"
)

// Product is an item of the static catalog. Title is the unique key and
// Price is authored in the reference currency (INR).
type Product struct {
	Title            string
	ShortCode        string
	ShortDescription string
	Features         []string
	Price            decimal.Decimal
	Category         Category
	VideoURL         string
}

// Promotion marks the highlighted product and the product on sale together
// with its promotional reference-currency price.
type Promotion struct {
	PopularTitle    string
	OnSaleTitle     string
	DiscountedPrice decimal.Decimal
}

// OnSale reports whether p carries the promotional price.
func (pr Promotion) OnSale(p Product) bool {
	return pr.OnSaleTitle != "" && pr.OnSaleTitle == p.Title && pr.DiscountedPrice.IsPositive()
}

// Popular reports whether p is the highlighted product.
func (pr Promotion) Popular(p Product) bool {
	return pr.PopularTitle != "" && pr.PopularTitle == p.Title
}

// Catalog is the immutable product list of the running process.
type Catalog struct {
	products  []Product
	byTitle   map[string]int
	promotion Promotion
}

// New builds a Catalog. Titles must be unique; a later duplicate replaces the
// earlier one in lookups.
func New(products []Product, promo Promotion) *Catalog {
	c := &Catalog{
		products:  products,
		byTitle:   make(map[string]int, len(products)),
		promotion: promo,
	}
	for i, p := range products {
		c.byTitle[p.Title] = i
	}
	return c
}

// List returns the products of the given category in catalog order.
// CategoryAll and the empty category return every product.
func (c *Catalog) List(category Category) []Product {
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		if category == "" || category == CategoryAll || p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the product with the given title.
func (c *Catalog) Get(title string) (Product, error) {
	i, ok := c.byTitle[title]
	if !ok {
		return Product{}, ErrNotFound
	}
	return c.products[i], nil
}

// Promotion returns the active promotion settings.
func (c *Catalog) Promotion() Promotion {
	return c.promotion
}
