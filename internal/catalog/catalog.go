// Package catalog holds the fixed set of sellable products known to the generator.
// The catalog is loaded once at startup and is read-only afterwards, so it is
// safe to share across all generation workers without locking.
package catalog

import (
	"errors"
	"math/rand"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyCatalog is returned when a catalog is created without any products.
	// Action resolution draws uniformly from the catalog, so an empty catalog
	// would make every generation cycle fail; it is treated as a fatal
	// precondition instead.
	ErrEmptyCatalog = errors.New("catalog must contain at least one product")

	// ErrDuplicateProductID is returned when two products share an id.
	ErrDuplicateProductID = errors.New("catalog contains a duplicate product id")
)

// Product is an immutable record describing one sellable item.
type Product struct {
	ID         string
	Brand      string
	Model      string
	Price      decimal.Decimal
	StockCount int
}

// Catalog is the immutable product collection.
type Catalog struct {
	products []Product
	byID     map[string]Product
}

// New creates a catalog from the given products.
func New(products []Product) (*Catalog, error) {
	if len(products) == 0 {
		return nil, ErrEmptyCatalog
	}

	byID := make(map[string]Product, len(products))
	for _, product := range products {
		if _, exists := byID[product.ID]; exists {
			return nil, ErrDuplicateProductID
		}
		byID[product.ID] = product
	}

	owned := make([]Product, len(products))
	copy(owned, products)

	return &Catalog{products: owned, byID: byID}, nil
}

// Len returns the number of products in the catalog.
func (c *Catalog) Len() int {
	return len(c.products)
}

// Random returns a product chosen uniformly from the whole catalog.
func (c *Catalog) Random(rng *rand.Rand) Product {
	return c.products[rng.Intn(len(c.products))]
}

// Get returns the product with the given id.
func (c *Catalog) Get(productID string) (Product, bool) {
	product, ok := c.byID[productID]
	return product, ok
}

// Products returns a copy of all products, in load order.
func (c *Catalog) Products() []Product {
	products := make([]Product, len(c.products))
	copy(products, c.products)
	return products
}
