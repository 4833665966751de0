package catalog_test

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecommsim/datagen/internal/catalog"
)

func Test_New_RejectsEmptyCatalog(t *testing.T) {
	_, err := catalog.New(nil)
	assert.ErrorIs(t, err, catalog.ErrEmptyCatalog)

	_, err = catalog.New([]catalog.Product{})
	assert.ErrorIs(t, err, catalog.ErrEmptyCatalog)
}

func Test_New_RejectsDuplicateProductIDs(t *testing.T) {
	_, err := catalog.New([]catalog.Product{
		{ID: "product_1", Brand: "Acme", Model: "Widget"},
		{ID: "product_1", Brand: "Acme", Model: "Gadget"},
	})

	assert.ErrorIs(t, err, catalog.ErrDuplicateProductID)
}

func Test_Get_ReturnsProductByID(t *testing.T) {
	cat, err := catalog.New([]catalog.Product{
		{ID: "product_1", Brand: "Acme", Model: "Widget", Price: decimal.RequireFromString("19.99"), StockCount: 5},
		{ID: "product_2", Brand: "Acme", Model: "Gadget", Price: decimal.RequireFromString("5.50"), StockCount: 7},
	})
	require.NoError(t, err)

	product, ok := cat.Get("product_2")
	require.True(t, ok)
	assert.Equal(t, "Gadget", product.Model)
	assert.True(t, product.Price.Equal(decimal.RequireFromString("5.50")))

	_, ok = cat.Get("product_99")
	assert.False(t, ok)
}

func Test_Random_DrawsEveryProductEventually(t *testing.T) {
	cat, err := catalog.New([]catalog.Product{
		{ID: "product_1"},
		{ID: "product_2"},
		{ID: "product_3"},
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))

	seen := make(map[string]int)
	for i := 0; i < 300; i++ {
		seen[cat.Random(rng).ID]++
	}

	assert.Len(t, seen, 3)
	for id, count := range seen {
		assert.Greater(t, count, 0, "product %s never drawn", id)
	}
}

func Test_Products_ReturnsACopy(t *testing.T) {
	cat, err := catalog.New([]catalog.Product{{ID: "product_1", StockCount: 10}})
	require.NoError(t, err)

	products := cat.Products()
	products[0].StockCount = 0

	fresh := cat.Products()
	assert.Equal(t, 10, fresh[0].StockCount)
}
