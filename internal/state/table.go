// Package state implements the customer state table: per-customer containers
// tracking which products a customer has viewed, carted and purchased.
//
// Every customer is guarded by its own mutex which callers acquire for the
// duration of one read-modify-write cycle, so concurrent workers operating on
// different customers never block each other while operations on the same
// customer are serialized.
package state

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

var (
	// ErrProductNotViewed is returned when a product is carted before it was viewed.
	ErrProductNotViewed = errors.New("product was never viewed by this customer")

	// ErrProductNotInCart is returned when a product is uncarted or purchased
	// without being in the customer's cart.
	ErrProductNotInCart = errors.New("product is not in this customer's cart")

	// ErrProductNotPurchased is returned when a product is returned without a
	// matching purchase.
	ErrProductNotPurchased = errors.New("product was not purchased by this customer")
)

// Customer holds the mutable shopping state of a single simulated customer.
//
// viewed grows monotonically and never shrinks. carted is a multiset: the same
// product may be carted several times before being purchased once. purchased
// is a multiset as well, since a product can be bought, returned and bought
// again.
type Customer struct {
	mu sync.Mutex

	id        string
	viewed    map[string]struct{}
	carted    []string
	purchased []string

	// Running transition counters, used by the aggregator. Deriving these
	// from the containers would undercount repeats, so every transition
	// increments its counter directly.
	views     int64
	carts     int64
	uncarts   int64
	purchases int64
	returns   int64
}

// ID returns the customer's stable identifier.
func (c *Customer) ID() string {
	return c.id
}

// Release unlocks the customer after a read-modify-write cycle.
func (c *Customer) Release() {
	c.mu.Unlock()
}

// The read accessors and Record* transitions below must only be called between
// Table.Acquire and Release.

// HasViewed reports whether the customer has ever viewed the product.
func (c *Customer) HasViewed(productID string) bool {
	_, ok := c.viewed[productID]
	return ok
}

// ViewedCount returns the number of distinct products the customer has viewed.
func (c *Customer) ViewedCount() int {
	return len(c.viewed)
}

// CartedCount returns the number of units currently in the cart.
func (c *Customer) CartedCount() int {
	return len(c.carted)
}

// PurchasedCount returns the number of units currently purchased and not returned.
func (c *Customer) PurchasedCount() int {
	return len(c.purchased)
}

// Viewed returns the distinct product ids the customer has viewed.
func (c *Customer) Viewed() []string {
	ids := make([]string, 0, len(c.viewed))
	for id := range c.viewed {
		ids = append(ids, id)
	}
	return ids
}

// Carted returns a copy of the cart contents, one entry per unit.
func (c *Customer) Carted() []string {
	carted := make([]string, len(c.carted))
	copy(carted, c.carted)
	return carted
}

// Purchased returns a copy of the purchased units.
func (c *Customer) Purchased() []string {
	purchased := make([]string, len(c.purchased))
	copy(purchased, c.purchased)
	return purchased
}

// RecordView marks the product as viewed. It always succeeds.
func (c *Customer) RecordView(productID string) {
	c.viewed[productID] = struct{}{}
	c.views++
}

// RecordCart appends one unit of the product to the cart.
// The product must have been viewed before.
func (c *Customer) RecordCart(productID string) error {
	if !c.HasViewed(productID) {
		return fmt.Errorf("cart %s for %s: %w", productID, c.id, ErrProductNotViewed)
	}

	c.carted = append(c.carted, productID)
	c.carts++

	return nil
}

// RecordUncart removes one unit of the product from the cart.
func (c *Customer) RecordUncart(productID string) error {
	if !removeOne(&c.carted, productID) {
		return fmt.Errorf("uncart %s for %s: %w", productID, c.id, ErrProductNotInCart)
	}

	c.uncarts++

	return nil
}

// RecordPurchase moves one unit of the product from the cart to the purchases.
// Cart and purchase are mutually exclusive for the same unit, so the unit is
// removed from the cart in the same transition.
func (c *Customer) RecordPurchase(productID string) error {
	if !removeOne(&c.carted, productID) {
		return fmt.Errorf("purchase %s for %s: %w", productID, c.id, ErrProductNotInCart)
	}

	c.purchased = append(c.purchased, productID)
	c.purchases++

	return nil
}

// RecordReturn removes one purchased unit of the product.
func (c *Customer) RecordReturn(productID string) error {
	if !removeOne(&c.purchased, productID) {
		return fmt.Errorf("return %s for %s: %w", productID, c.id, ErrProductNotPurchased)
	}

	c.returns++

	return nil
}

// removeOne removes the first occurrence of productID from the slice.
func removeOne(units *[]string, productID string) bool {
	for i, unit := range *units {
		if unit == productID {
			*units = append((*units)[:i], (*units)[i+1:]...)
			return true
		}
	}
	return false
}

// Table maps customer ids to their guarded state. The customer population is
// fixed at process start, there is no churn.
type Table struct {
	ids       []string
	customers map[string]*Customer
}

// NewTable creates a table for numCustomers customers named customer_<i>.
func NewTable(numCustomers int) *Table {
	table := &Table{
		ids:       make([]string, 0, numCustomers),
		customers: make(map[string]*Customer, numCustomers),
	}

	for i := 0; i < numCustomers; i++ {
		id := fmt.Sprintf("customer_%d", i)
		table.ids = append(table.ids, id)
		table.customers[id] = &Customer{
			id:     id,
			viewed: make(map[string]struct{}),
		}
	}

	return table
}

// Size returns the number of customers in the table.
func (t *Table) Size() int {
	return len(t.ids)
}

// RandomID returns a customer id chosen uniformly from the population.
func (t *Table) RandomID(rng *rand.Rand) string {
	return t.ids[rng.Intn(len(t.ids))]
}

// Acquire locks the customer's state for one read-modify-write cycle and
// returns it. The caller must call Release when done. Acquire returns nil for
// unknown ids.
func (t *Table) Acquire(customerID string) *Customer {
	customer, ok := t.customers[customerID]
	if !ok {
		return nil
	}

	customer.mu.Lock()

	return customer
}

// Snapshot holds aggregate counts derived from the whole table.
//
// Orders and carts reflect the current container sizes at scan time, returns,
// uncarts and views are cumulative transition counts. The scan locks one
// customer at a time, so the result is not a point-in-time snapshot under
// concurrent mutation; that approximation is accepted.
type Snapshot struct {
	TotalOrders  int64
	TotalReturns int64
	TotalCarts   int64
	TotalUncarts int64
	TotalViews   int64
}

// Snapshot scans all customers and sums their counts.
func (t *Table) Snapshot() Snapshot {
	var snapshot Snapshot

	for _, id := range t.ids {
		customer := t.customers[id]

		customer.mu.Lock()
		snapshot.TotalOrders += int64(len(customer.purchased))
		snapshot.TotalCarts += int64(len(customer.carted))
		snapshot.TotalReturns += customer.returns
		snapshot.TotalUncarts += customer.uncarts
		snapshot.TotalViews += customer.views
		customer.mu.Unlock()
	}

	return snapshot
}
