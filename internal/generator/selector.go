package generator

import (
	"errors"
	"math/rand"

	"github.com/ecommsim/datagen/internal/catalog"
	"github.com/ecommsim/datagen/internal/state"
)

var (
	// ErrNilTable is returned when a selector is created without a state table.
	ErrNilTable = errors.New("state table must not be nil")

	// ErrNilCatalog is returned when a selector is created without a catalog.
	ErrNilCatalog = errors.New("catalog must not be nil")
)

// Resolved is the outcome of one selection cycle: the action that was actually
// applied to customer state (after downgrades) and its target product.
type Resolved struct {
	CustomerID string
	Action     Action
	Product    catalog.Product
}

// Selector picks one customer, one action and one product per invocation,
// honoring the weighted randomness and the causal downgrade rules.
//
// A Selector owns its rand source and is NOT safe for concurrent use; each
// worker goroutine must have its own Selector.
type Selector struct {
	table   *state.Table
	catalog *catalog.Catalog
	weights Weights
	rng     *rand.Rand
}

// NewSelector creates a selector over the fixed customer population and catalog.
func NewSelector(table *state.Table, cat *catalog.Catalog, weights Weights, rng *rand.Rand) (*Selector, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	if cat == nil {
		return nil, ErrNilCatalog
	}

	return &Selector{
		table:   table,
		catalog: cat,
		weights: weights,
		rng:     rng,
	}, nil
}

// Next runs one selection cycle: weighted candidate draw, causal downgrades,
// product resolution and state application. The customer is locked for the
// whole read-modify-write cycle. Next never fails; any inconsistency degrades
// the action to a view.
func (s *Selector) Next() Resolved {
	customerID := s.table.RandomID(s.rng)

	customer := s.table.Acquire(customerID)
	defer customer.Release()

	action := s.downgrade(customer, s.weights.draw(s.rng.Float64()))
	action, product := s.resolveProduct(customer, action)
	action = s.apply(customer, action, product)

	return Resolved{
		CustomerID: customerID,
		Action:     action,
		Product:    product,
	}
}

// downgrade replaces a causally invalid candidate with a valid weaker action:
// cart and purchase need a viewed product, purchase needs a carted product.
func (s *Selector) downgrade(customer *state.Customer, candidate Action) Action {
	if (candidate == ActionCart || candidate == ActionPurchase) && customer.ViewedCount() == 0 {
		return ActionView
	}
	if candidate == ActionPurchase && customer.CartedCount() == 0 {
		return ActionCart
	}
	return candidate
}

// resolveProduct picks a target product for the action. Views draw from the
// whole catalog, carts from the viewed products, uncarts and purchases from
// the cart, returns from the purchases. If the required source is empty the
// action downgrades to a view over the catalog.
func (s *Selector) resolveProduct(customer *state.Customer, action Action) (Action, catalog.Product) {
	var source []string

	switch action {
	case ActionView:
		return ActionView, s.catalog.Random(s.rng)
	case ActionCart:
		source = customer.Viewed()
	case ActionUncart, ActionPurchase:
		source = distinct(customer.Carted())
	case ActionReturn:
		source = distinct(customer.Purchased())
	}

	if len(source) == 0 {
		return ActionView, s.catalog.Random(s.rng)
	}

	productID := source[s.rng.Intn(len(source))]
	product, ok := s.catalog.Get(productID)
	if !ok {
		// State references a product the catalog no longer knows.
		return ActionView, s.catalog.Random(s.rng)
	}

	return action, product
}

// apply mutates customer state for the resolved action and returns the action
// label that was actually applied.
func (s *Selector) apply(customer *state.Customer, action Action, product catalog.Product) Action {
	var err error

	switch action {
	case ActionCart:
		err = customer.RecordCart(product.ID)
	case ActionUncart:
		err = customer.RecordUncart(product.ID)
	case ActionPurchase:
		err = customer.RecordPurchase(product.ID)
	case ActionReturn:
		err = customer.RecordReturn(product.ID)
	default:
		customer.RecordView(product.ID)
		return ActionView
	}

	if err != nil {
		customer.RecordView(product.ID)
		return ActionView
	}

	return action
}

// distinct returns the unique product ids of a multiset, preserving first
// occurrence order.
func distinct(units []string) []string {
	seen := make(map[string]struct{}, len(units))
	ids := make([]string, 0, len(units))

	for _, unit := range units {
		if _, ok := seen[unit]; ok {
			continue
		}
		seen[unit] = struct{}{}
		ids = append(ids, unit)
	}

	return ids
}
