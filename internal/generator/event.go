package generator

import (
	"encoding/json"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ecommsim/datagen/internal/catalog"
)

// eventTimeLayout is a fixed-width ISO-8601 UTC timestamp with microsecond
// resolution, chosen so textual timestamps sort chronologically.
const eventTimeLayout = "2006-01-02T15:04:05.000000Z"

// Event is an immutable record of one customer action. Events are transient:
// they are built, delivered and dropped, never stored by the generator.
type Event struct {
	CustomerID string      `json:"customer_id"`
	ProductID  string      `json:"product_id"`
	Action     Action      `json:"action"`
	Timestamp  string      `json:"timestamp"`
	Price      json.Number `json:"price,omitempty"`
}

// BuildEvent converts a resolved action into an event record. The price is set
// only for purchases, copied from the product's current price.
func BuildEvent(customerID string, action Action, product catalog.Product, now time.Time) Event {
	event := Event{
		CustomerID: customerID,
		ProductID:  product.ID,
		Action:     action,
		Timestamp:  now.UTC().Format(eventTimeLayout),
	}

	if action == ActionPurchase {
		event.Price = json.Number(product.Price.String())
	}

	return event
}

// MarshalPayload renders the event as its JSON wire payload. The payload is
// marshaled once per event so that a duplicate delivery is byte-identical.
func (e Event) MarshalPayload() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(e)
}
