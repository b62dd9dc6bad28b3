package ws

import "encoding/json"

// Event types pushed to register screens and the owner dashboard.
const (
	EventOrderCompleted    = "order.completed"
	EventOrderVoided       = "order.voided"
	EventInventoryLowStock = "inventory.low_stock"
	EventMenuItemUpdated   = "menu_item.updated"
	EventDrawerClosed      = "drawer.closed"
)

// NewEvent marshals the payload into an Event. Marshal failures produce
// an event with a null payload rather than an error; payloads are
// always plain structs under our control.
func NewEvent(eventType string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("null")
	}
	return Event{Type: eventType, Payload: data}
}
