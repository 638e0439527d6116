// Package notify pushes order lifecycle events to connected listeners.
// Delivery is best effort: Emit never blocks, never reports failure and
// events may be dropped when listeners fall behind.
package notify

import (
	"time"

	"smartbite-api/models"

	"github.com/shopspring/decimal"
)

const (
	EventNewOrder          = "new-order"
	EventOrderStatusUpdate = "order-status-update"
	EventPaymentUpdate     = "payment-update"
	EventDeliveryLocation  = "delivery-location"
)

// Event is one notification. UserIDs and Roles select the websocket
// listeners that receive it; admins receive everything.
type Event struct {
	Name      string            `json:"event"`
	Payload   interface{}       `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
	UserIDs   []uint            `json:"-"`
	Roles     []models.UserRole `json:"-"`
}

// Emitter is implemented by Hub. Callers fire and forget.
type Emitter interface {
	Emit(ev Event)
}

// Discard drops every event
type Discard struct{}

func (Discard) Emit(Event) {}

type NewOrderPayload struct {
	OrderID      uint            `json:"orderId"`
	RestaurantID uint            `json:"restaurantId"`
	CustomerID   uint            `json:"customerId"`
	Total        decimal.Decimal `json:"total"`
}

type OrderStatusPayload struct {
	OrderID      uint               `json:"orderId"`
	Status       models.OrderStatus `json:"status"`
	RestaurantID uint               `json:"restaurantId"`
	CustomerID   uint               `json:"customerId"`
	AgentID      *uint              `json:"agentId,omitempty"`
}

type PaymentPayload struct {
	OrderID       uint                 `json:"orderId"`
	PaymentID     uint                 `json:"paymentId"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
}

type LocationPayload struct {
	OrderID   uint      `json:"orderId"`
	AgentID   uint      `json:"agentId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Recipients builds a de-duplicated, non-zero user id list
func Recipients(ids ...uint) []uint {
	out := make([]uint, 0, len(ids))
	seen := map[uint]bool{}
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
