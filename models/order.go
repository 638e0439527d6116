package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents all possible states of a food delivery order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusInTransit OrderStatus = "in_transit"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus is the order-level view of payment, synced from Payment rows
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type Order struct {
	ID              uint                 `json:"id" gorm:"primaryKey"`
	CustomerID      uint                 `json:"customer_id" gorm:"not null;index"`
	Customer        *User                `json:"customer,omitempty" gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
	RestaurantID    uint                 `json:"restaurant_id" gorm:"not null;index"`
	Restaurant      *Restaurant          `json:"restaurant,omitempty" gorm:"foreignKey:RestaurantID;constraint:OnDelete:CASCADE"`
	AgentID         *uint                `json:"agent_id" gorm:"index"`
	Agent           *User                `json:"agent,omitempty" gorm:"foreignKey:AgentID;constraint:OnDelete:SET NULL"`
	Status          OrderStatus          `json:"status" gorm:"not null;default:'pending';index"`
	Total           decimal.Decimal      `json:"total" gorm:"type:decimal(12,2);not null"`
	DeliveryAddress string               `json:"delivery_address" gorm:"not null"`
	CustomerPhone   string               `json:"customer_phone" gorm:"not null"`
	PaymentMethod   string               `json:"payment_method" gorm:"not null;default:'cash'"`
	PaymentStatus   PaymentStatus        `json:"payment_status" gorm:"not null;default:'pending'"`
	Items           []OrderItem          `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory   []OrderStatusHistory `json:"status_history,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`

	// PaymentClaim is held while a collection request is in flight
	PaymentClaim        *string `json:"-"`
	PaymentClaimExpires int64   `json:"-" gorm:"not null;default:0"`
}

// OrderItem is one order line. Price and Name are snapshotted at creation
// and never updated; MenuItemID is cleared if the menu item is deleted.
type OrderItem struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	OrderID    uint            `json:"order_id" gorm:"not null;index"`
	MenuItemID *uint           `json:"menu_item_id" gorm:"index"`
	MenuItem   *MenuItem       `json:"menu_item,omitempty" gorm:"foreignKey:MenuItemID;constraint:OnDelete:SET NULL"`
	Quantity   int             `json:"quantity" gorm:"not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Name       string          `json:"name"`
}

// Subtotal is quantity times the snapshotted price
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderStatusHistory tracks every status change
type OrderStatusHistory struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	OrderID    uint        `json:"order_id" gorm:"not null;index"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status" gorm:"not null"`
	ChangedBy  uint        `json:"changed_by"`
	Note       string      `json:"note"`
	CreatedAt  time.Time   `json:"created_at"`
}

// DeliveryLocationPing is one point of an agent's delivery trail. Rows are
// only ever appended.
type DeliveryLocationPing struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	OrderID   uint      `json:"order_id" gorm:"not null;index"`
	Order     *Order    `json:"-" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	AgentID   uint      `json:"agent_id" gorm:"not null"`
	Latitude  float64   `json:"latitude" gorm:"not null"`
	Longitude float64   `json:"longitude" gorm:"not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
}
