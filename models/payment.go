package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentAttemptStatus string

const (
	PaymentPending    PaymentAttemptStatus = "pending"
	PaymentSuccessful PaymentAttemptStatus = "successful"
	PaymentFailed     PaymentAttemptStatus = "failed"
)

// Payment is one collection attempt against an order. Retries create new rows.
type Payment struct {
	ID                uint                 `json:"id" gorm:"primaryKey"`
	OrderID           uint                 `json:"order_id" gorm:"not null;index"`
	Order             *Order               `json:"-" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	UserID            uint                 `json:"user_id" gorm:"not null;index"`
	Amount            decimal.Decimal      `json:"amount" gorm:"type:decimal(12,2);not null"`
	Currency          string               `json:"currency" gorm:"not null;default:'XAF'"`
	PhoneNumber       string               `json:"phone_number" gorm:"not null"`
	Method            string               `json:"payment_method" gorm:"not null;default:'mobile_money'"`
	Status            PaymentAttemptStatus `json:"status" gorm:"not null;default:'pending';index"`
	Reference         *string              `json:"reference" gorm:"uniqueIndex"`
	ExternalReference string               `json:"external_reference" gorm:"not null;uniqueIndex"`
	Operator          string               `json:"operator"`
	OperatorReference string               `json:"operator_reference"`
	Reason            string               `json:"reason"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}
