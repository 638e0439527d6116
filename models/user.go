package models

import (
	"time"
)

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleOwner    UserRole = "owner"
	RoleAgent    UserRole = "agent"
	RoleAdmin    UserRole = "admin"
)

// Valid reports whether r is one of the known roles
func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleOwner, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// User is the single account entity; role-specific data hangs off it as
// optional associations (an owner's Restaurant, an agent's deliveries).
type User struct {
	ID           uint        `json:"id" gorm:"primaryKey"`
	Name         string      `json:"name" gorm:"not null"`
	Email        string      `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string      `json:"-" gorm:"not null"`
	Role         UserRole    `json:"role" gorm:"not null;default:'customer';index"`
	Phone        string      `json:"phone"`
	Town         string      `json:"town"`
	IsActive     bool        `json:"is_active" gorm:"not null"`
	Restaurant   *Restaurant `json:"restaurant,omitempty" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
