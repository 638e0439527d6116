package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Restaurant struct {
	ID          uint                 `json:"id" gorm:"primaryKey"`
	OwnerID     uint                 `json:"owner_id" gorm:"not null;uniqueIndex"`
	Owner       *User                `json:"owner,omitempty" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Name        string               `json:"name" gorm:"not null"`
	Description string               `json:"description"`
	Town        string               `json:"town" gorm:"index"`
	Address     string               `json:"address" gorm:"not null"`
	Phone       string               `json:"phone" gorm:"not null"`
	DeliveryFee decimal.Decimal      `json:"delivery_fee" gorm:"type:decimal(12,2);not null;default:0"`
	MinOrder    decimal.Decimal      `json:"min_order" gorm:"type:decimal(12,2);not null;default:0"`
	IsActive    bool                 `json:"is_active" gorm:"not null"`
	Categories  []RestaurantCategory `json:"categories,omitempty" gorm:"foreignKey:RestaurantID;constraint:OnDelete:CASCADE"`
	MenuItems   []MenuItem           `json:"menu_items,omitempty" gorm:"foreignKey:RestaurantID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// RestaurantCategory is one member of a restaurant's category set
type RestaurantCategory struct {
	ID           uint   `json:"-" gorm:"primaryKey"`
	RestaurantID uint   `json:"-" gorm:"not null;uniqueIndex:idx_restaurant_category"`
	Category     string `json:"category" gorm:"not null;uniqueIndex:idx_restaurant_category"`
}

// CategorySet trims, drops empties and de-duplicates case-insensitively,
// keeping the first spelling seen.
func CategorySet(names []string) []RestaurantCategory {
	seen := map[string]bool{}
	var out []RestaurantCategory
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, RestaurantCategory{Category: n})
	}
	return out
}

type MenuItem struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	RestaurantID uint            `json:"restaurant_id" gorm:"not null;index"`
	Name         string          `json:"name" gorm:"not null"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Category     string          `json:"category" gorm:"default:'Main Course'"`
	PrepTime     int             `json:"prep_time_minutes" gorm:"default:15"`
	IsAvailable  bool            `json:"is_available" gorm:"not null"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// RestaurantPatch carries the optional fields of a restaurant update. A nil
// field is left untouched.
type RestaurantPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Town        *string          `json:"town"`
	Address     *string          `json:"address"`
	Phone       *string          `json:"phone"`
	DeliveryFee *decimal.Decimal `json:"delivery_fee"`
	MinOrder    *decimal.Decimal `json:"min_order"`
	IsActive    *bool            `json:"is_active"`
	Categories  *[]string        `json:"categories"`
}

// Columns returns the column updates for the supplied fields. Categories are
// a separate table and are not included.
func (p RestaurantPatch) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.Name != nil {
		cols["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		cols["description"] = strings.TrimSpace(*p.Description)
	}
	if p.Town != nil {
		cols["town"] = strings.TrimSpace(*p.Town)
	}
	if p.Address != nil {
		cols["address"] = strings.TrimSpace(*p.Address)
	}
	if p.Phone != nil {
		cols["phone"] = strings.TrimSpace(*p.Phone)
	}
	if p.DeliveryFee != nil {
		cols["delivery_fee"] = *p.DeliveryFee
	}
	if p.MinOrder != nil {
		cols["min_order"] = *p.MinOrder
	}
	if p.IsActive != nil {
		cols["is_active"] = *p.IsActive
	}
	return cols
}

// MenuItemPatch carries the optional fields of a menu item update.
type MenuItemPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	PrepTime    *int             `json:"prep_time_minutes"`
	IsAvailable *bool            `json:"is_available"`
}

func (p MenuItemPatch) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.Name != nil {
		cols["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		cols["description"] = strings.TrimSpace(*p.Description)
	}
	if p.Price != nil {
		cols["price"] = *p.Price
	}
	if p.Category != nil {
		cols["category"] = strings.TrimSpace(*p.Category)
	}
	if p.PrepTime != nil {
		cols["prep_time"] = *p.PrepTime
	}
	if p.IsAvailable != nil {
		cols["is_available"] = *p.IsAvailable
	}
	return cols
}
