// Package testdb opens throwaway sqlite databases and seeds fixtures for
// package tests.
package testdb

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"smartbite-api/config"
	"smartbite-api/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns a migrated database stored under t.TempDir(). A single
// connection keeps fixture writes strictly ordered.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	return open(t, 1)
}

// OpenPool is Open with a pool of conns connections, for tests that need
// operations genuinely in flight at the same time.
func OpenPool(t testing.TB, conns int) *gorm.DB {
	t.Helper()
	return open(t, conns)
}

func open(t testing.TB, conns int) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(config.SQLiteDSN(path)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// User creates an active user with the given role
func User(t testing.TB, db *gorm.DB, role models.UserRole) models.User {
	t.Helper()
	n := seq.Add(1)
	u := models.User{
		Name:         fmt.Sprintf("%s %d", role, n),
		Email:        fmt.Sprintf("%s%d@example.com", role, n),
		PasswordHash: "x",
		Role:         role,
		Phone:        "677000000",
		IsActive:     true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// Restaurant creates an active restaurant owned by a fresh owner
func Restaurant(t testing.TB, db *gorm.DB) (models.Restaurant, models.User) {
	t.Helper()
	owner := User(t, db, models.RoleOwner)
	r := models.Restaurant{
		OwnerID:  owner.ID,
		Name:     "Chez " + owner.Name,
		Town:     "Douala",
		Address:  "1 Rue de la Joie",
		Phone:    "233000000",
		IsActive: true,
	}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("create restaurant: %v", err)
	}
	return r, owner
}

// MenuItem creates an available menu item with the given price
func MenuItem(t testing.TB, db *gorm.DB, restaurantID uint, price int64) models.MenuItem {
	t.Helper()
	m := models.MenuItem{
		RestaurantID: restaurantID,
		Name:         fmt.Sprintf("Dish %d", seq.Add(1)),
		Price:        decimal.NewFromInt(price),
		Category:     "Main Course",
		IsAvailable:  true,
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("create menu item: %v", err)
	}
	return m
}

// Order inserts an order directly in the given status, bypassing the engine
func Order(t testing.TB, db *gorm.DB, customerID, restaurantID uint, status models.OrderStatus, total int64) models.Order {
	t.Helper()
	o := models.Order{
		CustomerID:      customerID,
		RestaurantID:    restaurantID,
		Status:          status,
		Total:           decimal.NewFromInt(total),
		DeliveryAddress: "Akwa, Douala",
		CustomerPhone:   "677000000",
		PaymentMethod:   "mobile_money",
		PaymentStatus:   models.PaymentStatusPending,
	}
	if err := db.Create(&o).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}
