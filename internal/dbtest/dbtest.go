// Package dbtest opens migrated in-memory SQLite databases for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/giftar/giftpin/internal/db"
	"github.com/giftar/giftpin/internal/models"
)

// Open returns a migrated in-memory database private to the test.
// The pool holds a single connection so concurrent callers serialize on it.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())

	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

// CreateShop inserts a shop with the given balance.
func CreateShop(t testing.TB, conn *gorm.DB, name string, balance int64) models.ShopAccount {
	t.Helper()
	shop := models.ShopAccount{Name: name, Balance: balance}
	if errCreate := conn.Create(&shop).Error; errCreate != nil {
		t.Fatalf("create shop: %v", errCreate)
	}
	return shop
}

// Balance reads a shop balance directly.
func Balance(t testing.TB, conn *gorm.DB, shopID uint64) int64 {
	t.Helper()
	var shop models.ShopAccount
	if errFind := conn.Unscoped().First(&shop, shopID).Error; errFind != nil {
		t.Fatalf("load shop %d: %v", shopID, errFind)
	}
	return shop.Balance
}
