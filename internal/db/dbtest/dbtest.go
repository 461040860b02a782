// Package dbtest provides an isolated in-memory store for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sengunthar/matrimony/internal/db"
)

// Open spins up a named in-memory SQLite database with the full schema.
// Each test gets its own database; it is closed on cleanup.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// User inserts a user with sensible defaults. Mutate the record before
// calling to override fields.
func User(t *testing.T, gdb *gorm.DB, u db.User) db.User {
	t.Helper()
	if u.Name == "" {
		u.Name = "user"
	}
	if u.Email == "" {
		u.Email = fmt.Sprintf("u%d@test.com", time.Now().UnixNano())
	}
	if u.PasswordHash == "" {
		u.PasswordHash = "x"
	}
	if u.Status == "" {
		u.Status = db.UserActive
	}
	if u.LastLoginAt.IsZero() {
		u.LastLoginAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	require.NoError(t, gdb.Create(&u).Error)
	return u
}
