// Package dbtest opens throwaway in-memory databases for tests.
package dbtest

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/devclub/orgsite/internal/db"
)

func New(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}
