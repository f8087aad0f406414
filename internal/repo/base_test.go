package repo

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return conn
}

type ctxKey struct{}

func TestDBBindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}

	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestTxPrefersTransaction(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	ctx := context.WithValue(context.Background(), ctxKey{}, "value")

	tx := db.Begin()
	defer tx.Rollback()

	bound := base.Tx(ctx, tx)
	if bound.Statement.ConnPool != tx.Statement.ConnPool {
		t.Fatalf("expected tx connection to be used")
	}
	if bound.Statement.Context != ctx {
		t.Fatalf("expected context on tx")
	}

	fallback := base.Tx(ctx, nil)
	if fallback.Statement.Context != ctx {
		t.Fatalf("expected fallback to base connection with context")
	}
}

type row struct {
	ID   int
	Name string
}

func TestTouchedReportsAffectedRows(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&row{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Create(&row{ID: 1, Name: "a"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	touched, err := Touched(db.Model(&row{}).Where("id = ?", 1).Update("name", "b"))
	if err != nil || !touched {
		t.Fatalf("expected update to touch a row, got %v %v", touched, err)
	}
	touched, err = Touched(db.Model(&row{}).Where("id = ?", 2).Update("name", "b"))
	if err != nil || touched {
		t.Fatalf("expected no rows touched, got %v %v", touched, err)
	}
	if _, err := Touched(db.Exec("UPDATE missing SET x = 1")); err == nil {
		t.Fatalf("expected statement error")
	}
}
