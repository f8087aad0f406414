// Package repo holds the plumbing shared by the users and places
// repositories.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by repositories that run both standalone statements and
// statements inside a caller's transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the pooled connection scoped to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	return b.Tx(ctx, nil)
}

// Tx scopes tx to ctx, or the pooled connection when tx is nil.
func (b Base) Tx(ctx context.Context, tx *gorm.DB) *gorm.DB {
	conn := tx
	if conn == nil {
		conn = b.db
	}
	if ctx == nil {
		return conn
	}
	return conn.WithContext(ctx)
}

// Touched reports whether a write statement changed any row.
func Touched(res *gorm.DB) (bool, error) {
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
