package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/placemates-backend/pkg/config"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type placeRow struct {
	ID   int
	Name string
}

func openSQLite(t *testing.T, logg *logger.Logger, slow time.Duration) *Client {
	t.Helper()
	client, err := New(context.Background(), config.DBConfig{
		Driver:    "sqlite",
		DSN:       fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
		SlowQuery: slow,
	}, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(&placeRow{}))
	return client
}

func count(t *testing.T, c *Client) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.DB().Model(&placeRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsOnlyOnSuccess(t *testing.T) {
	client := openSQLite(t, nil, 0)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&placeRow{Name: "kept"}).Error
	}))

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&placeRow{Name: "dropped"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, count(t, client))

	assert.Panics(t, func() {
		_ = client.WithTx(ctx, func(tx *gorm.DB) error {
			tx.Create(&placeRow{Name: "panicked"})
			panic("mid-transaction")
		})
	})
	assert.EqualValues(t, 1, count(t, client))
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: "sqlite"}, nil)
	assert.Error(t, err)
}

func TestNewEnablesSQLiteForeignKeys(t *testing.T) {
	client := openSQLite(t, nil, 0)
	var enabled int
	require.NoError(t, client.DB().Raw("PRAGMA foreign_keys").Scan(&enabled).Error)
	assert.Equal(t, 1, enabled)
	require.NoError(t, client.Ping(context.Background()))
}

func TestIsUniqueViolation(t *testing.T) {
	client := openSQLite(t, nil, 0)
	require.NoError(t, client.DB().Create(&placeRow{ID: 7, Name: "a"}).Error)
	err := client.DB().Create(&placeRow{ID: 7, Name: "b"}).Error

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "ux_outbox_events_event_aggregate"), "sqlite cannot name the index")
	assert.False(t, IsUniqueViolation(nil, ""))
	assert.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey, ""))
}

func TestIsNotFound(t *testing.T) {
	client := openSQLite(t, nil, 0)
	var row placeRow
	assert.True(t, IsNotFound(client.DB().First(&row, "id = ?", 999).Error))
}

func TestQueryLogReportsFailuresButNotMisses(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	client := openSQLite(t, logg, time.Hour)

	var row placeRow
	_ = client.DB().First(&row, "id = ?", 42).Error
	assert.NotContains(t, buf.String(), "query failed")

	_ = client.DB().Exec("SELECT * FROM no_such_table").Error
	assert.Contains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "no_such_table")
}

func TestQueryLogFlagsSlowStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	client := openSQLite(t, logg, time.Nanosecond)

	require.NoError(t, client.DB().Create(&placeRow{Name: "slow"}).Error)
	assert.Contains(t, buf.String(), "slow query")
}
