package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

type ledgerRow struct {
	ID     int
	Amount int64
}

func memoryClient(t *testing.T) (*Client, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&ledgerRow{}))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewFromConn(conn), conn
}

func rows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	client, conn := memoryClient(t)
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Amount: 100}).Error
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows(t, conn))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	client, conn := memoryClient(t)
	boom := errors.New("boom")
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&ledgerRow{Amount: 250}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, rows(t, conn))
}

func TestWithTxRollsBackAndRepanics(t *testing.T) {
	client, conn := memoryClient(t)
	assert.PanicsWithValue(t, "boom", func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&ledgerRow{Amount: 1}).Error)
			panic("boom")
		})
	})
	assert.Zero(t, rows(t, conn))
}

func TestPingAndClose(t *testing.T) {
	client, _ := memoryClient(t)
	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Close())
	assert.Error(t, client.Ping(context.Background()))
}

func TestDialectorFor(t *testing.T) {
	_, err := dialectorFor(config.DBConfig{Driver: "mysql", DSN: "x"})
	assert.ErrorContains(t, err, "unsupported")

	_, err = dialectorFor(config.DBConfig{Driver: "postgres"})
	assert.ErrorContains(t, err, "DSN")

	_, err = dialectorFor(config.DBConfig{Driver: "sqlite", SQLitePath: "", DSN: ""})
	assert.Error(t, err)

	d, err := dialectorFor(config.DBConfig{Driver: " SQLite ", SQLitePath: "file::memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = dialectorFor(config.DBConfig{DSN: "postgres://localhost/storefront"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}
