package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go.eggybyte.com/busnode/testingx"
)

func TestGORMStore_NilDB(t *testing.T) {
	store := NewGORMStore(nil, nil)

	err := store.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database connection is nil")
	assert.NoError(t, store.Close())
	assert.Nil(t, store.GetDB())
}

func TestNewGORMStoreFromOptions_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts GORMOptions
		want string
	}{
		{"empty DSN", GORMOptions{Driver: "mysql"}, "DSN is required"},
		{"empty driver", GORMOptions{DSN: "x"}, "driver is required"},
		{"unsupported driver", GORMOptions{DSN: "x", Driver: "mongo"}, "unsupported driver: mongo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGORMStoreFromOptions(context.Background(), tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetGORMDriver(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite"} {
		d, err := getGORMDriver(driver, "dsn")
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}
}

func TestDefaultGORMOptions(t *testing.T) {
	opts := DefaultGORMOptions()
	assert.Equal(t, 10, opts.MaxIdleConns)
	assert.Equal(t, 100, opts.MaxOpenConns)
	assert.Equal(t, time.Hour, opts.ConnMaxLifetime)
	assert.Equal(t, 3, opts.ConnectRetry.MaxAttempts)
}

func TestIsDatabaseConnectionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{gorm.ErrRecordNotFound, false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New(`duplicate key value violates unique constraint "orders_pkey"`), false},
		{errors.New("violates foreign key constraint"), false},
		{errors.New("something unexpected"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isDatabaseConnectionError(tt.err), "%v", tt.err)
	}
}

func TestGORMLogAdapter(t *testing.T) {
	logger := testingx.NewMockLogger(t)
	adapter := (&gormLogAdapter{logger: logger}).LogMode(0)
	ctx := context.Background()

	adapter.Info(ctx, "migrated %d tables", 3)
	logger.AssertLogged("INFO", "migrated 3 tables")

	adapter.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	e := logger.AssertLogged("DEBUG", "database query")
	assert.Equal(t, "SELECT 1", e.Fields["sql"])

	adapter.Trace(ctx, time.Now(), func() (string, int64) { return "", 0 }, errors.New("connection reset"))
	logger.AssertLogged("ERROR", "database query failed")

	adapter.Trace(ctx, time.Now(), func() (string, int64) { return "", 0 }, gorm.ErrRecordNotFound)
	logger.AssertLogged("DEBUG", "database query completed with error")
}

func TestRegistry_Ping(t *testing.T) {
	reg := NewRegistry()
	assert.NoError(t, reg.Ping(context.Background()))

	require.NoError(t, reg.Register("a", NewGORMStore(nil, nil)))
	err := reg.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store a ping failed")
}
