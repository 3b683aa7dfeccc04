package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cobranzas/backend/internal/infrastructure/config"
)

func TestNewDatabase_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{Driver: config.DriverSQLite, DBName: "file::memory:"}

	db, err := NewDatabase(cfg, WithLogger(zap.NewNop(), gormlogger.Warn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.NoError(t, db.Ping())

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestDialectorFor(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{config.DriverPostgres, "postgres"},
		{"", "postgres"},
		{config.DriverMySQL, "mysql"},
		{config.DriverSQLite, "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.driver, func(t *testing.T) {
			d, err := dialectorFor(&config.DatabaseConfig{Driver: tt.driver, DBName: "x"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}
