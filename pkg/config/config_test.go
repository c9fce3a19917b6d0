package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_ValoresPorDefecto(t *testing.T) {
	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, 25, cfg.DB.MaxConns)
	assert.True(t, cfg.DB.AutoMigrate)
	assert.Equal(t, "retain", cfg.Stock.EmptyRowPolicy)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestFromViper_SQLiteYPurge(t *testing.T) {
	v := viper.New()
	v.Set("DB_DRIVER", "SQLite")
	v.Set("SQLITE_PATH", "/tmp/bodega.db")
	v.Set("DB_MIGRATE", "false")
	v.Set("STOCK_EMPTY_ROW_POLICY", "PURGE")
	v.Set("HTTP_PORT", "9090")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "/tmp/bodega.db", cfg.DB.SQLitePath)
	assert.False(t, cfg.DB.AutoMigrate)
	assert.Equal(t, "purge", cfg.Stock.EmptyRowPolicy)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestFromViper_DriverDesconocido(t *testing.T) {
	v := viper.New()
	v.Set("DB_DRIVER", "mysql")
	_, err := fromViper(v)
	assert.Error(t, err)
}

func TestDBConfig_ConnectionString(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "stock", Password: "p@ss:word", DBName: "ledger", SSLMode: "disable"}
	assert.Equal(t, "postgres://stock:p%40ss%3Aword@db:5432/ledger?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgresql://otro"
	assert.Equal(t, "postgresql://otro", c.ConnectionString(), "DATABASE_URL tiene prioridad")
}
