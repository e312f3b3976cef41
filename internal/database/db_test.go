package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-booking/internal/config"
)

func TestDSN(t *testing.T) {
	base := config.DBConfig{User: "booking", Host: "db", Port: "3306", Name: "theater", SSLMode: "disable"}

	t.Run("mysql without password", func(t *testing.T) {
		cfg := base
		cfg.Driver = "mysql"
		dsn, err := DSN(cfg)
		require.NoError(t, err)
		assert.Equal(t, "booking@tcp(db:3306)/theater?charset=utf8mb4&parseTime=true&loc=UTC", dsn)
	})

	t.Run("mysql with password", func(t *testing.T) {
		cfg := base
		cfg.Driver = "mysql"
		cfg.Pass = "s3cret"
		dsn, err := DSN(cfg)
		require.NoError(t, err)
		assert.Contains(t, dsn, "booking:s3cret@tcp(db:3306)")
	})

	t.Run("postgres escapes credentials", func(t *testing.T) {
		cfg := base
		cfg.Driver = "postgres"
		cfg.Port = "5432"
		cfg.Pass = "p@ss word"
		dsn, err := DSN(cfg)
		require.NoError(t, err)
		assert.Equal(t, "postgres://booking:p%40ss%20word@db:5432/theater?sslmode=disable", dsn)
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := base
		cfg.Driver = "sqlite"
		_, err := DSN(cfg)
		assert.Error(t, err)
	})
}
