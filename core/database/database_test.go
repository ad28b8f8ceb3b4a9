package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	t.Run("Invalid Connection", func(t *testing.T) {
		cfg := Config{
			Driver:         "mysql",
			Host:           "localhost",
			Port:           9999, // Unused port
			User:           "root",
			Password:       "wrongpassword",
			Name:           "crm_bridge",
			TimeoutSeconds: 1,
		}

		db, err := Connect(cfg)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("Unsupported Driver", func(t *testing.T) {
		db, err := Connect(Config{Driver: "oracle"})
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("SQLite Memory", func(t *testing.T) {
		db, err := Connect(Config{Driver: "sqlite", Name: "file:connect_test?mode=memory&cache=shared", Tracing: true})
		require.NoError(t, err)
		assert.Equal(t, "sqlite", db.Dialector.Name())
	})
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Driver: "mysql", Host: "db", Port: 3306, User: "sync", Password: "p@ss", Name: "crm_bridge", TimeoutSeconds: 5}
	dsn := cfg.DSN()
	assert.Contains(t, dsn, "sync:p%40ss@tcp(db:3306)/crm_bridge")
	assert.Contains(t, dsn, "timeout=5s")

	assert.Equal(t, "file::memory:?cache=shared", Config{Driver: "sqlite"}.DSN())
	assert.Equal(t, "state.db", Config{Driver: "sqlite", Name: "state.db"}.DSN())
	assert.Equal(t, 30*time.Second, Config{}.Timeout())
}
