package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erfan-mirasadi/menu-3d/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := config.Config{DBUser: "menu", DBPass: "p@ss:word", DBHost: "db.local", DBPort: "3307", DBName: "menu3d"}

	parsed, err := mysql.ParseDSN(dsn(cfg))
	require.NoError(t, err)
	assert.Equal(t, "menu", parsed.User)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db.local:3307", parsed.Addr)
	assert.Equal(t, "menu3d", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.True(t, parsed.ClientFoundRows)
	assert.Equal(t, time.UTC, parsed.Loc)
	assert.Equal(t, "utf8mb4_unicode_ci", parsed.Collation)
}

func TestDSNWithoutPassword(t *testing.T) {
	parsed, err := mysql.ParseDSN(dsn(config.Config{DBUser: "root", DBHost: "127.0.0.1", DBPort: "3306", DBName: "menu3d"}))
	require.NoError(t, err)
	assert.Equal(t, "root", parsed.User)
	assert.Empty(t, parsed.Passwd)
}
