package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpen_SQLiteMemory(t *testing.T) {
	pm, err := Open(Config{Driver: DriverSQLite, DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	defer pm.Close()

	require.NoError(t, pm.Ping(context.Background()))
	assert.Equal(t, 1, pm.Stats().MaxOpenConnections)

	var one int
	require.NoError(t, pm.DB().Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{Driver: "postgres", DSN: "host=x", Pool: DefaultPoolConfig()}.Validate())
	assert.NoError(t, Config{Driver: "mysql", DSN: "u@/db", Pool: DefaultPoolConfig()}.Validate())
	assert.Error(t, Config{Driver: "oracle", DSN: "x", Pool: DefaultPoolConfig()}.Validate())
	assert.Error(t, Config{Driver: "sqlite", Pool: DefaultPoolConfig()}.Validate())
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "x"}, nil)
	assert.Error(t, err)
}
