package database

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func mockGorm(t *testing.T) (sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	return mock, db
}

func TestNewPoolManager_AppliesLimits(t *testing.T) {
	mock, db := mockGorm(t)
	cfg := PoolConfig{MaxOpenConns: 6, MaxIdleConns: 3, ConnMaxLifetime: time.Hour}

	pm, err := NewPoolManager(db, cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Same(t, db, pm.DB())
	assert.Equal(t, 6, pm.Stats().MaxOpenConnections)

	mock.ExpectClose()
	require.NoError(t, pm.Close())
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), nil)
	assert.EqualError(t, err, "db cannot be nil")
}

func TestPoolManager_Ping(t *testing.T) {
	mock, db := mockGorm(t)
	pm, err := NewPoolManager(db, PoolConfig{MaxOpenConns: 2, MaxIdleConns: 1}, nil)
	require.NoError(t, err)

	mock.ExpectPing()
	require.NoError(t, pm.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.ErrorIs(t, pm.Ping(context.Background()), sql.ErrConnDone)

	mock.ExpectClose()
	require.NoError(t, pm.Close())
	require.NoError(t, pm.Close())
	assert.ErrorIs(t, pm.Ping(context.Background()), ErrPoolClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_ReportCallsHookOnlyOnHealthyPing(t *testing.T) {
	mock, db := mockGorm(t)

	var reports atomic.Int32
	pm, err := NewPoolManager(db, PoolConfig{MaxOpenConns: 2, MaxIdleConns: 1}, zap.NewNop(),
		WithStatsHook(func(open, idle int) { reports.Add(1) }))
	require.NoError(t, err)

	mock.ExpectPing()
	pm.report()
	assert.Equal(t, int32(1), reports.Load())

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	pm.report()
	assert.Equal(t, int32(1), reports.Load())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_MonitorStopsOnClose(t *testing.T) {
	pm, err := Open(Config{
		Driver: DriverSQLite,
		DSN:    ":memory:",
		Pool:   PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1, HealthCheckInterval: 5 * time.Millisecond},
	}, zap.NewNop(), WithStatsHook(func(open, idle int) {}))
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, pm.Close())
}

func TestPoolConfig_Validate(t *testing.T) {
	cases := []struct {
		cfg PoolConfig
		err string
	}{
		{cfg: DefaultPoolConfig()},
		{cfg: PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}},
		{cfg: PoolConfig{MaxIdleConns: 1}, err: "max_open_conns must be positive, got 0"},
		{cfg: PoolConfig{MaxOpenConns: 4}, err: "max_idle_conns must be positive, got 0"},
		{cfg: PoolConfig{MaxOpenConns: 2, MaxIdleConns: 4}, err: "max_idle_conns (4) exceeds max_open_conns (2)"},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if tc.err == "" {
			assert.NoError(t, err)
			continue
		}
		assert.EqualError(t, err, tc.err)
	}
}
