package database

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 支持的驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config 数据库配置
type Config struct {
	// Driver sqlite | postgres | mysql
	Driver string `yaml:"driver" json:"driver" env:"DRIVER"`
	// DSN 连接串；sqlite 下为文件路径或 ":memory:"
	DSN  string     `yaml:"dsn" json:"dsn" env:"DSN"`
	Pool PoolConfig `yaml:"pool" json:"pool" env:"POOL"`
}

// DefaultConfig 默认使用本地 sqlite 文件
func DefaultConfig() Config {
	return Config{
		Driver: DriverSQLite,
		DSN:    "data/thucchien.db",
		Pool:   DefaultPoolConfig(),
	}
}

// Validate 校验数据库配置
func (c Config) Validate() error {
	if _, err := dialector(c); err != nil {
		return err
	}
	return c.Pool.Validate()
}

func dialector(c Config) (gorm.Dialector, error) {
	if c.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	switch strings.ToLower(c.Driver) {
	case DriverSQLite, "sqlite3", "":
		return sqlite.Open(c.DSN), nil
	case DriverPostgres, "postgresql":
		return postgres.Open(c.DSN), nil
	case DriverMySQL:
		return mysql.Open(c.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// Open 按驱动打开数据库并包装为 PoolManager
func Open(c Config, logger *zap.Logger, opts ...PoolOption) (*PoolManager, error) {
	d, err := dialector(c)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", c.Driver, err)
	}

	pool := c.Pool
	if pool.MaxOpenConns <= 0 {
		pool = DefaultPoolConfig()
	}
	// sqlite 单写者，避免 database is locked
	if d.Name() == "sqlite" {
		pool.MaxOpenConns = 1
		pool.MaxIdleConns = 1
	}

	logger.Info("database opened", zap.String("driver", d.Name()))
	return NewPoolManager(db, pool, logger, opts...)
}
