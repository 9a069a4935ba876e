package db

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xxxsen/routecache/internal/config"
)

const pingTimeout = 3 * time.Second

// DB is the shared connection pool. It is built once at startup and handed
// to every repo that needs it.
type DB struct {
	*sqlx.DB
	dialect *Dialect
}

func (d *DB) Dialect() *Dialect {
	return d.dialect
}

// Open builds the pool. The backend does not need to be reachable yet: an
// unreachable backend is logged and reported by the health check later on.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	dialect, err := LookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := sqlx.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = config.DefaultPoolSize
	}
	conn.SetMaxOpenConns(poolSize)
	conn.SetMaxIdleConns(poolSize)

	logger := logutil.GetLogger(context.Background()).With(zap.String("driver", dialect.Name), zap.Int("pool_size", poolSize))
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		logger.Warn("database not reachable at startup", zap.Error(err))
	} else {
		logger.Info("database connected")
	}
	return &DB{DB: conn, dialect: dialect}, nil
}

// EnsureTable creates the result table and its indexes when missing.
func (d *DB) EnsureTable(ctx context.Context, table string) error {
	for _, stmt := range d.dialect.Schema(table) {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return nil
}

func buildDSN(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "mysql":
		return mysqlDSN(cfg)
	case "postgres":
		if cfg.Compress {
			logutil.GetLogger(context.Background()).Warn("postgres driver has no transport compression, ignoring db.compress")
		}
		if cfg.DSN != "" {
			return cfg.DSN, nil
		}
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, port, cfg.User, cfg.Password, cfg.DBName, sslmode), nil
	default:
		return cfg.DSN, nil
	}
}

func mysqlDSN(cfg config.DatabaseConfig) (string, error) {
	mcfg := mysql.NewConfig()
	if cfg.DSN != "" {
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		mcfg = parsed
	} else {
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		mcfg.Net = "tcp"
		mcfg.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		mcfg.User = cfg.User
		mcfg.Passwd = cfg.Password
		mcfg.DBName = cfg.DBName
	}
	if cfg.Compress {
		if err := mcfg.Apply(mysql.EnableCompression(true)); err != nil {
			return "", fmt.Errorf("enable mysql compression: %w", err)
		}
	}
	return mcfg.FormatDSN(), nil
}
