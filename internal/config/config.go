package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/xxxsen/common/logger"
)

const (
	DefaultPoolSize    = 10
	DefaultBodyLimitMB = 50
	DefaultTable       = "route_results"
	DefaultCleanupSpec = "0 3 * * *"
)

type Config struct {
	Port      int              `json:"port"`
	DB        DatabaseConfig   `json:"db"`
	HTTP      HTTPConfig       `json:"http"`
	Cache     CacheConfig      `json:"cache"`
	Retention RetentionConfig  `json:"retention"`
	LogConfig logger.LogConfig `json:"log_config"`
}

type DatabaseConfig struct {
	Driver          string `json:"driver"`
	DSN             string `json:"dsn"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	User            string `json:"user"`
	Password        string `json:"password"`
	DBName          string `json:"dbname"`
	SSLMode         string `json:"sslmode"`
	Compress        bool   `json:"compress"`
	PoolSize        int    `json:"pool_size"`
	Table           string `json:"table"`
	SkipCreateTable bool   `json:"skip_create_table"`
}

// HTTPConfig tunes the HTTP surface. RateLimitMS is the per client and route
// window in milliseconds, 0 turns the limiter off.
type HTTPConfig struct {
	BodyLimitMB   int64    `json:"body_limit_mb"`
	StaticDir     string   `json:"static_dir"`
	Gzip          bool     `json:"gzip"`
	CORSAllowlist []string `json:"cors_allowlist"`
	RateLimitMS   int      `json:"rate_limit_ms"`
}

// CacheConfig sizes the in-process result LRU. Zero size or ttl disables it.
type CacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

// RetentionConfig drives the cleanup job. MaxAgeDays <= 0 disables it.
type RetentionConfig struct {
	MaxAgeDays int    `json:"max_age_days"`
	Spec       string `json:"spec"`
}

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// envOverrides maps the deployment's environment variables. Unset variables
// leave the pointers nil.
type envOverrides struct {
	Port      *int    `envconfig:"PORT"`
	Driver    *string `envconfig:"DB_DRIVER"`
	DSN       *string `envconfig:"DB_DSN"`
	Host      *string `envconfig:"DB_HOST"`
	DBPort    *int    `envconfig:"DB_PORT"`
	User      *string `envconfig:"DB_USERNAME"`
	Password  *string `envconfig:"DB_PASS"`
	DBName    *string `envconfig:"DB_DBNAME"`
	SSLMode   *string `envconfig:"DB_SSLMODE"`
	Compress  *bool   `envconfig:"DB_COMPRESS"`
	PoolSize  *int    `envconfig:"DB_POOL_SIZE"`
	Table     *string `envconfig:"DB_TABLE"`
	StaticDir *string `envconfig:"STATIC_DIR"`
	LogLevel  *string `envconfig:"LOG_LEVEL"`
}

// Load builds the config from an optional JSON file, an optional dotenv file
// and the process environment, in that order of precedence (lowest first).
func Load(path string, envFile string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	env.apply(&cfg)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// loadEnvFile never overrides variables that are already set. A missing
// default ".env" is fine, a missing explicit file is not.
func loadEnvFile(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return nil
}

func (e *envOverrides) apply(cfg *Config) {
	setInt(&cfg.Port, e.Port)
	setString(&cfg.DB.Driver, e.Driver)
	setString(&cfg.DB.DSN, e.DSN)
	setString(&cfg.DB.Host, e.Host)
	setInt(&cfg.DB.Port, e.DBPort)
	setString(&cfg.DB.User, e.User)
	setString(&cfg.DB.Password, e.Password)
	setString(&cfg.DB.DBName, e.DBName)
	setString(&cfg.DB.SSLMode, e.SSLMode)
	if e.Compress != nil {
		cfg.DB.Compress = *e.Compress
	}
	setInt(&cfg.DB.PoolSize, e.PoolSize)
	setString(&cfg.DB.Table, e.Table)
	setString(&cfg.HTTP.StaticDir, e.StaticDir)
	setString(&cfg.LogConfig.Level, e.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func (c *Config) normalize() error {
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	if c.DB.Driver == "" {
		c.DB.Driver = "mysql"
	}
	switch c.DB.Driver {
	case "mysql", "postgres":
		if c.DB.DSN == "" && (c.DB.Host == "" || c.DB.DBName == "") {
			return fmt.Errorf("db.host and db.dbname are required for %s unless db.dsn is set", c.DB.Driver)
		}
	case "sqlite":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for sqlite")
		}
	default:
		return fmt.Errorf("db.driver must be mysql, postgres or sqlite")
	}
	if c.DB.PoolSize <= 0 {
		c.DB.PoolSize = DefaultPoolSize
	}
	if c.DB.Table == "" {
		c.DB.Table = DefaultTable
	}
	if !tableNameRegex.MatchString(c.DB.Table) {
		return fmt.Errorf("db.table %q is not a valid identifier", c.DB.Table)
	}
	if c.HTTP.BodyLimitMB <= 0 {
		c.HTTP.BodyLimitMB = DefaultBodyLimitMB
	}
	if c.HTTP.StaticDir == "" {
		c.HTTP.StaticDir = "web"
	}
	if c.Retention.Spec == "" {
		c.Retention.Spec = DefaultCleanupSpec
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	return nil
}
