package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Store drivers.
const (
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (POS_ prefix), flags, or YAML config files.
type Config struct {
	Addr              string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	Location          string        `default:"Local" usage:"IANA time zone for report day and month boundaries"`
	StoreTimeout      time.Duration `default:"5s" usage:"Bound on every order lifecycle operation" flag:"store-timeout"`
	Cashiers          []string      `usage:"Cashier roster; empty accepts any name"`
	LowStockThreshold int           `default:"10" usage:"Stock level below which products are flagged" flag:"low-stock-threshold"`
	Store             StoreConfig
	Registers         RegistersConfig
	Events            EventsConfig
	Backup            BackupConfig
	CORS              CORSConfig
	Graceful          GracefulConfig
}

// StoreConfig selects and locates the document store.
type StoreConfig struct {
	Driver      string        `default:"bolt" usage:"Store driver: bolt or postgres"`
	Path        string        `default:"pos.db" usage:"bolt database file"`
	LockTimeout time.Duration `default:"2s" usage:"Wait for the bolt file lock" flag:"store-lock-timeout"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (POS_STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
}

// RegistersConfig bounds the register sessions kept in memory.
type RegistersConfig struct {
	Max         int           `default:"32" usage:"Maximum number of register sessions" flag:"registers-max"`
	IdleTimeout time.Duration `default:"12h" usage:"Idle time after which a register session may be dropped" flag:"registers-idle-timeout"`
}

// EventsConfig points at the RabbitMQ broker receiving order events.
type EventsConfig struct {
	URL      string `usage:"AMQP URL; empty disables event publishing" flag:"events-url"`
	Exchange string `default:"pos.orders" usage:"Topic exchange for order events"`
}

// BackupConfig controls scheduled snapshot files.
type BackupConfig struct {
	Schedule string `usage:"Cron expression for automatic backups, e.g. @daily; empty disables them"`
	Dir      string `default:"backups" usage:"Directory receiving backup files"`
	Compress bool   `default:"true" usage:"gzip backup files"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "POS",
		Files:     []string{"config.yaml", "/etc/pos/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's POS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Store.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Store.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverBolt:
		if c.Store.Path == "" {
			return errors.New("bolt store needs a path: set POS_STORE_PATH")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("database URL is required: set POS_STORE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.StoreTimeout <= 0 {
		return errors.New("store timeout must be positive")
	}
	if _, err := c.Loc(); err != nil {
		return err
	}
	return nil
}

// Loc resolves Location.
func (c *Config) Loc() (*time.Location, error) {
	if c.Location == "" || c.Location == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, errors.Wrapf(err, "load location %q", c.Location)
	}
	return loc, nil
}
