package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config holds every setting of the storefront service. Load reads the YAML file first and
// then applies environment overrides.
type Config struct {
	Service  string `yaml:"service"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	HTTP struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`

	Storage struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"storage"`

	Auth struct {
		// Tokens maps bearer tokens to user IDs.
		Tokens map[string]string `yaml:"tokens"`
		// Admins may move any order through its lifecycle.
		Admins []string `yaml:"admins"`
	} `yaml:"auth"`

	Pricing Pricing `yaml:"pricing"`

	Cart struct {
		// ViewSize caps the guest sessions whose badge count is memoised.
		ViewSize int `yaml:"view_size"`
		// SignalIdle is how long a guest session may go without a cart write or an open
		// stream before its signals are expired.
		SignalIdle    time.Duration `yaml:"signal_idle"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"cart"`
}

type Pricing struct {
	TaxRate               decimal.Decimal `yaml:"tax_rate"`
	DeliveryFee           decimal.Decimal `yaml:"delivery_fee"`
	FreeDeliveryThreshold decimal.Decimal `yaml:"free_delivery_threshold"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	var c Config
	c.Service = "storefront"
	c.Env = "dev"
	c.LogLevel = "info"
	c.HTTP.Addr = ":8080"
	c.HTTP.ShutdownTimeout = 10 * time.Second
	c.Storage.Driver = StorageMemory
	c.Storage.SQLitePath = "data/storefront.db"
	c.Auth.Tokens = map[string]string{}
	c.Cart.ViewSize = 10000
	c.Cart.SignalIdle = 30 * time.Minute
	c.Cart.SweepInterval = time.Minute
	c.Pricing = Pricing{
		TaxRate:               decimal.RequireFromString("0.05"),
		DeliveryFee:           decimal.NewFromInt(40),
		FreeDeliveryThreshold: decimal.NewFromInt(500),
	}
	return c
}

// Load reads path (when non-empty) over the defaults and applies env overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Service = getenvDefault("SERVICE_NAME", c.Service)
	c.Env = getenvDefault("ENV", c.Env)
	c.LogLevel = getenvDefault("LOG_LEVEL", c.LogLevel)
	c.LogFile = getenvDefault("LOG_FILE", c.LogFile)
	c.HTTP.Addr = getenvDefault("HTTP_ADDR", c.HTTP.Addr)
	c.Storage.Driver = getenvDefault("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.SQLitePath = getenvDefault("SQLITE_PATH", c.Storage.SQLitePath)
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == StorageSQLite && c.Storage.SQLitePath == "" {
		return errors.New("config: sqlite_path is required for the sqlite driver")
	}
	if c.Pricing.TaxRate.IsNegative() || c.Pricing.DeliveryFee.IsNegative() {
		return errors.New("config: pricing values must not be negative")
	}
	if c.Cart.ViewSize <= 0 || c.Cart.SignalIdle <= 0 || c.Cart.SweepInterval <= 0 {
		return errors.New("config: cart.view_size, cart.signal_idle and cart.sweep_interval must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("config: http.shutdown_timeout must be positive")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
