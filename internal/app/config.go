package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Storage drivers.
const (
	DriverJSONFile = "jsonfile"
	DriverPostgres = "postgres"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CARNE_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage        StorageConfig
	Admin          AdminConfig
	Pricing        PricingConfig
	Lifecycle      LifecycleConfig
	Report         ReportConfig
	Kafka          KafkaConfig
	Fallback       FallbackConfig
	RateLimit      RateLimitConfig
	OrderRateLimit OrderRateLimitConfig
	CORS           CORSConfig
	Graceful       GracefulConfig
}

// StorageConfig selects the persistence driver.
type StorageConfig struct {
	Driver      string `default:"jsonfile" usage:"Storage driver: jsonfile or postgres"`
	DataDir     string `default:"data" usage:"Directory holding orders.json and promociones.json" flag:"data-dir"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CARNE_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
}

// AdminConfig is the admin panel login.
type AdminConfig struct {
	Username string `default:"admin" usage:"Admin username"`
	Password string `usage:"Admin password (required)"`
}

// PricingConfig holds the delivery fee policy as decimal strings.
type PricingConfig struct {
	FreeDeliveryThreshold string `default:"50.00" usage:"Net amount from which delivery is free"`
	FlatDeliveryFee       string `default:"3.50" usage:"Delivery fee below the threshold"`
	ClampNegative         bool   `default:"false" usage:"Cap discounts at the subtotal"`
}

// LifecycleConfig toggles the strict status graph.
type LifecycleConfig struct {
	Strict bool `default:"false" usage:"Only allow forward status transitions and cancellation"`
}

// ReportConfig controls report bucketing.
type ReportConfig struct {
	Timezone string `default:"America/Panama" usage:"Business time zone for reports and date-only inputs"`
}

// KafkaConfig enables event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers      []string `usage:"Kafka brokers; empty logs notifications instead"`
	OrdersTopic  string   `default:"carne.orders" usage:"Topic for accepted orders"`
	ReportsTopic string   `default:"carne.reports" usage:"Topic for weekly reports"`
}

// FallbackConfig lists the contact channels shown when notifications fail.
type FallbackConfig struct {
	WhatsApp string `usage:"WhatsApp number shown to customers"`
	Email    string `usage:"Company email shown to customers"`
}

// RateLimitConfig controls a per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// OrderRateLimitConfig limits order submissions per client.
type OrderRateLimitConfig struct {
	Max    int           `default:"5"  usage:"Max order submissions per window"`
	Window time.Duration `default:"1m" usage:"Order rate limit window duration"`
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
	return loadConfig(aconfig.Config{
		EnvPrefix: "CARNE",
		Files:     []string{"config.yaml", "/etc/carne/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CARNE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Storage.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverJSONFile:
		if c.Storage.DataDir == "" {
			return errors.New("storage data dir is required for the jsonfile driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set CARNE_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Admin.Password == "" {
		return errors.New("admin password is required: set CARNE_ADMIN_PASSWORD")
	}
	if _, _, err := c.Pricing.Policy(); err != nil {
		return err
	}
	if _, err := c.Report.Location(); err != nil {
		return err
	}
	return nil
}

// Policy parses the delivery fee policy.
func (p PricingConfig) Policy() (threshold, fee decimal.Decimal, err error) {
	threshold, err = decimal.NewFromString(p.FreeDeliveryThreshold)
	if err != nil {
		return threshold, fee, errors.Wrap(err, "parse free delivery threshold")
	}
	fee, err = decimal.NewFromString(p.FlatDeliveryFee)
	if err != nil {
		return threshold, fee, errors.Wrap(err, "parse flat delivery fee")
	}
	if threshold.IsNegative() || fee.IsNegative() {
		return threshold, fee, errors.New("pricing amounts must not be negative")
	}
	return threshold, fee, nil
}

// Location loads the business time zone.
func (r ReportConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load time zone %q", r.Timezone)
	}
	return loc, nil
}
