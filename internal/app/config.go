package app

import (
	"flag"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/spinzone-api/internal/domain/discount"
	"github.com/xenking/spinzone-api/internal/store/retry"
)

// Store drivers.
const (
	DriverPostgres  = "postgres"
	DriverPostgREST = "postgrest"
	DriverMemory    = "memory"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SPINZONE_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Store     StoreConfig
	Discount  DiscountConfig
	Retry     RetryConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	Driver       string        `default:"postgres" usage:"Storage driver: postgres, postgrest or memory"`
	DatabaseURL  string        `env:"DATABASE_URL" usage:"PostgreSQL connection URL (SPINZONE_STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	PostgRESTURL string        `env:"POSTGREST_URL" usage:"PostgREST or Supabase project URL (SUPABASE_URL)" flag:"postgrest-url"`
	APIKey       string        `env:"API_KEY" usage:"PostgREST API key (SUPABASE_KEY)" flag:"postgrest-key"`
	Timeout      time.Duration `default:"10s" usage:"PostgREST request timeout"`
}

// DiscountConfig overrides the volume discount policy.
type DiscountConfig struct {
	Threshold int64  `default:"4" usage:"Total quantity an order must exceed to get the discount"`
	Rate      string `default:"0.05" usage:"Fraction taken off every line when the discount applies"`
}

// Policy parses the configured discount policy.
func (c DiscountConfig) Policy() (discount.Policy, error) {
	rate, err := decimal.NewFromString(c.Rate)
	if err != nil {
		return discount.Policy{}, errors.Wrapf(err, "parse discount rate %q", c.Rate)
	}
	p := discount.Policy{Threshold: c.Threshold, Rate: rate}
	if err := p.Validate(); err != nil {
		return discount.Policy{}, errors.Wrap(err, "discount policy")
	}
	return p, nil
}

// RetryConfig controls retries of transient store failures.
type RetryConfig struct {
	MaxAttempts  int           `default:"3" usage:"Attempts per store call, 1 disables retries"`
	InitialDelay time.Duration `default:"50ms" usage:"Delay before the first retry"`
	MaxDelay     time.Duration `default:"1s" usage:"Upper bound of the retry delay"`
}

func (c RetryConfig) backoff() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = c.MaxAttempts
	cfg.InitialDelay = c.InitialDelay
	cfg.MaxDelay = c.MaxDelay
	return cfg
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	base.EnvPrefix = "SPINZONE"
	if base.Files == nil {
		base.Files = []string{"config.yaml", "/etc/spinzone/config.yaml"}
	}
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the standard variables set by hosting platforms
// and Supabase onto the SPINZONE_ configuration.
func (c *Config) applyPlatformDefaults() {
	c.Store.ApplyPlatformDefaults()
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// ApplyPlatformDefaults fills unset connection settings from DATABASE_URL,
// SUPABASE_URL and SUPABASE_KEY.
func (s *StoreConfig) ApplyPlatformDefaults() {
	if s.DatabaseURL == "" {
		s.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if s.PostgRESTURL == "" {
		s.PostgRESTURL = os.Getenv("SUPABASE_URL")
	}
	if s.APIKey == "" {
		s.APIKey = os.Getenv("SUPABASE_KEY")
	}
}

// Validate checks that the selected driver has its connection settings.
func (s StoreConfig) Validate() error {
	switch s.Driver {
	case DriverPostgres:
		if s.DatabaseURL == "" {
			return errors.New("database URL is required: set SPINZONE_STORE_DATABASE_URL or DATABASE_URL")
		}
	case DriverPostgREST:
		if s.PostgRESTURL == "" || s.APIKey == "" {
			return errors.New("postgrest driver needs a URL and an API key: set SUPABASE_URL and SUPABASE_KEY")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown store driver %q", s.Driver)
	}
	return nil
}

// RegisterFlags binds the store settings to fs for the command line tools.
func (s *StoreConfig) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&s.Driver, "driver", DriverPostgres, "storage driver: postgres, postgrest or memory")
	fs.StringVar(&s.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	fs.StringVar(&s.PostgRESTURL, "postgrest-url", "", "PostgREST or Supabase URL (or SUPABASE_URL env)")
	fs.StringVar(&s.APIKey, "postgrest-key", "", "PostgREST API key (or SUPABASE_KEY env)")
	fs.DurationVar(&s.Timeout, "timeout", 10*time.Second, "PostgREST request timeout")
}

func (c *Config) validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.Errorf("retry attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if _, err := c.Discount.Policy(); err != nil {
		return err
	}
	return nil
}
