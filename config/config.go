package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/firecrawl"
	"github.com/pricelens/backend/internal/retry"
	"github.com/pricelens/backend/internal/usecase"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig            `mapstructure:"server"`
	Firecrawl   FirecrawlConfig         `mapstructure:"firecrawl"`
	Cache       CacheConfig             `mapstructure:"cache"`
	Retry       RetryConfig             `mapstructure:"retry"`
	Aggregation AggregationConfig       `mapstructure:"aggregation"`
	Log         LogConfig               `mapstructure:"log"`
	Retailers   []domain.RetailerConfig `mapstructure:"retailers"`
	Fallback    domain.FallbackDefaults `mapstructure:"fallback"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// FirecrawlConfig holds extraction backend configuration
type FirecrawlConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RetryConfig holds the aggregation retry policy
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Mode        string        `mapstructure:"mode"` // "batch" or "per_retailer"
}

// AggregationConfig holds aggregation engine limits
type AggregationConfig struct {
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	DefaultUPC  string        `mapstructure:"default_upc"`
	MaxBatch    int           `mapstructure:"max_batch"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration like Load, reading the given file instead of
// searching the default config paths when path is not empty
func LoadFrom(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pricelens/")
	}

	// Environment variable settings
	v.SetEnvPrefix("PRICELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("firecrawl.api_key", "PRICELENS_FIRECRAWL_API_KEY", "FIRECRAWL_API_KEY")

	setDefaults(v)

	// Config file is optional unless a path was given
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile reads .env from the working directory. Variables already set
// in the environment win, and a missing file is not an error.
func loadEnvFile() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Firecrawl defaults
	v.SetDefault("firecrawl.api_key", "")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev")
	v.SetDefault("firecrawl.timeout", "60s")
	v.SetDefault("firecrawl.requests_per_second", 2)
	v.SetDefault("firecrawl.burst", 5)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "24h")

	// Retry defaults
	v.SetDefault("retry.max_attempts", retry.DefaultMaxAttempts)
	v.SetDefault("retry.base_delay", retry.DefaultBaseDelay.String())
	v.SetDefault("retry.mode", string(usecase.RetryModeBatch))

	// Aggregation defaults
	v.SetDefault("aggregation.call_timeout", "45s")
	v.SetDefault("aggregation.default_upc", "734126195622")
	v.SetDefault("aggregation.max_batch", 20)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("retailers", DefaultRetailers())

	fallback := usecase.DefaultFallback()
	v.SetDefault("fallback.product_name", fallback.ProductName)
	v.SetDefault("fallback.prices", fallback.Prices)
}

// DefaultRetailers returns the built-in retailer table
func DefaultRetailers() []domain.RetailerConfig {
	return []domain.RetailerConfig{
		{
			Key:         "maisonette",
			Name:        "Maisonette",
			BaseURL:     "https://www.maisonette.com",
			ProductPath: "/product/tumbling-mat-ivory",
			Baseline:    true,
			Schema: domain.Schema{
				{Name: "price", Type: domain.FieldTypeNumber, Role: domain.RolePrice, Required: true},
				{Name: "title", Type: domain.FieldTypeString, Role: domain.RoleTitle, Required: true},
			},
		},
		{
			Key:         "target",
			Name:        "Target",
			BaseURL:     "https://www.target.com",
			ProductPath: "/p/gathre-large-tumbling-mat-ivory/-/A-89981743",
			Schema: domain.Schema{
				{Name: "current_retail", Type: domain.FieldTypeNumber, Role: domain.RolePrice, Required: true},
				{Name: "title", Type: domain.FieldTypeString, Role: domain.RoleTitle, Required: true},
				{Name: "barcode", Type: domain.FieldTypeString, Role: domain.RoleIdentifier},
			},
			GuidancePrompt: "Find the product details in the JSON data. Look for current_retail for the price and primary_barcode for the barcode.",
		},
		{
			Key:         "cbkids",
			Name:        "Crate & Kids",
			BaseURL:     "https://www.crateandbarrel.com",
			ProductPath: "/gathre-ivory-vegan-leather-toddler-tumbling-mat/s377088",
			Schema: domain.Schema{
				{Name: "currentPrice", Type: domain.FieldTypeNumber, Role: domain.RolePrice, Required: true},
				{Name: "gtin14", Type: domain.FieldTypeString, Role: domain.RoleIdentifier},
				{Name: "title", Type: domain.FieldTypeString, Role: domain.RoleTitle, Required: true},
			},
			GuidancePrompt: "Find the product details in the JSON data. Look for currentPrice for the price and gtin14 for the product identifier.",
		},
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Firecrawl.APIKey == "" {
		return fmt.Errorf("Firecrawl API key is required (set PRICELENS_FIRECRAWL_API_KEY)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	switch usecase.RetryMode(config.Retry.Mode) {
	case usecase.RetryModeBatch, usecase.RetryModePerRetailer:
	default:
		return fmt.Errorf("retry mode must be 'batch' or 'per_retailer', got: %s", config.Retry.Mode)
	}

	if config.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1, got: %d", config.Retry.MaxAttempts)
	}

	if config.Aggregation.MaxBatch < 1 {
		return fmt.Errorf("aggregation max_batch must be at least 1, got: %d", config.Aggregation.MaxBatch)
	}

	if config.Log.Format != "json" && config.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got: %s", config.Log.Format)
	}

	if _, err := usecase.NewRetailerResolver(config.Retailers); err != nil {
		return err
	}

	if err := usecase.Validator().Struct(config.Fallback); err != nil {
		return fmt.Errorf("fallback: %w", err)
	}

	return nil
}

// FirecrawlClient returns the extraction client settings
func (c *Config) FirecrawlClient() firecrawl.ClientConfig {
	return firecrawl.ClientConfig{
		APIKey:            c.Firecrawl.APIKey,
		BaseURL:           c.Firecrawl.BaseURL,
		Timeout:           c.Firecrawl.Timeout,
		RequestsPerSecond: c.Firecrawl.RequestsPerSecond,
		Burst:             c.Firecrawl.Burst,
	}
}

// Engine returns the aggregation engine settings
func (c *Config) Engine() usecase.AggregationConfig {
	return usecase.AggregationConfig{
		Retry: retry.Policy{
			MaxAttempts: c.Retry.MaxAttempts,
			BaseDelay:   c.Retry.BaseDelay,
		},
		RetryMode:   usecase.RetryMode(c.Retry.Mode),
		CallTimeout: c.Aggregation.CallTimeout,
		CacheTTL:    c.Cache.TTL,
		Fallback:    c.Fallback,
	}
}
