// Package config handles loading and validation of application configuration
// from environment variables and an optional .env file.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/opendots/opendots-backend/logger"
	"github.com/spf13/viper"
)

// Environment represents the application's running environment (development or production).
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"

	// Validation constants
	minJWTLength = 32
	minKeyLength = 8
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT" yaml:"environment"`
	Port           string      `mapstructure:"PORT" yaml:"port"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	Version        string      `mapstructure:"VERSION" yaml:"version"`
	// PublicAppURL is the externally visible base URL used to build image
	// links and OAuth redirect targets.
	PublicAppURL string `mapstructure:"PUBLIC_APP_URL" yaml:"public_app_url"`
	// TrustedProxies is a list of CIDR ranges or IPs of trusted reverse proxies.
	// If empty, X-Forwarded-For headers are ignored entirely.
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES" yaml:"trusted_proxies"`
}

// DatabaseConfig holds the Supabase PostgreSQL connection details.
type DatabaseConfig struct {
	Host           string `mapstructure:"HOST" yaml:"host"`
	Port           int    `mapstructure:"PORT" yaml:"port"`
	User           string `mapstructure:"USER" yaml:"user"`
	Password       string `mapstructure:"PASSWORD" yaml:"password"`
	Name           string `mapstructure:"NAME" yaml:"name"`
	SSLMode        string `mapstructure:"SSL_MODE" yaml:"ssl_mode"`
	MaxConnections int    `mapstructure:"MAX_CONNECTIONS" yaml:"max_connections"`
	MinConnections int    `mapstructure:"MIN_CONNECTIONS" yaml:"min_connections"`
	ConnMaxLife    string `mapstructure:"CONN_MAX_LIFE" yaml:"conn_max_life"`
	// RunMigrations applies the embedded schema on startup.
	RunMigrations bool `mapstructure:"RUN_MIGRATIONS" yaml:"run_migrations"`
}

// URL returns a postgres:// connection URL suitable for golang-migrate and other
// URL-based database tools.
func (c *DatabaseConfig) URL() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		sslmode,
	)
}

// RedisConfig holds Redis connection details. Redis backs the auth rate limiter.
type RedisConfig struct {
	Address      string `mapstructure:"ADDRESS" yaml:"address"`
	Password     string `mapstructure:"PASSWORD" yaml:"password"`
	DB           int    `mapstructure:"DB" yaml:"db"`
	UseTLS       bool   `mapstructure:"USE_TLS" yaml:"use_tls"`
	PoolSize     int    `mapstructure:"POOL_SIZE" yaml:"pool_size"`
	MinIdleConns int    `mapstructure:"MIN_IDLE_CONNS" yaml:"min_idle_conns"`
}

// SupabaseConfig holds the Supabase Auth project settings.
type SupabaseConfig struct {
	URL        string `mapstructure:"URL" yaml:"url"`
	AnonKey    string `mapstructure:"ANON_KEY" yaml:"anon_key"`
	ServiceKey string `mapstructure:"SERVICE_KEY" yaml:"service_key"`
	JWTSecret  string `mapstructure:"JWT_SECRET" yaml:"jwt_secret"`
}

// CloudflareConfig holds D1 and R2 settings. D1 is only used when D1Enabled
// is set; with D1LocalPath set the store talks to a local SQLite file instead
// of the REST API.
type CloudflareConfig struct {
	AccountID         string `mapstructure:"ACCOUNT_ID" yaml:"account_id"`
	APIToken          string `mapstructure:"API_TOKEN" yaml:"api_token"`
	D1Enabled         bool   `mapstructure:"D1_ENABLED" yaml:"d1_enabled"`
	D1DatabaseID      string `mapstructure:"D1_DATABASE_ID" yaml:"d1_database_id"`
	D1LocalPath       string `mapstructure:"D1_LOCAL_PATH" yaml:"d1_local_path"`
	D1TimeoutSeconds  int    `mapstructure:"D1_TIMEOUT_SECONDS" yaml:"d1_timeout_seconds"`
	R2Bucket          string `mapstructure:"R2_BUCKET" yaml:"r2_bucket"`
	R2AccessKeyID     string `mapstructure:"R2_ACCESS_KEY_ID" yaml:"r2_access_key_id"`
	R2SecretAccessKey string `mapstructure:"R2_SECRET_ACCESS_KEY" yaml:"r2_secret_access_key"`
}

// R2Enabled reports whether image uploads can be served.
func (c *CloudflareConfig) R2Enabled() bool {
	return c.AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != ""
}

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Maximum requests per minute for auth endpoints (sign-in, callback)
	AuthRequestsPerMinute int `mapstructure:"AUTH_REQUESTS_PER_MINUTE" yaml:"auth_requests_per_minute"`
	// Window duration in seconds for rate limiting
	WindowSeconds int `mapstructure:"WINDOW_SECONDS" yaml:"window_seconds"`
}

// Config aggregates all application configuration sections.
type Config struct {
	Server     ServerConfig     `mapstructure:"SERVER" yaml:"server"`
	Database   DatabaseConfig   `mapstructure:"DATABASE" yaml:"database"`
	Redis      RedisConfig      `mapstructure:"REDIS" yaml:"redis"`
	Supabase   SupabaseConfig   `mapstructure:"SUPABASE" yaml:"supabase"`
	Cloudflare CloudflareConfig `mapstructure:"CLOUDFLARE" yaml:"cloudflare"`
	RateLimit  RateLimitConfig  `mapstructure:"RATE_LIMIT" yaml:"rate_limit"`
}

// IsDevelopment returns true if the application is running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// IsProduction returns true if the application is running in production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// bindEnvVars binds multiple environment variables to config keys.
// Format: []{configKey, envVar}
func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

var envBindings = [][2]string{
	// Server config
	{"SERVER.ENVIRONMENT", "SERVER_ENVIRONMENT"},
	{"SERVER.PORT", "PORT"},
	{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
	{"SERVER.VERSION", "VERSION"},
	{"SERVER.PUBLIC_APP_URL", "NEXT_PUBLIC_APP_URL"},
	{"SERVER.TRUSTED_PROXIES", "TRUSTED_PROXIES"},
	// Database config
	{"DATABASE.HOST", "DB_HOST"},
	{"DATABASE.PORT", "DB_PORT"},
	{"DATABASE.USER", "DB_USER"},
	{"DATABASE.PASSWORD", "DB_PASSWORD"},
	{"DATABASE.NAME", "DB_NAME"},
	{"DATABASE.SSL_MODE", "DB_SSL_MODE"},
	{"DATABASE.MAX_CONNECTIONS", "DB_MAX_CONNECTIONS"},
	{"DATABASE.RUN_MIGRATIONS", "DB_RUN_MIGRATIONS"},
	// Redis config
	{"REDIS.ADDRESS", "REDIS_ADDRESS"},
	{"REDIS.PASSWORD", "REDIS_PASSWORD"},
	{"REDIS.DB", "REDIS_DB"},
	{"REDIS.USE_TLS", "REDIS_USE_TLS"},
	// Supabase
	{"SUPABASE.URL", "SUPABASE_URL"},
	{"SUPABASE.ANON_KEY", "SUPABASE_ANON_KEY"},
	{"SUPABASE.SERVICE_KEY", "SUPABASE_SERVICE_KEY"},
	{"SUPABASE.JWT_SECRET", "SUPABASE_JWT_SECRET"},
	// Cloudflare
	{"CLOUDFLARE.ACCOUNT_ID", "CLOUDFLARE_ACCOUNT_ID"},
	{"CLOUDFLARE.API_TOKEN", "CLOUDFLARE_API_TOKEN"},
	{"CLOUDFLARE.D1_ENABLED", "D1_ENABLED"},
	{"CLOUDFLARE.D1_DATABASE_ID", "D1_DATABASE_ID"},
	{"CLOUDFLARE.D1_LOCAL_PATH", "D1_LOCAL_PATH"},
	{"CLOUDFLARE.D1_TIMEOUT_SECONDS", "D1_TIMEOUT_SECONDS"},
	{"CLOUDFLARE.R2_BUCKET", "R2_BUCKET"},
	{"CLOUDFLARE.R2_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID"},
	{"CLOUDFLARE.R2_SECRET_ACCESS_KEY", "R2_SECRET_ACCESS_KEY"},
	// Rate limit config
	{"RATE_LIMIT.AUTH_REQUESTS_PER_MINUTE", "RATE_LIMIT_AUTH_REQUESTS_PER_MINUTE"},
	{"RATE_LIMIT.WINDOW_SECONDS", "RATE_LIMIT_WINDOW_SECONDS"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER.ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.PUBLIC_APP_URL", "http://localhost:8080")
	v.SetDefault("SERVER.TRUSTED_PROXIES", []string{})
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.NAME", "postgres")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.MAX_CONNECTIONS", 10)
	v.SetDefault("DATABASE.MIN_CONNECTIONS", 1)
	v.SetDefault("DATABASE.CONN_MAX_LIFE", "1h")
	v.SetDefault("DATABASE.RUN_MIGRATIONS", false)
	v.SetDefault("REDIS.ADDRESS", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.USE_TLS", false)
	v.SetDefault("REDIS.POOL_SIZE", 3)
	v.SetDefault("REDIS.MIN_IDLE_CONNS", 1)
	v.SetDefault("CLOUDFLARE.D1_ENABLED", false)
	v.SetDefault("CLOUDFLARE.D1_TIMEOUT_SECONDS", 10)
	v.SetDefault("CLOUDFLARE.R2_BUCKET", "profile-images")
	v.SetDefault("RATE_LIMIT.AUTH_REQUESTS_PER_MINUTE", 10)
	v.SetDefault("RATE_LIMIT.WINDOW_SECONDS", 60)
}

// Defaults returns the configuration with only default values applied. It is
// not validated.
func Defaults() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfig loads configuration from environment variables using Viper,
// sets default values, binds environment variables to config struct fields,
// unmarshals the configuration, and validates it. A .env file in the working
// directory is loaded first when present; real environment variables win.
func LoadConfig() (*Config, error) {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil {
		log.Debugw("No .env file loaded", "error", err)
	}

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, err
	}

	log.Infow("Configuration loaded",
		"environment", v.GetString("SERVER.ENVIRONMENT"),
		"server_port", v.GetString("SERVER.PORT"),
		"db_host", v.GetString("DATABASE.HOST"),
		"allowed_origins", v.GetStringSlice("SERVER.ALLOWED_ORIGINS"),
		"trusted_proxies", v.GetStringSlice("SERVER.TRUSTED_PROXIES"),
		"d1_enabled", v.GetBool("CLOUDFLARE.D1_ENABLED"),
		"d1_local", v.GetString("CLOUDFLARE.D1_LOCAL_PATH") != "",
	)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}
	cfg.Server.AllowedOrigins = splitList(cfg.Server.AllowedOrigins)
	cfg.Server.TrustedProxies = splitList(cfg.Server.TrustedProxies)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Info("Configuration validated successfully")
	return &cfg, nil
}

// splitList expands comma-separated env values ("a,b") into separate entries.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateConfig checks if the loaded configuration values are valid.
func validateConfig(cfg *Config) error {
	log := logger.GetLogger()

	if cfg.Server.Environment != EnvDevelopment && cfg.Server.Environment != EnvProduction {
		return fmt.Errorf("invalid environment '%s'", cfg.Server.Environment)
	}
	if cfg.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if !containsWildcard(cfg.Server.AllowedOrigins) {
		for _, origin := range cfg.Server.AllowedOrigins {
			if _, err := url.ParseRequestURI(origin); err != nil {
				return fmt.Errorf("invalid allowed origin '%s': %w", origin, err)
			}
		}
	}
	if _, err := url.ParseRequestURI(cfg.Server.PublicAppURL); err != nil {
		return fmt.Errorf("invalid public app URL '%s': %w", cfg.Server.PublicAppURL, err)
	}

	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if cfg.Database.Password == "" {
		log.Warn("Database password is not set. Ensure this is intended (e.g., using trusted auth).")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if cfg.Database.MaxConnections <= 0 {
		return fmt.Errorf("database max connections must be positive")
	}

	if cfg.Redis.Address == "" {
		log.Warn("Redis address is not set, auth rate limiting is disabled")
	}

	if err := validateSupabase(&cfg.Supabase); err != nil {
		return err
	}
	if err := validateCloudflare(&cfg.Cloudflare); err != nil {
		return err
	}

	if cfg.RateLimit.AuthRequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit auth requests per minute must be positive")
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate limit window seconds must be positive")
	}
	return nil
}

func validateSupabase(cfg *SupabaseConfig) error {
	if cfg.URL == "" {
		return fmt.Errorf("supabase URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return fmt.Errorf("invalid supabase URL: %w", err)
	}
	if len(cfg.AnonKey) < minKeyLength {
		return fmt.Errorf("supabase anon key is required")
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < minJWTLength {
		return fmt.Errorf("supabase JWT secret must be at least %d characters long", minJWTLength)
	}
	return nil
}

// validateCloudflare only checks D1 settings when D1 is switched on. A remote
// D1 needs account, database and token; a local one needs nothing else.
func validateCloudflare(cfg *CloudflareConfig) error {
	if cfg.R2Bucket == "" {
		return fmt.Errorf("r2 bucket is required")
	}
	if !cfg.D1Enabled {
		return nil
	}
	if cfg.D1TimeoutSeconds <= 0 {
		return fmt.Errorf("d1 timeout must be positive")
	}
	if cfg.D1LocalPath != "" {
		return nil
	}
	if cfg.AccountID == "" {
		return fmt.Errorf("cloudflare account id is required when D1 is enabled")
	}
	if cfg.D1DatabaseID == "" {
		return fmt.Errorf("d1 database id is required when D1 is enabled")
	}
	if len(cfg.APIToken) < minKeyLength {
		return fmt.Errorf("cloudflare API token is required when D1 is enabled")
	}
	return nil
}

// containsWildcard checks if the list of allowed origins contains the wildcard "*".
func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
