// Package config handles loading and validating soko configuration.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jkaninda/soko/internal/security"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for soko.
type Config struct {
	DataDir       string               `json:"data_dir,omitempty" yaml:"data_dir,omitempty"` // Default: ~/.soko/data. Override: SOKO_DATA_DIR.
	Storage       *StorageConfig       `json:"storage,omitempty" yaml:"storage,omitempty"`   // nil = SQLite under DataDir
	Server        ServerConfig         `json:"server" yaml:"server"`
	Auth          AuthConfig           `json:"auth" yaml:"auth"`
	Security      SecurityConfig       `json:"security" yaml:"security"`
	Retry         RetryConfig          `json:"retry" yaml:"retry"`
	Ordering      OrderingConfig       `json:"ordering" yaml:"ordering"`
	OTP           OTPConfig            `json:"otp" yaml:"otp"`
	SMS           *SMSConfig           `json:"sms,omitempty" yaml:"sms,omitempty"`         // nil = OTP sending disabled
	Payment       *PaymentConfig       `json:"payment,omitempty" yaml:"payment,omitempty"` // nil = payment endpoints disabled
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"`
	Scheduler     *SchedulerConfig     `json:"scheduler,omitempty" yaml:"scheduler,omitempty"` // nil = housekeeping disabled
}

// StorageConfig configures the persistence backend.
type StorageConfig struct {
	Driver   string                 `json:"driver" yaml:"driver"` // "sqlite" (default) or "postgres".
	SQLite   *SQLiteStorageConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres *PostgresStorageConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
}

// StorageDriver returns the configured driver, defaulting to "sqlite".
func (s *StorageConfig) StorageDriver() string {
	if s != nil && s.Driver != "" {
		return s.Driver
	}
	return "sqlite"
}

// SQLiteStorageConfig holds SQLite-specific settings.
type SQLiteStorageConfig struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"` // Default: <data_dir>/soko.db.
	JournalMode string `json:"journal_mode" yaml:"journal_mode"`     // Default: "wal".
}

// PostgresStorageConfig holds PostgreSQL-specific settings.
type PostgresStorageConfig struct {
	DSN              string `json:"dsn" yaml:"dsn"` // Override: SOKO_DATABASE_DSN.
	MaxOpenConns     int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns     int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s" yaml:"conn_max_lifetime_s"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	ListenAddr          string          `json:"listen_addr" yaml:"listen_addr"` // Default: ":8080".
	EnableDocs          bool            `json:"enable_docs" yaml:"enable_docs"`
	MaxRequestSizeBytes int64           `json:"max_request_size_bytes" yaml:"max_request_size_bytes"`
	RateLimit           RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	CORS                CORSConfig      `json:"cors" yaml:"cors"`
}

// Addr returns the listen address with a default of ":8080".
func (s ServerConfig) Addr() string {
	if s.ListenAddr != "" {
		return s.ListenAddr
	}
	return ":8080"
}

// RateLimitConfig configures per-principal request limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
	BurstSize         int `json:"burst_size" yaml:"burst_size"`
}

// CORSConfig configures the pre-flight response headers.
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"` // Default: ["*"].
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers"`
	MaxAgeSeconds  int      `json:"max_age_seconds" yaml:"max_age_seconds"` // Default: 86400.
}

// Origins returns the allowed origins with a default of "*".
func (c CORSConfig) Origins() []string {
	if len(c.AllowedOrigins) > 0 {
		return c.AllowedOrigins
	}
	return []string{"*"}
}

// Methods returns the allowed methods.
func (c CORSConfig) Methods() []string {
	if len(c.AllowedMethods) > 0 {
		return c.AllowedMethods
	}
	return []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
}

// Headers returns the allowed request headers.
func (c CORSConfig) Headers() []string {
	if len(c.AllowedHeaders) > 0 {
		return c.AllowedHeaders
	}
	return []string{"Authorization", "Content-Type", "X-Tenant-ID", "X-Correlation-ID", "Idempotency-Key"}
}

// MaxAge returns the pre-flight cache lifetime.
func (c CORSConfig) MaxAge() time.Duration {
	if c.MaxAgeSeconds > 0 {
		return time.Duration(c.MaxAgeSeconds) * time.Second
	}
	return 24 * time.Hour
}

// AuthConfig configures bearer token verification.
// The secret has no default and must be injected.
type AuthConfig struct {
	JWTSecret       string `json:"jwt_secret,omitempty" yaml:"jwt_secret,omitempty"` // Override: SOKO_JWT_SECRET.
	Issuer          string `json:"issuer" yaml:"issuer"`                             // Default: "soko".
	TokenTTLMinutes int    `json:"token_ttl_minutes" yaml:"token_ttl_minutes"`       // Default: 720.
}

// TokenTTL returns the lifetime of minted tokens.
func (a AuthConfig) TokenTTL() time.Duration {
	if a.TokenTTLMinutes > 0 {
		return time.Duration(a.TokenTTLMinutes) * time.Minute
	}
	return 12 * time.Hour
}

// TokenIssuer returns the issuer claim with a default of "soko".
func (a AuthConfig) TokenIssuer() string {
	if a.Issuer != "" {
		return a.Issuer
	}
	return "soko"
}

// SecurityConfig configures roles and audit logging.
type SecurityConfig struct {
	AuditLogPath string                `json:"audit_log_path" yaml:"audit_log_path"` // Default: <data_dir>/audit.jsonl.
	Roles        map[string]RoleConfig `json:"roles" yaml:"roles"`                   // Empty = built-in roles.
}

// RoleConfig lists the capabilities of one role.
type RoleConfig struct {
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
}

// RBAC converts the configured roles, falling back to the built-in set.
func (s SecurityConfig) RBAC() security.RBACConfig {
	if len(s.Roles) == 0 {
		return security.RBACConfig{Roles: security.DefaultRoles()}
	}
	roles := make(map[string]security.Role, len(s.Roles))
	for name, rc := range s.Roles {
		roles[name] = security.Role{Name: name, Capabilities: rc.Capabilities}
	}
	return security.RBACConfig{Roles: roles}
}

// RetryConfig configures the retry wrapper.
type RetryConfig struct {
	MaxRetries    int `json:"max_retries" yaml:"max_retries"`         // Default: 3.
	BackoffUnitMS int `json:"backoff_unit_ms" yaml:"backoff_unit_ms"` // Default: 500.
}

// BackoffUnit returns the linear backoff unit.
func (r RetryConfig) BackoffUnit() time.Duration {
	if r.BackoffUnitMS > 0 {
		return time.Duration(r.BackoffUnitMS) * time.Millisecond
	}
	return 500 * time.Millisecond
}

// OrderingConfig configures order totals.
type OrderingConfig struct {
	Currency    string  `json:"currency" yaml:"currency"` // Default: "INR".
	DeliveryFee float64 `json:"delivery_fee" yaml:"delivery_fee"`
}

// CurrencyCode returns the currency with a default of "INR".
func (o OrderingConfig) CurrencyCode() string {
	if o.Currency != "" {
		return strings.ToUpper(o.Currency)
	}
	return "INR"
}

// OTPConfig configures phone verification.
type OTPConfig struct {
	TTLSeconds      int    `json:"ttl_seconds" yaml:"ttl_seconds"`           // Default: 300.
	MaxAttempts     int    `json:"max_attempts" yaml:"max_attempts"`         // Default: 5.
	SendsPerHour    int    `json:"sends_per_hour" yaml:"sends_per_hour"`     // Default: 5.
	MessageTemplate string `json:"message_template" yaml:"message_template"` // Must contain %s.
}

// TTL returns the code lifetime.
func (o OTPConfig) TTL() time.Duration {
	if o.TTLSeconds > 0 {
		return time.Duration(o.TTLSeconds) * time.Second
	}
	return 5 * time.Minute
}

// Attempts returns the maximum verify attempts per code.
func (o OTPConfig) Attempts() int {
	if o.MaxAttempts > 0 {
		return o.MaxAttempts
	}
	return 5
}

// SendRate returns the per-phone send budget per hour.
func (o OTPConfig) SendRate() int {
	if o.SendsPerHour > 0 {
		return o.SendsPerHour
	}
	return 5
}

// Template returns the SMS body template.
func (o OTPConfig) Template() string {
	if o.MessageTemplate != "" {
		return o.MessageTemplate
	}
	return "Your verification code is %s. It expires in 5 minutes."
}

// SMSConfig configures the SMS gateways. Tokens are injected through
// SMS_PRIMARY_TOKEN and SMS_FALLBACK_TOKEN.
type SMSConfig struct {
	Enabled  bool               `json:"enabled" yaml:"enabled"`
	Primary  *SMSProviderConfig `json:"primary,omitempty" yaml:"primary,omitempty"`
	Fallback *SMSProviderConfig `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// SMSProviderConfig configures one SMS gateway.
type SMSProviderConfig struct {
	Name           string `json:"name" yaml:"name"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	Token          string `json:"token,omitempty" yaml:"token,omitempty"`
	Sender         string `json:"sender" yaml:"sender"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"` // Default: 10.
}

// Timeout returns the request timeout.
func (p *SMSProviderConfig) Timeout() time.Duration {
	if p != nil && p.TimeoutSeconds > 0 {
		return time.Duration(p.TimeoutSeconds) * time.Second
	}
	return 10 * time.Second
}

// PaymentConfig configures the payment gateway. Keys are injected through
// PAYMENT_KEY_ID and PAYMENT_KEY_SECRET.
type PaymentConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	KeyID          string `json:"key_id,omitempty" yaml:"key_id,omitempty"`
	KeySecret      string `json:"key_secret,omitempty" yaml:"key_secret,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"` // Default: 15.
}

// Timeout returns the request timeout.
func (p *PaymentConfig) Timeout() time.Duration {
	if p != nil && p.TimeoutSeconds > 0 {
		return time.Duration(p.TimeoutSeconds) * time.Second
	}
	return 15 * time.Second
}

// ObservabilityConfig configures metrics, tracing, health checks, and
// upstream anomaly detection. When nil, all features are disabled.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Anomaly *AnomalyConfig `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "soko"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`
}

// AnomalyConfig configures threshold-based error-rate detection on
// upstream gateways.
type AnomalyConfig struct {
	Enabled            bool    `json:"enabled" yaml:"enabled"`
	ErrorRateThreshold float64 `json:"error_rate_threshold" yaml:"error_rate_threshold"` // e.g. 0.5 = 50% errors
	WindowSeconds      int     `json:"window_seconds" yaml:"window_seconds"`             // Default: 300.
}

// SchedulerConfig configures housekeeping jobs.
type SchedulerConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	OTPCleanupCron string `json:"otp_cleanup_cron" yaml:"otp_cleanup_cron"` // Default: "0 * * * *".
}

// OTPCleanupSchedule returns the cron expression for OTP cleanup.
func (s *SchedulerConfig) OTPCleanupSchedule() string {
	if s != nil && s.OTPCleanupCron != "" {
		return s.OTPCleanupCron
	}
	return "0 * * * *"
}

// DefaultConfigPath returns the default config file path (~/.soko/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/soko.yaml"
	}
	return filepath.Join(home, ".soko", "config.yaml")
}

// Load reads a JSON or YAML config file and returns a validated Config.
// An empty path, or a missing file at the default path, yields a config built
// from environment variables alone. Environment variables take precedence
// over file values.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		resolved, err := resolvePath(path)
		if err != nil {
			return nil, fmt.Errorf("resolving config path %s: %w", path, err)
		}
		data, err := os.ReadFile(resolved)
		switch {
		case err == nil:
			if err := decode(resolved, data, &cfg); err != nil {
				return nil, err
			}
		case os.IsNotExist(err) && path == DefaultConfigPath():
		default:
			return nil, fmt.Errorf("reading config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()

	if cfg.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DataDir = filepath.Join(home, ".soko", "data")
		} else {
			cfg.DataDir = "data"
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing YAML config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing JSON config %s: %w", path, err)
		}
	}
	return nil
}

// applyEnv overlays secrets and deployment settings from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("SOKO_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SOKO_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("SOKO_DATABASE_DSN"); v != "" {
		if c.Storage == nil {
			c.Storage = &StorageConfig{Driver: "postgres"}
		}
		if c.Storage.Postgres == nil {
			c.Storage.Postgres = &PostgresStorageConfig{}
		}
		c.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("SMS_PRIMARY_TOKEN"); v != "" && c.SMS != nil && c.SMS.Primary != nil {
		c.SMS.Primary.Token = v
	}
	if v := os.Getenv("SMS_FALLBACK_TOKEN"); v != "" && c.SMS != nil && c.SMS.Fallback != nil {
		c.SMS.Fallback.Token = v
	}
	if c.Payment != nil {
		if v := os.Getenv("PAYMENT_KEY_ID"); v != "" {
			c.Payment.KeyID = v
		}
		if v := os.Getenv("PAYMENT_KEY_SECRET"); v != "" {
			c.Payment.KeySecret = v
		}
	}
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// ResolvedDataDir returns the data directory, resolving ~ if needed.
func (c *Config) ResolvedDataDir() string {
	resolved, err := resolvePath(c.DataDir)
	if err != nil {
		return c.DataDir
	}
	return resolved
}

// DatabasePath returns the SQLite database path.
func (c *Config) DatabasePath() string {
	if c.Storage != nil && c.Storage.SQLite != nil && c.Storage.SQLite.Path != "" {
		return c.Storage.SQLite.Path
	}
	return filepath.Join(c.ResolvedDataDir(), "soko.db")
}

// AuditLogPath returns the audit log path.
func (c *Config) AuditLogPath() string {
	if c.Security.AuditLogPath != "" {
		return c.Security.AuditLogPath
	}
	return filepath.Join(c.ResolvedDataDir(), "audit.jsonl")
}

// StorageDriverName returns the effective storage driver name.
func (c *Config) StorageDriverName() string {
	return c.Storage.StorageDriver()
}

// minSecretLen is the shortest accepted HS256 secret.
const minSecretLen = 32

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set SOKO_JWT_SECRET env var)")
	}
	if len(c.Auth.JWTSecret) < minSecretLen {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minSecretLen)
	}

	switch c.StorageDriverName() {
	case "sqlite":
	case "postgres":
		if c.Storage.Postgres == nil || c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required (set SOKO_DATABASE_DSN env var)")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported (use sqlite or postgres)", c.Storage.Driver)
	}

	for name, role := range c.Security.Roles {
		for _, capName := range role.Capabilities {
			if !security.Known(capName) {
				return fmt.Errorf("security.roles.%s: unknown capability %q", name, capName)
			}
		}
	}

	for _, o := range c.Server.CORS.Origins() {
		if o == "*" {
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server.cors.allowed_origins: %q is not an origin", o)
		}
	}
	if c.Server.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("server.rate_limit.requests_per_minute must not be negative")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	if !strings.Contains(c.OTP.Template(), "%s") {
		return fmt.Errorf("otp.message_template must contain %%s")
	}

	if c.SMS != nil && c.SMS.Enabled {
		if c.SMS.Primary == nil {
			return fmt.Errorf("sms.primary is required when sms is enabled")
		}
		if err := validateSMSProvider("sms.primary", "SMS_PRIMARY_TOKEN", c.SMS.Primary); err != nil {
			return err
		}
		if c.SMS.Fallback != nil {
			if err := validateSMSProvider("sms.fallback", "SMS_FALLBACK_TOKEN", c.SMS.Fallback); err != nil {
				return err
			}
		}
	}

	if c.Payment != nil && c.Payment.Enabled {
		if c.Payment.BaseURL == "" {
			return fmt.Errorf("payment.base_url is required when payment is enabled")
		}
		if c.Payment.KeyID == "" || c.Payment.KeySecret == "" {
			return fmt.Errorf("payment.key_id and payment.key_secret are required (set PAYMENT_KEY_ID and PAYMENT_KEY_SECRET env vars)")
		}
	}

	if c.Observability != nil && c.Observability.Tracing != nil && c.Observability.Tracing.Enabled {
		switch c.Observability.Tracing.Protocol {
		case "", "grpc", "http":
		default:
			return fmt.Errorf("observability.tracing.protocol must be grpc or http")
		}
	}
	return nil
}

func validateSMSProvider(field, env string, p *SMSProviderConfig) error {
	if p.Name == "" {
		return fmt.Errorf("%s.name is required", field)
	}
	if p.BaseURL == "" {
		return fmt.Errorf("%s.base_url is required", field)
	}
	if p.Token == "" {
		return fmt.Errorf("%s.token is required (set %s env var)", field, env)
	}
	return nil
}
