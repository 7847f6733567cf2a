package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AuthMode selects how sessions prove who they are.
type AuthMode string

const (
	// AuthURLPassword authenticates at connect time: the WebSocket path or
	// the first TCP line carries the password.
	AuthURLPassword AuthMode = "url_password"
	// AuthPacket starts sessions unauthenticated; the client sends an
	// explicit "auth" request.
	AuthPacket AuthMode = "packet_auth"
)

// Detail kinds accepted by RCON_AUTO_DETAIL.
const (
	DetailLogs    = "logs"
	DetailPlayers = "players"
	DetailStatus  = "status"
)

type Config struct {
	// Transports
	Host       string `env:"RCON_HOST" default:"0.0.0.0"`
	TCPEnabled bool   `env:"RCON_TCP_ENABLED" default:"true"`
	TCPPort    int    `env:"RCON_TCP_PORT" default:"27015"`
	WSEnabled  bool   `env:"RCON_WS_ENABLED" default:"true"`
	WSPort     int    `env:"RCON_WS_PORT" default:"27016"`
	WebRoot    string `env:"RCON_WEB_ROOT"`

	// Sessions
	MaxConnections     int           `env:"RCON_MAX_CONNECTIONS" default:"16"`
	IdleTimeoutSeconds int           `env:"RCON_IDLE_TIMEOUT_SECONDS" default:"300"`
	RateLimitPerSecond float64       `env:"RCON_RATE_LIMIT_PER_SECOND" default:"10"`
	RateLimitBurst     int           `env:"RCON_RATE_LIMIT_BURST" default:"20"`
	ShutdownTimeout    time.Duration `env:"RCON_SHUTDOWN_TIMEOUT" default:"5s"`

	// Authentication
	AuthMode          AuthMode      `env:"RCON_AUTH_MODE" default:"packet_auth"`
	Password          string        `env:"RCON_PASSWORD" required:"true"`
	MaxAuthFailures   int           `env:"RCON_MAX_AUTH_FAILURES" default:"0"`
	MinPrivilegeLevel int           `env:"RCON_MIN_PRIVILEGE_LEVEL" default:"1"`
	TokenSecret       string        `env:"RCON_TOKEN_SECRET"`
	TokenTTL          time.Duration `env:"RCON_TOKEN_TTL" default:"1h"`

	// Broadcasts
	AutoDetail     []string      `env:"RCON_AUTO_DETAIL" default:"logs,players,status"`
	StatusInterval time.Duration `env:"RCON_STATUS_INTERVAL" default:"0s"`

	// Diagnostics
	ServerName     string `env:"RCON_SERVER_NAME" default:"rconhub"`
	LoggingVerbose bool   `env:"RCON_LOGGING_VERBOSE" default:"false"`
	DebugEcho      bool   `env:"RCON_DEBUG_ECHO" default:"false"`

	// Storage
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// a missing .env is fine, the process environment still applies
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		slog.Warn("env_file_not_loaded", "error", err)
	}

	config := &Config{}

	if err := loadEnvString(&config.Host, "RCON_HOST", "0.0.0.0"); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.TCPEnabled, "RCON_TCP_ENABLED", true); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.TCPPort, "RCON_TCP_PORT", 27015); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.WSEnabled, "RCON_WS_ENABLED", true); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.WSPort, "RCON_WS_PORT", 27016); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.WebRoot, "RCON_WEB_ROOT", ""); err != nil {
		return nil, err
	}

	// Sessions
	if err := loadEnvInt(&config.MaxConnections, "RCON_MAX_CONNECTIONS", 16); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.IdleTimeoutSeconds, "RCON_IDLE_TIMEOUT_SECONDS", 300); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.RateLimitPerSecond, "RCON_RATE_LIMIT_PER_SECOND", 10); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.RateLimitBurst, "RCON_RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.ShutdownTimeout, "RCON_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	// Authentication
	var mode string
	if err := loadEnvString(&mode, "RCON_AUTH_MODE", string(AuthPacket)); err != nil {
		return nil, err
	}
	config.AuthMode = AuthMode(strings.ToLower(mode))
	if err := loadEnvStringRequired(&config.Password, "RCON_PASSWORD"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.MaxAuthFailures, "RCON_MAX_AUTH_FAILURES", 0); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.MinPrivilegeLevel, "RCON_MIN_PRIVILEGE_LEVEL", 1); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.TokenSecret, "RCON_TOKEN_SECRET", ""); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.TokenTTL, "RCON_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}

	// Broadcasts
	if err := loadEnvStringSlice(&config.AutoDetail, "RCON_AUTO_DETAIL", []string{DetailLogs, DetailPlayers, DetailStatus}); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.StatusInterval, "RCON_STATUS_INTERVAL", 0); err != nil {
		return nil, err
	}

	// Diagnostics
	if err := loadEnvString(&config.ServerName, "RCON_SERVER_NAME", "rconhub"); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.LoggingVerbose, "RCON_LOGGING_VERBOSE", false); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.DebugEcho, "RCON_DEBUG_ECHO", false); err != nil {
		return nil, err
	}

	// Storage
	if err := loadEnvString(&config.DatabaseURL, "DATABASE_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", ""); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvStringRequired(target *string, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return fmt.Errorf("required environment variable %s is not set", key)
	}
	*target = value
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvStringSlice(target *[]string, key string, defaultValue []string) error {
	if value, ok := os.LookupEnv(key); ok {
		*target = []string{}
		for _, v := range strings.Split(value, ",") {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				*target = append(*target, v)
			}
		}
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if !c.TCPEnabled && !c.WSEnabled {
		errors = append(errors, "at least one of RCON_TCP_ENABLED or RCON_WS_ENABLED must be true")
	}
	if c.TCPEnabled && (c.TCPPort < 0 || c.TCPPort > 65535) {
		errors = append(errors, "RCON_TCP_PORT must be between 0 and 65535")
	}
	if c.WSEnabled && (c.WSPort < 0 || c.WSPort > 65535) {
		errors = append(errors, "RCON_WS_PORT must be between 0 and 65535")
	}
	if c.TCPEnabled && c.WSEnabled && c.TCPPort != 0 && c.TCPPort == c.WSPort {
		errors = append(errors, "RCON_TCP_PORT and RCON_WS_PORT must differ")
	}
	if c.AuthMode != AuthURLPassword && c.AuthMode != AuthPacket {
		errors = append(errors, fmt.Sprintf("RCON_AUTH_MODE must be one of: %s, %s", AuthURLPassword, AuthPacket))
	}
	if c.Password == "" {
		errors = append(errors, "RCON_PASSWORD must not be empty")
	}
	if c.AuthMode == AuthURLPassword && strings.ContainsAny(c.Password, "/?#\r\n") {
		errors = append(errors, "RCON_PASSWORD must not contain '/', '?', '#' or line breaks in url_password mode")
	}
	if c.MaxConnections < 1 {
		errors = append(errors, "RCON_MAX_CONNECTIONS must be at least 1")
	}
	if c.IdleTimeoutSeconds < 0 {
		errors = append(errors, "RCON_IDLE_TIMEOUT_SECONDS must not be negative")
	}
	if c.RateLimitPerSecond < 0 || c.RateLimitBurst < 0 {
		errors = append(errors, "RCON_RATE_LIMIT_PER_SECOND and RCON_RATE_LIMIT_BURST must not be negative")
	}
	if c.MaxAuthFailures < 0 {
		errors = append(errors, "RCON_MAX_AUTH_FAILURES must not be negative")
	}
	validDetails := []string{DetailLogs, DetailPlayers, DetailStatus}
	for _, d := range c.AutoDetail {
		if !contains(validDetails, d) {
			errors = append(errors, fmt.Sprintf("RCON_AUTO_DETAIL entries must be one of: %s", strings.Join(validDetails, ", ")))
			break
		}
	}
	if c.TokenSecret != "" && len(c.TokenSecret) < 32 {
		errors = append(errors, "RCON_TOKEN_SECRET should be at least 32 characters long")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IdleTimeout returns the idle timeout as a duration; zero disables it.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// WantsDetail reports whether broadcasts of the given kind are enabled.
func (c *Config) WantsDetail(kind string) bool {
	return contains(c.AutoDetail, kind)
}

// TCPAddr returns the listen address of the raw TCP transport.
func (c *Config) TCPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.TCPPort)
}

// WSAddr returns the listen address of the WebSocket transport.
func (c *Config) WSAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.WSPort)
}

// LogLevel maps LoggingVerbose to a slog level.
func (c *Config) LogLevel() slog.Level {
	if c.LoggingVerbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// SafeFields returns the subset of the configuration a client may see
// before it authenticates.
func (c *Config) SafeFields() map[string]any {
	return map[string]any{
		"AuthMode":   string(c.AuthMode),
		"DebugEcho":  c.DebugEcho,
		"TCPEnabled": c.TCPEnabled,
		"TCPPort":    c.TCPPort,
		"WSEnabled":  c.WSEnabled,
		"WSPort":     c.WSPort,
		"ServerName": c.ServerName,
	}
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
