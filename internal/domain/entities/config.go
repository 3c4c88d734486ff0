package entities

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `toml:"server" yaml:"server" json:"server"`
	Relay   RelaySettings `toml:"relay" yaml:"relay" json:"relay"`
	Logging LoggingConfig `toml:"logging" yaml:"logging" json:"logging"`
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Relay.Validate(); err != nil {
		return fmt.Errorf("relay config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string   `toml:"host" yaml:"host" json:"host"`
	Port            int      `toml:"port" yaml:"port" json:"port"`
	ReadTimeout     int      `toml:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	ShutdownTimeout int      `toml:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	Environment     string   `toml:"environment" yaml:"environment" json:"environment"`
	CORSOrigins     []string `toml:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// Validate validates server configuration
func (s ServerConfig) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return errors.New("port must be between 0 and 65535")
	}

	if s.Host != "" {
		if ip := net.ParseIP(s.Host); ip == nil {
			if _, err := net.LookupHost(s.Host); err != nil {
				return fmt.Errorf("invalid host: %w", err)
			}
		}
	}

	if s.ReadTimeout < 0 {
		return errors.New("read timeout must be non-negative")
	}

	if s.ShutdownTimeout < 0 {
		return errors.New("shutdown timeout must be non-negative")
	}

	switch s.Environment {
	case "", "development", "production":
	default:
		return fmt.Errorf("invalid environment: %s (must be development or production)", s.Environment)
	}

	for _, origin := range s.CORSOrigins {
		if origin == "" {
			return errors.New("CORS origin cannot be empty")
		}
		if origin == "*" {
			continue
		}
		if len(origin) < 7 || (!strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://")) {
			return fmt.Errorf("invalid CORS origin format: %s (must start with http:// or https://)", origin)
		}
	}

	return nil
}

// GetReadTimeout returns how long a client may take to send request headers.
// Websocket traffic after the upgrade is not bound by it.
func (s ServerConfig) GetReadTimeout() time.Duration {
	if s.ReadTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetShutdownTimeout returns the shutdown timeout as a duration
func (s ServerConfig) GetShutdownTimeout() time.Duration {
	if s.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// GetCORSOrigins returns CORS origins with defaults if empty
func (s ServerConfig) GetCORSOrigins() []string {
	if len(s.CORSOrigins) == 0 {
		return []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:8080",
			"http://127.0.0.1:8080",
		}
	}
	return s.CORSOrigins
}

// IsDevelopment returns true if the server is running in development mode
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development" || s.Environment == ""
}

// RelaySettings configures the upstream stream consumer and tab fan-out
type RelaySettings struct {
	// EventsURL preconfigures the relay as if a tab had sent it first
	EventsURL       string `toml:"events_url" yaml:"events_url" json:"events_url"`
	RetryDelayMs    int    `toml:"retry_delay_ms" yaml:"retry_delay_ms" json:"retry_delay_ms"`
	MaxRetryDelayMs int    `toml:"max_retry_delay_ms" yaml:"max_retry_delay_ms" json:"max_retry_delay_ms"`
	DialTimeoutMs   int    `toml:"dial_timeout_ms" yaml:"dial_timeout_ms" json:"dial_timeout_ms"`
	ClientBuffer    int    `toml:"client_buffer" yaml:"client_buffer" json:"client_buffer"`

	// ResponseHeaderTimeoutMs bounds the wait for the upstream's response headers
	ResponseHeaderTimeoutMs int `toml:"response_header_timeout_ms" yaml:"response_header_timeout_ms" json:"response_header_timeout_ms"`
}

// Validate validates relay configuration
func (r RelaySettings) Validate() error {
	if r.EventsURL != "" {
		if err := (RelayConfig{EventsURL: r.EventsURL}).Validate(); err != nil {
			return err
		}
	}

	if r.RetryDelayMs < 0 {
		return errors.New("retry delay must be non-negative")
	}

	if r.MaxRetryDelayMs < 0 {
		return errors.New("max retry delay must be non-negative")
	}

	if r.MaxRetryDelayMs > 0 && r.MaxRetryDelayMs < r.RetryDelayMs {
		return errors.New("max retry delay must not be less than retry delay")
	}

	if r.DialTimeoutMs < 0 {
		return errors.New("dial timeout must be non-negative")
	}

	if r.ResponseHeaderTimeoutMs < 0 {
		return errors.New("response header timeout must be non-negative")
	}

	if r.ClientBuffer < 0 {
		return errors.New("client buffer must be non-negative")
	}

	return nil
}

// GetRetryDelay returns the base reconnect delay
func (r RelaySettings) GetRetryDelay() time.Duration {
	if r.RetryDelayMs <= 0 {
		return time.Second
	}
	return time.Duration(r.RetryDelayMs) * time.Millisecond
}

// GetMaxRetryDelay returns the reconnect delay ceiling
func (r RelaySettings) GetMaxRetryDelay() time.Duration {
	if r.MaxRetryDelayMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.MaxRetryDelayMs) * time.Millisecond
}

// GetDialTimeout returns the upstream dial timeout
func (r RelaySettings) GetDialTimeout() time.Duration {
	if r.DialTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.DialTimeoutMs) * time.Millisecond
}

// GetResponseHeaderTimeout returns how long to wait for upstream response headers
func (r RelaySettings) GetResponseHeaderTimeout() time.Duration {
	if r.ResponseHeaderTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.ResponseHeaderTimeoutMs) * time.Millisecond
}

// GetClientBuffer returns the per-tab send queue length
func (r RelaySettings) GetClientBuffer() int {
	if r.ClientBuffer <= 0 {
		return 64
	}
	return r.ClientBuffer
}

// LogLevel represents logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level" json:"level"`                   // debug, info, warn, error
	Verbose    bool   `toml:"verbose" yaml:"verbose" json:"verbose"`             // Forces debug level
	JSONFormat bool   `toml:"json_format" yaml:"json_format" json:"json_format"` // Output logs in JSON format
	File       string `toml:"file" yaml:"file" json:"file"`                      // Log to file (optional)
}

// Validate validates logging configuration
func (l LoggingConfig) Validate() error {
	switch LogLevel(l.Level) {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	case "":
		// Empty is okay, will use default
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", l.Level)
	}

	if l.File != "" {
		if !filepath.IsAbs(l.File) {
			return errors.New("log file path must be absolute")
		}

		dir := filepath.Dir(l.File)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("log file directory does not exist: %s", dir)
		}
	}

	return nil
}

// GetLevel returns the log level with default
func (l LoggingConfig) GetLevel() LogLevel {
	if l.Verbose {
		return LogLevelDebug
	}
	if l.Level == "" {
		return LogLevelInfo
	}
	return LogLevel(l.Level)
}
