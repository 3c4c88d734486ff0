package entities

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            35729,
			ReadTimeout:     10,
			ShutdownTimeout: 5,
		},
		Relay: RelaySettings{
			RetryDelayMs:    1000,
			MaxRetryDelayMs: 30000,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("invalid server config", func(t *testing.T) {
		config := validConfig()
		config.Server.Port = -1

		err := config.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server config")
	})

	t.Run("invalid relay config", func(t *testing.T) {
		config := validConfig()
		config.Relay.EventsURL = "not a url"

		err := config.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "relay config")
	})

	t.Run("invalid logging config", func(t *testing.T) {
		config := validConfig()
		config.Logging.Level = "trace"

		err := config.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logging config")
	})
}

func TestServerConfig_Validate(t *testing.T) {
	t.Run("valid port range", func(t *testing.T) {
		for _, port := range []int{0, 1, 3000, 8080, 65535} {
			config := ServerConfig{Port: port}
			assert.NoError(t, config.Validate(), "Port %d should be valid", port)
		}
	})

	t.Run("invalid ports", func(t *testing.T) {
		for _, port := range []int{-1, 70000} {
			err := ServerConfig{Port: port}.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "port must be between 0 and 65535")
		}
	})

	t.Run("negative timeouts", func(t *testing.T) {
		tests := []struct {
			name   string
			config ServerConfig
		}{
			{"negative read timeout", ServerConfig{ReadTimeout: -1}},
			{"negative shutdown timeout", ServerConfig{ShutdownTimeout: -1}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Error(t, tt.config.Validate())
			})
		}
	})

	t.Run("environment", func(t *testing.T) {
		assert.NoError(t, ServerConfig{Environment: "production"}.Validate())
		assert.NoError(t, ServerConfig{Environment: "development"}.Validate())
		assert.Error(t, ServerConfig{Environment: "staging"}.Validate())

		assert.True(t, ServerConfig{}.IsDevelopment())
		assert.False(t, ServerConfig{Environment: "production"}.IsDevelopment())
	})

	t.Run("CORS origins", func(t *testing.T) {
		assert.NoError(t, ServerConfig{CORSOrigins: []string{"http://localhost:3000", "https://example.com"}}.Validate())
		assert.NoError(t, ServerConfig{CORSOrigins: []string{"*"}}.Validate())

		err := ServerConfig{CORSOrigins: []string{"example.com"}}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid CORS origin format")

		err = ServerConfig{CORSOrigins: []string{""}}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CORS origin cannot be empty")
	})
}

func TestServerConfig_Getters(t *testing.T) {
	t.Run("custom timeouts", func(t *testing.T) {
		config := ServerConfig{ReadTimeout: 45, ShutdownTimeout: 10}

		assert.Equal(t, 45*time.Second, config.GetReadTimeout())
		assert.Equal(t, 10*time.Second, config.GetShutdownTimeout())
	})

	t.Run("defaults", func(t *testing.T) {
		config := ServerConfig{ReadTimeout: -5}

		assert.Equal(t, 10*time.Second, config.GetReadTimeout())
		assert.Equal(t, 5*time.Second, config.GetShutdownTimeout())
		assert.Len(t, config.GetCORSOrigins(), 4)
	})

	t.Run("custom CORS origins", func(t *testing.T) {
		origins := []string{"https://example.com"}
		assert.Equal(t, origins, ServerConfig{CORSOrigins: origins}.GetCORSOrigins())
	})
}

func TestRelaySettings_Validate(t *testing.T) {
	tests := []struct {
		name     string
		settings RelaySettings
		wantErr  string
	}{
		{"empty is valid", RelaySettings{}, ""},
		{"preconfigured url", RelaySettings{EventsURL: "http://localhost:5173/_events"}, ""},
		{"bad url", RelaySettings{EventsURL: "ftp://x"}, "invalid events url"},
		{"negative retry", RelaySettings{RetryDelayMs: -1}, "retry delay must be non-negative"},
		{"negative max retry", RelaySettings{MaxRetryDelayMs: -1}, "max retry delay must be non-negative"},
		{"max below base", RelaySettings{RetryDelayMs: 2000, MaxRetryDelayMs: 1000}, "must not be less than"},
		{"negative dial timeout", RelaySettings{DialTimeoutMs: -1}, "dial timeout"},
		{"negative header timeout", RelaySettings{ResponseHeaderTimeoutMs: -1}, "response header timeout"},
		{"negative buffer", RelaySettings{ClientBuffer: -1}, "client buffer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRelaySettings_Getters(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var r RelaySettings
		assert.Equal(t, time.Second, r.GetRetryDelay())
		assert.Equal(t, 30*time.Second, r.GetMaxRetryDelay())
		assert.Equal(t, 10*time.Second, r.GetDialTimeout())
		assert.Equal(t, 10*time.Second, r.GetResponseHeaderTimeout())
		assert.Equal(t, 64, r.GetClientBuffer())
	})

	t.Run("custom values", func(t *testing.T) {
		r := RelaySettings{RetryDelayMs: 250, MaxRetryDelayMs: 4000, DialTimeoutMs: 1500, ResponseHeaderTimeoutMs: 2500, ClientBuffer: 8}
		assert.Equal(t, 250*time.Millisecond, r.GetRetryDelay())
		assert.Equal(t, 4*time.Second, r.GetMaxRetryDelay())
		assert.Equal(t, 1500*time.Millisecond, r.GetDialTimeout())
		assert.Equal(t, 2500*time.Millisecond, r.GetResponseHeaderTimeout())
		assert.Equal(t, 8, r.GetClientBuffer())
	})
}

func TestLoggingConfig(t *testing.T) {
	t.Run("levels", func(t *testing.T) {
		for _, level := range []string{"", "debug", "info", "warn", "error"} {
			assert.NoError(t, LoggingConfig{Level: level}.Validate(), level)
		}
		assert.Error(t, LoggingConfig{Level: "verbose"}.Validate())
	})

	t.Run("file must be absolute and in an existing directory", func(t *testing.T) {
		assert.Error(t, LoggingConfig{File: "relay.log"}.Validate())
		assert.Error(t, LoggingConfig{File: "/does/not/exist/relay.log"}.Validate())
		assert.NoError(t, LoggingConfig{File: filepath.Join(t.TempDir(), "relay.log")}.Validate())
	})

	t.Run("GetLevel", func(t *testing.T) {
		assert.Equal(t, LogLevelInfo, LoggingConfig{}.GetLevel())
		assert.Equal(t, LogLevelWarn, LoggingConfig{Level: "warn"}.GetLevel())
		assert.Equal(t, LogLevelDebug, LoggingConfig{Level: "error", Verbose: true}.GetLevel())
	})
}
