package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "RELOADRELAY_"

// DefaultPort is the conventional live-reload port
const DefaultPort = 35729

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() *entities.Config {
	return &entities.Config{
		Server: entities.ServerConfig{
			Host:            "localhost",
			Port:            DefaultPort,
			ReadTimeout:     10,
			ShutdownTimeout: 5,
			Environment:     "development",
			CORSOrigins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
				"http://localhost:8080",
				"http://127.0.0.1:8080",
			},
		},
		Relay: entities.RelaySettings{
			EventsURL:               "",
			RetryDelayMs:            1000,
			MaxRetryDelayMs:         30000,
			DialTimeoutMs:           10000,
			ResponseHeaderTimeoutMs: 10000,
			ClientBuffer:            64,
		},
		Logging: entities.LoggingConfig{
			Level:      "info",
			Verbose:    false,
			JSONFormat: false,
			File:       "",
		},
	}
}

// WriteTOML encodes config to w in the layout used for config files
func WriteTOML(w io.Writer, config *entities.Config) error {
	encoder := toml.NewEncoder(w)
	encoder.Indent = "  "

	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("encoding TOML: %w", err)
	}
	return nil
}

func envKey(name string) string {
	return EnvPrefix + name
}

// lookupEnv returns a set, non-empty environment variable
func lookupEnv(name string) (string, bool) {
	value := os.Getenv(envKey(name))
	return value, value != ""
}

// lookupEnvInt returns an environment variable parsed as int
func lookupEnvInt(name string) (int, bool) {
	value, ok := lookupEnv(name)
	if !ok {
		return 0, false
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return intValue, true
}

// lookupEnvBool returns an environment variable parsed as bool
func lookupEnvBool(name string) (bool, bool) {
	value, ok := lookupEnv(name)
	if !ok {
		return false, false
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return false, false
	}
	return boolValue, true
}

// lookupEnvSlice returns a comma separated environment variable as a slice
func lookupEnvSlice(name string) ([]string, bool) {
	value, ok := lookupEnv(name)
	if !ok {
		return nil, false
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil, false
	}
	return result, true
}
