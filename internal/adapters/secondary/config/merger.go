package config

import (
	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
	"github.com/fredcamaral/reloadrelay/internal/domain/ports"
)

// ConfigMerger implements the ConfigMerger interface
type ConfigMerger struct{}

// NewConfigMerger creates a new configuration merger
func NewConfigMerger() *ConfigMerger {
	return &ConfigMerger{}
}

// Merge merges multiple configurations with later configs taking precedence.
// With no arguments it returns the defaults.
func (m *ConfigMerger) Merge(configs ...*entities.Config) *entities.Config {
	if len(configs) == 0 {
		return GetDefaultConfig()
	}

	result := deepCopy(configs[0])
	if result == nil {
		result = GetDefaultConfig()
	}

	for i := 1; i < len(configs); i++ {
		if configs[i] != nil {
			m.mergeInto(result, configs[i])
		}
	}

	return result
}

// ApplyFlags applies CLI flag overrides to a configuration
func (m *ConfigMerger) ApplyFlags(config *entities.Config, flags map[string]interface{}) *entities.Config {
	result := deepCopy(config)

	if port, ok := flags["port"].(int); ok && port > 0 {
		result.Server.Port = port
	}

	if host, ok := flags["host"].(string); ok && host != "" {
		result.Server.Host = host
	}

	if eventsURL, ok := flags["events-url"].(string); ok && eventsURL != "" {
		result.Relay.EventsURL = eventsURL
	}

	if verbose, ok := flags["verbose"].(bool); ok && verbose {
		result.Logging.Verbose = true
	}

	if level, ok := flags["log-level"].(string); ok && level != "" {
		result.Logging.Level = level
	}

	return result
}

// ApplyEnvVars applies RELOADRELAY_* environment overrides to a configuration
func (m *ConfigMerger) ApplyEnvVars(config *entities.Config) *entities.Config {
	result := deepCopy(config)

	// Server
	if host, ok := lookupEnv("HOST"); ok {
		result.Server.Host = host
	}
	if port, ok := lookupEnvInt("PORT"); ok && port > 0 {
		result.Server.Port = port
	}
	if v, ok := lookupEnvInt("READ_TIMEOUT"); ok {
		result.Server.ReadTimeout = v
	}
	if v, ok := lookupEnvInt("SHUTDOWN_TIMEOUT"); ok {
		result.Server.ShutdownTimeout = v
	}
	if env, ok := lookupEnv("ENV"); ok {
		result.Server.Environment = env
	}
	if origins, ok := lookupEnvSlice("CORS_ORIGINS"); ok {
		result.Server.CORSOrigins = origins
	}

	// Relay
	if eventsURL, ok := lookupEnv("EVENTS_URL"); ok {
		result.Relay.EventsURL = eventsURL
	}
	if v, ok := lookupEnvInt("RETRY_DELAY_MS"); ok && v >= 0 {
		result.Relay.RetryDelayMs = v
	}
	if v, ok := lookupEnvInt("MAX_RETRY_DELAY_MS"); ok && v >= 0 {
		result.Relay.MaxRetryDelayMs = v
	}
	if v, ok := lookupEnvInt("DIAL_TIMEOUT_MS"); ok && v >= 0 {
		result.Relay.DialTimeoutMs = v
	}
	if v, ok := lookupEnvInt("RESPONSE_HEADER_TIMEOUT_MS"); ok && v >= 0 {
		result.Relay.ResponseHeaderTimeoutMs = v
	}
	if v, ok := lookupEnvInt("CLIENT_BUFFER"); ok && v > 0 {
		result.Relay.ClientBuffer = v
	}

	// Logging
	if level, ok := lookupEnv("LOG_LEVEL"); ok {
		result.Logging.Level = level
	}
	if verbose, ok := lookupEnvBool("LOG_VERBOSE"); ok {
		result.Logging.Verbose = verbose
	}
	if jsonFormat, ok := lookupEnvBool("LOG_JSON"); ok {
		result.Logging.JSONFormat = jsonFormat
	}
	if file, ok := lookupEnv("LOG_FILE"); ok {
		result.Logging.File = file
	}

	return result
}

// mergeInto merges source configuration into target configuration.
// Zero values in source leave target unchanged.
func (m *ConfigMerger) mergeInto(target, source *entities.Config) {
	// Server config
	if source.Server.Port != 0 {
		target.Server.Port = source.Server.Port
	}
	if source.Server.Host != "" {
		target.Server.Host = source.Server.Host
	}
	if source.Server.ReadTimeout != 0 {
		target.Server.ReadTimeout = source.Server.ReadTimeout
	}
	if source.Server.ShutdownTimeout != 0 {
		target.Server.ShutdownTimeout = source.Server.ShutdownTimeout
	}
	if source.Server.Environment != "" {
		target.Server.Environment = source.Server.Environment
	}
	if len(source.Server.CORSOrigins) > 0 {
		target.Server.CORSOrigins = append([]string(nil), source.Server.CORSOrigins...)
	}

	// Relay config
	if source.Relay.EventsURL != "" {
		target.Relay.EventsURL = source.Relay.EventsURL
	}
	if source.Relay.RetryDelayMs != 0 {
		target.Relay.RetryDelayMs = source.Relay.RetryDelayMs
	}
	if source.Relay.MaxRetryDelayMs != 0 {
		target.Relay.MaxRetryDelayMs = source.Relay.MaxRetryDelayMs
	}
	if source.Relay.DialTimeoutMs != 0 {
		target.Relay.DialTimeoutMs = source.Relay.DialTimeoutMs
	}
	if source.Relay.ResponseHeaderTimeoutMs != 0 {
		target.Relay.ResponseHeaderTimeoutMs = source.Relay.ResponseHeaderTimeoutMs
	}
	if source.Relay.ClientBuffer != 0 {
		target.Relay.ClientBuffer = source.Relay.ClientBuffer
	}

	// Logging config
	if source.Logging.Level != "" {
		target.Logging.Level = source.Logging.Level
	}
	if source.Logging.File != "" {
		target.Logging.File = source.Logging.File
	}
	// Booleans cannot distinguish false from unset; only true overrides
	if source.Logging.Verbose {
		target.Logging.Verbose = true
	}
	if source.Logging.JSONFormat {
		target.Logging.JSONFormat = true
	}
}

// deepCopy creates a deep copy of a configuration
func deepCopy(src *entities.Config) *entities.Config {
	if src == nil {
		return nil
	}

	dst := *src
	if src.Server.CORSOrigins != nil {
		dst.Server.CORSOrigins = make([]string, len(src.Server.CORSOrigins))
		copy(dst.Server.CORSOrigins, src.Server.CORSOrigins)
	}

	return &dst
}

// Ensure ConfigMerger implements ports.ConfigMerger
var _ ports.ConfigMerger = (*ConfigMerger)(nil)
