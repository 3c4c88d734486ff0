package ports

import (
	"context"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
)

// ConfigLoader defines the interface for loading configuration files
type ConfigLoader interface {
	// LoadGlobal loads the global configuration file, if present
	LoadGlobal(ctx context.Context) (*entities.Config, error)

	// LoadLocal loads the first local configuration file found in dir
	LoadLocal(ctx context.Context, dir string) (*entities.Config, error)

	// LoadFile loads an explicit configuration file; format follows the extension
	LoadFile(ctx context.Context, path string) (*entities.Config, error)

	// CreateDefaults writes a default configuration file at the specified path
	CreateDefaults(ctx context.Context, path string) error

	// GetGlobalPath returns the path to the global configuration file
	GetGlobalPath() string
}

// ConfigMerger defines the interface for merging configurations
type ConfigMerger interface {
	// Merge merges multiple configurations with later configs taking precedence
	Merge(configs ...*entities.Config) *entities.Config

	// ApplyFlags applies CLI flag overrides to a configuration
	ApplyFlags(config *entities.Config, flags map[string]interface{}) *entities.Config

	// ApplyEnvVars applies environment variable overrides to a configuration
	ApplyEnvVars(config *entities.Config) *entities.Config
}

// ConfigService defines the interface for the configuration service
type ConfigService interface {
	// LoadConfig loads the complete configuration with hierarchy and overrides
	LoadConfig(ctx context.Context, req ConfigRequest) (*entities.Config, error)

	// ValidateConfig validates a configuration
	ValidateConfig(config *entities.Config) error

	// CreateGlobalConfig creates the global configuration file with defaults
	CreateGlobalConfig(ctx context.Context) (string, error)
}

// ConfigRequest describes where configuration comes from for one invocation
type ConfigRequest struct {
	// WorkingDir is searched for a local config file
	WorkingDir string
	// ExplicitPath replaces global and local files when set
	ExplicitPath string
	// Flags are CLI overrides keyed by flag name
	Flags map[string]interface{}
}
