package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
	"github.com/fredcamaral/reloadrelay/internal/domain/ports"
)

// ConfigService implements the configuration service business logic
type ConfigService struct {
	loader ports.ConfigLoader
	merger ports.ConfigMerger
}

// NewConfigService creates a new configuration service
func NewConfigService(loader ports.ConfigLoader, merger ports.ConfigMerger) *ConfigService {
	return &ConfigService{
		loader: loader,
		merger: merger,
	}
}

// LoadConfig loads the complete configuration with hierarchy and overrides.
// Precedence, lowest first: defaults, global file, local file (or the
// explicit file instead of both), environment, CLI flags.
func (s *ConfigService) LoadConfig(ctx context.Context, req ports.ConfigRequest) (*entities.Config, error) {
	// Merge with no arguments returns defaults
	configs := []*entities.Config{s.merger.Merge()}

	if req.ExplicitPath != "" {
		explicit, err := s.loader.LoadFile(ctx, req.ExplicitPath)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		configs = append(configs, explicit)
	} else {
		globalConfig, err := s.loader.LoadGlobal(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
		if globalConfig != nil {
			configs = append(configs, globalConfig)
		}

		if req.WorkingDir != "" {
			localConfig, err := s.loader.LoadLocal(ctx, req.WorkingDir)
			if err != nil {
				return nil, fmt.Errorf("loading local config: %w", err)
			}
			if localConfig != nil {
				configs = append(configs, localConfig)
			}
		}
	}

	mergedConfig := s.merger.Merge(configs...)
	envConfig := s.merger.ApplyEnvVars(mergedConfig)
	finalConfig := s.merger.ApplyFlags(envConfig, req.Flags)

	if err := s.ValidateConfig(finalConfig); err != nil {
		return nil, fmt.Errorf("final config validation: %w", err)
	}

	return finalConfig, nil
}

// ValidateConfig validates a configuration
func (s *ConfigService) ValidateConfig(config *entities.Config) error {
	if config == nil {
		return errors.New("config cannot be nil")
	}

	return config.Validate()
}

// CreateGlobalConfig writes the global configuration file with defaults and returns its path
func (s *ConfigService) CreateGlobalConfig(ctx context.Context) (string, error) {
	globalPath := s.loader.GetGlobalPath()
	if err := s.loader.CreateDefaults(ctx, globalPath); err != nil {
		return "", err
	}
	return globalPath, nil
}

// Ensure ConfigService implements ports.ConfigService
var _ ports.ConfigService = (*ConfigService)(nil)
