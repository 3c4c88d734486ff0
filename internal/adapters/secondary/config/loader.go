package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
	"github.com/fredcamaral/reloadrelay/internal/domain/ports"
)

// localNames are searched in order; the first existing file wins
var localNames = []string{
	"reloadrelay.toml",
	"reloadrelay.yaml",
	"reloadrelay.yml",
	"reloadrelay.jsonc",
	"reloadrelay.json",
}

// FileLoader implements the ConfigLoader interface over TOML, YAML and JSONC files
type FileLoader struct {
	globalPath string
	localNames []string
}

// NewFileLoader creates a new configuration file loader
func NewFileLoader() *FileLoader {
	homeDir, _ := os.UserHomeDir()
	globalPath := filepath.Join(homeDir, ".config", "reloadrelay", "config.toml")

	return &FileLoader{
		globalPath: globalPath,
		localNames: localNames,
	}
}

// LoadGlobal loads the global configuration file. A missing file is not an error.
func (l *FileLoader) LoadGlobal(ctx context.Context) (*entities.Config, error) {
	if _, err := os.Stat(l.globalPath); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	return l.LoadFile(ctx, l.globalPath)
}

// LoadLocal loads the first local configuration file found in dir
func (l *FileLoader) LoadLocal(ctx context.Context, dir string) (*entities.Config, error) {
	for _, name := range l.localNames {
		localPath := filepath.Join(dir, name)
		if _, err := os.Stat(localPath); err == nil {
			return l.LoadFile(ctx, localPath)
		}
	}

	return nil, nil // Local config is optional
}

// LoadFile loads a configuration file, choosing the decoder by extension
func (l *FileLoader) LoadFile(ctx context.Context, path string) (*entities.Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is from controlled sources (global/local/flag)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var config entities.Config
	if err := decode(path, data, &config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}

	return &config, nil
}

// decode unmarshals data according to the file extension of path
func decode(path string, data []byte, config *entities.Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml", "":
		if err := toml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("parsing TOML from %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("parsing YAML from %s: %w", path, err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), config); err != nil {
			return fmt.Errorf("parsing JSON from %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q for %s", ext, path)
	}
	return nil
}

// CreateDefaults creates a default TOML configuration file at the specified path
func (l *FileLoader) CreateDefaults(ctx context.Context, path string) error {
	if err := l.ensureConfigDir(path); err != nil {
		return err
	}

	file, err := os.Create(path) // #nosec G304 - path is controlled (global config path)
	if err != nil {
		return fmt.Errorf("creating config file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	if err := WriteTOML(file, GetDefaultConfig()); err != nil {
		return fmt.Errorf("encoding config to %s: %w", path, err)
	}

	return nil
}

// GetGlobalPath returns the path to the global configuration file
func (l *FileLoader) GetGlobalPath() string {
	return l.globalPath
}

// ensureConfigDir ensures the configuration directory exists
func (l *FileLoader) ensureConfigDir(path string) error {
	dir := filepath.Dir(path)

	// 0750 = owner and group only
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	return nil
}

// Ensure FileLoader implements ports.ConfigLoader
var _ ports.ConfigLoader = (*FileLoader)(nil)
