package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fredcamaral/reloadrelay/internal/adapters/secondary/config"
	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
	"github.com/fredcamaral/reloadrelay/internal/domain/ports"
	"github.com/fredcamaral/reloadrelay/internal/domain/services"
)

// configFlags are the per-command overrides collected into ConfigRequest.Flags
var configFlags = []string{"port", "host", "events-url", "log-level"}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage reloadrelay configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to the global config path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newConfigService()

		path, err := svc.CreateGlobalConfig(cmd.Context())
		if err != nil {
			return fmt.Errorf("creating global config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return config.WriteTOML(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func newConfigService() *services.ConfigService {
	return services.NewConfigService(config.NewFileLoader(), config.NewConfigMerger())
}

// loadConfig resolves configuration for cmd: defaults, files, environment
// and finally any flags the user set on the command line.
func loadConfig(cmd *cobra.Command) (*entities.Config, error) {
	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	explicitPath, _ := cmd.Flags().GetString("config")

	cfg, err := newConfigService().LoadConfig(cmd.Context(), ports.ConfigRequest{
		WorkingDir:   workingDir,
		ExplicitPath: explicitPath,
		Flags:        collectFlags(cmd),
	})
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	return cfg, nil
}

// collectFlags returns the explicitly set overrides of cmd
func collectFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})

	if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
		flags["verbose"] = true
	}

	for _, name := range configFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}

		switch name {
		case "port":
			if port, err := cmd.Flags().GetInt(name); err == nil {
				flags[name] = port
			}
		default:
			flags[name] = flag.Value.String()
		}
	}

	return flags
}
