package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cerplabs/memoryd/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage memoryd's configuration file",
		Long: `Manage the memoryd configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. Config file (--config, or the default path)
  3. MEMORYD_* environment variables`,
		Example: `  # Create the config file from defaults
  memoryd config init

  # Show the effective configuration
  memoryd config show

  # Print the default config file path
  memoryd config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the configuration file, backing up any existing one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file (a timestamped backup is kept)")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (defaults + file + env)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON instead of YAML")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path that init/show use by default",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), configPathOrDefault())
			return nil
		},
	}
}

// configPathOrDefault honors the root command's --config flag, falling back
// to config.DefaultPath() when it is unset.
func configPathOrDefault() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.DefaultPath()
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	path := configPathOrDefault()

	if config.Exists(path) {
		if !force {
			headingColor.Println("memoryd config init")
			labelColor.Printf("  config already exists: %s\n", path)
			labelColor.Println("  use --force to overwrite (a timestamped backup is kept)")
			return nil
		}
		backupPath, err := config.BackupConfigFile(path)
		if err != nil {
			return fmt.Errorf("backup existing config: %w", err)
		}
		if err := config.Default().WriteYAML(path); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		headingColor.Println("memoryd config init")
		labelColor.Printf("  wrote:  %s\n", path)
		if backupPath != "" {
			labelColor.Printf("  backup: %s\n", backupPath)
		}
		return nil
	}

	if err := config.Default().WriteYAML(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	headingColor.Println("memoryd config init")
	labelColor.Printf("  wrote: %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := config.Load(configPathOrDefault())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
