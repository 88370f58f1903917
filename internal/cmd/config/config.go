// Package config provides CLI commands for managing magicbus configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/Iron-Ham/magicbus/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or manage magicbus configuration",
	Long: `View or manage magicbus configuration.

Use 'config show' to print the effective configuration, 'config init' to
write a default config file, and 'config watch' to follow edits to it.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/magicbus/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for invalid values",
	RunE:  runConfigValidate,
}

var configWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the configuration each time the config file changes",
	Long: `Watch the config file and print the effective configuration after every
valid edit. Invalid edits are reported and otherwise ignored. Stop with
Ctrl+C.`,
	RunE: runConfigWatch,
}

var initForce bool

func init() {
	configInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configWatchCmd)
}

// Register adds all config-related commands to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := appconfig.Get()
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(out, used)
		return nil
	}
	fmt.Fprintln(out, appconfig.ConfigFile())
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := appconfig.ConfigFile()

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(appconfig.Default())
	if err != nil {
		return fmt.Errorf("failed to encode default configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := appconfig.Load(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
	return nil
}

func runConfigWatch(cmd *cobra.Command, args []string) error {
	if viper.ConfigFileUsed() == "" {
		return fmt.Errorf("no config file in use; run 'magicbus config init' first")
	}
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Fprintf(out, "Watching %s\n", viper.ConfigFileUsed())
	appconfig.Watch(func(cfg *appconfig.Config) {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(errOut, "failed to encode configuration: %v\n", err)
			return
		}
		fmt.Fprintf(out, "---\n%s", data)
	}, func(err error) {
		fmt.Fprintf(errOut, "ignoring invalid configuration: %v\n", err)
	})

	<-ctx.Done()
	return nil
}
