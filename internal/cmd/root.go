package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/Iron-Ham/magicbus/internal/cmd/config"
	"github.com/Iron-Ham/magicbus/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "magicbus",
	Short: "In-process publish/subscribe bus routed by type hierarchy",
	Long: `Magicbus delivers each posted message to every mailbox subscribed to the
message's type or to any interface it implements, most general
subscriptions first. Messages nobody subscribed to come back as returned
messages instead of disappearing.

The CLI exercises the bus with a synthetic workload and manages the
configuration it reads.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/magicbus/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	configcmd.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/magicbus")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MAGICBUS")
	// Replace dots with underscores for nested keys in env vars
	// e.g., MAGICBUS_BENCH_PUBLISHERS for bench.publishers
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
