package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "earthframe",
		Short: "Authentication and API-token service for the EarthFrame platform",
		Long: `EarthFrame auth service: dual authentication for the simulation-metadata API.

Humans sign in through the browser OAuth flow and carry a session cookie;
HPC ingestion jobs and automation bots authenticate with long-lived API
tokens issued here. This binary runs the HTTP service and manages tokens
and service accounts from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./earthframe.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the SQLite store (default: ~/.earthframe)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newAccountCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("earthframe")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.earthframe")
	}

	viper.SetEnvPrefix("EARTHFRAME")
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
