package cmd

import (
	"context"
	"fmt"

	"github.com/luxfi/cleanvault/pkg/application"
	"github.com/luxfi/cleanvault/pkg/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information (set by ldflags)
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Execute runs the root command
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// NewRootCmd creates the root command. Running it without a subcommand
// performs a full sweep.
func NewRootCmd() *cobra.Command {
	var configFile string

	app := application.New()
	config := viper.New()

	rootCmd := &cobra.Command{
		Use:   "cleanvault",
		Short: "Sweep tokens from keystore accounts into a master account",
		Long: `Finds keystore files whose address holds a token balance, tops each one up
with native currency from the master account to pay for gas, and then sends
every token balance back to the master address.

Results are written to ADDRESSES_WITH_TOKENS.json, FAILED_ACCOUNTS.json,
PAID_ACCOUNTS_ETHER.json and PAID_ACCOUNTS_TOKEN.json.`,
		Version:       fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(config, configFile); err != nil {
				return err
			}
			logger, err := application.NewLogger("cleanvault", cmd.ErrOrStderr(), config.GetString(settings.KeyLogLevel))
			if err != nil {
				return err
			}
			app.Setup(logger, config)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, app)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./cleanvault.yaml)")
	rootCmd.PersistentFlags().String("output-dir", ".", "directory for result snapshots")
	rootCmd.PersistentFlags().String("rpc-url", "", "chain node RPC endpoint")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cobra.CheckErr(config.BindPFlag(settings.KeyOutputDir, rootCmd.PersistentFlags().Lookup("output-dir")))
	cobra.CheckErr(config.BindPFlag(settings.KeyRPCURL, rootCmd.PersistentFlags().Lookup("rpc-url")))
	cobra.CheckErr(config.BindPFlag(settings.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level")))

	rootCmd.AddCommand(NewInspectCmd(app))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

func initConfig(v *viper.Viper, configFile string) error {
	settings.Configure(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("cleanvault")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && configFile == "" {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("cleanvault v%s\n", Version)
			cmd.Printf("Build Time: %s\n", BuildTime)
			cmd.Printf("Git Commit: %s\n", GitCommit)
		},
	}
}
