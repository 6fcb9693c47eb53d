package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/fabricctl/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "fabricctl",
	Short: "Build knowledge fabrics and follow their progress",
	Long: `fabricctl submits documents to the knowledge fabric backend and follows
the creation pipeline (extraction, chunking, embeddings, storage, training)
until the fabric is ready, showing live progress in the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/fabricctl/config.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("env_file", rootCmd.PersistentFlags().Lookup("env-file"))
}

// initErr is reported by commands that need configuration.
var initErr error

func initConfig() {
	initErr = nil

	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	// An explicitly named env file must exist; the default one is optional
	envFile := viper.GetString("env_file")
	required := rootCmd.PersistentFlags().Changed("env-file")
	if envFile != "" {
		if err := config.LoadEnvFile(envFile, required); err != nil {
			initErr = err
			return
		}
	}

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., FABRICCTL_API_BASE_URL for api.base_url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists; a named file that cannot be read is an error
	if err := viper.ReadInConfig(); err != nil && viper.GetString("config") != "" {
		initErr = err
	}
}

// loadConfig returns the effective configuration or the first error met
// while assembling it.
func loadConfig() (*config.Config, error) {
	if initErr != nil {
		return nil, initErr
	}
	return config.Load()
}
