package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/aida/ai/observability/logging"
	"github.com/hrygo/aida/internal/profile"
	"github.com/hrygo/aida/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "aida",
	Short: "A voice assistant that remembers, keeps your todo list and calls tools for you.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Under systemd the environment comes from the unit file.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		logging.Setup(logging.Options{
			Mode:  viper.GetString("mode"),
			Level: logging.ParseLevel(viper.GetString("log-level")),
		})
		return nil
	},
	SilenceUsage: true,
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)
	viper.SetDefault("log-level", "info")

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of the assistant, "prod" or "dev"`)
	flags.String("addr", "", "address the API server binds to")
	flags.Int("port", 28090, "port of the API server")
	flags.String("data", "", "data directory, defaults to ~/.local/share/aida")
	flags.String("driver", "sqlite", "database driver (sqlite, postgres)")
	flags.String("dsn", "", "database source name, derived from --data for sqlite")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	for _, key := range []string{"mode", "addr", "port", "data", "driver", "dsn", "log-level"} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("aida")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, chatCmd, reindexCmd, versionCmd)
}

// loadProfile merges flags, AIDA_* variables and defaults into a validated profile.
func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:   viper.GetString("mode"),
		Addr:   viper.GetString("addr"),
		Port:   viper.GetInt("port"),
		Data:   viper.GetString("data"),
		Driver: viper.GetString("driver"),
		DSN:    viper.GetString("dsn"),
	}
	p.Version = version.GetCurrentVersion(p.Mode)
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("aida", version.String())
	},
}

// isRunningAsSystemdService detects variables systemd sets for its services.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
