package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/despachantemarcelino/hookd/internal/config"
)

var (
	cfgFile string
	verbose bool

	// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
	Version = "0.1.0-dev"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hookd",
	Short: "Webhook receiver for the Despachante Marcelino dashboard",
	Long: `hookd receives webhook deliveries from the chat widget, lead forms,
ads conversion export and payment gateway, authenticates them with a
shared secret and dispatches each event to its processor.

Start the server:
  hookd serve

Show the effective configuration:
  hookd config`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogging(os.Stderr, &cfg.Logging, verbose)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./hookd.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

func loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFile: cfgFile}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(loadOptions())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// setupLogging configures the global zerolog logger.
func setupLogging(out io.Writer, cfg *config.LoggingConfig, verbose bool) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}
