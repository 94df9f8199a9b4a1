package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/despachantemarcelino/hookd/internal/config"
)

const redacted = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration hookd would run with, after merging defaults,
the config file and HOOKD_* environment variables. The webhook secret is
redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Settings(loadOptions())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return writeSettings(cmd.OutOrStdout(), settings)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func writeSettings(w io.Writer, settings map[string]any) error {
	if webhook, ok := settings["webhook"].(map[string]any); ok {
		if s, ok := webhook["secret"].(string); ok && s != "" {
			webhook["secret"] = redacted
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(printable(settings)); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// printable renders durations in their string form so the output can be fed
// back as a config file.
func printable(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = printable(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = printable(item)
		}
		return out
	case time.Duration:
		return val.String()
	default:
		return v
	}
}
