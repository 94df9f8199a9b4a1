package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/despachantemarcelino/hookd/internal/config"
	"github.com/despachantemarcelino/hookd/internal/database"
	"github.com/despachantemarcelino/hookd/internal/database/migrations"
	"github.com/despachantemarcelino/hookd/internal/deliveries"
)

var (
	journalEvent  string
	journalLimit  int
	journalFormat string
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Delivery journal utilities",
	Long: `Inspect and maintain the SQLite journal of accepted deliveries.

Examples:
  hookd journal list --event lead     Show recent lead deliveries
  hookd journal dump out.yaml         Export deliveries to a file
  hookd journal prune                 Delete deliveries past retention
  hookd journal migrations            Show applied schema migrations`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent deliveries",
	RunE:  runJournalList,
}

var journalDumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Dump deliveries to file",
	Long: `Export journaled deliveries to a JSON or YAML file.

Use the --format flag to specify output format (default: taken from the
file extension, json otherwise).`,
	Args: cobra.ExactArgs(1),
	RunE: runJournalDump,
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete deliveries older than journal.retention",
	RunE:  runJournalPrune,
}

var journalMigrationsCmd = &cobra.Command{
	Use:   "migrations",
	Short: "Show applied journal migrations",
	RunE:  runJournalMigrations,
}

func init() {
	journalListCmd.Flags().StringVarP(&journalEvent, "event", "e", "", "Only show deliveries with this event tag")
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "n", deliveries.DefaultListLimit, "Maximum number of deliveries")

	journalDumpCmd.Flags().StringVarP(&journalEvent, "event", "e", "", "Only export deliveries with this event tag")
	journalDumpCmd.Flags().IntVarP(&journalLimit, "limit", "n", deliveries.MaxListLimit, "Maximum number of deliveries")
	journalDumpCmd.Flags().StringVarP(&journalFormat, "format", "f", "", "Output format (json, yaml)")

	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalDumpCmd)
	journalCmd.AddCommand(journalPruneCmd)
	journalCmd.AddCommand(journalMigrationsCmd)

	rootCmd.AddCommand(journalCmd)
}

func openJournal() (*config.Config, *database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Journal.Enabled {
		return nil, nil, fmt.Errorf("journal is disabled (journal.enabled=false)")
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, db, nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	_, db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := deliveries.NewStore(db).List(cmd.Context(), deliveries.ListOptions{
		Event: journalEvent,
		Limit: journalLimit,
	})
	if err != nil {
		return err
	}

	return writeRecordTable(cmd.OutOrStdout(), records)
}

// newTable returns a borderless, left-aligned table.
func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetAutoWrapText(false)
	table.SetColumnSeparator(" ")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func writeRecordTable(out io.Writer, records []*deliveries.Record) error {
	table := newTable(out, "ID", "Event", "Known", "Remote", "Received")
	for _, r := range records {
		event := r.Event
		if event == "" {
			event = "-"
		}
		table.Append([]string{
			r.ID,
			event,
			strconv.FormatBool(r.Known),
			r.RemoteAddr,
			r.ReceivedAt.Format(time.RFC3339),
		})
	}
	table.Render()
	return nil
}

func runJournalDump(cmd *cobra.Command, args []string) error {
	outFile := args[0]

	_, db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := deliveries.NewStore(db).List(cmd.Context(), deliveries.ListOptions{
		Event: journalEvent,
		Limit: journalLimit,
	})
	if err != nil {
		return err
	}

	data, err := encodeRecords(records, dumpFormat(outFile, journalFormat))
	if err != nil {
		return err
	}

	if err := os.WriteFile(outFile, data, 0o600); err != nil {
		return fmt.Errorf("writing dump file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d deliveries to %s\n", len(records), outFile)
	return nil
}

func dumpFormat(path, flag string) string {
	if flag != "" {
		return strings.ToLower(flag)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func encodeRecords(records []*deliveries.Record, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding JSON: %w", err)
		}
		return data, nil
	case "yaml":
		// Round-trip through JSON so the raw payloads come out as YAML
		// mappings instead of byte sequences.
		raw, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("encoding JSON: %w", err)
		}
		var generic []any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, fmt.Errorf("decoding JSON: %w", err)
		}
		data, err := yaml.Marshal(generic)
		if err != nil {
			return nil, fmt.Errorf("encoding YAML: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported format %q (use json or yaml)", format)
	}
}

func runJournalPrune(cmd *cobra.Command, args []string) error {
	cfg, db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	sweeper, err := deliveries.NewSweeper(deliveries.NewStore(db), cfg.Journal.Retention, cfg.Journal.CleanupSchedule)
	if err != nil {
		return err
	}

	n, err := sweeper.RunOnce(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d deliveries older than %s\n", n, cfg.Journal.Retention)
	return nil
}

func runJournalMigrations(cmd *cobra.Command, args []string) error {
	_, db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	return writeMigrations(cmd.Context(), cmd.OutOrStdout(), db)
}

func writeMigrations(ctx context.Context, out io.Writer, db *database.DB) error {
	applied, err := migrations.GetApplied(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	table := newTable(out, "Migration", "Applied")
	for _, m := range applied {
		table.Append([]string{m.ID, m.AppliedAt.Format(time.RFC3339)})
	}
	table.Render()
	return nil
}
