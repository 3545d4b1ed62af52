package status

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sidkik/vaultsync/cmd/util"
	"github.com/sidkik/vaultsync/pkg/config"
	"github.com/sidkik/vaultsync/pkg/errors"
	"github.com/sidkik/vaultsync/pkg/status"
)

// Mocked out for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `status` command.
func New() *cobra.Command {
	var printJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the outcome of the last sync",
		Long: "Print the status record written at the end of the last sync.\n" +
			"Runs that were skipped because another sync was running don't " +
			"update the record.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			configPath, _ := cmd.Flags().GetString("config")
			if err := run(configPath, printJSON); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&printJSON, "json", false, "Print the raw status record")
	return cmd
}

func run(configPath string, printJSON bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.WithContext(err, "load config")
	}

	rec, err := status.Read(cfg.StatusFile)
	if err != nil {
		if _, ok := errors.RootCause(err).(errors.FileNotFound); ok {
			return errors.NewFriendlyError(
				"No sync has finished yet. The status is written to %s at the end of every sync.",
				cfg.StatusFile)
		}
		return errors.WithContext(err, "read status")
	}

	if printJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	printRecord(rec)
	return nil
}

func printRecord(rec status.Record) {
	result := "success"
	if !rec.Success {
		result = "failed"
	}
	if rec.DryRun {
		result += " (dry run)"
	}

	rows := [][]string{
		{"Last run", rec.LastRun.Format(time.RFC3339)},
		{"Result", result},
		{"Mode", rec.Mode},
		{"Inbox downloaded", strconv.Itoa(rec.InboxDownloaded)},
		{"Receipts uploaded", strconv.Itoa(rec.ReceiptsUploaded)},
		{"Summaries uploaded", strconv.Itoa(rec.SummariesUploaded)},
		{"Bookmarks uploaded", strconv.Itoa(rec.BookmarksUploaded)},
		{"Duration", fmt.Sprintf("%.3fs", rec.DurationSeconds)},
	}
	if rec.Error != nil {
		rows = append(rows, []string{"Error", *rec.Error})
	}
	if rec.RunID != "" {
		rows = append(rows, []string{"Run ID", rec.RunID})
	}

	table := tablewriter.NewWriter(stdout)
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}
