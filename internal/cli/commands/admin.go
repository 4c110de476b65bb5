package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/morningai/morningai/internal/cli/client"
)

// NewBlacklistCmd creates the blacklist command group (admin only)
func NewBlacklistCmd(opts ...Option) *cobra.Command {
	var page, perPage int
	e := newEnv(opts)

	cmd := &cobra.Command{
		Use:               "blacklist",
		Short:             "Inspect revoked tokens (admin only)",
		PersistentPreRunE: e.requireLogin(),
	}

	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List revoked tokens that have not expired yet",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			result, err := d.api.ListBlacklist(commandContext(cmd), page, perPage)
			if err != nil {
				return err
			}
			if len(result.Blacklist) == 0 {
				fmt.Fprintln(d.out, "No revoked tokens.")
				return nil
			}

			w := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "JTI\tUSER\tREASON\tREVOKED AT\tEXPIRES AT")
			fmt.Fprintln(w, "───\t────\t──────\t──────────\t──────────")
			for _, entry := range result.Blacklist {
				user := entry.Username
				if user == "" {
					user = entry.UserID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", entry.JTI, user, entry.Reason,
					entry.BlacklistedAt.Local().Format(time.DateTime), entry.ExpiresAt.Local().Format(time.DateTime))
			}
			w.Flush()
			fmt.Fprintf(d.out, "\nPage %d of %d (%d total)\n", result.CurrentPage, max(result.Pages, 1), result.Total)
			return nil
		},
	}
	ls.Flags().IntVar(&page, "page", 1, "Page number")
	ls.Flags().IntVar(&perPage, "per-page", 20, "Entries per page (max 100)")
	cmd.AddCommand(ls)

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Purge expired entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			result, err := d.api.CleanupBlacklist(commandContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(d.out, "✓ %s (%d removed)\n", result.Message, result.CleanedCount)
			return nil
		},
	})

	return cmd
}

// NewAuditCmd creates the audit command group. Everything except mine is admin only.
func NewAuditCmd(opts ...Option) *cobra.Command {
	var filter client.AuditFilter
	e := newEnv(opts)

	cmd := &cobra.Command{
		Use:               "audit",
		Short:             "Read the audit log",
		PersistentPreRunE: e.requireLogin(),
	}

	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List audit log entries, newest first (admin only)",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			result, err := d.api.ListAuditLogs(commandContext(cmd), filter)
			if err != nil {
				return err
			}
			printAuditPage(d, result)
			return nil
		},
	}
	ls.Flags().StringVar(&filter.Action, "action", "", "Filter by action, e.g. login")
	ls.Flags().StringVar(&filter.UserID, "user", "", "Filter by user ID")
	ls.Flags().StringVar(&filter.Status, "status", "", "Filter by status: success, failed or error")
	ls.Flags().StringVar(&filter.StartDate, "since", "", "Earliest entry, RFC3339 or YYYY-MM-DD")
	ls.Flags().StringVar(&filter.EndDate, "until", "", "Latest entry, RFC3339 or YYYY-MM-DD")
	ls.Flags().IntVar(&filter.Page, "page", 1, "Page number")
	ls.Flags().IntVar(&filter.PerPage, "per-page", 20, "Entries per page (max 100)")
	cmd.AddCommand(ls)

	var mineAction string
	var minePage, minePerPage int
	mine := &cobra.Command{
		Use:   "mine",
		Short: "List your own audit log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			result, err := d.api.MyAuditLogs(commandContext(cmd), mineAction, minePage, minePerPage)
			if err != nil {
				return err
			}
			printAuditPage(d, result)
			return nil
		},
	}
	mine.Flags().StringVar(&mineAction, "action", "", "Filter by action, e.g. login")
	mine.Flags().IntVar(&minePage, "page", 1, "Page number")
	mine.Flags().IntVar(&minePerPage, "per-page", 20, "Entries per page (max 100)")
	cmd.AddCommand(mine)

	var statsDays int
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Summarize recent audit activity (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			result, err := d.api.AuditStats(commandContext(cmd), statsDays)
			if err != nil {
				return err
			}

			fmt.Fprintf(d.out, "Last %d days\n", result.PeriodDays)
			fmt.Fprintf(d.out, "  Entries:      %d\n", result.TotalLogs)
			fmt.Fprintf(d.out, "  Failed:       %d\n", result.FailedLogs)
			fmt.Fprintf(d.out, "  Success rate: %.2f%%\n", result.SuccessRate)
			fmt.Fprintf(d.out, "  Active users: %d\n", result.ActiveUsers)
			if len(result.ActionStats) > 0 {
				fmt.Fprintln(d.out)
				w := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ACTION\tCOUNT")
				for _, a := range result.ActionStats {
					fmt.Fprintf(w, "%s\t%d\n", a.Action, a.Count)
				}
				w.Flush()
			}
			return nil
		},
	}
	stats.Flags().IntVar(&statsDays, "days", 7, "Window in days (1-365)")
	cmd.AddCommand(stats)

	var retention int
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete entries older than the retention window (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			result, err := d.api.CleanupAuditLogs(commandContext(cmd), retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(d.out, "✓ %s (%d removed, kept %d days)\n", result.Message, result.CleanedCount, result.RetentionDays)
			return nil
		},
	}
	cleanup.Flags().IntVar(&retention, "days", 90, "Keep entries newer than this many days (at least 30)")
	cmd.AddCommand(cleanup)

	var export client.ExportAuditLogsRequest
	var outPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export up to 10000 entries as JSON or CSV (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			result, err := d.api.ExportAuditLogs(commandContext(cmd), export)
			if err != nil {
				return err
			}

			var data []byte
			if result.Format == "csv" {
				data = []byte(result.Content)
			} else if data, err = json.MarshalIndent(result.Logs, "", "  "); err != nil {
				return fmt.Errorf("failed to encode export: %w", err)
			}

			if outPath == "" {
				d.out.Write(data)
				if len(data) > 0 && data[len(data)-1] != '\n' {
					fmt.Fprintln(d.out)
				}
				return nil
			}
			if err := os.WriteFile(outPath, data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			fmt.Fprintf(d.out, "✓ Exported %d entries to %s\n", result.Count, outPath)
			return nil
		},
	}
	exportCmd.Flags().StringVar(&export.Format, "format", "json", "Output format: json or csv")
	exportCmd.Flags().StringVar(&export.StartDate, "since", "", "Earliest entry, RFC3339 or YYYY-MM-DD")
	exportCmd.Flags().StringVar(&export.EndDate, "until", "", "Latest entry, RFC3339 or YYYY-MM-DD")
	exportCmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to a file instead of stdout")
	cmd.AddCommand(exportCmd)

	return cmd
}

func printAuditPage(d *deps, result *client.AuditPage) {
	if len(result.Logs) == 0 {
		fmt.Fprintln(d.out, "No audit log entries.")
		return
	}

	w := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tSTATUS\tUSER\tIP\tDEVICE\tDETAILS")
	fmt.Fprintln(w, "────\t──────\t──────\t────\t──\t──────\t───────")
	for _, entry := range result.Logs {
		user := "-"
		if entry.UserID != nil {
			user = *entry.UserID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			entry.CreatedAt.Local().Format(time.DateTime), entry.Action, entry.Status,
			user, entry.IPAddress, entry.Device, entry.Details)
	}
	w.Flush()
	fmt.Fprintf(d.out, "\nPage %d of %d (%d total)\n", result.CurrentPage, max(result.Pages, 1), result.Total)
}
