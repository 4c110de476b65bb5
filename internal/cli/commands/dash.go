package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/morningai/morningai/internal/cli/client"
)

// NewDashCmd creates the dash command
func NewDashCmd(opts ...Option) *cobra.Command {
	var interval time.Duration
	var once bool
	e := newEnv(opts)

	cmd := &cobra.Command{
		Use:     "dash",
		Short:   "Live system metrics and pending approvals",
		PreRunE: e.requireLogin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}

			render := func(ctx context.Context) error {
				m, err := d.api.SystemMetrics(ctx)
				if err != nil {
					return fmt.Errorf("failed to load metrics: %w", err)
				}
				renderMetrics(d.out, m)
				return nil
			}

			if once {
				return render(commandContext(cmd))
			}

			ctx, stop := d.screenContext(commandContext(cmd))
			defer stop()
			return pollScreen(ctx, interval, render)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Refresh interval")
	cmd.Flags().BoolVar(&once, "once", false, "Print the metrics once and exit")
	return cmd
}

func renderMetrics(out io.Writer, m *client.SystemMetrics) {
	fmt.Fprintf(out, "\nMorning AI %s  (up %s)  %s\n\n",
		m.Version, formatUptime(m.UptimeSeconds), m.Timestamp.Local().Format("15:04:05"))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "CPU\t%.1f%%\t(%d cores, load %.2f %.2f %.2f)\n", m.CPUUsage, m.CPUCount, m.Load1, m.Load5, m.Load15)
	fmt.Fprintf(w, "Memory\t%.1f%%\t(%.1f / %.1f GB)\n", m.MemoryUsage, m.MemoryUsedGB, m.MemoryTotalGB)
	fmt.Fprintf(w, "Disk\t%.1f%%\t(%.1f GB total)\n", m.DiskUsedPercent, m.DiskTotalGB)
	fmt.Fprintf(w, "Response time\t%.0f ms\t\n", m.ResponseTimeMs)
	fmt.Fprintf(w, "Error rate\t%.2f%%\t\n", m.ErrorRate*100)
	fmt.Fprintf(w, "Pending approvals\t%d\t\n", m.PendingApprovals)
	w.Flush()
}

func formatUptime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d >= 24*time.Hour {
		days := d / (24 * time.Hour)
		return fmt.Sprintf("%dd%s", days, (d % (24 * time.Hour)).Truncate(time.Minute))
	}
	return d.Truncate(time.Second).String()
}
