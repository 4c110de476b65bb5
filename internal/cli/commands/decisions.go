package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/morningai/morningai/internal/cli/client"
)

// NewDecisionsCmd creates the decisions command group
func NewDecisionsCmd(opts ...Option) *cobra.Command {
	e := newEnv(opts)

	cmd := &cobra.Command{
		Use:               "decisions",
		Aliases:           []string{"decision"},
		Short:             "Review automated decisions",
		PersistentPreRunE: e.requireLogin(),
	}

	cmd.AddCommand(
		newDecisionsListCmd(e),
		newDecisionsGetCmd(e),
		newDecisionsCreateCmd(e),
		newDecisionReviewCmd(e, "approve"),
		newDecisionReviewCmd(e, "reject"),
		newDecisionsWatchCmd(e),
	)
	return cmd
}

func newDecisionsListCmd(e *env) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List decisions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}

			items, err := d.api.ListDecisions(commandContext(cmd), status)
			if err != nil {
				return err
			}

			if len(items) == 0 {
				fmt.Fprintln(d.out, "No decisions found.")
				return nil
			}
			renderDecisions(d.out, items, d.now(), d.now())
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter: pending, approved, rejected or auto_approved")
	return cmd
}

func newDecisionsGetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a decision in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}

			dec, err := d.api.GetDecision(commandContext(cmd), args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\t%s\n", dec.ID)
			fmt.Fprintf(w, "Strategy\t%s\n", dec.Strategy)
			if dec.StrategyDescription != "" {
				fmt.Fprintf(w, "Description\t%s\n", dec.StrategyDescription)
			}
			fmt.Fprintf(w, "Trigger\t%s = %g (threshold %g)\n", dec.TriggerType, dec.TriggerValue, dec.TriggerThreshold)
			fmt.Fprintf(w, "Predicted impact\t%s\n", dec.PredictedImpact)
			fmt.Fprintf(w, "Risk\t%s\n", dec.RiskAssessment)
			fmt.Fprintf(w, "Priority\t%s\n", dec.Priority)
			fmt.Fprintf(w, "Status\t%s\n", dec.Status)
			if dec.Status == "pending" {
				fmt.Fprintf(w, "Auto-approve\t%s\n", countdown(*dec, d.now(), d.now()))
			}
			if dec.ReviewedAt != nil {
				fmt.Fprintf(w, "Reviewed at\t%s\n", dec.ReviewedAt.Local().Format(time.RFC822))
			}
			if dec.ReviewComment != "" {
				fmt.Fprintf(w, "Comment\t%s\n", dec.ReviewComment)
			}
			return w.Flush()
		},
	}
}

func newDecisionsCreateCmd(e *env) *cobra.Command {
	var req client.CreateDecisionRequest
	var autoApprove time.Duration

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Propose a decision for review (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("auto-approve") {
				seconds := int(autoApprove / time.Second)
				req.AutoApproveSeconds = &seconds
			}

			dec, err := d.api.CreateDecision(commandContext(cmd), req)
			if err != nil {
				return fmt.Errorf("failed to create decision: %w", err)
			}

			fmt.Fprintf(d.out, "✓ Decision %s created (%s priority)\n", dec.ID, dec.Priority)
			if dec.AutoApproveAt != nil {
				fmt.Fprintf(d.out, "  Auto-approves at %s\n", dec.AutoApproveAt.Local().Format(time.RFC822))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Strategy, "strategy", "", "Strategy name")
	cmd.Flags().StringVar(&req.StrategyDescription, "description", "", "What the strategy does")
	cmd.Flags().StringVar(&req.TriggerType, "trigger", "", "Trigger metric, e.g. cpu_usage")
	cmd.Flags().Float64Var(&req.TriggerValue, "value", 0, "Observed trigger value")
	cmd.Flags().Float64Var(&req.TriggerThreshold, "threshold", 0, "Trigger threshold")
	cmd.Flags().StringVar(&req.PredictedImpact, "impact", "", "Predicted impact")
	cmd.Flags().StringVar(&req.RiskAssessment, "risk", "", "Risk assessment")
	cmd.Flags().StringVar(&req.Priority, "priority", "", "low, medium, high or critical")
	cmd.Flags().DurationVar(&autoApprove, "auto-approve", 0, "Auto-approve after this long (0 disables; default from server)")
	return cmd
}

func newDecisionReviewCmd(e *env, verb string) *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   verb + " <id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a pending decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			var dec *client.Decision
			if verb == "approve" {
				dec, err = d.api.ApproveDecision(ctx, args[0], comment)
			} else {
				dec, err = d.api.RejectDecision(ctx, args[0], comment)
			}
			if err != nil {
				return fmt.Errorf("failed to %s decision: %w", verb, err)
			}

			fmt.Fprintf(d.out, "✓ Decision %s %s: %s\n", dec.ID, dec.Status, dec.Strategy)
			return nil
		},
	}

	cmd.Flags().StringVarP(&comment, "comment", "m", "", "Review comment")
	return cmd
}

func newDecisionsWatchCmd(e *env) *cobra.Command {
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of pending decisions with auto-approve countdowns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}

			ctx, stop := d.screenContext(commandContext(cmd))
			defer stop()
			return watchDecisions(ctx, d, refresh, time.Second)
		},
	}

	cmd.Flags().DurationVar(&refresh, "refresh", 15*time.Second, "How often to re-fetch from the server")
	return cmd
}

// watchDecisions re-fetches every refresh and redraws countdowns every tick
func watchDecisions(ctx context.Context, d *deps, refresh, tick time.Duration) error {
	var (
		items     []client.Decision
		fetchedAt time.Time
	)
	fetch := func(ctx context.Context) error {
		list, err := d.api.ListDecisions(ctx, "pending")
		if err != nil {
			return err
		}
		items, fetchedAt = list, d.now()
		return nil
	}

	if err := fetch(ctx); err != nil {
		return err
	}
	renderPending(d.out, items, fetchedAt, d.now())

	refreshTicker := time.NewTicker(refresh)
	defer refreshTicker.Stop()
	redraw := time.NewTicker(tick)
	defer redraw.Stop()

	for {
		select {
		case <-ctx.Done():
			if cause := context.Cause(ctx); cause != nil && cause != context.Canceled {
				return cause
			}
			return nil
		case <-refreshTicker.C:
			if err := fetch(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				return err
			}
			renderPending(d.out, items, fetchedAt, d.now())
		case <-redraw.C:
			renderPending(d.out, items, fetchedAt, d.now())
		}
	}
}

func renderPending(out io.Writer, items []client.Decision, fetchedAt, now time.Time) {
	fmt.Fprintf(out, "\nPending decisions (%d) at %s\n", len(items), now.Local().Format("15:04:05"))
	if len(items) == 0 {
		fmt.Fprintln(out, "Nothing waiting for review.")
		return
	}
	renderDecisions(out, items, fetchedAt, now)
}

func renderDecisions(out io.Writer, items []client.Decision, fetchedAt, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTRATEGY\tTRIGGER\tPRIORITY\tSTATUS\tAUTO-APPROVE")
	fmt.Fprintln(w, "──\t────────\t───────\t────────\t──────\t────────────")
	for _, dec := range items {
		auto := "-"
		if dec.Status == "pending" {
			auto = countdown(dec, fetchedAt, now)
		}
		fmt.Fprintf(w, "%s\t%s\t%s %g/%g\t%s\t%s\t%s\n",
			dec.ID, dec.Strategy, dec.TriggerType, dec.TriggerValue, dec.TriggerThreshold,
			dec.Priority, dec.Status, auto)
	}
	w.Flush()
}

// countdown prefers the absolute deadline and falls back to the relative
// seconds reported at fetch time
func countdown(dec client.Decision, fetchedAt, now time.Time) string {
	var remaining time.Duration
	switch {
	case dec.AutoApproveAt != nil:
		remaining = dec.AutoApproveAt.Sub(now)
	case dec.AutoApproveInSeconds > 0:
		remaining = time.Duration(dec.AutoApproveInSeconds)*time.Second - now.Sub(fetchedAt)
	default:
		return "manual"
	}

	if remaining <= 0 {
		return "due"
	}
	remaining = remaining.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(remaining.Minutes()), int(remaining.Seconds())%60)
}
