package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewEmailCmd creates the email verification command group
func NewEmailCmd(opts ...Option) *cobra.Command {
	e := newEnv(opts)

	cmd := &cobra.Command{
		Use:   "email",
		Short: "Verify your email address",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "status",
		Short:   "Show whether your email is verified",
		Args:    cobra.NoArgs,
		PreRunE: e.requireLogin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			status, err := d.api.EmailStatus(commandContext(cmd))
			if err != nil {
				return err
			}
			if status.IsVerified {
				fmt.Fprintf(d.out, "%s is verified.\n", status.Email)
				return nil
			}
			fmt.Fprintf(d.out, "%s is not verified.\n", status.Email)
			fmt.Fprintln(d.out, "Run 'morningai email send' to get a verification link.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "send",
		Short:   "Email yourself a verification link",
		Args:    cobra.NoArgs,
		PreRunE: e.requireLogin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			sent, err := d.api.SendVerificationEmail(commandContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(d.out, "✓ %s\n", sent.Message)
			if !sent.ExpiresAt.IsZero() {
				fmt.Fprintf(d.out, "  The link expires at %s\n", sent.ExpiresAt.Local().Format(time.DateTime))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify <token>",
		Short: "Confirm your email with the token from the link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			resp, err := d.api.VerifyEmail(commandContext(cmd), args[0])
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			fmt.Fprintf(d.out, "✓ %s\n", resp.Message)
			return nil
		},
	})

	return cmd
}
