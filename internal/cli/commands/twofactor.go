package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewTwoFactorCmd creates the 2fa command group
func NewTwoFactorCmd(opts ...Option) *cobra.Command {
	return newTwoFactorCmd(termPrompter{}, opts...)
}

func newTwoFactorCmd(p prompter, opts ...Option) *cobra.Command {
	e := newEnv(opts)

	cmd := &cobra.Command{
		Use:               "2fa",
		Short:             "Manage two-factor authentication",
		PersistentPreRunE: e.requireLogin(),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether 2FA is enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			status, err := d.api.TwoFactorStatus(commandContext(cmd))
			if err != nil {
				return err
			}
			switch {
			case status.Enabled:
				fmt.Fprintln(d.out, "Two-factor authentication is enabled.")
			case status.HasSecret:
				fmt.Fprintln(d.out, "Two-factor authentication is set up but not enabled.")
				fmt.Fprintln(d.out, "Run 'morningai 2fa enable' with a code from your authenticator.")
			default:
				fmt.Fprintln(d.out, "Two-factor authentication is disabled.")
				fmt.Fprintln(d.out, "Run 'morningai 2fa setup' to get started.")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "setup",
		Short: "Create a TOTP secret for your authenticator app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			setup, err := d.api.SetupTwoFactor(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("failed to set up 2FA: %w", err)
			}
			fmt.Fprintln(d.out, setup.Message)
			fmt.Fprintf(d.out, "\n  Secret: %s\n  URI:    %s\n\n", setup.Secret, setup.URI)
			fmt.Fprintln(d.out, "Then run 'morningai 2fa enable'.")
			return nil
		},
	})

	for _, verb := range []string{"enable", "disable"} {
		var otp string
		sub := &cobra.Command{
			Use:   verb,
			Short: verb + " 2FA with a code from your authenticator",
			Args:  cobra.NoArgs,
		}
		sub.RunE = func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			code := otp
			if code == "" {
				if !p.Interactive() {
					return fmt.Errorf("a code is required in non-interactive mode (use --otp)")
				}
				if code, err = p.Line("Authenticator code: "); err != nil {
					return fmt.Errorf("failed to read code: %w", err)
				}
			}

			ctx := commandContext(cmd)
			if sub.Name() == "enable" {
				_, err = d.api.EnableTwoFactor(ctx, code)
			} else {
				_, err = d.api.DisableTwoFactor(ctx, code)
			}
			if err != nil {
				return fmt.Errorf("failed to %s 2FA: %w", sub.Name(), err)
			}
			fmt.Fprintf(d.out, "✓ Two-factor authentication %sd\n", sub.Name())
			return nil
		}
		sub.Flags().StringVar(&otp, "otp", "", "Six-digit code")
		cmd.AddCommand(sub)
	}

	return cmd
}
