package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/morningai/morningai/internal/cli/client"
	"github.com/morningai/morningai/internal/cli/userconfig"
	"github.com/morningai/morningai/internal/session"
)

// prompter reads secrets from the operator
type prompter interface {
	Secret(label string) (string, error)
	Line(label string) (string, error)
	Interactive() bool
}

// termPrompter prompts on the controlling terminal
type termPrompter struct{}

func (termPrompter) Interactive() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

func (termPrompter) Secret(label string) (string, error) {
	fmt.Print(label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // New line after hidden input
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (termPrompter) Line(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

type loginFlags struct {
	email    string
	password string
	otp      string
}

// NewLoginCmd creates the login command
func NewLoginCmd(opts ...Option) *cobra.Command {
	return newLoginCmd(termPrompter{}, opts...)
}

func newLoginCmd(p prompter, opts ...Option) *cobra.Command {
	var flags loginFlags
	e := newEnv(opts)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a Morning AI server",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			return runLogin(cmd, d, p, flags)
		},
	}

	cmd.Flags().StringVar(&flags.email, "email", "", "Email address (or set MORNINGAI_EMAIL; defaults to the last one used)")
	cmd.Flags().StringVar(&flags.password, "password", "", "Password (or set MORNINGAI_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&flags.otp, "otp", "", "Two-factor code, when enabled")

	return cmd
}

func runLogin(cmd *cobra.Command, d *deps, p prompter, flags loginFlags) error {
	// Check for environment variables (useful for CI/CD)
	if flags.email == "" {
		flags.email = os.Getenv("MORNINGAI_EMAIL")
	}
	if flags.password == "" {
		flags.password = os.Getenv("MORNINGAI_PASSWORD")
	}

	if flags.email == "" && d.server != nil {
		flags.email = userconfig.LastEmail(d.server.URL)
	}

	if flags.email == "" {
		return fmt.Errorf("email is required (use --email flag or MORNINGAI_EMAIL env var)")
	}

	if flags.password == "" {
		if !p.Interactive() {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or MORNINGAI_PASSWORD env var)")
		}
		password, err := p.Secret("Password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		flags.password = password
	}

	if d.server != nil {
		fmt.Fprintf(d.out, "Logging in to %s (%s)...\n", d.server.Alias, d.server.URL)
	}

	ctx := commandContext(cmd)
	creds := session.Credentials{Email: flags.email, Password: flags.password, OTP: flags.otp}
	result := d.session.Login(ctx, creds)

	if !result.Success && result.RequiresTwoFactor && creds.OTP == "" && p.Interactive() {
		otp, err := p.Line("Two-factor code: ")
		if err != nil {
			return fmt.Errorf("failed to read two-factor code: %w", err)
		}
		creds.OTP = otp
		result = d.session.Login(ctx, creds)
	}

	if !result.Success {
		if result.RequiresTwoFactor {
			return fmt.Errorf("login failed: %s (use --otp)", result.Message)
		}
		return fmt.Errorf("login failed: %s", result.Message)
	}

	if d.server != nil {
		// Only a convenience for the next login
		_ = userconfig.RememberEmail(d.server.URL, flags.email)
	}

	fmt.Fprintln(d.out, "✓ Login successful!")
	fmt.Fprintf(d.out, "  User: %s (%s)\n", result.Session.DisplayName, result.Session.Email)
	if result.Session.IsAdmin() {
		fmt.Fprintln(d.out, "  Role: Admin")
	}
	return nil
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd(opts ...Option) *cobra.Command {
	var all bool
	e := newEnv(opts)

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored token and forget it",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}

			if d.session.State() == session.LoggedOut {
				fmt.Fprintln(d.out, "Not logged in.")
				return nil
			}

			ctx := commandContext(cmd)
			if all {
				err = d.session.LogoutAll(ctx)
			} else {
				err = d.session.Logout(ctx)
			}
			if err != nil {
				// Local state is gone either way
				fmt.Fprintf(d.out, "⚠ Server did not confirm the logout: %v\n", err)
			}

			if all {
				fmt.Fprintln(d.out, "✓ Logged out from all devices")
			} else {
				fmt.Fprintln(d.out, "✓ Logged out")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Revoke every token issued to you, on all devices")
	return cmd
}

// NewRevokeTokenCmd creates the revoke-token command
func NewRevokeTokenCmd(opts ...Option) *cobra.Command {
	var reason string
	e := newEnv(opts)

	cmd := &cobra.Command{
		Use:     "revoke-token <token>",
		Short:   "Revoke a specific token (admins may revoke anyone's)",
		Args:    cobra.ExactArgs(1),
		PreRunE: e.requireLogin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			resp, err := d.api.RevokeToken(commandContext(cmd), client.RevokeTokenRequest{Token: args[0], Reason: reason})
			if err != nil {
				return fmt.Errorf("revoke failed: %w", err)
			}
			fmt.Fprintf(d.out, "✓ %s\n", resp.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the token is revoked (default manual_revoke)")
	return cmd
}
