package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morningai/morningai/internal/cli/client"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd(opts ...Option) *cobra.Command {
	return newRegisterCmd(termPrompter{}, opts...)
}

func newRegisterCmd(p prompter, opts ...Option) *cobra.Command {
	var username, email, password string
	e := newEnv(opts)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account (the first account becomes an admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}

			if password == "" {
				if !p.Interactive() {
					return fmt.Errorf("password is required in non-interactive mode (use --password)")
				}
				if password, err = p.Secret("Password: "); err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
			}

			resp, err := d.api.Register(commandContext(cmd), client.RegisterRequest{
				Username: username,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}

			fmt.Fprintf(d.out, "✓ %s\n", resp.Message)
			fmt.Fprintf(d.out, "  User: %s (%s), role %s\n", resp.User.Username, resp.User.Email, resp.User.Role)
			fmt.Fprintln(d.out, "\nRun 'morningai login' to sign in")
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username (3-50 characters)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (will prompt if not provided)")
	return cmd
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(opts ...Option) *cobra.Command {
	e := newEnv(opts)

	return &cobra.Command{
		Use:     "whoami",
		Short:   "Show the logged-in user",
		PreRunE: e.requireLogin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}

			s := d.session.Current()
			if s == nil {
				return fmt.Errorf("not logged in")
			}
			twoFactor := "off"
			if s.TwoFactorEnabled {
				twoFactor = "on"
			}

			fmt.Fprintf(d.out, "%s <%s>\n", s.DisplayName, s.Email)
			fmt.Fprintf(d.out, "  ID:   %s\n", s.UserID)
			fmt.Fprintf(d.out, "  Role: %s\n", s.Role)
			fmt.Fprintf(d.out, "  2FA:  %s\n", twoFactor)
			if d.server != nil {
				fmt.Fprintf(d.out, "  Server: %s (%s)\n", d.server.Alias, d.server.URL)
			}
			return nil
		},
	}
}

// NewProfileCmd creates the profile command
func NewProfileCmd(opts ...Option) *cobra.Command {
	return newProfileCmd(termPrompter{}, opts...)
}

func newProfileCmd(p prompter, opts ...Option) *cobra.Command {
	var email string
	var changePassword bool
	e := newEnv(opts)

	cmd := &cobra.Command{
		Use:     "profile",
		Short:   "Change your email or password",
		PreRunE: e.requireLogin(),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}

			var req client.UpdateProfileRequest
			if email != "" {
				req.Email = &email
			}
			if changePassword {
				password, err := p.Secret("New password: ")
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				confirm, err := p.Secret("Confirm password: ")
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				if password != confirm {
					return fmt.Errorf("passwords do not match")
				}
				req.Password = &password
			}
			if req.Email == nil && req.Password == nil {
				return fmt.Errorf("nothing to change (use --email and/or --password)")
			}

			user, err := d.api.UpdateProfile(commandContext(cmd), req)
			if err != nil {
				return fmt.Errorf("failed to update profile: %w", err)
			}

			fmt.Fprintln(d.out, "✓ Profile updated")
			if req.Email != nil && !user.IsEmailVerified {
				fmt.Fprintf(d.out, "  %s must be verified again\n", user.Email)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "New email address")
	cmd.Flags().BoolVar(&changePassword, "password", false, "Prompt for a new password")
	return cmd
}

// NewHealthCmd creates the health command
func NewHealthCmd(opts ...Option) *cobra.Command {
	e := newEnv(opts)

	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}

			health, err := d.api.Health(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("server is not healthy: %w", err)
			}

			fmt.Fprintf(d.out, "%s %s (version %s) at %s\n",
				health.Service, health.Status, health.Version, health.Timestamp.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}
