package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/morningai/morningai/internal/cli/client"
)

// NewUsersCmd creates the users command group (admin only)
func NewUsersCmd(opts ...Option) *cobra.Command {
	e := newEnv(opts)

	cmd := &cobra.Command{
		Use:               "users",
		Short:             "Manage user accounts (admin only)",
		PersistentPreRunE: e.requireLogin(),
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List all users",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			users, err := d.api.ListUsers(commandContext(cmd))
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(d.out, "No users found.")
				return nil
			}
			renderUsers(d.out, users)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			user, err := d.api.GetUser(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			renderUsers(d.out, []client.User{*user})
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "role <id> <admin|user>",
		Short:     "Change a user's role",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"admin", "user"},
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			user, err := d.api.UpdateUserRole(commandContext(cmd), args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to update role: %w", err)
			}
			fmt.Fprintf(d.out, "✓ %s is now %s\n", user.Username, user.Role)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <id> <active|inactive>",
		Short: "Activate or deactivate a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var active bool
			switch args[1] {
			case "active", "activate", "enable":
				active = true
			case "inactive", "deactivate", "disable":
				active = false
			default:
				return fmt.Errorf("status must be 'active' or 'inactive', got %q", args[1])
			}

			d, err := e.get(cmd)
			if err != nil {
				return err
			}
			user, err := d.api.UpdateUserStatus(commandContext(cmd), args[0], active)
			if err != nil {
				return fmt.Errorf("failed to update status: %w", err)
			}
			fmt.Fprintf(d.out, "✓ %s is now %s\n", user.Username, activeLabel(user.IsActive))
			return nil
		},
	})

	return cmd
}

func renderUsers(out io.Writer, users []client.User) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE\tSTATUS\t2FA\tCREATED AT")
	fmt.Fprintln(w, "──\t────────\t─────\t────\t──────\t───\t──────────")
	for _, u := range users {
		twoFactor := "off"
		if u.TwoFactorEnabled {
			twoFactor = "on"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Username, u.Email, u.Role, activeLabel(u.IsActive), twoFactor,
			u.CreatedAt.Local().Format(time.DateTime))
	}
	w.Flush()
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
