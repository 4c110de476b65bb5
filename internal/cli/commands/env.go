package commands

import (
	"github.com/spf13/cobra"

	"github.com/morningai/morningai/internal/envcheck"
)

// NewEnvCmd creates the env command group. It needs no server or login.
func NewEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Deployment environment tools",
	}
	cmd.AddCommand(envcheck.NewCommand("check"))
	return cmd
}
