package envcheck

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// ExitError carries a process exit code out of a command
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("env check failed (exit %d)", e.Code)
}

// Options select where the variable list and the values come from
type Options struct {
	Required     []string
	SpecFile     string
	MatrixFile   string
	App          string
	EnvFile      string
	GitHubOutput bool
}

// NewCommand builds the env check command; use is its cobra Use string
func NewCommand(use string) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   use,
		Short: "Verify required environment variables are set",
		Long: `Verify required environment variables are set.

The variable list comes from, in order of precedence: --required, --spec
(YAML or JSON with required/optional/description), --matrix with --app (CSV,
first column the variable, one column per app), or the built-in default list.

Values are read from the process environment, then from --env-file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.EnvFile, _ = cmd.Flags().GetString("env-file")
			envFileSet := cmd.Flags().Changed("env-file")
			return Run(opts, envFileSet, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringSliceVar(&opts.Required, "required", nil, "Comma-separated variables to require")
	cmd.Flags().StringVar(&opts.SpecFile, "spec", "", "YAML or JSON spec file")
	cmd.Flags().StringVar(&opts.MatrixFile, "matrix", "", "CSV env matrix")
	cmd.Flags().StringVar(&opts.App, "app", "", "App column to use from --matrix")
	cmd.Flags().String("env-file", ".env", "dotenv file to read values from")
	cmd.Flags().BoolVar(&opts.GitHubOutput, "github-output", false, "Also print a missing-vars= line for GitHub Actions")

	return cmd
}

// Run resolves the variable list, checks it and prints the report. A missing
// required variable yields *ExitError{Code: 1}.
func Run(opts Options, envFileExplicit bool, stdout, stderr io.Writer) error {
	spec, err := resolveSpec(opts)
	if err != nil {
		return err
	}

	fileVars := map[string]string{}
	if opts.EnvFile != "" {
		vars, err := ReadEnvFile(opts.EnvFile)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, fs.ErrNotExist) && !envFileExplicit:
			// The default .env is optional
		default:
			return err
		}
	}

	if opts.App != "" {
		fmt.Fprintf(stdout, "Checking environment for app: %s\n", opts.App)
	}
	if spec.Description != "" {
		fmt.Fprintf(stdout, "Description: %s\n", spec.Description)
	}

	report := Check(*spec, Environ(fileVars))

	if !report.OK() {
		lines := make([]string, len(report.MissingRequired))
		for i, key := range report.MissingRequired {
			lines[i] = "- " + key
		}
		fmt.Fprintf(stderr, "Missing required environment variables:\n%s\n", strings.Join(lines, "\n"))
		if opts.GitHubOutput {
			fmt.Fprintln(stdout, report.GitHubOutput())
		}
		return &ExitError{Code: 1}
	}

	for _, warning := range report.Warnings {
		fmt.Fprintf(stderr, "⚠ %s\n", warning)
	}
	for _, key := range report.MissingOptional {
		fmt.Fprintf(stderr, "⚠ optional %s is not set\n", key)
	}

	fmt.Fprintln(stdout, "Env check passed.")
	if opts.GitHubOutput {
		fmt.Fprintln(stdout, report.GitHubOutput())
	}
	return nil
}

func resolveSpec(opts Options) (*Spec, error) {
	switch {
	case len(opts.Required) > 0:
		required := make([]string, 0, len(opts.Required))
		for _, key := range opts.Required {
			if key = strings.TrimSpace(key); key != "" {
				required = append(required, key)
			}
		}
		return &Spec{Required: required}, nil
	case opts.SpecFile != "":
		return LoadSpecFile(opts.SpecFile)
	case opts.MatrixFile != "":
		if opts.App == "" {
			return nil, fmt.Errorf("--matrix needs --app to pick a column")
		}
		f, err := os.Open(opts.MatrixFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open matrix: %w", err)
		}
		defer f.Close()
		return LoadMatrix(f, opts.App)
	default:
		return &Spec{Required: DefaultRequired}, nil
	}
}
