package commands

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morningai/morningai/internal/cli/config"
)

type initOptions struct {
	alias    string
	insecure bool
	out      io.Writer
}

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init <server-url>",
		Short: "Add a Morning AI server to ./morningai.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.out = cmd.OutOrStdout()
			return runInitWithOptions(args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.alias, "alias", "", "Name for this server (default server-N)")
	cmd.Flags().BoolVar(&opts.insecure, "insecure", false, "Accept a self-signed TLS certificate")
	return cmd
}

func runInitWithOptions(args []string, opts *initOptions) error {
	out := opts.out
	if out == nil {
		out = os.Stdout
	}

	serverURL, err := normalizeServerURL(args[0])
	if err != nil {
		return err
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Fprintf(out, "Found existing %s\n", config.ConfigFileName)
	} else {
		cfg = &config.Config{Servers: []config.Server{}}
		isNewConfig = true
	}

	alias := opts.alias
	if alias == "" {
		alias = fmt.Sprintf("server-%d", len(cfg.Servers)+1)
	}

	err = cfg.AddServer(config.Server{URL: serverURL, Alias: alias, Insecure: opts.insecure})
	switch {
	case errors.Is(err, config.ErrDuplicateURL):
		fmt.Fprintf(out, "Server %s already exists in %s\n", serverURL, config.ConfigFileName)
		return nil
	case errors.Is(err, config.ErrDuplicateAlias):
		return fmt.Errorf("alias '%s' is already used in %s", alias, config.ConfigFileName)
	case err != nil:
		return err
	}

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		fmt.Fprintf(out, "✓ Created ./%s with server %s (%s)\n", config.ConfigFileName, serverURL, alias)
	} else {
		fmt.Fprintf(out, "✓ Added server %s (%s) to ./%s\n", serverURL, alias, config.ConfigFileName)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'morningai register' if you do not have an account yet")
	fmt.Fprintln(out, "  2. Run 'morningai login' to authenticate")
	return nil
}

// normalizeServerURL accepts host[:port] or a full URL and returns scheme://host[:port][/path]
func normalizeServerURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("server URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("server URL must use http or https, got %q", u.Scheme)
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}
