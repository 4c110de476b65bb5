package serverselect

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/morningai/morningai/internal/cli/auth"
	"github.com/morningai/morningai/internal/cli/config"
	"github.com/morningai/morningai/internal/cli/userconfig"
)

// ResolveServer determines which server to use based on the following priority:
// 1. If serverAlias is provided, use that server
// 2. If user has a selected server in their local config, use that
// 3. If only one server in project config, use that
// 4. Otherwise, prompt user to select a server interactively
func ResolveServer(projectConfig *config.Config, serverAlias string) (*config.Server, error) {
	// Priority 1: Use server alias if provided
	if serverAlias != "" {
		return projectConfig.GetServerByURLOrAlias(serverAlias)
	}

	// Priority 2: Use selected server from user config
	selected, err := userconfig.GetSelectedServer()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	if selected != "" {
		server, err := projectConfig.GetServerByURL(selected)
		if err != nil {
			// Selected server no longer exists in project config, clear it and continue
			_ = userconfig.SetSelectedServer("")
		} else {
			return server, nil
		}
	}

	// Priority 3: If only one server, use it automatically
	if len(projectConfig.Servers) == 1 {
		server := &projectConfig.Servers[0]
		if err := userconfig.SetSelectedServer(server.URL); err != nil {
			// Don't fail if we can't save, just continue
			fmt.Printf("Warning: failed to save selected server: %v\n", err)
		}
		return server, nil
	}

	// Priority 4: Prompt user to select a server
	server, err := PromptServerSelection(projectConfig)
	if err != nil {
		return nil, err
	}

	if err := userconfig.SetSelectedServer(server.URL); err != nil {
		fmt.Printf("Warning: failed to save selected server: %v\n", err)
	}

	return server, nil
}

// serverOption is one row of the selection prompt
type serverOption struct {
	Label  string
	Status string
	Email  string
	Server *config.Server
}

// buildOptions labels each server with whether a token is stored for it
func buildOptions(projectConfig *config.Config, hasToken func(serverURL string) bool) []serverOption {
	options := make([]serverOption, len(projectConfig.Servers))
	for i := range projectConfig.Servers {
		server := &projectConfig.Servers[i]
		status := "not logged in"
		if hasToken(server.URL) {
			status = "logged in"
		}
		options[i] = serverOption{
			Label:  server.Label(),
			Status: status,
			Email:  userconfig.LastEmail(server.URL),
			Server: server,
		}
	}
	return options
}

func storedToken(serverURL string) bool {
	token, err := auth.LoadToken(serverURL)
	return err == nil && token != ""
}

// PromptServerSelection shows an interactive prompt for the user to select a server
func PromptServerSelection(projectConfig *config.Config) (*config.Server, error) {
	if len(projectConfig.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured in %s", config.ConfigFileName)
	}

	options := buildOptions(projectConfig, storedToken)

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
		Details: `
{{ "Session:" | faint }}	{{ .Status }}{{ if .Email }}
{{ "Email:" | faint }}	{{ .Email }}{{ end }}`,
	}

	prompt := promptui.Select{
		Label:     "Select a server",
		Items:     options,
		Templates: templates,
		Size:      10,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(options[index].Label), strings.ToLower(input))
		},
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server selection cancelled: %w", err)
	}

	return options[index].Server, nil
}
