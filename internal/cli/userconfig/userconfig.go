// Package userconfig persists per-operator CLI state under the user's config
// directory: the selected server and the last email used on each server.
package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirName  = "morningai"
	configFileName = "config.json"
)

// UserConfig is stored in $XDG_CONFIG_HOME/morningai/config.json, falling
// back to ~/.config/morningai/config.json
type UserConfig struct {
	SelectedServer string `json:"selected_server,omitempty"`
	// Keyed by server URL. Never holds secrets; tokens live in the keyring.
	LastEmail map[string]string `json:"last_email,omitempty"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		base = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(base, configDirName, configFileName), nil
}

// Load reads the user configuration. A missing file is an empty config.
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return &UserConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file %s: %w", configPath, err)
	}
	return &cfg, nil
}

// Save writes cfg through a temp file and rename so a crash never leaves
// a truncated config behind
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	tmp, err := os.CreateTemp(configDir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write user config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), configPath); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}
	return nil
}

// Update loads the config, applies fn and saves the result
func Update(fn func(cfg *UserConfig)) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	fn(cfg)
	return Save(cfg)
}

// SetSelectedServer records serverURL as the default server ("" clears it)
func SetSelectedServer(serverURL string) error {
	return Update(func(cfg *UserConfig) { cfg.SelectedServer = serverURL })
}

// GetSelectedServer returns the selected server URL, or "" if none
func GetSelectedServer() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return cfg.SelectedServer, nil
}

// RememberEmail stores the email last used to log in to serverURL
func RememberEmail(serverURL, email string) error {
	return Update(func(cfg *UserConfig) {
		if cfg.LastEmail == nil {
			cfg.LastEmail = map[string]string{}
		}
		cfg.LastEmail[serverURL] = email
	})
}

// LastEmail returns the email last used on serverURL, or ""
func LastEmail(serverURL string) string {
	cfg, err := Load()
	if err != nil {
		return ""
	}
	return cfg.LastEmail[serverURL]
}
