// Package config manages the project-level morningai.json that lists the
// API servers a checkout talks to.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const ConfigFileName = "morningai.json"

var (
	ErrServerNotFound = errors.New("server not found")
	ErrDuplicateURL   = errors.New("server URL already configured")
	ErrDuplicateAlias = errors.New("server alias already used")
)

// Server is one Morning AI API deployment
type Server struct {
	URL   string `json:"url"`
	Alias string `json:"alias"`
	// Insecure accepts self-signed TLS certificates
	Insecure bool `json:"insecure,omitempty"`
}

// Label is how pickers and status lines name the server
func (s Server) Label() string {
	if s.Alias == "" {
		return s.URL
	}
	return fmt.Sprintf("%s (%s)", s.Alias, s.URL)
}

type Config struct {
	Servers []Server `json:"servers"`
}

// FindConfigFile walks from the working directory up to the filesystem root
// looking for morningai.json.
func FindConfigFile() (string, error) {
	start, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	for dir := start; ; {
		candidate := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found in %s or any parent directory", ConfigFileName, start)
		}
		dir = parent
	}
}

// Load reads and validates a config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &cfg, nil
}

func LoadFromCurrentDir() (*Config, error) {
	path, err := FindConfigFile()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save writes cfg as indented JSON. The file is meant to be committed, so it
// stays world readable.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate rejects entries without a URL and duplicate URLs or aliases
func (c *Config) Validate() error {
	urls := make(map[string]bool, len(c.Servers))
	aliases := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("server %d has no url", i+1)
		}
		if urls[s.URL] {
			return fmt.Errorf("%w: %s", ErrDuplicateURL, s.URL)
		}
		urls[s.URL] = true
		if s.Alias == "" {
			continue
		}
		if aliases[s.Alias] {
			return fmt.Errorf("%w: %s", ErrDuplicateAlias, s.Alias)
		}
		aliases[s.Alias] = true
	}
	return nil
}

// AddServer appends s, refusing a URL or alias that is already present
func (c *Config) AddServer(s Server) error {
	if _, err := c.GetServerByURL(s.URL); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateURL, s.URL)
	}
	if s.Alias != "" {
		if _, err := c.GetServerByAlias(s.Alias); err == nil {
			return fmt.Errorf("%w: %s", ErrDuplicateAlias, s.Alias)
		}
	}
	c.Servers = append(c.Servers, s)
	return nil
}

func (c *Config) find(what, value string, match func(Server) bool) (*Server, error) {
	for i := range c.Servers {
		if match(c.Servers[i]) {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no server with %s '%s'", ErrServerNotFound, what, value)
}

func (c *Config) GetServerByAlias(alias string) (*Server, error) {
	return c.find("alias", alias, func(s Server) bool { return s.Alias == alias })
}

// GetServerByURL ignores a trailing slash on either side
func (c *Config) GetServerByURL(url string) (*Server, error) {
	want := strings.TrimRight(url, "/")
	return c.find("URL", url, func(s Server) bool { return strings.TrimRight(s.URL, "/") == want })
}

// GetServerByURLOrAlias tries the URL first, then the alias
func (c *Config) GetServerByURLOrAlias(urlOrAlias string) (*Server, error) {
	if server, err := c.GetServerByURL(urlOrAlias); err == nil {
		return server, nil
	}
	return c.find("URL or alias", urlOrAlias, func(s Server) bool { return s.Alias == urlOrAlias })
}
