// Package envcheck validates that a deployment environment defines the
// variables the services need before they start.
package envcheck

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"gopkg.in/yaml.v3"
)

// DefaultRequired is checked when no other source is given
var DefaultRequired = []string{
	"SUPABASE_URL",
	"SUPABASE_ANON_KEY",
	"SUPABASE_SERVICE_ROLE_KEY",
	"SUPABASE_JWT_SECRET",
	"DATABASE_URL",
	"REDIS_URL",
	"JWT_SECRET",
	"EMAIL_FROM",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS",
}

// secretMinimums are lengths below which a secret only draws a warning
var secretMinimums = map[string]int{
	"JWT_SECRET": 24,
}

// Spec lists the variables an environment must (and may) define
type Spec struct {
	Description string   `yaml:"description" json:"description"`
	Required    []string `yaml:"required" json:"required"`
	Optional    []string `yaml:"optional" json:"optional"`
}

// LoadSpecFile reads a YAML or JSON spec file
func LoadSpecFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}

	// JSON is valid YAML, so one decoder serves both
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse spec file %s: %w", path, err)
	}
	if len(spec.Required) == 0 && len(spec.Optional) == 0 {
		return nil, fmt.Errorf("spec file %s lists no variables", path)
	}
	return &spec, nil
}

// LoadMatrix reads a CSV whose first column is the variable name and whose
// other columns are apps, each cell "required", "optional" or empty.
func LoadMatrix(r io.Reader, app string) (*Spec, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix header: %w", err)
	}

	col := -1
	apps := make([]string, 0, len(header))
	for i, name := range header[1:] {
		name = strings.TrimSpace(name)
		apps = append(apps, name)
		if strings.EqualFold(name, app) {
			col = i + 1
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("app %q not found in matrix (have: %s)", app, strings.Join(apps, ", "))
	}

	spec := &Spec{Description: "env matrix for " + app}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read matrix line %d: %w", line, err)
		}

		key := strings.TrimSpace(record[0])
		if key == "" || strings.HasPrefix(key, "#") || col >= len(record) {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(record[col])) {
		case "required", "req", "yes", "y", "x":
			spec.Required = append(spec.Required, key)
		case "optional", "opt":
			spec.Optional = append(spec.Optional, key)
		case "", "-", "no", "n":
		default:
			return nil, fmt.Errorf("matrix line %d: unknown value %q for %s", line, record[col], key)
		}
	}
	return spec, nil
}

// Lookup finds a variable's value
type Lookup func(key string) (string, bool)

// Environ looks in the process environment first and then in fileVars,
// so real environment variables override a dotenv file.
func Environ(fileVars map[string]string) Lookup {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}
}

// ReadEnvFile parses a dotenv file without touching the process environment
func ReadEnvFile(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return vars, nil
}

// Report is the outcome of Check
type Report struct {
	Present         []string
	MissingRequired []string
	MissingOptional []string
	Warnings        []string
}

// OK reports whether every required variable is set
func (r *Report) OK() bool {
	return len(r.MissingRequired) == 0
}

// GitHubOutput is the line to append to $GITHUB_OUTPUT
func (r *Report) GitHubOutput() string {
	if r.OK() {
		return "missing-vars=None"
	}
	return "missing-vars=" + strings.Join(r.MissingRequired, ",")
}

// Check evaluates spec against lookup. Blank values count as missing.
func Check(spec Spec, lookup Lookup) *Report {
	report := &Report{}
	values := map[string]string{}

	for _, key := range spec.Required {
		if v, ok := present(lookup, key); ok {
			report.Present = append(report.Present, key)
			values[key] = v
		} else {
			report.MissingRequired = append(report.MissingRequired, key)
		}
	}
	for _, key := range spec.Optional {
		if v, ok := present(lookup, key); ok {
			report.Present = append(report.Present, key)
			values[key] = v
		} else {
			report.MissingOptional = append(report.MissingOptional, key)
		}
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if strings.HasSuffix(key, "_URL") {
			if warning := checkURL(key, values[key]); warning != "" {
				report.Warnings = append(report.Warnings, warning)
			}
		}
		if minLen, ok := secretMinimums[key]; ok && len(values[key]) < minLen {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s should be at least %d chars.", key, minLen))
		}
	}
	return report
}

func present(lookup Lookup, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func checkURL(key, value string) string {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
		return fmt.Sprintf("%s may be malformed: not an absolute URL", key)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		if _, err := pq.ParseURL(value); err != nil {
			return fmt.Sprintf("%s may be malformed: %s (%v)", key, u.Redacted(), err)
		}
	}
	return ""
}
