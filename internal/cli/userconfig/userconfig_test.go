package userconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSelectedServerRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", t.TempDir())

	selected, err := GetSelectedServer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected != "" {
		t.Fatalf("expected no selection, got %q", selected)
	}

	if err := SetSelectedServer("https://ops.example.com"); err != nil {
		t.Fatalf("failed to save selection: %v", err)
	}

	selected, err = GetSelectedServer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected != "https://ops.example.com" {
		t.Errorf("expected saved selection, got %q", selected)
	}
}

func TestConfigPath_PrefersXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(xdg, "morningai", "config.json"); path != want {
		t.Errorf("expected %s, got %s", want, path)
	}
}

func TestRememberEmail_KeepsSelection(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := SetSelectedServer("https://a.example.com"); err != nil {
		t.Fatal(err)
	}
	if err := RememberEmail("https://a.example.com", "ops@example.com"); err != nil {
		t.Fatalf("failed to remember email: %v", err)
	}

	if got := LastEmail("https://a.example.com"); got != "ops@example.com" {
		t.Errorf("expected remembered email, got %q", got)
	}
	if got := LastEmail("https://b.example.com"); got != "" {
		t.Errorf("expected no email for another server, got %q", got)
	}
	if selected, _ := GetSelectedServer(); selected != "https://a.example.com" {
		t.Errorf("selection was lost: %q", selected)
	}

	path, _ := GetConfigPath()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected mode 0600, got %o", perm)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir := filepath.Join(xdg, "morningai")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error, got nil")
	}
	if got := LastEmail("https://a.example.com"); got != "" {
		t.Errorf("expected empty email on a corrupt file, got %q", got)
	}
}
