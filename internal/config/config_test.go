package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"Mansoor88-6/time-targets-agent/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "local.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "env: test\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Env != "test" {
		t.Errorf("expected env 'test', got %q", cfg.Env)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level 'info', got %q", cfg.Log.Level)
	}
	if got := cfg.APITimeout(); got != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", got)
	}
	if got := cfg.FeasibilityThreshold(); got != 16*time.Hour {
		t.Errorf("expected 16h feasibility threshold, got %v", got)
	}
	if cfg.Credential() != nil {
		t.Errorf("expected no credential, got %+v", cfg.Credential())
	}
}

func TestLoadConfig_EnvOverridesToken(t *testing.T) {
	path := writeConfig(t, "api:\n  token: from-file\n")
	t.Setenv("TT_API_TOKEN", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cred := cfg.Credential()
	if cred == nil || cred.Kind != models.TokenCredential || cred.APIToken != "from-env" {
		t.Errorf("expected token credential from env, got %+v", cred)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"threshold too large", "progress:\n  feasibility_threshold_hours: 30\n"},
		{"negative timeout", "api:\n  timeout: -1\n"},
		{"unknown timezone", "calendar:\n  timezone: Mars/Olympus_Mons\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestCredential_EmailPassword(t *testing.T) {
	cfg := &Config{API: APIConfig{Email: "me@example.com", Password: "secret"}}
	cred := cfg.Credential()
	if cred == nil || cred.Kind != models.EmailPasswordCredential {
		t.Fatalf("expected email/password credential, got %+v", cred)
	}
	if cred.IsToken() {
		t.Error("email/password credential must not report itself as token based")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := writeConfig(t, "env: test\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cfg.API.Token = "saved-token"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig after save failed: %v", err)
	}
	if reloaded.API.Token != "saved-token" {
		t.Errorf("expected saved token, got %q", reloaded.API.Token)
	}
}
