package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "stravafeed-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if cfg.App.LogLevel != "debug" {
		t.Fatalf("unexpected App.LogLevel: %s", cfg.App.LogLevel)
	}
	if cfg.Strava.ClientID != "12345" {
		t.Fatalf("unexpected Strava.ClientID: %s", cfg.Strava.ClientID)
	}
	if cfg.Strava.PerPage != 50 {
		t.Fatalf("unexpected Strava.PerPage: %d", cfg.Strava.PerPage)
	}
	if cfg.Strava.MaxPages != 3 {
		t.Fatalf("unexpected Strava.MaxPages: %d", cfg.Strava.MaxPages)
	}
	if cfg.Strava.TimeoutSecs != 10 {
		t.Fatalf("unexpected Strava.TimeoutSecs: %d", cfg.Strava.TimeoutSecs)
	}
	// untouched keys keep their defaults
	if cfg.Strava.TokenURL != DefaultTokenURL {
		t.Fatalf("expected default token url, got %s", cfg.Strava.TokenURL)
	}
	if cfg.Strava.MaxRetries != 3 {
		t.Fatalf("expected default retries, got %d", cfg.Strava.MaxRetries)
	}
	if cfg.Output.FeedPath != "site/assets/strava.json" {
		t.Fatalf("unexpected Output.FeedPath: %s", cfg.Output.FeedPath)
	}
	if cfg.Output.TokenFile != ".strava-token.json" {
		t.Fatalf("unexpected Output.TokenFile: %s", cfg.Output.TokenFile)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STRAVA_CLIENT_ID", "abc")
	t.Setenv("STRAVA_CLIENT_SECRET", "shh")
	t.Setenv("STRAVA_REFRESH_TOKEN", " refresh ")
	t.Setenv("STRAVA_PER_PAGE", "42")
	t.Setenv("STRAVA_OUTFILE", "out/feed.json")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.Strava.ClientID != "abc" || cfg.Strava.ClientSecret != "shh" {
		t.Fatalf("unexpected credentials: %+v", cfg.Strava)
	}
	if cfg.Strava.RefreshToken != "refresh" {
		t.Fatalf("expected trimmed refresh token, got %q", cfg.Strava.RefreshToken)
	}
	if cfg.Strava.PerPage != 42 {
		t.Fatalf("unexpected per page: %d", cfg.Strava.PerPage)
	}
	if cfg.Strava.MaxPages != 1 {
		t.Fatalf("expected default max pages, got %d", cfg.Strava.MaxPages)
	}
	if cfg.Output.FeedPath != "out/feed.json" {
		t.Fatalf("unexpected feed path: %s", cfg.Output.FeedPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestLoadFromEnvEmptyValuesKeepDefaults(t *testing.T) {
	t.Setenv("STRAVA_PER_PAGE", "")
	t.Setenv("STRAVA_OUTFILE", "  ")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.Strava.PerPage != DefaultPerPage {
		t.Fatalf("expected default per page, got %d", cfg.Strava.PerPage)
	}
	if cfg.Output.FeedPath != DefaultFeedPath {
		t.Fatalf("expected default feed path, got %s", cfg.Output.FeedPath)
	}
}

func TestLoadFromEnvRejectsBadInteger(t *testing.T) {
	t.Setenv("STRAVA_PER_PAGE", "lots")

	if err := Default().LoadFromEnv(); err == nil {
		t.Fatalf("expected error for non-numeric per page")
	}
}

func TestValidateNamesMissingCredential(t *testing.T) {
	cfg := Default()
	cfg.Strava.ClientID = "abc"
	cfg.Strava.RefreshToken = "refresh"

	err := cfg.Validate()
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if !strings.Contains(err.Error(), "required environment variable 'STRAVA_CLIENT_SECRET' is not set") {
		t.Fatalf("expected variable name in error, got %v", err)
	}
}

func TestValidateReportsEmptyCredential(t *testing.T) {
	t.Setenv("STRAVA_CLIENT_SECRET", "")
	cfg := Default()
	cfg.Strava.ClientID = "abc"
	cfg.Strava.RefreshToken = "refresh"

	err := cfg.Validate()
	var missing *MissingCredentialError
	if !errors.As(err, &missing) || !missing.Empty {
		t.Fatalf("expected empty credential error, got %v", err)
	}
	if !strings.Contains(err.Error(), "'STRAVA_CLIENT_SECRET' is empty") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestEmptyEnvCredentialKeepsYAMLValue(t *testing.T) {
	t.Setenv("STRAVA_CLIENT_ID", "")
	t.Setenv("STRAVA_CLIENT_SECRET", "  ")

	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.Strava.ClientID != "12345" {
		t.Fatalf("expected client id from yaml, got %q", cfg.Strava.ClientID)
	}
	if cfg.Strava.ClientSecret != "" {
		t.Fatalf("expected no client secret, got %q", cfg.Strava.ClientSecret)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected blank secret to fail validation, got %v", err)
	}
}

func TestValidatePerPageBounds(t *testing.T) {
	cfg := Default()
	cfg.Strava.ClientID = "abc"
	cfg.Strava.ClientSecret = "shh"
	cfg.Strava.RefreshToken = "refresh"

	cfg.Strava.PerPage = MaxPerPage + 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for oversized page")
	}
	cfg.Strava.PerPage = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty page")
	}
	cfg.Strava.PerPage = 10
	cfg.Strava.MaxPages = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero max pages")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("STRAVA_MAX_PAGES=4\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("STRAVA_MAX_PAGES", "")
	os.Unsetenv("STRAVA_MAX_PAGES")

	LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env"))

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.Strava.MaxPages != 4 {
		t.Fatalf("expected max pages from .env, got %d", cfg.Strava.MaxPages)
	}
}
