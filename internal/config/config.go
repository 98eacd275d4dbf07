// Package config exposes strongly typed configuration for the Strava feed job, loaded from YAML, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential reports an unset or empty Strava credential.
var ErrMissingCredential = errors.New("missing strava credential")

// MissingCredentialError names the credential variable that has no usable value.
type MissingCredentialError struct {
	Name  string
	Empty bool // set but blank, as opposed to absent
}

func (e *MissingCredentialError) Error() string {
	if e.Empty {
		return fmt.Sprintf("required environment variable '%s' is empty: set it to a non-empty value before running stravafeed", e.Name)
	}
	return fmt.Sprintf("required environment variable '%s' is not set: set it before running stravafeed", e.Name)
}

func (e *MissingCredentialError) Is(target error) bool { return target == ErrMissingCredential }

const (
	DefaultAPIBaseURL = "https://www.strava.com/api/v3"
	DefaultTokenURL   = "https://www.strava.com/oauth/token"
	DefaultFeedPath   = "assets/strava.json"
	DefaultPerPage    = 20
	// MaxPerPage is the largest page size the activities endpoint accepts.
	MaxPerPage = 200
)

// App captures process-wide runtime settings such as name, logging and metrics output.
type App struct {
	Name            string `yaml:"name"`
	LogLevel        string `yaml:"log_level"`
	PrettyLogs      bool   `yaml:"pretty_logs"`
	MetricsAddr     string `yaml:"metrics_addr"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// Strava describes the OAuth application and API paging parameters.
type Strava struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	APIBaseURL   string `yaml:"api_base_url"`
	TokenURL     string `yaml:"token_url"`
	PerPage      int    `yaml:"per_page"`
	MaxPages     int    `yaml:"max_pages"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
	MaxRetries   int    `yaml:"max_retries"`
}

// Output controls where the feed and the rotated refresh token land.
type Output struct {
	FeedPath  string `yaml:"feed_path"`
	TokenFile string `yaml:"token_file"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App    App    `yaml:"app"`
	Strava Strava `yaml:"strava"`
	Output Output `yaml:"output"`
}

// Default returns the settings used when nothing else is configured.
func Default() *Config {
	return &Config{
		App: App{
			Name:     "stravafeed",
			LogLevel: "info",
		},
		Strava: Strava{
			APIBaseURL:  DefaultAPIBaseURL,
			TokenURL:    DefaultTokenURL,
			PerPage:     DefaultPerPage,
			MaxPages:    1,
			TimeoutSecs: 30,
			MaxRetries:  3,
		},
		Output: Output{
			FeedPath: DefaultFeedPath,
		},
	}
}

// Load reads a YAML file from disk on top of the defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// LoadDotEnv populates the process environment from .env files; missing files are ignored.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		_ = godotenv.Load(path) // best-effort
	}
}

// optionalInt treats an empty variable as unset, which CI runners produce for undefined variables.
type optionalInt int

func (o *optionalInt) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not an integer: %q", value)
	}
	*o = optionalInt(n)
	return nil
}

type optionalString string

func (o *optionalString) Decode(value string) error {
	if value = strings.TrimSpace(value); value != "" {
		*o = optionalString(value)
	}
	return nil
}

type envSource struct {
	ClientID     optionalString `envconfig:"STRAVA_CLIENT_ID"`
	ClientSecret optionalString `envconfig:"STRAVA_CLIENT_SECRET"`
	RefreshToken optionalString `envconfig:"STRAVA_REFRESH_TOKEN"`
	PerPage      optionalInt    `envconfig:"STRAVA_PER_PAGE"`
	MaxPages     optionalInt    `envconfig:"STRAVA_MAX_PAGES"`
	APIBaseURL   optionalString `envconfig:"STRAVA_API_URL"`
	TokenURL     optionalString `envconfig:"STRAVA_TOKEN_URL"`
	FeedPath     optionalString `envconfig:"STRAVA_OUTFILE"`
	TokenFile    optionalString `envconfig:"STRAVA_TOKEN_FILE"`
	LogLevel     optionalString `envconfig:"LOG_LEVEL"`
	Textfile     optionalString `envconfig:"METRICS_TEXTFILE"`
}

// LoadFromEnv overlays environment variables on the config.
func (c *Config) LoadFromEnv() error {
	src := envSource{
		ClientID:     optionalString(c.Strava.ClientID),
		ClientSecret: optionalString(c.Strava.ClientSecret),
		RefreshToken: optionalString(c.Strava.RefreshToken),
		PerPage:      optionalInt(c.Strava.PerPage),
		MaxPages:     optionalInt(c.Strava.MaxPages),
		APIBaseURL:   optionalString(c.Strava.APIBaseURL),
		TokenURL:     optionalString(c.Strava.TokenURL),
		FeedPath:     optionalString(c.Output.FeedPath),
		TokenFile:    optionalString(c.Output.TokenFile),
		LogLevel:     optionalString(c.App.LogLevel),
		Textfile:     optionalString(c.App.MetricsTextfile),
	}
	if err := envconfig.Process("", &src); err != nil {
		return fmt.Errorf("failed to process environment variables: %w", err)
	}
	c.Strava.ClientID = strings.TrimSpace(string(src.ClientID))
	c.Strava.ClientSecret = strings.TrimSpace(string(src.ClientSecret))
	c.Strava.RefreshToken = strings.TrimSpace(string(src.RefreshToken))
	c.Strava.PerPage = int(src.PerPage)
	c.Strava.MaxPages = int(src.MaxPages)
	c.Strava.APIBaseURL = string(src.APIBaseURL)
	c.Strava.TokenURL = string(src.TokenURL)
	c.Output.FeedPath = string(src.FeedPath)
	c.Output.TokenFile = string(src.TokenFile)
	c.App.LogLevel = string(src.LogLevel)
	c.App.MetricsTextfile = string(src.Textfile)
	return nil
}

// Validate checks the configuration is usable before any request is made.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"STRAVA_CLIENT_ID", c.Strava.ClientID},
		{"STRAVA_CLIENT_SECRET", c.Strava.ClientSecret},
		{"STRAVA_REFRESH_TOKEN", c.Strava.RefreshToken},
	}
	for _, r := range required {
		if r.value == "" {
			_, set := os.LookupEnv(r.name)
			return &MissingCredentialError{Name: r.name, Empty: set}
		}
	}
	if c.Strava.PerPage < 1 || c.Strava.PerPage > MaxPerPage {
		return fmt.Errorf("per page must be between 1 and %d, got %d", MaxPerPage, c.Strava.PerPage)
	}
	if c.Strava.MaxPages < 1 {
		return fmt.Errorf("max pages must be at least 1, got %d", c.Strava.MaxPages)
	}
	if c.Strava.APIBaseURL == "" || c.Strava.TokenURL == "" {
		return fmt.Errorf("strava api and token urls are required")
	}
	if c.Output.FeedPath == "" {
		return fmt.Errorf("feed path is required")
	}
	return nil
}
