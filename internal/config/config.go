// Package config builds the configuration of a leaderboard run from defaults,
// json5 files, a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"osu-leaderboard/internal/components/configutil"
	"osu-leaderboard/internal/components/notify"
	"osu-leaderboard/internal/components/telemetry"
	"slices"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

type Config struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Country      string `json:"country"`
	Mode         string `json:"mode"`

	APIBase  string `json:"api_base"`
	TokenURL string `json:"token_url"`
	WebBase  string `json:"web_base"`

	Limit  int    `json:"limit"`
	Output string `json:"output"`
	Enrich bool   `json:"enrich"`

	ScrapePages       int      `json:"scrape_pages"`
	MaxCursorPages    int      `json:"max_cursor_pages"`
	RankingCandidates []string `json:"ranking_candidates"`

	TimeoutSeconds    int     `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	BypassCloudflare  bool    `json:"bypass_cloudflare"`

	Smtp      notify.SmtpConfig `json:"smtp"`
	Telemetry telemetry.Config  `json:"telemetry"`
}

func Defaults() Config {
	return Config{
		Country:           "IQ",
		Mode:              "osu",
		APIBase:           "https://osu.ppy.sh/api/v2",
		TokenURL:          "https://osu.ppy.sh/oauth/token",
		WebBase:           "https://osu.ppy.sh",
		Limit:             100,
		Output:            "leaderboard.json",
		ScrapePages:       2,
		MaxCursorPages:    4,
		TimeoutSeconds:    30,
		RequestsPerSecond: 2,
	}
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ConfigError lists every missing or invalid setting.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

type envBinding struct {
	name  string
	apply func(cfg *Config, value string) error
}

func bindString(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		*field(cfg) = value
		return nil
	}
}

func bindInt(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", value)
		}
		*field(cfg) = n
		return nil
	}
}

func bindBool(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", value)
		}
		*field(cfg) = b
		return nil
	}
}

var envBindings = []envBinding{
	{"OSU_CLIENT_ID", bindString(func(c *Config) *string { return &c.ClientID })},
	{"OSU_CLIENT_SECRET", bindString(func(c *Config) *string { return &c.ClientSecret })},
	{"OSU_COUNTRY", bindString(func(c *Config) *string { return &c.Country })},
	{"OSU_MODE", bindString(func(c *Config) *string { return &c.Mode })},
	{"OSU_API_BASE", bindString(func(c *Config) *string { return &c.APIBase })},
	{"OSU_TOKEN_URL", bindString(func(c *Config) *string { return &c.TokenURL })},
	{"OSU_WEB_BASE", bindString(func(c *Config) *string { return &c.WebBase })},
	{"OSU_LIMIT", bindInt(func(c *Config) *int { return &c.Limit })},
	{"OSU_OUTPUT", bindString(func(c *Config) *string { return &c.Output })},
	{"OSU_ENRICH", bindBool(func(c *Config) *bool { return &c.Enrich })},
	{"OSU_SCRAPE_PAGES", bindInt(func(c *Config) *int { return &c.ScrapePages })},
	{"OSU_MAX_CURSOR_PAGES", bindInt(func(c *Config) *int { return &c.MaxCursorPages })},
	{"OSU_TIMEOUT_SECONDS", bindInt(func(c *Config) *int { return &c.TimeoutSeconds })},
	{"OSU_BYPASS_CLOUDFLARE", bindBool(func(c *Config) *bool { return &c.BypassCloudflare })},
	{"OSU_REQUESTS_PER_SECOND", func(c *Config, value string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("expected a number, got %q", value)
		}
		c.RequestsPerSecond = f
		return nil
	}},
}

// ApplyEnv overrides cfg with every set and non-empty variable.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var problems []string
	for _, binding := range envBindings {
		value, ok := lookup(binding.name)
		if !ok || value == "" {
			continue
		}
		err := binding.apply(cfg, value)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", binding.name, err))
		}
	}
	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// Load builds a config with the precedence (lowest first): defaults, the
// json5 file at path and its .local override, the .env file at envFile,
// environment variables. Missing files are skipped.
func Load(path, envFile string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		file, err := configutil.ReadConfig[Config](path)
		switch {
		case err == nil:
			err = mergo.Merge(&cfg, file, mergo.WithOverride)
			if err != nil {
				return cfg, err
			}
		case !errors.Is(err, os.ErrNotExist):
			return cfg, err
		}
	}

	if envFile != "" {
		err := godotenv.Load(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	err := ApplyEnv(&cfg, os.LookupEnv)
	if err != nil {
		return cfg, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize canonicalizes values that have a single accepted spelling.
func (c *Config) Normalize() {
	c.Country = strings.ToUpper(strings.TrimSpace(c.Country))
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
}

var modes = []string{"osu", "taiko", "fruits", "mania"}

func isCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func isAbsoluteUrl(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate returns a *ConfigError naming every problem, it must pass before
// any network call is made.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.ClientID) == "" {
		problems = append(problems, "OSU_CLIENT_ID is required")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		problems = append(problems, "OSU_CLIENT_SECRET is required")
	}
	if !isCountryCode(c.Country) {
		problems = append(problems, fmt.Sprintf("country %q must be a 2 letter code", c.Country))
	}
	if !slices.Contains(modes, c.Mode) {
		problems = append(problems, fmt.Sprintf("mode %q must be one of %s", c.Mode, strings.Join(modes, ", ")))
	}
	for name, value := range map[string]string{
		"api_base":  c.APIBase,
		"token_url": c.TokenURL,
		"web_base":  c.WebBase,
	} {
		if !isAbsoluteUrl(value) {
			problems = append(problems, fmt.Sprintf("%s %q must be an absolute url", name, value))
		}
	}
	if c.Limit <= 0 {
		problems = append(problems, "limit must be positive")
	}
	if strings.TrimSpace(c.Output) == "" {
		problems = append(problems, "output is required")
	}
	if c.ScrapePages <= 0 {
		problems = append(problems, "scrape_pages must be positive")
	}
	if c.MaxCursorPages <= 0 {
		problems = append(problems, "max_cursor_pages must be positive")
	}
	if c.TimeoutSeconds <= 0 {
		problems = append(problems, "timeout_seconds must be positive")
	}
	if c.RequestsPerSecond <= 0 {
		problems = append(problems, "requests_per_second must be positive")
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return &ConfigError{Problems: problems}
	}
	return nil
}
