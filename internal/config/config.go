package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// PlaceholderURL is the value shipped in a fresh config file.
const PlaceholderURL = "YOUR_APPS_SCRIPT_WEB_APP_URL_HERE"

// ErrNotConfigured means the API URL is missing or still the placeholder.
var ErrNotConfigured = errors.New("API URL not configured")

// Duration wraps time.Duration so it reads as "30s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	APIURL               string      `toml:"api_url"`
	ResponsesAction      string      `toml:"responses_action"` // "" or "getResponses"
	VoteMethod           string      `toml:"vote_method"`      // "post" or "get"
	TotalQuestions       int         `toml:"total_questions"`
	RefreshInterval      Duration    `toml:"refresh_interval"`
	AutoRefresh          bool        `toml:"auto_refresh"`
	RequestTimeout       Duration    `toml:"request_timeout"`
	MaxExplanationLength int         `toml:"max_explanation_length"`
	EnableVoting         bool        `toml:"enable_voting"`
	EnableStatistics     bool        `toml:"enable_statistics"`
	StoragePrefix        string      `toml:"storage_prefix"`
	QuestionLabels       []string    `toml:"question_labels"`
	Colors               ColorConfig `toml:"colors"`
	Log                  LogConfig   `toml:"log"`
}

type ColorConfig struct {
	Yes      string `toml:"yes"`
	No       string `toml:"no"`
	CantTell string `toml:"cant_tell"`
}

type LogConfig struct {
	File       string `toml:"file"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// DefaultLabels are the CASP randomised controlled trial checklist items.
var DefaultLabels = []string{
	"Question 1: Clear focused issue",
	"Question 2: Randomisation",
	"Question 3: Blinding",
	"Question 4a: Groups similar at start",
	"Question 4b: Groups treated equally",
	"Question 4c: All patients accounted for",
	"Question 5: Sample size",
	"Question 6: How results presented",
	"Question 7: Estimate of treatment effect",
	"Question 8: Precision of estimate",
	"Question 9: Apply to local population",
	"Question 10: Clinically important outcomes",
	"Question 11: Benefits worth harms/costs",
}

func DefaultConfig() Config {
	labels := make([]string, len(DefaultLabels))
	copy(labels, DefaultLabels)

	return Config{
		APIURL:               PlaceholderURL,
		VoteMethod:           "post",
		TotalQuestions:       13,
		RefreshInterval:      Duration{30 * time.Second},
		AutoRefresh:          true,
		RequestTimeout:       Duration{30 * time.Second},
		MaxExplanationLength: 500,
		EnableVoting:         true,
		EnableStatistics:     true,
		StoragePrefix:        "casp_vote_",
		QuestionLabels:       labels,
		Colors: ColorConfig{
			Yes:      "#10B981", // green
			No:       "#EF4444", // red
			CantTell: "#F59E0B", // amber
		},
		Log: LogConfig{
			File:       filepath.Join(ConfigDir(), "caspview.log"),
			Level:      "info",
			MaxSizeMB:  5,
			MaxBackups: 3,
		},
	}
}

func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cbraapps", "caspview")
}

func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cbraapps", "caspview.toml")
}

func DataDir() string {
	return filepath.Join(ConfigDir(), "data")
}

func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// Load reads the config file, creating it with defaults on first run, then
// applies .env and environment overrides
func Load() (*Config, error) {
	if !Exists() {
		if err := createDefaultConfig(); err != nil {
			return nil, err
		}
	}

	cfg, err := LoadFile(ConfigPath())
	if err != nil {
		return nil, err
	}

	// A missing .env is the normal case
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile decodes one TOML file and fills in defaults for missing values
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.VoteMethod == "" {
		c.VoteMethod = defaults.VoteMethod
	}
	if c.TotalQuestions <= 0 {
		c.TotalQuestions = defaults.TotalQuestions
	}
	if c.RefreshInterval.Duration <= 0 {
		c.RefreshInterval = defaults.RefreshInterval
	}
	if c.RequestTimeout.Duration <= 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.MaxExplanationLength <= 0 {
		c.MaxExplanationLength = defaults.MaxExplanationLength
	}
	if c.StoragePrefix == "" {
		c.StoragePrefix = defaults.StoragePrefix
	}
	if len(c.QuestionLabels) == 0 {
		c.QuestionLabels = defaults.QuestionLabels
	}
	if c.Colors.Yes == "" {
		c.Colors.Yes = defaults.Colors.Yes
	}
	if c.Colors.No == "" {
		c.Colors.No = defaults.Colors.No
	}
	if c.Colors.CantTell == "" {
		c.Colors.CantTell = defaults.Colors.CantTell
	}
	if c.Log.File == "" {
		c.Log.File = defaults.Log.File
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = defaults.Log.MaxSizeMB
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = defaults.Log.MaxBackups
	}
}

func (c *Config) applyEnv() error {
	if url := os.Getenv("CASPVIEW_API_URL"); url != "" {
		c.APIURL = url
	}
	if interval := os.Getenv("CASPVIEW_REFRESH_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return fmt.Errorf("invalid CASPVIEW_REFRESH_INTERVAL: %w", err)
		}
		if d > 0 {
			c.RefreshInterval = Duration{d}
		}
	}
	return nil
}

// Validate reports ErrNotConfigured for a missing or placeholder API URL and
// rejects unknown vote methods
func (c *Config) Validate() error {
	url := strings.TrimSpace(c.APIURL)
	if url == "" || url == PlaceholderURL {
		return fmt.Errorf("%w: set api_url in %s", ErrNotConfigured, ConfigPath())
	}
	switch c.VoteMethod {
	case "post", "get":
	default:
		return fmt.Errorf("unknown vote_method %q (use post or get)", c.VoteMethod)
	}
	return nil
}

// Label returns the selector label for question q
func (c *Config) Label(q int) string {
	if q >= 0 && q < len(c.QuestionLabels) {
		return c.QuestionLabels[q]
	}
	return fmt.Sprintf("Question %d", q+1)
}

func createDefaultConfig() error {
	configPath := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(DataDir(), 0755); err != nil {
		return err
	}

	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	header := `# caspview configuration
# Auto-generated on first run

# Paste the Apps Script web app URL into api_url.
# It looks like: https://script.google.com/macros/s/[ID]/exec
`
	f.WriteString(header)

	return toml.NewEncoder(f).Encode(DefaultConfig())
}

func Save(cfg *Config) error {
	return SaveFile(ConfigPath(), cfg)
}

// SaveFile writes cfg as TOML to path, creating the directory if needed
func SaveFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{APIURL: %s, Questions: %d, Voting: %v, Refresh: %s}",
		c.APIURL, c.TotalQuestions, c.EnableVoting, c.RefreshInterval)
}
