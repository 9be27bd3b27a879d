package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read at startup
const (
	EnvUsername    = "WIKI_USERNAME"
	EnvBotPassword = "WIKI_BOTPASSWORD"
	EnvAPIURL      = "WIKI_API_URL"
)

// Placeholders substituted by Resolve
const (
	datePlaceholder     = "{date}"
	usernamePlaceholder = "{username}"
)

// Config is the user-editable configuration. Defaults reproduce the bot's
// original zh.wikipedia setup; a YAML file and the environment override them.
type Config struct {
	APIURL      string        `yaml:"api_url"`
	UserAgent   string        `yaml:"user_agent"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	Username    string        `yaml:"username"`
	BotPassword string        `yaml:"-"`

	Category CategoryConfig `yaml:"category"`
	Rewrite  RewriteConfig  `yaml:"rewrite"`
	Log      LogPageConfig  `yaml:"log"`
	Edit     EditConfig     `yaml:"edit"`
	Append   RetryConfig    `yaml:"append_retry"`
}

// CategoryConfig selects the pages to scan
type CategoryConfig struct {
	Name       string `yaml:"name"`
	Namespace  int    `yaml:"namespace"`
	PageSize   int    `yaml:"page_size"`
	Descending bool   `yaml:"descending"`
}

// RewriteConfig is the single substitution applied to page content
type RewriteConfig struct {
	MatchPattern string `yaml:"match_pattern"`
	Replacement  string `yaml:"replacement"` // may contain {date}
}

// LogPageConfig locates the discussion log page and its insertion marker
type LogPageConfig struct {
	Page           string `yaml:"page"`   // may contain {date}
	Marker         string `yaml:"marker"` // may contain {username}
	DateFormat     string `yaml:"date_format"`
	UTCOffsetHours int    `yaml:"utc_offset_hours"`
	Date           string `yaml:"date,omitempty"` // pinned, already formatted
}

// EditConfig holds the parameters sent with every edit
type EditConfig struct {
	Summary         string        `yaml:"summary"`
	Delay           time.Duration `yaml:"delay"`
	Watchlist       string        `yaml:"watchlist"`
	WatchlistExpiry string        `yaml:"watchlist_expiry"`
}

// RetryConfig bounds the log-page append loop
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		APIURL:      "https://zh.wikipedia.org/w/api.php",
		UserAgent:   "FilterInappropriateCSD (https://github.com/Emojigit/FilterInappropriateCSD)",
		HTTPTimeout: time.Minute,
		Category: CategoryConfig{
			Name:       "快速删除候选",
			Namespace:  0,
			PageSize:   20,
			Descending: true, // another bot works through the category oldest-first
		},
		Rewrite: RewriteConfig{
			MatchPattern: `{{delete\|[rR]7}}\n`,
			Replacement:  "{{vfd|转交佛祖西来提交的R7|date={date}}}\n",
		},
		Log: LogPageConfig{
			Page:           "Wikipedia:頁面存廢討論/記錄/{date}",
			Marker:         "<!-- FilterInappropriateCSD: batch insert point {username} -->",
			DateFormat:     "2006/01/02",
			UTCOffsetHours: 8,
		},
		Edit: EditConfig{
			Summary:         "半自動轉交存廢討論 (github.com/Emojigit/FilterInappropriateCSD)",
			Delay:           3 * time.Second,
			Watchlist:       "watch",
			WatchlistExpiry: "1 month",
		},
		Append: RetryConfig{
			MaxAttempts: 5,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// at path, and the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigError{Field: "file", Err: err}
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{Field: "file", Err: fmt.Errorf("parse %s: %w", path, err)}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from a .env file into the environment.
// A missing file is not an error; variables already set are kept.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &ConfigError{Field: "dotenv", Err: err}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvUsername); v != "" {
		c.Username = v
	}
	if v := os.Getenv(EnvBotPassword); v != "" {
		c.BotPassword = v
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIURL = v
	}
}

// Validate checks that the configuration can drive a run
func (c *Config) Validate() error {
	switch {
	case c.Username == "":
		return &ConfigError{Field: "username", Err: fmt.Errorf("%s is not set", EnvUsername)}
	case c.BotPassword == "":
		return &ConfigError{Field: "bot_password", Err: fmt.Errorf("%s is not set", EnvBotPassword)}
	case c.APIURL == "":
		return &ConfigError{Field: "api_url", Err: errors.New("must not be empty")}
	case c.HTTPTimeout < 0:
		return &ConfigError{Field: "http_timeout", Err: errors.New("must not be negative")}
	case c.Category.Name == "":
		return &ConfigError{Field: "category.name", Err: errors.New("must not be empty")}
	case c.Category.PageSize < 1:
		return &ConfigError{Field: "category.page_size", Err: fmt.Errorf("must be positive, got %d", c.Category.PageSize)}
	case c.Rewrite.MatchPattern == "":
		return &ConfigError{Field: "rewrite.match_pattern", Err: errors.New("must not be empty")}
	case c.Log.Page == "":
		return &ConfigError{Field: "log.page", Err: errors.New("must not be empty")}
	case c.Log.Marker == "":
		return &ConfigError{Field: "log.marker", Err: errors.New("must not be empty")}
	case c.Edit.Delay < 0:
		return &ConfigError{Field: "edit.delay", Err: errors.New("must not be negative")}
	case c.Append.MaxAttempts < 1:
		return &ConfigError{Field: "append_retry.max_attempts", Err: fmt.Errorf("must be at least 1, got %d", c.Append.MaxAttempts)}
	case c.Append.MaxDelay > 0 && c.Append.BaseDelay > c.Append.MaxDelay:
		return &ConfigError{Field: "append_retry", Err: errors.New("max_delay must not be below base_delay")}
	}
	if _, err := regexp.Compile(c.Rewrite.MatchPattern); err != nil {
		return &ConfigError{Field: "rewrite.match_pattern", Err: err}
	}
	return nil
}

// Settings is the resolved, immutable configuration handed to the workflow
type Settings struct {
	APIURL      string
	UserAgent   string
	HTTPTimeout time.Duration
	Username    string
	BotPassword string

	Category   string
	Namespace  int
	PageSize   int
	Descending bool

	Pattern     *regexp.Regexp
	Replacement string

	Date    string
	LogPage string
	Marker  string

	EditSummary     string
	EditDelay       time.Duration
	Watchlist       string
	WatchlistExpiry string

	AppendRetry RetryPolicy
}

// Resolve validates the configuration and substitutes the run date and
// username into the templated fields.
func (c *Config) Resolve(now time.Time) (Settings, error) {
	if err := c.Validate(); err != nil {
		return Settings{}, err
	}

	date := c.Log.Date
	if date == "" {
		zone := time.FixedZone(fmt.Sprintf("UTC%+d", c.Log.UTCOffsetHours), c.Log.UTCOffsetHours*3600)
		date = now.In(zone).Format(c.Log.DateFormat)
	}

	return Settings{
		APIURL:          c.APIURL,
		UserAgent:       c.UserAgent,
		HTTPTimeout:     c.HTTPTimeout,
		Username:        c.Username,
		BotPassword:     c.BotPassword,
		Category:        c.Category.Name,
		Namespace:       c.Category.Namespace,
		PageSize:        c.Category.PageSize,
		Descending:      c.Category.Descending,
		Pattern:         regexp.MustCompile(c.Rewrite.MatchPattern),
		Replacement:     strings.ReplaceAll(c.Rewrite.Replacement, datePlaceholder, date),
		Date:            date,
		LogPage:         strings.ReplaceAll(c.Log.Page, datePlaceholder, date),
		Marker:          strings.ReplaceAll(c.Log.Marker, usernamePlaceholder, c.Username),
		EditSummary:     c.Edit.Summary,
		EditDelay:       c.Edit.Delay,
		Watchlist:       c.Edit.Watchlist,
		WatchlistExpiry: c.Edit.WatchlistExpiry,
		AppendRetry: RetryPolicy{
			MaxAttempts: c.Append.MaxAttempts,
			BaseDelay:   c.Append.BaseDelay,
			MaxDelay:    c.Append.MaxDelay,
		},
	}, nil
}
