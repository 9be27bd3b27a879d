package internal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearWikiEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvUsername, EnvBotPassword, EnvAPIURL} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearWikiEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("LoadConfig(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_YAMLOverrides(t *testing.T) {
	clearWikiEnv(t)
	path := writeConfig(t, `
api_url: https://test.wikipedia.org/w/api.php
username: FileBot@filter
category:
  name: Candidates for speedy deletion
  page_size: 50
  descending: false
http_timeout: 15s
edit:
  delay: 500ms
append_retry:
  max_attempts: 2
  base_delay: 2s
  max_delay: 10s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := DefaultConfig()
	want.APIURL = "https://test.wikipedia.org/w/api.php"
	want.Username = "FileBot@filter"
	want.Category.Name = "Candidates for speedy deletion"
	want.Category.PageSize = 50
	want.Category.Descending = false
	want.HTTPTimeout = 15 * time.Second
	want.Edit.Delay = 500 * time.Millisecond
	want.Append = RetryConfig{MaxAttempts: 2, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_PasswordNotReadFromYAML(t *testing.T) {
	clearWikiEnv(t)
	path := writeConfig(t, "username: u\nbotpassword: leaked\nbot_password: leaked\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.BotPassword)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv(EnvUsername, "EnvBot@filter")
	t.Setenv(EnvBotPassword, "from-env")
	t.Setenv(EnvAPIURL, "http://localhost:8080/w/api.php")
	path := writeConfig(t, "username: FileBot@filter\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "EnvBot@filter", cfg.Username)
	assert.Equal(t, "from-env", cfg.BotPassword)
	assert.Equal(t, "http://localhost:8080/w/api.php", cfg.APIURL)
}

func TestLoadConfig_Errors(t *testing.T) {
	clearWikiEnv(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "file", cfgErr.Field)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "category: [unclosed\n"))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestLoadDotEnv(t *testing.T) {
	const key = "CSDFILTER_DOTENV_TEST"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("loads values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte(key+"=hello\n"), 0644))
		require.NoError(t, LoadDotEnv(path))
		assert.Equal(t, "hello", os.Getenv(key))
	})

	t.Run("keeps existing values", func(t *testing.T) {
		t.Setenv(key, "already set")
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte(key+"=overwritten\n"), 0644))
		require.NoError(t, LoadDotEnv(path))
		assert.Equal(t, "already set", os.Getenv(key))
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Username = "Bot@filter"
		cfg.BotPassword = "pw"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing username", func(c *Config) { c.Username = "" }, "username"},
		{"missing password", func(c *Config) { c.BotPassword = "" }, "bot_password"},
		{"missing api url", func(c *Config) { c.APIURL = "" }, "api_url"},
		{"negative timeout", func(c *Config) { c.HTTPTimeout = -time.Second }, "http_timeout"},
		{"missing category", func(c *Config) { c.Category.Name = "" }, "category.name"},
		{"zero page size", func(c *Config) { c.Category.PageSize = 0 }, "category.page_size"},
		{"empty pattern", func(c *Config) { c.Rewrite.MatchPattern = "" }, "rewrite.match_pattern"},
		{"bad pattern", func(c *Config) { c.Rewrite.MatchPattern = "{{delete(" }, "rewrite.match_pattern"},
		{"empty log page", func(c *Config) { c.Log.Page = "" }, "log.page"},
		{"empty marker", func(c *Config) { c.Log.Marker = "" }, "log.marker"},
		{"negative delay", func(c *Config) { c.Edit.Delay = -time.Second }, "edit.delay"},
		{"no attempts", func(c *Config) { c.Append.MaxAttempts = 0 }, "append_retry.max_attempts"},
		{"base above max", func(c *Config) { c.Append.BaseDelay = time.Minute }, "append_retry"},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			var cfgErr *ConfigError
			require.ErrorAs(t, cfg.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestResolve(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Username = "Bot@filter"
	cfg.BotPassword = "pw"

	// 17:30 UTC on the 18th is already the 19th in UTC+8.
	now := time.Date(2025, 6, 18, 17, 30, 0, 0, time.UTC)
	s, err := cfg.Resolve(now)
	require.NoError(t, err)

	assert.Equal(t, "2025/06/19", s.Date)
	assert.Equal(t, "Wikipedia:頁面存廢討論/記錄/2025/06/19", s.LogPage)
	assert.Equal(t, "{{vfd|转交佛祖西来提交的R7|date=2025/06/19}}\n", s.Replacement)
	assert.Equal(t, "<!-- FilterInappropriateCSD: batch insert point Bot@filter -->", s.Marker)
	assert.Equal(t, "快速删除候选", s.Category)
	assert.Equal(t, 20, s.PageSize)
	assert.True(t, s.Descending)
	assert.Equal(t, 3*time.Second, s.EditDelay)
	assert.Equal(t, time.Minute, s.HTTPTimeout)
	assert.Equal(t, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}, s.AppendRetry)
	assert.True(t, s.Pattern.MatchString("{{delete|R7}}\n"))
	assert.True(t, s.Pattern.MatchString("{{delete|r7}}\n"))
	assert.False(t, s.Pattern.MatchString("{{delete|R7}}"))
}

func TestResolve_PinnedDate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Username = "Bot@filter"
	cfg.BotPassword = "pw"
	cfg.Log.Date = "2024/12/31"

	s, err := cfg.Resolve(time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024/12/31", s.Date)
	assert.Equal(t, "Wikipedia:頁面存廢討論/記錄/2024/12/31", s.LogPage)
}

func TestResolve_Invalid(t *testing.T) {
	clearWikiEnv(t)
	_, err := DefaultConfig().Resolve(time.Now())
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
