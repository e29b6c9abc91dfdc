package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ".", cfg.Watch.Dir)
	assert.Equal(t, 300, cfg.Watch.PollDelaySeconds)
	assert.Equal(t, 5, cfg.Watch.MaxPages)
	assert.Equal(t, 3, cfg.Watch.MinSkipPages)
	assert.Equal(t, "./callback", cfg.Notify.CallbackPath)
	assert.Equal(t, "notify", cfg.Notify.WakeFile)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 5*time.Minute, cfg.Watch.PollDelay())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
pixiv:
  refresh_token: token-from-file
watch:
  dir: /tmp/pixiv
  poll_delay_seconds: 60
  max_pages: 10
notify:
  webhook_url: https://example.com/hook
  desktop: true
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "token-from-file", cfg.Pixiv.RefreshToken)
	assert.Equal(t, "/tmp/pixiv", cfg.Watch.Dir)
	assert.Equal(t, 60, cfg.Watch.PollDelaySeconds)
	assert.Equal(t, 10, cfg.Watch.MaxPages)
	assert.Equal(t, 3, cfg.Watch.MinSkipPages, "unset keys keep defaults")
	assert.Equal(t, "https://example.com/hook", cfg.Notify.WebhookURL)
	assert.True(t, cfg.Notify.Desktop)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watch: [not a map"), 0644))

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PIXIVWATCH_REFRESH_TOKEN", "env-token")
	t.Setenv("PIXIVWATCH_POLL_DELAY", "45")
	t.Setenv("PIXIVWATCH_MAX_PAGES", "7")
	t.Setenv("PIXIVWATCH_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, "env-token", cfg.Pixiv.RefreshToken)
	assert.Equal(t, 45, cfg.Watch.PollDelaySeconds)
	assert.Equal(t, 7, cfg.Watch.MaxPages)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("PIXIVWATCH_POLL_DELAY", "not-a-number")
	t.Setenv("PIXIVWATCH_MAX_PAGES", "-3")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, 300, cfg.Watch.PollDelaySeconds)
	assert.Equal(t, 5, cfg.Watch.MaxPages)
}

func TestMergeFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeFlags(map[string]interface{}{
		"dir":            "/data/pixiv",
		"delay":          120,
		"min-skip-pages": 2,
		"webhook-url":    "http://localhost:9000/hook",
	})

	assert.Equal(t, "/data/pixiv", cfg.Watch.Dir)
	assert.Equal(t, 120, cfg.Watch.PollDelaySeconds)
	assert.Equal(t, 2, cfg.Watch.MinSkipPages)
	assert.Equal(t, "http://localhost:9000/hook", cfg.Notify.WebhookURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero poll delay",
			mutate:  func(c *Config) { c.Watch.PollDelaySeconds = 0 },
			wantErr: "poll delay must be positive",
		},
		{
			name:    "negative max pages",
			mutate:  func(c *Config) { c.Watch.MaxPages = -1 },
			wantErr: "max pages must be positive",
		},
		{
			name:    "empty dir",
			mutate:  func(c *Config) { c.Watch.Dir = "" },
			wantErr: "watch directory is required",
		},
		{
			name:    "bad webhook scheme",
			mutate:  func(c *Config) { c.Notify.WebhookURL = "ftp://example.com" },
			wantErr: "webhook URL must be a valid http(s) URL",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.PollDelaySeconds = 0
	cfg.Watch.MaxPages = 0
	cfg.Logging.Level = "noisy"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll delay must be positive")
	assert.Contains(t, err.Error(), "max pages must be positive")
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLoadFindsConfigInDirFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watch:\n  poll_delay_seconds: 42\n"), 0644))

	cfg, err := Load("", map[string]interface{}{"dir": dir})
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Watch.PollDelaySeconds, "config.yaml inside the watch dir must be honored")
	assert.Equal(t, dir, cfg.Watch.Dir)
}

func TestLoadFindsConfigInEnvDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watch:\n  max_pages: 9\n"), 0644))

	t.Setenv("PIXIVWATCH_DIR", dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Watch.MaxPages)
	assert.Equal(t, dir, cfg.Watch.Dir)
}

func TestLoadDirFlagBeatsFileDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watch:\n  dir: /somewhere/else\n"), 0644))

	cfg, err := Load("", map[string]interface{}{"dir": dir})
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Watch.Dir, "the dir flag wins over the file's own dir key")
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watch:\n  poll_delay_seconds: 60\n"), 0644))

	t.Setenv("PIXIVWATCH_POLL_DELAY", "90")

	cfg, err := Load(path, map[string]interface{}{"delay": 120})
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Watch.PollDelaySeconds, "flags win over env and file")

	cfg, err = Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Watch.PollDelaySeconds, "env wins over file")
}
