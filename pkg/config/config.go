package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the watcher
type Config struct {
	// Pixiv credentials
	Pixiv PixivConfig `yaml:"pixiv" json:"pixiv"`

	// Feed traversal settings
	Watch WatchConfig `yaml:"watch" json:"watch"`

	// Notification sinks
	Notify NotifyConfig `yaml:"notify" json:"notify"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PixivConfig holds Pixiv-specific configuration
type PixivConfig struct {
	RefreshToken string `yaml:"refresh_token" json:"refresh_token"`
	UserAgent    string `yaml:"user_agent" json:"user_agent"`
}

// WatchConfig holds feed traversal configuration
type WatchConfig struct {
	// Dir is the working directory holding state.json, img.jpg and the
	// wake file. Defaults to the current directory.
	Dir string `yaml:"dir" json:"dir"`
	// PollDelaySeconds is the fixed delay between ticks.
	PollDelaySeconds int `yaml:"poll_delay_seconds" json:"poll_delay_seconds"`
	// MaxPages is the hard page-fetch ceiling per tick.
	MaxPages int `yaml:"max_pages" json:"max_pages"`
	// MinSkipPages is the minimum depth before the skip heuristic may trigger.
	MinSkipPages int `yaml:"min_skip_pages" json:"min_skip_pages"`
}

// NotifyConfig holds notification sink configuration
type NotifyConfig struct {
	// CallbackPath is an executable invoked with the change event as
	// positional arguments. Only used when the file exists and is executable.
	CallbackPath string `yaml:"callback_path" json:"callback_path"`
	// WebhookURL receives the change event as a JSON POST when set.
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
	// Desktop enables the platform desktop notification sink.
	Desktop bool `yaml:"desktop" json:"desktop"`
	// WakeFile names a file inside the watch dir; touching it wakes the
	// loop early. Empty disables the watch.
	WakeFile string `yaml:"wake_file" json:"wake_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with the default watcher settings
func DefaultConfig() *Config {
	return &Config{
		Pixiv: PixivConfig{},
		Watch: WatchConfig{
			Dir:              ".",
			PollDelaySeconds: 300,
			MaxPages:         5,
			MinSkipPages:     3,
		},
		Notify: NotifyConfig{
			CallbackPath: "./callback",
			WakeFile:     "notify",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// PollDelay returns the tick delay as a duration
func (c *WatchConfig) PollDelay() time.Duration {
	return time.Duration(c.PollDelaySeconds) * time.Second
}

// LoadFromEnv overrides configuration from PIXIVWATCH_* environment variables
func (c *Config) LoadFromEnv() {
	if token := os.Getenv("PIXIVWATCH_REFRESH_TOKEN"); token != "" {
		c.Pixiv.RefreshToken = token
	}
	if dir := os.Getenv("PIXIVWATCH_DIR"); dir != "" {
		c.Watch.Dir = dir
	}
	if delay := os.Getenv("PIXIVWATCH_POLL_DELAY"); delay != "" {
		if val, err := strconv.Atoi(delay); err == nil && val > 0 {
			c.Watch.PollDelaySeconds = val
		}
	}
	if pages := os.Getenv("PIXIVWATCH_MAX_PAGES"); pages != "" {
		if val, err := strconv.Atoi(pages); err == nil && val > 0 {
			c.Watch.MaxPages = val
		}
	}
	if pages := os.Getenv("PIXIVWATCH_MIN_SKIP_PAGES"); pages != "" {
		if val, err := strconv.Atoi(pages); err == nil && val > 0 {
			c.Watch.MinSkipPages = val
		}
	}
	if url := os.Getenv("PIXIVWATCH_WEBHOOK_URL"); url != "" {
		c.Notify.WebhookURL = url
	}
	if level := os.Getenv("PIXIVWATCH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // no config file, defaults apply
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		filepath.Join(c.Watch.Dir, "config.yaml"),
		".pixivwatch.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "pixivwatch", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".pixivwatch.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Invalid configuration is
// fatal at startup: the process does not enter the watch loop.
func (c *Config) Validate() error {
	var errs []error

	if c.Watch.PollDelaySeconds <= 0 {
		errs = append(errs, errors.New("poll delay must be positive"))
	}
	if c.Watch.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}
	if c.Watch.MinSkipPages <= 0 {
		errs = append(errs, errors.New("min skip pages must be positive"))
	}
	if c.Watch.Dir == "" {
		errs = append(errs, errors.New("watch directory is required"))
	}

	if c.Notify.WebhookURL != "" {
		u, err := url.Parse(c.Notify.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, errors.New("webhook URL must be a valid http(s) URL"))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// MergeFlags merges command line flag values into the configuration
func (c *Config) MergeFlags(flags map[string]interface{}) {
	if token, ok := flags["refresh-token"].(string); ok && token != "" {
		c.Pixiv.RefreshToken = token
	}
	if dir, ok := flags["dir"].(string); ok && dir != "" {
		c.Watch.Dir = dir
	}
	if delay, ok := flags["delay"].(int); ok && delay > 0 {
		c.Watch.PollDelaySeconds = delay
	}
	if pages, ok := flags["max-pages"].(int); ok && pages > 0 {
		c.Watch.MaxPages = pages
	}
	if pages, ok := flags["min-skip-pages"].(int); ok && pages > 0 {
		c.Watch.MinSkipPages = pages
	}
	if url, ok := flags["webhook-url"].(string); ok && url != "" {
		c.Notify.WebhookURL = url
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment variables > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".pixivwatch.env"))

	config := DefaultConfig()

	// The watch dir decides where findConfigFile looks, so dir overrides
	// must land before the config file is read. The full precedence chain
	// below still re-applies them over anything the file sets.
	if dir := os.Getenv("PIXIVWATCH_DIR"); dir != "" {
		config.Watch.Dir = dir
	}
	if dir, ok := flags["dir"].(string); ok && dir != "" {
		config.Watch.Dir = dir
	}

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config.LoadFromEnv()
	config.MergeFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
