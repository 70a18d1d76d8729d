// Package config loads hrmcheck run configuration from a YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/hrmcheck/pkg/harness"
)

// Config represents the configuration for one hrmcheck run
type Config struct {
	// BaseURL is the root of the application under test
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Credentials used by scenarios that log in
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Browsers to run every scenario on
	Browsers []string `yaml:"browsers" json:"browsers"`

	// Scenarios is a list of glob patterns selecting scenarios by name
	Scenarios []string `yaml:"scenarios" json:"scenarios"`

	// Browser settings
	Headless  bool             `yaml:"headless" json:"headless"`
	Viewport  harness.Viewport `yaml:"viewport" json:"viewport"`
	UserAgent string           `yaml:"user_agent" json:"user_agent"`

	// CI is set when running on a CI runner; it forces headless mode
	CI bool `yaml:"ci" json:"ci"`

	// SkipInstall disables browser acquisition when builds are preinstalled
	SkipInstall bool `yaml:"skip_install" json:"skip_install"`

	// Concurrency bounds the number of browser sessions run in parallel
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	Timeouts  TimeoutConfig  `yaml:"timeouts" json:"timeouts"`
	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`
	Logging   LoggingConfig  `yaml:"logging" json:"logging"`

	// ConfigFilePath is the file this config was loaded from, if any
	ConfigFilePath string `yaml:"-" json:"-"`
}

// CredentialsConfig holds the login used by authenticated scenarios
type CredentialsConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// TimeoutConfig defines the waits applied by scenarios and sessions
type TimeoutConfig struct {
	// Startup overrides the per-browser startup timeout, keyed by browser id
	Startup map[string]time.Duration `yaml:"startup" json:"startup"`

	// Action bounds navigation, clicks and fills
	Action time.Duration `yaml:"action" json:"action"`

	// Wait bounds element and marker waits
	Wait time.Duration `yaml:"wait" json:"wait"`

	// Interstitial bounds the search for the tunnelling warning page
	Interstitial time.Duration `yaml:"interstitial" json:"interstitial"`

	// Absence is how long a marker must stay away to count as absent
	Absence time.Duration `yaml:"absence" json:"absence"`

	// Run bounds the whole run; zero means no limit
	Run time.Duration `yaml:"run" json:"run"`
}

// ArtifactConfig defines where screenshots and reports are written
type ArtifactConfig struct {
	// Dir receives {step}-{browser}.png screenshots
	Dir string `yaml:"dir" json:"dir"`

	// ReportDir receives the run report; empty disables reports
	ReportDir string `yaml:"report_dir" json:"report_dir"`

	// Individual format flags
	JSON     bool `yaml:"json" json:"json"`
	Markdown bool `yaml:"markdown" json:"markdown"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls console output: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// Level is the log file threshold: debug, info, warn, error
	Level string `yaml:"level" json:"level"`

	// Dir is where the run log file is written
	Dir string `yaml:"dir" json:"dir"`
}

// ciBrowsers are the browsers available on Linux CI runners; Edge is usually
// not installed there.
var ciBrowsers = []string{string(harness.Chrome), string(harness.Firefox)}

// DefaultConfig returns a default configuration suitable for most use cases
func DefaultConfig() *Config {
	return &Config{
		Headless: true,
		Viewport: harness.Viewport{
			Width:  harness.DefaultViewportWidth,
			Height: harness.DefaultViewportHeight,
		},
		UserAgent:   harness.DefaultUserAgent,
		Concurrency: 3,
		Timeouts: TimeoutConfig{
			Startup:      map[string]time.Duration{},
			Action:       harness.DefaultActionTimeout,
			Wait:         30 * time.Second,
			Interstitial: 10 * time.Second,
			Absence:      3 * time.Second,
		},
		Artifacts: ArtifactConfig{
			Dir:      ".",
			JSON:     true,
			Markdown: true,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
			Level:     "info",
		},
	}
}

// LoadFile loads configuration from a YAML file on top of DefaultConfig
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.ConfigFilePath = path

	return config, nil
}

// Normalize applies the CI rules and fills the browser list. It is called
// after every source has been merged and before Validate.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")

	if c.CI {
		c.Headless = true
	}

	if len(c.Browsers) == 0 {
		if c.CI {
			c.Browsers = append([]string(nil), ciBrowsers...)
		} else {
			for _, id := range harness.SupportedBrowsers() {
				c.Browsers = append(c.Browsers, string(id))
			}
		}
	}

	if len(c.Scenarios) == 0 {
		c.Scenarios = []string{"**"}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required (set BASE_URL or base_url in the config file)")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base_url %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base_url %q: missing host", c.BaseURL)
	}

	if _, err := c.BrowserIDs(); err != nil {
		return err
	}

	for browser := range c.Timeouts.Startup {
		if _, err := harness.ParseBrowserID(browser); err != nil {
			return fmt.Errorf("invalid startup timeout: %w", err)
		}
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	if c.Timeouts.Action < 0 || c.Timeouts.Wait < 0 || c.Timeouts.Interstitial < 0 ||
		c.Timeouts.Absence < 0 || c.Timeouts.Run < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}

	for _, d := range c.Timeouts.Startup {
		if d < 0 {
			return fmt.Errorf("timeouts cannot be negative")
		}
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}

	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// BrowserIDs parses the configured browser list.
func (c *Config) BrowserIDs() ([]harness.BrowserID, error) {
	if len(c.Browsers) == 0 {
		return nil, fmt.Errorf("at least one browser is required")
	}

	ids := make([]harness.BrowserID, 0, len(c.Browsers))
	seen := make(map[harness.BrowserID]bool)
	for _, name := range c.Browsers {
		id, err := harness.ParseBrowserID(name)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// SessionOptions builds the harness options for one browser.
func (c *Config) SessionOptions(id harness.BrowserID) harness.Options {
	return harness.Options{
		Browser:        id,
		Name:           string(id),
		Headless:       c.Headless,
		Viewport:       c.Viewport,
		UserAgent:      c.UserAgent,
		StartupTimeout: c.Timeouts.Startup[string(id)],
		ActionTimeout:  c.Timeouts.Action,
		ArtifactDir:    c.Artifacts.Dir,
	}
}

// LoginCredentials returns the configured credentials in harness form.
func (c *Config) LoginCredentials() harness.Credentials {
	return harness.Credentials{
		Username: c.Credentials.Username,
		Password: c.Credentials.Password,
	}
}
