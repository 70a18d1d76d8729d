package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv
const (
	EnvBaseURL      = "BASE_URL"
	EnvUsername     = "TEST_USERNAME"
	EnvPassword     = "TEST_PASSWORD"
	EnvCI           = "CI"
	EnvBrowsers     = "BROWSERS"
	EnvHeadless     = "HEADLESS"
	EnvPreinstalled = "PLAYWRIGHT_PREINSTALLED"
	EnvArtifactDir  = "ARTIFACT_DIR"
	EnvWaitTimeout  = "WAIT_TIMEOUT"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads variables from the first of paths that exists into the
// process environment. Variables already set are not overridden. It returns
// the file loaded, or "" when none exists.
func LoadDotEnv(paths ...string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return "", fmt.Errorf("failed to load %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}

// ReadDotEnv parses a .env file without touching the process environment.
func ReadDotEnv(path string) (LookupFunc, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}, nil
}

// ApplyEnv overlays environment variables onto the configuration. Unset and
// empty variables leave the current value alone.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvBaseURL); ok {
		c.BaseURL = v
	}
	if v, ok := get(EnvUsername); ok {
		c.Credentials.Username = v
	}
	if v, ok := get(EnvPassword); ok {
		c.Credentials.Password = v
	}
	if v, ok := get(EnvCI); ok {
		// CI runners export CI=true; anything else is treated as a local run
		c.CI = v == "true"
	}
	if v, ok := get(EnvBrowsers); ok {
		c.Browsers = splitList(v)
	}
	if v, ok := get(EnvHeadless); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.Headless = b
	}
	if v, ok := get(EnvPreinstalled); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPreinstalled, err)
		}
		c.SkipInstall = b
	}
	if v, ok := get(EnvArtifactDir); ok {
		c.Artifacts.Dir = v
	}
	if v, ok := get(EnvWaitTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWaitTimeout, err)
		}
		c.Timeouts.Wait = d
	}

	return nil
}

// splitList splits a comma or space separated list, dropping empty items.
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Load builds the run configuration from an optional YAML file and the
// environment, then normalizes it. The caller validates after applying any
// command line overrides.
func Load(path string, lookup LookupFunc) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if lookup != nil {
		if err := config.ApplyEnv(lookup); err != nil {
			return nil, err
		}
	}

	config.Normalize()
	return config, nil
}
