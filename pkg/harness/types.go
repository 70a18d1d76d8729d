package harness

import (
	"fmt"
	"strings"
	"time"
)

// BrowserID identifies one of the supported browser engines.
type BrowserID string

const (
	// Chrome runs Playwright's Chromium build
	Chrome BrowserID = "chrome"

	// Firefox runs Playwright's Firefox build
	Firefox BrowserID = "firefox"

	// Edge runs Chromium through the installed Microsoft Edge channel
	Edge BrowserID = "edge"
)

// SupportedBrowsers returns every browser identifier the engine factory knows.
func SupportedBrowsers() []BrowserID {
	return []BrowserID{Chrome, Firefox, Edge}
}

// ParseBrowserID converts a user-supplied name into a BrowserID.
func ParseBrowserID(name string) (BrowserID, error) {
	id := BrowserID(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range SupportedBrowsers() {
		if id == known {
			return id, nil
		}
	}
	return "", fmt.Errorf("unsupported browser: %q", name)
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Credentials is the username/password pair typed into a login form.
type Credentials struct {
	Username string
	Password string
}

// Options configures a new browser session. It is copied into the session
// and never modified afterwards.
type Options struct {
	// Browser selects the engine variant
	Browser BrowserID

	// Name labels the session in logs; defaults to the browser id
	Name string

	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the fixed window and viewport size
	Viewport Viewport

	// UserAgent replaces the browser user agent
	UserAgent string

	// StartupTimeout bounds driver and browser start; zero uses the engine default
	StartupTimeout time.Duration

	// ActionTimeout bounds navigation, clicks and fills
	ActionTimeout time.Duration

	// ArtifactDir is where screenshots are written
	ArtifactDir string
}

// Default values for session options
const (
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultActionTimeout  = 30 * time.Second
	DefaultWaitTimeout    = 15 * time.Second
	DefaultMaxSessions    = 8

	// DefaultUserAgent carries the ngrok skip marker so tunnelled apps do not
	// serve their warning page.
	DefaultUserAgent = "Mozilla/5.0 (ngrok-skip-browser-warning)"

	// SkipWarningHeader is sent on every request for the same reason.
	SkipWarningHeader = "ngrok-skip-browser-warning"
)

// withDefaults fills zero fields from the engine and package defaults.
func (o Options) withDefaults(engine Engine) Options {
	if o.Name == "" {
		o.Name = string(o.Browser)
	}
	if o.Viewport.Width == 0 {
		o.Viewport.Width = DefaultViewportWidth
	}
	if o.Viewport.Height == 0 {
		o.Viewport.Height = DefaultViewportHeight
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.StartupTimeout == 0 {
		o.StartupTimeout = engine.DefaultStartupTimeout()
	}
	if o.ActionTimeout == 0 {
		o.ActionTimeout = DefaultActionTimeout
	}
	if o.ArtifactDir == "" {
		o.ArtifactDir = "."
	}
	return o
}

// validate checks option ranges after defaults are applied.
func (o Options) validate() error {
	if o.Viewport.Width < 100 || o.Viewport.Width > 5000 {
		return fmt.Errorf("viewport width must be between 100 and 5000 pixels")
	}
	if o.Viewport.Height < 100 || o.Viewport.Height > 5000 {
		return fmt.Errorf("viewport height must be between 100 and 5000 pixels")
	}
	if o.StartupTimeout < 0 || o.ActionTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	return nil
}

// SessionInfo contains metadata about a live browser session.
type SessionInfo struct {
	Name       string
	Browser    BrowserID
	State      State
	CurrentURL string
	Headless   bool
	CreatedAt  time.Time
	LastUsedAt time.Time
}
