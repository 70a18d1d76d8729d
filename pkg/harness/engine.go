package harness

import (
	"fmt"
	"time"
)

// EngineKind is the Playwright browser type a plan launches.
type EngineKind string

const (
	KindChromium EngineKind = "chromium"
	KindFirefox  EngineKind = "firefox"
)

// ElementState is the DOM state a Page.WaitFor call waits for.
type ElementState string

const (
	StateAttached ElementState = "attached"
	StateDetached ElementState = "detached"
	StateVisible  ElementState = "visible"
	StateHidden   ElementState = "hidden"
)

// LaunchPlan is everything a Driver needs to start one browser session.
type LaunchPlan struct {
	Browser        BrowserID
	Kind           EngineKind
	Channel        string
	Headless       bool
	Args           []string
	FirefoxPrefs   map[string]interface{}
	UserAgent      string
	Headers        map[string]string
	Viewport       Viewport
	StartupTimeout time.Duration
	ActionTimeout  time.Duration
}

// Engine is one variant of the per-browser factory. Each variant owns the
// option set for its browser.
type Engine interface {
	// ID returns the browser identifier this engine serves
	ID() BrowserID

	// InstallTarget names the browser build the driver must acquire
	InstallTarget() string

	// DefaultStartupTimeout is used when Options.StartupTimeout is zero
	DefaultStartupTimeout() time.Duration

	// Plan builds the launch plan for opts
	Plan(opts Options) LaunchPlan
}

// Driver is the automation backend shared by all sessions of a Manager.
type Driver interface {
	// Install acquires the named browser builds if they are not present
	Install(targets []string) error

	// Launch starts a browser with its own context and page
	Launch(plan LaunchPlan) (Page, error)

	// Stop shuts the backend down
	Stop() error
}

// Page is the live page of one session. Close releases the page, its
// context and the browser process behind it.
type Page interface {
	Goto(url string, timeout time.Duration) error
	URL() string
	WaitFor(loc Locator, state ElementState, timeout time.Duration) error
	Click(loc Locator, timeout time.Duration) error
	Fill(loc Locator, value string, timeout time.Duration) error
	InnerTexts(loc Locator) ([]string, error)
	Attribute(loc Locator, name string) (string, bool, error)
	Content() (string, error)
	Screenshot(path string) error
	Close() error
}

// EngineFor returns the engine variant for id.
func EngineFor(id BrowserID) (Engine, error) {
	switch id {
	case Chrome:
		return chromeEngine{}, nil
	case Firefox:
		return firefoxEngine{}, nil
	case Edge:
		return edgeEngine{}, nil
	default:
		return nil, fmt.Errorf("unsupported browser: %q", id)
	}
}

// basePlan copies the engine-independent fields of opts into a plan.
func basePlan(id BrowserID, kind EngineKind, opts Options) LaunchPlan {
	return LaunchPlan{
		Browser:        id,
		Kind:           kind,
		Headless:       opts.Headless,
		UserAgent:      opts.UserAgent,
		Headers:        map[string]string{SkipWarningHeader: "true"},
		Viewport:       opts.Viewport,
		StartupTimeout: opts.StartupTimeout,
		ActionTimeout:  opts.ActionTimeout,
	}
}

// chromiumArgs is the flag set shared by Chromium-based engines. The sandbox
// and shm flags are required inside containers.
func chromiumArgs(opts Options) []string {
	return []string{
		"--disable-gpu",
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-blink-features=AutomationControlled",
		fmt.Sprintf("--window-size=%d,%d", opts.Viewport.Width, opts.Viewport.Height),
		"--user-agent=" + opts.UserAgent,
	}
}

type chromeEngine struct{}

func (chromeEngine) ID() BrowserID                        { return Chrome }
func (chromeEngine) InstallTarget() string                { return "chromium" }
func (chromeEngine) DefaultStartupTimeout() time.Duration { return 30 * time.Second }

func (e chromeEngine) Plan(opts Options) LaunchPlan {
	plan := basePlan(Chrome, KindChromium, opts)
	plan.Args = chromiumArgs(opts)
	return plan
}

type edgeEngine struct{}

func (edgeEngine) ID() BrowserID                        { return Edge }
func (edgeEngine) InstallTarget() string                { return "msedge" }
func (edgeEngine) DefaultStartupTimeout() time.Duration { return 30 * time.Second }

func (e edgeEngine) Plan(opts Options) LaunchPlan {
	plan := basePlan(Edge, KindChromium, opts)
	plan.Channel = "msedge"
	plan.Args = chromiumArgs(opts)
	return plan
}

type firefoxEngine struct{}

func (firefoxEngine) ID() BrowserID         { return Firefox }
func (firefoxEngine) InstallTarget() string { return "firefox" }

// Firefox cold starts on CI runners have been observed to take minutes.
func (firefoxEngine) DefaultStartupTimeout() time.Duration { return 300 * time.Second }

func (e firefoxEngine) Plan(opts Options) LaunchPlan {
	plan := basePlan(Firefox, KindFirefox, opts)
	plan.FirefoxPrefs = map[string]interface{}{
		"general.useragent.override": opts.UserAgent,
	}
	return plan
}
