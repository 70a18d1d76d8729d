package harness

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightDriver runs sessions through a single Playwright driver process.
// The process is started lazily by the first Launch.
type PlaywrightDriver struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	verbose bool
	output  io.Writer
}

// NewPlaywrightDriver creates a driver. Installer output goes to output, or
// is discarded when output is nil.
func NewPlaywrightDriver(output io.Writer) *PlaywrightDriver {
	if output == nil {
		output = io.Discard
	}
	return &PlaywrightDriver{
		output:  output,
		verbose: output != io.Discard,
	}
}

func (d *PlaywrightDriver) runOptions(browsers []string) *playwright.RunOptions {
	return &playwright.RunOptions{
		Browsers: browsers,
		Verbose:  d.verbose,
		Stdout:   d.output,
		Stderr:   d.output,
	}
}

// Install downloads the Playwright driver and the named browser builds.
// Builds already present are left alone.
func (d *PlaywrightDriver) Install(targets []string) error {
	if err := playwright.Install(d.runOptions(targets)); err != nil {
		return fmt.Errorf("failed to install playwright browsers %v: %w", targets, err)
	}
	return nil
}

// start runs the driver process once.
func (d *PlaywrightDriver) start() (*playwright.Playwright, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pw != nil {
		return d.pw, nil
	}

	opts := d.runOptions(nil)
	opts.SkipInstallBrowsers = true
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	d.pw = pw
	return pw, nil
}

// Launch starts a browser for plan with a fresh context and page.
func (d *PlaywrightDriver) Launch(plan LaunchPlan) (Page, error) {
	pw, err := d.start()
	if err != nil {
		return nil, err
	}

	var browserType playwright.BrowserType
	switch plan.Kind {
	case KindChromium:
		browserType = pw.Chromium
	case KindFirefox:
		browserType = pw.Firefox
	default:
		return nil, fmt.Errorf("unsupported engine kind: %s", plan.Kind)
	}

	// Launch browser
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(plan.Headless),
		Args:     plan.Args,
		Timeout:  millis(plan.StartupTimeout),
	}
	if plan.Channel != "" {
		launchOpts.Channel = playwright.String(plan.Channel)
	}
	if len(plan.FirefoxPrefs) > 0 {
		launchOpts.FirefoxUserPrefs = plan.FirefoxPrefs
	}
	browser, err := browserType.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", plan.Browser, err)
	}

	// Create context; each context is its own temp profile
	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  plan.Viewport.Width,
			Height: plan.Viewport.Height,
		},
		UserAgent:        playwright.String(plan.UserAgent),
		ExtraHttpHeaders: plan.Headers,
	}
	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	// Create page
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if plan.ActionTimeout > 0 {
		page.SetDefaultTimeout(float64(plan.ActionTimeout.Milliseconds()))
	}

	return &playwrightPage{browser: browser, context: bctx, page: page}, nil
}

// Stop shuts down the driver process.
func (d *PlaywrightDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pw == nil {
		return nil
	}
	err := d.pw.Stop()
	d.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// playwrightPage adapts a Playwright page to Page.
type playwrightPage struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func (p *playwrightPage) locate(loc Locator) playwright.Locator {
	return p.page.Locator(loc.Selector()).First()
}

func (p *playwrightPage) Goto(url string, timeout time.Duration) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{Timeout: millis(timeout)})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", mapTimeout(err))
	}
	return nil
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) WaitFor(loc Locator, state ElementState, timeout time.Duration) error {
	var pwState *playwright.WaitForSelectorState
	switch state {
	case StateAttached:
		pwState = playwright.WaitForSelectorStateAttached
	case StateDetached:
		pwState = playwright.WaitForSelectorStateDetached
	case StateHidden:
		pwState = playwright.WaitForSelectorStateHidden
	default:
		pwState = playwright.WaitForSelectorStateVisible
	}

	err := p.locate(loc).WaitFor(playwright.LocatorWaitForOptions{
		State:   pwState,
		Timeout: millis(timeout),
	})
	if err != nil {
		return fmt.Errorf("wait for %s to be %s failed: %w", loc, state, mapTimeout(err))
	}
	return nil
}

func (p *playwrightPage) Click(loc Locator, timeout time.Duration) error {
	if err := p.locate(loc).Click(playwright.LocatorClickOptions{Timeout: millis(timeout)}); err != nil {
		return fmt.Errorf("click %s failed: %w", loc, mapTimeout(err))
	}
	return nil
}

func (p *playwrightPage) Fill(loc Locator, value string, timeout time.Duration) error {
	if err := p.locate(loc).Fill(value, playwright.LocatorFillOptions{Timeout: millis(timeout)}); err != nil {
		return fmt.Errorf("fill %s failed: %w", loc, mapTimeout(err))
	}
	return nil
}

func (p *playwrightPage) InnerTexts(loc Locator) ([]string, error) {
	texts, err := p.page.Locator(loc.Selector()).AllInnerTexts()
	if err != nil {
		return nil, fmt.Errorf("text extraction failed: %w", err)
	}
	return texts, nil
}

func (p *playwrightPage) Attribute(loc Locator, name string) (string, bool, error) {
	first := p.locate(loc)
	count, err := p.page.Locator(loc.Selector()).Count()
	if err != nil {
		return "", false, fmt.Errorf("selector query failed: %w", err)
	}
	if count == 0 {
		return "", false, nil
	}
	// GetAttribute reports a missing attribute as "", so read it in the page
	// where null and "" differ.
	raw, err := first.Evaluate("(el, name) => el.getAttribute(name)", name)
	if err != nil {
		return "", false, fmt.Errorf("attribute read failed: %w", mapTimeout(err))
	}
	value, found := attributeValue(raw)
	return value, found, nil
}

// attributeValue converts the result of el.getAttribute; null means the
// attribute is not set.
func attributeValue(raw interface{}) (string, bool) {
	if raw == nil {
		return "", false
	}
	if value, ok := raw.(string); ok {
		return value, true
	}
	return fmt.Sprint(raw), true
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	return nil
}

// Close releases page, context and browser. All three are attempted.
func (p *playwrightPage) Close() error {
	var errs []error
	if err := p.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.context.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func millis(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// mapTimeout rewrites Playwright timeouts to ErrWaitTimeout so callers do not
// depend on the backend's error types.
func mapTimeout(err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrWaitTimeout, err)
	}
	return err
}
