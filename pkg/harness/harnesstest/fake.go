// Package harnesstest provides an in-memory harness.Driver for unit tests.
//
// Pages are HTML fixtures held in a Site and queried with goquery. Clicking an
// element runs the handler registered for it with Site.OnClick, or follows the
// element's href when it is a link. Nothing is rendered; an element counts as
// visible unless it or an ancestor has the hidden attribute or an inline
// display:none style.
package harnesstest

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/entrhq/hrmcheck/pkg/harness"
)

// DefaultBaseURL is the origin fake sites are served from.
const DefaultBaseURL = "http://hrm.test"

// ClickHandler reacts to a click on a page.
type ClickHandler func(p *Page)

type clickKey struct {
	path    string
	locator harness.Locator
}

// Site is a set of HTML fixtures keyed by URL path.
type Site struct {
	BaseURL string

	mu       sync.RWMutex
	pages    map[string]string
	handlers map[clickKey]ClickHandler
}

// NewSite creates an empty site served from DefaultBaseURL.
func NewSite() *Site {
	return &Site{
		BaseURL:  DefaultBaseURL,
		pages:    make(map[string]string),
		handlers: make(map[clickKey]ClickHandler),
	}
}

// Handle serves html at path.
func (s *Site) Handle(path, html string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = html
	return s
}

// OnClick registers fn for clicks on loc while the page at path is loaded.
func (s *Site) OnClick(path string, loc harness.Locator, fn ClickHandler) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[clickKey{path: path, locator: loc}] = fn
	return s
}

// URL returns the absolute URL of path.
func (s *Site) URL(path string) string {
	return strings.TrimRight(s.BaseURL, "/") + path
}

func (s *Site) page(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	html, ok := s.pages[path]
	return html, ok
}

func (s *Site) handler(path string, loc harness.Locator) (ClickHandler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.handlers[clickKey{path: path, locator: loc}]
	return fn, ok
}

// Driver is a fake harness.Driver whose pages browse a Site.
type Driver struct {
	Site *Site

	// LaunchDelay makes Launch block before returning
	LaunchDelay time.Duration

	// LaunchErr is returned by Launch when set
	LaunchErr error

	// InstallDelay makes Install block before returning
	InstallDelay time.Duration

	// InstallErr is returned by Install when set
	InstallErr error

	mu       sync.Mutex
	installs []string
	plans    []harness.LaunchPlan
	pages    []*Page
	stopped  bool
}

// NewDriver creates a driver serving site.
func NewDriver(site *Site) *Driver {
	return &Driver{Site: site}
}

// Install records the requested targets.
func (d *Driver) Install(targets []string) error {
	if d.InstallDelay > 0 {
		time.Sleep(d.InstallDelay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.installs = append(d.installs, targets...)
	return d.InstallErr
}

// Launch records plan and opens a page on about:blank.
func (d *Driver) Launch(plan harness.LaunchPlan) (harness.Page, error) {
	if d.LaunchDelay > 0 {
		time.Sleep(d.LaunchDelay)
	}
	if d.LaunchErr != nil {
		return nil, d.LaunchErr
	}

	page := &Page{site: d.Site, url: "about:blank"}
	page.doc, _ = goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))

	d.mu.Lock()
	defer d.mu.Unlock()
	d.plans = append(d.plans, plan)
	d.pages = append(d.pages, page)
	return page, nil
}

// Stop marks the driver stopped.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

// Installs returns every install target requested so far.
func (d *Driver) Installs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.installs...)
}

// Plans returns every plan launched so far.
func (d *Driver) Plans() []harness.LaunchPlan {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]harness.LaunchPlan(nil), d.plans...)
}

// Pages returns every page launched so far.
func (d *Driver) Pages() []*Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Page(nil), d.pages...)
}

// OpenPages counts launched pages not yet closed.
func (d *Driver) OpenPages() int {
	open := 0
	for _, p := range d.Pages() {
		if !p.Closed() {
			open++
		}
	}
	return open
}

// Stopped reports whether Stop was called.
func (d *Driver) Stopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// ErrPageClosed is returned by operations on a closed page.
var ErrPageClosed = errors.New("page closed")

// waitStep is how often WaitFor re-checks the document.
const waitStep = 5 * time.Millisecond

// Page is a fake harness.Page over a goquery document.
type Page struct {
	site *Site

	// FailScreenshot makes Screenshot return an error
	FailScreenshot bool

	mu          sync.Mutex
	url         string
	path        string
	doc         *goquery.Document
	closed      bool
	screenshots []string
	clicks      []harness.Locator
}

// Navigate loads the site page at path as a link or redirect would.
func (p *Page) Navigate(path string) error {
	return p.Goto(p.site.URL(path), 0)
}

// Goto loads rawURL, which must belong to the page's site.
func (p *Page) Goto(rawURL string, _ time.Duration) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	html, ok := p.site.page(path)
	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPageClosed
	}
	p.url = p.site.URL(path)
	p.path = path
	p.doc = doc
	return nil
}

// URL returns the loaded URL.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Path returns the path of the loaded page.
func (p *Page) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path
}

// first returns the first match of loc; visibleOnly skips hidden matches.
// Callers hold p.mu.
func (p *Page) first(loc harness.Locator, visibleOnly bool) *goquery.Selection {
	var found *goquery.Selection
	p.doc.Find(loc.CSS()).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if visibleOnly && !visible(sel) {
			return true
		}
		found = sel
		return false
	})
	return found
}

func (p *Page) satisfied(loc harness.Locator, state harness.ElementState) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ErrPageClosed
	}

	switch state {
	case harness.StateAttached:
		return p.doc.Find(loc.CSS()).Length() > 0, nil
	case harness.StateDetached:
		return p.doc.Find(loc.CSS()).Length() == 0, nil
	case harness.StateHidden:
		return p.first(loc, true) == nil, nil
	default:
		return p.first(loc, true) != nil, nil
	}
}

// WaitFor polls the document until loc reaches state or timeout passes.
func (p *Page) WaitFor(loc harness.Locator, state harness.ElementState, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := p.satisfied(loc, state)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s not %s after %s", harness.ErrWaitTimeout, loc, state, timeout)
		}
		time.Sleep(waitStep)
	}
}

// Click runs the handler registered for loc, or follows the element's href.
func (p *Page) Click(loc harness.Locator, timeout time.Duration) error {
	if err := p.WaitFor(loc, harness.StateVisible, timeout); err != nil {
		return fmt.Errorf("click %s failed: %w", loc, err)
	}

	p.mu.Lock()
	sel := p.first(loc, true)
	if sel == nil {
		p.mu.Unlock()
		return fmt.Errorf("click %s failed: element detached", loc)
	}
	path := p.path
	href, isLink := sel.Attr("href")
	p.clicks = append(p.clicks, loc)
	p.mu.Unlock()

	if fn, ok := p.site.handler(path, loc); ok {
		fn(p)
		return nil
	}
	if isLink && strings.HasPrefix(href, "/") {
		return p.Navigate(href)
	}
	return nil
}

// Fill sets the value attribute of the first visible match of loc.
func (p *Page) Fill(loc harness.Locator, value string, timeout time.Duration) error {
	if err := p.WaitFor(loc, harness.StateVisible, timeout); err != nil {
		return fmt.Errorf("fill %s failed: %w", loc, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.first(loc, true)
	if sel == nil || !sel.Is("input, textarea") {
		return fmt.Errorf("fill %s failed: not an input", loc)
	}
	sel.SetAttr("value", value)
	return nil
}

// InnerTexts returns the trimmed text of every match of loc.
func (p *Page) InnerTexts(loc harness.Locator) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPageClosed
	}

	var texts []string
	p.doc.Find(loc.CSS()).Each(func(_ int, sel *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(sel.Text()))
	})
	return texts, nil
}

// Attribute reads name from the first match of loc.
func (p *Page) Attribute(loc harness.Locator, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", false, ErrPageClosed
	}

	sel := p.first(loc, false)
	if sel == nil {
		return "", false, nil
	}
	value, ok := sel.Attr(name)
	return value, ok, nil
}

// Content serializes the current document.
func (p *Page) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrPageClosed
	}
	return p.doc.Html()
}

// Screenshot writes a placeholder file naming the loaded URL.
func (p *Page) Screenshot(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPageClosed
	}
	if p.FailScreenshot {
		return errors.New("screenshot failed: target crashed")
	}
	if err := os.WriteFile(path, []byte("fake screenshot of "+p.url), 0644); err != nil {
		return err
	}
	p.screenshots = append(p.screenshots, path)
	return nil
}

// Close marks the page closed. Closing twice is an error, as it is for a
// real browser.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPageClosed
	}
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Screenshots returns the paths written so far.
func (p *Page) Screenshots() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.screenshots...)
}

// Clicks returns the locators clicked so far.
func (p *Page) Clicks() []harness.Locator {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]harness.Locator(nil), p.clicks...)
}

// Value returns the value attribute of the first match of css.
func (p *Page) Value(css string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	value, _ := p.doc.Find(css).First().Attr("value")
	return value
}

// Show removes the hidden attribute from every match of css.
func (p *Page) Show(css string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(css).RemoveAttr("hidden")
}

// Hide sets the hidden attribute on every match of css.
func (p *Page) Hide(css string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(css).SetAttr("hidden", "")
}

// SetText replaces the text of every match of css.
func (p *Page) SetText(css, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(css).SetText(text)
}

// visible reports whether neither sel nor an ancestor is hidden.
func visible(sel *goquery.Selection) bool {
	if hidden(sel) {
		return false
	}
	isHidden := false
	sel.Parents().EachWithBreak(func(_ int, parent *goquery.Selection) bool {
		isHidden = hidden(parent)
		return !isHidden
	})
	return !isHidden
}

func hidden(sel *goquery.Selection) bool {
	if _, ok := sel.Attr("hidden"); ok {
		return true
	}
	style, _ := sel.Attr("style")
	return strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none")
}
