package harness

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Session represents an active browser session with its associated resources.
// It is owned by exactly one test case and released exactly once.
type Session struct {
	// Name labels the session in logs
	Name string

	// Browser is the engine this session runs on
	Browser BrowserID

	// Headless indicates if the browser is running in headless mode
	Headless bool

	// CreatedAt is the timestamp when the session was created
	CreatedAt time.Time

	opts    Options
	page    Page
	manager *Manager
	logger  Logger

	mu         sync.Mutex
	state      State
	lastUsedAt time.Time
	currentURL string
	screenshot string

	releaseOnce sync.Once
	releaseErr  error
}

func newSession(m *Manager, opts Options, page Page) *Session {
	now := time.Now()
	return &Session{
		Name:       opts.Name,
		Browser:    opts.Browser,
		Headless:   opts.Headless,
		CreatedAt:  now,
		opts:       opts,
		page:       page,
		manager:    m,
		logger:     m.logger,
		state:      Provisioned,
		lastUsedAt: now,
		currentURL: "about:blank",
	}
}

// Options returns the options the session was created with.
func (s *Session) Options() Options {
	return s.opts
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ScreenshotPath returns the path of the screenshot written on release, or ""
// when the session is still live or the capture failed.
func (s *Session) ScreenshotPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenshot
}

// Info returns a snapshot of the session metadata.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		Name:       s.Name,
		Browser:    s.Browser,
		State:      s.state,
		CurrentURL: s.currentURL,
		Headless:   s.Headless,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.lastUsedAt,
	}
}

// advance moves the session to next, rejecting moves the lifecycle forbids.
func (s *Session) advance(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CanTransition(next) {
		if s.state == Released {
			return ErrSessionReleased
		}
		return fmt.Errorf("illegal session transition %s -> %s", s.state, next)
	}
	s.state = next
	return nil
}

// touch checks the session is usable and records the use.
func (s *Session) touch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Released {
		return ErrSessionReleased
	}
	s.lastUsedAt = time.Now()
	return nil
}

// Navigate loads url in the session's page.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.touch(ctx); err != nil {
		return err
	}

	if err := s.page.Goto(url, s.opts.ActionTimeout); err != nil {
		return err
	}

	s.mu.Lock()
	s.currentURL = s.page.URL()
	s.mu.Unlock()

	s.logger.Debugf("[%s] navigated to %s", s.Name, url)
	return s.advance(Navigated)
}

// Click clicks the first element matching loc once it is actionable.
func (s *Session) Click(ctx context.Context, loc Locator) error {
	if err := s.touch(ctx); err != nil {
		return err
	}

	if err := s.page.Click(loc, s.opts.ActionTimeout); err != nil {
		return err
	}

	// Update current URL in case click caused navigation
	s.mu.Lock()
	s.currentURL = s.page.URL()
	s.mu.Unlock()

	return s.advance(ActionSubmitted)
}

// Fill types value into the first input matching loc.
func (s *Session) Fill(ctx context.Context, loc Locator, value string) error {
	if err := s.touch(ctx); err != nil {
		return err
	}
	return s.page.Fill(loc, value, s.opts.ActionTimeout)
}

// Texts returns the visible text of every element matching loc.
func (s *Session) Texts(ctx context.Context, loc Locator) ([]string, error) {
	if err := s.touch(ctx); err != nil {
		return nil, err
	}
	return s.page.InnerTexts(loc)
}

// URL returns the page's current URL.
func (s *Session) URL() string {
	if s.State() == Released {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.currentURL
	}
	return s.page.URL()
}

// Content returns the serialized DOM of the page.
func (s *Session) Content(ctx context.Context) (string, error) {
	if err := s.touch(ctx); err != nil {
		return "", err
	}
	return s.page.Content()
}

// Screenshot writes a screenshot named {label}-{browser}.png into the
// artifact directory and returns its path.
func (s *Session) Screenshot(ctx context.Context, label string) (string, error) {
	if err := s.touch(ctx); err != nil {
		return "", err
	}
	return s.capture(label)
}

func (s *Session) capture(label string) (string, error) {
	path, err := artifactPath(s.opts.ArtifactDir, label, s.Browser)
	if err != nil {
		return "", err
	}
	if err := s.page.Screenshot(path); err != nil {
		return "", err
	}
	s.logger.Debugf("[%s] screenshot saved: %s", s.Name, path)
	return path, nil
}
