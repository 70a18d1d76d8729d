package harness

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger is the subset of the logging package the harness writes to.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// Manager owns the driver shared by a run and tracks every live session.
type Manager struct {
	mu          sync.RWMutex
	driver      Driver
	logger      Logger
	sessions    map[*Session]struct{}
	pending     int
	maxSessions int
	skipInstall bool

	installMu  sync.Mutex
	installing map[string]chan struct{}
	installed  map[string]error
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger sessions and steps write to.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMaxSessions limits how many sessions may be live at once.
func WithMaxSessions(max int) ManagerOption {
	return func(m *Manager) {
		if max > 0 {
			m.maxSessions = max
		}
	}
}

// WithSkipInstall disables browser acquisition for environments where the
// builds are preinstalled.
func WithSkipInstall(skip bool) ManagerOption {
	return func(m *Manager) {
		m.skipInstall = skip
	}
}

// NewManager creates a session manager on top of driver.
func NewManager(driver Driver, opts ...ManagerOption) *Manager {
	m := &Manager{
		driver:      driver,
		logger:      nopLogger{},
		sessions:    make(map[*Session]struct{}),
		maxSessions: DefaultMaxSessions,
		installing:  make(map[string]chan struct{}),
		installed:   make(map[string]error),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ensureInstalled acquires the engine's browser build once per manager.
// A failed install is remembered and not retried. When ctx ends first the
// caller gets ctx.Err() and the download keeps running; its result is
// recorded when it arrives so later sessions do not start a second one.
func (m *Manager) ensureInstalled(ctx context.Context, engine Engine) error {
	if m.skipInstall {
		return nil
	}

	target := engine.InstallTarget()
	finished := m.startInstall(target)

	select {
	case <-finished:
		m.installMu.Lock()
		defer m.installMu.Unlock()
		return m.installed[target]
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startInstall returns a channel closed once target's install has finished,
// starting the install if nobody has yet.
func (m *Manager) startInstall(target string) <-chan struct{} {
	m.installMu.Lock()
	defer m.installMu.Unlock()

	if finished, ok := m.installing[target]; ok {
		return finished
	}

	m.logger.Infof("acquiring browser build %q", target)
	finished := make(chan struct{})
	m.installing[target] = finished

	go func() {
		err := m.driver.Install([]string{target})
		if err != nil {
			m.logger.Warnf("acquiring browser build %q failed: %v", target, err)
		}

		m.installMu.Lock()
		m.installed[target] = err
		m.installMu.Unlock()
		close(finished)
	}()
	return finished
}

type launchResult struct {
	page Page
	err  error
}

// CreateSession provisions a browser session for opts. It returns a
// *ProvisioningError when the browser is unknown or does not start within the
// startup timeout; it never blocks past that timeout.
func (m *Manager) CreateSession(ctx context.Context, opts Options) (*Session, error) {
	engine, err := EngineFor(opts.Browser)
	if err != nil {
		return nil, &ProvisioningError{Browser: opts.Browser, Err: err}
	}

	opts = opts.withDefaults(engine)
	if err := opts.validate(); err != nil {
		return nil, &ProvisioningError{Browser: opts.Browser, Err: err}
	}

	if err := m.reserve(); err != nil {
		return nil, &ProvisioningError{Browser: opts.Browser, Err: err}
	}
	reserved := true
	defer func() {
		if reserved {
			m.unreserve()
		}
	}()

	if err := m.ensureInstalled(ctx, engine); err != nil {
		return nil, &ProvisioningError{Browser: opts.Browser, Err: err}
	}

	plan := engine.Plan(opts)
	m.logger.Infof("[%s] starting %s (headless=%t, startup timeout %s)", opts.Name, opts.Browser, opts.Headless, opts.StartupTimeout)

	page, err := m.launch(ctx, plan)
	if err != nil {
		return nil, &ProvisioningError{Browser: opts.Browser, Err: err}
	}

	session := newSession(m, opts, page)

	m.mu.Lock()
	m.pending--
	m.sessions[session] = struct{}{}
	m.mu.Unlock()
	reserved = false

	return session, nil
}

// reserve claims a session slot. Slots being provisioned count against
// maxSessions as well as live sessions.
func (m *Manager) reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions)+m.pending >= m.maxSessions {
		return fmt.Errorf("maximum number of sessions (%d) reached", m.maxSessions)
	}
	m.pending++
	return nil
}

func (m *Manager) unreserve() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending--
}

// launch runs driver.Launch against the startup deadline. A browser that
// finishes starting after the deadline is closed in the background.
func (m *Manager) launch(ctx context.Context, plan LaunchPlan) (Page, error) {
	results := make(chan launchResult, 1)
	go func() {
		page, err := m.driver.Launch(plan)
		results <- launchResult{page: page, err: err}
	}()

	timer := time.NewTimer(plan.StartupTimeout)
	defer timer.Stop()

	select {
	case r := <-results:
		return r.page, r.err
	case <-timer.C:
		go m.reapLate(results)
		return nil, fmt.Errorf("%w (%s)", ErrStartupTimeout, plan.StartupTimeout)
	case <-ctx.Done():
		go m.reapLate(results)
		return nil, ctx.Err()
	}
}

func (m *Manager) reapLate(results <-chan launchResult) {
	r := <-results
	if r.page != nil {
		if err := r.page.Close(); err != nil {
			m.logger.Warnf("failed to close late-starting browser: %v", err)
		}
	}
}

// forget removes a released session from the live table.
func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s)
}

// Run creates a session, runs fn and releases the session on every exit
// path. The release screenshot is labelled step on success and
// FailureLabel(step) on failure or panic.
func (m *Manager) Run(ctx context.Context, opts Options, step string, fn func(context.Context, *Session) error) (err error) {
	session, err := m.CreateSession(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = CaptureAndRelease(session, FailureLabel(step))
			panic(r)
		}

		label := step
		if err != nil {
			label = FailureLabel(step)
		}
		if releaseErr := CaptureAndRelease(session, label); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	return fn(ctx, session)
}

// ActiveSessions returns the number of sessions not yet released.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ListSessions returns information about all live sessions.
func (m *Manager) ListSessions() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for session := range m.sessions {
		infos = append(infos, session.Info())
	}
	return infos
}

// Shutdown releases every live session without screenshots and stops the
// driver.
func (m *Manager) Shutdown() error {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for session := range m.sessions {
		live = append(live, session)
	}
	m.mu.RUnlock()

	var errs []error
	for _, session := range live {
		m.logger.Warnf("[%s] session still open at shutdown, releasing", session.Name)
		if err := session.release(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := m.driver.Stop(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
