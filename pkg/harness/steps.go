package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrorLabel is the screenshot label used when a test case fails.
const ErrorLabel = "error"

// FailureLabel returns the screenshot label for a failed step, so that failures
// of different steps on one browser do not overwrite each other. An empty step
// gives ErrorLabel.
func FailureLabel(step string) string {
	if step == "" {
		return ErrorLabel
	}
	return ErrorLabel + "-" + step
}

// ArtifactName returns the screenshot file name for label on browser.
func ArtifactName(label string, browser BrowserID) string {
	return fmt.Sprintf("%s-%s.png", label, browser)
}

func artifactPath(dir, label string, browser BrowserID) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return filepath.Join(dir, ArtifactName(label, browser)), nil
}

// BypassOutcome says what BypassInterstitial did.
type BypassOutcome int

const (
	// BypassNotPresent means no interstitial appeared before the timeout
	BypassNotPresent BypassOutcome = iota
	// BypassClicked means the interstitial control was found and clicked
	BypassClicked
	// BypassFailed means an unexpected error occurred; see Failure
	BypassFailed
)

// String implements fmt.Stringer.
func (o BypassOutcome) String() string {
	switch o {
	case BypassNotPresent:
		return "not_present"
	case BypassClicked:
		return "clicked"
	case BypassFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// BypassResult is the outcome of the optional interstitial step.
type BypassResult struct {
	Outcome BypassOutcome
	Failure *InterstitialBypassFailure
}

// VisitSiteControl is the control on the tunnelling service's warning page.
var VisitSiteControl = ByText("Visit Site")

// BypassInterstitial clicks the "Visit Site" control if it becomes clickable
// within timeout. Absence is the normal case. Failures are logged and returned
// in the result, never as an error.
func BypassInterstitial(ctx context.Context, s *Session, timeout time.Duration) BypassResult {
	fail := func(err error) BypassResult {
		failure := &InterstitialBypassFailure{Err: err}
		s.logger.Warnf("[%s] %v", s.Name, failure)
		return BypassResult{Outcome: BypassFailed, Failure: failure}
	}

	err := s.Wait(ctx, WaitCondition{Locator: VisitSiteControl, Condition: Clickable, Timeout: timeout})
	if errors.Is(err, ErrWaitTimeout) {
		s.logger.Infof("[%s] no interstitial page detected, continuing", s.Name)
		return BypassResult{Outcome: BypassNotPresent}
	}
	if err != nil {
		return fail(err)
	}

	if err := s.page.Click(VisitSiteControl, timeout); err != nil {
		return fail(err)
	}
	if err := s.advance(InterstitialBypassed); err != nil {
		return fail(err)
	}

	// Let the redirect away from the warning page settle; a slow redirect is
	// not an error here.
	if err := s.page.WaitFor(VisitSiteControl, StateHidden, timeout); err != nil {
		s.logger.Debugf("[%s] interstitial still visible after click: %v", s.Name, err)
	}

	s.logger.Infof("[%s] clicked 'Visit Site' to bypass interstitial", s.Name)
	return BypassResult{Outcome: BypassClicked}
}

// LoginForm locates the controls of a username/password form.
type LoginForm struct {
	Username Locator
	Password Locator
	Submit   Locator
}

// DefaultLoginForm matches the usual name="username"/name="password" form
// with a submit button.
var DefaultLoginForm = LoginForm{
	Username: ByName("username"),
	Password: ByName("password"),
	Submit:   ByCSS(`button[type="submit"]`),
}

// Login submits creds on the login page at loginURL using DefaultLoginForm.
func Login(ctx context.Context, s *Session, loginURL string, creds Credentials, timeout time.Duration) error {
	return LoginWith(ctx, s, DefaultLoginForm, loginURL, creds, timeout)
}

// LoginWith navigates to loginURL, waits up to timeout for the username input
// and submits creds. It does not check whether the login succeeded. An
// *AuthenticationError means the login page itself never became usable.
func LoginWith(ctx context.Context, s *Session, form LoginForm, loginURL string, creds Credentials, timeout time.Duration) error {
	if err := s.Navigate(ctx, loginURL); err != nil {
		return &AuthenticationError{URL: loginURL, Err: err}
	}
	return SubmitLogin(ctx, s, form, creds, timeout)
}

// SubmitLogin fills and submits form on the page already loaded in s.
func SubmitLogin(ctx context.Context, s *Session, form LoginForm, creds Credentials, timeout time.Duration) error {
	err := s.Wait(ctx, WaitCondition{Locator: form.Username, Condition: Visible, Timeout: timeout})
	if err != nil {
		return &AuthenticationError{URL: s.URL(), Err: err}
	}

	if err := s.Fill(ctx, form.Username, creds.Username); err != nil {
		return fmt.Errorf("failed to fill username: %w", err)
	}
	if err := s.Fill(ctx, form.Password, creds.Password); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}
	if err := s.Click(ctx, form.Submit); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}

	s.logger.Debugf("[%s] submitted login form as %q", s.Name, creds.Username)
	return nil
}

// AssertOutcome reports whether marker appears within timeout. It never
// returns an error; a released session or cancelled context reports false.
func AssertOutcome(ctx context.Context, s *Session, marker Marker, timeout time.Duration) bool {
	ok := markerAppears(ctx, s, marker, timeout)
	if s.State() != Released {
		if err := s.advance(Asserted); err != nil {
			s.logger.Debugf("[%s] %v", s.Name, err)
		}
	}
	s.logger.Debugf("[%s] marker %s present=%t", s.Name, marker, ok)
	return ok
}

func markerAppears(ctx context.Context, s *Session, marker Marker, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	deadline := time.Now().Add(timeout)

	err := s.Wait(ctx, WaitCondition{Locator: marker.Locator, Condition: Visible, Timeout: timeout})
	if err != nil {
		return false
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		remaining = pollInterval
	}

	err = poll(ctx, remaining, func() (bool, error) {
		return markerMatches(s, marker)
	})
	return err == nil
}

// markerMatches checks the text and attribute parts of marker against the
// current page.
func markerMatches(s *Session, marker Marker) (bool, error) {
	if marker.Text != "" {
		texts, err := s.page.InnerTexts(marker.Locator)
		if err != nil {
			return false, err
		}
		if !containsFold(texts, marker.Text) {
			return false, nil
		}
	}

	if marker.Attribute != "" {
		value, found, err := s.page.Attribute(marker.Locator, marker.Attribute)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
		if marker.AttributeValue != "" && value != marker.AttributeValue {
			return false, nil
		}
	}

	return true, nil
}

// ExpectOutcome is AssertOutcome returning an *AssertionFailure with a
// diagnosis of what the marker's locator matched instead.
func ExpectOutcome(ctx context.Context, s *Session, marker Marker, timeout time.Duration) error {
	if AssertOutcome(ctx, s, marker, timeout) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return &AssertionFailure{Marker: marker, Diagnosis: s.diagnose(marker)}
}

// ExpectAbsent fails with an *AssertionFailure if marker appears within
// timeout.
func ExpectAbsent(ctx context.Context, s *Session, marker Marker, timeout time.Duration) error {
	if !AssertOutcome(ctx, s, marker, timeout) {
		return ctx.Err()
	}
	return &AssertionFailure{Marker: marker, Unexpected: true, Diagnosis: s.diagnose(marker)}
}

func (s *Session) diagnose(marker Marker) string {
	if s.State() == Released {
		return ErrSessionReleased.Error()
	}
	content, err := s.page.Content()
	if err != nil {
		return fmt.Sprintf("page content unavailable: %v", err)
	}
	return Diagnose(content, marker)
}

// CaptureAndRelease writes the {label}-{browser}.png screenshot and closes the
// session's page, context and browser. Only the first call has any effect.
// A failed screenshot is logged and does not prevent the release; the
// returned error is the close error, if any. The path written is available
// from Session.ScreenshotPath afterwards.
func CaptureAndRelease(s *Session, label string) error {
	return s.finish(label)
}

// release closes the session without a screenshot.
func (s *Session) release() error {
	return s.finish("")
}

func (s *Session) finish(label string) error {
	s.releaseOnce.Do(func() {
		var shot string
		if label != "" {
			path, err := s.capture(label)
			if err != nil {
				s.logger.Warnf("[%s] failed to capture %s screenshot: %v", s.Name, label, err)
			}
			shot = path
		}

		s.mu.Lock()
		s.screenshot = shot
		s.currentURL = s.page.URL()
		s.state = Released
		s.mu.Unlock()

		if err := s.page.Close(); err != nil {
			s.releaseErr = fmt.Errorf("failed to close %s session: %w", s.Browser, err)
			s.logger.Errorf("[%s] %v", s.Name, s.releaseErr)
		}

		if s.manager != nil {
			s.manager.forget(s)
		}
		s.logger.Infof("[%s] session released", s.Name)
	})
	return s.releaseErr
}
