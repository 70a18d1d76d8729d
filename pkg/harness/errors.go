package harness

import (
	"errors"
	"fmt"
)

var (
	// ErrWaitTimeout is returned (wrapped) when a wait condition does not hold
	// before its timeout.
	ErrWaitTimeout = errors.New("wait timed out")

	// ErrStartupTimeout is returned (wrapped in a ProvisioningError) when the
	// browser does not start within the startup timeout.
	ErrStartupTimeout = errors.New("browser did not start within the startup timeout")

	// ErrSessionReleased is returned by any operation on a released session.
	ErrSessionReleased = errors.New("session already released")
)

// ProvisioningError reports that a session could not be created: the browser
// id is unknown or the engine failed to start in time.
type ProvisioningError struct {
	Browser BrowserID
	Err     error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("failed to provision %s session: %v", e.Browser, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// AuthenticationError reports that the login page never became usable. It
// does not mean the credentials were rejected.
type AuthenticationError struct {
	URL string
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("login page %s not ready: %v", e.URL, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// InterstitialBypassFailure records an unexpected error while dismissing the
// interstitial page. It is carried in a BypassResult and never returned.
type InterstitialBypassFailure struct {
	Err error
}

func (e *InterstitialBypassFailure) Error() string {
	return fmt.Sprintf("interstitial bypass failed: %v", e.Err)
}

func (e *InterstitialBypassFailure) Unwrap() error { return e.Err }

// AssertionFailure reports that an expected marker was absent or mismatched,
// or, with Unexpected set, that a marker which should be absent appeared.
type AssertionFailure struct {
	Marker     Marker
	Unexpected bool
	Diagnosis  string
}

func (e *AssertionFailure) Error() string {
	msg := fmt.Sprintf("expected %s", e.Marker)
	if e.Unexpected {
		msg = fmt.Sprintf("unexpected %s", e.Marker)
	}
	if e.Diagnosis != "" {
		msg += ": " + e.Diagnosis
	}
	return msg
}

// Error kinds reported by Classify
const (
	KindProvisioning   = "provisioning"
	KindAuthentication = "authentication"
	KindAssertion      = "assertion"
	KindTimeout        = "timeout"
	KindOther          = "error"
)

// Classify maps an error from a test case onto the error taxonomy.
// It returns "" for a nil error.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var provisioning *ProvisioningError
	var authentication *AuthenticationError
	var assertion *AssertionFailure

	switch {
	case errors.As(err, &provisioning):
		return KindProvisioning
	case errors.As(err, &authentication):
		return KindAuthentication
	case errors.As(err, &assertion):
		return KindAssertion
	case errors.Is(err, ErrWaitTimeout):
		return KindTimeout
	default:
		return KindOther
	}
}
