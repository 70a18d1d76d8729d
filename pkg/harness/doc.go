// Package harness drives a single browser session through a web application
// flow and always releases it afterwards.
//
// The package is built around four concepts:
//
//  1. Engine: a per-browser factory variant (chrome, firefox, edge) that turns
//     Options into a LaunchPlan with that browser's fixed option set
//  2. Driver: the automation backend that launches a LaunchPlan and returns a
//     Page (Playwright in production, harnesstest in unit tests)
//  3. Session: one browser process, one isolated context and one page, owned
//     by exactly one test case
//  4. Manager: the registry of live sessions for a run, sharing one driver
//     process between them
//
// # Session Lifecycle
//
// Every session moves through the same states:
//
//	Unstarted -> Provisioned -> Navigated -> (InterstitialBypassed) -> ActionSubmitted -> Asserted -> Released
//
// Released is terminal and reachable from every state. Manager.Run pairs
// acquisition with an unconditional CaptureAndRelease, so a screenshot is
// written and the browser is closed on every exit path:
//
//	err := manager.Run(ctx, opts, "login", func(ctx context.Context, s *harness.Session) error {
//	    harness.BypassInterstitial(ctx, s, 10*time.Second)
//	    if err := harness.Login(ctx, s, loginURL, creds, 15*time.Second); err != nil {
//	        return err
//	    }
//	    return harness.ExpectOutcome(ctx, s, dashboard, 30*time.Second)
//	})
//
// # Errors
//
// ProvisioningError, AuthenticationError and AssertionFailure end the test
// case. InterstitialBypassFailure is never returned as an error; it only
// appears inside a BypassResult so callers can tell an optional step that was
// skipped from one that failed.
package harness
