// Package runner executes the selected scenarios on every configured browser
// and collects the results into a report.Summary.
package runner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/entrhq/hrmcheck/pkg/config"
	"github.com/entrhq/hrmcheck/pkg/harness"
	"github.com/entrhq/hrmcheck/pkg/logging"
	"github.com/entrhq/hrmcheck/pkg/report"
	"github.com/entrhq/hrmcheck/pkg/scenario"
)

// Progress receives case events as they happen. Calls may come from several
// goroutines at once.
type Progress interface {
	CaseStarted(browser, scenario string)
	CaseFinished(result report.CaseResult)
}

type nopProgress struct{}

func (nopProgress) CaseStarted(string, string)     {}
func (nopProgress) CaseFinished(report.CaseResult) {}

// Runner runs a browser x scenario matrix. Each case gets its own session.
type Runner struct {
	manager  *harness.Manager
	config   *config.Config
	logger   *logging.Logger
	progress Progress
	runID    string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the run logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithProgress sets the receiver of case events.
func WithProgress(p Progress) Option {
	return func(r *Runner) {
		r.progress = p
	}
}

// WithRunID sets the id recorded in the summary.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// New creates a runner. The config must already be normalized and valid.
func New(manager *harness.Manager, cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		manager:  manager,
		config:   cfg,
		logger:   logging.Nop(),
		progress: nopProgress{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = logging.GetRunID()
	}
	return r
}

// Env builds the scenario environment from the config.
func (r *Runner) Env() scenario.Env {
	return scenario.Env{
		BaseURL:             r.config.BaseURL,
		Credentials:         r.config.LoginCredentials(),
		WaitTimeout:         r.config.Timeouts.Wait,
		InterstitialTimeout: r.config.Timeouts.Interstitial,
		AbsenceTimeout:      r.config.Timeouts.Absence,
	}.WithDefaults()
}

type testCase struct {
	browser  harness.BrowserID
	scenario scenario.Scenario
}

// Run executes scenarios on every configured browser, at most
// config.Concurrency cases at a time, and returns the finished summary.
// Case failures are recorded in the summary; the error is reserved for
// problems that prevent the run from starting.
func (r *Runner) Run(ctx context.Context, scenarios []scenario.Scenario) (*report.Summary, error) {
	browsers, err := r.config.BrowserIDs()
	if err != nil {
		return nil, fmt.Errorf("invalid browser list: %w", err)
	}

	summary := report.NewSummary(r.runID, r.config.BaseURL)
	for _, b := range browsers {
		summary.Browsers = append(summary.Browsers, string(b))
	}
	for _, s := range scenarios {
		summary.Scenarios = append(summary.Scenarios, s.Name)
	}

	if r.config.Timeouts.Run > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeouts.Run)
		defer cancel()
	}

	env := r.Env()
	r.logger.Infof("Starting run %s: %d scenario(s) on %v against %s", r.runID, len(scenarios), browsers, env.BaseURL)

	var g errgroup.Group
	g.SetLimit(r.concurrency())

	for _, b := range browsers {
		for _, s := range scenarios {
			tc := testCase{browser: b, scenario: s}

			if s.NeedsCredentials && env.Credentials.Username == "" {
				result := report.Skipped(b, s.Name, s.Step, fmt.Sprintf("%s not set", config.EnvUsername))
				r.logger.Warnf("Skipping %s on %s: %s", s.Name, b, result.Error)
				summary.Add(result)
				r.progress.CaseFinished(result)
				continue
			}

			g.Go(func() error {
				result := r.runCase(ctx, tc, env)
				summary.Add(result)
				r.progress.CaseFinished(result)
				return nil
			})
		}
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		summary.Fail(fmt.Errorf("run interrupted: %w", err))
	}
	summary.Finish()

	r.logger.Infof("Run %s finished: %s (%d passed, %d failed, %d skipped)",
		r.runID, summary.Status, summary.Metrics.Passed, summary.Metrics.Failed, summary.Metrics.Skipped)
	return summary, nil
}

func (r *Runner) concurrency() int {
	if r.config.Concurrency < 1 {
		return 1
	}
	return r.config.Concurrency
}

// runCase runs one scenario in a fresh session and records the outcome.
func (r *Runner) runCase(ctx context.Context, tc testCase, env scenario.Env) report.CaseResult {
	start := time.Now()
	opts := r.config.SessionOptions(tc.browser)
	opts.Name = fmt.Sprintf("%s/%s", tc.browser, tc.scenario.Name)

	if err := ctx.Err(); err != nil {
		return report.Skipped(tc.browser, tc.scenario.Name, tc.scenario.Step, "run interrupted")
	}

	r.progress.CaseStarted(string(tc.browser), tc.scenario.Name)
	r.logger.Debugf("[%s] starting", opts.Name)

	var session *harness.Session
	err := r.manager.Run(ctx, opts, tc.scenario.Step, func(ctx context.Context, s *harness.Session) error {
		session = s
		return tc.scenario.Run(ctx, s, env)
	})

	var screenshot string
	if session != nil {
		screenshot = session.ScreenshotPath()
	}

	result := report.NewCaseResult(tc.browser, tc.scenario.Name, tc.scenario.Step, err, start, screenshot)
	if err != nil {
		r.logger.Errorf("[%s] failed (%s): %v", opts.Name, result.ErrorKind, err)
	} else {
		r.logger.Infof("[%s] passed in %s", opts.Name, result.Duration.Round(time.Millisecond))
	}
	return result
}
