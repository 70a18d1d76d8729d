// Package report collects the outcome of every (browser, scenario) case in a
// run and writes it out as JSON and markdown.
package report

import (
	"sort"
	"sync"
	"time"

	"github.com/entrhq/hrmcheck/pkg/harness"
)

// Status is the outcome of a case or a whole run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// CaseResult is the outcome of one scenario on one browser.
type CaseResult struct {
	Browser  harness.BrowserID `json:"browser"`
	Scenario string            `json:"scenario"`
	Step     string            `json:"step"`
	Status   Status            `json:"status"`

	// ErrorKind is the harness.Classify category of Error
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`

	// Screenshot is the path of the final screenshot, when one was taken
	Screenshot string `json:"screenshot,omitempty"`

	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
}

// NewCaseResult builds the result of a finished case. screenshot is the path
// the session wrote on release, or "" when none was taken.
func NewCaseResult(browser harness.BrowserID, scenario, step string, err error, start time.Time, screenshot string) CaseResult {
	r := CaseResult{
		Browser:    browser,
		Scenario:   scenario,
		Step:       step,
		Status:     StatusPassed,
		Screenshot: screenshot,
		StartTime:  start,
		Duration:   time.Since(start),
	}

	if err != nil {
		r.Status = StatusFailed
		r.ErrorKind = harness.Classify(err)
		r.Error = err.Error()
	}
	return r
}

// Skipped builds the result of a case that was not run.
func Skipped(browser harness.BrowserID, scenario, step, reason string) CaseResult {
	return CaseResult{
		Browser:   browser,
		Scenario:  scenario,
		Step:      step,
		Status:    StatusSkipped,
		Error:     reason,
		StartTime: time.Now(),
	}
}

// Metrics counts cases by status.
type Metrics struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Summary is the report of one hrmcheck run. Add is safe for concurrent use.
type Summary struct {
	RunID     string        `json:"run_id"`
	BaseURL   string        `json:"base_url"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Browsers  []string      `json:"browsers"`
	Scenarios []string      `json:"scenarios"`
	Cases     []CaseResult  `json:"cases"`
	Metrics   Metrics       `json:"metrics"`

	mu sync.Mutex
}

// NewSummary starts the summary of a run.
func NewSummary(runID, baseURL string) *Summary {
	return &Summary{
		RunID:     runID,
		BaseURL:   baseURL,
		Status:    "running",
		StartTime: time.Now(),
	}
}

// Add records a case result.
func (s *Summary) Add(r CaseResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cases = append(s.Cases, r)
}

// Fail records an error that stopped the run as a whole.
func (s *Summary) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Error = err.Error()
}

// Finish sorts the cases, computes metrics and sets the final status. A run
// fails when any case failed or the run itself recorded an error; skipped
// cases do not fail it.
func (s *Summary) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	sort.SliceStable(s.Cases, func(i, j int) bool {
		if s.Cases[i].Browser != s.Cases[j].Browser {
			return s.Cases[i].Browser < s.Cases[j].Browser
		}
		return s.Cases[i].Scenario < s.Cases[j].Scenario
	})

	s.Metrics = Metrics{Total: len(s.Cases)}
	for _, c := range s.Cases {
		switch c.Status {
		case StatusPassed:
			s.Metrics.Passed++
		case StatusFailed:
			s.Metrics.Failed++
		case StatusSkipped:
			s.Metrics.Skipped++
		}
	}

	s.Status = StatusPassed
	if s.Metrics.Failed > 0 || s.Error != "" {
		s.Status = StatusFailed
	}
}

// Failed reports whether the finished run failed.
func (s *Summary) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status == StatusFailed
}

// Failures returns the failed cases.
func (s *Summary) Failures() []CaseResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []CaseResult
	for _, c := range s.Cases {
		if c.Status == StatusFailed {
			failed = append(failed, c)
		}
	}
	return failed
}
