package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/hrmcheck/pkg/harness"
)

func TestNewCaseResultPassed(t *testing.T) {
	start := time.Now().Add(-time.Second)
	r := NewCaseResult(harness.Firefox, "login/valid", "login-success", nil, start, "/tmp/login-success-firefox.png")

	assert.Equal(t, StatusPassed, r.Status)
	assert.Empty(t, r.ErrorKind)
	assert.Empty(t, r.Error)
	assert.Equal(t, "/tmp/login-success-firefox.png", r.Screenshot)
	assert.GreaterOrEqual(t, r.Duration, time.Second)
}

func TestNewCaseResultFailed(t *testing.T) {
	err := fmt.Errorf("login failed: %w", &harness.AuthenticationError{URL: "http://hrm.test/login", Err: harness.ErrWaitTimeout})
	r := NewCaseResult(harness.Chrome, "logout", "logout-success", err, time.Now(), "/tmp/error-logout-success-chrome.png")

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, harness.KindAuthentication, r.ErrorKind)
	assert.Contains(t, r.Error, "http://hrm.test/login")
	assert.Equal(t, "/tmp/error-logout-success-chrome.png", r.Screenshot)
}

func TestNewCaseResultIgnoresStaleFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, harness.ArtifactName(harness.FailureLabel("logout-success"), harness.Edge))
	require.NoError(t, os.WriteFile(stale, []byte("png"), 0644))

	r := NewCaseResult(harness.Edge, "logout", "logout-success", errors.New("boom"), time.Now(), "")
	assert.Empty(t, r.Screenshot)
	assert.Equal(t, harness.KindOther, r.ErrorKind)
}

func TestSummaryFinish(t *testing.T) {
	s := NewSummary("run-1", "https://hrm.example.com")

	var wg sync.WaitGroup
	cases := []CaseResult{
		{Browser: harness.Firefox, Scenario: "logout", Status: StatusPassed},
		{Browser: harness.Chrome, Scenario: "logout", Status: StatusFailed, Error: "expected marker"},
		{Browser: harness.Chrome, Scenario: "login/valid", Status: StatusPassed},
		Skipped(harness.Edge, "login/valid", "login-success", "no credentials"),
	}
	for _, c := range cases {
		wg.Add(1)
		go func(c CaseResult) {
			defer wg.Done()
			s.Add(c)
		}(c)
	}
	wg.Wait()

	s.Finish()

	assert.Equal(t, StatusFailed, s.Status)
	assert.True(t, s.Failed())
	assert.Equal(t, Metrics{Total: 4, Passed: 2, Failed: 1, Skipped: 1}, s.Metrics)

	var order []string
	for _, c := range s.Cases {
		order = append(order, string(c.Browser)+":"+c.Scenario)
	}
	assert.Equal(t, []string{"chrome:login/valid", "chrome:logout", "edge:login/valid", "firefox:logout"}, order)

	failures := s.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, harness.Chrome, failures[0].Browser)
}

func TestSummarySkippedOnlyPasses(t *testing.T) {
	s := NewSummary("run-2", "https://hrm.example.com")
	s.Add(Skipped(harness.Chrome, "logout", "logout-success", "no credentials"))
	s.Finish()

	assert.Equal(t, StatusPassed, s.Status)
	assert.False(t, s.Failed())
}

func TestSummaryRunError(t *testing.T) {
	s := NewSummary("run-3", "https://hrm.example.com")
	s.Fail(errors.New("interrupted"))
	s.Finish()

	assert.True(t, s.Failed())
	assert.Equal(t, "interrupted", s.Error)
}

func finishedSummary() *Summary {
	s := NewSummary("3f1c", "https://hrm.example.com")
	s.Browsers = []string{"chrome"}
	s.Scenarios = []string{"login/invalid", "login/valid"}
	s.Add(CaseResult{
		Browser:    harness.Chrome,
		Scenario:   "login/valid",
		Step:       "login-success",
		Status:     StatusFailed,
		ErrorKind:  harness.KindAssertion,
		Error:      "expected .breadcrumb with text \"Dashboard\"",
		Screenshot: "/tmp/error-login-success-chrome.png",
		Duration:   1500 * time.Millisecond,
	})
	s.Add(CaseResult{
		Browser:  harness.Chrome,
		Scenario: "login/invalid",
		Step:     "login-invalid",
		Status:   StatusPassed,
		Duration: 800 * time.Millisecond,
	})
	s.Finish()
	return s
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	w := NewWriter(dir, Formats{JSON: true, Markdown: true})

	written, err := w.WriteAll(finishedSummary())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, JSONFile), filepath.Join(dir, MarkdownFile)}, written)

	data, err := os.ReadFile(filepath.Join(dir, JSONFile))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "3f1c", decoded["run_id"])
	assert.Equal(t, "failed", decoded["status"])
	assert.Len(t, decoded["cases"], 2)
	assert.Equal(t, float64(1), decoded["metrics"].(map[string]interface{})["failed"])

	md, err := os.ReadFile(filepath.Join(dir, MarkdownFile))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# hrmcheck Run Summary")
	assert.Contains(t, string(md), "| chrome | login/valid | ❌ failed | 1.5s | `error-login-success-chrome.png` |")
	assert.Contains(t, string(md), "| chrome | login/invalid | ✅ passed | 800ms | - |")
	assert.Contains(t, string(md), "### login/valid on chrome")
	assert.Contains(t, string(md), "- **Kind:** assertion")
}

func TestWriteAllFormats(t *testing.T) {
	dir := t.TempDir()

	written, err := NewWriter(dir, Formats{Markdown: true}).WriteAll(finishedSummary())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, MarkdownFile)}, written)
	assert.NoFileExists(t, filepath.Join(dir, JSONFile))
}

func TestWriteAllBadDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	_, err := NewWriter(filepath.Join(file, "reports"), Formats{JSON: true}).WriteAll(finishedSummary())
	assert.ErrorContains(t, err, "failed to create report directory")
}
