package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// File names written by Writer
const (
	JSONFile     = "report.json"
	MarkdownFile = "summary.md"
)

// Formats selects the report files to write.
type Formats struct {
	JSON     bool
	Markdown bool
}

// Writer handles writing run reports
type Writer struct {
	outputDir string
	formats   Formats
}

// NewWriter creates a new report writer
func NewWriter(outputDir string, formats Formats) *Writer {
	return &Writer{
		outputDir: outputDir,
		formats:   formats,
	}
}

// WriteAll writes all configured report formats and returns the paths
// written.
func (w *Writer) WriteAll(summary *Summary) ([]string, error) {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	var written []string

	if w.formats.JSON {
		path, err := w.WriteJSON(summary)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if w.formats.Markdown {
		path, err := w.WriteMarkdown(summary)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}

// WriteJSON writes the full summary as JSON
func (w *Writer) WriteJSON(summary *Summary) (string, error) {
	path := filepath.Join(w.outputDir, JSONFile)

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run summary: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return "", fmt.Errorf("failed to write JSON report: %w", writeErr)
	}

	return path, nil
}

// WriteMarkdown writes a human-readable markdown summary
func (w *Writer) WriteMarkdown(summary *Summary) (string, error) {
	path := filepath.Join(w.outputDir, MarkdownFile)

	if writeErr := os.WriteFile(path, []byte(Markdown(summary)), 0600); writeErr != nil {
		return "", fmt.Errorf("failed to write markdown summary: %w", writeErr)
	}

	return path, nil
}

// Markdown renders summary as markdown.
func Markdown(summary *Summary) string {
	var md strings.Builder

	md.WriteString("# hrmcheck Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", summary.RunID))
	md.WriteString(fmt.Sprintf("**Base URL:** %s\n\n", summary.BaseURL))
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", summary.Status))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", summary.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration.Round(time.Millisecond)))

	if summary.Error != "" {
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", summary.Error))
	}

	if len(summary.Cases) > 0 {
		md.WriteString("## Results\n\n")
		md.WriteString("| Browser | Scenario | Status | Duration | Screenshot |\n")
		md.WriteString("|---|---|---|---|---|\n")
		for _, c := range summary.Cases {
			screenshot := "-"
			if c.Screenshot != "" {
				screenshot = fmt.Sprintf("`%s`", filepath.Base(c.Screenshot))
			}
			md.WriteString(fmt.Sprintf("| %s | %s | %s %s | %s | %s |\n",
				c.Browser, c.Scenario, statusIcon(c.Status), c.Status,
				c.Duration.Round(time.Millisecond), screenshot))
		}
		md.WriteString("\n")
	}

	var failures []CaseResult
	for _, c := range summary.Cases {
		if c.Status == StatusFailed {
			failures = append(failures, c)
		}
	}
	if len(failures) > 0 {
		md.WriteString("## Failures\n\n")
		for _, c := range failures {
			md.WriteString(fmt.Sprintf("### %s on %s\n\n", c.Scenario, c.Browser))
			md.WriteString(fmt.Sprintf("- **Kind:** %s\n", c.ErrorKind))
			md.WriteString(fmt.Sprintf("- **Error:** %s\n\n", c.Error))
		}
	}

	md.WriteString("## Metrics\n\n")
	md.WriteString(fmt.Sprintf("- **Cases:** %d\n", summary.Metrics.Total))
	md.WriteString(fmt.Sprintf("- **Passed:** %d\n", summary.Metrics.Passed))
	md.WriteString(fmt.Sprintf("- **Failed:** %d\n", summary.Metrics.Failed))
	md.WriteString(fmt.Sprintf("- **Skipped:** %d\n", summary.Metrics.Skipped))

	return md.String()
}

func statusIcon(status Status) string {
	switch status {
	case StatusPassed:
		return "✅"
	case StatusFailed:
		return "❌"
	default:
		return "⏭️"
	}
}
