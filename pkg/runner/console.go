package runner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/hrmcheck/pkg/report"
)

// Verbosity represents the console verbosity level
type Verbosity int

const (
	// VerbosityQuiet shows only failures, warnings and the final summary
	VerbosityQuiet Verbosity = iota
	// VerbosityNormal shows one line per case (default)
	VerbosityNormal
	// VerbosityVerbose adds case starts and failure details
	VerbosityVerbose
	// VerbosityDebug shows everything
	VerbosityDebug
)

// ParseVerbosity converts a config verbosity string; unknown values are
// treated as normal.
func ParseVerbosity(level string) Verbosity {
	switch level {
	case "quiet":
		return VerbosityQuiet
	case "normal":
		return VerbosityNormal
	case "verbose":
		return VerbosityVerbose
	case "debug":
		return VerbosityDebug
	default:
		return VerbosityNormal
	}
}

var (
	salmonPink  = lipgloss.Color("#FFB3BA")
	mintGreen   = lipgloss.Color("#A8E6CF")
	amber       = lipgloss.Color("#FCD34D")
	mutedGray   = lipgloss.Color("#6B7280")
	brightWhite = lipgloss.Color("#F9FAFB")
	errorRed    = lipgloss.Color("#F87171")
)

// Console prints run progress for humans. It is safe for concurrent use.
type Console struct {
	level  Verbosity
	writer io.Writer
	mu     sync.Mutex

	headerStyle  lipgloss.Style
	sectionStyle lipgloss.Style
	infoStyle    lipgloss.Style
	mutedStyle   lipgloss.Style
	passStyle    lipgloss.Style
	failStyle    lipgloss.Style
	warnStyle    lipgloss.Style
}

// NewConsole creates a console writing to w at the given verbosity.
func NewConsole(w io.Writer, level Verbosity) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		level:        level,
		writer:       w,
		headerStyle:  r.NewStyle().Foreground(brightWhite).Bold(true),
		sectionStyle: r.NewStyle().Foreground(salmonPink).Bold(true),
		infoStyle:    r.NewStyle().Foreground(salmonPink),
		mutedStyle:   r.NewStyle().Foreground(mutedGray),
		passStyle:    r.NewStyle().Foreground(mintGreen).Bold(true),
		failStyle:    r.NewStyle().Foreground(errorRed).Bold(true),
		warnStyle:    r.NewStyle().Foreground(amber),
	}
}

func (c *Console) println(style lipgloss.Style, lines ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range lines {
		if line == "" {
			fmt.Fprintln(c.writer)
			continue
		}
		fmt.Fprintln(c.writer, style.Render(line))
	}
}

// Header prints a prominent header message
func (c *Console) Header(message string) {
	if c.level < VerbosityNormal {
		return
	}
	rule := strings.Repeat("=", 70)
	c.println(c.headerStyle, "", rule, "  "+message, rule)
}

// Section prints a section divider
func (c *Console) Section(title string) {
	if c.level < VerbosityNormal {
		return
	}
	c.println(c.sectionStyle, "", "▶ "+title)
	c.println(c.mutedStyle, strings.Repeat("─", 50))
}

// Infof prints an informational message
func (c *Console) Infof(format string, args ...interface{}) {
	if c.level >= VerbosityNormal {
		c.println(c.infoStyle, fmt.Sprintf(format, args...))
	}
}

// Warningf prints a warning message
func (c *Console) Warningf(format string, args ...interface{}) {
	c.println(c.warnStyle, "⚠ Warning: "+fmt.Sprintf(format, args...))
}

// Errorf prints an error message
func (c *Console) Errorf(format string, args ...interface{}) {
	c.println(c.failStyle, "✗ Error: "+fmt.Sprintf(format, args...))
}

// Verbosef prints detailed information (only in verbose mode)
func (c *Console) Verbosef(format string, args ...interface{}) {
	if c.level >= VerbosityVerbose {
		c.println(c.mutedStyle, "→ "+fmt.Sprintf(format, args...))
	}
}

// Debugf prints debug information (only in debug mode)
func (c *Console) Debugf(format string, args ...interface{}) {
	if c.level >= VerbosityDebug {
		c.println(c.mutedStyle, "[DEBUG] "+fmt.Sprintf(format, args...))
	}
}

// CaseStarted implements Progress.
func (c *Console) CaseStarted(browser, scenario string) {
	c.Verbosef("%s on %s", scenario, browser)
}

// CaseFinished implements Progress. Failures are shown at every verbosity.
func (c *Console) CaseFinished(result report.CaseResult) {
	line := fmt.Sprintf("%s on %s (%s)", result.Scenario, result.Browser, result.Duration.Round(time.Millisecond))

	switch result.Status {
	case report.StatusPassed:
		if c.level >= VerbosityNormal {
			c.println(c.passStyle, "  ✓ "+line)
		}
	case report.StatusSkipped:
		if c.level >= VerbosityNormal {
			c.println(c.warnStyle, fmt.Sprintf("  - %s on %s skipped: %s", result.Scenario, result.Browser, result.Error))
		}
	default:
		c.println(c.failStyle, "  ✗ "+line)
		if c.level >= VerbosityVerbose && result.Error != "" {
			c.println(c.mutedStyle, fmt.Sprintf("    [%s] %s", result.ErrorKind, result.Error))
		}
	}
}

// Summary prints the final run summary. It is shown at every verbosity.
func (c *Console) Summary(summary *report.Summary) {
	rule := strings.Repeat("=", 70)
	c.println(c.headerStyle, "", rule, "  RUN SUMMARY", rule)

	switch summary.Status {
	case report.StatusPassed:
		c.println(c.passStyle, "  Status: ✓ PASSED")
	case report.StatusFailed:
		c.println(c.failStyle, "  Status: ✗ FAILED")
	default:
		c.println(c.headerStyle, "  Status: "+string(summary.Status))
	}

	c.println(c.headerStyle, fmt.Sprintf("  Base URL: %s", summary.BaseURL))
	c.println(c.headerStyle, fmt.Sprintf("  Duration: %s", summary.Duration.Round(time.Second)))
	c.println(c.headerStyle, fmt.Sprintf("  Cases: %d passed, %d failed, %d skipped",
		summary.Metrics.Passed, summary.Metrics.Failed, summary.Metrics.Skipped))

	if failures := summary.Failures(); len(failures) > 0 {
		c.println(c.failStyle, "", "  Failures:")
		for _, f := range failures {
			c.println(c.failStyle, fmt.Sprintf("    ✗ %s on %s", f.Scenario, f.Browser))
			c.println(c.mutedStyle, fmt.Sprintf("      [%s] %s", f.ErrorKind, f.Error))
			if f.Screenshot != "" {
				c.println(c.mutedStyle, "      screenshot: "+f.Screenshot)
			}
		}
	}

	if summary.Error != "" {
		c.println(c.failStyle, "", "  Error Details:", "    "+summary.Error)
	}

	c.println(c.headerStyle, rule, "")
}
