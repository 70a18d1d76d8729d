// Package main provides hrmcheck, which runs the OrangeHRM end-to-end
// scenarios on Chrome, Firefox and Edge and reports the results. It is meant
// for CI as much as for local runs against a tunnelled instance.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/entrhq/hrmcheck/pkg/config"
	"github.com/entrhq/hrmcheck/pkg/harness"
	"github.com/entrhq/hrmcheck/pkg/logging"
	"github.com/entrhq/hrmcheck/pkg/report"
	"github.com/entrhq/hrmcheck/pkg/runner"
	"github.com/entrhq/hrmcheck/pkg/scenario"
)

const version = "0.1.0"

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

// CLIConfig holds command-line configuration. Only flags set explicitly
// override the file and environment.
type CLIConfig struct {
	ConfigFile  string
	BaseURL     string
	Browsers    string
	Scenarios   string
	Headless    bool
	ArtifactDir string
	ReportDir   string
	Concurrency int
	Verbosity   string
	LogLevel    string
	LogDir      string
	Timeout     time.Duration
	List        bool
	ShowVersion bool

	set map[string]bool
}

func main() {
	cli, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(exitOK)
		}
		os.Exit(exitConfig)
	}

	if cli.ShowVersion {
		fmt.Printf("hrmcheck v%s\n", version)
		return
	}

	if cli.List {
		listScenarios(os.Stdout)
		return
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\n\nShutting down gracefully...")
		cancel()
	}()

	code := run(ctx, cli, os.Stdout)
	cancel()
	os.Exit(code)
}

// parseFlags parses command line flags
func parseFlags(args []string, output io.Writer) (*CLIConfig, error) {
	cli := &CLIConfig{set: make(map[string]bool)}
	fs := flag.NewFlagSet("hrmcheck", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	fs.StringVar(&cli.BaseURL, "base-url", "", "Application base URL (overrides BASE_URL)")
	fs.StringVar(&cli.Browsers, "browsers", "", "Comma-separated browsers: chrome, firefox, edge")
	fs.StringVar(&cli.Scenarios, "scenarios", "", "Comma-separated scenario patterns, e.g. 'login/*,!login/valid'")
	fs.BoolVar(&cli.Headless, "headless", true, "Run browsers without a window (always on when CI=true)")
	fs.StringVar(&cli.ArtifactDir, "artifacts", "", "Directory for screenshots")
	fs.StringVar(&cli.ReportDir, "report-dir", "", "Directory for report.json and summary.md")
	fs.IntVar(&cli.Concurrency, "concurrency", 0, "Maximum browser sessions run in parallel")
	fs.StringVar(&cli.Verbosity, "verbosity", "", "Console verbosity: quiet, normal, verbose or debug")
	fs.StringVar(&cli.LogLevel, "log-level", "", "Log file level: debug, info, warn or error")
	fs.StringVar(&cli.LogDir, "log-dir", "", "Directory for the run log file")
	fs.DurationVar(&cli.Timeout, "timeout", 0, "Timeout for the whole run (0 for none)")
	fs.BoolVar(&cli.List, "list", false, "List scenarios and exit")
	fs.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(output, "hrmcheck - cross-browser end-to-end checks for OrangeHRM\n\n")
		fmt.Fprintf(output, "Usage: hrmcheck [options]\n\n")
		fmt.Fprintf(output, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(output, "\nExamples:\n")
		fmt.Fprintf(output, "  # Run everything against a local instance\n")
		fmt.Fprintf(output, "  BASE_URL=http://localhost:8080 TEST_USERNAME=Admin TEST_PASSWORD=admin123 hrmcheck\n\n")
		fmt.Fprintf(output, "  # Only the login scenarios on Firefox, with a report\n")
		fmt.Fprintf(output, "  hrmcheck -browsers firefox -scenarios 'login/*' -report-dir reports\n\n")
		fmt.Fprintf(output, "  # Use a config file\n")
		fmt.Fprintf(output, "  hrmcheck -config hrmcheck.yaml\n\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
		fmt.Fprintln(output, err)
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		cli.set[f.Name] = true
	})
	return cli, nil
}

// run executes one hrmcheck run and returns the process exit code
func run(ctx context.Context, cli *CLIConfig, stdout io.Writer) int {
	cfg, err := loadConfig(cli)
	if err != nil {
		runner.NewConsole(stdout, runner.VerbosityQuiet).Errorf("%v", err)
		return exitConfig
	}

	console := runner.NewConsole(stdout, runner.ParseVerbosity(cfg.Logging.Verbosity))

	scenarios, err := scenario.Select(cfg.Scenarios)
	if err != nil {
		console.Errorf("%v", err)
		return exitConfig
	}
	if len(scenarios) == 0 {
		console.Errorf("no scenarios selected by %s", strings.Join(cfg.Scenarios, ","))
		return exitConfig
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		console.Errorf("invalid log level: %v", err)
		return exitConfig
	}

	var tee io.Writer
	if cfg.Logging.Verbosity == "debug" {
		tee = os.Stderr
	}
	logging.Configure(cfg.Logging.Dir, level, tee)

	logger, err := logging.NewLogger("hrmcheck")
	if err != nil {
		console.Warningf("file logging unavailable: %v", err)
	}
	defer logger.Close()

	console.Header(fmt.Sprintf("hrmcheck v%s", version))
	console.Infof("Base URL: %s", cfg.BaseURL)
	console.Infof("Browsers: %s", strings.Join(cfg.Browsers, ", "))
	console.Infof("Headless: %t", cfg.Headless)
	if cfg.ConfigFilePath != "" {
		console.Verbosef("Config file: %s", cfg.ConfigFilePath)
	}
	if path := logger.LogPath(); path != "" {
		console.Verbosef("Log file: %s", path)
	}
	if cfg.Credentials.Username == "" {
		console.Warningf("%s is not set; scenarios that log in will be skipped", config.EnvUsername)
	}

	driver := harness.NewPlaywrightDriver(logger.Writer())
	manager := harness.NewManager(driver,
		harness.WithLogger(logger.With("harness")),
		harness.WithMaxSessions(cfg.Concurrency),
		harness.WithSkipInstall(cfg.SkipInstall),
	)
	defer func() {
		if err := manager.Shutdown(); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	console.Section(fmt.Sprintf("Running %d scenario(s) on %d browser(s)", len(scenarios), len(cfg.Browsers)))

	r := runner.New(manager, cfg,
		runner.WithLogger(logger.With("runner")),
		runner.WithProgress(console),
		runner.WithRunID(logger.RunID()),
	)

	summary, err := r.Run(ctx, scenarios)
	if err != nil {
		console.Errorf("%v", err)
		return exitConfig
	}

	if cfg.Artifacts.ReportDir != "" {
		w := report.NewWriter(cfg.Artifacts.ReportDir, report.Formats{
			JSON:     cfg.Artifacts.JSON,
			Markdown: cfg.Artifacts.Markdown,
		})
		written, err := w.WriteAll(summary)
		if err != nil {
			console.Warningf("failed to write report: %v", err)
			logger.Warnf("failed to write report: %v", err)
		}
		for _, path := range written {
			console.Verbosef("Report written: %s", path)
		}
	}

	console.Summary(summary)

	if summary.Failed() {
		return exitFailed
	}
	return exitOK
}

// loadConfig merges the config file, .env, the environment and CLI flags, in
// increasing order of precedence, and validates the result
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	if _, err := config.LoadDotEnv(dotEnvCandidates()...); err != nil {
		return nil, err
	}

	cfg, err := config.Load(cli.ConfigFile, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	applyOverrides(cfg, cli)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyOverrides copies explicitly set flags onto cfg
func applyOverrides(cfg *config.Config, cli *CLIConfig) {
	if cli.set["base-url"] {
		cfg.BaseURL = cli.BaseURL
	}
	if cli.set["browsers"] {
		cfg.Browsers = splitList(cli.Browsers)
	}
	if cli.set["scenarios"] {
		cfg.Scenarios = splitList(cli.Scenarios)
	}
	if cli.set["headless"] {
		cfg.Headless = cli.Headless
	}
	if cli.set["artifacts"] {
		cfg.Artifacts.Dir = cli.ArtifactDir
	}
	if cli.set["report-dir"] {
		cfg.Artifacts.ReportDir = cli.ReportDir
	}
	if cli.set["concurrency"] {
		cfg.Concurrency = cli.Concurrency
	}
	if cli.set["verbosity"] {
		cfg.Logging.Verbosity = cli.Verbosity
	}
	if cli.set["log-level"] {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.set["log-dir"] {
		cfg.Logging.Dir = cli.LogDir
	}
	if cli.set["timeout"] {
		cfg.Timeouts.Run = cli.Timeout
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// dotEnvCandidates returns .env in the working directory, then in the
// enclosing repository root if there is one.
func dotEnvCandidates() []string {
	candidates := []string{".env"}

	wd, err := os.Getwd()
	if err != nil {
		return candidates
	}
	if root := findRepoRoot(wd); root != "" && root != wd {
		candidates = append(candidates, filepath.Join(root, ".env"))
	}
	return candidates
}

// findRepoRoot walks up from dir to the first directory holding .git or
// go.mod.
func findRepoRoot(dir string) string {
	for {
		for _, marker := range []string{".git", "go.mod"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func listScenarios(w io.Writer) {
	for _, s := range scenario.All() {
		creds := ""
		if s.NeedsCredentials {
			creds = " (needs credentials)"
		}
		fmt.Fprintf(w, "%-22s %s%s\n", s.Name, s.Description, creds)
	}
}
