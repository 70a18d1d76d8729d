// Package scenario holds the OrangeHRM page model and the end-to-end flows
// hrmcheck runs against it. Each flow drives one harness.Session and is run
// once per configured browser.
package scenario

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/entrhq/hrmcheck/pkg/harness"
)

// Env is the explicit configuration passed to every flow.
type Env struct {
	// BaseURL is the application root, without a trailing slash
	BaseURL string

	// Credentials log in as a valid user
	Credentials harness.Credentials

	// WaitTimeout bounds element and marker waits
	WaitTimeout time.Duration

	// InterstitialTimeout bounds the search for the tunnelling warning page
	InterstitialTimeout time.Duration

	// AbsenceTimeout is how long a marker must stay away to count as absent
	AbsenceTimeout time.Duration
}

// Default timeouts applied to a zero Env
const (
	DefaultWaitTimeout         = 15 * time.Second
	DefaultInterstitialTimeout = 10 * time.Second
	DefaultAbsenceTimeout      = 3 * time.Second
)

// WithDefaults fills zero timeouts.
func (e Env) WithDefaults() Env {
	e.BaseURL = strings.TrimRight(e.BaseURL, "/")
	if e.WaitTimeout <= 0 {
		e.WaitTimeout = DefaultWaitTimeout
	}
	if e.InterstitialTimeout <= 0 {
		e.InterstitialTimeout = DefaultInterstitialTimeout
	}
	if e.AbsenceTimeout <= 0 {
		e.AbsenceTimeout = DefaultAbsenceTimeout
	}
	return e
}

// URL resolves path against the base URL.
func (e Env) URL(path string) string {
	return strings.TrimRight(e.BaseURL, "/") + path
}

// LoginURL is the OrangeHRM login page.
func (e Env) LoginURL() string {
	return e.URL(LoginPath)
}

// Flow drives one session through a scenario.
type Flow func(ctx context.Context, s *harness.Session, env Env) error

// Scenario is a named end-to-end flow.
type Scenario struct {
	// Name identifies the scenario in selection patterns and reports
	Name string

	// Step labels the screenshot taken when the flow passes
	Step string

	// Description is shown by -list
	Description string

	// NeedsCredentials marks flows that log in as the configured user
	NeedsCredentials bool

	Run Flow
}

var registry = map[string]Scenario{}

func register(s Scenario) {
	if _, exists := registry[s.Name]; exists {
		panic(fmt.Sprintf("scenario %s registered twice", s.Name))
	}
	registry[s.Name] = s
}

// All returns every scenario sorted by name.
func All() []Scenario {
	all := make([]Scenario, 0, len(registry))
	for _, s := range registry {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})
	return all
}

// Lookup returns the scenario called name.
func Lookup(name string) (Scenario, bool) {
	s, ok := registry[name]
	return s, ok
}

// Select returns the scenarios matching patterns, sorted by name. Patterns
// are globs over scenario names with '/' as the separator; a leading '!'
// excludes matches. Exclusions take precedence. An include pattern that
// matches nothing is an error.
func Select(patterns []string) ([]Scenario, error) {
	var include, exclude []glob.Glob
	var includeSrc []string

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		negated := strings.HasPrefix(pattern, "!")
		g, err := glob.Compile(strings.TrimPrefix(pattern, "!"), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid scenario pattern '%s': %w", pattern, err)
		}

		if negated {
			exclude = append(exclude, g)
		} else {
			include = append(include, g)
			includeSrc = append(includeSrc, pattern)
		}
	}

	if len(include) == 0 {
		include = append(include, glob.MustCompile("**"))
		includeSrc = append(includeSrc, "**")
	}

	all := All()
	matched := make([]bool, len(include))
	var selected []Scenario

scenarios:
	for _, s := range all {
		for _, g := range exclude {
			if g.Match(s.Name) {
				continue scenarios
			}
		}

		found := false
		for i, g := range include {
			if g.Match(s.Name) {
				matched[i] = true
				found = true
			}
		}
		if found {
			selected = append(selected, s)
		}
	}

	for i, ok := range matched {
		if !ok && !anyMatch(include[i], all) {
			return nil, fmt.Errorf("scenario pattern '%s' matches no scenario", includeSrc[i])
		}
	}

	return selected, nil
}

func anyMatch(g glob.Glob, all []Scenario) bool {
	for _, s := range all {
		if g.Match(s.Name) {
			return true
		}
	}
	return false
}
