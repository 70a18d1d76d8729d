package scenario_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/hrmcheck/pkg/harness"
	"github.com/entrhq/hrmcheck/pkg/harness/harnesstest"
	"github.com/entrhq/hrmcheck/pkg/scenario"
	"github.com/entrhq/hrmcheck/pkg/scenario/scenariotest"
)

var admin = harness.Credentials{Username: "Admin", Password: "admin123"}

func names(scenarios []scenario.Scenario) []string {
	out := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s.Name)
	}
	return out
}

func TestAll(t *testing.T) {
	all := scenario.All()

	assert.Equal(t, []string{
		"compat/login",
		"employee/add-invalid",
		"employee/add-valid",
		"login/invalid",
		"login/valid",
		"logout",
	}, names(all))

	for _, s := range all {
		assert.NotEmpty(t, s.Step, s.Name)
		assert.NotEmpty(t, s.Description, s.Name)
		assert.NotNil(t, s.Run, s.Name)
	}
}

func TestLookup(t *testing.T) {
	s, ok := scenario.Lookup("login/invalid")
	require.True(t, ok)
	assert.Equal(t, "login-invalid", s.Step)
	assert.False(t, s.NeedsCredentials)

	_, ok = scenario.Lookup("login")
	assert.False(t, ok)
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "empty selects everything",
			patterns: nil,
			want:     names(scenario.All()),
		},
		{
			name:     "double star",
			patterns: []string{"**"},
			want:     names(scenario.All()),
		},
		{
			name:     "single star stays within a segment",
			patterns: []string{"login/*"},
			want:     []string{"login/invalid", "login/valid"},
		},
		{
			name:     "exact names",
			patterns: []string{"logout", "compat/login"},
			want:     []string{"compat/login", "logout"},
		},
		{
			name:     "exclusion only",
			patterns: []string{"!employee/**"},
			want:     []string{"compat/login", "login/invalid", "login/valid", "logout"},
		},
		{
			name:     "exclusion wins",
			patterns: []string{"login/*", "!login/valid"},
			want:     []string{"login/invalid"},
		},
		{
			name:     "alternatives",
			patterns: []string{"employee/add-{valid,invalid}"},
			want:     []string{"employee/add-invalid", "employee/add-valid"},
		},
		{
			name:     "blank patterns ignored",
			patterns: []string{" ", "logout "},
			want:     []string{"logout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected, err := scenario.Select(tt.patterns)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(selected))
		})
	}
}

func TestSelectErrors(t *testing.T) {
	_, err := scenario.Select([]string{"login/[valid"})
	assert.ErrorContains(t, err, "invalid scenario pattern")

	_, err = scenario.Select([]string{"login/*", "checkout/*"})
	assert.ErrorContains(t, err, "'checkout/*' matches no scenario")

	// A pattern whose matches are all excluded is not an error.
	selected, err := scenario.Select([]string{"logout", "!logout"})
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestEnvWithDefaults(t *testing.T) {
	env := scenario.Env{BaseURL: "https://hrm.example.com/"}.WithDefaults()

	assert.Equal(t, "https://hrm.example.com", env.BaseURL)
	assert.Equal(t, scenario.DefaultWaitTimeout, env.WaitTimeout)
	assert.Equal(t, scenario.DefaultInterstitialTimeout, env.InterstitialTimeout)
	assert.Equal(t, scenario.DefaultAbsenceTimeout, env.AbsenceTimeout)
	assert.Equal(t, "https://hrm.example.com/web/index.php/auth/login", env.LoginURL())

	custom := scenario.Env{WaitTimeout: time.Second}.WithDefaults()
	assert.Equal(t, time.Second, custom.WaitTimeout)
}

func TestEmployeeFullName(t *testing.T) {
	assert.Equal(t, "James Anderson Harden", scenario.NewEmployee.FullName())
	assert.Equal(t, "Ada Lovelace", scenario.Employee{FirstName: "Ada", LastName: "Lovelace"}.FullName())
}

// runScenario runs name on chrome against app through Manager.Run, the way
// the runner does.
func runScenario(t *testing.T, app *scenariotest.OrangeHRM, name string, env scenario.Env) (string, *harnesstest.Driver, error) {
	t.Helper()

	s, ok := scenario.Lookup(name)
	require.True(t, ok, name)

	driver := harnesstest.NewDriver(app.Site)
	manager := harness.NewManager(driver)
	dir := t.TempDir()

	err := manager.Run(context.Background(), harness.Options{
		Browser:     harness.Chrome,
		Headless:    true,
		ArtifactDir: dir,
	}, s.Step, func(ctx context.Context, session *harness.Session) error {
		return s.Run(ctx, session, env)
	})

	require.NoError(t, manager.Shutdown())
	assert.Equal(t, 0, manager.ActiveSessions())
	return dir, driver, err
}

func TestScenariosPass(t *testing.T) {
	for _, s := range scenario.All() {
		t.Run(s.Name, func(t *testing.T) {
			app := scenariotest.New(scenariotest.Options{Credentials: admin})

			dir, driver, err := runScenario(t, app, s.Name, app.Env(admin))
			require.NoError(t, err)

			assert.FileExists(t, filepath.Join(dir, s.Step+"-chrome.png"))
			assert.NoFileExists(t, filepath.Join(dir, harness.ArtifactName(harness.FailureLabel(s.Step), harness.Chrome)))

			pages := driver.Pages()
			require.Len(t, pages, 1)
			assert.True(t, pages[0].Closed())
		})
	}
}

func TestLoginValid(t *testing.T) {
	app := scenariotest.New(scenariotest.Options{Credentials: admin})

	_, driver, err := runScenario(t, app, "login/valid", app.Env(admin))
	require.NoError(t, err)

	assert.Equal(t, 1, app.Logins())
	assert.Equal(t, app.Site.URL(scenario.DashboardPath), driver.Pages()[0].URL())
}

func TestLoginValidWrongCredentials(t *testing.T) {
	app := scenariotest.New(scenariotest.Options{Credentials: admin})
	env := app.Env(harness.Credentials{Username: "Admin", Password: "nope"})
	env.WaitTimeout = 200 * time.Millisecond

	dir, _, err := runScenario(t, app, "login/valid", env)

	var assertion *harness.AssertionFailure
	require.ErrorAs(t, err, &assertion)
	assert.Equal(t, scenario.DashboardMarker, assertion.Marker)
	assert.Contains(t, assertion.Diagnosis, "Invalid credentials")
	assert.Equal(t, harness.KindAssertion, harness.Classify(err))

	assert.FileExists(t, filepath.Join(dir, "error-login-success-chrome.png"))
	assert.NoFileExists(t, filepath.Join(dir, "login-success-chrome.png"))
	assert.Zero(t, app.Logins())
}

func TestLoginInvalid(t *testing.T) {
	// The invalid flow ignores the configured credentials entirely.
	app := scenariotest.New(scenariotest.Options{Credentials: admin})

	dir, driver, err := runScenario(t, app, "login/invalid", app.Env(harness.Credentials{}))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "login-invalid-chrome.png"))
	assert.Zero(t, app.Logins())
	assert.Equal(t, app.Site.URL(scenario.LoginPath), driver.Pages()[0].URL())
}

func TestLoginInvalidFailsWhenAccepted(t *testing.T) {
	// A site that accepts the wrong credentials must fail the invalid flow.
	app := scenariotest.New(scenariotest.Options{Credentials: scenario.InvalidCredentials})
	env := app.Env(admin)
	env.WaitTimeout = 200 * time.Millisecond

	_, _, err := runScenario(t, app, "login/invalid", env)

	var assertion *harness.AssertionFailure
	require.ErrorAs(t, err, &assertion)
	assert.Equal(t, scenario.InvalidCredentialsMarker, assertion.Marker)
}

func TestLogout(t *testing.T) {
	app := scenariotest.New(scenariotest.Options{Credentials: admin})

	_, driver, err := runScenario(t, app, "logout", app.Env(admin))
	require.NoError(t, err)

	assert.Equal(t, 1, app.Logins())
	assert.Equal(t, 1, app.Logouts())

	page := driver.Pages()[0]
	assert.Equal(t, app.Site.URL(scenario.LoginPath), page.URL())
	assert.Contains(t, page.Clicks(), scenario.UserDropdown)
	assert.Contains(t, page.Clicks(), scenario.LogoutLink)
}

func TestAddEmployeeValid(t *testing.T) {
	app := scenariotest.New(scenariotest.Options{Credentials: admin})

	_, driver, err := runScenario(t, app, "employee/add-valid", app.Env(admin))
	require.NoError(t, err)

	assert.Equal(t, []scenario.Employee{scenario.NewEmployee}, app.Employees())
	assert.Equal(t, app.Site.URL(scenariotest.PersonalDetailsPath), driver.Pages()[0].URL())
}

func TestAddEmployeeInvalid(t *testing.T) {
	app := scenariotest.New(scenariotest.Options{Credentials: admin})

	dir, driver, err := runScenario(t, app, "employee/add-invalid", app.Env(admin))
	require.NoError(t, err)

	assert.Empty(t, app.Employees())
	assert.Equal(t, app.Site.URL(scenariotest.AddEmployeePath), driver.Pages()[0].URL())
	assert.FileExists(t, filepath.Join(dir, "add-employee-invalid-chrome.png"))
}

func TestCompatLogin(t *testing.T) {
	for _, interstitial := range []bool{false, true} {
		name := "without interstitial"
		if interstitial {
			name = "with interstitial"
		}

		t.Run(name, func(t *testing.T) {
			app := scenariotest.New(scenariotest.Options{Credentials: admin, Interstitial: interstitial})

			dir, driver, err := runScenario(t, app, "compat/login", app.Env(admin))
			require.NoError(t, err)

			assert.FileExists(t, filepath.Join(dir, "before_login_elements_wait-chrome.png"))
			assert.FileExists(t, filepath.Join(dir, "login-chrome.png"))

			page := driver.Pages()[0]
			assert.Equal(t, interstitial, contains(page.Clicks(), harness.VisitSiteControl))
			assert.Equal(t, app.Site.URL(scenario.DashboardPath), page.URL())

			shot, err := os.ReadFile(filepath.Join(dir, "before_login_elements_wait-chrome.png"))
			require.NoError(t, err)
			assert.Contains(t, string(shot), scenario.LoginPath)
		})
	}
}

func TestBrokenLoginPage(t *testing.T) {
	app := scenariotest.New(scenariotest.Options{Credentials: admin, BrokenLogin: true})
	env := app.Env(admin)
	env.WaitTimeout = 100 * time.Millisecond

	for _, name := range []string{"login/valid", "compat/login"} {
		t.Run(name, func(t *testing.T) {
			dir, _, err := runScenario(t, app, name, env)

			var auth *harness.AuthenticationError
			require.ErrorAs(t, err, &auth)
			assert.Equal(t, app.Site.URL(scenario.LoginPath), auth.URL)
			assert.Equal(t, harness.KindAuthentication, harness.Classify(err))

			s, _ := scenario.Lookup(name)
			assert.FileExists(t, filepath.Join(dir, harness.ArtifactName(harness.FailureLabel(s.Step), harness.Chrome)))
		})
	}
}

func contains(locs []harness.Locator, want harness.Locator) bool {
	for _, l := range locs {
		if l == want {
			return true
		}
	}
	return false
}
