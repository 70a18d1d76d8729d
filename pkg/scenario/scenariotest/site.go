// Package scenariotest serves a minimal OrangeHRM lookalike on the
// harnesstest fake driver so scenario flows can run without a browser.
package scenariotest

import (
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/hrmcheck/pkg/harness"
	"github.com/entrhq/hrmcheck/pkg/harness/harnesstest"
	"github.com/entrhq/hrmcheck/pkg/scenario"
)

// Paths served besides scenario.LoginPath and scenario.DashboardPath
const (
	EmployeeListPath    = "/web/index.php/pim/viewEmployeeList"
	AddEmployeePath     = "/web/index.php/pim/addEmployee"
	PersonalDetailsPath = "/web/index.php/pim/viewPersonalDetails/empNumber/7"
)

const loginPage = `<html><head><title>OrangeHRM</title></head><body>
<div class="orangehrm-login-container">
	<h5 class="orangehrm-login-title">Login</h5>
	<div class="oxd-alert oxd-alert--error" role="alert" hidden>
		<p class="oxd-text oxd-alert-content-text">Invalid credentials</p>
	</div>
	<form class="oxd-form">
		<input class="oxd-input" name="username" placeholder="Username">
		<input class="oxd-input" name="password" type="password" placeholder="Password">
		<button type="submit" class="oxd-button orangehrm-login-button">Login</button>
	</form>
	<p class="orangehrm-login-forgot-header">Forgot your password?</p>
</div>
</body></html>`

const interstitialPage = `<html><head><title>ngrok</title></head><body>
<h1>You are about to visit hrm.test</h1>
<p>This website is served for free through ngrok.</p>
<button type="button">Visit Site</button>
</body></html>`

// topbar renders the header shared by authenticated pages.
func topbar(module string) string {
	return fmt.Sprintf(`<header class="oxd-topbar">
	<h6 class="oxd-text oxd-topbar-header-breadcrumb-module">%s</h6>
	<span class="oxd-userdropdown-name">Paul Collings</span>
	<ul class="oxd-dropdown-menu" role="menu" hidden>
		<li><a href="#" class="oxd-userdropdown-link">About</a></li>
		<li><a href="/web/index.php/auth/logout" class="oxd-userdropdown-link">Logout</a></li>
	</ul>
</header>
<aside class="oxd-sidepanel">
	<a class="oxd-main-menu-item" href="%s">PIM</a>
	<a class="oxd-main-menu-item" href="%s">Dashboard</a>
</aside>`, module, EmployeeListPath, scenario.DashboardPath)
}

func page(module, body string) string {
	return fmt.Sprintf("<html><head><title>OrangeHRM</title></head><body>%s<main>%s</main></body></html>", topbar(module), body)
}

var dashboardPage = page("Dashboard", `<div class="orangehrm-dashboard-grid"><p>Time at Work</p></div>`)

var employeeListPage = page("PIM", `<nav class="oxd-topbar-body-nav">
	<a class="oxd-topbar-body-nav-tab-item" href="`+EmployeeListPath+`">Employee List</a>
	<a class="oxd-topbar-body-nav-tab-item" href="`+AddEmployeePath+`">Add Employee</a>
</nav>`)

var addEmployeePage = page("PIM", `<h6 class="oxd-text orangehrm-main-title">Add Employee</h6>
<form class="oxd-form">
	<input class="oxd-input" name="firstName" placeholder="First Name">
	<span class="oxd-text oxd-input-field-error-message" hidden>Required</span>
	<input class="oxd-input" name="middleName" placeholder="Middle Name">
	<input class="oxd-input" name="lastName" placeholder="Last Name">
	<span class="oxd-text oxd-input-field-error-message" hidden>Required</span>
	<button type="button" class="oxd-button--ghost">Cancel</button>
	<button type="submit" class="oxd-button--secondary">Save</button>
</form>`)

const personalDetailsTemplate = `<h6 class="oxd-text orangehrm-main-title">Personal Details</h6>
<div class="orangehrm-edit-employee-name"><h6>%s</h6></div>`

// Options configures the fake application.
type Options struct {
	// Credentials accepted by the login form
	Credentials harness.Credentials

	// Interstitial serves the tunnelling warning page at "/"
	Interstitial bool

	// BrokenLogin serves a login page without the username input
	BrokenLogin bool
}

// OrangeHRM is a fake OrangeHRM installation.
type OrangeHRM struct {
	Site *harnesstest.Site

	mu        sync.Mutex
	employees []scenario.Employee
	logins    int
	logouts   int
}

// New builds the fake application.
func New(opts Options) *OrangeHRM {
	app := &OrangeHRM{Site: harnesstest.NewSite()}
	site := app.Site

	if opts.Interstitial {
		site.Handle("/", interstitialPage)
		site.OnClick("/", harness.VisitSiteControl, func(p *harnesstest.Page) {
			_ = p.Navigate(scenario.LoginPath)
		})
	} else {
		site.Handle("/", loginPage)
	}

	if opts.BrokenLogin {
		site.Handle(scenario.LoginPath, `<html><body><p>502 Bad Gateway</p></body></html>`)
	} else {
		site.Handle(scenario.LoginPath, loginPage)
	}

	site.Handle(scenario.DashboardPath, dashboardPage)
	site.Handle(EmployeeListPath, employeeListPage)
	site.Handle(AddEmployeePath, addEmployeePage)

	site.OnClick(scenario.LoginPath, scenario.LoginForm.Submit, func(p *harnesstest.Page) {
		if p.Value(`[name="username"]`) == opts.Credentials.Username &&
			p.Value(`[name="password"]`) == opts.Credentials.Password &&
			opts.Credentials.Username != "" {
			app.mu.Lock()
			app.logins++
			app.mu.Unlock()
			_ = p.Navigate(scenario.DashboardPath)
			return
		}
		p.Show(".oxd-alert")
	})

	for _, path := range []string{scenario.DashboardPath, EmployeeListPath, AddEmployeePath, PersonalDetailsPath} {
		site.OnClick(path, scenario.UserDropdown, func(p *harnesstest.Page) {
			p.Show(".oxd-dropdown-menu")
		})
		site.OnClick(path, scenario.LogoutLink, func(p *harnesstest.Page) {
			app.mu.Lock()
			app.logouts++
			app.mu.Unlock()
			_ = p.Navigate(scenario.LoginPath)
		})
	}

	site.OnClick(AddEmployeePath, scenario.SaveButton, func(p *harnesstest.Page) {
		e := scenario.Employee{
			FirstName:  p.Value(`[name="firstName"]`),
			MiddleName: p.Value(`[name="middleName"]`),
			LastName:   p.Value(`[name="lastName"]`),
		}
		if e.FirstName == "" || e.LastName == "" {
			p.Show(".oxd-input-field-error-message")
			return
		}

		app.mu.Lock()
		app.employees = append(app.employees, e)
		app.mu.Unlock()

		site.Handle(PersonalDetailsPath, page("PIM", fmt.Sprintf(personalDetailsTemplate, e.FullName())))
		_ = p.Navigate(PersonalDetailsPath)
	})

	return app
}

// Env returns a scenario environment pointing at the fake application with
// short timeouts.
func (a *OrangeHRM) Env(creds harness.Credentials) scenario.Env {
	return scenario.Env{
		BaseURL:             a.Site.BaseURL,
		Credentials:         creds,
		WaitTimeout:         time.Second,
		InterstitialTimeout: 100 * time.Millisecond,
		AbsenceTimeout:      50 * time.Millisecond,
	}
}

// Employees returns the employees saved so far.
func (a *OrangeHRM) Employees() []scenario.Employee {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]scenario.Employee(nil), a.employees...)
}

// Logins counts successful logins.
func (a *OrangeHRM) Logins() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.logins
}

// Logouts counts clicks on the Logout link.
func (a *OrangeHRM) Logouts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.logouts
}
