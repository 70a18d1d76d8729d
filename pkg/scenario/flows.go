package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/hrmcheck/pkg/harness"
)

func init() {
	register(Scenario{
		Name:             "login/valid",
		Step:             "login-success",
		Description:      "log in with the configured user and reach the dashboard",
		NeedsCredentials: true,
		Run:              LoginValid,
	})
	register(Scenario{
		Name:        "login/invalid",
		Step:        "login-invalid",
		Description: "log in with wrong credentials and see the alert",
		Run:         LoginInvalid,
	})
	register(Scenario{
		Name:             "logout",
		Step:             "logout-success",
		Description:      "log in, log out from the user menu and land on the login page",
		NeedsCredentials: true,
		Run:              Logout,
	})
	register(Scenario{
		Name:             "employee/add-valid",
		Step:             "add-employee-valid",
		Description:      "add an employee through PIM and reach their personal details",
		NeedsCredentials: true,
		Run:              AddEmployeeValid,
	})
	register(Scenario{
		Name:             "employee/add-invalid",
		Step:             "add-employee-invalid",
		Description:      "save an empty Add Employee form and see required-field errors",
		NeedsCredentials: true,
		Run:              AddEmployeeInvalid,
	})
	register(Scenario{
		Name:             "compat/login",
		Step:             "login",
		Description:      "open the base URL, pass the tunnel warning and log in",
		NeedsCredentials: true,
		Run:              CompatLogin,
	})
}

// login submits creds on the login page without checking the outcome.
func login(ctx context.Context, s *harness.Session, env Env, creds harness.Credentials) error {
	return harness.LoginWith(ctx, s, LoginForm, env.LoginURL(), creds, env.WaitTimeout)
}

// loginAs logs in and waits for the dashboard.
func loginAs(ctx context.Context, s *harness.Session, env Env, creds harness.Credentials) error {
	if err := login(ctx, s, env, creds); err != nil {
		return err
	}
	return harness.ExpectOutcome(ctx, s, DashboardMarker, env.WaitTimeout)
}

// clickWhenReady waits for loc to be clickable and clicks it.
func clickWhenReady(ctx context.Context, s *harness.Session, env Env, loc harness.Locator) error {
	err := s.Wait(ctx, harness.WaitCondition{Locator: loc, Condition: harness.Clickable, Timeout: env.WaitTimeout})
	if err != nil {
		return err
	}
	return s.Click(ctx, loc)
}

// LoginValid logs in with the configured credentials and expects the
// dashboard breadcrumb.
func LoginValid(ctx context.Context, s *harness.Session, env Env) error {
	return loginAs(ctx, s, env, env.Credentials)
}

// LoginInvalid logs in with wrong credentials, expects the alert and checks
// the dashboard never appears.
func LoginInvalid(ctx context.Context, s *harness.Session, env Env) error {
	if err := login(ctx, s, env, InvalidCredentials); err != nil {
		return err
	}
	if err := harness.ExpectOutcome(ctx, s, InvalidCredentialsMarker, env.WaitTimeout); err != nil {
		return err
	}
	return harness.ExpectAbsent(ctx, s, DashboardMarker, env.AbsenceTimeout)
}

// Logout logs in, opens the user menu, clicks Logout and expects to be back
// on the login page.
func Logout(ctx context.Context, s *harness.Session, env Env) error {
	if err := login(ctx, s, env, env.Credentials); err != nil {
		return err
	}
	if err := clickWhenReady(ctx, s, env, UserDropdown); err != nil {
		return fmt.Errorf("failed to open user menu: %w", err)
	}
	if err := clickWhenReady(ctx, s, env, LogoutLink); err != nil {
		return fmt.Errorf("failed to click logout: %w", err)
	}

	usernameVisible := harness.Marker{Locator: LoginForm.Username}
	if err := harness.ExpectOutcome(ctx, s, usernameVisible, env.WaitTimeout); err != nil {
		return err
	}

	if url := s.URL(); !strings.Contains(strings.ToLower(url), "login") {
		return &harness.AssertionFailure{
			Marker:    usernameVisible,
			Diagnosis: fmt.Sprintf("current URL %s is not the login page", url),
		}
	}
	return nil
}

// openAddEmployee navigates PIM -> Add Employee.
func openAddEmployee(ctx context.Context, s *harness.Session, env Env) error {
	if err := clickWhenReady(ctx, s, env, PIMMenu); err != nil {
		return fmt.Errorf("failed to open PIM: %w", err)
	}
	if err := clickWhenReady(ctx, s, env, AddEmployeeLink); err != nil {
		return fmt.Errorf("failed to open Add Employee: %w", err)
	}
	return nil
}

// FillEmployee enters e into the Add Employee form.
func FillEmployee(ctx context.Context, s *harness.Session, env Env, e Employee) error {
	err := s.Wait(ctx, harness.WaitCondition{Locator: FirstNameInput, Condition: harness.Visible, Timeout: env.WaitTimeout})
	if err != nil {
		return err
	}

	fields := []struct {
		locator harness.Locator
		value   string
	}{
		{FirstNameInput, e.FirstName},
		{MiddleNameInput, e.MiddleName},
		{LastNameInput, e.LastName},
	}
	for _, f := range fields {
		if err := s.Fill(ctx, f.locator, f.value); err != nil {
			return err
		}
	}
	return nil
}

// AddEmployeeValid creates NewEmployee and expects the personal details page.
func AddEmployeeValid(ctx context.Context, s *harness.Session, env Env) error {
	if err := login(ctx, s, env, env.Credentials); err != nil {
		return err
	}
	if err := openAddEmployee(ctx, s, env); err != nil {
		return err
	}
	if err := FillEmployee(ctx, s, env, NewEmployee); err != nil {
		return fmt.Errorf("failed to fill employee form: %w", err)
	}
	if err := clickWhenReady(ctx, s, env, SaveButton); err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}

	// The title keeps reading "Add Employee" until the save redirects.
	err := s.Wait(ctx, harness.WaitCondition{
		Locator:   MainTitle,
		Condition: harness.TextAbsent,
		Text:      "Add Employee",
		Timeout:   env.WaitTimeout,
	})
	if err != nil {
		return fmt.Errorf("employee form did not submit: %w", err)
	}

	return harness.ExpectOutcome(ctx, s, PersonalDetailsMarker, env.WaitTimeout)
}

// AddEmployeeInvalid saves an empty Add Employee form and expects at least
// one required-field error.
func AddEmployeeInvalid(ctx context.Context, s *harness.Session, env Env) error {
	if err := login(ctx, s, env, env.Credentials); err != nil {
		return err
	}
	if err := openAddEmployee(ctx, s, env); err != nil {
		return err
	}
	if err := clickWhenReady(ctx, s, env, SaveButton); err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return harness.ExpectOutcome(ctx, s, RequiredFieldMarker, env.WaitTimeout)
}

// CompatLogin is the cross-browser smoke flow: open the base URL, bypass the
// tunnelling interstitial if present, then log in and expect the dashboard.
func CompatLogin(ctx context.Context, s *harness.Session, env Env) error {
	if err := s.Navigate(ctx, env.URL("/")); err != nil {
		return fmt.Errorf("failed to open %s: %w", env.BaseURL, err)
	}

	harness.BypassInterstitial(ctx, s, env.InterstitialTimeout)

	if err := s.Navigate(ctx, env.LoginURL()); err != nil {
		return &harness.AuthenticationError{URL: env.LoginURL(), Err: err}
	}
	if _, err := s.Screenshot(ctx, "before_login_elements_wait"); err != nil {
		return fmt.Errorf("failed to capture login page: %w", err)
	}

	if err := harness.SubmitLogin(ctx, s, LoginForm, env.Credentials, env.WaitTimeout); err != nil {
		return err
	}
	return harness.ExpectOutcome(ctx, s, DashboardMarker, env.WaitTimeout)
}
