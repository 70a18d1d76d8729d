package scenario

import "github.com/entrhq/hrmcheck/pkg/harness"

// OrangeHRM paths, relative to the base URL
const (
	LoginPath     = "/web/index.php/auth/login"
	DashboardPath = "/web/index.php/dashboard/index"
)

// Login page
var (
	LoginForm = harness.DefaultLoginForm

	// InvalidCredentialsMarker is the alert shown after a rejected login
	InvalidCredentialsMarker = harness.Marker{
		Locator: harness.ByClass("oxd-alert-content-text"),
		Text:    "Invalid credentials",
	}
)

// Top bar, present on every authenticated page
var (
	// DashboardMarker is the breadcrumb shown after a successful login
	DashboardMarker = harness.Marker{
		Locator: harness.ByClass("oxd-topbar-header-breadcrumb-module"),
		Text:    "Dashboard",
	}

	UserDropdown = harness.ByClass("oxd-userdropdown-name")
	LogoutLink   = harness.ByPartialLinkText("Logout")
)

// PIM module
var (
	PIMMenu         = harness.ByLinkText("PIM")
	AddEmployeeLink = harness.ByLinkText("Add Employee")

	FirstNameInput  = harness.ByName("firstName")
	MiddleNameInput = harness.ByName("middleName")
	LastNameInput   = harness.ByName("lastName")
	SaveButton      = harness.ByCSS(`button[type="submit"]`)

	MainTitle = harness.ByClass("orangehrm-main-title")

	// PersonalDetailsMarker is the title of a saved employee's page
	PersonalDetailsMarker = harness.Marker{Locator: MainTitle, Text: "Personal Details"}

	// RequiredFieldMarker is the validation message under an empty
	// required input
	RequiredFieldMarker = harness.Marker{
		Locator: harness.ByClass("oxd-input-field-error-message"),
		Text:    "Required",
	}
)

// Employee is the data entered on the Add Employee form.
type Employee struct {
	FirstName  string
	MiddleName string
	LastName   string
}

// FullName joins the non-empty name parts.
func (e Employee) FullName() string {
	name := e.FirstName
	for _, part := range []string{e.MiddleName, e.LastName} {
		if part != "" {
			if name != "" {
				name += " "
			}
			name += part
		}
	}
	return name
}

// NewEmployee is the employee created by the add-employee scenario.
var NewEmployee = Employee{FirstName: "James", MiddleName: "Anderson", LastName: "Harden"}

// InvalidCredentials are rejected by every OrangeHRM installation.
var InvalidCredentials = harness.Credentials{Username: "wronguser", Password: "wrongpass"}
