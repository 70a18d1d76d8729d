package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocatorRendering(t *testing.T) {
	tests := []struct {
		name         string
		locator      Locator
		wantSelector string
		wantCSS      string
	}{
		{"css", ByCSS(`button[type="submit"]`), `button[type="submit"]`, `button[type="submit"]`},
		{"name", ByName("username"), `[name="username"]`, `[name="username"]`},
		{"class", ByClass("oxd-alert-content-text"), ".oxd-alert-content-text", ".oxd-alert-content-text"},
		{"tag", ByTag("h6"), "h6", "h6"},
		{"link text", ByLinkText("PIM"), `a:text-is("PIM")`, `a:containsOwn("PIM")`},
		{"partial link text", ByPartialLinkText("Logout"), `a:has-text("Logout")`, `a:contains("Logout")`},
		{"text", ByText("Visit Site"), "text=Visit Site", `:containsOwn("Visit Site")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantSelector, tt.locator.Selector())
			assert.Equal(t, tt.wantCSS, tt.locator.CSS())
			assert.Equal(t, tt.wantSelector, tt.locator.String())
		})
	}
}

func TestMarkerString(t *testing.T) {
	m := Marker{Locator: ByClass("title"), Text: "Dashboard"}
	assert.Equal(t, `.title containing "Dashboard"`, m.String())

	m = Marker{Locator: ByName("username"), Attribute: "placeholder", AttributeValue: "Username"}
	assert.Equal(t, `[name="username"] with @placeholder="Username"`, m.String())
}
