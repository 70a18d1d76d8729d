package harness

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

const diagnosePage = `<html>
<head><title>OrangeHRM</title><script>var secret = "x";</script></head>
<body>
	<div class="oxd-alert-content-text">Invalid credentials</div>
	<input name="username" placeholder="Username">
	<p hidden>hidden text</p>
	<p>Forgot your password?</p>
</body>
</html>`

func TestDiagnose(t *testing.T) {
	t.Run("no match reports page text", func(t *testing.T) {
		got := Diagnose(diagnosePage, Marker{Locator: ByClass("oxd-topbar-header-breadcrumb-module")})
		assert.Contains(t, got, "no element matches .oxd-topbar-header-breadcrumb-module")
		assert.Contains(t, got, `page "OrangeHRM"`)
		assert.Contains(t, got, "Forgot your password?")
		assert.NotContains(t, got, "secret")
	})

	t.Run("match reports element text", func(t *testing.T) {
		got := Diagnose(diagnosePage, Marker{Locator: ByClass("oxd-alert-content-text"), Text: "Dashboard"})
		assert.Contains(t, got, `1 element(s) match .oxd-alert-content-text with text "Invalid credentials"`)
	})

	t.Run("attribute value", func(t *testing.T) {
		got := Diagnose(diagnosePage, Marker{Locator: ByName("username"), Attribute: "placeholder"})
		assert.Contains(t, got, `@placeholder="Username"`)

		got = Diagnose(diagnosePage, Marker{Locator: ByName("username"), Attribute: "disabled"})
		assert.Contains(t, got, "@disabled missing")
	})
}

func TestPageText(t *testing.T) {
	text := PageText(diagnosePage, 1000)
	assert.Equal(t, "Invalid credentials Forgot your password?", text)

	long := "<p>" + strings.Repeat("word ", 100) + "</p>"
	truncated := PageText(long, 20)
	assert.True(t, strings.HasSuffix(truncated, "..."))
	assert.LessOrEqual(t, len(truncated), 23)
}

func TestTruncateKeepsRunes(t *testing.T) {
	// "Müller" has a two-byte ü at bytes 1-2.
	for max := 1; max <= 8; max++ {
		out := truncate("Müller Jürgen", max)
		assert.True(t, utf8.ValidString(out), "max=%d: %q", max, out)
		assert.LessOrEqual(t, len(out), max+len("..."))
	}
	assert.Equal(t, "M...", truncate("Müller", 2))
	assert.Equal(t, "Mü...", truncate("Müller", 3))
	assert.Equal(t, "Müller", truncate("Müller", 7))

	text := PageText("<p>"+strings.Repeat("ä", 50)+"</p>", 21)
	assert.True(t, utf8.ValidString(text))
}
