package harness

import (
	"fmt"
	"strconv"
)

// LocatorKind says how a Locator's value is interpreted.
type LocatorKind int

const (
	// KindCSS is a raw CSS selector
	KindCSS LocatorKind = iota
	// KindName matches the name attribute
	KindName
	// KindClass matches a single class name
	KindClass
	// KindTag matches an element name
	KindTag
	// KindLinkText matches an anchor whose text equals the value
	KindLinkText
	// KindPartialLinkText matches an anchor whose text contains the value
	KindPartialLinkText
	// KindText matches the smallest element containing the value
	KindText
)

// Locator is a typed element query. It renders to a Playwright selector for
// the live browser and to a CSS selector for offline DOM inspection.
type Locator struct {
	Kind  LocatorKind
	Value string
}

// ByCSS locates elements with a CSS selector.
func ByCSS(selector string) Locator { return Locator{Kind: KindCSS, Value: selector} }

// ByName locates form controls by their name attribute.
func ByName(name string) Locator { return Locator{Kind: KindName, Value: name} }

// ByClass locates elements carrying a class.
func ByClass(class string) Locator { return Locator{Kind: KindClass, Value: class} }

// ByTag locates elements by tag name.
func ByTag(tag string) Locator { return Locator{Kind: KindTag, Value: tag} }

// ByLinkText locates links by their exact text.
func ByLinkText(text string) Locator { return Locator{Kind: KindLinkText, Value: text} }

// ByPartialLinkText locates links whose text contains the value.
func ByPartialLinkText(text string) Locator {
	return Locator{Kind: KindPartialLinkText, Value: text}
}

// ByText locates any element by its visible text.
func ByText(text string) Locator { return Locator{Kind: KindText, Value: text} }

// Selector renders the locator in Playwright selector syntax.
func (l Locator) Selector() string {
	switch l.Kind {
	case KindName:
		return fmt.Sprintf("[name=%s]", strconv.Quote(l.Value))
	case KindClass:
		return "." + l.Value
	case KindTag:
		return l.Value
	case KindLinkText:
		return fmt.Sprintf("a:text-is(%s)", strconv.Quote(l.Value))
	case KindPartialLinkText:
		return fmt.Sprintf("a:has-text(%s)", strconv.Quote(l.Value))
	case KindText:
		return "text=" + l.Value
	default:
		return l.Value
	}
}

// CSS renders the locator as a cascadia/goquery selector. Text matching uses
// the :contains extensions, which are case-sensitive.
func (l Locator) CSS() string {
	switch l.Kind {
	case KindName:
		return fmt.Sprintf("[name=%s]", strconv.Quote(l.Value))
	case KindClass:
		return "." + l.Value
	case KindTag:
		return l.Value
	case KindLinkText:
		return fmt.Sprintf("a:containsOwn(%s)", strconv.Quote(l.Value))
	case KindPartialLinkText:
		return fmt.Sprintf("a:contains(%s)", strconv.Quote(l.Value))
	case KindText:
		return fmt.Sprintf(":containsOwn(%s)", strconv.Quote(l.Value))
	default:
		return l.Value
	}
}

// String implements fmt.Stringer.
func (l Locator) String() string {
	return l.Selector()
}

// Marker is a locator plus the text or attribute that confirms an expected
// application state.
type Marker struct {
	// Locator identifies the element carrying the marker
	Locator Locator

	// Text must be contained in the element text, compared case-insensitively
	Text string

	// Attribute optionally names an attribute the element must carry
	Attribute string

	// AttributeValue, when set, must equal the attribute value
	AttributeValue string
}

// String implements fmt.Stringer.
func (m Marker) String() string {
	s := m.Locator.String()
	if m.Text != "" {
		s += fmt.Sprintf(" containing %q", m.Text)
	}
	if m.Attribute != "" {
		s += fmt.Sprintf(" with @%s", m.Attribute)
		if m.AttributeValue != "" {
			s += fmt.Sprintf("=%q", m.AttributeValue)
		}
	}
	return s
}
