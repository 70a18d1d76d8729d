package harness

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// maxDiagnosisText bounds the amount of page text quoted in a diagnosis.
const maxDiagnosisText = 300

// Diagnose explains what the marker's locator matches in a serialized page.
// It is used to enrich AssertionFailure messages after the browser has moved
// on, so it works from the HTML alone.
func Diagnose(rawHTML string, marker Marker) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return fmt.Sprintf("failed to parse page: %v", err)
	}

	matches := doc.Find(marker.Locator.CSS())
	if matches.Length() == 0 {
		summary := PageText(rawHTML, maxDiagnosisText)
		if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
			return fmt.Sprintf("no element matches %s on page %q; page text: %s", marker.Locator, title, summary)
		}
		return fmt.Sprintf("no element matches %s; page text: %s", marker.Locator, summary)
	}

	var texts []string
	matches.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		texts = append(texts, fmt.Sprintf("%q", truncate(collapseSpace(sel.Text()), 80)))
		return i < 4
	})

	msg := fmt.Sprintf("%d element(s) match %s with text %s", matches.Length(), marker.Locator, strings.Join(texts, ", "))
	if marker.Attribute != "" {
		if value, ok := matches.First().Attr(marker.Attribute); ok {
			msg += fmt.Sprintf("; @%s=%q", marker.Attribute, value)
		} else {
			msg += fmt.Sprintf("; @%s missing", marker.Attribute)
		}
	}
	return msg
}

// PageText extracts the readable text of a page, skipping scripts, styles
// and other non-rendered content, truncated to maxLength bytes.
func PageText(rawHTML string, maxLength int) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var builder strings.Builder
	collectText(doc, &builder, maxLength)

	text := collapseSpace(builder.String())
	return truncate(text, maxLength)
}

// collectText walks n depth-first appending text nodes until maxLength is
// reached. It reports whether the limit was hit.
func collectText(n *html.Node, builder *strings.Builder, maxLength int) bool {
	if builder.Len() >= maxLength {
		return true
	}

	switch n.Type {
	case html.CommentNode:
		return false
	case html.ElementNode:
		if isSkippedElement(strings.ToLower(n.Data)) || hasAttr(n, "hidden") {
			return false
		}
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			builder.WriteString(text)
			builder.WriteString(" ")
		}
		return builder.Len() >= maxLength
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if collectText(c, builder, maxLength) {
			return true
		}
	}
	return false
}

// isSkippedElement returns true for elements that never carry visible text
func isSkippedElement(tagName string) bool {
	switch tagName {
	case "head", "script", "style", "noscript", "template", "iframe", "svg":
		return true
	}
	return false
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
