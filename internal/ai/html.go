package ai

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var codeFencePattern = regexp.MustCompile("(?s)```(?:html)?\\s*\\n(.*?)\\n```")

// ExtractHTML unwraps model output: the model may return the page
// inside a fenced code block, as bare HTML, or as plain text.
func ExtractHTML(raw string) string {
	if matches := codeFencePattern.FindStringSubmatch(raw); matches != nil {
		return strings.TrimSpace(matches[1])
	}
	return strings.TrimSpace(raw)
}

// ValidatePage rejects output that is not a usable standalone page.
func ValidatePage(html string) error {
	if !strings.Contains(html, "<html") && !strings.Contains(html, "<!DOCTYPE") {
		return fmt.Errorf("output does not look like an HTML document")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("could not parse generated HTML: %w", err)
	}
	if doc.Find("body").Children().Length() == 0 {
		return fmt.Errorf("generated HTML body is empty")
	}
	return nil
}

// PageTitle extracts a human-readable title for the deployment
// announcement, falling back to the first heading.
func PageTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}
