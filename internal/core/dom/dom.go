// Package dom is the small slice of a page document the core reads: its
// title, URL and the text of selected elements, plus clicking a control.
package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a read-only view of a frame's document.
type Document interface {
	Title() string
	URL() string

	// Text returns the trimmed text of the first element matching selector,
	// or "" when nothing matches.
	Text(selector string) string
}

// Clicker activates page controls.
type Clicker interface {
	// ClickFirst tries selectors in order and clicks the first element that
	// is visible and enabled. It reports whether a click happened.
	ClickFirst(selectors []string) bool
}

// HTMLDocument is a Document over a parsed HTML snapshot.
type HTMLDocument struct {
	sel *goquery.Selection
	url string

	// Clicked records the selector of the last successful ClickFirst.
	Clicked string
}

// NewHTMLDocument parses html fetched from url.
func NewHTMLDocument(html, url string) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &HTMLDocument{sel: doc.Selection, url: url}, nil
}

// FromSelection wraps an already parsed selection (e.g. colly's e.DOM).
func FromSelection(sel *goquery.Selection, url string) *HTMLDocument {
	return &HTMLDocument{sel: sel, url: url}
}

func (d *HTMLDocument) Title() string {
	return strings.TrimSpace(d.sel.Find("title").First().Text())
}

func (d *HTMLDocument) URL() string { return d.url }

func (d *HTMLDocument) Text(selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(d.sel.Find(selector).First().Text())
}

// ClickFirst on a static snapshot only resolves which control would be
// clicked; it records the selector in Clicked.
func (d *HTMLDocument) ClickFirst(selectors []string) bool {
	for _, s := range selectors {
		found := false
		d.sel.Find(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if usable(el) {
				found = true
				return false
			}
			return true
		})
		if found {
			d.Clicked = s
			return true
		}
	}
	return false
}

func usable(el *goquery.Selection) bool {
	if _, ok := el.Attr("disabled"); ok {
		return false
	}
	if _, ok := el.Attr("hidden"); ok {
		return false
	}
	if v, ok := el.Attr("aria-disabled"); ok && v == "true" {
		return false
	}
	style, _ := el.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return !strings.Contains(style, "display:none") && !strings.Contains(style, "visibility:hidden")
}
