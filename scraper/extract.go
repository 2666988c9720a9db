package scraper

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jcleroy/newsdex/sources"
)

// ExtractKind selects what to pull from a matched element.
type ExtractKind int

const (
	// ExtractText extracts the element's visible text.
	ExtractText ExtractKind = iota
	// ExtractHref extracts the element's href attribute.
	ExtractHref
	// ExtractSrc extracts the element's src attribute.
	ExtractSrc
)

// extractField pulls one field's value out of a list-item element.
// Returns ("", false) when the field is unconfigured, the selector
// matches nothing, or the matched node lacks the requested attribute or
// text. When several elements match, the first wins.
func extractField(item *goquery.Selection, selectors SelectorMap, fieldName string, kind ExtractKind) (string, bool) {
	sel, ok := selectors[fieldName]
	if !ok {
		return "", false
	}

	matched := resolve(item, sel)
	if matched.Length() == 0 {
		return "", false
	}
	first := matched.First()

	var value string
	switch kind {
	case ExtractText:
		// Collapse runs of whitespace; scraped text is full of layout
		// newlines.
		value = strings.Join(strings.Fields(first.Text()), " ")
	case ExtractHref:
		value, _ = first.Attr("href")
		value = strings.TrimSpace(value)
	case ExtractSrc:
		value, _ = first.Attr("src")
		value = strings.TrimSpace(value)
	}

	if value == "" {
		return "", false
	}
	return value, true
}

// extractDateField locates the publication-date element and tries the
// usual carriers of a machine-readable date in priority order: a
// datetime attribute, a title attribute, a data-timestamp attribute,
// then the visible text. Returns nil when the field is unconfigured,
// unmatched, or unparseable.
func extractDateField(item *goquery.Selection, selectors SelectorMap) *time.Time {
	sel, ok := selectors[sources.FieldPublicationDate]
	if !ok {
		return nil
	}

	matched := resolve(item, sel)
	if matched.Length() == 0 {
		return nil
	}
	first := matched.First()

	raw := ""
	for _, attr := range []string{"datetime", "title", "data-timestamp"} {
		if v, ok := first.Attr(attr); ok && strings.TrimSpace(v) != "" {
			raw = strings.TrimSpace(v)
			break
		}
	}
	if raw == "" {
		raw = strings.TrimSpace(first.Text())
	}

	return ParseDate(raw)
}
