package scraper

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/jcleroy/newsdex/sources"
)

// Target names the element a selector is resolved against.
type Target int

const (
	// CurrentElement resolves the selector inside the matched list
	// item.
	CurrentElement Target = iota
	// NextSibling resolves the selector inside the element immediately
	// following the matched list item. Some sources place article
	// metadata in an adjacent node rather than inside the item itself.
	NextSibling
)

// Selector is an explicit descriptor for locating one field inside (or
// next to) a list-item element. Tag and Qualifier concatenate into a
// CSS selector string; an empty descriptor selects the scope element
// itself.
type Selector struct {
	Target    Target
	Tag       string
	Qualifier string
}

// String returns the CSS selector text, e.g. Tag "div" + Qualifier
// ".headline" -> "div.headline".
func (s Selector) String() string {
	return s.Tag + s.Qualifier
}

// SelectorFromTag converts a stored FieldTagConfig into a Selector
// descriptor.
func SelectorFromTag(tag sources.FieldTagConfig) Selector {
	target := CurrentElement
	if tag.NextSibling {
		target = NextSibling
	}
	qualifier := ""
	if tag.ClassName != "" {
		qualifier = "." + tag.ClassName
	}
	return Selector{
		Target:    target,
		Tag:       tag.TagName,
		Qualifier: qualifier,
	}
}

// SelectorMap maps a logical field name to its selector descriptor.
type SelectorMap map[string]Selector

// BuildSelectorMap builds the field-name lookup for one source. When a
// field somehow appears twice the first config wins; the store's unique
// constraint makes that impossible in practice.
func BuildSelectorMap(tags []sources.FieldTagConfig) SelectorMap {
	m := make(SelectorMap, len(tags))
	for _, tag := range tags {
		if _, exists := m[tag.FieldName]; exists {
			continue
		}
		m[tag.FieldName] = SelectorFromTag(tag)
	}
	return m
}

// resolve applies a selector descriptor to a scope element and returns
// the matched selection. It is the single place sibling indirection
// happens.
func resolve(scope *goquery.Selection, sel Selector) *goquery.Selection {
	if sel.Target == NextSibling {
		scope = scope.Next()
	}
	query := sel.String()
	if query == "" {
		return scope
	}
	return scope.Find(query)
}
