// Package index turns article titles into the lowercase word fragments
// stored in the inverted keyword index. The same tokenization is applied
// on the write path (indexing a new article) and on the read path
// (splitting a search keyword), so both sides always agree on what a
// fragment is.
package index

import (
	"regexp"
	"strings"
)

// maxFragmentLen caps a fragment at the width of the title_fragment
// column.
const maxFragmentLen = 50

// tokenPattern matches a run of letters/digits, allowing interior
// hyphens so compound terms like "gpt-5" index as a single fragment.
// Hyphens next to whitespace or other punctuation act as separators.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:-[\p{L}\p{N}]+)*`)

// stopWords is a closed set of common English and French conjunctions
// and prepositions that carry no search value.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"and", "or", "but", "so", "because", "although", "if", "when",
		"after", "before", "since", "unless", "while", "as", "though",
		"until", "whereas", "once", "whether", "even", "now", "that",
		"the", "of", "in", "at", "on", "for", "with", "about", "by",
		"to", "from",
		"et", "ou", "mais", "donc", "lorsque", "si", "quand", "puisque",
		"comme", "de", "à", "avec", "dans", "sur", "pour", "par", "en",
		"chez", "sous",
	} {
		stopWords[w] = struct{}{}
	}
}

// Tokenize splits a title into the unique lowercase fragments that make
// up its inverted-index entries. Tokens of length <= 1 and stop-words
// are discarded, fragments are capped at 50 runes, and duplicates are
// removed while preserving first-seen order. An empty or
// all-punctuation title yields nil.
func Tokenize(title string) []string {
	lowered := strings.ToLower(title)

	var fragments []string
	seen := map[string]struct{}{}

	for _, token := range tokenPattern.FindAllString(lowered, -1) {
		if len([]rune(token)) <= 1 {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		if runes := []rune(token); len(runes) > maxFragmentLen {
			token = string(runes[:maxFragmentLen])
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		fragments = append(fragments, token)
	}

	return fragments
}

