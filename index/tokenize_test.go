package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTokenize_Basic verifies case folding and punctuation splitting
func TestTokenize_Basic(t *testing.T) {
	fragments := Tokenize("OpenAI releases GPT-5!")

	assert.ElementsMatch(t, []string{"openai", "releases", "gpt-5"}, fragments)
}

// TestTokenize_StopWordsRemoved verifies stop-word filtering
func TestTokenize_StopWordsRemoved(t *testing.T) {
	fragments := Tokenize("The rise and fall of empires in Europe")

	assert.ElementsMatch(t, []string{"rise", "fall", "empires", "europe"}, fragments)
}

// TestTokenize_FrenchStopWords verifies the French side of the stop list
func TestTokenize_FrenchStopWords(t *testing.T) {
	fragments := Tokenize("Grève dans les transports à Paris")

	assert.NotContains(t, fragments, "dans")
	assert.NotContains(t, fragments, "à")
	assert.Contains(t, fragments, "grève")
	assert.Contains(t, fragments, "paris")
}

// TestTokenize_ShortTokensDropped verifies single-character removal
func TestTokenize_ShortTokensDropped(t *testing.T) {
	fragments := Tokenize("A B see 1 22")

	assert.ElementsMatch(t, []string{"see", "22"}, fragments)
}

// TestTokenize_Deduplicates verifies fragments are unique per title
func TestTokenize_Deduplicates(t *testing.T) {
	fragments := Tokenize("News news NEWS: more news")

	assert.Equal(t, []string{"news", "more"}, fragments)
}

// TestTokenize_PunctuationClass verifies splitting on the full
// punctuation class
func TestTokenize_PunctuationClass(t *testing.T) {
	fragments := Tokenize("alpha,beta.gamma!delta?epsilon(zeta)[eta]{theta}")

	assert.ElementsMatch(t,
		[]string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"},
		fragments)
}

// TestTokenize_StandaloneHyphenSplits verifies a hyphen surrounded by
// spaces does not glue tokens together
func TestTokenize_StandaloneHyphenSplits(t *testing.T) {
	fragments := Tokenize("china - ai summit")

	assert.ElementsMatch(t, []string{"china", "ai", "summit"}, fragments)
}

// TestTokenize_TruncatesLongTokens verifies the 50-rune cap
func TestTokenize_TruncatesLongTokens(t *testing.T) {
	long := strings.Repeat("x", 80)
	fragments := Tokenize(long)

	assert.Len(t, fragments, 1)
	assert.Len(t, fragments[0], 50)
}

// TestTokenize_EmptyAndPunctuationOnly verifies degenerate inputs
func TestTokenize_EmptyAndPunctuationOnly(t *testing.T) {
	assert.Nil(t, Tokenize(""))
	assert.Nil(t, Tokenize("!!! ... ---"))
}

// TestTokenize_StopWordsBothLanguages verifies the English and French
// lists through the public surface
func TestTokenize_StopWordsBothLanguages(t *testing.T) {
	assert.Equal(t, []string{"voyage", "train"}, Tokenize("voyage avec train"))
	assert.Nil(t, Tokenize("and avec"))
	assert.Equal(t, []string{"air", "space"}, Tokenize("air and space"))
}
