package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcleroy/newsdex/fetch"
	"github.com/jcleroy/newsdex/sources"
)

// stubFetcher returns a canned body (or error) and records the URLs it
// was asked for.
type stubFetcher struct {
	body string
	err  error
	urls []string
}

func (f *stubFetcher) Get(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return "", f.err
	}
	return f.body, nil
}

func testSource() sources.Source {
	return sources.Source{
		ID:           uuid.New(),
		Title:        "Example News",
		TargetURL:    "https://news.example.com",
		SourceType:   "website",
		ListSelector: ".item",
	}
}

func testTags(sourceID uuid.UUID) []sources.FieldTagConfig {
	return []sources.FieldTagConfig{
		{SourceID: sourceID, FieldName: sources.FieldTitle, TagName: "span", ClassName: "titleline"},
		{SourceID: sourceID, FieldName: sources.FieldLink, TagName: "a", ClassName: "storylink"},
		{SourceID: sourceID, FieldName: sources.FieldPublicationDate, TagName: "span", ClassName: "age"},
		{SourceID: sourceID, FieldName: sources.FieldSummary, TagName: "p", ClassName: "summary"},
	}
}

func TestScrape_NoTagsConfigured(t *testing.T) {
	fetcher := &stubFetcher{body: "<html></html>"}
	s := New(fetcher, nil)
	source := testSource()

	result := s.Scrape(context.Background(), source, nil, "")

	assert.False(t, result.Success)
	var scrapeErr *Error
	require.ErrorAs(t, result.Err, &scrapeErr)
	assert.Equal(t, KindMissingConfig, scrapeErr.Kind)
	assert.Equal(t, source.ID, scrapeErr.SourceID)
	assert.Empty(t, fetcher.urls, "should not fetch when unconfigured")
}

func TestScrape_FetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	s := New(fetcher, nil)
	source := testSource()

	result := s.Scrape(context.Background(), source, testTags(source.ID), "")

	assert.False(t, result.Success)
	assert.Empty(t, result.Articles)

	var scrapeErr *Error
	require.ErrorAs(t, result.Err, &scrapeErr)
	assert.Equal(t, KindNetwork, scrapeErr.Kind)
	assert.Equal(t, source.ID, scrapeErr.SourceID)
	assert.Equal(t, "https://news.example.com", scrapeErr.URL)
	assert.Zero(t, scrapeErr.StatusCode, "transport errors carry no status")
	assert.Contains(t, result.Err.Error(), "connection refused")
}

func TestScrape_FetchFailureCarriesStatus(t *testing.T) {
	fetchErr := &fetch.Error{
		URL:        "https://news.example.com",
		StatusCode: 503,
		Attempts:   3,
		Err:        errors.New("HTTP error: 503 Service Unavailable"),
	}
	fetcher := &stubFetcher{err: fetchErr}
	s := New(fetcher, nil)
	source := testSource()

	result := s.Scrape(context.Background(), source, testTags(source.ID), "")

	var scrapeErr *Error
	require.ErrorAs(t, result.Err, &scrapeErr)
	assert.Equal(t, KindNetwork, scrapeErr.Kind)
	assert.Equal(t, 503, scrapeErr.StatusCode)

	var unwrapped *fetch.Error
	require.ErrorAs(t, result.Err, &unwrapped, "the fetch error stays reachable through Unwrap")
	assert.Equal(t, 3, unwrapped.Attempts)
}

func TestScrape_ExtractsCompleteItemsOnly(t *testing.T) {
	page := `
	<html><body>
	<div class="item">
		<span class="titleline">OpenAI releases GPT-5</span>
		<a class="storylink" href="/articles/1">read</a>
		<span class="age" title="2026-03-15T10:00:00Z">back then</span>
		<p class="summary">A   big
		release.</p>
	</div>
	<div class="item">
		<a class="storylink" href="/articles/2">item without a title</a>
	</div>
	<div class="item">
		<span class="titleline">Item without a link</span>
	</div>
	</body></html>`

	fetcher := &stubFetcher{body: page}
	s := New(fetcher, nil)
	source := testSource()

	result := s.Scrape(context.Background(), source, testTags(source.ID), "")

	require.True(t, result.Success)
	require.Len(t, result.Articles, 1, "items missing title or link are skipped")

	article := result.Articles[0]
	assert.Equal(t, "OpenAI releases GPT-5", article.Title)
	assert.Equal(t, "https://news.example.com/articles/1", article.URL)
	assert.Equal(t, "A big release.", article.Summary, "whitespace runs collapse")
	require.NotNil(t, article.PublishedAt)
	assert.True(t, article.PublishedAt.Equal(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)))
}

func TestScrape_OptionalFieldsMayBeAbsent(t *testing.T) {
	page := `
	<div class="item">
		<span class="titleline">Bare minimum</span>
		<a class="storylink" href="/articles/9">go</a>
	</div>`

	fetcher := &stubFetcher{body: page}
	s := New(fetcher, nil)
	source := testSource()

	result := s.Scrape(context.Background(), source, testTags(source.ID), "")

	require.True(t, result.Success)
	require.Len(t, result.Articles, 1)
	assert.Nil(t, result.Articles[0].PublishedAt)
	assert.Empty(t, result.Articles[0].Summary)
}

func TestScrape_DeduplicatesURLsWithinPass(t *testing.T) {
	page := `
	<div class="item">
		<span class="titleline">First sighting</span>
		<a class="storylink" href="/articles/1">go</a>
	</div>
	<div class="item">
		<span class="titleline">Same story again</span>
		<a class="storylink" href="/articles/1">go</a>
	</div>
	<div class="item">
		<span class="titleline">Different story</span>
		<a class="storylink" href="/articles/2">go</a>
	</div>`

	fetcher := &stubFetcher{body: page}
	s := New(fetcher, nil)
	source := testSource()

	result := s.Scrape(context.Background(), source, testTags(source.ID), "")

	require.True(t, result.Success)
	require.Len(t, result.Articles, 2)
	assert.Equal(t, "First sighting", result.Articles[0].Title, "first occurrence wins")
	assert.Equal(t, "Different story", result.Articles[1].Title)
}

func TestScrape_NextSiblingIndirection(t *testing.T) {
	// Publication date lives in the element after each list item, the
	// way table-based listings lay out their metadata rows.
	page := `
	<div class="item">
		<span class="titleline">Sibling layout</span>
		<a class="storylink" href="/articles/5">go</a>
	</div>
	<div class="meta">
		<span class="age" title="2026-01-02">2 hours ago on the page</span>
	</div>`

	tags := []sources.FieldTagConfig{
		{FieldName: sources.FieldTitle, TagName: "span", ClassName: "titleline"},
		{FieldName: sources.FieldLink, TagName: "a", ClassName: "storylink"},
		{FieldName: sources.FieldPublicationDate, TagName: "span", ClassName: "age", NextSibling: true},
	}

	fetcher := &stubFetcher{body: page}
	s := New(fetcher, nil)
	source := testSource()

	result := s.Scrape(context.Background(), source, tags, "")

	require.True(t, result.Success)
	require.Len(t, result.Articles, 1)
	require.NotNil(t, result.Articles[0].PublishedAt)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), result.Articles[0].PublishedAt.UTC())
}

func TestScrape_NoMatchingItemsSucceedsEmpty(t *testing.T) {
	fetcher := &stubFetcher{body: "<html><body><p>nothing to see</p></body></html>"}
	s := New(fetcher, nil)
	source := testSource()

	result := s.Scrape(context.Background(), source, testTags(source.ID), "")

	assert.True(t, result.Success, "a page with no items is not a failure")
	assert.Empty(t, result.Articles)
	assert.NoError(t, result.Err)
}

func TestScrape_ExtraQueryAppended(t *testing.T) {
	fetcher := &stubFetcher{body: "<html></html>"}
	s := New(fetcher, nil)
	source := testSource()

	s.Scrape(context.Background(), source, testTags(source.ID), "page=2")

	require.Len(t, fetcher.urls, 1)
	assert.Equal(t, "https://news.example.com?page=2", fetcher.urls[0])
}

func TestBuildPageURL(t *testing.T) {
	assert.Equal(t, "https://a.example.com", buildPageURL("https://a.example.com", ""))
	assert.Equal(t, "https://a.example.com?p=2", buildPageURL("https://a.example.com/", "p=2"))
	assert.Equal(t, "https://a.example.com?p=2", buildPageURL("https://a.example.com", "?p=2"))
	assert.Equal(t, "https://a.example.com/x?a=1&p=2", buildPageURL("https://a.example.com/x?a=1", "p=2"))
}

func TestSelectorFromTag(t *testing.T) {
	sel := SelectorFromTag(sources.FieldTagConfig{TagName: "div", ClassName: "headline"})
	assert.Equal(t, CurrentElement, sel.Target)
	assert.Equal(t, "div.headline", sel.String())

	bare := SelectorFromTag(sources.FieldTagConfig{TagName: "h2", NextSibling: true})
	assert.Equal(t, NextSibling, bare.Target)
	assert.Equal(t, "h2", bare.String())
}

func TestBuildSelectorMap_FirstConfigWins(t *testing.T) {
	m := BuildSelectorMap([]sources.FieldTagConfig{
		{FieldName: sources.FieldTitle, TagName: "h1"},
		{FieldName: sources.FieldTitle, TagName: "h2"},
	})
	assert.Equal(t, "h1", m[sources.FieldTitle].Tag)
}
