// Package scraper extracts article listings from HTML pages using
// per-source selector configuration. Page structure is data, not code:
// each source carries a list-container selector plus a set of
// field-to-selector mappings, and the scraper interprets them against
// the fetched page.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/jcleroy/newsdex/fetch"
	"github.com/jcleroy/newsdex/sources"
)

// PageFetcher fetches a URL and returns the page body as text. The
// fetch package's Client satisfies this.
type PageFetcher interface {
	Get(ctx context.Context, url string) (string, error)
}

// ScrapedArticle is one normalized article extracted during a scrape
// pass: trimmed title, absolute URL, optional parsed publication date,
// optional summary.
type ScrapedArticle struct {
	Title       string
	URL         string
	PublishedAt *time.Time
	Summary     string
}

// Result is the outcome of scraping one source. A fetch failure or a
// source with no tag configs yields Success=false with Err set to a
// tagged *Error; an empty article list with Success=true is a valid
// outcome (the page simply had no matching items).
type Result struct {
	SourceID  string
	Articles  []ScrapedArticle
	Success   bool
	Err       error
	ScrapedAt time.Time
}

// Scraper runs selector-driven extraction for one source at a time. It
// holds no per-source state; the per-pass URL dedup set is local to
// each Scrape call.
type Scraper struct {
	fetcher PageFetcher
	logger  *slog.Logger
}

// New creates a scraper that fetches pages through the given fetcher.
func New(fetcher PageFetcher, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		fetcher: fetcher,
		logger:  logger.With("component", "scraper"),
	}
}

// Scrape fetches a source's listing page and extracts one candidate per
// matched list item. Items missing a mandatory field (title or link)
// are skipped; repeated URLs within the pass are dropped silently.
// extraQuery, when non-empty, is appended to the target URL as a query
// string.
func (s *Scraper) Scrape(ctx context.Context, source sources.Source, tags []sources.FieldTagConfig, extraQuery string) Result {
	result := Result{
		SourceID:  source.ID.String(),
		Success:   false,
		ScrapedAt: time.Now(),
	}

	if len(tags) == 0 {
		s.logger.Warn("no tags configured", "source_id", source.ID)
		result.Err = NewMissingConfigError(source.ID)
		return result
	}

	selectors := BuildSelectorMap(tags)
	pageURL := buildPageURL(source.TargetURL, extraQuery)

	s.logger.Info("starting scrape", "source_id", source.ID, "url", pageURL)

	body, err := s.fetcher.Get(ctx, pageURL)
	if err != nil {
		s.logger.Error("fetch failed", "source_id", source.ID, "url", pageURL, "error", err)
		result.Err = classifyFetchError(source.ID, pageURL, err)
		return result
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		s.logger.Error("failed to parse page", "source_id", source.ID, "error", err)
		result.Err = NewParsingError(source.ID, err)
		return result
	}

	processedURLs := make(map[string]struct{})

	doc.Find(source.ListSelector).Each(func(i int, item *goquery.Selection) {
		title, ok := extractField(item, selectors, sources.FieldTitle, ExtractText)
		if !ok {
			err := NewSelectorMatchError(source.ID, selectors[sources.FieldTitle].String(), sources.FieldTitle)
			s.logger.Debug("skipping item", "index", i, "error", err)
			return
		}
		link, ok := extractField(item, selectors, sources.FieldLink, ExtractHref)
		if !ok {
			err := NewSelectorMatchError(source.ID, selectors[sources.FieldLink].String(), sources.FieldLink)
			s.logger.Debug("skipping item", "index", i, "error", err)
			return
		}

		absoluteURL := NormalizeURL(link, source.TargetURL)
		if absoluteURL == link && !strings.HasPrefix(link, "http") {
			err := NewValidationError(source.ID, sources.FieldLink,
				fmt.Sprintf("could not resolve %q against %q", link, source.TargetURL))
			s.logger.Warn("keeping unnormalized URL", "error", err)
		}

		if _, seen := processedURLs[absoluteURL]; seen {
			s.logger.Debug("skipping duplicate URL", "url", absoluteURL)
			return
		}
		processedURLs[absoluteURL] = struct{}{}

		article := ScrapedArticle{
			Title:       title,
			URL:         absoluteURL,
			PublishedAt: extractDateField(item, selectors),
		}
		if summary, ok := extractField(item, selectors, sources.FieldSummary, ExtractText); ok {
			article.Summary = summary
		}

		result.Articles = append(result.Articles, article)
	})

	s.logger.Info("scrape finished",
		"source_id", source.ID,
		"articles", len(result.Articles),
		"distinct_urls", len(processedURLs))

	result.Success = true
	return result
}

// classifyFetchError tags a fetch failure with the network kind,
// carrying over the HTTP status of the final attempt when the failure
// was a *fetch.Error.
func classifyFetchError(sourceID uuid.UUID, pageURL string, err error) *Error {
	status := 0
	var fe *fetch.Error
	if errors.As(err, &fe) {
		status = fe.StatusCode
	}
	return NewNetworkError(sourceID, pageURL, status, err)
}

// buildPageURL appends an optional query string to the source's target
// URL.
func buildPageURL(target, extraQuery string) string {
	if extraQuery == "" {
		return target
	}
	base := strings.TrimRight(target, "/")
	query := strings.TrimLeft(extraQuery, "?")
	if strings.Contains(base, "?") {
		return base + "&" + query
	}
	return base + "?" + query
}
