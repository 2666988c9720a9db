// Package pipeline composes the fetcher, scraper, and stores into full
// scrape runs: one pass over a set of configured sources, producing
// persisted articles, fresh index rows, and an aggregate run summary.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/jcleroy/newsdex/articles"
	"github.com/jcleroy/newsdex/fetch"
	"github.com/jcleroy/newsdex/scraper"
	"github.com/jcleroy/newsdex/sources"
)

// ErrNoSources is returned when a run is requested but no sources are
// configured.
var ErrNoSources = errors.New("no sources configured")

// SourceProvider supplies the sources to scrape and their selector
// configs. The sources package's SourceStore satisfies this.
type SourceProvider interface {
	GetSource(id uuid.UUID) (*sources.Source, error)
	ListSources() ([]sources.Source, error)
	TagsForSource(id uuid.UUID) ([]sources.FieldTagConfig, error)
}

// ArticleSaver persists scraped articles. The articles package's
// ArticleStore satisfies this.
type ArticleSaver interface {
	Upsert(article articles.Article) (*articles.Article, bool, error)
}

// PageScraper extracts articles from one HTML source. The scraper
// package's Scraper satisfies this.
type PageScraper interface {
	Scrape(ctx context.Context, source sources.Source, tags []sources.FieldTagConfig, extraQuery string) scraper.Result
}

// SourceError records one source's failure inside a run summary.
type SourceError struct {
	SourceID string `json:"source_id"`
	Error    string `json:"error"`
}

// Summary aggregates the outcome of one scrape run across all requested
// sources. Per-source failures are absorbed here rather than aborting
// the run.
type Summary struct {
	SourcesAttempted  int           `json:"total_sources_scraped"`
	SuccessfulSources int           `json:"successful_sources"`
	FailedSources     int           `json:"failed_sources"`
	ArticlesScraped   int           `json:"total_articles_scraped"`
	DuplicateArticles int           `json:"duplicate_articles"`
	Errors            []SourceError `json:"errors"`
}

// Orchestrator runs the scrape pipeline. All collaborators are
// interfaces wired in at construction so tests can substitute any of
// them.
type Orchestrator struct {
	provider SourceProvider
	store    ArticleSaver
	scraper  PageScraper
	fetcher  scraper.PageFetcher
	logger   *slog.Logger
}

// NewOrchestrator wires a pipeline from its collaborators. The fetcher
// is used directly for feed sources, which bypass selector-driven
// extraction.
func NewOrchestrator(provider SourceProvider, store ArticleSaver, pageScraper PageScraper, fetcher scraper.PageFetcher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		provider: provider,
		store:    store,
		scraper:  pageScraper,
		fetcher:  fetcher,
		logger:   logger.With("component", "pipeline"),
	}
}

// Run scrapes the named source, or every configured source when
// sourceID is nil. Sources are processed sequentially; one source's
// failure never aborts its siblings. The only whole-run failures are a
// named source that does not exist and an entirely empty source list.
// extraQuery, when non-empty, is appended to each source's target URL.
func (o *Orchestrator) Run(ctx context.Context, sourceID *uuid.UUID, extraQuery string) (*Summary, error) {
	start := time.Now()

	targets, err := o.targetSources(sourceID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		SourcesAttempted: len(targets),
		Errors:           []SourceError{},
	}

	for _, source := range targets {
		// A run-wide deadline marks the remaining sources failed
		// instead of silently dropping them from the summary.
		if err := ctx.Err(); err != nil {
			summary.FailedSources++
			summary.Errors = append(summary.Errors, SourceError{
				SourceID: source.ID.String(),
				Error:    err.Error(),
			})
			continue
		}

		o.logger.Info("scraping source", "source_id", source.ID, "title", source.Title, "type", source.SourceType)

		result := o.scrapeSource(ctx, source, extraQuery)
		if !result.Success {
			summary.FailedSources++
			summary.Errors = append(summary.Errors, SourceError{
				SourceID: source.ID.String(),
				Error:    result.Err.Error(),
			})
			continue
		}

		o.saveArticles(source, result, summary)
		summary.SuccessfulSources++
	}

	o.logger.Info("scrape run completed",
		"duration", time.Since(start),
		"sources", summary.SourcesAttempted,
		"succeeded", summary.SuccessfulSources,
		"failed", summary.FailedSources,
		"articles", summary.ArticlesScraped,
		"duplicates", summary.DuplicateArticles)

	return summary, nil
}

// scrapeSource dispatches on the source type: websites go through
// selector-driven extraction, feeds through gofeed.
func (o *Orchestrator) scrapeSource(ctx context.Context, source sources.Source, extraQuery string) scraper.Result {
	switch source.SourceType {
	case "rss", "atom":
		return o.scrapeFeed(ctx, source)
	default:
		tags, err := o.provider.TagsForSource(source.ID)
		if err != nil {
			return scraper.Result{
				SourceID:  source.ID.String(),
				Err:       err,
				ScrapedAt: time.Now(),
			}
		}
		return o.scraper.Scrape(ctx, source, tags, extraQuery)
	}
}

// scrapeFeed fetches a feed source through the shared rate-limited
// fetcher and normalizes its items into the same shape the HTML scraper
// produces.
func (o *Orchestrator) scrapeFeed(ctx context.Context, source sources.Source) scraper.Result {
	result := scraper.Result{
		SourceID:  source.ID.String(),
		ScrapedAt: time.Now(),
	}

	body, err := o.fetcher.Get(ctx, source.TargetURL)
	if err != nil {
		result.Err = scraper.NewNetworkError(source.ID, source.TargetURL, fetchStatus(err), err)
		return result
	}

	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		result.Err = scraper.NewParsingError(source.ID, err)
		return result
	}

	processedURLs := make(map[string]struct{})
	for _, item := range feed.Items {
		title := strings.Join(strings.Fields(item.Title), " ")
		if title == "" || item.Link == "" {
			continue
		}

		link := scraper.NormalizeURL(strings.TrimSpace(item.Link), source.TargetURL)
		if _, seen := processedURLs[link]; seen {
			continue
		}
		processedURLs[link] = struct{}{}

		article := scraper.ScrapedArticle{
			Title:       title,
			URL:         link,
			PublishedAt: item.PublishedParsed,
		}
		if desc := strings.Join(strings.Fields(item.Description), " "); desc != "" {
			article.Summary = desc
		}

		result.Articles = append(result.Articles, article)
	}

	result.Success = true
	return result
}

// fetchStatus extracts the HTTP status of a failed fetch, 0 when the
// failure happened below the HTTP layer.
func fetchStatus(err error) int {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// saveArticles persists one source's scrape result. Per-article save
// failures are logged and skipped so the rest of the batch still lands.
func (o *Orchestrator) saveArticles(source sources.Source, result scraper.Result, summary *Summary) {
	for _, scraped := range result.Articles {
		article := articles.Article{
			SourceID:    source.ID,
			Title:       scraped.Title,
			URL:         scraped.URL,
			PublishedAt: scraped.PublishedAt,
		}
		if scraped.Summary != "" {
			summaryText := scraped.Summary
			article.Summary = &summaryText
		}

		_, created, err := o.store.Upsert(article)
		if err != nil {
			o.logger.Warn("failed to save article",
				"source_id", source.ID, "url", scraped.URL, "error", err)
			continue
		}

		if !created {
			summary.DuplicateArticles++
		}
		summary.ArticlesScraped++
	}
}

// targetSources resolves which sources a run covers. A named source
// that doesn't exist fails the whole run — there is nothing to attempt.
func (o *Orchestrator) targetSources(sourceID *uuid.UUID) ([]sources.Source, error) {
	if sourceID != nil {
		source, err := o.provider.GetSource(*sourceID)
		if err != nil {
			return nil, err
		}
		return []sources.Source{*source}, nil
	}

	all, err := o.provider.ListSources()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoSources
	}
	return all, nil
}
