// Command newsdex is the CLI client for managing sources, running
// scrapes, and querying articles.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jcleroy/newsdex/articles"
	"github.com/jcleroy/newsdex/config"
	"github.com/jcleroy/newsdex/fetch"
	"github.com/jcleroy/newsdex/pipeline"
	"github.com/jcleroy/newsdex/scraper"
	"github.com/jcleroy/newsdex/sources"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("NEWSDEX_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	subcommand := os.Args[1]

	switch subcommand {
	case "sources":
		if len(os.Args) < 3 {
			printSourcesUsage()
			os.Exit(1)
		}
		handleSourcesCommand(os.Args[2], cfg, os.Args[3:])
	case "tags":
		if len(os.Args) < 3 {
			printTagsUsage()
			os.Exit(1)
		}
		handleTagsCommand(os.Args[2], cfg, os.Args[3:])
	case "scrape":
		handleScrape(cfg, os.Args[2:])
	case "articles":
		handleArticles(cfg, os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func openSourceStore(cfg *config.Config) *sources.SourceStore {
	store, err := sources.NewSourceStore(cfg.Storage.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open source store: %v\n", err)
		os.Exit(1)
	}
	return store
}

func openArticleStore(cfg *config.Config) *articles.ArticleStore {
	store, err := articles.NewArticleStore(cfg.Storage.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open article store: %v\n", err)
		os.Exit(1)
	}
	return store
}

func handleSourcesCommand(action string, cfg *config.Config, args []string) {
	store := openSourceStore(cfg)
	defer store.Close()

	switch action {
	case "list":
		all, err := store.ListSources()
		if err != nil {
			fatal(err)
		}
		if len(all) == 0 {
			fmt.Println("No sources configured.")
			return
		}
		for _, s := range all {
			fmt.Printf("%s  %-7s  %-30s  %s\n", s.ID, s.SourceType, s.Title, s.TargetURL)
		}
	case "add":
		fs := flag.NewFlagSet("sources add", flag.ExitOnError)
		title := fs.String("title", "", "source title (required)")
		url := fs.String("url", "", "target URL (required)")
		sourceType := fs.String("type", "website", "source type: website, rss, atom")
		listSelector := fs.String("selector", "", "CSS selector for the article list (website sources)")
		fs.Parse(args)

		if *title == "" || *url == "" {
			fmt.Fprintln(os.Stderr, "Error: -title and -url are required")
			os.Exit(1)
		}

		source, err := store.CreateSource(*title, *url, *sourceType, *listSelector)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Created source %s\n", source.ID)
	case "delete":
		id := parseIDArg(args, "sources delete <source-id>")
		if err := store.DeleteSource(id); err != nil {
			fatal(err)
		}
		fmt.Println("Source deleted.")
	case "help", "--help", "-h":
		printSourcesUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown sources command: %s\n\n", action)
		printSourcesUsage()
		os.Exit(1)
	}
}

func handleTagsCommand(action string, cfg *config.Config, args []string) {
	store := openSourceStore(cfg)
	defer store.Close()

	switch action {
	case "list":
		id := parseIDArg(args, "tags list <source-id>")
		tags, err := store.TagsForSource(id)
		if err != nil {
			fatal(err)
		}
		if len(tags) == 0 {
			fmt.Println("No tag configs for this source.")
			return
		}
		for _, t := range tags {
			sibling := ""
			if t.NextSibling {
				sibling = "  (next sibling)"
			}
			fmt.Printf("%d  %-16s  %s%s%s\n", t.ID, t.FieldName, t.TagName, dotClass(t.ClassName), sibling)
		}
	case "add":
		fs := flag.NewFlagSet("tags add", flag.ExitOnError)
		sourceID := fs.String("source", "", "source ID (required)")
		field := fs.String("field", "", "field name: title, link, publication_date, summary (required)")
		tag := fs.String("tag", "", "HTML tag name (required)")
		class := fs.String("class", "", "CSS class qualifier")
		nextSibling := fs.Bool("next-sibling", false, "extract from the matched element's next sibling")
		fs.Parse(args)

		if *sourceID == "" || *field == "" || *tag == "" {
			fmt.Fprintln(os.Stderr, "Error: -source, -field and -tag are required")
			os.Exit(1)
		}
		id, err := uuid.Parse(*sourceID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid source ID: %v\n", err)
			os.Exit(1)
		}

		created, err := store.CreateTagConfig(id, *field, *tag, *class, *nextSibling)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Created tag config %d\n", created.ID)
	case "delete":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: newsdex tags delete <tag-id>")
			os.Exit(1)
		}
		var tagID int64
		if _, err := fmt.Sscanf(args[0], "%d", &tagID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid tag ID: %v\n", err)
			os.Exit(1)
		}
		if err := store.DeleteTagConfig(tagID); err != nil {
			fatal(err)
		}
		fmt.Println("Tag config deleted.")
	case "help", "--help", "-h":
		printTagsUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown tags command: %s\n\n", action)
		printTagsUsage()
		os.Exit(1)
	}
}

func handleScrape(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	sourceIDArg := fs.String("source", "", "scrape only this source ID")
	uri := fs.String("uri", "", "extra query string appended to target URLs")
	fs.Parse(args)

	sourceStore := openSourceStore(cfg)
	defer sourceStore.Close()
	articleStore := openArticleStore(cfg)
	defer articleStore.Close()

	var sourceID *uuid.UUID
	if *sourceIDArg != "" {
		id, err := uuid.Parse(*sourceIDArg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid source ID: %v\n", err)
			os.Exit(1)
		}
		sourceID = &id
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	fetcher := fetch.NewClient(fetch.Options{
		Timeout:    cfg.Scraping.RequestTimeout,
		MaxRetries: cfg.Scraping.MaxRetries,
		RetryDelay: cfg.Scraping.RetryDelay,
		Interval:   cfg.Scraping.RequestInterval,
		UserAgent:  cfg.Scraping.UserAgent,
	})
	orch := pipeline.NewOrchestrator(sourceStore, articleStore, scraper.New(fetcher, logger), fetcher, logger)

	ctx := context.Background()
	if cfg.Scraping.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Scraping.RunTimeout)
		defer cancel()
	}

	summary, err := orch.Run(ctx, sourceID, *uri)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Sources: %d attempted, %d succeeded, %d failed\n",
		summary.SourcesAttempted, summary.SuccessfulSources, summary.FailedSources)
	fmt.Printf("Articles: %d scraped (%d duplicates)\n",
		summary.ArticlesScraped, summary.DuplicateArticles)
	for _, e := range summary.Errors {
		fmt.Printf("  %s: %s\n", e.SourceID, e.Error)
	}
}

func handleArticles(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("articles", flag.ExitOnError)
	title := fs.String("title", "", "keyword search over article titles")
	sourceIDArg := fs.String("source", "", "filter by source ID")
	recentDays := fs.Int("recent", 0, "only articles published in the last N days")
	page := fs.Int("page", 1, "page number")
	pageSize := fs.Int("page-size", articles.DefaultPageSize, "results per page")
	fs.Parse(args)

	store := openArticleStore(cfg)
	defer store.Close()

	filter := articles.Filter{
		Title:      *title,
		RecentDays: *recentDays,
	}
	if *sourceIDArg != "" {
		id, err := uuid.Parse(*sourceIDArg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid source ID: %v\n", err)
			os.Exit(1)
		}
		filter.SourceID = &id
	}

	result, err := store.QueryPaginated(*page, *pageSize, filter)
	if err != nil {
		fatal(err)
	}

	for _, a := range result.Items {
		published := "unknown"
		if a.PublishedAt != nil {
			published = a.PublishedAt.Format(time.RFC3339)
		}
		fmt.Printf("%s  %s\n    %s  (%s)\n", a.ID, a.Title, a.URL, published)
	}
	fmt.Printf("\nPage %d of %d (%d articles total)\n", result.Page, result.TotalPages, result.Total)
}

func parseIDArg(args []string, usage string) uuid.UUID {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: newsdex %s\n", usage)
		os.Exit(1)
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid ID: %v\n", err)
		os.Exit(1)
	}
	return id
}

func dotClass(class string) string {
	if class == "" {
		return ""
	}
	return "." + class
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("newsdex - web scraping and article search CLI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsdex <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  sources    Manage scrape sources")
	fmt.Println("  tags       Manage per-source selector configs")
	fmt.Println("  scrape     Run the scrape pipeline")
	fmt.Println("  articles   Query stored articles")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  NEWSDEX_CONFIG  Path to config file (default: ~/.newsdex/config.yaml)")
	fmt.Println("  NEWSDEX_DB      Path to SQLite database")
}

func printSourcesUsage() {
	fmt.Println("newsdex sources - Manage scrape sources")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsdex sources <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list       List all sources")
	fmt.Println("  add        Add a new source (-title, -url, -type, -selector)")
	fmt.Println("  delete     Delete a source by ID")
	fmt.Println("  help       Show this help message")
}

func printTagsUsage() {
	fmt.Println("newsdex tags - Manage per-source selector configs")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsdex tags <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list       List tag configs for a source")
	fmt.Println("  add        Add a tag config (-source, -field, -tag, -class, -next-sibling)")
	fmt.Println("  delete     Delete a tag config by ID")
	fmt.Println("  help       Show this help message")
}
