// Command newsdex-api serves the scraping and article query API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jcleroy/newsdex/articles"
	"github.com/jcleroy/newsdex/config"
	"github.com/jcleroy/newsdex/fetch"
	"github.com/jcleroy/newsdex/pipeline"
	"github.com/jcleroy/newsdex/scraper"
	"github.com/jcleroy/newsdex/sources"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.newsdex/config.yaml)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	sourceStore, err := sources.NewSourceStore(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to open source store: %w", err)
	}
	defer sourceStore.Close()

	articleStore, err := articles.NewArticleStore(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to open article store: %w", err)
	}
	defer articleStore.Close()

	fetcher := fetch.NewClient(fetch.Options{
		Timeout:    cfg.Scraping.RequestTimeout,
		MaxRetries: cfg.Scraping.MaxRetries,
		RetryDelay: cfg.Scraping.RetryDelay,
		Interval:   cfg.Scraping.RequestInterval,
		UserAgent:  cfg.Scraping.UserAgent,
	})

	pageScraper := scraper.New(fetcher, logger)
	orch := pipeline.NewOrchestrator(sourceStore, articleStore, pageScraper, fetcher, logger)

	router := setupRouter(sourceStore, articleStore, orch, cfg.Scraping.RunTimeout)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// setupRouter assembles all API surfaces under /api/v1 with permissive
// CORS, plus /health at the root.
func setupRouter(sourceStore *sources.SourceStore, articleStore *articles.ArticleStore, orch *pipeline.Orchestrator, runTimeout time.Duration) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	sources.NewAPIServer(sourceStore).Register(api)
	articles.NewAPIServer(articleStore).Register(api)

	pipelineAPI := pipeline.NewAPIServer(orch, runTimeout)
	pipelineAPI.Register(api)
	pipelineAPI.RegisterHealth(router)

	return router
}
