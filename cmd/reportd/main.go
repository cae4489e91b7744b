// Reportd is the curation daemon for a crypto research report dashboard.
//
// It discovers candidate reports via web search, extracts metadata with
// a language model, answers questions about individual reports, and
// produces cached audio summaries.
//
// Configuration comes from an optional YAML file plus environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults
//	reportd
//
//	# Configure via file and environment
//	SERVER_PORT=9090 reportd -config reportd.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/answer"
	"github.com/fyrsmithlabs/reportd/internal/audio"
	"github.com/fyrsmithlabs/reportd/internal/blobcache"
	"github.com/fyrsmithlabs/reportd/internal/config"
	"github.com/fyrsmithlabs/reportd/internal/embeddings"
	"github.com/fyrsmithlabs/reportd/internal/extraction"
	"github.com/fyrsmithlabs/reportd/internal/httpapi"
	"github.com/fyrsmithlabs/reportd/internal/llm"
	"github.com/fyrsmithlabs/reportd/internal/logging"
	"github.com/fyrsmithlabs/reportd/internal/notify"
	"github.com/fyrsmithlabs/reportd/internal/ogimage"
	"github.com/fyrsmithlabs/reportd/internal/reports"
	"github.com/fyrsmithlabs/reportd/internal/retrieval"
	"github.com/fyrsmithlabs/reportd/internal/scrape"
	"github.com/fyrsmithlabs/reportd/internal/search"
	"github.com/fyrsmithlabs/reportd/internal/speech"
	"github.com/fyrsmithlabs/reportd/internal/triage"
	"github.com/fyrsmithlabs/reportd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("reportd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// run starts the reportd server and blocks until context cancellation.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("starting reportd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("vectorstore_enabled", cfg.VectorStore.Enabled),
	)

	deps, err := buildDeps(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}

	srv, err := httpapi.NewServer(deps, logger, httpapi.Config{
		Host:   cfg.Server.Host,
		Port:   cfg.Server.Port,
		APIKey: cfg.Server.APIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildDeps wires all services. Optional collaborators (search, speech,
// notifications, the record store, the semantic index) are wired only
// when configured; their endpoints degrade to configuration errors.
func buildDeps(cfg *config.Config, logger *zap.Logger) (httpapi.Deps, error) {
	deps := httpapi.Deps{}

	blobStore, err := blobcache.NewFSStore(cfg.Blobs.Path, cfg.Blobs.PublicURL, logger.Named("blobs"))
	if err != nil {
		return deps, fmt.Errorf("creating blob store: %w", err)
	}
	cache := blobcache.NewCache(blobStore)
	deps.BlobRoot = blobStore.Root()
	deps.Uploads = httpapi.NewUploadHandler(blobStore, logger.Named("upload"))

	scraper := scrape.New(scrape.Config{
		ReaderBaseURL: cfg.Scrape.ReaderBaseURL,
		Timeout:       cfg.Scrape.Timeout.Duration(),
	}, logger.Named("scrape"))
	deps.Fetcher = scraper

	deps.Images = ogimage.New(logger.Named("ogimage"))

	var completer *llm.Client
	if cfg.LLM.APIKey.IsSet() {
		completer, err = llm.New(llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey.Value(),
			Model:   cfg.LLM.Model,
			Referer: cfg.LLM.Referer,
			Title:   cfg.LLM.Title,
			Timeout: cfg.LLM.Timeout.Duration(),
		})
		if err != nil {
			return deps, fmt.Errorf("creating llm client: %w", err)
		}
	} else {
		logger.Warn("llm api key not set, model-backed endpoints disabled")
	}

	var store vectorstore.Store
	if cfg.VectorStore.Enabled {
		embedder, err := embeddings.NewService(embeddings.Config{
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
			APIKey:  cfg.Embeddings.APIKey.Value(),
		})
		if err != nil {
			return deps, fmt.Errorf("creating embedding service: %w", err)
		}
		store, err = vectorstore.NewChromemStore(vectorstore.Config{
			Path:       cfg.VectorStore.Path,
			Collection: cfg.VectorStore.Collection,
			Compress:   cfg.VectorStore.Compress,
		}, embedder, logger.Named("vectorstore"))
		if err != nil {
			return deps, fmt.Errorf("creating vector store: %w", err)
		}
	}

	resolver := retrieval.New(store, scraper, cfg.VectorStore.TopK, logger.Named("retrieval"))

	var recordStore *reports.Service
	if cfg.Records.APIKey.IsSet() && cfg.Records.SpreadsheetID != "" {
		sheets, err := reports.NewSheetsStore(reports.SheetsConfig{
			APIKey:        cfg.Records.APIKey.Value(),
			SpreadsheetID: cfg.Records.SpreadsheetID,
			SheetName:     cfg.Records.SheetName,
			AppendURL:     cfg.Records.AppendURL,
			Timeout:       cfg.Records.Timeout.Duration(),
		}, logger.Named("records"))
		if err != nil {
			return deps, fmt.Errorf("creating record store: %w", err)
		}
		recordStore = reports.NewService(sheets, cache, logger.Named("reports"))
		deps.Reports = recordStore
	} else {
		logger.Warn("record store not configured, report endpoints disabled")
	}

	if completer != nil {
		extractor := extraction.New(completer, logger.Named("extraction"))
		deps.Extractor = extractor
		deps.Answerer = answer.New(completer, resolver, logger.Named("answer"))

		if cfg.Speech.APIKey.IsSet() {
			synthesizer, err := speech.New(speech.Config{
				BaseURL: cfg.Speech.BaseURL,
				APIKey:  cfg.Speech.APIKey.Value(),
				Model:   cfg.Speech.Model,
				Voice:   cfg.Speech.Voice,
				Timeout: cfg.Speech.Timeout.Duration(),
			})
			if err != nil {
				return deps, fmt.Errorf("creating speech client: %w", err)
			}
			deps.Audio = audio.New(completer, synthesizer, resolver, cache, logger.Named("audio"))
		} else {
			logger.Warn("speech api key not set, audio endpoint disabled")
		}

		if cfg.Search.APIKey.IsSet() && recordStore != nil {
			searcher, err := search.New(search.Config{
				BaseURL:    cfg.Search.BaseURL,
				APIKey:     cfg.Search.APIKey.Value(),
				Queries:    cfg.Search.Queries,
				MaxResults: cfg.Search.MaxResults,
				DaysBack:   cfg.Search.DaysBack,
				Timeout:    cfg.Search.Timeout.Duration(),
			})
			if err != nil {
				return deps, fmt.Errorf("creating search client: %w", err)
			}

			var notifier notify.Notifier = notify.Noop{}
			if cfg.Notify.BotToken.IsSet() {
				notifier = notify.NewTelegram(notify.Config{
					BotToken: cfg.Notify.BotToken.Value(),
					ChatID:   cfg.Notify.ChatID,
					Timeout:  cfg.Notify.Timeout.Duration(),
				}, logger.Named("notify"))
			}

			deps.Sweeper = triage.New(triage.Config{
				PublishScore: cfg.Triage.PublishScore,
				ReviewScore:  cfg.Triage.ReviewScore,
			}, searcher, completer, extractor, scraper, recordStore, notifier, logger.Named("triage"))
		} else if cfg.Search.APIKey.IsSet() {
			logger.Warn("discovery requires the record store, sweep endpoint disabled")
		}
	}

	return deps, nil
}
