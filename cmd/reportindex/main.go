// Reportindex builds the semantic index over persisted reports.
//
// It lists every report in the record store, scrapes the full document
// text, splits it into overlapping chunks, and upserts embedded chunks
// into the vector store. Reports that fail to scrape are skipped and
// reported at the end; a partial index is still useful.
//
// Usage:
//
//	reportindex -config reportd.yaml
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

	"github.com/fyrsmithlabs/reportd/internal/config"
	"github.com/fyrsmithlabs/reportd/internal/embeddings"
	"github.com/fyrsmithlabs/reportd/internal/indexer"
	"github.com/fyrsmithlabs/reportd/internal/logging"
	"github.com/fyrsmithlabs/reportd/internal/reports"
	"github.com/fyrsmithlabs/reportd/internal/scrape"
	"github.com/fyrsmithlabs/reportd/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Indexing error: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if !cfg.VectorStore.Enabled {
		return fmt.Errorf("vectorstore.enabled must be true to build the index")
	}
	if !cfg.Records.APIKey.IsSet() || cfg.Records.SpreadsheetID == "" {
		return fmt.Errorf("record store credentials are required")
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	sheets, err := reports.NewSheetsStore(reports.SheetsConfig{
		APIKey:        cfg.Records.APIKey.Value(),
		SpreadsheetID: cfg.Records.SpreadsheetID,
		SheetName:     cfg.Records.SheetName,
		AppendURL:     cfg.Records.AppendURL,
		Timeout:       cfg.Records.Timeout.Duration(),
	}, logger.Named("records"))
	if err != nil {
		return fmt.Errorf("creating record store: %w", err)
	}

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	store, err := vectorstore.NewChromemStore(vectorstore.Config{
		Path:       cfg.VectorStore.Path,
		Collection: cfg.VectorStore.Collection,
		Compress:   cfg.VectorStore.Compress,
	}, embedder, logger.Named("vectorstore"))
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}

	scraper := scrape.New(scrape.Config{
		ReaderBaseURL: cfg.Scrape.ReaderBaseURL,
		Timeout:       cfg.Scrape.Timeout.Duration(),
	}, logger.Named("scrape"))

	idx := indexer.New(sheets, scraper, store, logger.Named("indexer"))
	summary, err := idx.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("indexing complete",
		zap.Int("indexed", summary.Indexed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("chunks", summary.Chunks),
	)
	for _, f := range summary.Failures {
		logger.Warn("report skipped", zap.String("detail", f))
	}

	return nil
}
