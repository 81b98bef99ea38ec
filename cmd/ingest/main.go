package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/unidoc/unipdf/v3/common/license"
	"go.uber.org/zap"

	"github.com/opencare-labs/doseaudit/internal/config"
	dbRedis "github.com/opencare-labs/doseaudit/internal/db/redis"
	logpkg "github.com/opencare-labs/doseaudit/internal/logger"
	"github.com/opencare-labs/doseaudit/internal/metrics"
	corpusrepo "github.com/opencare-labs/doseaudit/internal/repository/corpus"
	"github.com/opencare-labs/doseaudit/internal/repository/embcache"
	openaiProvider "github.com/opencare-labs/doseaudit/internal/transport/openai"
	dosageuc "github.com/opencare-labs/doseaudit/internal/usecase/dosage"
	ingestuc "github.com/opencare-labs/doseaudit/internal/usecase/ingest"
)

// ingest loads a directory of guideline and datasheet files into the
// corpus so the API server can retrieve them. Run it once against the
// reference document set, or again whenever a document changes; files
// with an unchanged checksum are skipped.
func main() {
	dir := flag.String("dir", "documents", "directory of .pdf, .txt and .md files to ingest")
	flag.Parse()

	if key := os.Getenv("UNIDOC_LICENSE_KEY"); key != "" {
		if err := license.SetMeteredKey(key); err != nil {
			fmt.Fprintf(os.Stderr, "invalid unidoc license key: %v\n", err)
			os.Exit(1)
		}
	}

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}

	metrics.RegisterPipelineMetrics()

	corpus := corpusrepo.New(store)
	if err := corpus.EnsureIndex(ctx, cfg.Embedding.Dimensions, cfg.Ingest.HNSWM, cfg.Ingest.HNSWEF); err != nil {
		logger.Fatal("Failed to ensure chunk index", zap.Error(err))
	}

	baseEmbedder := openaiProvider.NewEmbedder(&openaiProvider.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	embedder := embcache.New(baseEmbedder, store, metrics.EmbeddingCacheTotal, logger)

	svc := ingestuc.New(
		corpus, embedder, dosageuc.New(logger),
		cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap,
		logger,
	)

	n, err := svc.IngestDir(ctx, *dir)
	if err != nil {
		logger.Fatal("Ingestion failed", zap.String("dir", *dir), zap.Error(err))
	}

	logger.Info("Ingestion complete", zap.String("dir", *dir), zap.Int("documents", n))
}
