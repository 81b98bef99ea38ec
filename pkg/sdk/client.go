package doseaudit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/opencare-labs/doseaudit/internal/db/redis"
	"github.com/opencare-labs/doseaudit/internal/domain/dosing"
	"github.com/opencare-labs/doseaudit/internal/domain/source"
	"github.com/opencare-labs/doseaudit/internal/domain/verdict"
	"github.com/opencare-labs/doseaudit/internal/metrics"
	corpusrepo "github.com/opencare-labs/doseaudit/internal/repository/corpus"
	"github.com/opencare-labs/doseaudit/internal/repository/embcache"
	openaiProvider "github.com/opencare-labs/doseaudit/internal/transport/openai"
	audituc "github.com/opencare-labs/doseaudit/internal/usecase/audit"
	chatuc "github.com/opencare-labs/doseaudit/internal/usecase/chat"
	dosageuc "github.com/opencare-labs/doseaudit/internal/usecase/dosage"
	extractuc "github.com/opencare-labs/doseaudit/internal/usecase/extract"
	healthuc "github.com/opencare-labs/doseaudit/internal/usecase/health"
	ingestuc "github.com/opencare-labs/doseaudit/internal/usecase/ingest"
	"github.com/opencare-labs/doseaudit/internal/usecase/llm"
	pipelineuc "github.com/opencare-labs/doseaudit/internal/usecase/pipeline"
	retrievaluc "github.com/opencare-labs/doseaudit/internal/usecase/retrieval"
)

const defaultReadinessTimeout = 10 * time.Second

// Seams for tests.
type validator interface {
	Validate(ctx context.Context, req dosing.Request) (verdict.Result, error)
	ValidateText(ctx context.Context, planText string) (verdict.Result, error)
	Run(ctx context.Context, runID string) (verdict.Result, error)
}

type ingester interface {
	Ingest(ctx context.Context, in ingestuc.Input) (source.Document, bool, error)
	IngestDir(ctx context.Context, dir string) (int, error)
}

type documentStore interface {
	Sources(ctx context.Context) ([]source.Document, error)
	SourceByID(ctx context.Context, id string) (source.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

type chatter interface {
	Answer(ctx context.Context, question string) (chatuc.Reply, error)
}

type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the embedded validator entry point.
type Client struct {
	store    *dbRedis.Store
	pipeline validator
	ingest   ingester
	docs     documentStore
	chat     chatter
	health   healthChecker
}

// New creates a Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		embeddingModel:  "text-embedding-3-small",
		dimensions:      1536,
		chatModel:       "gpt-4o-mini",
		hnswM:           16,
		hnswEFConstruct: 200,
		chunkSize:       1000,
		chunkOverlap:    200,
		topK:            5,
		tolerance:       0.10,
		callTimeout:     30 * time.Second,
		maxRetries:      2,
		maxConcurrent:   4,
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if len(cfg.addrs) == 0 {
		cfg.addrs = []string{"localhost:6379"}
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}

	corpus := corpusrepo.New(store)
	if err := corpus.EnsureIndex(ctx, cfg.dimensions, cfg.hnswM, cfg.hnswEFConstruct); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure chunk index: %w", err)
	}

	baseEmbedder := openaiProvider.NewEmbedder(&openaiProvider.EmbedderConfig{
		APIKey:     cfg.apiKey,
		BaseURL:    cfg.baseURL,
		Model:      cfg.embeddingModel,
		Dimensions: cfg.dimensions,
		Logger:     logger,
	})
	embedder := embcache.New(baseEmbedder, store, metrics.EmbeddingCacheTotal, logger)

	baseCompleter := openaiProvider.NewCompleter(&openaiProvider.CompleterConfig{
		APIKey:  cfg.apiKey,
		BaseURL: cfg.baseURL,
		Model:   cfg.chatModel,
		Logger:  logger,
	})
	completer := llm.NewPolicyCompleter(
		baseCompleter, cfg.chatModel,
		cfg.callTimeout, cfg.maxRetries, cfg.maxConcurrent,
		logger,
	)

	dosageSvc := dosageuc.New(logger)
	retrievalSvc := retrievaluc.New(embedder, corpus, cfg.topK, logger)
	pipelineSvc := pipelineuc.New(
		extractuc.New(completer, logger),
		retrievalSvc,
		dosageSvc,
		audituc.New(completer, cfg.tolerance, logger),
		store,
		pipelineuc.Timeouts{},
		logger,
	)
	ingestSvc := ingestuc.New(corpus, embedder, dosageSvc, cfg.chunkSize, cfg.chunkOverlap, logger)

	return &Client{
		store:    store,
		pipeline: pipelineSvc,
		ingest:   ingestSvc,
		docs:     corpus,
		chat:     chatuc.New(completer, retrievalSvc, logger),
		health:   healthuc.New(store, baseEmbedder, baseCompleter),
	}, nil
}

// Close releases the database connection.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}
