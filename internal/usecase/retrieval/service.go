// Package retrieval fetches guideline passages relevant to a prescription
// via vector search over the ingested corpus.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/domain/evidence"
	"github.com/opencare-labs/doseaudit/internal/repository/corpus"
)

const (
	// DefaultTopK is how many passages a query returns when unset.
	DefaultTopK = 5
	// MaxExcerptLen bounds each cited excerpt in bytes.
	MaxExcerptLen = 500
)

type corpusQuerier interface {
	Query(ctx context.Context, vector []float32, k int, f corpus.QueryFilter) ([]corpus.Hit, error)
}

// Service embeds a query and searches the chunk index.
type Service struct {
	embedder domain.Embedder
	corpus   corpusQuerier
	topK     int
	logger   *zap.Logger
}

func New(embedder domain.Embedder, c corpusQuerier, topK int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{embedder: embedder, corpus: c, topK: topK, logger: logger}
}

// Retrieve returns the best-matching passages for the query text, optionally
// narrowed to one drug's chunks. Results come back best-first.
func (s *Service) Retrieve(ctx context.Context, query, drugName string) ([]evidence.Item, error) {
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.corpus.Query(ctx, emb.Embedding, s.topK, corpus.QueryFilter{DrugName: drugName})
	if err != nil {
		return nil, fmt.Errorf("search corpus: %w", err)
	}

	items := make([]evidence.Item, 0, len(hits))
	for _, h := range hits {
		item := evidence.Item{
			ChunkID:  h.ChunkID,
			Source:   h.DocTitle,
			Page:     h.Page,
			Score:    h.Score,
			Excerpt:  h.Text,
			DrugName: h.DrugName,
		}
		item.Excerpt = item.Truncate(MaxExcerptLen)
		items = append(items, item)
	}

	s.logger.Debug("retrieved evidence",
		zap.String("drug", drugName),
		zap.Int("hits", len(items)))
	return items, nil
}
