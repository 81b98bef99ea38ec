// Package ingest turns guideline and datasheet files into embedded,
// searchable corpus chunks. Re-ingesting an unchanged file is a no-op.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/domain/chunk"
	"github.com/opencare-labs/doseaudit/internal/domain/source"
	"github.com/opencare-labs/doseaudit/internal/metrics"
)

const (
	// DefaultChunkSize and DefaultChunkOverlap are the chunking policy in
	// characters.
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

type corpusStore interface {
	ReplaceDocument(ctx context.Context, doc *source.Document, chunks []chunk.Chunk) error
	SourceByID(ctx context.Context, id string) (source.Document, error)
}

type drugTagger interface {
	Canonical(name string) (string, bool)
}

// Input is one file to ingest.
type Input struct {
	ID      string
	Title   string
	DocType source.Type
	// Filename decides the text extraction path (.pdf or plain text).
	Filename string
	Data     []byte
}

// Service runs the ingestion pipeline: extract, chunk, embed, store.
type Service struct {
	corpus       corpusStore
	embedder     domain.BatchEmbedder
	drugs        drugTagger
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
}

func New(c corpusStore, e domain.BatchEmbedder, drugs drugTagger, chunkSize, chunkOverlap int, logger *zap.Logger) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Service{
		corpus:       c,
		embedder:     e,
		drugs:        drugs,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// Ingest processes one file. The boolean reports whether the corpus
// changed; an unchanged checksum skips the whole pipeline.
func (s *Service) Ingest(ctx context.Context, in Input) (source.Document, bool, error) {
	if len(in.Data) == 0 {
		return source.Document{}, false, fmt.Errorf("%w: empty file", domain.ErrIngestion)
	}

	sum := sha256.Sum256(in.Data)
	checksum := hex.EncodeToString(sum[:])

	existing, err := s.corpus.SourceByID(ctx, in.ID)
	if err == nil && existing.Checksum() == checksum {
		s.logger.Info("document unchanged, skipping",
			zap.String("doc_id", in.ID), zap.String("checksum", checksum))
		return existing, false, nil
	}
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return source.Document{}, false, fmt.Errorf("lookup document %s: %w", in.ID, err)
	}

	pages, err := extractPages(in.Filename, in.Data)
	if err != nil {
		return source.Document{}, false, err
	}

	doc, err := source.New(in.ID, in.Title, in.DocType, checksum, len(pages))
	if err != nil {
		return source.Document{}, false, fmt.Errorf("%w: %v", domain.ErrIngestion, err)
	}

	chunks, err := s.chunkPages(doc.ID(), in.Title, pages)
	if err != nil {
		return source.Document{}, false, err
	}
	if len(chunks) == 0 {
		return source.Document{}, false, fmt.Errorf("%w: no text in %s", domain.ErrIngestion, in.Filename)
	}

	if err := s.embedChunks(ctx, chunks); err != nil {
		return source.Document{}, false, err
	}

	doc.SetChunkCount(len(chunks))
	if err := s.corpus.ReplaceDocument(ctx, &doc, chunks); err != nil {
		return source.Document{}, false, fmt.Errorf("store document %s: %w", doc.ID(), err)
	}

	metrics.ChunksIngestedTotal.Add(float64(len(chunks)))
	s.logger.Info("document ingested",
		zap.String("doc_id", doc.ID()),
		zap.Int("pages", doc.Pages()),
		zap.Int("chunks", len(chunks)))
	return doc, true, nil
}

// IngestDir ingests every supported file under dir. Failures are logged
// per file; the first store-level error aborts the walk.
func (s *Service) IngestDir(ctx context.Context, dir string) (int, error) {
	ingested := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !supportedFile(path) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		in := Input{
			ID:       docIDFromPath(path),
			Title:    titleFromPath(path),
			DocType:  docTypeFromPath(path),
			Filename: path,
			Data:     data,
		}
		_, changed, err := s.Ingest(ctx, in)
		if err != nil {
			if errors.Is(err, domain.ErrIngestion) {
				s.logger.Warn("skipping unreadable document",
					zap.String("path", path), zap.Error(err))
				return nil
			}
			return err
		}
		if changed {
			ingested++
		}
		return nil
	})
	return ingested, err
}

func (s *Service) chunkPages(docID, title string, pages []string) ([]chunk.Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(s.chunkSize),
		textsplitter.WithChunkOverlap(s.chunkOverlap),
	)

	drug := s.tagDrug(title, pages)
	meta := chunk.Meta{DrugName: drug}

	var chunks []chunk.Chunk
	seq := 0
	for pageIdx, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts, err := splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("%w: split page %d: %v", domain.ErrIngestion, pageIdx+1, err)
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			c, err := chunk.New(
				fmt.Sprintf("%s:%d", docID, seq),
				docID, part, pageIdx+1, pageIdx+1, seq, meta)
			if err != nil {
				return nil, fmt.Errorf("%w: chunk %d: %v", domain.ErrIngestion, seq, err)
			}
			chunks = append(chunks, c)
			seq++
		}
	}
	return chunks, nil
}

func (s *Service) embedChunks(ctx context.Context, chunks []chunk.Chunk) error {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text()
	}

	res, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(res.Embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d",
			len(res.Embeddings), len(chunks))
	}
	for i := range chunks {
		chunks[i].SetVector(res.Embeddings[i])
	}
	return nil
}

// tagDrug finds a known drug name in the title, falling back to the first
// page of text. Chunks of a tagged document filter by drug at query time.
func (s *Service) tagDrug(title string, pages []string) string {
	if drug, ok := scanForDrug(s.drugs, title); ok {
		return drug
	}
	if len(pages) > 0 {
		if drug, ok := scanForDrug(s.drugs, pages[0]); ok {
			return drug
		}
	}
	return ""
}

func scanForDrug(drugs drugTagger, text string) (string, bool) {
	for _, token := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z')
	}) {
		if canonical, ok := drugs.Canonical(token); ok {
			return canonical, true
		}
	}
	return "", false
}

func supportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

func extractPages(filename string, data []byte) ([]string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return pdfPages(data)
	}
	return []string{strings.TrimSpace(string(data))}, nil
}

func docIDFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ToLower(strings.ReplaceAll(base, " ", "-"))
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, "_", " ")
}

func docTypeFromPath(path string) source.Type {
	if strings.Contains(strings.ToLower(path), "guideline") {
		return source.Guideline
	}
	return source.Datasheet
}
