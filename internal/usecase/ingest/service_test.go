package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/domain/chunk"
	"github.com/opencare-labs/doseaudit/internal/domain/source"
	"github.com/opencare-labs/doseaudit/internal/usecase/dosage"
)

type mockCorpus struct {
	existing    source.Document
	existingErr error
	storedDoc   *source.Document
	storedChs   []chunk.Chunk
	replaceErr  error
	replaced    int
}

func (m *mockCorpus) ReplaceDocument(_ context.Context, doc *source.Document, chunks []chunk.Chunk) error {
	m.replaced++
	m.storedDoc = doc
	m.storedChs = chunks
	return m.replaceErr
}

func (m *mockCorpus) SourceByID(context.Context, string) (source.Document, error) {
	return m.existing, m.existingErr
}

type mockBatchEmbedder struct {
	gotTexts []string
	dim      int
	short    bool
	err      error
}

func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.gotTexts = texts
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	n := len(texts)
	if m.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, m.dim)
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func newTestService(c *mockCorpus, e *mockBatchEmbedder) *Service {
	return New(c, e, dosage.New(zap.NewNop()), 1000, 200, zap.NewNop())
}

func textInput(id, title, body string) Input {
	return Input{
		ID:       id,
		Title:    title,
		DocType:  source.Datasheet,
		Filename: id + ".txt",
		Data:     []byte(body),
	}
}

func TestIngest_StoresChunksWithVectors(t *testing.T) {
	mc := &mockCorpus{existingErr: domain.ErrDocumentNotFound}
	me := &mockBatchEmbedder{dim: 4}
	s := newTestService(mc, me)

	body := "Methotrexate weekly dosing for juvenile idiopathic arthritis. " +
		strings.Repeat("Administer once weekly with folic acid supplementation. ", 50)
	doc, changed, err := s.Ingest(context.Background(), textInput("mtx-ds", "Methotrexate Datasheet", body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Error("expected the corpus to change")
	}
	if mc.replaced != 1 {
		t.Fatalf("ReplaceDocument calls = %d", mc.replaced)
	}

	wantSum := sha256.Sum256([]byte(body))
	if doc.Checksum() != hex.EncodeToString(wantSum[:]) {
		t.Errorf("checksum = %s", doc.Checksum())
	}
	if doc.ChunkCount() != len(mc.storedChs) {
		t.Errorf("chunk count %d != stored %d", doc.ChunkCount(), len(mc.storedChs))
	}
	if len(mc.storedChs) < 2 {
		t.Fatalf("long text should split into multiple chunks, got %d", len(mc.storedChs))
	}
	for i := range mc.storedChs {
		c := &mc.storedChs[i]
		if len(c.Vector()) != 4 {
			t.Errorf("chunk %d has no vector", i)
		}
		if c.Seq() != i {
			t.Errorf("chunk %d seq = %d", i, c.Seq())
		}
		if c.Meta().DrugName != "methotrexate" {
			t.Errorf("chunk %d drug = %q", i, c.Meta().DrugName)
		}
	}
	if len(me.gotTexts) != len(mc.storedChs) {
		t.Errorf("embedded %d texts for %d chunks", len(me.gotTexts), len(mc.storedChs))
	}
}

func TestIngest_UnchangedChecksumIsNoOp(t *testing.T) {
	body := "Ibuprofen pediatric dosing."
	sum := sha256.Sum256([]byte(body))
	existing := source.Reconstruct("ibu-ds", "Ibuprofen Datasheet", source.Datasheet,
		hex.EncodeToString(sum[:]), 1, 3)

	mc := &mockCorpus{existing: existing}
	s := newTestService(mc, &mockBatchEmbedder{dim: 4})

	doc, changed, err := s.Ingest(context.Background(), textInput("ibu-ds", "Ibuprofen Datasheet", body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Error("unchanged checksum must be a no-op")
	}
	if mc.replaced != 0 {
		t.Error("ReplaceDocument must not run")
	}
	if doc.ChunkCount() != 3 {
		t.Errorf("should return the stored document, got %+v", doc)
	}
}

func TestIngest_ChangedChecksumReplaces(t *testing.T) {
	existing := source.Reconstruct("ibu-ds", "Ibuprofen Datasheet", source.Datasheet,
		strings.Repeat("0", 64), 1, 3)
	mc := &mockCorpus{existing: existing}
	s := newTestService(mc, &mockBatchEmbedder{dim: 4})

	_, changed, err := s.Ingest(context.Background(),
		textInput("ibu-ds", "Ibuprofen Datasheet", "Ibuprofen 20-40 mg/kg/day in divided doses."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed || mc.replaced != 1 {
		t.Error("changed checksum must re-ingest")
	}
}

func TestIngest_EmptyFile(t *testing.T) {
	s := newTestService(&mockCorpus{existingErr: domain.ErrDocumentNotFound}, &mockBatchEmbedder{dim: 4})

	_, _, err := s.Ingest(context.Background(), textInput("x", "X", ""))
	if !errors.Is(err, domain.ErrIngestion) {
		t.Fatalf("expected ErrIngestion, got %v", err)
	}
}

func TestIngest_EmbeddingCountMismatch(t *testing.T) {
	mc := &mockCorpus{existingErr: domain.ErrDocumentNotFound}
	s := newTestService(mc, &mockBatchEmbedder{dim: 4, short: true})

	_, _, err := s.Ingest(context.Background(),
		textInput("doc", "Doc", "Some drug text.\n\nMore text here."))
	if err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Fatalf("expected count mismatch error, got %v", err)
	}
	if mc.replaced != 0 {
		t.Error("nothing may be stored on mismatch")
	}
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"Methotrexate_Datasheet.txt": "Methotrexate 0.3-0.6 mg/kg once weekly.",
		"Pediatric_Guidelines.md":    "General pediatric dosing guidance.",
		"notes.json":                 `{"ignored": true}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	mc := &mockCorpus{existingErr: domain.ErrDocumentNotFound}
	s := newTestService(mc, &mockBatchEmbedder{dim: 4})

	n, err := s.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("ingested = %d, want 2 (json skipped)", n)
	}
}

func TestDocTypeFromPath(t *testing.T) {
	if got := docTypeFromPath("docs/Pediatric_Guidelines.md"); got != source.Guideline {
		t.Errorf("got %s", got)
	}
	if got := docTypeFromPath("docs/Methotrexate_Datasheet.pdf"); got != source.Datasheet {
		t.Errorf("got %s", got)
	}
}
