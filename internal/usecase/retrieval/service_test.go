package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/repository/corpus"
)

type mockEmbedder struct {
	vector []float32
	err    error
}

func (m *mockEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vector}, nil
}

type mockCorpus struct {
	gotK      int
	gotFilter corpus.QueryFilter
	hits      []corpus.Hit
	err       error
}

func (m *mockCorpus) Query(_ context.Context, _ []float32, k int, f corpus.QueryFilter) ([]corpus.Hit, error) {
	m.gotK = k
	m.gotFilter = f
	return m.hits, m.err
}

func TestRetrieve_MapsHits(t *testing.T) {
	mc := &mockCorpus{hits: []corpus.Hit{
		{ChunkID: "doseaudit:chunk:d1:0", DocTitle: "MTX Datasheet", DrugName: "methotrexate", Page: 3, Score: 0.92, Text: "weekly dosing"},
		{ChunkID: "doseaudit:chunk:d1:4", DocTitle: "MTX Datasheet", DrugName: "methotrexate", Page: 7, Score: 0.81, Text: "hepatotoxicity"},
	}}
	s := New(&mockEmbedder{vector: []float32{0.1, 0.2}}, mc, 0, zap.NewNop())

	items, err := s.Retrieve(context.Background(), "methotrexate weekly dose", "methotrexate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mc.gotK != DefaultTopK {
		t.Errorf("k = %d, want default %d", mc.gotK, DefaultTopK)
	}
	if mc.gotFilter.DrugName != "methotrexate" {
		t.Errorf("filter drug = %q", mc.gotFilter.DrugName)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Source != "MTX Datasheet" || items[0].Page != 3 || items[0].Score != 0.92 {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[0].Score < items[1].Score {
		t.Error("items should stay best-first")
	}
}

func TestRetrieve_FullPageStaysBestFirst(t *testing.T) {
	mc := &mockCorpus{hits: []corpus.Hit{
		{ChunkID: "doseaudit:chunk:d1:0", Seq: 0, Score: 0.95, Text: "weekly dosing"},
		{ChunkID: "doseaudit:chunk:d2:3", Seq: 3, Score: 0.90, Text: "renal adjustment"},
		{ChunkID: "doseaudit:chunk:d2:8", Seq: 8, Score: 0.90, Text: "hepatic monitoring"},
		{ChunkID: "doseaudit:chunk:d1:5", Seq: 5, Score: 0.77, Text: "folate rescue"},
		{ChunkID: "doseaudit:chunk:d3:1", Seq: 1, Score: 0.60, Text: "administration"},
	}}
	s := New(&mockEmbedder{vector: []float32{0.1}}, mc, 5, zap.NewNop())

	items, err := s.Retrieve(context.Background(), "methotrexate weekly dose", "methotrexate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mc.gotK != 5 {
		t.Errorf("k = %d, want 5", mc.gotK)
	}
	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].Score > items[i-1].Score {
			t.Errorf("item %d score %v above previous %v", i, items[i].Score, items[i-1].Score)
		}
	}
	if items[1].ChunkID != "doseaudit:chunk:d2:3" || items[2].ChunkID != "doseaudit:chunk:d2:8" {
		t.Errorf("tied scores must keep corpus order, got %q then %q", items[1].ChunkID, items[2].ChunkID)
	}
}

func TestRetrieve_TruncatesExcerpts(t *testing.T) {
	long := strings.Repeat("dosage guidance ", 100)
	mc := &mockCorpus{hits: []corpus.Hit{{ChunkID: "c", Text: long}}}
	s := New(&mockEmbedder{vector: []float32{0.1}}, mc, 3, zap.NewNop())

	items, err := s.Retrieve(context.Background(), "q", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items[0].Excerpt) > MaxExcerptLen {
		t.Errorf("excerpt len = %d, want <= %d", len(items[0].Excerpt), MaxExcerptLen)
	}
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	s := New(&mockEmbedder{vector: []float32{0.1}}, &mockCorpus{}, 5, zap.NewNop())

	items, err := s.Retrieve(context.Background(), "q", "ibuprofen")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}

func TestRetrieve_EmbedderError(t *testing.T) {
	s := New(&mockEmbedder{err: domain.ErrEmbeddingProvider}, &mockCorpus{}, 5, zap.NewNop())

	if _, err := s.Retrieve(context.Background(), "q", ""); !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
}

func TestRetrieve_CorpusError(t *testing.T) {
	boom := errors.New("index gone")
	s := New(&mockEmbedder{vector: []float32{0.1}}, &mockCorpus{err: boom}, 5, zap.NewNop())

	if _, err := s.Retrieve(context.Background(), "q", ""); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped corpus error, got %v", err)
	}
}
