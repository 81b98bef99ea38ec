package corpus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/opencare-labs/doseaudit/internal/db"
	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/domain/chunk"
	"github.com/opencare-labs/doseaudit/internal/domain/source"
)

// IndexName is the FT index over chunk hashes.
var IndexName = domain.KeyPrefix + "chunks-idx"

// store is the consumer interface for the corpus (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	ReplaceGroup(ctx context.Context, delKeys []string, items []db.HashSetItem) error
}

// Hit is a single retrieved chunk with its similarity score.
type Hit struct {
	ChunkID  string
	DocID    string
	DocTitle string
	DrugName string
	Seq      int
	Page     int
	Score    float64
	Text     string
}

// QueryFilter narrows a KNN query to chunks matching TAG fields.
type QueryFilter struct {
	DocType  source.Type
	DrugName string
}

// Repo stores source documents and their chunks as Redis hashes behind a
// single FT vector index.
type Repo struct {
	store store
}

// New creates a corpus repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the chunk vector index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context, dim, hnswM, hnswEF int) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     IndexName,
		Prefixes: []string{domain.KeyPrefix + "chunk:"},
		Fields: []db.IndexField{
			{Name: fieldDocID, Type: db.IndexFieldTag},
			{Name: fieldDocType, Type: db.IndexFieldTag},
			{Name: fieldDrug, Type: db.IndexFieldTag},
			{Name: fieldSeq, Type: db.IndexFieldNumeric},
			{Name: fieldText, Type: db.IndexFieldText},
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         dim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           hnswM,
				VectorEFConstruct: hnswEF,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// ReplaceDocument atomically swaps a document's metadata and chunks: any
// previously stored chunks are deleted and the new set written in one
// transaction, so concurrent searches never see a half-ingested document.
func (r *Repo) ReplaceDocument(ctx context.Context, doc *source.Document, chunks []chunk.Chunk) error {
	oldKeys, err := r.store.Scan(ctx, chunkKeyPattern(doc.ID()))
	if err != nil {
		return fmt.Errorf("scan old chunks for %s: %w", doc.ID(), err)
	}

	items := make([]db.HashSetItem, 0, len(chunks)+1)
	items = append(items, db.HashSetItem{Key: docKey(doc.ID()), Fields: docToFields(doc)})
	for i := range chunks {
		c := &chunks[i]
		items = append(items, db.HashSetItem{
			Key:    chunkKey(doc.ID(), c.Seq()),
			Fields: chunkToFields(c, doc.Title(), doc.DocType()),
		})
	}

	if err := r.store.ReplaceGroup(ctx, oldKeys, items); err != nil {
		return fmt.Errorf("replace document %s: %w", doc.ID(), err)
	}
	return nil
}

// SourceByID returns a stored source document.
func (r *Repo) SourceByID(ctx context.Context, id string) (source.Document, error) {
	fields, err := r.store.HGetAll(ctx, docKey(id))
	if err != nil {
		return source.Document{}, fmt.Errorf("hgetall doc %s: %w", id, err)
	}
	if len(fields) == 0 {
		return source.Document{}, domain.ErrDocumentNotFound
	}
	return docFromFields(id, fields), nil
}

// Sources lists all stored source documents, ordered by ID.
func (r *Repo) Sources(ctx context.Context) ([]source.Document, error) {
	keys, err := r.store.Scan(ctx, docKeyPattern())
	if err != nil {
		return nil, fmt.Errorf("scan docs: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	fieldMaps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch docs: %w", err)
	}

	prefix := domain.KeyPrefix + "doc:"
	docs := make([]source.Document, 0, len(keys))
	for i, key := range keys {
		if len(fieldMaps[i]) == 0 {
			continue
		}
		docs = append(docs, docFromFields(key[len(prefix):], fieldMaps[i]))
	}
	return docs, nil
}

// DeleteDocument removes a document and all its chunks atomically.
func (r *Repo) DeleteDocument(ctx context.Context, id string) error {
	key := docKey(id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrDocumentNotFound
	}

	chunkKeys, err := r.store.Scan(ctx, chunkKeyPattern(id))
	if err != nil {
		return fmt.Errorf("scan chunks for %s: %w", id, err)
	}

	delKeys := append(chunkKeys, key)
	if err := r.store.ReplaceGroup(ctx, delKeys, nil); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// ChunkCount returns the number of indexed chunks.
func (r *Repo) ChunkCount(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, IndexName, "*")
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Query runs a KNN search over chunk vectors with optional TAG pre-filters.
// Results come back ordered by similarity, best first.
func (r *Repo) Query(ctx context.Context, vector []float32, k int, f QueryFilter) ([]Hit, error) {
	q := &db.KNNQuery{
		IndexName: IndexName,
		Vector:    vector,
		K:         k,
		ReturnFields: []string{
			fieldDocID, fieldDocTitle, fieldDrug, fieldSeq, fieldPageFrom, fieldText, "__vector_score",
		},
	}
	if f.DocType != "" {
		q.TagFilters = append(q.TagFilters, db.TagFilter{Field: fieldDocType, Value: string(f.DocType)})
	}
	if f.DrugName != "" {
		q.TagFilters = append(q.TagFilters, db.TagFilter{Field: fieldDrug, Value: f.DrugName})
	}

	result, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	hits := make([]Hit, 0, len(result.Entries))
	for _, e := range result.Entries {
		seq, _ := strconv.Atoi(e.Fields[fieldSeq])
		page, _ := strconv.Atoi(e.Fields[fieldPageFrom])
		hits = append(hits, Hit{
			ChunkID:  e.Key,
			DocID:    e.Fields[fieldDocID],
			DocTitle: e.Fields[fieldDocTitle],
			DrugName: e.Fields[fieldDrug],
			Seq:      seq,
			Page:     page,
			Score:    e.Score,
			Text:     e.Fields[fieldText],
		})
	}

	// Equal scores fall back to document order so results are deterministic.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Seq < hits[j].Seq
	})
	return hits, nil
}
