package chunk

import "fmt"

// MaxTextSize bounds chunk text, derived from the chunking policy
// (chunk size plus overlap slack).
const MaxTextSize = 8192

// Meta holds optional retrieval-filter metadata for a chunk.
type Meta struct {
	DrugName string
	Section  string
}

// Chunk is an immutable span of source-document text stored with its
// embedding for retrieval. Owned exclusively by the document store.
type Chunk struct {
	id        string
	sourceID  string
	pageStart int
	pageEnd   int
	seq       int
	text      string
	vector    []float32
	meta      Meta
}

// New validates and creates a Chunk. The vector is attached later by the
// ingestion pipeline via SetVector.
func New(id, sourceID, text string, pageStart, pageEnd, seq int, meta Meta) (Chunk, error) {
	if id == "" {
		return Chunk{}, fmt.Errorf("chunk ID is required")
	}
	if sourceID == "" {
		return Chunk{}, fmt.Errorf("source document ID is required")
	}
	if text == "" {
		return Chunk{}, fmt.Errorf("chunk text is required")
	}
	if len(text) > MaxTextSize {
		return Chunk{}, fmt.Errorf("chunk text too large (max %d bytes)", MaxTextSize)
	}
	if pageStart < 0 || pageEnd < pageStart {
		return Chunk{}, fmt.Errorf("invalid page range [%d, %d]", pageStart, pageEnd)
	}
	if seq < 0 {
		return Chunk{}, fmt.Errorf("seq must be non-negative")
	}

	return Chunk{
		id:        id,
		sourceID:  sourceID,
		pageStart: pageStart,
		pageEnd:   pageEnd,
		seq:       seq,
		text:      text,
		meta:      meta,
	}, nil
}

// Reconstruct creates a Chunk without validation (storage hydration).
func Reconstruct(
	id, sourceID, text string, pageStart, pageEnd, seq int,
	vector []float32, meta Meta,
) Chunk {
	return Chunk{
		id: id, sourceID: sourceID, text: text,
		pageStart: pageStart, pageEnd: pageEnd, seq: seq,
		vector: vector, meta: meta,
	}
}

// ID returns the chunk identifier.
func (c *Chunk) ID() string { return c.id }

// SourceID returns the owning source document identifier.
func (c *Chunk) SourceID() string { return c.sourceID }

// PageStart returns the first source page covered by the chunk.
func (c *Chunk) PageStart() int { return c.pageStart }

// PageEnd returns the last source page covered by the chunk.
func (c *Chunk) PageEnd() int { return c.pageEnd }

// Seq returns the ingestion ordinal, used for deterministic tie-breaking.
func (c *Chunk) Seq() int { return c.seq }

// Text returns the chunk text.
func (c *Chunk) Text() string { return c.text }

// Vector returns the embedding vector.
func (c *Chunk) Vector() []float32 { return c.vector }

// Meta returns the retrieval-filter metadata.
func (c *Chunk) Meta() Meta { return c.meta }

// SetVector attaches the embedding vector in place.
func (c *Chunk) SetVector(v []float32) { c.vector = v }
