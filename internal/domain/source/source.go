package source

import (
	"fmt"
	"regexp"
)

// Type classifies a source document.
type Type string

const (
	// Guideline is a clinical practice guideline.
	Guideline Type = "guideline"
	// Datasheet is a per-drug technical datasheet.
	Datasheet Type = "datasheet"
)

// ParseType validates a document type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case Guideline, Datasheet:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown document type %q (want guideline or datasheet)", s)
	}
}

var checksumRegex = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Document describes an ingested source document. Its chunks are owned by
// the document store; re-ingestion with an unchanged checksum is a no-op.
type Document struct {
	id         string
	title      string
	docType    Type
	checksum   string
	pages      int
	chunkCount int
}

// New validates and creates a source Document.
// checksum is the lowercase hex sha256 of the raw document bytes.
func New(id, title string, docType Type, checksum string, pages int) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if title == "" {
		return Document{}, fmt.Errorf("document title is required")
	}
	if _, err := ParseType(string(docType)); err != nil {
		return Document{}, err
	}
	if !checksumRegex.MatchString(checksum) {
		return Document{}, fmt.Errorf("checksum must be 64 lowercase hex chars")
	}
	if pages < 0 {
		return Document{}, fmt.Errorf("pages must be non-negative")
	}

	return Document{id: id, title: title, docType: docType, checksum: checksum, pages: pages}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, title string, docType Type, checksum string, pages, chunkCount int) Document {
	return Document{
		id: id, title: title, docType: docType,
		checksum: checksum, pages: pages, chunkCount: chunkCount,
	}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// DocType returns the document classification.
func (d *Document) DocType() Type { return d.docType }

// Checksum returns the sha256 of the raw document bytes.
func (d *Document) Checksum() string { return d.checksum }

// Pages returns the page count of the source.
func (d *Document) Pages() int { return d.pages }

// ChunkCount returns the number of chunks produced by the last ingestion.
func (d *Document) ChunkCount() int { return d.chunkCount }

// SetChunkCount records the chunk count after ingestion.
func (d *Document) SetChunkCount(n int) { d.chunkCount = n }
