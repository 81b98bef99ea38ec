package corpus

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/domain/chunk"
	"github.com/opencare-labs/doseaudit/internal/domain/source"
)

// Hash field names shared by the chunk index schema and the DTO mapping.
const (
	fieldDocID    = "doc_id"
	fieldDocTitle = "doc_title"
	fieldDocType  = "doc_type"
	fieldDrug     = "drug"
	fieldSection  = "section"
	fieldPageFrom = "page_start"
	fieldPageTo   = "page_end"
	fieldSeq      = "seq"
	fieldText     = "text"
	fieldVector   = "vector"

	fieldTitle    = "title"
	fieldType     = "type"
	fieldChecksum = "checksum"
	fieldPages    = "pages"
	fieldChunkCnt = "chunk_count"
)

func chunkKey(docID string, seq int) string {
	return fmt.Sprintf("%schunk:%s:%d", domain.KeyPrefix, docID, seq)
}

func chunkKeyPattern(docID string) string {
	return fmt.Sprintf("%schunk:%s:*", domain.KeyPrefix, docID)
}

func docKey(id string) string {
	return domain.KeyPrefix + "doc:" + id
}

func docKeyPattern() string {
	return domain.KeyPrefix + "doc:*"
}

func chunkToFields(c *chunk.Chunk, docTitle string, docType source.Type) map[string]string {
	f := map[string]string{
		fieldDocID:    c.SourceID(),
		fieldDocTitle: docTitle,
		fieldDocType:  string(docType),
		fieldPageFrom: strconv.Itoa(c.PageStart()),
		fieldPageTo:   strconv.Itoa(c.PageEnd()),
		fieldSeq:      strconv.Itoa(c.Seq()),
		fieldText:     c.Text(),
		fieldVector:   string(vectorToBytes(c.Vector())),
	}
	if c.Meta().DrugName != "" {
		f[fieldDrug] = c.Meta().DrugName
	}
	if c.Meta().Section != "" {
		f[fieldSection] = c.Meta().Section
	}
	return f
}

func docToFields(d *source.Document) map[string]string {
	return map[string]string{
		fieldTitle:    d.Title(),
		fieldType:     string(d.DocType()),
		fieldChecksum: d.Checksum(),
		fieldPages:    strconv.Itoa(d.Pages()),
		fieldChunkCnt: strconv.Itoa(d.ChunkCount()),
	}
}

func docFromFields(id string, f map[string]string) source.Document {
	pages, _ := strconv.Atoi(f[fieldPages])
	chunks, _ := strconv.Atoi(f[fieldChunkCnt])
	return source.Reconstruct(id, f[fieldTitle], source.Type(f[fieldType]), f[fieldChecksum], pages, chunks)
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
