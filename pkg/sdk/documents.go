package doseaudit

import "context"

// Ingest loads a document into the corpus. The second return value is
// false when the document's checksum is unchanged and nothing was
// written.
func (c *Client) Ingest(ctx context.Context, u Upload) (Document, bool, error) {
	in, err := u.toDomain()
	if err != nil {
		return Document{}, false, err
	}
	doc, changed, err := c.ingest.Ingest(ctx, in)
	if err != nil {
		return Document{}, false, err
	}
	return documentFromDomain(&doc), changed, nil
}

// IngestDir loads every .pdf, .txt and .md file under dir and returns
// the number of documents ingested. Files that fail to parse are
// skipped.
func (c *Client) IngestDir(ctx context.Context, dir string) (int, error) {
	return c.ingest.IngestDir(ctx, dir)
}

// Documents lists the ingested corpus documents.
func (c *Client) Documents(ctx context.Context) ([]Document, error) {
	docs, err := c.docs.Sources(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(docs))
	for i := range docs {
		out = append(out, documentFromDomain(&docs[i]))
	}
	return out, nil
}

// Document returns one corpus document by ID.
func (c *Client) Document(ctx context.Context, id string) (Document, error) {
	doc, err := c.docs.SourceByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	return documentFromDomain(&doc), nil
}

// DeleteDocument removes a document and its chunks from the corpus.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.docs.DeleteDocument(ctx, id)
}
