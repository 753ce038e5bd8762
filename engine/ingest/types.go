package ingest

import (
	"time"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/engine/extract"
	"github.com/FilingLensAI/filinglens-mvp/engine/fetch"
)

// Job is one ingestion request as it travels over the queue.
type Job struct {
	Ref domain.FilingRef `json:"ref"`
}

// AcquiredDoc is a filing after acquisition.
type AcquiredDoc struct {
	Ref domain.FilingRef
	Loc fetch.Locator
	Raw fetch.Raw
}

// ExtractedDoc adds the plain text with page spans.
type ExtractedDoc struct {
	AcquiredDoc
	Text extract.Extracted
}

// EnrichedDoc adds extracted table regions. Degraded marks a document whose
// region extraction failed persistently; the pipeline continues with zero
// records in that case.
type EnrichedDoc struct {
	ExtractedDoc
	Records  []domain.StructuredRecord
	Degraded bool
}

// ChunkedDoc adds the section-aligned chunks.
type ChunkedDoc struct {
	EnrichedDoc
	Chunks []domain.Chunk
}

// EmbeddedDoc adds one embedding per chunk, index-aligned.
type EmbeddedDoc struct {
	ChunkedDoc
	Embeddings [][]float32
}

// Receipt summarizes a successful ingestion.
type Receipt struct {
	DocID    string        `json:"doc_id"`
	Chunks   int           `json:"chunks"`
	Records  int           `json:"records"`
	Degraded bool          `json:"degraded"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Document builds the immutable document row for the dual write.
func (d EnrichedDoc) Document() domain.Document {
	return domain.Document{
		ID:          d.Ref.DocID(),
		Entity:      d.Ref.Entity,
		DocType:     d.Ref.DocType,
		Period:      d.Ref.Period,
		SourceURL:   d.Loc.URL,
		ContentType: d.Raw.ContentType,
		Pages:       len(d.Text.Pages),
		RetrievedAt: d.Raw.RetrievedAt,
	}
}
