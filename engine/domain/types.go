// Package domain defines core domain types, constants, and validation for the
// FilingLens engine pipeline. It acts as the validation gate at pipeline entry points.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// FilingRef is the stable identity of a filing: who filed it, what kind of
// document it is, and which fiscal period it covers.
type FilingRef struct {
	Entity  string `json:"entity"`
	DocType string `json:"doc_type"`
	Period  string `json:"period"`
}

// DocID returns the canonical document identifier derived from the ref.
func (r FilingRef) DocID() string {
	return strings.ToUpper(r.Entity) + ":" + strings.ToUpper(r.DocType) + ":" + strings.ToUpper(r.Period)
}

// Document is one ingested source filing. Immutable after a successful
// ingestion; re-ingestion of the same DocID is rejected as a duplicate.
type Document struct {
	ID          string    `json:"id"`
	Entity      string    `json:"entity"`
	DocType     string    `json:"doc_type"`
	Period      string    `json:"period"`
	SourceURL   string    `json:"source_url"`
	ContentType string    `json:"content_type"`
	Pages       int       `json:"pages"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Chunk is one section-aligned unit of extracted text, the retrieval atom.
// Ordinals are contiguous starting at 0 within a document.
type Chunk struct {
	DocID     string `json:"doc_id"`
	Ordinal   int    `json:"ordinal"`
	Section   string `json:"section"`
	Text      string `json:"text"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
	Page      int    `json:"page"`
}

// Key returns the (doc id, ordinal) key shared by the structured and vector
// stores. Every chunk row must have exactly one vector point under this key.
func (c Chunk) Key() string {
	return fmt.Sprintf("%s#%d", c.DocID, c.Ordinal)
}

// StructuredRecord is one table-like region extracted from a page. A document
// may have zero; records are optional enrichment, not part of the sync invariant.
type StructuredRecord struct {
	DocID      string     `json:"doc_id"`
	Page       int        `json:"page"`
	Caption    string     `json:"caption"`
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
	Confidence float64    `json:"confidence"`
}

// QueryClass is the routing decision for a natural-language question.
type QueryClass string

const (
	ClassStructured QueryClass = "structured"
	ClassSemantic   QueryClass = "semantic"
)

// Confidence is the ordinal confidence scale attached to every answer.
// It is derived from source quality, never from model self-reports.
type Confidence string

const (
	ConfidenceVeryHigh Confidence = "very_high"
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceLow      Confidence = "low"
)
