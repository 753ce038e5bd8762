// Package rag implements the query side of the engine: routing, structured
// query generation, hybrid retrieval with rank fusion, and answer synthesis
// with citations and calibrated confidence.
package rag

import (
	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
)

// Route is the classification of one question plus the hints the structured
// path extracts from it. Not persisted beyond logging.
type Route struct {
	Class  domain.QueryClass `json:"class"`
	Entity string            `json:"entity,omitempty"`
	Period string            `json:"period,omitempty"`
	Metric string            `json:"metric,omitempty"`
}

// RankedChunk is one retrieval hit with its fused score.
type RankedChunk struct {
	Chunk domain.Chunk
	Score float64
}

// Source is one citation pointing at a precise location in the corpus.
type Source struct {
	Ref     int    `json:"ref"` // the [n] marker in the answer text
	DocID   string `json:"doc_id"`
	Section string `json:"section,omitempty"`
	Page    int    `json:"page,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Answer is the engine's response to one question. Every question produces an
// Answer unless both paths fail.
type Answer struct {
	Text       string            `json:"text"`
	Sources    []Source          `json:"sources"`
	Confidence domain.Confidence `json:"confidence"`
	Class      domain.QueryClass `json:"class"`
	FellBack   bool              `json:"fell_back,omitempty"`
}
