package semantic

import (
	"fmt"

	"github.com/google/uuid"
)

// VectorRecord is one chunk embedding to store, keyed by (doc id, ordinal).
type VectorRecord struct {
	DocID     string
	Ordinal   int
	Text      string
	Section   string
	Page      int
	Embedding []float32
}

// SearchResult is a single k-NN hit.
type SearchResult struct {
	DocID   string  `json:"doc_id"`
	Ordinal int     `json:"ordinal"`
	Text    string  `json:"text"`
	Section string  `json:"section"`
	Page    int     `json:"page"`
	Score   float32 `json:"score"`
}

// Key returns the chunk key of the hit, matching domain.Chunk.Key.
func (r SearchResult) Key() string {
	return fmt.Sprintf("%s#%d", r.DocID, r.Ordinal)
}

// PointID derives the deterministic Qdrant point UUID for a chunk key.
// Re-upserting the same chunk overwrites rather than duplicates.
func PointID(docID string, ordinal int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", docID, ordinal))).String()
}
