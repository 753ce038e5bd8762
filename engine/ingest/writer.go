package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/engine/semantic"
)

// RelationalWriter is the structured-store surface the dual write needs.
type RelationalWriter interface {
	Exists(ctx context.Context, docID string) (bool, error)
	SaveFiling(ctx context.Context, doc domain.Document, chunks []domain.Chunk, records []domain.StructuredRecord) error
	DeleteFiling(ctx context.Context, docID string) error
}

// VectorWriter is the vector-store surface the dual write needs.
type VectorWriter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
	DeleteByDoc(ctx context.Context, docID string) error
}

// VectorBatchSize caps points per upsert request.
const VectorBatchSize = 100

// OrphanError reports a rollback that itself failed: one store may hold data
// the other does not. This is the only failure requiring operator attention.
type OrphanError struct {
	DocID      string
	WriteErr   error // the failure that triggered rollback
	CleanupErr error // the failure during rollback
}

func (e *OrphanError) Error() string {
	return fmt.Sprintf("orphaned data for %s: write failed (%v) and cleanup failed (%v)", e.DocID, e.WriteErr, e.CleanupErr)
}

func (e *OrphanError) Unwrap() error { return domain.ErrSyncWrite }

// DualWriter persists chunks and embeddings across both stores such that the
// sync invariant holds, or neither store keeps anything.
type DualWriter struct {
	rel RelationalWriter
	vec VectorWriter
	log *slog.Logger
}

// NewDualWriter creates a DualWriter.
func NewDualWriter(rel RelationalWriter, vec VectorWriter, logger *slog.Logger) *DualWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DualWriter{rel: rel, vec: vec, log: logger}
}

// Write performs the dual write: relational rows first (cheap, transactional),
// then vector points in batches. Any vector failure rolls back every point
// written for this document and the relational rows, in that order. Both
// deletes are delete-by-document, so a repeated rollback is a no-op.
func (w *DualWriter) Write(ctx context.Context, doc EmbeddedDoc) error {
	docID := doc.Ref.DocID()
	if len(doc.Chunks) != len(doc.Embeddings) {
		return fmt.Errorf("%w: %d chunks but %d embeddings for %s", domain.ErrSyncWrite, len(doc.Chunks), len(doc.Embeddings), docID)
	}

	if err := w.rel.SaveFiling(ctx, doc.Document(), doc.Chunks, doc.Records); err != nil {
		return fmt.Errorf("%w: relational write for %s: %w", domain.ErrSyncWrite, docID, err)
	}

	points := make([]semantic.VectorRecord, len(doc.Chunks))
	for i, c := range doc.Chunks {
		points[i] = semantic.VectorRecord{
			DocID:     c.DocID,
			Ordinal:   c.Ordinal,
			Text:      c.Text,
			Section:   c.Section,
			Page:      c.Page,
			Embedding: doc.Embeddings[i],
		}
	}

	for start := 0; start < len(points); start += VectorBatchSize {
		end := min(start+VectorBatchSize, len(points))
		if err := w.vec.Upsert(ctx, points[start:end]); err != nil {
			return w.rollback(ctx, docID, fmt.Errorf("vector write batch %d-%d: %w", start, end, err))
		}
	}
	return nil
}

// rollbackTimeout bounds cleanup independently of the write deadline.
const rollbackTimeout = 15 * time.Second

// rollback removes everything written for docID from both stores. Partial
// embedding sets are never left live. Cleanup runs on its own deadline:
// the write often fails because ctx expired, and the deletes must still go
// through.
func (w *DualWriter) rollback(ctx context.Context, docID string, writeErr error) error {
	w.log.Warn("dual write failed, rolling back", "doc_id", docID, "error", writeErr)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if err := w.vec.DeleteByDoc(ctx, docID); err != nil {
		return &OrphanError{DocID: docID, WriteErr: writeErr, CleanupErr: fmt.Errorf("vector cleanup: %w", err)}
	}
	if err := w.rel.DeleteFiling(ctx, docID); err != nil {
		return &OrphanError{DocID: docID, WriteErr: writeErr, CleanupErr: fmt.Errorf("relational cleanup: %w", err)}
	}

	w.log.Info("rollback complete", "doc_id", docID)
	return fmt.Errorf("%w: %s: %w (rolled back)", domain.ErrSyncWrite, docID, writeErr)
}
