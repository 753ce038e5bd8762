package structured

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
)

// Store persists documents, chunks, and structured records.
type Store struct {
	db *DB
}

// NewStore creates a Store over an established connection.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Exists reports whether a document has already been ingested.
func (s *Store) Exists(ctx context.Context, docID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = $1`, docID).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("structured: exists %s: %w", docID, err)
	}
	return true, nil
}

// SaveFiling writes the document row, all chunk rows, and all structured
// records in one transaction. This is the relational half of the dual write;
// either everything lands or nothing does.
func (s *Store) SaveFiling(ctx context.Context, doc domain.Document, chunks []domain.Chunk, records []domain.StructuredRecord) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, entity, doc_type, period, source_url, content_type, pages, retrieved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, doc.ID, doc.Entity, doc.DocType, doc.Period, doc.SourceURL, doc.ContentType, doc.Pages, doc.RetrievedAt)
		if err != nil {
			return fmt.Errorf("insert document %s: %w", doc.ID, err)
		}

		chunkStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (doc_id, ordinal, section, content, start_char, end_char, page)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`)
		if err != nil {
			return fmt.Errorf("prepare chunk insert: %w", err)
		}
		defer chunkStmt.Close()

		for _, c := range chunks {
			if _, err := chunkStmt.ExecContext(ctx, c.DocID, c.Ordinal, c.Section, c.Text, c.StartChar, c.EndChar, c.Page); err != nil {
				return fmt.Errorf("insert chunk %s: %w", c.Key(), err)
			}
		}

		for _, r := range records {
			cols, err := json.Marshal(r.Columns)
			if err != nil {
				return fmt.Errorf("marshal columns: %w", err)
			}
			rows, err := json.Marshal(r.Rows)
			if err != nil {
				return fmt.Errorf("marshal rows: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO structured_records (doc_id, page, caption, columns, rows, confidence)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, r.DocID, r.Page, r.Caption, cols, rows, r.Confidence)
			if err != nil {
				return fmt.Errorf("insert record p%d %q: %w", r.Page, r.Caption, err)
			}
		}
		return nil
	})
}

// DeleteFiling removes a document and, via cascade, its chunks and records.
// Deleting an absent document is a no-op so rollback stays idempotent.
func (s *Store) DeleteFiling(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, docID)
	if err != nil {
		return fmt.Errorf("structured: delete filing %s: %w", docID, err)
	}
	return nil
}

// ChunksByDoc returns a document's chunks in ordinal order.
func (s *Store) ChunksByDoc(ctx context.Context, docID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, ordinal, section, content, start_char, end_char, page
		FROM chunks WHERE doc_id = $1 ORDER BY ordinal ASC
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("structured: chunks by doc %s: %w", docID, err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// AllChunks returns every chunk, ordered by (doc_id, ordinal). The hybrid
// retriever builds its lexical index over this pool.
func (s *Store) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, ordinal, section, content, start_char, end_char, page
		FROM chunks ORDER BY doc_id, ordinal
	`)
	if err != nil {
		return nil, fmt.Errorf("structured: all chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// DocumentIDs returns every ingested document identifier, sorted.
func (s *Store) DocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("structured: document ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountChunks returns the number of chunk rows for a document. Used to audit
// the chunk/embedding sync invariant.
func (s *Store) CountChunks(ctx context.Context, docID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE doc_id = $1`, docID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("structured: count chunks %s: %w", docID, err)
	}
	return n, nil
}

func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.DocID, &c.Ordinal, &c.Section, &c.Text, &c.StartChar, &c.EndChar, &c.Page); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
