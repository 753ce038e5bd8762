package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/engine/semantic"
	"github.com/FilingLensAI/filinglens-mvp/pkg/fn"
)

// DefaultTopK is how many fused chunks the retriever hands to synthesis.
const DefaultTopK = 8

// corpusTTL bounds how stale the lexical index may be before a rebuild.
const corpusTTL = 5 * time.Minute

// VectorSearcher is the k-NN surface of the vector store.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]semantic.SearchResult, error)
}

// QueryEmbedder embeds one query string.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSource loads the chunk corpus for lexical indexing.
type ChunkSource interface {
	AllChunks(ctx context.Context) ([]domain.Chunk, error)
}

// Retriever runs the lexical and vector rankings concurrently and fuses
// them. The lexical index is rebuilt lazily from the relational store when
// it ages out, so recently ingested documents become searchable without a
// restart.
type Retriever struct {
	source ChunkSource
	vec    VectorSearcher
	embed  QueryEmbedder
	topK   int
	log    *slog.Logger

	mu      sync.Mutex
	index   *LexicalIndex
	indexAt time.Time
}

// NewRetriever wires a hybrid retriever. topK <= 0 selects DefaultTopK.
func NewRetriever(source ChunkSource, vec VectorSearcher, embed QueryEmbedder, topK int, log *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{source: source, vec: vec, embed: embed, topK: topK, log: log}
}

// Retrieve returns the fused top-k chunks for the question, best first.
// Returns ErrRetrievalEmpty when neither ranking produced a hit.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]RankedChunk, error) {
	index, err := r.lexicalIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("lexical corpus: %w", err)
	}

	lexResult, vecResult := fn.Parallel2(
		func() fn.Result[[]RankedChunk] {
			return fn.Ok(index.Rank(question, r.topK))
		},
		func() fn.Result[[]semantic.SearchResult] {
			embedding, err := r.embed.Embed(ctx, question)
			if err != nil {
				return fn.Err[[]semantic.SearchResult](fmt.Errorf("query embedding: %w", err))
			}
			return fn.FromPair(r.vec.Search(ctx, embedding, r.topK))
		},
	)

	lexical, _ := lexResult.Unwrap()
	vector, vecErr := vecResult.Unwrap()
	if vecErr != nil {
		// Lexical-only results still answer the question, at lower quality.
		r.log.Warn("vector search unavailable, lexical-only retrieval", "error", vecErr)
	}

	if len(lexical) == 0 && len(vector) == 0 {
		if vecErr != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrRetrievalEmpty, vecErr)
		}
		return nil, domain.ErrRetrievalEmpty
	}

	fusedChunks := fuseRRF(lexical, vector)
	if len(fusedChunks) > r.topK {
		fusedChunks = fusedChunks[:r.topK]
	}
	return fusedChunks, nil
}

// Invalidate drops the cached lexical index; the next Retrieve rebuilds it.
func (r *Retriever) Invalidate() {
	r.mu.Lock()
	r.index = nil
	r.mu.Unlock()
}

func (r *Retriever) lexicalIndex(ctx context.Context) (*LexicalIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil && time.Since(r.indexAt) < corpusTTL {
		return r.index, nil
	}

	chunks, err := r.source.AllChunks(ctx)
	if err != nil {
		if r.index != nil {
			// Stale beats unavailable.
			return r.index, nil
		}
		return nil, err
	}
	r.index = NewLexicalIndex(chunks)
	r.indexAt = time.Now()
	r.log.Debug("lexical index rebuilt", "chunks", len(chunks), "terms", len(r.index.vocabulary))
	return r.index, nil
}
