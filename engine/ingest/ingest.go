// Package ingest implements the ingestion pipeline: acquire, extract text,
// extract structured regions, chunk, embed, and the dual-store write with
// rollback. One document's stages run sequentially; independent documents run
// in parallel behind the shared acquisition rate limiter.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/engine/extract"
	"github.com/FilingLensAI/filinglens-mvp/engine/fetch"
	"github.com/FilingLensAI/filinglens-mvp/pkg/fn"
)

// Stage timeouts. A stage that overruns is cancelled and treated as failed.
const (
	acquireTimeout = 60 * time.Second
	visionTimeout  = 120 * time.Second
	embedTimeout   = 120 * time.Second
	writeTimeout   = 30 * time.Second
)

// EmbedBatchSize is the max chunks per embedding request.
const EmbedBatchSize = 100

// Fetcher acquires raw bytes for a locator.
type Fetcher interface {
	Fetch(ctx context.Context, loc fetch.Locator) (fetch.Raw, error)
}

// RegionExtractor extracts table regions from document bytes.
type RegionExtractor interface {
	Regions(ctx context.Context, docID, mimeType string, data []byte) ([]domain.StructuredRecord, error)
}

// Embedder turns chunk texts into vectors, preserving input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Resolver fetch.Resolver
	Fetcher  Fetcher
	Regions  RegionExtractor
	Embedder Embedder
	Rel      RelationalWriter
	Vec      VectorWriter
	Markers  []string
	Chunker  ChunkerOpts
	Retry    fn.RetryOpts
	Logger   *slog.Logger

	// Extract overrides the text extractor. Defaults to extract.PDF.
	Extract func(data []byte) (extract.Extracted, error)
}

// Orchestrator sequences the six ingestion stages for one document at a time.
type Orchestrator struct {
	deps   Deps
	writer *DualWriter
	log    *slog.Logger
}

// NewOrchestrator wires an Orchestrator from its dependencies.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if len(deps.Markers) == 0 {
		deps.Markers = DefaultSectionMarkers
	}
	if deps.Chunker.ChunkChars == 0 {
		deps.Chunker = DefaultChunkerOpts()
	}
	if deps.Retry.MaxAttempts == 0 {
		deps.Retry = fn.DefaultRetry
	}
	// Permanent failures (corrupt input, not-found) are never retried.
	if deps.Retry.Permanent == nil {
		deps.Retry.Permanent = func(err error) bool { return !domain.Retryable(err) }
	}
	if deps.Extract == nil {
		deps.Extract = extract.PDF
	}
	return &Orchestrator{
		deps:   deps,
		writer: NewDualWriter(deps.Rel, deps.Vec, deps.Logger),
		log:    deps.Logger,
	}
}

// Ingest runs the full pipeline for one filing. On success the sync invariant
// holds for the document; on failure no partial data is visible to readers
// (the only exception is an OrphanError, where rollback itself failed).
func (o *Orchestrator) Ingest(ctx context.Context, ref domain.FilingRef) (Receipt, error) {
	start := time.Now()
	docID := ref.DocID()

	if err := domain.ValidateFilingRef(ref); err != nil {
		return Receipt{}, domain.NewStageError("validate", err)
	}

	exists, err := o.deps.Rel.Exists(ctx, docID)
	if err != nil {
		return Receipt{}, domain.NewStageError("validate", err)
	}
	if exists {
		return Receipt{}, domain.NewStageError("validate", fmt.Errorf("%s: %w", docID, domain.ErrDuplicate))
	}

	pipeline := fn.Then(
		fn.Then(
			fn.Then(o.acquireStage(), o.extractStage()),
			fn.Then(o.enrichStage(), o.chunkStage()),
		),
		fn.Then(o.embedStage(), o.storeStage()),
	)

	result := pipeline(ctx, Job{Ref: ref})
	if result.IsErr() {
		_, err := result.Unwrap()
		o.log.Error("ingest failed", "doc_id", docID, "stage", domain.StageOf(err), "error", err)
		return Receipt{}, err
	}

	receipt, _ := result.Unwrap()
	receipt.Elapsed = time.Since(start)
	o.log.Info("ingest complete",
		"doc_id", receipt.DocID,
		"chunks", receipt.Chunks,
		"records", receipt.Records,
		"degraded", receipt.Degraded,
		"elapsed", receipt.Elapsed,
	)
	return receipt, nil
}

// acquireStage resolves the locator and fetches raw bytes, with retry and a
// stage timeout. Rate limiting happens inside the Fetcher.
func (o *Orchestrator) acquireStage() fn.Stage[Job, AcquiredDoc] {
	stage := func(ctx context.Context, job Job) fn.Result[AcquiredDoc] {
		loc, err := o.deps.Resolver.Resolve(ctx, job.Ref)
		if err != nil {
			return fn.Err[AcquiredDoc](err)
		}
		raw, err := o.deps.Fetcher.Fetch(ctx, loc)
		if err != nil {
			return fn.Err[AcquiredDoc](err)
		}
		return fn.Ok(AcquiredDoc{Ref: job.Ref, Loc: loc, Raw: raw})
	}
	return tagged("acquire", fn.RetryStage(o.deps.Retry, fn.TimeoutStage(acquireTimeout, fn.TracedStage("ingest.acquire", stage))))
}

// extractStage converts raw bytes to page-spanned text. Local computation;
// failures are permanent.
func (o *Orchestrator) extractStage() fn.Stage[AcquiredDoc, ExtractedDoc] {
	stage := func(_ context.Context, doc AcquiredDoc) fn.Result[ExtractedDoc] {
		text, err := o.deps.Extract(doc.Raw.Data)
		if err != nil {
			return fn.Err[ExtractedDoc](err)
		}
		return fn.Ok(ExtractedDoc{AcquiredDoc: doc, Text: text})
	}
	return tagged("extract", fn.TracedStage("ingest.extract", stage))
}

// enrichStage extracts table regions through the vision boundary. Persistent
// failure degrades to zero records instead of failing the document.
func (o *Orchestrator) enrichStage() fn.Stage[ExtractedDoc, EnrichedDoc] {
	visionCall := fn.RetryStage(o.deps.Retry, fn.TimeoutStage(visionTimeout,
		fn.TracedStage("ingest.vision", func(ctx context.Context, doc ExtractedDoc) fn.Result[[]domain.StructuredRecord] {
			return fn.FromPair(o.deps.Regions.Regions(ctx, doc.Ref.DocID(), doc.Raw.ContentType, doc.Raw.Data))
		})))

	return func(ctx context.Context, doc ExtractedDoc) fn.Result[EnrichedDoc] {
		if o.deps.Regions == nil {
			return fn.Ok(EnrichedDoc{ExtractedDoc: doc})
		}
		records, err := visionCall(ctx, doc).Unwrap()
		if err != nil {
			o.log.Warn("region extraction degraded, continuing without structured records",
				"doc_id", doc.Ref.DocID(), "error", err)
			return fn.Ok(EnrichedDoc{ExtractedDoc: doc, Degraded: true})
		}
		return fn.Ok(EnrichedDoc{ExtractedDoc: doc, Records: records})
	}
}

// chunkStage splits the text into section-aligned chunks.
func (o *Orchestrator) chunkStage() fn.Stage[EnrichedDoc, ChunkedDoc] {
	stage := func(_ context.Context, doc EnrichedDoc) fn.Result[ChunkedDoc] {
		chunks := ChunkSections(doc.Ref.DocID(), doc.Text.Text, o.deps.Markers, o.deps.Chunker, doc.Text.PageFor)
		if len(chunks) == 0 {
			return fn.Err[ChunkedDoc](fmt.Errorf("no chunks produced: %w", domain.ErrExtraction))
		}
		return fn.Ok(ChunkedDoc{EnrichedDoc: doc, Chunks: chunks})
	}
	return tagged("chunk", fn.TracedStage("ingest.chunk", stage))
}

// embedStage generates one vector per chunk in EmbedBatchSize batches.
func (o *Orchestrator) embedStage() fn.Stage[ChunkedDoc, EmbeddedDoc] {
	stage := func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		embeddings := make([][]float32, len(doc.Chunks))
		for i := 0; i < len(doc.Chunks); i += EmbedBatchSize {
			end := min(i+EmbedBatchSize, len(doc.Chunks))
			texts := make([]string, end-i)
			for j, c := range doc.Chunks[i:end] {
				texts[j] = c.Text
			}
			vecs, err := o.deps.Embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fn.Err[EmbeddedDoc](fmt.Errorf("%w: batch %d-%d: %w", domain.ErrEmbedding, i, end, err))
			}
			copy(embeddings[i:end], vecs)
		}
		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Embeddings: embeddings})
	}
	return tagged("embed", fn.RetryStage(o.deps.Retry, fn.TimeoutStage(embedTimeout, fn.TracedStage("ingest.embed", stage))))
}

// storeStage runs the dual write and builds the receipt.
func (o *Orchestrator) storeStage() fn.Stage[EmbeddedDoc, Receipt] {
	stage := func(ctx context.Context, doc EmbeddedDoc) fn.Result[Receipt] {
		if err := o.writer.Write(ctx, doc); err != nil {
			return fn.Err[Receipt](err)
		}
		return fn.Ok(Receipt{
			DocID:    doc.Ref.DocID(),
			Chunks:   len(doc.Chunks),
			Records:  len(doc.Records),
			Degraded: doc.Degraded,
		})
	}
	return tagged("store", fn.TimeoutStage(writeTimeout, fn.TracedStage("ingest.store", stage)))
}

// tagged wraps a stage so its failures carry the stage name.
func tagged[In, Out any](name string, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		result := stage(ctx, in)
		if result.IsErr() {
			_, err := result.Unwrap()
			var se *domain.StageError
			if !errors.As(err, &se) {
				err = domain.NewStageError(name, err)
			}
			return fn.Err[Out](err)
		}
		return result
	}
}
