package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/engine/extract"
	"github.com/FilingLensAI/filinglens-mvp/engine/fetch"
	"github.com/FilingLensAI/filinglens-mvp/pkg/fn"
)

var testRef = domain.FilingRef{Entity: "AAPL", DocType: "10-K", Period: "FY2023"}

type fakeFetcher struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ fetch.Locator) (fetch.Raw, error) {
	f.calls++
	if f.err != nil {
		return fetch.Raw{}, f.err
	}
	return fetch.Raw{Data: f.data, ContentType: "application/pdf", RetrievedAt: time.Now()}, nil
}

type fakeRegions struct {
	records []domain.StructuredRecord
	err     error
	calls   int
}

func (f *fakeRegions) Regions(_ context.Context, _, _ string, _ []byte) ([]domain.StructuredRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = []float32{float32(len(t))}
	}
	return vecs, nil
}

// plainText treats the raw bytes as already-extracted text on one page.
func plainText(data []byte) (extract.Extracted, error) {
	text := string(data)
	return extract.Extracted{
		Text:    text,
		Pages:   []extract.PageSpan{{Number: 1, Start: 0, End: len([]rune(text))}},
		Quality: 1,
	}, nil
}

type testEnv struct {
	rel     *fakeRel
	vec     *fakeVec
	fetcher *fakeFetcher
	regions *fakeRegions
	embed   *fakeEmbedder
	orch    *Orchestrator
}

func newTestEnv(t *testing.T, text string) *testEnv {
	t.Helper()
	env := &testEnv{
		rel:     newFakeRel(),
		vec:     newFakeVec(),
		fetcher: &fakeFetcher{data: []byte(text)},
		regions: &fakeRegions{records: []domain.StructuredRecord{{Caption: "Revenue"}}},
		embed:   &fakeEmbedder{},
	}
	env.orch = NewOrchestrator(Deps{
		Resolver: fetch.StaticResolver{testRef.DocID(): {URL: "https://example.com/aapl-10k.pdf"}},
		Fetcher:  env.fetcher,
		Regions:  env.regions,
		Embedder: env.embed,
		Rel:      env.rel,
		Vec:      env.vec,
		Extract:  plainText,
		Retry:    fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
	})
	return env
}

func filingText() string {
	var b strings.Builder
	b.WriteString("Item 1. Business\n")
	for i := 0; i < 40; i++ {
		b.WriteString(fmt.Sprintf("The company operates segment %d across several markets. ", i))
	}
	b.WriteString("\nItem 7. Management's Discussion\n")
	for i := 0; i < 40; i++ {
		b.WriteString(fmt.Sprintf("Revenue in quarter %d grew against the prior period. ", i))
	}
	return b.String()
}

func TestIngestHappyPath(t *testing.T) {
	env := newTestEnv(t, filingText())

	receipt, err := env.orch.Ingest(context.Background(), testRef)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if receipt.DocID != "AAPL:10-K:FY2023" {
		t.Errorf("doc id = %q", receipt.DocID)
	}
	if receipt.Chunks == 0 {
		t.Fatal("no chunks in receipt")
	}
	if receipt.Records != 1 {
		t.Errorf("records = %d, want 1", receipt.Records)
	}
	if receipt.Degraded {
		t.Error("receipt marked degraded")
	}
	if got := env.rel.docs[receipt.DocID]; got != receipt.Chunks {
		t.Errorf("relational chunks = %d, want %d", got, receipt.Chunks)
	}
	if got := len(env.vec.points[receipt.DocID]); got != receipt.Chunks {
		t.Errorf("vector points = %d, want %d", got, receipt.Chunks)
	}
}

func TestIngestRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t, filingText())
	ctx := context.Background()

	if _, err := env.orch.Ingest(ctx, testRef); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	_, err := env.orch.Ingest(ctx, testRef)
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if got := domain.StageOf(err); got != "validate" {
		t.Errorf("stage = %q, want validate", got)
	}
	if env.fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, duplicate should not re-acquire", env.fetcher.calls)
	}
}

func TestIngestRejectsBadRef(t *testing.T) {
	env := newTestEnv(t, filingText())

	_, err := env.orch.Ingest(context.Background(), domain.FilingRef{Entity: "aapl; DROP", DocType: "10-K", Period: "FY2023"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if env.fetcher.calls != 0 {
		t.Error("invalid ref still reached acquisition")
	}
}

// Persistent vision failure degrades the document instead of failing it.
func TestIngestDegradedVision(t *testing.T) {
	env := newTestEnv(t, filingText())
	env.regions.err = errors.New("model overloaded")

	receipt, err := env.orch.Ingest(context.Background(), testRef)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !receipt.Degraded {
		t.Error("receipt not marked degraded")
	}
	if receipt.Records != 0 {
		t.Errorf("records = %d, want 0", receipt.Records)
	}
	if receipt.Chunks == 0 {
		t.Error("degraded ingest lost its chunks")
	}
	if env.regions.calls != 2 {
		t.Errorf("vision calls = %d, want 2 (one retry)", env.regions.calls)
	}
}

func TestIngestNotFoundIsPermanent(t *testing.T) {
	env := newTestEnv(t, filingText())
	env.fetcher.err = fmt.Errorf("GET: %w", domain.ErrNotFound)

	_, err := env.orch.Ingest(context.Background(), testRef)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got := domain.StageOf(err); got != "acquire" {
		t.Errorf("stage = %q, want acquire", got)
	}
	if env.fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, not-found should not retry", env.fetcher.calls)
	}
}

func TestIngestTransientAcquireRetries(t *testing.T) {
	env := newTestEnv(t, filingText())
	env.fetcher.err = fmt.Errorf("GET: %w", domain.ErrRateLimited)

	_, err := env.orch.Ingest(context.Background(), testRef)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if env.fetcher.calls != 2 {
		t.Errorf("fetch calls = %d, want 2", env.fetcher.calls)
	}
}

func TestIngestEmbedFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t, filingText())
	env.embed.err = errors.New("ollama unreachable")

	_, err := env.orch.Ingest(context.Background(), testRef)
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("err = %v, want ErrEmbedding", err)
	}
	if got := domain.StageOf(err); got != "embed" {
		t.Errorf("stage = %q, want embed", got)
	}
	if len(env.rel.docs) != 0 || len(env.vec.points) != 0 {
		t.Error("stores modified despite embed failure")
	}
}
