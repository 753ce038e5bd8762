package rag

import (
	"testing"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/engine/semantic"
)

func lexList(keys ...string) []RankedChunk {
	out := make([]RankedChunk, len(keys))
	for i, k := range keys {
		out[i] = RankedChunk{Chunk: chunkForKey(k), Score: float64(len(keys) - i)}
	}
	return out
}

func vecList(keys ...string) []semantic.SearchResult {
	out := make([]semantic.SearchResult, len(keys))
	for i, k := range keys {
		c := chunkForKey(k)
		out[i] = semantic.SearchResult{DocID: c.DocID, Ordinal: c.Ordinal, Text: c.Text, Score: float32(len(keys) - i)}
	}
	return out
}

var testKeys = map[string]domain.Chunk{
	"A": {DocID: "AAPL:10-K:FY2023", Ordinal: 0, Text: "alpha"},
	"B": {DocID: "AAPL:10-K:FY2023", Ordinal: 1, Text: "bravo"},
	"C": {DocID: "AAPL:10-K:FY2023", Ordinal: 2, Text: "charlie"},
	"D": {DocID: "AAPL:10-K:FY2023", Ordinal: 3, Text: "delta"},
}

func chunkForKey(k string) domain.Chunk { return testKeys[k] }

func fusedOrder(t *testing.T, fused []RankedChunk) []string {
	t.Helper()
	keyOf := map[string]string{}
	for name, c := range testKeys {
		keyOf[c.Key()] = name
	}
	out := make([]string, len(fused))
	for i, rc := range fused {
		out[i] = keyOf[rc.Chunk.Key()]
	}
	return out
}

// A appears at lexical rank 0 and vector rank 1, so its summed contribution
// beats C (lexical 2, vector 0). B and D each appear in one list only.
func TestFuseRRFOrdering(t *testing.T) {
	fused := fuseRRF(lexList("A", "B", "C"), vecList("C", "A", "D"))

	got := fusedOrder(t, fused)
	want := []string{"A", "C", "B", "D"}
	if len(got) != len(want) {
		t.Fatalf("fused %d chunks, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fused order = %v, want %v", got, want)
		}
	}
}

func TestFuseRRFScores(t *testing.T) {
	fused := fuseRRF(lexList("A"), vecList("A"))
	if len(fused) != 1 {
		t.Fatalf("fused %d chunks, want 1", len(fused))
	}
	want := 2.0 / float64(rrfK+1)
	if diff := fused[0].Score - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("score = %v, want %v", fused[0].Score, want)
	}
}

// B and D tie on score (same single-list rank); the lexical entry wins.
func TestFuseRRFTieBreakLexicalFirst(t *testing.T) {
	fused := fuseRRF(lexList("A", "B"), vecList("A", "D"))
	got := fusedOrder(t, fused)
	want := []string{"A", "B", "D"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fused order = %v, want %v", got, want)
		}
	}
}

// Chunks absent from the lexical list tie on both score and lexical rank;
// the chunk key decides.
func TestFuseRRFTieBreakByKey(t *testing.T) {
	a := fuseRRF(nil, vecList("D", "B"))
	b := fuseRRF(nil, vecList("D", "B"))
	for i := range a {
		if a[i].Chunk.Key() != b[i].Chunk.Key() {
			t.Fatal("fusion is not deterministic across runs")
		}
	}
}

func TestFuseRRFEmptyInputs(t *testing.T) {
	if got := fuseRRF(nil, nil); len(got) != 0 {
		t.Errorf("fused %d chunks from empty inputs", len(got))
	}
}
