package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/engine/structured"
	"github.com/FilingLensAI/filinglens-mvp/pkg/llm"
)

func staticGen(response string) llm.Generator {
	return llm.GeneratorFunc(func(_ context.Context, _ string) (string, error) {
		return response, nil
	})
}

func strongChunks() []RankedChunk {
	return []RankedChunk{
		{Chunk: domain.Chunk{DocID: "AAPL:10-K:FY2023", Ordinal: 1, Section: "Item 7.", Page: 24, Text: "Services revenue grew 9 percent."}, Score: 0.032},
		{Chunk: domain.Chunk{DocID: "AAPL:10-K:FY2023", Ordinal: 5, Section: "Item 1A.", Page: 11, Text: "Supply concentration risk."}, Score: 0.016},
	}
}

func TestSynthesizeFromChunksCitations(t *testing.T) {
	s := NewSynthesizer(staticGen("Services revenue grew 9 percent [1], amid concentration risk [2]."))

	ans, err := s.FromChunks(context.Background(), "How did services revenue develop?", strongChunks())
	if err != nil {
		t.Fatalf("FromChunks: %v", err)
	}
	if len(ans.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(ans.Sources))
	}
	if ans.Sources[0].Ref != 1 || ans.Sources[0].Page != 24 || ans.Sources[0].Section != "Item 7." {
		t.Errorf("source[0] = %+v", ans.Sources[0])
	}
	if ans.Confidence != domain.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", ans.Confidence)
	}
	if ans.Class != domain.ClassSemantic {
		t.Errorf("class = %s", ans.Class)
	}
}

// Citation markers beyond the context block count are model hallucination
// and must be dropped, not mapped.
func TestSynthesizeIgnoresBogusCitations(t *testing.T) {
	s := NewSynthesizer(staticGen("Revenue grew [1]; see also [7] and [0]."))

	ans, err := s.FromChunks(context.Background(), "q?", strongChunks())
	if err != nil {
		t.Fatalf("FromChunks: %v", err)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].Ref != 1 {
		t.Errorf("sources = %+v, want just [1]", ans.Sources)
	}
}

func TestSynthesizeWeakTopScoreIsMedium(t *testing.T) {
	chunks := strongChunks()
	chunks[0].Score = 0.016 // appears in one ranking only
	s := NewSynthesizer(staticGen("Revenue grew [1]."))

	ans, err := s.FromChunks(context.Background(), "q?", chunks)
	if err != nil {
		t.Fatalf("FromChunks: %v", err)
	}
	if ans.Confidence != domain.ConfidenceMedium {
		t.Errorf("confidence = %s, want medium", ans.Confidence)
	}
}

func TestSynthesizeUncitedAnswerIsLow(t *testing.T) {
	s := NewSynthesizer(staticGen("Revenue probably grew."))

	ans, err := s.FromChunks(context.Background(), "q?", strongChunks())
	if err != nil {
		t.Fatalf("FromChunks: %v", err)
	}
	if ans.Confidence != domain.ConfidenceLow {
		t.Errorf("confidence = %s, want low", ans.Confidence)
	}
	if !strings.Contains(ans.Text, "indicative only") {
		t.Error("low-confidence answer missing disclaimer")
	}
}

func TestSynthesizeEmptyRetrieval(t *testing.T) {
	s := NewSynthesizer(staticGen("unused"))

	ans, err := s.FromChunks(context.Background(), "q?", nil)
	if err != nil {
		t.Fatalf("FromChunks: %v", err)
	}
	if ans.Confidence != domain.ConfidenceLow {
		t.Errorf("confidence = %s, want low", ans.Confidence)
	}
	if !strings.Contains(ans.Text, "indicative only") {
		t.Error("missing disclaimer")
	}
}

func TestSynthesizeFromRows(t *testing.T) {
	s := NewSynthesizer(staticGen("AAPL's 10-K for FY2023 spans 80 pages [1]."))
	rs := structured.ResultSet{Columns: []string{"entity", "pages"}, Rows: [][]string{{"AAPL", "80"}}}

	ans, err := s.FromRows(context.Background(), "How many pages?", rs)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	if ans.Confidence != domain.ConfidenceVeryHigh {
		t.Errorf("confidence = %s, want very_high", ans.Confidence)
	}
	if ans.Class != domain.ClassStructured {
		t.Errorf("class = %s", ans.Class)
	}
	if len(ans.Sources) != 1 {
		t.Errorf("sources = %d, want 1", len(ans.Sources))
	}
}

func TestSynthesizeFromEmptyRows(t *testing.T) {
	s := NewSynthesizer(staticGen("unused"))

	ans, err := s.FromRows(context.Background(), "q?", structured.ResultSet{})
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	if ans.Confidence != domain.ConfidenceLow {
		t.Errorf("confidence = %s, want low", ans.Confidence)
	}
}
