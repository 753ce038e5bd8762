package rag

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/engine/structured"
	"github.com/FilingLensAI/filinglens-mvp/pkg/llm"
)

// strongScoreFloor separates high-confidence from medium-confidence semantic
// answers: a fused top score at or above this means both rankings agreed
// near the top.
const strongScoreFloor = 0.03

// lowConfidenceDisclaimer is appended to every low-confidence answer.
const lowConfidenceDisclaimer = "\n\nNote: the available filings contain little direct support for this answer; treat it as indicative only."

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// Synthesizer turns retrieval output into prose with citations and a
// confidence label. Confidence derives from source quality alone, never from
// the model's self-reported certainty.
type Synthesizer struct {
	gen llm.Generator
}

func NewSynthesizer(gen llm.Generator) *Synthesizer {
	return &Synthesizer{gen: gen}
}

// FromChunks answers from a fused chunk ranking. Each context block is
// numbered; the model cites blocks as [n] and the markers are mapped back to
// chunk locations.
func (s *Synthesizer) FromChunks(ctx context.Context, question string, chunks []RankedChunk) (Answer, error) {
	if len(chunks) == 0 {
		return Answer{
			Text:       "No relevant passages were found in the ingested filings." + lowConfidenceDisclaimer,
			Confidence: domain.ConfidenceLow,
			Class:      domain.ClassSemantic,
		}, nil
	}

	var b strings.Builder
	b.WriteString("Answer the question using only the numbered excerpts below. ")
	b.WriteString("Cite every factual claim with the excerpt number in square brackets, like [1]. ")
	b.WriteString("If the excerpts do not answer the question, say so.\n\n")
	for i, rc := range chunks {
		fmt.Fprintf(&b, "[%d] (%s, %s, p.%d) %s\n\n", i+1, rc.Chunk.DocID, rc.Chunk.Section, rc.Chunk.Page, rc.Chunk.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n", question)

	text, err := s.gen.Generate(ctx, b.String())
	if err != nil {
		return Answer{}, fmt.Errorf("synthesis: %w", err)
	}
	text = strings.TrimSpace(llm.StripFences(text))

	sources := citedSources(text, chunks)
	confidence := domain.ConfidenceMedium
	if chunks[0].Score >= strongScoreFloor {
		confidence = domain.ConfidenceHigh
	}
	if len(sources) == 0 {
		// Uncited prose over weak retrieval is not trustworthy.
		confidence = domain.ConfidenceLow
		text += lowConfidenceDisclaimer
	}

	return Answer{
		Text:       text,
		Sources:    sources,
		Confidence: confidence,
		Class:      domain.ClassSemantic,
	}, nil
}

// FromRows answers from structured query results. Rows come from the
// authoritative store, so a non-empty result is very high confidence.
func (s *Synthesizer) FromRows(ctx context.Context, question string, rs structured.ResultSet) (Answer, error) {
	if rs.Empty() {
		return Answer{
			Text:       "The structured records contain no rows matching the question." + lowConfidenceDisclaimer,
			Confidence: domain.ConfidenceLow,
			Class:      domain.ClassStructured,
		}, nil
	}

	var b strings.Builder
	b.WriteString("Answer the question from the query result below. ")
	b.WriteString("State figures exactly as given; cite the result as [1].\n\n")
	b.WriteString("[1] ")
	b.WriteString(strings.Join(rs.Columns, " | "))
	b.WriteByte('\n')
	for _, row := range rs.Rows {
		b.WriteString("    ")
		b.WriteString(strings.Join(row, " | "))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", question)

	text, err := s.gen.Generate(ctx, b.String())
	if err != nil {
		return Answer{}, fmt.Errorf("synthesis: %w", err)
	}

	return Answer{
		Text: strings.TrimSpace(llm.StripFences(text)),
		Sources: []Source{{
			Ref:    1,
			Detail: fmt.Sprintf("structured query result, %d row(s)", len(rs.Rows)),
		}},
		Confidence: domain.ConfidenceVeryHigh,
		Class:      domain.ClassStructured,
	}, nil
}

// citedSources extracts the distinct [n] markers that refer to a real
// context block and maps them to chunk locations, in marker order.
func citedSources(text string, chunks []RankedChunk) []Source {
	seen := make(map[int]bool)
	var refs []int
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > len(chunks) || seen[n] {
			continue
		}
		seen[n] = true
		refs = append(refs, n)
	}
	sort.Ints(refs)

	sources := make([]Source, 0, len(refs))
	for _, n := range refs {
		c := chunks[n-1].Chunk
		sources = append(sources, Source{
			Ref:     n,
			DocID:   c.DocID,
			Section: c.Section,
			Page:    c.Page,
		})
	}
	return sources
}
