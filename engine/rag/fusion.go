package rag

import (
	"sort"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/engine/semantic"
)

// rrfK is the rank-fusion constant. Larger values flatten the contribution
// of rank position; 60 is the conventional default.
const rrfK = 60

// fuseRRF combines the lexical and vector rankings by reciprocal rank
// fusion: a chunk at 0-indexed rank r in a list contributes 1/(rrfK+r+1),
// contributions sum across lists. Only rank position matters, so the two
// score scales never need normalizing against each other. Ties break by
// lexical rank (absent counts as last), then chunk key, so the fused order
// is fully deterministic.
func fuseRRF(lexical []RankedChunk, vector []semantic.SearchResult) []RankedChunk {
	type fused struct {
		chunk   domain.Chunk
		score   float64
		lexRank int
	}
	byKey := make(map[string]*fused, len(lexical)+len(vector))

	for r, rc := range lexical {
		byKey[rc.Chunk.Key()] = &fused{
			chunk:   rc.Chunk,
			score:   1.0 / float64(rrfK+r+1),
			lexRank: r,
		}
	}
	for r, hit := range vector {
		contribution := 1.0 / float64(rrfK+r+1)
		if f, ok := byKey[hit.Key()]; ok {
			f.score += contribution
			continue
		}
		byKey[hit.Key()] = &fused{
			chunk: domain.Chunk{
				DocID:   hit.DocID,
				Ordinal: hit.Ordinal,
				Section: hit.Section,
				Text:    hit.Text,
				Page:    hit.Page,
			},
			score:   contribution,
			lexRank: len(lexical), // absent from lexical sorts after present
		}
	}

	out := make([]*fused, 0, len(byKey))
	for _, f := range byKey {
		out = append(out, f)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].score != out[b].score {
			return out[a].score > out[b].score
		}
		if out[a].lexRank != out[b].lexRank {
			return out[a].lexRank < out[b].lexRank
		}
		return out[a].chunk.Key() < out[b].chunk.Key()
	})

	ranked := make([]RankedChunk, len(out))
	for i, f := range out {
		ranked[i] = RankedChunk{Chunk: f.chunk, Score: f.score}
	}
	return ranked
}
