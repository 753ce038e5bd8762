package rag

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
)

// LexicalIndex is an in-memory TF-IDF index over the chunk corpus. Vectors
// are L2-normalized at build time so ranking reduces to a sparse dot product.
type LexicalIndex struct {
	chunks       []domain.Chunk
	vocabulary   map[string]int
	idf          []float64
	vectors      []map[int]float64 // one sparse vector per chunk
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewLexicalIndex builds the index from the corpus. An empty corpus yields an
// index whose Rank always returns nil.
func NewLexicalIndex(chunks []domain.Chunk) *LexicalIndex {
	idx := &LexicalIndex{
		chunks:       chunks,
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\d+(?:\.\d+)?`),
		stopwords:    defaultStopwords(),
	}
	if len(chunks) == 0 {
		return idx
	}

	df := make(map[string]int)
	tokenized := make([][]string, len(chunks))
	for i, c := range chunks {
		tokens := idx.tokenize(c.Text)
		tokenized[i] = tokens
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	// Stable term ordering keeps vector layouts reproducible across runs.
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	idx.idf = make([]float64, len(terms))
	n := float64(len(chunks))
	for i, term := range terms {
		idx.vocabulary[term] = i
		// Smoothed IDF: never zero, never divides by zero.
		idx.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	idx.vectors = make([]map[int]float64, len(chunks))
	for i, tokens := range tokenized {
		idx.vectors[i] = idx.vectorize(tokens)
	}
	return idx
}

// Len reports the corpus size.
func (x *LexicalIndex) Len() int { return len(x.chunks) }

// Rank scores every chunk against the question and returns the top k, best
// first. Chunks with zero overlap are omitted.
func (x *LexicalIndex) Rank(question string, k int) []RankedChunk {
	if len(x.chunks) == 0 || k <= 0 {
		return nil
	}
	qvec := x.vectorize(x.tokenize(question))
	if len(qvec) == 0 {
		return nil
	}

	scored := make([]RankedChunk, 0, len(x.chunks))
	for i, vec := range x.vectors {
		score := dotSparse(qvec, vec)
		if score > 0 {
			scored = append(scored, RankedChunk{Chunk: x.chunks[i], Score: score})
		}
	}
	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].Score != scored[b].Score {
			return scored[a].Score > scored[b].Score
		}
		return scored[a].Chunk.Key() < scored[b].Chunk.Key()
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// vectorize builds an L2-normalized sparse TF-IDF vector.
func (x *LexicalIndex) vectorize(tokens []string) map[int]float64 {
	tf := make(map[int]int)
	total := 0
	for _, tok := range tokens {
		if idx, ok := x.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return nil
	}
	vec := make(map[int]float64, len(tf))
	norm := 0.0
	for idx, count := range tf {
		v := float64(count) / float64(total) * x.idf[idx]
		vec[idx] = v
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for idx := range vec {
		vec[idx] /= norm
	}
	return vec
}

func (x *LexicalIndex) tokenize(text string) []string {
	raw := x.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := x.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func dotSparse(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	sum := 0.0
	for idx, v := range a {
		sum += v * b[idx]
	}
	return sum
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for",
		"to", "of", "in", "on", "at", "by", "with", "as", "is", "are",
		"was", "were", "be", "been", "being", "it", "this", "that",
		"these", "those", "from", "up", "down", "over", "under", "than",
		"so", "such", "into", "about", "between", "through", "during",
		"before", "after", "above", "below", "out", "off", "own", "same",
		"too", "very", "can", "will", "just", "should", "now", "what",
		"which", "who", "whom", "when", "where", "why", "how", "did",
		"does", "do", "company", "companys",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
