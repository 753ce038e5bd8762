package ingest

import (
	"strings"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
)

const (
	// DefaultChunkTokens is the target chunk size in estimated tokens.
	DefaultChunkTokens = 800
	// DefaultOverlapTokens is the shared suffix/prefix between adjacent chunks.
	DefaultOverlapTokens = 100
	// charsPerToken is the average-characters-per-token estimate.
	charsPerToken = 4
)

// DefaultSectionMarkers are the standard annual-report section headings used
// to partition filing text before windowing.
var DefaultSectionMarkers = []string{
	"Item 1.", "Item 1A.", "Item 1B.", "Item 2.", "Item 3.", "Item 4.",
	"Item 5.", "Item 6.", "Item 7.", "Item 7A.", "Item 8.", "Item 9.",
	"Item 9A.", "Item 10.", "Item 11.", "Item 12.", "Item 13.", "Item 14.",
	"Item 15.",
}

// frontMatterLabel names the implicit section before the first matched marker.
const frontMatterLabel = "Front Matter"

// ChunkerOpts sizes the sliding window in characters.
type ChunkerOpts struct {
	ChunkChars   int
	OverlapChars int
}

// DefaultChunkerOpts derives character sizes from the token targets.
func DefaultChunkerOpts() ChunkerOpts {
	return ChunkerOpts{
		ChunkChars:   DefaultChunkTokens * charsPerToken,
		OverlapChars: DefaultOverlapTokens * charsPerToken,
	}
}

type section struct {
	label string
	start int // rune offset, inclusive
	end   int // rune offset, exclusive
}

// ChunkSections splits text into section-aligned, overlapping chunks covering
// every character with no gaps. markers are literal heading strings; each
// partitions the text at its first occurrence, unmatched markers are skipped.
// pageFor maps a rune offset to a page number; nil leaves pages at zero.
func ChunkSections(docID, text string, markers []string, opts ChunkerOpts, pageFor func(int) int) []domain.Chunk {
	if text == "" {
		return nil
	}
	if opts.ChunkChars <= 0 {
		opts = DefaultChunkerOpts()
	}
	if opts.OverlapChars < 0 {
		opts.OverlapChars = 0
	}
	if opts.OverlapChars >= opts.ChunkChars {
		opts.OverlapChars = opts.ChunkChars / 2
	}

	runes := []rune(text)
	sections := partition(text, runes, markers)

	var chunks []domain.Chunk
	ordinal := 0
	for _, sec := range sections {
		for _, w := range windows(sec.end-sec.start, opts) {
			start := sec.start + w.start
			end := sec.start + w.end
			c := domain.Chunk{
				DocID:     docID,
				Ordinal:   ordinal,
				Section:   sec.label,
				Text:      string(runes[start:end]),
				StartChar: start,
				EndChar:   end,
			}
			if pageFor != nil {
				c.Page = pageFor(start)
			}
			chunks = append(chunks, c)
			ordinal++
		}
	}
	return chunks
}

// partition splits the text at each marker's first occurrence. Boundaries out
// of order with an earlier match would produce a zero-or-negative section and
// are dropped, keeping sections strictly increasing.
func partition(text string, runes []rune, markers []string) []section {
	type boundary struct {
		label string
		pos   int
	}
	var bounds []boundary
	for _, m := range markers {
		if m == "" {
			continue
		}
		if byteOff := strings.Index(text, m); byteOff >= 0 {
			bounds = append(bounds, boundary{label: m, pos: len([]rune(text[:byteOff]))})
		}
	}
	// Sort by position; markers list order only breaks ties.
	for i := 1; i < len(bounds); i++ {
		for j := i; j > 0 && bounds[j].pos < bounds[j-1].pos; j-- {
			bounds[j], bounds[j-1] = bounds[j-1], bounds[j]
		}
	}

	var sections []section
	prev := 0
	label := frontMatterLabel
	for _, b := range bounds {
		if b.pos <= prev && !(b.pos == 0 && prev == 0) {
			continue
		}
		if b.pos > prev {
			sections = append(sections, section{label: label, start: prev, end: b.pos})
		}
		prev = b.pos
		label = strings.TrimSpace(b.label)
	}
	if prev < len(runes) {
		sections = append(sections, section{label: label, start: prev, end: len(runes)})
	}
	return sections
}

type window struct{ start, end int }

// windows slides a ChunkChars window across a section of the given length,
// advancing by ChunkChars-OverlapChars. A section within the target size, or
// shorter than the overlap, yields a single window.
func windows(length int, opts ChunkerOpts) []window {
	if length <= 0 {
		return nil
	}
	estTokens := length / charsPerToken
	targetTokens := opts.ChunkChars / charsPerToken
	if estTokens <= targetTokens || length <= opts.OverlapChars {
		return []window{{0, length}}
	}
	step := opts.ChunkChars - opts.OverlapChars
	var out []window
	for start := 0; ; start += step {
		end := start + opts.ChunkChars
		if end >= length {
			out = append(out, window{start, length})
			return out
		}
		out = append(out, window{start, end})
	}
}
