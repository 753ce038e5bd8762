// Package extract converts raw filing bytes into plain text with page
// boundaries. Offsets are rune-stable character positions in the full text,
// which the chunker uses for span accounting and page attribution.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
)

// PageSpan records where a page's text sits inside the full document text.
type PageSpan struct {
	Number int // 1-based page number
	Start  int // inclusive character offset
	End    int // exclusive character offset
}

// Extracted is the text-extraction result for one document.
type Extracted struct {
	Text    string
	Pages   []PageSpan
	Quality float64
}

// PageFor returns the page number containing character offset off, or the
// last page for offsets at or beyond the end of text.
func (e Extracted) PageFor(off int) int {
	for _, p := range e.Pages {
		if off >= p.Start && off < p.End {
			return p.Number
		}
	}
	if n := len(e.Pages); n > 0 {
		return e.Pages[n-1].Number
	}
	return 0
}

// qualityFloor is the minimum acceptable text quality. Below it the document
// counts as corrupt and the whole ingestion fails.
const qualityFloor = 0.3

// PDF extracts page-wise plain text from PDF bytes.
func PDF(data []byte) (Extracted, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Extracted{}, fmt.Errorf("extract: open pdf: %w: %w", domain.ErrExtraction, err)
	}

	var (
		b     strings.Builder
		pages []PageSpan
		off   int
	)
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page is tolerable; the quality floor
			// catches documents that are mostly unreadable.
			continue
		}
		text = normalize(text)
		if text == "" {
			continue
		}
		if off > 0 {
			b.WriteString("\n")
			off++
		}
		start := off
		b.WriteString(text)
		off += len([]rune(text))
		pages = append(pages, PageSpan{Number: i, Start: start, End: off})
	}

	out := Extracted{Text: b.String(), Pages: pages}
	out.Quality = Quality(out.Text)
	if len(out.Text) == 0 {
		return Extracted{}, fmt.Errorf("extract: no text recovered: %w", domain.ErrExtraction)
	}
	if out.Quality < qualityFloor {
		return Extracted{}, fmt.Errorf("extract: text quality %.2f below floor: %w", out.Quality, domain.ErrExtraction)
	}
	return out, nil
}

// Quality scores extracted text in [0,1] from printable-character ratio and
// word density. Garbled extractions score low on both.
func Quality(text string) float64 {
	if text == "" {
		return 0
	}
	var printable, letters, total int
	for _, r := range text {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			letters++
		}
	}
	printableRatio := float64(printable) / float64(total)

	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	var sane int
	for _, w := range words {
		if n := len([]rune(w)); n >= 1 && n <= 30 {
			sane++
		}
	}
	wordScore := float64(sane) / float64(len(words))
	letterRatio := float64(letters) / float64(total)

	return 0.4*printableRatio + 0.3*wordScore + 0.3*minf(letterRatio*2, 1)
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// normalize collapses the whitespace artifacts PDF text extraction produces.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	var b strings.Builder
	b.Grow(len(s))
	spaceRun := 0
	for _, r := range s {
		if r == ' ' || r == '\t' {
			spaceRun++
			if spaceRun > 1 {
				continue
			}
			r = ' '
		} else {
			spaceRun = 0
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
