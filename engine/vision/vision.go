// Package vision extracts tabular regions from filing pages through the
// vision-capable model boundary. Its output is optional enrichment: the
// ingestion pipeline degrades to zero structured records when extraction
// fails persistently.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/pkg/llm"
)

const regionPrompt = `Extract every financial table from this document.
Return ONLY a JSON array. Each element:
{"caption": string, "page": integer (1-based), "columns": [string], "rows": [[string]], "confidence": number 0..1}
Use the table's title or nearest heading as the caption. Preserve cell text
verbatim. Return [] if the document contains no tables.`

// maxRegionsPerDoc caps vision output; cost is proportional to region count.
const maxRegionsPerDoc = 200

// Extractor converts document pages into structured table records.
type Extractor struct {
	gen llm.DocGenerator
	log *slog.Logger
}

// New creates an Extractor over the given model boundary.
func New(gen llm.DocGenerator, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{gen: gen, log: logger}
}

// Regions runs region extraction for one document. The raw bytes travel to
// the model as an inline blob with the extraction prompt.
func (e *Extractor) Regions(ctx context.Context, docID, mimeType string, data []byte) ([]domain.StructuredRecord, error) {
	out, err := e.gen.GenerateWithDoc(ctx, regionPrompt, mimeType, data)
	if err != nil {
		return nil, fmt.Errorf("vision: %w: %w", domain.ErrRegionExtraction, err)
	}
	records, err := parseRegions(docID, out)
	if err != nil {
		return nil, fmt.Errorf("vision: %w: %w", domain.ErrRegionExtraction, err)
	}
	e.log.Info("vision: regions extracted", "doc_id", docID, "regions", len(records))
	return records, nil
}

type regionJSON struct {
	Caption    string     `json:"caption"`
	Page       int        `json:"page"`
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
	Confidence float64    `json:"confidence"`
}

// parseRegions decodes model output into records, dropping malformed regions
// rather than failing the batch. A completely undecodable payload is an error.
func parseRegions(docID, raw string) ([]domain.StructuredRecord, error) {
	var regions []regionJSON
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &regions); err != nil {
		return nil, fmt.Errorf("decode regions: %w", err)
	}

	records := make([]domain.StructuredRecord, 0, len(regions))
	for _, r := range regions {
		if len(records) >= maxRegionsPerDoc {
			break
		}
		if len(r.Columns) == 0 || len(r.Rows) == 0 {
			continue
		}
		rows := make([][]string, 0, len(r.Rows))
		for _, row := range r.Rows {
			if len(row) == len(r.Columns) {
				rows = append(rows, row)
			}
		}
		if len(rows) == 0 {
			continue
		}
		if r.Page < 1 {
			r.Page = 1
		}
		records = append(records, domain.StructuredRecord{
			DocID:      docID,
			Page:       r.Page,
			Caption:    r.Caption,
			Columns:    r.Columns,
			Rows:       rows,
			Confidence: clamp01(r.Confidence),
		})
	}
	return records, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
