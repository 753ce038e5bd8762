package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
)

type fakeGen struct {
	out string
	err error
}

func (f *fakeGen) Generate(context.Context, string) (string, error) { return f.out, f.err }
func (f *fakeGen) GenerateWithDoc(context.Context, string, string, []byte) (string, error) {
	return f.out, f.err
}

const sampleRegions = `[
  {"caption": "Revenue by segment", "page": 42,
   "columns": ["Segment", "FY2023", "FY2022"],
   "rows": [["iPhone", "200583", "205489"], ["Services", "85200", "78129"]],
   "confidence": 0.92},
  {"caption": "malformed row widths", "page": 3,
   "columns": ["A", "B"],
   "rows": [["only one cell"]],
   "confidence": 0.8},
  {"caption": "no rows", "page": 4, "columns": ["A"], "rows": [], "confidence": 0.5}
]`

func TestRegionsParsesValid(t *testing.T) {
	e := New(&fakeGen{out: sampleRegions}, nil)
	records, err := e.Regions(context.Background(), "AAPL:10-K:FY2023", "application/pdf", []byte("pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 valid region, got %d", len(records))
	}
	r := records[0]
	if r.DocID != "AAPL:10-K:FY2023" || r.Page != 42 || r.Caption != "Revenue by segment" {
		t.Errorf("unexpected record %+v", r)
	}
	if len(r.Rows) != 2 || r.Rows[1][0] != "Services" {
		t.Errorf("rows not preserved: %v", r.Rows)
	}
	if r.Confidence != 0.92 {
		t.Errorf("confidence %v", r.Confidence)
	}
}

func TestRegionsFencedOutput(t *testing.T) {
	fenced := "```json\n" + sampleRegions + "\n```"
	e := New(&fakeGen{out: fenced}, nil)
	records, err := e.Regions(context.Background(), "D", "application/pdf", nil)
	if err != nil || len(records) != 1 {
		t.Fatalf("fenced output should parse: %v %d", err, len(records))
	}
}

func TestRegionsEmptyArray(t *testing.T) {
	e := New(&fakeGen{out: "[]"}, nil)
	records, err := e.Regions(context.Background(), "D", "application/pdf", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("expected zero records, got %d", len(records))
	}
}

func TestRegionsUndecodable(t *testing.T) {
	e := New(&fakeGen{out: "I could not find any tables, sorry!"}, nil)
	_, err := e.Regions(context.Background(), "D", "application/pdf", nil)
	if !errors.Is(err, domain.ErrRegionExtraction) {
		t.Errorf("expected degraded sentinel, got %v", err)
	}
}

func TestRegionsModelFailure(t *testing.T) {
	e := New(&fakeGen{err: errors.New("upstream 500")}, nil)
	_, err := e.Regions(context.Background(), "D", "application/pdf", nil)
	if !errors.Is(err, domain.ErrRegionExtraction) {
		t.Errorf("expected degraded sentinel, got %v", err)
	}
}

func TestConfidenceClamped(t *testing.T) {
	out := `[{"caption":"c","page":1,"columns":["A"],"rows":[["x"]],"confidence":3.5}]`
	records, err := parseRegions("D", out)
	if err != nil {
		t.Fatal(err)
	}
	if records[0].Confidence != 1 {
		t.Errorf("confidence should clamp to 1, got %v", records[0].Confidence)
	}
}
