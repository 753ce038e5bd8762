package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry()
	c := r.Counter("ingest_documents_total", "Documents ingested.")
	c.Inc()
	c.Add(2)
	if c.Value() != 3 {
		t.Errorf("counter = %d, want 3", c.Value())
	}

	g := r.Gauge("queue_depth", "")
	g.Set(5)
	g.Dec()
	if g.Value() != 4 {
		t.Errorf("gauge = %d, want 4", g.Value())
	}
}

func TestRegistryReturnsSameInstance(t *testing.T) {
	r := NewRegistry()
	a := r.Counter("hits_total", "", "path", "/api/ask")
	b := r.Counter("hits_total", "", "path", "/api/ask")
	if a != b {
		t.Fatal("same name and labels returned distinct counters")
	}
	other := r.Counter("hits_total", "", "path", "/api/ingest")
	if a == other {
		t.Fatal("distinct labels share a counter")
	}
}

func TestRenderFormat(t *testing.T) {
	r := NewRegistry()
	r.Counter("answers_total", "Answers produced.", "class", "structured").Inc()
	r.Counter("answers_total", "Answers produced.", "class", "semantic").Add(2)

	out := r.Render()
	for _, want := range []string{
		"# HELP answers_total Answers produced.",
		"# TYPE answers_total counter",
		`answers_total{class="semantic"} 2`,
		`answers_total{class="structured"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestHistogramCumulativeBuckets(t *testing.T) {
	r := NewRegistry()
	h := r.Histogram("stage_seconds", "", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(100) // beyond the last bound, counted only in +Inf

	out := r.Render()
	for _, want := range []string{
		`stage_seconds_bucket{le="0.1"} 1`,
		`stage_seconds_bucket{le="1"} 2`,
		`stage_seconds_bucket{le="10"} 2`,
		`stage_seconds_bucket{le="+Inf"} 3`,
		"stage_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.Counter("up", "").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "up 1") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
