// Package metrics is a small Prometheus-text-format registry built on the
// standard library. Counters, gauges and histograms, optional labels, and an
// HTTP handler for the /metrics endpoint.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DurationBuckets suit pipeline stages and request handlers, in seconds.
var DurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// Counter only goes up.
type Counter struct{ n atomic.Int64 }

func (c *Counter) Inc()         { c.n.Add(1) }
func (c *Counter) Add(d int64)  { c.n.Add(d) }
func (c *Counter) Value() int64 { return c.n.Load() }

// Gauge goes both ways.
type Gauge struct{ n atomic.Int64 }

func (g *Gauge) Set(v int64)  { g.n.Store(v) }
func (g *Gauge) Inc()         { g.n.Add(1) }
func (g *Gauge) Dec()         { g.n.Add(-1) }
func (g *Gauge) Value() int64 { return g.n.Load() }

// Histogram accumulates observations into fixed upper-bound buckets.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	hits   []uint64
	sum    float64
	count  uint64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.sum += v
	h.count++
	for i, bound := range h.bounds {
		if v <= bound {
			h.hits[i]++
			break
		}
	}
	h.mu.Unlock()
}

// ObserveSince records the seconds elapsed since start.
func (h *Histogram) ObserveSince(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// series is one metric line: base name plus a fixed label set.
type series struct {
	name   string
	labels string // rendered `{k="v",...}` or ""
	kind   string
	c      *Counter
	g      *Gauge
	h      *Histogram
}

// Registry holds named metrics and renders them in the Prometheus text
// exposition format.
type Registry struct {
	mu     sync.Mutex
	series map[string]*series
	help   map[string]string
	order  []string // base names in registration order
}

func NewRegistry() *Registry {
	return &Registry{
		series: make(map[string]*series),
		help:   make(map[string]string),
	}
}

// Counter returns the counter for name and label pairs, creating it on first
// use. Label pairs are alternating key, value.
func (r *Registry) Counter(name, help string, labels ...string) *Counter {
	s := r.lookup(name, "counter", help, labels)
	if s.c == nil {
		s.c = &Counter{}
	}
	return s.c
}

func (r *Registry) Gauge(name, help string, labels ...string) *Gauge {
	s := r.lookup(name, "gauge", help, labels)
	if s.g == nil {
		s.g = &Gauge{}
	}
	return s.g
}

func (r *Registry) Histogram(name, help string, bounds []float64, labels ...string) *Histogram {
	if bounds == nil {
		bounds = DurationBuckets
	}
	s := r.lookup(name, "histogram", help, labels)
	if s.h == nil {
		sorted := make([]float64, len(bounds))
		copy(sorted, bounds)
		sort.Float64s(sorted)
		s.h = &Histogram{bounds: sorted, hits: make([]uint64, len(sorted))}
	}
	return s.h
}

func (r *Registry) lookup(name, kind, help string, labels []string) *series {
	rendered := renderLabels(labels)
	key := name + rendered

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.series[key]; ok {
		return s
	}
	if _, known := r.help[name]; !known {
		r.order = append(r.order, name)
		r.help[name] = help
	}
	s := &series{name: name, labels: rendered, kind: kind}
	r.series[key] = s
	return s
}

func renderLabels(kvs []string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", kvs[i], kvs[i+1])
	}
	b.WriteByte('}')
	return b.String()
}

// Render produces the full exposition document.
func (r *Registry) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	byName := make(map[string][]*series, len(r.order))
	for _, s := range r.series {
		byName[s.name] = append(byName[s.name], s)
	}

	var b strings.Builder
	for _, name := range r.order {
		group := byName[name]
		sort.Slice(group, func(i, j int) bool { return group[i].labels < group[j].labels })

		if help := r.help[name]; help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", name, help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, group[0].kind)

		for _, s := range group {
			switch s.kind {
			case "counter":
				fmt.Fprintf(&b, "%s%s %d\n", s.name, s.labels, s.c.Value())
			case "gauge":
				fmt.Fprintf(&b, "%s%s %d\n", s.name, s.labels, s.g.Value())
			case "histogram":
				renderHistogram(&b, s)
			}
		}
	}
	return b.String()
}

func renderHistogram(b *strings.Builder, s *series) {
	s.h.mu.Lock()
	bounds := s.h.bounds
	hits := append([]uint64(nil), s.h.hits...)
	sum, count := s.h.sum, s.h.count
	s.h.mu.Unlock()

	// Bucket values are cumulative in the exposition format.
	inner := strings.TrimSuffix(strings.TrimPrefix(s.labels, "{"), "}")
	var cum uint64
	for i, bound := range bounds {
		cum += hits[i]
		fmt.Fprintf(b, "%s_bucket%s %d\n", s.name, joinLabels(inner, fmt.Sprintf(`le="%g"`, bound)), cum)
	}
	fmt.Fprintf(b, "%s_bucket%s %d\n", s.name, joinLabels(inner, `le="+Inf"`), count)
	fmt.Fprintf(b, "%s_sum%s %g\n", s.name, s.labels, sum)
	fmt.Fprintf(b, "%s_count%s %d\n", s.name, s.labels, count)
}

func joinLabels(inner, extra string) string {
	if inner == "" {
		return "{" + extra + "}"
	}
	return "{" + inner + "," + extra + "}"
}

// Handler serves the rendered registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(r.Render()))
	})
}

// ServeAsync exposes /metrics on its own port, in a goroutine.
func (r *Registry) ServeAsync(port int, errf func(error)) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil && errf != nil {
			errf(err)
		}
	}()
}
