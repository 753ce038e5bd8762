// Package fetch acquires raw filing documents from their source. Discovery
// (filing identity to source locator) is an external concern consumed through
// the Resolver interface; all acquisitions share one token-bucket limiter so
// the engine respects the source's request-rate policy globally.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
)

// Locator points at a source document plus whatever metadata discovery produced.
type Locator struct {
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Resolver turns a filing identity into a source locator.
type Resolver interface {
	Resolve(ctx context.Context, ref domain.FilingRef) (Locator, error)
}

// StaticResolver resolves from a fixed table keyed by DocID. Used in tests
// and small deployments where the filing index is loaded up front.
type StaticResolver map[string]Locator

func (r StaticResolver) Resolve(_ context.Context, ref domain.FilingRef) (Locator, error) {
	loc, ok := r[ref.DocID()]
	if !ok {
		return Locator{}, fmt.Errorf("resolve %s: %w", ref.DocID(), domain.ErrNotFound)
	}
	return loc, nil
}

// Raw is an acquired document before extraction.
type Raw struct {
	Data        []byte
	ContentType string
	RetrievedAt time.Time
}

const defaultMaxBytes = 100 << 20 // filings run large; cap in-memory fetch

// Acquirer fetches documents over HTTP behind a shared rate limiter.
type Acquirer struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxBytes  int64
}

// NewAcquirer creates an Acquirer. The limiter handle is shared across every
// in-flight acquisition; pass the same instance to all workers.
func NewAcquirer(client *http.Client, limiter *rate.Limiter, userAgent string) *Acquirer {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 5)
	}
	return &Acquirer{
		client:    client,
		limiter:   limiter,
		userAgent: userAgent,
		maxBytes:  defaultMaxBytes,
	}
}

// Fetch retrieves the document at loc, waiting for rate-limiter clearance
// first. HTTP failures are classified into the domain error taxonomy.
func (a *Acquirer) Fetch(ctx context.Context, loc Locator) (Raw, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return Raw{}, fmt.Errorf("fetch: limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.URL, nil)
	if err != nil {
		return Raw{}, fmt.Errorf("fetch: build request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return Raw{}, fmt.Errorf("fetch %s: %w: %w", loc.URL, domain.ErrAcquisition, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Raw{}, fmt.Errorf("fetch %s: %w", loc.URL, domain.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return Raw{}, fmt.Errorf("fetch %s: %w", loc.URL, domain.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return Raw{}, fmt.Errorf("fetch %s: status %d: %w", loc.URL, resp.StatusCode, domain.ErrAcquisition)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBytes+1))
	if err != nil {
		return Raw{}, fmt.Errorf("fetch %s: read body: %w: %w", loc.URL, domain.ErrAcquisition, err)
	}
	if int64(len(data)) > a.maxBytes {
		return Raw{}, fmt.Errorf("fetch %s: document exceeds %d bytes", loc.URL, a.maxBytes)
	}

	return Raw{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		RetrievedAt: time.Now().UTC(),
	}, nil
}

// Retryable reports whether a fetch error is transient. Not-found is final;
// rate limiting and transport errors are retried with backoff upstream.
func Retryable(err error) bool {
	return !errors.Is(err, domain.ErrNotFound)
}
