package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/andybalholm/brotli"
	json "github.com/goccy/go-json"
)

// Defaults for the retry schedule.
const (
	DefaultMaxAttempts = 5

	initialBackoff     = 500 * time.Millisecond
	maxBackoff         = 10 * time.Second
	initialRateBackoff = 1 * time.Second
	maxRateBackoff     = 30 * time.Second
	maxJitter          = 1500 * time.Millisecond
)

// Client issues GET requests against one upstream origin with rate
// limiting, classified errors, and retry with backoff.
type Client struct {
	httpClient  *http.Client
	origin      string
	limiter     *Limiter
	pacer       *Pacer
	stats       *Stats
	logger      *slog.Logger
	maxAttempts int
	userAgent   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter attaches a shared token-bucket limiter.
func WithLimiter(l *Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithPacer attaches a next-slot pacer.
func WithPacer(p *Pacer) Option {
	return func(c *Client) { c.pacer = p }
}

// WithStats attaches a per-run stats recorder.
func WithStats(s *Stats) Option {
	return func(c *Client) { c.stats = s }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.logger = log }
}

// WithMaxAttempts overrides the retry budget.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the named origin. The origin is a metrics label
// ("tmdb", "xtream", "xmltv"), not a URL.
func New(origin string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		origin:      origin,
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetStats swaps the per-run stats recorder.
func (c *Client) SetStats(s *Stats) {
	c.stats = s
}

// GetJSON fetches the URL and decodes the response body into out.
// A body that fails to decode is classified as an invalid outcome.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	body, err := c.GetBytes(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindInvalid, Message: fmt.Sprintf("decoding response: %v", err), Err: err}
	}
	return nil
}

// GetBytes fetches the URL with the retry schedule and returns the
// decompressed response body.
func (c *Client) GetBytes(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	backoff := initialBackoff
	rateBackoff := initialRateBackoff

	var lastErr *Error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		c.stats.recordRequest()
		requestsTotal.WithLabelValues(c.origin).Inc()

		body, retryAfter, reqErr := c.doOnce(ctx, rawURL, header)
		if reqErr == nil {
			return body, nil
		}
		lastErr = reqErr

		if !reqErr.Kind.Retryable() || attempt == c.maxAttempts {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c.stats.recordRetry(reqErr.Kind)
		retriesTotal.WithLabelValues(c.origin, string(reqErr.Kind)).Inc()

		var delay time.Duration
		if reqErr.Kind == KindRateLimited {
			rateLimitedTotal.WithLabelValues(c.origin).Inc()
			delay = rateBackoff
			if retryAfter > 0 {
				delay = retryAfter
			}
			rateBackoff = minDuration(rateBackoff*2, maxRateBackoff)
		} else {
			delay = backoff
			backoff = minDuration(backoff*2, maxBackoff)
		}
		delay += time.Duration(rand.Float64() * float64(maxJitter))

		c.logger.Debug("retrying upstream request",
			slog.String("origin", c.origin),
			slog.String("kind", string(reqErr.Kind)),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// doOnce performs a single request. retryAfter is non-zero when the server
// supplied a parseable Retry-After on a 429.
func (c *Client) doOnce(ctx context.Context, rawURL string, header http.Header) ([]byte, time.Duration, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, &Error{Kind: KindInvalid, Message: fmt.Sprintf("building request: %v", err), Err: err}
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept-Encoding", "br, gzip, deflate")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := ClassifyErr(err)
		return nil, 0, &Error{Kind: kind, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	kind := ClassifyStatus(resp.StatusCode)
	if kind != KindOK {
		// Drain so the connection can be reused.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e := &Error{Kind: kind, StatusCode: resp.StatusCode, Message: string(snippet)}
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), e
	}

	reader, err := decompressedReader(resp)
	if err != nil {
		return nil, 0, &Error{Kind: KindInvalid, Message: fmt.Sprintf("opening response body: %v", err), Err: err}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		kind := ClassifyErr(err)
		return nil, 0, &Error{Kind: kind, Message: fmt.Sprintf("reading response body: %v", err), Err: err}
	}
	return body, 0, nil
}

// decompressedReader wraps the response body according to Content-Encoding.
// The transport handles gzip transparently unless Accept-Encoding was set
// explicitly, which we do to also accept brotli.
func decompressedReader(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
