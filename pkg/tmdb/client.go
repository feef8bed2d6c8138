// Package tmdb provides a client for The Movie Database API v3.
//
// Opaque endpoints (trending, lists, discover, collections) return the raw
// decoded document so cache layers can store upstream payloads verbatim;
// typed endpoints decode only the fields the enrichment pipeline consumes.
package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/reybeld94/mediarr/pkg/fetch"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// configCacheTTL bounds how long the /configuration and genre documents
// are reused before refetching.
const configCacheTTL = 24 * time.Hour

// Credentials selects the auth scheme: a v4 bearer token when set,
// otherwise the v3 api_key query parameter.
type Credentials struct {
	APIKey      string
	BearerToken string
}

// Client is a TMDB API client.
type Client struct {
	baseURL  string
	creds    Credentials
	language string
	region   string
	fetcher  *fetch.Client

	mu           sync.Mutex
	imageBase    string
	imageBaseExp time.Time
	genres       map[string]map[int64]string
	genresExp    time.Time
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL    string
	language   string
	region     string
	httpClient *http.Client
	limiter    *fetch.Limiter
	stats      *fetch.Stats
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) { c.baseURL = u }
}

// WithLanguage sets the language parameter sent on every request.
func WithLanguage(lang string) Option {
	return func(c *clientConfig) { c.language = lang }
}

// WithRegion sets the default region for searches and release filtering.
func WithRegion(region string) Option {
	return func(c *clientConfig) { c.region = region }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithLimiter attaches a shared token-bucket limiter. All enrichment
// workers share one limiter so the aggregate request rate stays bounded.
func WithLimiter(l *fetch.Limiter) Option {
	return func(c *clientConfig) { c.limiter = l }
}

// WithStats attaches a per-run request recorder.
func WithStats(s *fetch.Stats) Option {
	return func(c *clientConfig) { c.stats = s }
}

// NewClient creates a TMDB client.
func NewClient(creds Credentials, opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL:    DefaultBaseURL,
		language:   "en-US",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fetchOpts := []fetch.Option{fetch.WithHTTPClient(cfg.httpClient)}
	if cfg.limiter != nil {
		fetchOpts = append(fetchOpts, fetch.WithLimiter(cfg.limiter))
	}
	if cfg.stats != nil {
		fetchOpts = append(fetchOpts, fetch.WithStats(cfg.stats))
	}

	return &Client{
		baseURL:  cfg.baseURL,
		creds:    creds,
		language: cfg.language,
		region:   cfg.region,
		fetcher:  fetch.New("tmdb", fetchOpts...),
	}
}

// SetStats swaps the per-run request recorder.
func (c *Client) SetStats(s *fetch.Stats) {
	c.fetcher.SetStats(s)
}

// Region returns the configured default region.
func (c *Client) Region() string {
	return c.region
}

// getRaw fetches an API path and returns the raw response bytes.
func (c *Client) getRaw(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if q == nil {
		q = url.Values{}
	}
	if c.language != "" && q.Get("language") == "" {
		q.Set("language", c.language)
	}

	header := http.Header{}
	if c.creds.BearerToken != "" {
		header.Set("Authorization", "Bearer "+c.creds.BearerToken)
	} else if c.creds.APIKey != "" {
		q.Set("api_key", c.creds.APIKey)
	}

	u := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	body, err := c.fetcher.GetBytes(ctx, u, header)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return body, nil
}

// get fetches an API path and decodes the response into out.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	body, err := c.getRaw(ctx, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: %w", path,
			fetch.Errorf(fetch.KindInvalid, 0, "decoding response: %v", err))
	}
	return nil
}

// getDocument fetches an API path as an opaque JSON document.
func (c *Client) getDocument(ctx context.Context, path string, q url.Values) (map[string]any, error) {
	var doc map[string]any
	if err := c.get(ctx, path, q, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SearchMovie searches for movies. year constrains the primary release
// year when positive; the client's region scopes release dates.
func (c *Client) SearchMovie(ctx context.Context, query string, year int) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("include_adult", "false")
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}
	if c.region != "" {
		q.Set("region", c.region)
	}
	var resp SearchResponse
	if err := c.get(ctx, "/search/movie", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchTV searches for TV shows. year constrains the first air date year
// when positive.
func (c *Client) SearchTV(ctx context.Context, query string, year int) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("include_adult", "false")
	if year > 0 {
		q.Set("first_air_date_year", strconv.Itoa(year))
	}
	var resp SearchResponse
	if err := c.get(ctx, "/search/tv", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MovieDetails fetches a hydrated movie document: the typed detail plus
// the raw document for storage.
func (c *Client) MovieDetails(ctx context.Context, id int64) (*Detail, map[string]any, error) {
	q := url.Values{}
	q.Set("append_to_response", "credits,videos,images,release_dates")
	return c.details(ctx, fmt.Sprintf("/movie/%d", id), q)
}

// TVDetails fetches a hydrated TV document.
func (c *Client) TVDetails(ctx context.Context, id int64) (*Detail, map[string]any, error) {
	q := url.Values{}
	q.Set("append_to_response", "credits,videos,images,content_ratings")
	return c.details(ctx, fmt.Sprintf("/tv/%d", id), q)
}

func (c *Client) details(ctx context.Context, path string, q url.Values) (*Detail, map[string]any, error) {
	body, err := c.getRaw(ctx, path, q)
	if err != nil {
		return nil, nil, err
	}
	var detail Detail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, nil, fmt.Errorf("GET %s: %w", path,
			fetch.Errorf(fetch.KindInvalid, 0, "decoding detail: %v", err))
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("GET %s: %w", path,
			fetch.Errorf(fetch.KindInvalid, 0, "decoding raw detail: %v", err))
	}
	return &detail, raw, nil
}

// Allowed segments for the trending and curated-list endpoints. Anything
// outside these sets is rejected before a request is made.
var (
	trendingKinds   = map[string]bool{"all": true, "movie": true, "tv": true}
	trendingWindows = map[string]bool{"day": true, "week": true}
	listKinds       = map[string]bool{"movie": true, "tv": true}
	listKeys        = map[string]map[string]bool{
		"movie": {"popular": true, "top_rated": true, "now_playing": true, "upcoming": true, "latest": true},
		"tv":    {"popular": true, "top_rated": true, "airing_today": true, "on_the_air": true, "latest": true},
	}
)

// Trending fetches the trending document for a kind ("all", "movie" or
// "tv") over a time window ("day" or "week").
func (c *Client) Trending(ctx context.Context, kind, window string, page int) (map[string]any, error) {
	if !trendingKinds[kind] {
		return nil, fetch.Errorf(fetch.KindInvalid, 0, "invalid trending kind %q", kind)
	}
	if !trendingWindows[window] {
		return nil, fetch.Errorf(fetch.KindInvalid, 0, "invalid trending window %q", window)
	}
	q := url.Values{}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	return c.getDocument(ctx, fmt.Sprintf("/trending/%s/%s", kind, window), q)
}

// List fetches a curated list document such as /movie/popular or
// /tv/top_rated. The list key must be one of TMDB's curated lists for
// the kind.
func (c *Client) List(ctx context.Context, kind, listKey string, page int) (map[string]any, error) {
	if !listKinds[kind] {
		return nil, fetch.Errorf(fetch.KindInvalid, 0, "invalid list kind %q", kind)
	}
	if !listKeys[kind][listKey] {
		return nil, fetch.Errorf(fetch.KindInvalid, 0, "invalid %s list %q", kind, listKey)
	}
	q := url.Values{}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	return c.getDocument(ctx, fmt.Sprintf("/%s/%s", kind, listKey), q)
}

// Collection fetches a franchise collection document by id. Collections
// are single-page.
func (c *Client) Collection(ctx context.Context, collectionID string) (map[string]any, error) {
	return c.getDocument(ctx, "/collection/"+url.PathEscape(collectionID), nil)
}

// Discover runs a validated discover query for the media type.
func (c *Client) Discover(ctx context.Context, mediaType string, filters map[string]any, page int) (map[string]any, error) {
	q, err := BuildDiscoverQuery(mediaType, filters, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	return c.getDocument(ctx, "/discover/"+mediaType, q)
}

// ImageBaseURL returns the secure image base URL (w500 size), cached for
// 24 hours.
func (c *Client) ImageBaseURL(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.imageBase != "" && time.Now().Before(c.imageBaseExp) {
		base := c.imageBase
		c.mu.Unlock()
		return base, nil
	}
	c.mu.Unlock()

	var doc struct {
		Images struct {
			SecureBaseURL string `json:"secure_base_url"`
		} `json:"images"`
	}
	if err := c.get(ctx, "/configuration", nil, &doc); err != nil {
		return "", err
	}
	base := doc.Images.SecureBaseURL
	if base == "" {
		base = "https://image.tmdb.org/t/p/"
	}
	base += "w500"

	c.mu.Lock()
	c.imageBase = base
	c.imageBaseExp = time.Now().Add(configCacheTTL)
	c.mu.Unlock()
	return base, nil
}

// GenreNames resolves genre ids to names for a media type, using the
// cached genre list.
func (c *Client) GenreNames(ctx context.Context, mediaType string, ids []int64) ([]string, error) {
	table, err := c.genreTable(ctx, mediaType)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := table[id]; ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (c *Client) genreTable(ctx context.Context, mediaType string) (map[int64]string, error) {
	c.mu.Lock()
	if c.genres != nil && time.Now().Before(c.genresExp) {
		if table, ok := c.genres[mediaType]; ok {
			c.mu.Unlock()
			return table, nil
		}
	}
	c.mu.Unlock()

	var doc struct {
		Genres []Genre `json:"genres"`
	}
	if err := c.get(ctx, "/genre/"+mediaType+"/list", nil, &doc); err != nil {
		return nil, err
	}
	table := make(map[int64]string, len(doc.Genres))
	for _, g := range doc.Genres {
		table[g.ID] = g.Name
	}

	c.mu.Lock()
	if c.genres == nil || time.Now().After(c.genresExp) {
		c.genres = make(map[string]map[int64]string)
		c.genresExp = time.Now().Add(configCacheTTL)
	}
	c.genres[mediaType] = table
	c.mu.Unlock()
	return table, nil
}
