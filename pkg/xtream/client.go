// Package xtream provides a client for Xtream Codes compatible panels.
//
// Panel responses are weakly typed: numeric fields arrive as either JSON
// numbers or strings depending on the panel software, so list types use
// the Flex* wrappers. A panel that answers a list action with a non-array
// body (typically an auth error object) surfaces as an invalid outcome.
package xtream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/reybeld94/mediarr/internal/version"
	"github.com/reybeld94/mediarr/pkg/fetch"
)

// DefaultTimeout is generous: large panels take minutes to emit full
// stream listings.
const DefaultTimeout = 2 * time.Minute

// API endpoint paths and actions.
const (
	pathPlayerAPI = "/player_api.php"
	pathLive      = "/live"
	pathMovie     = "/movie"
	pathSeries    = "/series"

	actionGetLiveCategories   = "get_live_categories"
	actionGetVODCategories    = "get_vod_categories"
	actionGetSeriesCategories = "get_series_categories"
	actionGetLiveStreams      = "get_live_streams"
	actionGetVODStreams       = "get_vod_streams"
	actionGetVODInfo          = "get_vod_info"
	actionGetSeries           = "get_series"
	actionGetSeriesInfo       = "get_series_info"
)

// Client is an Xtream Codes API client.
type Client struct {
	baseURL  string
	username string
	password string
	fetcher  *fetch.Client
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	pacer      *fetch.Pacer
	stats      *fetch.Stats
	userAgent  string
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithPacer spaces panel requests at a fixed interval. Panels ban
// aggressive clients, so catalog sync paths always set one.
func WithPacer(p *fetch.Pacer) ClientOption {
	return func(c *clientConfig) { c.pacer = p }
}

// WithStats attaches a per-run request recorder.
func WithStats(s *fetch.Stats) ClientOption {
	return func(c *clientConfig) { c.stats = s }
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *clientConfig) { c.userAgent = ua }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) { c.httpClient = &http.Client{Timeout: timeout} }
}

// NewClient creates a client for the given panel account.
func NewClient(baseURL, username, password string, opts ...ClientOption) *Client {
	cfg := &clientConfig{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  version.UserAgent(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fetchOpts := []fetch.Option{
		fetch.WithHTTPClient(cfg.httpClient),
		fetch.WithUserAgent(cfg.userAgent),
	}
	if cfg.pacer != nil {
		fetchOpts = append(fetchOpts, fetch.WithPacer(cfg.pacer))
	}
	if cfg.stats != nil {
		fetchOpts = append(fetchOpts, fetch.WithStats(cfg.stats))
	}

	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		fetcher:  fetch.New("xtream", fetchOpts...),
	}
}

// BaseURL returns the panel base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiURL builds the player_api.php URL for an action.
func (c *Client) apiURL(action string, params map[string]string) string {
	q := url.Values{}
	q.Set("username", c.username)
	q.Set("password", c.password)
	if action != "" {
		q.Set("action", action)
	}
	for k, v := range params {
		q.Set(k, v)
	}
	return c.baseURL + pathPlayerAPI + "?" + q.Encode()
}

// getList fetches an action expected to return a JSON array. Panels answer
// list actions with an error object when credentials or the action are
// wrong; that decodes as non-array and is reported as invalid.
func getList[T any](ctx context.Context, c *Client, action string, params map[string]string) ([]T, error) {
	body, err := c.fetcher.GetBytes(ctx, c.apiURL(action, params), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%s: %w", action,
			fetch.Errorf(fetch.KindInvalid, 0, "expected array response, got: %s", snippet(body)))
	}
	return items, nil
}

func snippet(b []byte) string {
	const max = 120
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

// GetAuthInfo retrieves authentication and server information. This is the
// cheapest call to verify credentials.
func (c *Client) GetAuthInfo(ctx context.Context) (*AuthInfo, error) {
	var info AuthInfo
	if err := c.fetcher.GetJSON(ctx, c.apiURL("", nil), nil, &info); err != nil {
		return nil, fmt.Errorf("auth info: %w", err)
	}
	return &info, nil
}

// GetLiveCategories retrieves all live stream categories.
func (c *Client) GetLiveCategories(ctx context.Context) ([]Category, error) {
	return getList[Category](ctx, c, actionGetLiveCategories, nil)
}

// GetVODCategories retrieves all video on demand categories.
func (c *Client) GetVODCategories(ctx context.Context) ([]Category, error) {
	return getList[Category](ctx, c, actionGetVODCategories, nil)
}

// GetSeriesCategories retrieves all series categories.
func (c *Client) GetSeriesCategories(ctx context.Context) ([]Category, error) {
	return getList[Category](ctx, c, actionGetSeriesCategories, nil)
}

// StreamsOptions contains options for listing streams.
type StreamsOptions struct {
	// CategoryID filters streams by category. Empty means all categories.
	CategoryID string
}

func (o *StreamsOptions) params() map[string]string {
	if o == nil || o.CategoryID == "" {
		return nil
	}
	return map[string]string{"category_id": o.CategoryID}
}

// GetLiveStreams retrieves live streams, optionally filtered by category.
func (c *Client) GetLiveStreams(ctx context.Context, opts *StreamsOptions) ([]Stream, error) {
	return getList[Stream](ctx, c, actionGetLiveStreams, opts.params())
}

// GetVODStreams retrieves VOD content, optionally filtered by category.
func (c *Client) GetVODStreams(ctx context.Context, opts *StreamsOptions) ([]VODStream, error) {
	return getList[VODStream](ctx, c, actionGetVODStreams, opts.params())
}

// GetSeries retrieves all series, optionally filtered by category.
func (c *Client) GetSeries(ctx context.Context, opts *StreamsOptions) ([]Series, error) {
	return getList[Series](ctx, c, actionGetSeries, opts.params())
}

// GetVODInfo retrieves detailed information about a VOD item.
func (c *Client) GetVODInfo(ctx context.Context, vodID int64) (*VODInfo, error) {
	var info VODInfo
	params := map[string]string{"vod_id": fmt.Sprintf("%d", vodID)}
	if err := c.fetcher.GetJSON(ctx, c.apiURL(actionGetVODInfo, params), nil, &info); err != nil {
		return nil, fmt.Errorf("vod info %d: %w", vodID, err)
	}
	return &info, nil
}

// GetSeriesInfo retrieves detailed information about a series including
// its seasons and episodes.
func (c *Client) GetSeriesInfo(ctx context.Context, seriesID int64) (*SeriesInfo, error) {
	var info SeriesInfo
	params := map[string]string{"series_id": fmt.Sprintf("%d", seriesID)}
	if err := c.fetcher.GetJSON(ctx, c.apiURL(actionGetSeriesInfo, params), nil, &info); err != nil {
		return nil, fmt.Errorf("series info %d: %w", seriesID, err)
	}
	return &info, nil
}

// LiveStreamURL returns the playback URL for a live stream.
// Common extensions: ts, m3u8.
func (c *Client) LiveStreamURL(streamID int64, extension string) string {
	if extension == "" {
		extension = "ts"
	}
	return fmt.Sprintf("%s%s/%s/%s/%d.%s", c.baseURL, pathLive, c.username, c.password, streamID, extension)
}

// VODStreamURL returns the playback URL for a VOD item. The extension
// should match the listing's container_extension.
func (c *Client) VODStreamURL(vodID int64, extension string) string {
	if extension == "" {
		extension = "mp4"
	}
	return fmt.Sprintf("%s%s/%s/%s/%d.%s", c.baseURL, pathMovie, c.username, c.password, vodID, extension)
}

// SeriesStreamURL returns the playback URL for a series episode.
func (c *Client) SeriesStreamURL(episodeID int64, extension string) string {
	if extension == "" {
		extension = "mkv"
	}
	return fmt.Sprintf("%s%s/%s/%s/%d.%s", c.baseURL, pathSeries, c.username, c.password, episodeID, extension)
}

// StreamURL mints a playback URL for arbitrary credentials without
// building a full client. Used when serving catalog views with a viewer's
// own panel account.
func StreamURL(baseURL, username, password string, kind string, id int64, extension string) string {
	base := strings.TrimSuffix(baseURL, "/")
	var path, ext string
	switch kind {
	case "live":
		path, ext = pathLive, "ts"
	case "series":
		path, ext = pathSeries, "mkv"
	default:
		path, ext = pathMovie, "mp4"
	}
	if extension != "" {
		ext = extension
	}
	return fmt.Sprintf("%s%s/%s/%s/%d.%s", base, path, username, password, id, ext)
}
