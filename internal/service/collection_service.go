package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reybeld94/mediarr/internal/config"
	"github.com/reybeld94/mediarr/internal/models"
	"github.com/reybeld94/mediarr/internal/repository"
	"github.com/reybeld94/mediarr/pkg/fetch"
	"github.com/reybeld94/mediarr/pkg/tmdb"
	"github.com/reybeld94/mediarr/pkg/xtream"
)

// backgroundRefreshTimeout bounds one detached stale-while-revalidate
// refresh.
const backgroundRefreshTimeout = time.Minute

// augmentTopCast is how many billed cast names an augmented item carries.
const augmentTopCast = 10

// collectionClient is the subset of the TMDB client the collection engine
// uses.
type collectionClient interface {
	Trending(ctx context.Context, kind, window string, page int) (map[string]any, error)
	List(ctx context.Context, kind, listKey string, page int) (map[string]any, error)
	Collection(ctx context.Context, collectionID string) (map[string]any, error)
	Discover(ctx context.Context, mediaType string, filters map[string]any, page int) (map[string]any, error)
}

// CollectionItems is one served collection page.
type CollectionItems struct {
	Collection *models.Collection `json:"collection"`
	Page       int                `json:"page"`
	Payload    models.JSONMap     `json:"payload"`
	Cached     bool               `json:"cached"`
	Stale      bool               `json:"stale"`
}

// CollectionRefreshResult summarizes a refresh sweep.
type CollectionRefreshResult struct {
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

// CacheMetrics are cumulative collection cache counters.
type CacheMetrics struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Expired    int64 `json:"expired"`
	TmdbErrors int64 `json:"tmdb_errors"`
}

// CollectionService serves curated home rows from the page cache with
// stale-while-revalidate semantics. Payloads are augmented at refresh time:
// upstream items without a locally available, enriched counterpart are
// dropped, and the survivors carry playback URLs minted from the provider's
// playback account.
type CollectionService struct {
	collections repository.CollectionRepository
	caches      repository.CollectionCacheRepository
	tmdbConfigs repository.TmdbConfigRepository
	vodStreams  repository.VodStreamRepository
	series      repository.SeriesRepository
	providers   repository.ProviderRepository
	users       repository.ProviderUserRepository
	cfg         config.CollectionsConfig
	logger      *slog.Logger
	now         func() time.Time

	// clientFor builds the metadata client; replaced in tests.
	clientFor func(mc *models.TmdbConfig) collectionClient

	mu       sync.Mutex
	metrics  CacheMetrics
	inFlight map[string]bool
}

// NewCollectionService creates a new collection service.
func NewCollectionService(
	collections repository.CollectionRepository,
	caches repository.CollectionCacheRepository,
	tmdbConfigs repository.TmdbConfigRepository,
	vodStreams repository.VodStreamRepository,
	series repository.SeriesRepository,
	providers repository.ProviderRepository,
	users repository.ProviderUserRepository,
	cfg config.CollectionsConfig,
) *CollectionService {
	return &CollectionService{
		collections: collections,
		caches:      caches,
		tmdbConfigs: tmdbConfigs,
		vodStreams:  vodStreams,
		series:      series,
		providers:   providers,
		users:       users,
		cfg:         cfg,
		logger:      slog.Default(),
		now:         time.Now,
		clientFor: func(mc *models.TmdbConfig) collectionClient {
			return tmdb.NewClient(
				tmdb.Credentials{APIKey: mc.APIKey, BearerToken: mc.BearerToken},
				tmdb.WithLanguage(mc.Language),
				tmdb.WithRegion(mc.Region),
			)
		},
		inFlight: make(map[string]bool),
	}
}

// WithLogger sets the logger for the service.
func (s *CollectionService) WithLogger(logger *slog.Logger) *CollectionService {
	s.logger = logger
	return s
}

// Metrics returns a snapshot of the cache counters.
func (s *CollectionService) Metrics() CacheMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Resolve finds a collection by slug or row id.
func (s *CollectionService) Resolve(ctx context.Context, idOrSlug string) (*models.Collection, error) {
	collection, err := s.collections.GetBySlug(ctx, idOrSlug)
	if err != nil {
		return nil, fmt.Errorf("resolving collection: %w", err)
	}
	if collection != nil {
		return collection, nil
	}
	id, err := models.ParseULID(idOrSlug)
	if err != nil {
		return nil, nil
	}
	collection, err = s.collections.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolving collection: %w", err)
	}
	return collection, nil
}

// Items serves one collection page. Fresh cache hits return immediately;
// expired pages are served stale with a detached background refresh when
// stale-while-revalidate is on, otherwise refreshed inline.
func (s *CollectionService) Items(ctx context.Context, idOrSlug string, page int, swr bool) (*CollectionItems, error) {
	collection, err := s.Resolve(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if collection == nil {
		return nil, fetch.Errorf(fetch.KindNotFound, 0, "collection %q not found", idOrSlug)
	}
	if !collection.IsEnabled() {
		return nil, fetch.Errorf(fetch.KindInvalid, 0, "collection %q is disabled", collection.Slug)
	}
	if page < 1 {
		page = 1
	}

	cached, err := s.caches.GetPage(ctx, collection.ID, page)
	if err != nil {
		return nil, fmt.Errorf("loading cached page: %w", err)
	}

	now := s.now()
	if cached != nil && cached.Fresh(now) {
		s.bump(func(m *CacheMetrics) { m.Hits++ })
		return &CollectionItems{Collection: collection, Page: page, Payload: cached.Payload, Cached: true}, nil
	}

	if cached != nil && len(cached.Payload) > 0 && swr && s.cfg.StaleWhileRevalidate {
		s.bump(func(m *CacheMetrics) { m.Expired++ })
		s.refreshInBackground(collection, page)
		return &CollectionItems{Collection: collection, Page: page, Payload: cached.Payload, Cached: true, Stale: true}, nil
	}

	s.bump(func(m *CacheMetrics) { m.Misses++ })
	payload, err := s.refreshPage(ctx, collection, page)
	if err != nil {
		if !degradable(err) {
			return nil, err
		}
		// A page we have never cached must not turn an upstream outage
		// into a client-facing error. Serve an empty, uncached payload.
		s.logger.Warn("serving empty payload for failed refresh",
			"collection", collection.Slug,
			"page", page,
			"error", err,
		)
		return &CollectionItems{Collection: collection, Page: page, Payload: models.JSONMap{}}, nil
	}
	return &CollectionItems{Collection: collection, Page: page, Payload: payload}, nil
}

// degradable reports whether a refresh failure should degrade to an empty
// payload instead of failing the request. Upstream fetch failures and a
// disabled enrichment config degrade; local database errors do not.
func degradable(err error) bool {
	if errors.Is(err, ErrEnrichmentDisabled) {
		return true
	}
	return fetch.KindOf(err) != fetch.KindUnknown
}

func (s *CollectionService) bump(f func(*CacheMetrics)) {
	s.mu.Lock()
	f(&s.metrics)
	s.mu.Unlock()
}

// refreshInBackground launches one detached refresh for a page, dropping
// the request when a refresh for the same page is already running.
func (s *CollectionService) refreshInBackground(collection *models.Collection, page int) {
	key := fmt.Sprintf("%s/%d", collection.ID, page)
	s.mu.Lock()
	if s.inFlight[key] {
		s.mu.Unlock()
		return
	}
	s.inFlight[key] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, key)
			s.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundRefreshTimeout)
		defer cancel()
		if _, err := s.refreshPage(ctx, collection, page); err != nil {
			s.logger.Warn("background collection refresh failed",
				"collection", collection.Slug,
				"page", page,
				"error", err,
			)
		}
	}()
}

// refreshPage fetches, augments and stores one collection page. A failed
// fetch stores an expired placeholder so the page keeps serving whatever
// it last had.
func (s *CollectionService) refreshPage(ctx context.Context, collection *models.Collection, page int) (models.JSONMap, error) {
	mc, err := s.tmdbConfigs.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading metadata config: %w", err)
	}
	if mc == nil || !mc.IsEnabled() {
		return nil, ErrEnrichmentDisabled
	}
	client := s.clientFor(mc)

	doc, err := s.ResolvePayload(ctx, client, collection, page)
	if err != nil {
		s.bump(func(m *CacheMetrics) { m.TmdbErrors++ })
		if upsertErr := s.caches.UpsertPage(ctx, &models.CollectionCache{
			CollectionID: collection.ID,
			Page:         page,
			Payload:      models.JSONMap{},
			ExpiresAt:    nil,
		}); upsertErr != nil {
			s.logger.Error("storing placeholder page", "collection", collection.Slug, "error", upsertErr)
		}
		return nil, err
	}

	payload := models.JSONMap(doc)
	if err := s.Augment(ctx, collection.MediaType, payload); err != nil {
		return nil, err
	}

	expires := s.now().Add(collection.TTL())
	if err := s.caches.UpsertPage(ctx, &models.CollectionCache{
		CollectionID: collection.ID,
		Page:         page,
		Payload:      payload,
		ExpiresAt:    &expires,
	}); err != nil {
		return nil, fmt.Errorf("storing refreshed page: %w", err)
	}
	return payload, nil
}

// ResolvePayload dispatches a collection's source definition to the right
// upstream endpoint. Franchise collections are single-page.
func (s *CollectionService) ResolvePayload(ctx context.Context, client collectionClient, collection *models.Collection, page int) (map[string]any, error) {
	switch collection.SourceType {
	case models.CollectionSourceTrending:
		kind := filterString(collection.Filters, "kind", "all")
		window := filterString(collection.Filters, "time_window", "day")
		return client.Trending(ctx, kind, window, page)
	case models.CollectionSourceList:
		kind := filterString(collection.Filters, "kind", string(collection.MediaType))
		listKey := filterString(collection.Filters, "list_key", collection.SourceID)
		return client.List(ctx, kind, listKey, page)
	case models.CollectionSourceDiscover:
		var filters map[string]any
		if collection.Filters != nil {
			filters = map[string]any(collection.Filters)
		}
		return client.Discover(ctx, string(collection.MediaType), filters, page)
	case models.CollectionSourceCollection:
		if page != 1 {
			return nil, fetch.Errorf(fetch.KindInvalid, 0, "franchise collections have a single page")
		}
		return client.Collection(ctx, collection.SourceID)
	default:
		return nil, fetch.Errorf(fetch.KindInvalid, 0, "unknown collection source type %q", collection.SourceType)
	}
}

// filterString reads a string filter, falling back when absent or empty.
func filterString(filters models.JSONMap, key, fallback string) string {
	if v, ok := filters[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// RefreshExpired refreshes expired pages of every enabled collection.
// Per-page failures are isolated.
func (s *CollectionService) RefreshExpired(ctx context.Context) (*CollectionRefreshResult, error) {
	collections, err := s.collections.GetEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing enabled collections: %w", err)
	}

	result := &CollectionRefreshResult{}
	now := s.now()
	for _, collection := range collections {
		pages, err := s.caches.ListPages(ctx, collection.ID)
		if err != nil {
			return result, fmt.Errorf("listing cached pages: %w", err)
		}
		if len(pages) == 0 {
			pages = []int{1}
		}
		for _, page := range pages {
			cached, err := s.caches.GetPage(ctx, collection.ID, page)
			if err != nil {
				return result, fmt.Errorf("loading cached page: %w", err)
			}
			if cached != nil && cached.Fresh(now) {
				continue
			}
			if _, err := s.refreshPage(ctx, collection, page); err != nil {
				result.Failed++
				s.logger.Warn("collection refresh failed",
					"collection", collection.Slug,
					"page", page,
					"error", err,
				)
				continue
			}
			result.Refreshed++
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// resultListKeys are the document keys that carry item lists per endpoint.
var resultListKeys = []string{"results", "items", "parts"}

// Augment filters an upstream payload to locally available content. Items
// whose tmdb id resolves to an active, enriched catalog row survive and
// gain playback fields; everything else is dropped.
func (s *CollectionService) Augment(ctx context.Context, mediaType models.MediaType, payload models.JSONMap) error {
	for _, key := range resultListKeys {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			continue
		}

		kept := make([]any, 0, len(items))
		for _, entry := range items {
			item, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			tmdbID := numericID(item["id"])
			if tmdbID == 0 {
				continue
			}
			augmented, err := s.augmentItem(ctx, mediaType, tmdbID, item)
			if err != nil {
				return err
			}
			if augmented {
				kept = append(kept, item)
			}
		}
		payload[key] = kept
		payload["total_results"] = len(kept)
		return nil
	}
	return nil
}

// augmentItem joins one upstream item with the local catalog. Returns false
// when nothing local matches.
func (s *CollectionService) augmentItem(ctx context.Context, mediaType models.MediaType, tmdbID int64, item map[string]any) (bool, error) {
	var (
		localID  models.ULID
		provider models.ULID
		extID    int64
		ext      string
		meta     *models.Metadata
		kind     string
	)
	if mediaType == models.MediaTypeTV {
		rows, err := s.series.GetByTmdbID(ctx, tmdbID)
		if err != nil {
			return false, fmt.Errorf("joining local series: %w", err)
		}
		if len(rows) == 0 {
			return false, nil
		}
		row := rows[0]
		localID, provider, extID, meta, kind = row.ID, row.ProviderID, row.ExtID, &row.Metadata, "series"
	} else {
		rows, err := s.vodStreams.GetByTmdbID(ctx, tmdbID)
		if err != nil {
			return false, fmt.Errorf("joining local titles: %w", err)
		}
		if len(rows) == 0 {
			return false, nil
		}
		row := rows[0]
		localID, provider, extID, ext, meta, kind = row.ID, row.ProviderID, row.ExtID, row.ContainerExtension, &row.Metadata, "movie"
	}

	streamURL, err := s.streamURL(ctx, provider, kind, extID, ext)
	if err != nil {
		return false, err
	}

	item["local_id"] = localID.String()
	if streamURL != "" {
		item["stream_url"] = streamURL
	}
	if meta.TmdbVoteAverage > 0 {
		item["vote_average"] = meta.TmdbVoteAverage
	}
	if cast := topCastFromRaw(meta.TmdbRaw, augmentTopCast); len(cast) > 0 {
		item["cast"] = cast
	}
	if lang, ok := meta.TmdbRaw["original_language"].(string); ok && lang != "" {
		item["original_language"] = lang
	}
	return true, nil
}

// streamURL mints a playback URL using the provider's playback account,
// falling back to the provider's own credentials.
func (s *CollectionService) streamURL(ctx context.Context, providerID models.ULID, kind string, extID int64, ext string) (string, error) {
	provider, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return "", fmt.Errorf("loading provider: %w", err)
	}
	if provider == nil {
		return "", nil
	}
	username, password := provider.Username, provider.Password
	admin, err := s.users.GetAdmin(ctx, providerID)
	if err != nil {
		return "", fmt.Errorf("loading playback account: %w", err)
	}
	if admin != nil {
		username, password = admin.Username, admin.Password
	}
	return xtream.StreamURL(provider.URL, username, password, kind, extID, ext), nil
}

// numericID coerces a decoded JSON id to int64.
func numericID(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// topCastFromRaw extracts up to n billed cast names from a stored raw
// detail document.
func topCastFromRaw(raw models.JSONMap, n int) []string {
	credits, ok := raw["credits"].(map[string]any)
	if !ok {
		return nil
	}
	cast, ok := credits["cast"].([]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, n)
	for _, entry := range cast {
		if len(names) == n {
			break
		}
		member, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := member["name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}
