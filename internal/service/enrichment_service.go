package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reybeld94/mediarr/internal/config"
	"github.com/reybeld94/mediarr/internal/models"
	"github.com/reybeld94/mediarr/internal/repository"
	"github.com/reybeld94/mediarr/pkg/fetch"
	"github.com/reybeld94/mediarr/pkg/tmdb"
)

// ErrEnrichmentDisabled is returned when no usable metadata credentials are
// configured. The scheduler treats it as a quiet skip.
var ErrEnrichmentDisabled = errors.New("metadata enrichment is not enabled")

// Candidate overfetch bounds: batches are filled from a larger eligible
// window because cooldowns thin the front of the queue.
const (
	candidateOverfetch   = 5
	candidateFetchCeil   = 1000
	failedBackoffMaxExp  = 8
)

// metadataClient is the subset of the TMDB client the enrichment run uses.
type metadataClient interface {
	SearchMovie(ctx context.Context, query string, year int) (*tmdb.SearchResponse, error)
	SearchTV(ctx context.Context, query string, year int) (*tmdb.SearchResponse, error)
	MovieDetails(ctx context.Context, id int64) (*tmdb.Detail, map[string]any, error)
	TVDetails(ctx context.Context, id int64) (*tmdb.Detail, map[string]any, error)
}

// EnrichmentResult summarizes one enrichment run.
type EnrichmentResult struct {
	Movies      int           `json:"movies"`
	Series      int           `json:"series"`
	Synced      int           `json:"synced"`
	Missing     int           `json:"missing"`
	Failed      int           `json:"failed"`
	Deduped     int           `json:"deduped"`
	Requests    int64         `json:"requests"`
	Retries     int64         `json:"retries"`
	RateLimited int64         `json:"rate_limited"`
	Duration    time.Duration `json:"duration"`
}

// Processed returns the number of items handled in the run.
func (r *EnrichmentResult) Processed() int {
	return r.Movies + r.Series
}

// ItemsPerSecond returns the run throughput.
func (r *EnrichmentResult) ItemsPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Processed()) / r.Duration.Seconds()
}

// EnrichmentService hydrates VOD titles and series with upstream metadata.
// Items cycle through the candidate queue least-recently-synced first;
// failures cool down on a schedule keyed by the failure kind so one broken
// title cannot monopolize the batch.
type EnrichmentService struct {
	vodStreams  repository.VodStreamRepository
	series      repository.SeriesRepository
	tmdbConfigs repository.TmdbConfigRepository
	cfg         config.TmdbConfig
	limiter     *fetch.Limiter
	logger      *slog.Logger
	now         func() time.Time

	// clientFor builds the metadata client for stored credentials;
	// replaced in tests.
	clientFor func(mc *models.TmdbConfig, stats *fetch.Stats) metadataClient
}

// NewEnrichmentService creates a new enrichment service. All workers share
// one token-bucket limiter so the aggregate request rate stays bounded.
func NewEnrichmentService(
	vodStreams repository.VodStreamRepository,
	series repository.SeriesRepository,
	tmdbConfigs repository.TmdbConfigRepository,
	cfg config.TmdbConfig,
) *EnrichmentService {
	limiter := fetch.NewLimiter(cfg.RPS, cfg.Burst)
	return &EnrichmentService{
		vodStreams:  vodStreams,
		series:      series,
		tmdbConfigs: tmdbConfigs,
		cfg:         cfg,
		limiter:     limiter,
		logger:      slog.Default(),
		now:         time.Now,
		clientFor: func(mc *models.TmdbConfig, stats *fetch.Stats) metadataClient {
			return tmdb.NewClient(
				tmdb.Credentials{APIKey: mc.APIKey, BearerToken: mc.BearerToken},
				tmdb.WithLanguage(mc.Language),
				tmdb.WithRegion(mc.Region),
				tmdb.WithLimiter(limiter),
				tmdb.WithStats(stats),
			)
		},
	}
}

// WithLogger sets the logger for the service.
func (s *EnrichmentService) WithLogger(logger *slog.Logger) *EnrichmentService {
	s.logger = logger
	return s
}

// RunOnce processes one enrichment batch of movies and series.
func (s *EnrichmentService) RunOnce(ctx context.Context) (*EnrichmentResult, error) {
	mc, err := s.tmdbConfigs.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading metadata config: %w", err)
	}
	if mc == nil || !mc.IsEnabled() {
		return nil, ErrEnrichmentDisabled
	}

	start := s.now()
	stats := fetch.NewStats()
	client := s.clientFor(mc, stats)
	result := &EnrichmentResult{}
	var mu sync.Mutex

	movies, err := s.movieCandidates(ctx)
	if err != nil {
		return nil, err
	}
	shows, err := s.seriesCandidates(ctx)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())

	for _, row := range movies {
		row := row
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome := s.enrich(gctx, client, models.MediaTypeMovie, row.Name, row.NormalizedName, &row.Metadata)
			if err := s.vodStreams.Update(gctx, row); err != nil {
				return fmt.Errorf("saving enriched title: %w", err)
			}
			mu.Lock()
			result.Movies++
			result.count(outcome)
			mu.Unlock()
			return nil
		})
	}
	for _, row := range shows {
		row := row
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome := s.enrich(gctx, client, models.MediaTypeTV, row.Name, row.NormalizedName, &row.Metadata)
			if err := s.series.Update(gctx, row); err != nil {
				return fmt.Errorf("saving enriched series: %w", err)
			}
			mu.Lock()
			result.Series++
			result.count(outcome)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	deduped, err := s.dedupe(ctx, movies, shows)
	if err != nil {
		return nil, err
	}
	result.Deduped = deduped

	result.Requests = stats.Requests()
	result.Retries = stats.Retries()
	result.RateLimited = stats.RateLimited()
	result.Duration = s.now().Sub(start)

	s.logger.Info("enrichment run completed",
		"movies", result.Movies,
		"series", result.Series,
		"synced", result.Synced,
		"missing", result.Missing,
		"failed", result.Failed,
		"deduped", result.Deduped,
		"requests", result.Requests,
		"items_per_second", result.ItemsPerSecond(),
		"duration", result.Duration,
	)
	return result, nil
}

func (r *EnrichmentResult) count(outcome models.MetadataStatus) {
	switch outcome {
	case models.MetadataSynced:
		r.Synced++
	case models.MetadataMissing:
		r.Missing++
	case models.MetadataFailed:
		r.Failed++
	}
}

func (s *EnrichmentService) workers() int {
	if s.cfg.Workers < 1 {
		return 1
	}
	return s.cfg.Workers
}

func (s *EnrichmentService) movieCandidates(ctx context.Context) ([]*models.VodStream, error) {
	batch := s.cfg.BatchMovies
	if batch <= 0 {
		return nil, nil
	}
	rows, err := s.vodStreams.GetEnrichmentCandidates(ctx, overfetch(batch))
	if err != nil {
		return nil, err
	}
	now := s.now()
	eligible := make([]*models.VodStream, 0, batch)
	for _, row := range rows {
		if len(eligible) == batch {
			break
		}
		if s.eligible(&row.Metadata, now) {
			eligible = append(eligible, row)
		}
	}
	return eligible, nil
}

func (s *EnrichmentService) seriesCandidates(ctx context.Context) ([]*models.SeriesItem, error) {
	batch := s.cfg.BatchSeries
	if batch <= 0 {
		return nil, nil
	}
	rows, err := s.series.GetEnrichmentCandidates(ctx, overfetch(batch))
	if err != nil {
		return nil, err
	}
	now := s.now()
	eligible := make([]*models.SeriesItem, 0, batch)
	for _, row := range rows {
		if len(eligible) == batch {
			break
		}
		if s.eligible(&row.Metadata, now) {
			eligible = append(eligible, row)
		}
	}
	return eligible, nil
}

func overfetch(batch int) int {
	n := batch * candidateOverfetch
	if n > candidateFetchCeil {
		n = candidateFetchCeil
	}
	return n
}

// eligible reports whether an item's cooldown has elapsed. Never-synced
// items are always eligible; transient failures retry on the short
// cooldown, repeated opaque failures back off exponentially, conclusive
// outcomes (no match, bad request) wait the long cooldown, and synced
// items refresh after the resync window.
func (s *EnrichmentService) eligible(m *models.Metadata, now time.Time) bool {
	if m.TmdbLastSync == nil {
		return true
	}
	var cooldown time.Duration
	switch m.TmdbStatus {
	case models.MetadataSynced:
		cooldown = time.Duration(s.cfg.ResyncDays) * 24 * time.Hour
	case models.MetadataFailed:
		kind := fetch.Kind(m.TmdbErrorKind)
		switch {
		case kind.Transient():
			cooldown = time.Duration(s.cfg.CooldownTransientMinutes) * time.Minute
		case kind == fetch.KindInvalid || kind == fetch.KindNotFound || kind == fetch.KindAuth:
			cooldown = time.Duration(s.cfg.CooldownInvalidDays) * 24 * time.Hour
		default:
			exp := m.TmdbFailCount - 1
			if exp < 0 {
				exp = 0
			}
			if exp > failedBackoffMaxExp {
				exp = failedBackoffMaxExp
			}
			cooldown = time.Duration(s.cfg.CooldownFailedMinutes) * time.Minute << exp
		}
	default:
		cooldown = time.Duration(s.cfg.CooldownMissingMinutes) * time.Minute
	}
	return !now.Before(m.TmdbLastSync.Add(cooldown))
}

// enrich resolves one catalog row against the metadata service and records
// the outcome on the embedded metadata block. Lookup failures are captured,
// never returned.
func (s *EnrichmentService) enrich(ctx context.Context, client metadataClient, mediaType models.MediaType, name, normalized string, m *models.Metadata) models.MetadataStatus {
	now := s.now()

	// A row already resolved to an upstream id refetches the detail
	// directly on resync; re-searching could flip a matched row.
	if m.TmdbID != nil && *m.TmdbID > 0 {
		return s.hydrate(ctx, client, mediaType, *m.TmdbID, m, now)
	}

	title, year := tmdb.CleanTitle(name)
	if title == "" {
		title, year = tmdb.CleanTitle(normalized)
	}
	if title == "" {
		m.MarkMissing(now, string(fetch.KindInvalid))
		return m.TmdbStatus
	}

	resp, err := s.search(ctx, client, mediaType, title, year)
	if err != nil {
		m.MarkFailed(now, string(fetch.KindOf(err)), err.Error())
		return m.TmdbStatus
	}

	// When the raw name finds nothing the normalized form gets one more
	// try before the row is marked missing.
	if len(resp.Results) == 0 {
		if fbTitle, fbYear := tmdb.CleanTitle(normalized); fbTitle != "" && !strings.EqualFold(fbTitle, title) {
			fallback, err := s.search(ctx, client, mediaType, fbTitle, fbYear)
			if err != nil {
				m.MarkFailed(now, string(fetch.KindOf(err)), err.Error())
				return m.TmdbStatus
			}
			if len(fallback.Results) > 0 {
				title, year, resp = fbTitle, fbYear, fallback
			}
		}
	}
	if len(resp.Results) == 0 {
		m.MarkMissing(now, string(fetch.KindNotFound))
		return m.TmdbStatus
	}

	best := tmdb.PickBest(resp.Results, title, year)
	return s.hydrate(ctx, client, mediaType, best.ID, m, now)
}

func (s *EnrichmentService) search(ctx context.Context, client metadataClient, mediaType models.MediaType, title string, year int) (*tmdb.SearchResponse, error) {
	if mediaType == models.MediaTypeTV {
		return client.SearchTV(ctx, title, year)
	}
	return client.SearchMovie(ctx, title, year)
}

// hydrate fetches one detail document and stores it on the metadata block.
func (s *EnrichmentService) hydrate(ctx context.Context, client metadataClient, mediaType models.MediaType, id int64, m *models.Metadata, now time.Time) models.MetadataStatus {
	var (
		detail *tmdb.Detail
		raw    map[string]any
		err    error
	)
	if mediaType == models.MediaTypeTV {
		detail, raw, err = client.TVDetails(ctx, id)
	} else {
		detail, raw, err = client.MovieDetails(ctx, id)
	}
	if err != nil {
		m.MarkFailed(now, string(fetch.KindOf(err)), err.Error())
		return m.TmdbStatus
	}

	m.TmdbID = &detail.ID
	m.TmdbTitle = detail.DisplayTitle()
	m.TmdbOverview = detail.Overview
	m.TmdbReleaseDate = detail.ReleaseTime()
	m.TmdbGenres = models.StringList(detail.GenreNames())
	m.TmdbVoteAverage = detail.VoteAverage
	m.TmdbPosterPath = detail.PosterPath
	m.TmdbBackdropPath = detail.BackdropPath
	m.TmdbRaw = models.JSONMap(raw)
	m.MarkSynced(now)
	return m.TmdbStatus
}

// dedupe collapses catalog rows that resolved to the same upstream title.
// The most recently created row survives; older duplicates donate any
// metadata the survivor lacks and are deleted.
func (s *EnrichmentService) dedupe(ctx context.Context, movies []*models.VodStream, shows []*models.SeriesItem) (int, error) {
	removed := 0

	seenMovies := make(map[string]bool)
	for _, row := range movies {
		if !row.IsSynced() || row.TmdbID == nil {
			continue
		}
		key := fmt.Sprintf("%s/%d", row.ProviderID, *row.TmdbID)
		if seenMovies[key] {
			continue
		}
		seenMovies[key] = true

		dupes, err := s.vodStreams.GetByProviderAndTmdbID(ctx, row.ProviderID, *row.TmdbID)
		if err != nil {
			return removed, fmt.Errorf("resolving duplicate titles: %w", err)
		}
		if len(dupes) < 2 {
			continue
		}
		survivor := dupes[0]
		changed := false
		for _, dupe := range dupes[1:] {
			dupe.Metadata.DonateTo(&survivor.Metadata)
			changed = true
			if err := s.vodStreams.Delete(ctx, dupe.ID); err != nil {
				return removed, fmt.Errorf("deleting duplicate title: %w", err)
			}
			removed++
			s.logger.Debug("removed duplicate title",
				"name", dupe.Name,
				"tmdb_id", *row.TmdbID,
				"kept", survivor.Name,
			)
		}
		if changed {
			if err := s.vodStreams.Update(ctx, survivor); err != nil {
				return removed, fmt.Errorf("saving deduplicated title: %w", err)
			}
		}
	}

	seenShows := make(map[string]bool)
	for _, row := range shows {
		if !row.IsSynced() || row.TmdbID == nil {
			continue
		}
		key := fmt.Sprintf("%s/%d", row.ProviderID, *row.TmdbID)
		if seenShows[key] {
			continue
		}
		seenShows[key] = true

		dupes, err := s.series.GetByProviderAndTmdbID(ctx, row.ProviderID, *row.TmdbID)
		if err != nil {
			return removed, fmt.Errorf("resolving duplicate series: %w", err)
		}
		if len(dupes) < 2 {
			continue
		}
		survivor := dupes[0]
		changed := false
		for _, dupe := range dupes[1:] {
			dupe.Metadata.DonateTo(&survivor.Metadata)
			changed = true
			if err := s.series.Delete(ctx, dupe.ID); err != nil {
				return removed, fmt.Errorf("deleting duplicate series: %w", err)
			}
			removed++
		}
		if changed {
			if err := s.series.Update(ctx, survivor); err != nil {
				return removed, fmt.Errorf("saving deduplicated series: %w", err)
			}
		}
	}

	return removed, nil
}

// StatusCounts reports enrichment progress per media type and status.
func (s *EnrichmentService) StatusCounts(ctx context.Context) (map[models.MediaType]map[models.MetadataStatus]int64, error) {
	movies, err := s.vodStreams.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting titles: %w", err)
	}
	shows, err := s.series.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting series: %w", err)
	}
	return map[models.MediaType]map[models.MetadataStatus]int64{
		models.MediaTypeMovie: movies,
		models.MediaTypeTV:    shows,
	}, nil
}
