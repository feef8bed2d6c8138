// Package service provides the business logic layer for mediarr: catalog
// sync, guide ingest, metadata enrichment and collection serving.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/reybeld94/mediarr/internal/config"
	"github.com/reybeld94/mediarr/internal/matcher"
	"github.com/reybeld94/mediarr/internal/models"
	"github.com/reybeld94/mediarr/internal/repository"
	"github.com/reybeld94/mediarr/pkg/fetch"
	"github.com/reybeld94/mediarr/pkg/xtream"
)

// panelRPS spaces catalog requests against a panel. Panels ban aggressive
// clients, so syncs run single-threaded behind a pacer.
const panelRPS = 2.0

// panelClient is the subset of the Xtream client the catalog sync uses.
type panelClient interface {
	GetAuthInfo(ctx context.Context) (*xtream.AuthInfo, error)
	GetLiveCategories(ctx context.Context) ([]xtream.Category, error)
	GetVODCategories(ctx context.Context) ([]xtream.Category, error)
	GetSeriesCategories(ctx context.Context) ([]xtream.Category, error)
	GetLiveStreams(ctx context.Context, opts *xtream.StreamsOptions) ([]xtream.Stream, error)
	GetVODStreams(ctx context.Context, opts *xtream.StreamsOptions) ([]xtream.VODStream, error)
	GetSeries(ctx context.Context, opts *xtream.StreamsOptions) ([]xtream.Series, error)
	GetSeriesInfo(ctx context.Context, seriesID int64) (*xtream.SeriesInfo, error)
}

// CategoryDetail records one category's stream sync outcome. A category
// whose listing failed carries the error and leaves its streams untouched.
type CategoryDetail struct {
	CategoryExtID string `json:"category_ext_id"`
	CategoryName  string `json:"category_name"`
	Count         int    `json:"count"`
	Error         string `json:"error,omitempty"`
}

// CatalogSyncResult summarizes one provider sync run.
type CatalogSyncResult struct {
	ProviderID        models.ULID      `json:"provider_id"`
	Categories        int              `json:"categories"`
	LiveStreams       int              `json:"live_streams"`
	VodStreams        int              `json:"vod_streams"`
	Series            int              `json:"series"`
	LiveDeactivated   int64            `json:"live_deactivated"`
	VodDeactivated    int64            `json:"vod_deactivated"`
	SeriesDeactivated int64            `json:"series_deactivated"`
	LiveDetails       []CategoryDetail `json:"live_details"`
	VodDetails        []CategoryDetail `json:"vod_details"`
	SeriesDetails     []CategoryDetail `json:"series_details"`
	Requests          int64            `json:"requests"`
	Retries           int64            `json:"retries"`
	Duration          time.Duration    `json:"duration"`
}

// EpisodeSyncResult summarizes one series episode sync.
type EpisodeSyncResult struct {
	SeriesID models.ULID `json:"series_id"`
	Seasons  int         `json:"seasons"`
	Episodes int         `json:"episodes"`
}

// CatalogService syncs provider catalogs: categories, live streams, VOD
// titles and series listings. Rows that disappear upstream are deactivated,
// never deleted, so curation and enrichment state survive provider churn.
type CatalogService struct {
	providers   repository.ProviderRepository
	syncConfigs repository.ProviderSyncConfigRepository
	categories  repository.CategoryRepository
	liveStreams repository.LiveStreamRepository
	vodStreams  repository.VodStreamRepository
	series      repository.SeriesRepository
	cfg         config.CatalogConfig
	logger      *slog.Logger
	now         func() time.Time

	// clientFor builds the panel client for a provider; replaced in tests.
	clientFor func(p *models.Provider, stats *fetch.Stats) panelClient
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	providers repository.ProviderRepository,
	syncConfigs repository.ProviderSyncConfigRepository,
	categories repository.CategoryRepository,
	liveStreams repository.LiveStreamRepository,
	vodStreams repository.VodStreamRepository,
	series repository.SeriesRepository,
	cfg config.CatalogConfig,
) *CatalogService {
	return &CatalogService{
		providers:   providers,
		syncConfigs: syncConfigs,
		categories:  categories,
		liveStreams: liveStreams,
		vodStreams:  vodStreams,
		series:      series,
		cfg:         cfg,
		logger:      slog.Default(),
		now:         time.Now,
		clientFor: func(p *models.Provider, stats *fetch.Stats) panelClient {
			return xtream.NewClient(p.URL, p.Username, p.Password,
				xtream.WithPacer(fetch.NewPacer(panelRPS)),
				xtream.WithStats(stats),
			)
		},
	}
}

// WithLogger sets the logger for the service.
func (s *CatalogService) WithLogger(logger *slog.Logger) *CatalogService {
	s.logger = logger
	return s
}

// SyncProvider runs a full catalog sync for one provider and records the
// outcome on the provider's sync schedule.
func (s *CatalogService) SyncProvider(ctx context.Context, providerID models.ULID) (*CatalogSyncResult, error) {
	provider, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("loading provider: %w", err)
	}
	if provider == nil {
		return nil, fetch.Errorf(fetch.KindNotFound, 0, "provider %s not found", providerID)
	}
	if !provider.IsActive() {
		return nil, fetch.Errorf(fetch.KindInvalid, 0, "provider %s is inactive", provider.Name)
	}
	if _, err := s.ensureSchedule(ctx, provider.ID); err != nil {
		return nil, err
	}

	result, err := s.syncProvider(ctx, provider)
	at := s.now()
	if err != nil {
		if markErr := s.syncConfigs.MarkRun(ctx, provider.ID, "failed", err.Error(), at); markErr != nil {
			s.logger.Error("recording failed sync run", "provider", provider.Name, "error", markErr)
		}
		return nil, err
	}

	detail := fmt.Sprintf("live=%d vod=%d series=%d categories=%d",
		result.LiveStreams, result.VodStreams, result.Series, result.Categories)
	if markErr := s.syncConfigs.MarkRun(ctx, provider.ID, "success", detail, at); markErr != nil {
		s.logger.Error("recording sync run", "provider", provider.Name, "error", markErr)
	}
	return result, nil
}

func (s *CatalogService) syncProvider(ctx context.Context, provider *models.Provider) (*CatalogSyncResult, error) {
	start := s.now()
	stats := fetch.NewStats()
	client := s.clientFor(provider, stats)

	s.logger.Info("starting catalog sync", "provider", provider.Name)

	auth, err := client.GetAuthInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticating against panel: %w", err)
	}
	if !auth.UserInfo.IsAuthenticated() {
		return nil, fetch.Errorf(fetch.KindAuth, 0, "panel rejected credentials for %s", provider.Name)
	}

	result := &CatalogSyncResult{ProviderID: provider.ID}

	liveCats, err := s.syncCategories(ctx, provider.ID, models.CategoryKindLive, client.GetLiveCategories)
	if err != nil {
		return nil, err
	}
	vodCats, err := s.syncCategories(ctx, provider.ID, models.CategoryKindVod, client.GetVODCategories)
	if err != nil {
		return nil, err
	}
	seriesCats, err := s.syncCategories(ctx, provider.ID, models.CategoryKindSeries, client.GetSeriesCategories)
	if err != nil {
		return nil, err
	}
	result.Categories = len(liveCats) + len(vodCats) + len(seriesCats)

	if err := s.syncLiveStreams(ctx, provider.ID, client, liveCats, result); err != nil {
		return nil, err
	}
	if err := s.syncVodStreams(ctx, provider.ID, client, vodCats, result); err != nil {
		return nil, err
	}
	if err := s.syncSeries(ctx, provider.ID, client, seriesCats, result); err != nil {
		return nil, err
	}

	result.Requests = stats.Requests()
	result.Retries = stats.Retries()
	result.Duration = s.now().Sub(start)

	s.logger.Info("catalog sync completed",
		"provider", provider.Name,
		"categories", result.Categories,
		"live", result.LiveStreams,
		"vod", result.VodStreams,
		"series", result.Series,
		"requests", result.Requests,
		"duration", result.Duration,
	)
	return result, nil
}

// syncedCategory pairs a listed category with its stored row id.
type syncedCategory struct {
	ExtID string
	Name  string
	ID    models.ULID
}

// syncCategories upserts one kind's category listing and returns the synced
// categories in listing order.
func (s *CatalogService) syncCategories(
	ctx context.Context,
	providerID models.ULID,
	kind models.CategoryKind,
	list func(ctx context.Context) ([]xtream.Category, error),
) ([]syncedCategory, error) {
	listed, err := list(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %s categories: %w", kind, err)
	}

	rows := make([]*models.Category, 0, len(listed))
	keep := make([]string, 0, len(listed))
	seen := make(map[string]bool, len(listed))
	for _, c := range listed {
		extID := c.CategoryID.String()
		if extID == "" || seen[extID] {
			continue
		}
		seen[extID] = true
		rows = append(rows, &models.Category{
			ProviderID: providerID,
			Kind:       kind,
			ExtID:      extID,
			Name:       c.CategoryName,
			Active:     models.BoolPtr(true),
		})
		keep = append(keep, extID)
	}

	if err := s.categories.UpsertBatch(ctx, rows); err != nil {
		return nil, fmt.Errorf("upserting %s categories: %w", kind, err)
	}
	if _, err := s.categories.DeactivateMissing(ctx, providerID, kind, keep); err != nil {
		return nil, fmt.Errorf("deactivating %s categories: %w", kind, err)
	}

	// Reload for row ids: upserts on existing rows do not backfill them.
	stored, err := s.categories.GetByProvider(ctx, providerID, kind)
	if err != nil {
		return nil, fmt.Errorf("reloading %s categories: %w", kind, err)
	}
	byExt := make(map[string]models.ULID, len(stored))
	for _, c := range stored {
		byExt[c.ExtID] = c.ID
	}

	synced := make([]syncedCategory, 0, len(rows))
	for _, row := range rows {
		synced = append(synced, syncedCategory{ExtID: row.ExtID, Name: row.Name, ID: byExt[row.ExtID]})
	}
	return synced, nil
}

// syncLiveStreams fetches live streams one category at a time so a failed
// category is recorded in the details without sinking the whole sync.
func (s *CatalogService) syncLiveStreams(ctx context.Context, providerID models.ULID, client panelClient, cats []syncedCategory, result *CatalogSyncResult) error {
	keep := make([]int64, 0, 1024)
	seen := make(map[int64]bool, 1024)
	failed := false

	list := func(cat *syncedCategory) ([]xtream.Stream, error) {
		if cat == nil {
			return client.GetLiveStreams(ctx, nil)
		}
		return client.GetLiveStreams(ctx, &xtream.StreamsOptions{CategoryID: cat.ExtID})
	}
	upsert := func(listed []xtream.Stream, catID *models.ULID) (int, error) {
		rows := make([]*models.LiveStream, 0, len(listed))
		for _, item := range listed {
			extID := item.StreamID.Int()
			if extID == 0 || seen[extID] {
				continue
			}
			seen[extID] = true
			row := &models.LiveStream{
				ProviderID:     providerID,
				ExtID:          extID,
				CategoryID:     catID,
				Name:           item.Name,
				NormalizedName: matcher.Normalize(item.Name),
				LogoURL:        item.StreamIcon,
				Active:         models.BoolPtr(true),
			}
			if num := int(item.Num.Int()); num > 0 {
				row.ChannelNumber = &num
			}
			rows = append(rows, row)
			keep = append(keep, extID)
		}
		if err := s.liveStreams.UpsertBatch(ctx, rows); err != nil {
			return 0, fmt.Errorf("upserting live streams: %w", err)
		}
		return len(rows), nil
	}

	for i := range cats {
		cat := &cats[i]
		listed, err := list(cat)
		if err != nil {
			failed = true
			result.LiveDetails = append(result.LiveDetails, CategoryDetail{
				CategoryExtID: cat.ExtID, CategoryName: cat.Name, Error: err.Error(),
			})
			s.logger.Warn("live category listing failed", "category", cat.Name, "error", err)
			continue
		}
		catID := cat.ID
		count, err := upsert(listed, &catID)
		if err != nil {
			return err
		}
		result.LiveStreams += count
		result.LiveDetails = append(result.LiveDetails, CategoryDetail{
			CategoryExtID: cat.ExtID, CategoryName: cat.Name, Count: count,
		})
	}
	if len(cats) == 0 {
		// Panels without live categories still list streams unfiltered.
		listed, err := list(nil)
		if err != nil {
			return fmt.Errorf("listing live streams: %w", err)
		}
		count, err := upsert(listed, nil)
		if err != nil {
			return err
		}
		result.LiveStreams += count
	}

	// A failed category leaves its streams unlisted; deactivating against a
	// partial listing would wipe them.
	if failed {
		return nil
	}
	deactivated, err := s.liveStreams.DeactivateMissing(ctx, providerID, keep)
	if err != nil {
		return fmt.Errorf("deactivating live streams: %w", err)
	}
	result.LiveDeactivated = deactivated
	return nil
}

// syncVodStreams fetches VOD titles one category at a time. Panel-supplied
// tmdb ids seed new rows and repair rows whose panel id changed.
func (s *CatalogService) syncVodStreams(ctx context.Context, providerID models.ULID, client panelClient, cats []syncedCategory, result *CatalogSyncResult) error {
	existing, err := s.vodExtIDs(ctx, providerID)
	if err != nil {
		return err
	}

	keep := make([]int64, 0, 1024)
	seen := make(map[int64]bool, 1024)
	failed := false

	list := func(cat *syncedCategory) ([]xtream.VODStream, error) {
		if cat == nil {
			return client.GetVODStreams(ctx, nil)
		}
		return client.GetVODStreams(ctx, &xtream.StreamsOptions{CategoryID: cat.ExtID})
	}
	upsert := func(listed []xtream.VODStream, catID *models.ULID) (int, error) {
		rows := make([]*models.VodStream, 0, len(listed))
		for _, item := range listed {
			extID := item.StreamID.Int()
			if extID == 0 || seen[extID] {
				continue
			}
			seen[extID] = true
			row := &models.VodStream{
				ProviderID:         providerID,
				ExtID:              extID,
				CategoryID:         catID,
				Name:               item.Name,
				NormalizedName:     matcher.Normalize(item.Name),
				IconURL:            item.StreamIcon,
				ContainerExtension: item.ContainerExtension,
				Rating:             item.Rating.Float(),
				Active:             models.BoolPtr(true),
			}
			if tmdbID := item.TMDBId.Int(); tmdbID > 0 {
				row.TmdbID = &tmdbID
			}
			rows = append(rows, row)
			keep = append(keep, extID)
		}
		if err := s.repairRenumberedVod(ctx, providerID, rows, existing); err != nil {
			return 0, err
		}
		if err := s.vodStreams.UpsertBatch(ctx, rows); err != nil {
			return 0, fmt.Errorf("upserting VOD streams: %w", err)
		}
		return len(rows), nil
	}

	for i := range cats {
		cat := &cats[i]
		listed, err := list(cat)
		if err != nil {
			failed = true
			result.VodDetails = append(result.VodDetails, CategoryDetail{
				CategoryExtID: cat.ExtID, CategoryName: cat.Name, Error: err.Error(),
			})
			s.logger.Warn("VOD category listing failed", "category", cat.Name, "error", err)
			continue
		}
		catID := cat.ID
		count, err := upsert(listed, &catID)
		if err != nil {
			return err
		}
		result.VodStreams += count
		result.VodDetails = append(result.VodDetails, CategoryDetail{
			CategoryExtID: cat.ExtID, CategoryName: cat.Name, Count: count,
		})
	}
	if len(cats) == 0 {
		listed, err := list(nil)
		if err != nil {
			return fmt.Errorf("listing VOD streams: %w", err)
		}
		count, err := upsert(listed, nil)
		if err != nil {
			return err
		}
		result.VodStreams += count
	}

	// Panels drop and re-add VOD titles constantly; deactivation is opt-in
	// so enriched titles do not flap. A failed category also suppresses it.
	if s.cfg.DeactivateMissingVod && !failed {
		deactivated, err := s.vodStreams.DeactivateMissing(ctx, providerID, keep)
		if err != nil {
			return fmt.Errorf("deactivating VOD streams: %w", err)
		}
		result.VodDeactivated = deactivated
	}
	return nil
}

// vodExtIDs loads the set of a provider's stored VOD panel ids.
func (s *CatalogService) vodExtIDs(ctx context.Context, providerID models.ULID) (map[int64]bool, error) {
	ids, err := s.vodStreams.GetExtIDs(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("loading stored VOD ids: %w", err)
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// repairRenumberedVod re-points stored titles at new panel ids. When a
// listed title is unknown by (provider, ext_id) but its tmdb id matches a
// stored row, the stored row adopts the new ext_id so enrichment state
// survives provider-side renumbering.
func (s *CatalogService) repairRenumberedVod(ctx context.Context, providerID models.ULID, rows []*models.VodStream, existing map[int64]bool) error {
	for _, row := range rows {
		if row.TmdbID == nil || existing[row.ExtID] {
			continue
		}
		matches, err := s.vodStreams.GetByProviderAndTmdbID(ctx, providerID, *row.TmdbID)
		if err != nil {
			return fmt.Errorf("matching VOD title by tmdb id: %w", err)
		}
		if len(matches) == 0 || matches[0].ExtID == row.ExtID {
			continue
		}
		match := matches[0]
		s.logger.Info("repairing renumbered VOD title",
			"name", match.Name,
			"old_ext_id", match.ExtID,
			"new_ext_id", row.ExtID,
		)
		delete(existing, match.ExtID)
		match.ExtID = row.ExtID
		if err := s.vodStreams.Update(ctx, match); err != nil {
			return fmt.Errorf("repairing renumbered VOD title: %w", err)
		}
		existing[row.ExtID] = true
	}
	return nil
}

// syncSeries fetches series listings one category at a time.
func (s *CatalogService) syncSeries(ctx context.Context, providerID models.ULID, client panelClient, cats []syncedCategory, result *CatalogSyncResult) error {
	keep := make([]int64, 0, 1024)
	seen := make(map[int64]bool, 1024)
	failed := false

	list := func(cat *syncedCategory) ([]xtream.Series, error) {
		if cat == nil {
			return client.GetSeries(ctx, nil)
		}
		return client.GetSeries(ctx, &xtream.StreamsOptions{CategoryID: cat.ExtID})
	}
	upsert := func(listed []xtream.Series, catID *models.ULID) (int, error) {
		rows := make([]*models.SeriesItem, 0, len(listed))
		for _, item := range listed {
			extID := item.SeriesID.Int()
			if extID == 0 || seen[extID] {
				continue
			}
			seen[extID] = true
			rows = append(rows, &models.SeriesItem{
				ProviderID:     providerID,
				ExtID:          extID,
				CategoryID:     catID,
				Name:           item.Name,
				NormalizedName: matcher.Normalize(item.Name),
				CoverURL:       item.Cover,
				Rating:         item.Rating.Float(),
				Active:         models.BoolPtr(true),
			})
			keep = append(keep, extID)
		}
		if err := s.series.UpsertBatch(ctx, rows); err != nil {
			return 0, fmt.Errorf("upserting series: %w", err)
		}
		return len(rows), nil
	}

	for i := range cats {
		cat := &cats[i]
		listed, err := list(cat)
		if err != nil {
			failed = true
			result.SeriesDetails = append(result.SeriesDetails, CategoryDetail{
				CategoryExtID: cat.ExtID, CategoryName: cat.Name, Error: err.Error(),
			})
			s.logger.Warn("series category listing failed", "category", cat.Name, "error", err)
			continue
		}
		catID := cat.ID
		count, err := upsert(listed, &catID)
		if err != nil {
			return err
		}
		result.Series += count
		result.SeriesDetails = append(result.SeriesDetails, CategoryDetail{
			CategoryExtID: cat.ExtID, CategoryName: cat.Name, Count: count,
		})
	}
	if len(cats) == 0 {
		listed, err := list(nil)
		if err != nil {
			return fmt.Errorf("listing series: %w", err)
		}
		count, err := upsert(listed, nil)
		if err != nil {
			return err
		}
		result.Series += count
	}

	if failed {
		return nil
	}
	deactivated, err := s.series.DeactivateMissing(ctx, providerID, keep)
	if err != nil {
		return fmt.Errorf("deactivating series: %w", err)
	}
	result.SeriesDeactivated = deactivated
	return nil
}

// SyncSeriesEpisodes fetches a series' season and episode listing from the
// panel and upserts it.
func (s *CatalogService) SyncSeriesEpisodes(ctx context.Context, seriesID models.ULID) (*EpisodeSyncResult, error) {
	item, err := s.series.GetByID(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("loading series: %w", err)
	}
	if item == nil {
		return nil, fetch.Errorf(fetch.KindNotFound, 0, "series %s not found", seriesID)
	}
	provider, err := s.providers.GetByID(ctx, item.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("loading provider: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("provider %s not found", item.ProviderID)
	}

	client := s.clientFor(provider, nil)
	info, err := client.GetSeriesInfo(ctx, item.ExtID)
	if err != nil {
		return nil, fmt.Errorf("fetching series info: %w", err)
	}

	seasons := make([]*models.Season, 0, len(info.Seasons))
	byNumber := make(map[int]bool, len(info.Seasons))
	for _, si := range info.Seasons {
		season := &models.Season{
			SeriesID:     item.ID,
			Number:       si.SeasonNumber,
			Name:         si.Name,
			EpisodeCount: si.EpisodeCount,
			CoverURL:     si.Cover,
		}
		if t, err := time.Parse("2006-01-02", si.AirDate); err == nil {
			season.AirDate = &t
		}
		seasons = append(seasons, season)
		byNumber[si.SeasonNumber] = true
	}
	// Some panels omit the seasons array; the episode map keys imply them.
	for key := range info.Episodes {
		number, err := strconv.Atoi(key)
		if err != nil || byNumber[number] {
			continue
		}
		byNumber[number] = true
		seasons = append(seasons, &models.Season{SeriesID: item.ID, Number: number})
	}

	if err := s.series.UpsertSeasons(ctx, seasons); err != nil {
		return nil, fmt.Errorf("upserting seasons: %w", err)
	}
	stored, err := s.series.GetSeasons(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading seasons: %w", err)
	}
	seasonIDs := make(map[int]models.ULID, len(stored))
	for _, season := range stored {
		seasonIDs[season.Number] = season.ID
	}

	var episodes []*models.Episode
	for key, eps := range info.Episodes {
		number, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		seasonID, ok := seasonIDs[number]
		if !ok {
			continue
		}
		seen := make(map[int64]bool, len(eps))
		for _, ep := range eps {
			extID := ep.ID.Int()
			if extID == 0 || seen[extID] {
				continue
			}
			seen[extID] = true
			episodes = append(episodes, &models.Episode{
				SeasonID:           seasonID,
				ExtID:              extID,
				Number:             int(ep.EpisodeNum.Int()),
				Title:              ep.Title,
				ContainerExtension: ep.ContainerExtension,
				DurationSeconds:    int(ep.Info.DurationSecs.Int()),
				Plot:               ep.Info.Plot,
				Rating:             ep.Info.Rating.Float(),
			})
		}
	}
	if err := s.series.UpsertEpisodes(ctx, episodes); err != nil {
		return nil, fmt.Errorf("upserting episodes: %w", err)
	}

	s.logger.Info("series episodes synced",
		"series", item.Name,
		"seasons", len(seasons),
		"episodes", len(episodes),
	)
	return &EpisodeSyncResult{SeriesID: item.ID, Seasons: len(seasons), Episodes: len(episodes)}, nil
}

// SyncDue syncs every provider whose schedule is due. Providers without a
// schedule row get one with the configured default interval.
func (s *CatalogService) SyncDue(ctx context.Context) error {
	if !s.cfg.AutoSync {
		return nil
	}
	providers, err := s.providers.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active providers: %w", err)
	}

	now := s.now()
	for _, provider := range providers {
		schedule, err := s.ensureSchedule(ctx, provider.ID)
		if err != nil {
			return err
		}
		if !schedule.Due(now) {
			continue
		}
		if _, err := s.SyncProvider(ctx, provider.ID); err != nil {
			s.logger.Error("scheduled catalog sync failed",
				"provider", provider.Name,
				"error", err,
			)
		}
	}
	return nil
}

// ensureSchedule loads a provider's sync schedule, creating one with the
// configured default interval when missing.
func (s *CatalogService) ensureSchedule(ctx context.Context, providerID models.ULID) (*models.ProviderAutoSyncConfig, error) {
	schedule, err := s.syncConfigs.GetByProviderID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("loading sync schedule: %w", err)
	}
	if schedule != nil {
		return schedule, nil
	}
	schedule = &models.ProviderAutoSyncConfig{
		ProviderID:      providerID,
		Enabled:         models.BoolPtr(true),
		IntervalMinutes: s.cfg.DefaultIntervalMinutes,
	}
	if err := s.syncConfigs.Upsert(ctx, schedule); err != nil {
		return nil, fmt.Errorf("creating sync schedule: %w", err)
	}
	return schedule, nil
}
