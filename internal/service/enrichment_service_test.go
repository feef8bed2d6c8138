package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reybeld94/mediarr/internal/config"
	"github.com/reybeld94/mediarr/internal/models"
	"github.com/reybeld94/mediarr/internal/repository"
	"github.com/reybeld94/mediarr/pkg/fetch"
	"github.com/reybeld94/mediarr/pkg/tmdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeMetadata is a canned metadataClient. Search queries are recorded so
// tests can assert lookup order.
type fakeMetadata struct {
	movieResults map[string][]tmdb.Result
	tvResults    map[string][]tmdb.Result
	details      map[int64]*tmdb.Detail
	raw          map[int64]map[string]any
	searchErr    error
	detailsErr   error

	mu       sync.Mutex
	searches []string
}

func (f *fakeMetadata) record(query string) {
	f.mu.Lock()
	f.searches = append(f.searches, query)
	f.mu.Unlock()
}

func (f *fakeMetadata) searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

func (f *fakeMetadata) SearchMovie(ctx context.Context, query string, year int) (*tmdb.SearchResponse, error) {
	f.record(query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &tmdb.SearchResponse{Results: f.movieResults[query]}, nil
}

func (f *fakeMetadata) SearchTV(ctx context.Context, query string, year int) (*tmdb.SearchResponse, error) {
	f.record(query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &tmdb.SearchResponse{Results: f.tvResults[query]}, nil
}

func (f *fakeMetadata) MovieDetails(ctx context.Context, id int64) (*tmdb.Detail, map[string]any, error) {
	if f.detailsErr != nil {
		return nil, nil, f.detailsErr
	}
	return f.details[id], f.raw[id], nil
}

func (f *fakeMetadata) TVDetails(ctx context.Context, id int64) (*tmdb.Detail, map[string]any, error) {
	return f.MovieDetails(ctx, id)
}

func defaultTmdbSettings() config.TmdbConfig {
	return config.TmdbConfig{
		AutoSync:                 true,
		BatchMovies:              25,
		BatchSeries:              25,
		Workers:                  2,
		RPS:                      5,
		Burst:                    10,
		CooldownMissingMinutes:   15,
		CooldownTransientMinutes: 15,
		CooldownFailedMinutes:    120,
		CooldownInvalidDays:      7,
		ResyncDays:               14,
	}
}

func newTestEnrichmentService(t *testing.T, db *gorm.DB, client metadataClient) *EnrichmentService {
	t.Helper()
	svc := NewEnrichmentService(
		repository.NewVodStreamRepository(db),
		repository.NewSeriesRepository(db),
		repository.NewTmdbConfigRepository(db),
		defaultTmdbSettings(),
	)
	svc.clientFor = func(mc *models.TmdbConfig, stats *fetch.Stats) metadataClient { return client }
	return svc
}

func enableTmdb(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, repository.NewTmdbConfigRepository(db).Upsert(context.Background(), &models.TmdbConfig{
		APIKey:  "test-key",
		Enabled: models.BoolPtr(true),
	}))
}

func TestEnrichmentService_Disabled(t *testing.T) {
	db := setupServiceDB(t)
	svc := newTestEnrichmentService(t, db, &fakeMetadata{})

	_, err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrEnrichmentDisabled)

	// A credential-less config row is still disabled.
	require.NoError(t, repository.NewTmdbConfigRepository(db).Upsert(context.Background(), &models.TmdbConfig{
		Enabled: models.BoolPtr(true),
	}))
	_, err = svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrEnrichmentDisabled)
}

func TestEnrichmentService_HydratesMovie(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	enableTmdb(t, db)
	ctx := context.Background()

	vodRepo := repository.NewVodStreamRepository(db)
	require.NoError(t, vodRepo.UpsertBatch(ctx, []*models.VodStream{{
		ProviderID: provider.ID,
		ExtID:      201,
		Name:       "Heat (1995).mkv",
		Active:     models.BoolPtr(true),
	}}))

	client := &fakeMetadata{
		movieResults: map[string][]tmdb.Result{
			"Heat": {{ID: 949, Title: "Heat", ReleaseDate: "1995-12-15", Popularity: 40, VoteCount: 7000}},
		},
		details: map[int64]*tmdb.Detail{
			949: {
				ID:          949,
				Title:       "Heat",
				ReleaseDate: "1995-12-15",
				Overview:    "A relentless detective pursues a master thief.",
				PosterPath:  "/heat.jpg",
				VoteAverage: 7.9,
				Genres:      []tmdb.Genre{{ID: 80, Name: "Crime"}, {ID: 18, Name: "Drama"}},
			},
		},
		raw: map[int64]map[string]any{
			949: {"id": float64(949), "budget": float64(60000000)},
		},
	}

	svc := newTestEnrichmentService(t, db, client)
	result, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Movies)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 0, result.Failed)

	rows, err := vodRepo.GetSynced(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	require.NotNil(t, row.TmdbID)
	assert.Equal(t, int64(949), *row.TmdbID)
	assert.Equal(t, "Heat", row.TmdbTitle)
	assert.Equal(t, "A relentless detective pursues a master thief.", row.TmdbOverview)
	assert.Equal(t, []string{"Crime", "Drama"}, []string(row.TmdbGenres))
	assert.Equal(t, 7.9, row.TmdbVoteAverage)
	require.NotNil(t, row.TmdbReleaseDate)
	assert.Equal(t, 1995, row.TmdbReleaseDate.Year())
	assert.Equal(t, float64(60000000), row.TmdbRaw["budget"])
	require.NotNil(t, row.TmdbLastSync)
}

func TestEnrichmentService_MarksMissing(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	enableTmdb(t, db)
	ctx := context.Background()

	seriesRepo := repository.NewSeriesRepository(db)
	require.NoError(t, seriesRepo.UpsertBatch(ctx, []*models.SeriesItem{{
		ProviderID: provider.ID,
		ExtID:      301,
		Name:       "Totally Unknown Show",
		Active:     models.BoolPtr(true),
	}}))

	svc := newTestEnrichmentService(t, db, &fakeMetadata{})
	result, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Series)
	assert.Equal(t, 1, result.Missing)

	var row models.SeriesItem
	require.NoError(t, db.Where("ext_id = ?", 301).First(&row).Error)
	assert.Equal(t, models.MetadataMissing, row.TmdbStatus)
	assert.Equal(t, string(fetch.KindNotFound), row.TmdbErrorKind)
	require.NotNil(t, row.TmdbLastSync)
}

func TestEnrichmentService_ClassifiesFailures(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	enableTmdb(t, db)
	ctx := context.Background()

	vodRepo := repository.NewVodStreamRepository(db)
	require.NoError(t, vodRepo.UpsertBatch(ctx, []*models.VodStream{{
		ProviderID: provider.ID,
		ExtID:      202,
		Name:       "Some Movie",
		Active:     models.BoolPtr(true),
	}}))

	client := &fakeMetadata{
		searchErr: fetch.Errorf(fetch.KindRateLimited, 429, "slow down"),
	}
	svc := newTestEnrichmentService(t, db, client)
	result, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	var row models.VodStream
	require.NoError(t, db.Where("ext_id = ?", 202).First(&row).Error)
	assert.Equal(t, models.MetadataFailed, row.TmdbStatus)
	assert.Equal(t, string(fetch.KindRateLimited), row.TmdbErrorKind)
	assert.Equal(t, 1, row.TmdbFailCount)
	assert.Contains(t, row.TmdbError, "slow down")
}

func TestEnrichmentService_ResyncByIDSkipsSearch(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	enableTmdb(t, db)
	ctx := context.Background()

	// A matched row past the resync window refetches its detail directly.
	tmdbID := int64(949)
	lastSync := time.Now().Add(-15 * 24 * time.Hour)
	row := &models.VodStream{
		ProviderID: provider.ID,
		ExtID:      201,
		Name:       "Heat (1995)",
		Active:     models.BoolPtr(true),
	}
	row.TmdbID = &tmdbID
	row.TmdbTitle = "Heat"
	row.TmdbStatus = models.MetadataSynced
	row.TmdbLastSync = &lastSync
	vodRepo := repository.NewVodStreamRepository(db)
	require.NoError(t, vodRepo.UpsertBatch(ctx, []*models.VodStream{row}))

	client := &fakeMetadata{
		details: map[int64]*tmdb.Detail{
			949: {ID: 949, Title: "Heat", ReleaseDate: "1995-12-15", Overview: "Updated overview."},
		},
		raw: map[int64]map[string]any{949: {"id": float64(949)}},
	}
	svc := newTestEnrichmentService(t, db, client)

	result, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Movies)
	assert.Equal(t, 1, result.Synced)

	// No search ran; the known id went straight to the detail fetch.
	assert.Empty(t, client.searched())

	var refreshed models.VodStream
	require.NoError(t, db.Where("ext_id = ?", 201).First(&refreshed).Error)
	assert.Equal(t, models.MetadataSynced, refreshed.TmdbStatus)
	assert.Equal(t, "Updated overview.", refreshed.TmdbOverview)
	require.NotNil(t, refreshed.TmdbID)
	assert.Equal(t, int64(949), *refreshed.TmdbID)
}

func TestEnrichmentService_NormalizedNameFallback(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	enableTmdb(t, db)
	ctx := context.Background()

	vodRepo := repository.NewVodStreamRepository(db)
	require.NoError(t, vodRepo.UpsertBatch(ctx, []*models.VodStream{{
		ProviderID:     provider.ID,
		ExtID:          202,
		Name:           "Heat 4K",
		NormalizedName: "heat",
		Active:         models.BoolPtr(true),
	}}))

	// The raw name finds nothing; the normalized form matches.
	client := &fakeMetadata{
		movieResults: map[string][]tmdb.Result{
			"heat": {{ID: 949, Title: "Heat", ReleaseDate: "1995-12-15", VoteCount: 7000}},
		},
		details: map[int64]*tmdb.Detail{
			949: {ID: 949, Title: "Heat", ReleaseDate: "1995-12-15"},
		},
		raw: map[int64]map[string]any{949: {"id": float64(949)}},
	}
	svc := newTestEnrichmentService(t, db, client)

	result, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 0, result.Missing)
	assert.Equal(t, []string{"Heat 4K", "heat"}, client.searched())

	var row models.VodStream
	require.NoError(t, db.Where("ext_id = ?", 202).First(&row).Error)
	assert.Equal(t, models.MetadataSynced, row.TmdbStatus)
	require.NotNil(t, row.TmdbID)
	assert.Equal(t, int64(949), *row.TmdbID)
}

func TestEnrichmentService_Eligibility(t *testing.T) {
	svc := NewEnrichmentService(nil, nil, nil, defaultTmdbSettings())
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	at := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	tests := []struct {
		name string
		meta models.Metadata
		want bool
	}{
		{"never synced", models.Metadata{}, true},
		{"missing on boundary", models.Metadata{TmdbStatus: models.MetadataMissing, TmdbLastSync: at(15 * time.Minute)}, true},
		{"missing still cooling", models.Metadata{TmdbStatus: models.MetadataMissing, TmdbLastSync: at(15*time.Minute - time.Second)}, false},
		{"transient failure retries on short cooldown", models.Metadata{
			TmdbStatus: models.MetadataFailed, TmdbErrorKind: string(fetch.KindRateLimited),
			TmdbFailCount: 4, TmdbLastSync: at(16 * time.Minute),
		}, true},
		{"opaque failure backs off exponentially", models.Metadata{
			TmdbStatus: models.MetadataFailed, TmdbErrorKind: string(fetch.KindUnknown),
			TmdbFailCount: 3, TmdbLastSync: at(479 * time.Minute),
		}, false},
		{"opaque failure after backoff", models.Metadata{
			TmdbStatus: models.MetadataFailed, TmdbErrorKind: string(fetch.KindUnknown),
			TmdbFailCount: 3, TmdbLastSync: at(480 * time.Minute),
		}, true},
		{"conclusive failure waits the long cooldown", models.Metadata{
			TmdbStatus: models.MetadataFailed, TmdbErrorKind: string(fetch.KindInvalid),
			TmdbFailCount: 1, TmdbLastSync: at(100 * time.Hour),
		}, false},
		{"conclusive failure past long cooldown", models.Metadata{
			TmdbStatus: models.MetadataFailed, TmdbErrorKind: string(fetch.KindInvalid),
			TmdbFailCount: 1, TmdbLastSync: at(168 * time.Hour),
		}, true},
		{"synced waits for resync window", models.Metadata{
			TmdbStatus: models.MetadataSynced, TmdbLastSync: at(13 * 24 * time.Hour),
		}, false},
		{"synced past resync window", models.Metadata{
			TmdbStatus: models.MetadataSynced, TmdbLastSync: at(14 * 24 * time.Hour),
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.eligible(&tt.meta, now))
		})
	}
}

func TestEnrichmentService_DeduplicatesByTmdbID(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	enableTmdb(t, db)
	ctx := context.Background()

	vodRepo := repository.NewVodStreamRepository(db)
	older := &models.VodStream{
		ProviderID: provider.ID,
		ExtID:      210,
		Name:       "Heat",
		IconURL:    "http://icons/heat-old.png",
		Active:     models.BoolPtr(true),
	}
	require.NoError(t, vodRepo.UpsertBatch(ctx, []*models.VodStream{older}))
	time.Sleep(5 * time.Millisecond)
	newer := &models.VodStream{
		ProviderID: provider.ID,
		ExtID:      211,
		Name:       "Heat (1995)",
		Active:     models.BoolPtr(true),
	}
	require.NoError(t, vodRepo.UpsertBatch(ctx, []*models.VodStream{newer}))

	client := &fakeMetadata{
		movieResults: map[string][]tmdb.Result{
			"Heat": {{ID: 949, Title: "Heat", ReleaseDate: "1995-12-15"}},
		},
		details: map[int64]*tmdb.Detail{
			949: {ID: 949, Title: "Heat", ReleaseDate: "1995-12-15", Overview: "Thief versus detective."},
		},
		raw: map[int64]map[string]any{949: {"id": float64(949)}},
	}

	svc := newTestEnrichmentService(t, db, client)
	result, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Movies)
	assert.Equal(t, 1, result.Deduped)

	var remaining []models.VodStream
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	// The newer row survives.
	assert.Equal(t, int64(211), remaining[0].ExtID)
	assert.Equal(t, models.MetadataSynced, remaining[0].TmdbStatus)
}
