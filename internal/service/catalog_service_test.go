package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/reybeld94/mediarr/internal/config"
	"github.com/reybeld94/mediarr/internal/models"
	"github.com/reybeld94/mediarr/internal/repository"
	"github.com/reybeld94/mediarr/pkg/fetch"
	"github.com/reybeld94/mediarr/pkg/xtream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled second connection would see a fresh in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Provider{},
		&models.ProviderUser{},
		&models.ProviderAutoSyncConfig{},
		&models.Category{},
		&models.LiveStream{},
		&models.VodStream{},
		&models.SeriesItem{},
		&models.Season{},
		&models.Episode{},
		&models.EpgSource{},
		&models.EpgChannel{},
		&models.EpgProgram{},
		&models.TmdbConfig{},
		&models.Collection{},
		&models.CollectionCache{},
	)
	require.NoError(t, err)
	return db
}

func createTestProvider(t *testing.T, db *gorm.DB) *models.Provider {
	t.Helper()
	provider := &models.Provider{
		Name:     "panel-one",
		URL:      "http://panel.example.com",
		Username: "user",
		Password: "pass",
		Active:   models.BoolPtr(true),
	}
	require.NoError(t, repository.NewProviderRepository(db).Create(context.Background(), provider))
	return provider
}

// fakePanel is a canned panelClient. Stream listings honor the category
// filter the way a real panel does.
type fakePanel struct {
	auth       xtream.AuthInfo
	liveCats   []xtream.Category
	vodCats    []xtream.Category
	seriesCats []xtream.Category
	live       []xtream.Stream
	vod        []xtream.VODStream
	series     []xtream.Series
	seriesInfo map[int64]*xtream.SeriesInfo
	authErr    error

	// per-category listing failures, keyed by category ext id.
	liveErrs map[string]error
	vodErrs  map[string]error
}

func wantCategory(opts *xtream.StreamsOptions, categoryID string) bool {
	return opts == nil || opts.CategoryID == "" || opts.CategoryID == categoryID
}

func (f *fakePanel) GetAuthInfo(ctx context.Context) (*xtream.AuthInfo, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &f.auth, nil
}

func (f *fakePanel) GetLiveCategories(ctx context.Context) ([]xtream.Category, error) {
	return f.liveCats, nil
}

func (f *fakePanel) GetVODCategories(ctx context.Context) ([]xtream.Category, error) {
	return f.vodCats, nil
}

func (f *fakePanel) GetSeriesCategories(ctx context.Context) ([]xtream.Category, error) {
	return f.seriesCats, nil
}

func (f *fakePanel) GetLiveStreams(ctx context.Context, opts *xtream.StreamsOptions) ([]xtream.Stream, error) {
	if opts != nil {
		if err := f.liveErrs[opts.CategoryID]; err != nil {
			return nil, err
		}
	}
	var out []xtream.Stream
	for _, s := range f.live {
		if wantCategory(opts, s.CategoryID.String()) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakePanel) GetVODStreams(ctx context.Context, opts *xtream.StreamsOptions) ([]xtream.VODStream, error) {
	if opts != nil {
		if err := f.vodErrs[opts.CategoryID]; err != nil {
			return nil, err
		}
	}
	var out []xtream.VODStream
	for _, s := range f.vod {
		if wantCategory(opts, s.CategoryID.String()) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakePanel) GetSeries(ctx context.Context, opts *xtream.StreamsOptions) ([]xtream.Series, error) {
	var out []xtream.Series
	for _, s := range f.series {
		if wantCategory(opts, s.CategoryID.String()) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakePanel) GetSeriesInfo(ctx context.Context, seriesID int64) (*xtream.SeriesInfo, error) {
	return f.seriesInfo[seriesID], nil
}

func authenticatedPanel() *fakePanel {
	return &fakePanel{
		auth: xtream.AuthInfo{UserInfo: xtream.UserInfo{Auth: 1, Status: "Active"}},
	}
}

func newTestCatalogService(db *gorm.DB, panel *fakePanel, cfg config.CatalogConfig) *CatalogService {
	svc := NewCatalogService(
		repository.NewProviderRepository(db),
		repository.NewProviderSyncConfigRepository(db),
		repository.NewCategoryRepository(db),
		repository.NewLiveStreamRepository(db),
		repository.NewVodStreamRepository(db),
		repository.NewSeriesRepository(db),
		cfg,
	)
	svc.clientFor = func(p *models.Provider, stats *fetch.Stats) panelClient { return panel }
	return svc
}

func TestCatalogService_SyncProvider(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	ctx := context.Background()

	panel := authenticatedPanel()
	panel.liveCats = []xtream.Category{
		{CategoryID: "1", CategoryName: "News"},
		{CategoryID: "2", CategoryName: "Sports"},
	}
	panel.vodCats = []xtream.Category{{CategoryID: "10", CategoryName: "Action"}}
	panel.seriesCats = []xtream.Category{{CategoryID: "20", CategoryName: "Drama"}}
	panel.live = []xtream.Stream{
		{StreamID: 101, Name: "ESPN HD", CategoryID: "2", Num: 5, StreamIcon: "http://logo/espn.png"},
		{StreamID: 102, Name: "CNN", CategoryID: "1"},
		{StreamID: 101, Name: "ESPN HD duplicate", CategoryID: "2"},
	}
	panel.vod = []xtream.VODStream{
		{StreamID: 201, Name: "Heat (1995)", CategoryID: "10", ContainerExtension: "mkv", Rating: 8.3},
	}
	panel.series = []xtream.Series{
		{SeriesID: 301, Name: "The Wire", CategoryID: "20", Cover: "http://cover/wire.jpg", Rating: 9.3},
	}

	svc := newTestCatalogService(db, panel, config.CatalogConfig{AutoSync: true})

	result, err := svc.SyncProvider(ctx, provider.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Categories)
	assert.Equal(t, 2, result.LiveStreams)
	assert.Equal(t, 1, result.VodStreams)
	assert.Equal(t, 1, result.Series)

	streams, err := repository.NewLiveStreamRepository(db).GetByProviderID(ctx, provider.ID)
	require.NoError(t, err)
	require.Len(t, streams, 2)
	byExt := make(map[int64]*models.LiveStream)
	for _, s := range streams {
		byExt[s.ExtID] = s
	}
	espn := byExt[101]
	require.NotNil(t, espn)
	assert.Equal(t, "ESPN HD", espn.Name)
	assert.Equal(t, "espn", espn.NormalizedName)
	require.NotNil(t, espn.CategoryID)
	require.NotNil(t, espn.ChannelNumber)
	assert.Equal(t, 5, *espn.ChannelNumber)

	cats, err := repository.NewCategoryRepository(db).GetByProvider(ctx, provider.ID, models.CategoryKindLive)
	require.NoError(t, err)
	require.Len(t, cats, 2)

	// The run outcome lands on the schedule row.
	schedule, err := repository.NewProviderSyncConfigRepository(db).GetByProviderID(ctx, provider.ID)
	require.NoError(t, err)
	require.NotNil(t, schedule)
	assert.Equal(t, "success", schedule.LastStatus)
	require.NotNil(t, schedule.LastRunAt)
}

func TestCatalogService_SyncProviderDeactivation(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	ctx := context.Background()

	panel := authenticatedPanel()
	panel.live = []xtream.Stream{
		{StreamID: 101, Name: "One"},
		{StreamID: 102, Name: "Two"},
	}
	panel.vod = []xtream.VODStream{
		{StreamID: 201, Name: "Movie A"},
		{StreamID: 202, Name: "Movie B"},
	}

	svc := newTestCatalogService(db, panel, config.CatalogConfig{AutoSync: true})
	_, err := svc.SyncProvider(ctx, provider.ID)
	require.NoError(t, err)

	// Second listing drops one live stream and one VOD title.
	panel.live = panel.live[:1]
	panel.vod = panel.vod[:1]
	result, err := svc.SyncProvider(ctx, provider.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.LiveDeactivated)
	// VOD deactivation is opt-in and off here.
	assert.Equal(t, int64(0), result.VodDeactivated)

	var active int64
	require.NoError(t, db.Model(&models.VodStream{}).Where("active = ?", true).Count(&active).Error)
	assert.Equal(t, int64(2), active)

	svc = newTestCatalogService(db, panel, config.CatalogConfig{AutoSync: true, DeactivateMissingVod: true})
	result, err = svc.SyncProvider(ctx, provider.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.VodDeactivated)
}

func TestCatalogService_SyncProviderCategoryDetails(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	ctx := context.Background()

	panel := authenticatedPanel()
	panel.liveCats = []xtream.Category{
		{CategoryID: "1", CategoryName: "News"},
		{CategoryID: "2", CategoryName: "Sports"},
	}
	panel.live = []xtream.Stream{
		{StreamID: 101, Name: "ESPN", CategoryID: "2"},
		{StreamID: 102, Name: "CNN", CategoryID: "1"},
		{StreamID: 103, Name: "BBC News", CategoryID: "1"},
	}

	svc := newTestCatalogService(db, panel, config.CatalogConfig{AutoSync: true})
	result, err := svc.SyncProvider(ctx, provider.ID)
	require.NoError(t, err)

	require.Len(t, result.LiveDetails, 2)
	byCat := make(map[string]CategoryDetail)
	for _, d := range result.LiveDetails {
		byCat[d.CategoryExtID] = d
	}
	assert.Equal(t, "News", byCat["1"].CategoryName)
	assert.Equal(t, 2, byCat["1"].Count)
	assert.Equal(t, 1, byCat["2"].Count)
	assert.Empty(t, byCat["1"].Error)
}

func TestCatalogService_SyncProviderCategoryFailureIsolation(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	ctx := context.Background()

	panel := authenticatedPanel()
	panel.liveCats = []xtream.Category{
		{CategoryID: "1", CategoryName: "News"},
		{CategoryID: "2", CategoryName: "Sports"},
	}
	panel.live = []xtream.Stream{
		{StreamID: 101, Name: "ESPN", CategoryID: "2"},
		{StreamID: 102, Name: "CNN", CategoryID: "1"},
	}

	svc := newTestCatalogService(db, panel, config.CatalogConfig{AutoSync: true})
	_, err := svc.SyncProvider(ctx, provider.ID)
	require.NoError(t, err)

	// One category starts failing. Its streams stay untouched: the run
	// still succeeds, the failure lands in the details, and no stream is
	// deactivated against the partial listing.
	panel.liveErrs = map[string]error{"2": fetch.Errorf(fetch.KindServer, 500, "panel hiccup")}
	result, err := svc.SyncProvider(ctx, provider.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.LiveStreams)
	assert.Equal(t, int64(0), result.LiveDeactivated)

	var failedDetail *CategoryDetail
	for i := range result.LiveDetails {
		if result.LiveDetails[i].CategoryExtID == "2" {
			failedDetail = &result.LiveDetails[i]
		}
	}
	require.NotNil(t, failedDetail)
	assert.Contains(t, failedDetail.Error, "panel hiccup")

	var active int64
	require.NoError(t, db.Model(&models.LiveStream{}).Where("active = ?", true).Count(&active).Error)
	assert.Equal(t, int64(2), active)
}

func TestCatalogService_VodTmdbSeedAndRepair(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	ctx := context.Background()

	panel := authenticatedPanel()
	panel.vod = []xtream.VODStream{
		{StreamID: 201, Name: "Heat (1995)", ContainerExtension: "mkv", TMDBId: 949},
	}

	svc := newTestCatalogService(db, panel, config.CatalogConfig{AutoSync: true})
	_, err := svc.SyncProvider(ctx, provider.ID)
	require.NoError(t, err)

	// The panel-supplied tmdb id seeds the new row.
	var row models.VodStream
	require.NoError(t, db.Where("ext_id = ?", 201).First(&row).Error)
	require.NotNil(t, row.TmdbID)
	assert.Equal(t, int64(949), *row.TmdbID)

	row.TmdbTitle = "Heat"
	row.MarkSynced(time.Now())
	require.NoError(t, repository.NewVodStreamRepository(db).Update(ctx, &row))

	// The panel renumbers the title. The stored row adopts the new panel
	// id instead of spawning an unenriched duplicate.
	panel.vod = []xtream.VODStream{
		{StreamID: 999, Name: "Heat (1995)", ContainerExtension: "mkv", TMDBId: 949},
	}
	_, err = svc.SyncProvider(ctx, provider.ID)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.VodStream{}).Where("provider_id = ?", provider.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var repaired models.VodStream
	require.NoError(t, db.Where("ext_id = ?", 999).First(&repaired).Error)
	assert.Equal(t, row.ID, repaired.ID)
	assert.Equal(t, models.MetadataSynced, repaired.TmdbStatus)
	assert.Equal(t, "Heat", repaired.TmdbTitle)
}

func TestCatalogService_SyncProviderAuthFailure(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	ctx := context.Background()

	panel := &fakePanel{auth: xtream.AuthInfo{UserInfo: xtream.UserInfo{Auth: 0, Status: "Expired"}}}
	svc := newTestCatalogService(db, panel, config.CatalogConfig{AutoSync: true})

	_, err := svc.SyncProvider(ctx, provider.ID)
	require.Error(t, err)
	assert.Equal(t, fetch.KindAuth, fetch.KindOf(err))

	schedule, err := repository.NewProviderSyncConfigRepository(db).GetByProviderID(ctx, provider.ID)
	require.NoError(t, err)
	require.NotNil(t, schedule)
	assert.Equal(t, "failed", schedule.LastStatus)
}

func TestCatalogService_SyncSeriesEpisodes(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	ctx := context.Background()

	seriesRepo := repository.NewSeriesRepository(db)
	item := &models.SeriesItem{
		ProviderID: provider.ID,
		ExtID:      301,
		Name:       "The Wire",
		Active:     models.BoolPtr(true),
	}
	require.NoError(t, seriesRepo.UpsertBatch(ctx, []*models.SeriesItem{item}))

	var row models.SeriesItem
	require.NoError(t, db.Where("ext_id = ?", 301).First(&row).Error)

	panel := authenticatedPanel()
	panel.seriesInfo = map[int64]*xtream.SeriesInfo{
		301: {
			Seasons: []xtream.SeasonInfo{
				{SeasonNumber: 1, Name: "Season 1", EpisodeCount: 2, AirDate: "2002-06-02"},
			},
			Episodes: map[string][]xtream.Episode{
				"1": {
					{ID: 9001, EpisodeNum: 1, Title: "The Target", ContainerExtension: "mkv"},
					{ID: 9002, EpisodeNum: 2, Title: "The Detail"},
				},
				// Season implied only by the episode map.
				"2": {
					{ID: 9003, EpisodeNum: 1, Title: "Ebb Tide"},
				},
			},
		},
	}

	svc := newTestCatalogService(db, panel, config.CatalogConfig{AutoSync: true})
	result, err := svc.SyncSeriesEpisodes(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Seasons)
	assert.Equal(t, 3, result.Episodes)

	seasons, err := seriesRepo.GetSeasons(ctx, row.ID)
	require.NoError(t, err)
	require.Len(t, seasons, 2)
	assert.Equal(t, 1, seasons[0].Number)
	require.NotNil(t, seasons[0].AirDate)

	episodes, err := seriesRepo.GetEpisodes(ctx, seasons[0].ID)
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, "The Target", episodes[0].Title)
}

func TestCatalogService_SyncDue(t *testing.T) {
	db := setupServiceDB(t)
	provider := createTestProvider(t, db)
	ctx := context.Background()

	panel := authenticatedPanel()
	svc := newTestCatalogService(db, panel, config.CatalogConfig{
		AutoSync:               true,
		DefaultIntervalMinutes: 60,
	})

	base := time.Now()
	svc.now = func() time.Time { return base }
	require.NoError(t, svc.SyncDue(ctx))

	schedules := repository.NewProviderSyncConfigRepository(db)
	schedule, err := schedules.GetByProviderID(ctx, provider.ID)
	require.NoError(t, err)
	require.NotNil(t, schedule)
	assert.Equal(t, 60, schedule.IntervalMinutes)
	require.NotNil(t, schedule.LastRunAt)
	firstRun := *schedule.LastRunAt

	// Not due yet: nothing changes.
	svc.now = func() time.Time { return base.Add(30 * time.Minute) }
	require.NoError(t, svc.SyncDue(ctx))
	schedule, err = schedules.GetByProviderID(ctx, provider.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, firstRun, *schedule.LastRunAt, time.Second)

	// Past the interval the provider syncs again.
	svc.now = func() time.Time { return base.Add(61 * time.Minute) }
	require.NoError(t, svc.SyncDue(ctx))
	schedule, err = schedules.GetByProviderID(ctx, provider.ID)
	require.NoError(t, err)
	assert.True(t, schedule.LastRunAt.After(firstRun))
}

func TestCatalogService_AutoSyncDisabled(t *testing.T) {
	db := setupServiceDB(t)
	createTestProvider(t, db)

	svc := newTestCatalogService(db, authenticatedPanel(), config.CatalogConfig{AutoSync: false})
	require.NoError(t, svc.SyncDue(context.Background()))

	schedules, err := repository.NewProviderSyncConfigRepository(db).GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, schedules)
}
