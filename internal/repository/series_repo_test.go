package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/reybeld94/mediarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSeriesTestDB(t *testing.T) (*gorm.DB, models.ULID) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Provider{}, &models.SeriesItem{}, &models.Season{}, &models.Episode{})
	require.NoError(t, err)

	provider := &models.Provider{Name: "Panel", URL: "http://p.example.com", Username: "u", Password: "p"}
	require.NoError(t, db.Create(provider).Error)

	return db, provider.ID
}

func TestSeriesRepo_UpsertBatch(t *testing.T) {
	db, providerID := setupSeriesTestDB(t)
	repo := NewSeriesRepository(db)
	ctx := context.Background()

	item := &models.SeriesItem{ProviderID: providerID, ExtID: 10, Name: "Breaking Bad", Active: models.BoolPtr(true)}
	require.NoError(t, repo.UpsertBatch(ctx, []*models.SeriesItem{item}))

	require.NoError(t, repo.UpsertBatch(ctx, []*models.SeriesItem{
		{ProviderID: providerID, ExtID: 10, Name: "Breaking Bad", Rating: 9.5, Active: models.BoolPtr(true)},
	}))

	after, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.5, after.Rating)
}

func TestSeriesRepo_SeasonsAndEpisodes(t *testing.T) {
	db, providerID := setupSeriesTestDB(t)
	repo := NewSeriesRepository(db)
	ctx := context.Background()

	item := &models.SeriesItem{ProviderID: providerID, ExtID: 10, Name: "Breaking Bad", Active: models.BoolPtr(true)}
	require.NoError(t, repo.UpsertBatch(ctx, []*models.SeriesItem{item}))

	seasons := []*models.Season{
		{SeriesID: item.ID, Number: 2, Name: "Season 2", EpisodeCount: 13},
		{SeriesID: item.ID, Number: 1, Name: "Season 1", EpisodeCount: 7},
	}
	require.NoError(t, repo.UpsertSeasons(ctx, seasons))

	// Re-upserting a season updates in place.
	require.NoError(t, repo.UpsertSeasons(ctx, []*models.Season{
		{SeriesID: item.ID, Number: 1, Name: "Season 1", EpisodeCount: 7, CoverURL: "http://img.example.com/s1.jpg"},
	}))

	got, err := repo.GetSeasons(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, "http://img.example.com/s1.jpg", got[0].CoverURL)

	season1 := got[0]
	episodes := []*models.Episode{
		{SeasonID: season1.ID, ExtID: 1001, Number: 1, Title: "Pilot", ContainerExtension: "mkv"},
		{SeasonID: season1.ID, ExtID: 1002, Number: 2, Title: "Cat's in the Bag...", ContainerExtension: "mkv"},
	}
	require.NoError(t, repo.UpsertEpisodes(ctx, episodes))

	require.NoError(t, repo.UpsertEpisodes(ctx, []*models.Episode{
		{SeasonID: season1.ID, ExtID: 1001, Number: 1, Title: "Pilot", DurationSeconds: 3480},
	}))

	eps, err := repo.GetEpisodes(ctx, season1.ID)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, 3480, eps[0].DurationSeconds)
}

func TestSeriesRepo_DeactivateMissing(t *testing.T) {
	db, providerID := setupSeriesTestDB(t)
	repo := NewSeriesRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, []*models.SeriesItem{
		{ProviderID: providerID, ExtID: 1, Name: "Keep", Active: models.BoolPtr(true)},
		{ProviderID: providerID, ExtID: 2, Name: "Drop", Active: models.BoolPtr(true)},
	}))

	n, err := repo.DeactivateMissing(ctx, providerID, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	candidates, err := repo.GetEnrichmentCandidates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Keep", candidates[0].Name)
}
