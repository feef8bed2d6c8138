package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/reybeld94/mediarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupVodStreamTestDB(t *testing.T) (*gorm.DB, models.ULID) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Provider{}, &models.VodStream{})
	require.NoError(t, err)

	provider := &models.Provider{Name: "Panel", URL: "http://p.example.com", Username: "u", Password: "p"}
	require.NoError(t, db.Create(provider).Error)

	return db, provider.ID
}

func TestVodStreamRepo_UpsertBatch_PreservesEnrichment(t *testing.T) {
	db, providerID := setupVodStreamTestDB(t)
	repo := NewVodStreamRepository(db)
	ctx := context.Background()

	stream := &models.VodStream{
		ProviderID: providerID,
		ExtID:      500,
		Name:       "Dune (2021)",
		Active:     models.BoolPtr(true),
	}
	require.NoError(t, repo.UpsertBatch(ctx, []*models.VodStream{stream}))

	// Hydrate metadata out of band.
	stored, err := repo.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	id := int64(438631)
	stored.TmdbID = &id
	stored.TmdbTitle = "Dune"
	stored.MarkSynced(time.Now())
	require.NoError(t, repo.Update(ctx, stored))

	// A fresh panel listing bumps the rating.
	require.NoError(t, repo.UpsertBatch(ctx, []*models.VodStream{{
		ProviderID: providerID,
		ExtID:      500,
		Name:       "Dune (2021)",
		Rating:     8.1,
		Active:     models.BoolPtr(true),
	}}))

	after, err := repo.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, 8.1, after.Rating)
	require.NotNil(t, after.TmdbID)
	assert.Equal(t, int64(438631), *after.TmdbID)
	assert.Equal(t, models.MetadataSynced, after.TmdbStatus)
}

func TestVodStreamRepo_GetEnrichmentCandidates_Order(t *testing.T) {
	db, providerID := setupVodStreamTestDB(t)
	repo := NewVodStreamRepository(db)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-1 * time.Hour)

	never := &models.VodStream{ProviderID: providerID, ExtID: 1, Name: "Never", Active: models.BoolPtr(true)}
	stale := &models.VodStream{ProviderID: providerID, ExtID: 2, Name: "Stale", Active: models.BoolPtr(true)}
	stale.TmdbLastSync = &old
	fresh := &models.VodStream{ProviderID: providerID, ExtID: 3, Name: "Fresh", Active: models.BoolPtr(true)}
	fresh.TmdbLastSync = &recent
	inactive := &models.VodStream{ProviderID: providerID, ExtID: 4, Name: "Inactive"}

	require.NoError(t, repo.UpsertBatch(ctx, []*models.VodStream{fresh, stale, never, inactive}))
	require.NoError(t, db.Model(inactive).UpdateColumn("active", false).Error)

	candidates, err := repo.GetEnrichmentCandidates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, "Never", candidates[0].Name)
	assert.Equal(t, "Stale", candidates[1].Name)
	assert.Equal(t, "Fresh", candidates[2].Name)
}

func TestVodStreamRepo_GetEnrichmentCandidates_Limit(t *testing.T) {
	db, providerID := setupVodStreamTestDB(t)
	repo := NewVodStreamRepository(db)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, repo.UpsertBatch(ctx, []*models.VodStream{
			{ProviderID: providerID, ExtID: i, Name: "Movie", Active: models.BoolPtr(true)},
		}))
	}

	candidates, err := repo.GetEnrichmentCandidates(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func TestVodStreamRepo_GetByProviderAndTmdbID(t *testing.T) {
	db, providerID := setupVodStreamTestDB(t)
	repo := NewVodStreamRepository(db)
	ctx := context.Background()

	id := int64(603)
	first := &models.VodStream{ProviderID: providerID, ExtID: 1, Name: "The Matrix", Active: models.BoolPtr(true)}
	second := &models.VodStream{ProviderID: providerID, ExtID: 2, Name: "The Matrix (1999)", Active: models.BoolPtr(true)}
	require.NoError(t, repo.UpsertBatch(ctx, []*models.VodStream{first, second}))

	for _, s := range []*models.VodStream{first, second} {
		stored, err := repo.GetByID(ctx, s.ID)
		require.NoError(t, err)
		stored.TmdbID = &id
		require.NoError(t, repo.Update(ctx, stored))
	}
	// Force a later creation time on the second row so ordering is stable.
	require.NoError(t, db.Model(second).UpdateColumn("created_at", time.Now().Add(time.Minute)).Error)

	matches, err := repo.GetByProviderAndTmdbID(ctx, providerID, id)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, second.ID, matches[0].ID)

	require.NoError(t, repo.Delete(ctx, first.ID))
	matches, err = repo.GetByProviderAndTmdbID(ctx, providerID, id)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestVodStreamRepo_CountByStatus(t *testing.T) {
	db, providerID := setupVodStreamTestDB(t)
	repo := NewVodStreamRepository(db)
	ctx := context.Background()

	synced := &models.VodStream{ProviderID: providerID, ExtID: 1, Name: "Synced", Active: models.BoolPtr(true)}
	require.NoError(t, repo.UpsertBatch(ctx, []*models.VodStream{synced}))
	stored, err := repo.GetByID(ctx, synced.ID)
	require.NoError(t, err)
	stored.MarkSynced(time.Now())
	require.NoError(t, repo.Update(ctx, stored))

	require.NoError(t, repo.UpsertBatch(ctx, []*models.VodStream{
		{ProviderID: providerID, ExtID: 2, Name: "Missing A", Active: models.BoolPtr(true)},
		{ProviderID: providerID, ExtID: 3, Name: "Missing B", Active: models.BoolPtr(true)},
	}))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.MetadataSynced])
	assert.Equal(t, int64(2), counts[models.MetadataMissing])
}
