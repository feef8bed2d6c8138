// Package repository defines data access interfaces for mediarr entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/reybeld94/mediarr/internal/models"
)

// ProviderRepository defines operations for provider persistence.
type ProviderRepository interface {
	// Create creates a new provider.
	Create(ctx context.Context, provider *models.Provider) error
	// GetByID retrieves a provider by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.Provider, error)
	// GetAll retrieves all providers.
	GetAll(ctx context.Context) ([]*models.Provider, error)
	// GetActive retrieves all active providers.
	GetActive(ctx context.Context) ([]*models.Provider, error)
	// GetByName retrieves a provider by name.
	GetByName(ctx context.Context, name string) (*models.Provider, error)
	// Update updates an existing provider.
	Update(ctx context.Context, provider *models.Provider) error
	// Delete deletes a provider by ID.
	Delete(ctx context.Context, id models.ULID) error
}

// ProviderUserRepository defines operations for provider user persistence.
type ProviderUserRepository interface {
	// CreateWithCode creates a user, generating a fresh access code and
	// retrying on code collision.
	CreateWithCode(ctx context.Context, user *models.ProviderUser) error
	// GetByCode retrieves a user by access code.
	GetByCode(ctx context.Context, code string) (*models.ProviderUser, error)
	// GetByProviderID retrieves all users of a provider.
	GetByProviderID(ctx context.Context, providerID models.ULID) ([]*models.ProviderUser, error)
	// GetAdmin retrieves the provider's playback account, if any.
	GetAdmin(ctx context.Context, providerID models.ULID) (*models.ProviderUser, error)
	// Update updates an existing user.
	Update(ctx context.Context, user *models.ProviderUser) error
	// Delete deletes a user by ID.
	Delete(ctx context.Context, id models.ULID) error
}

// ProviderSyncConfigRepository defines operations for per-provider catalog
// sync schedules.
type ProviderSyncConfigRepository interface {
	// GetByProviderID retrieves the schedule for a provider.
	GetByProviderID(ctx context.Context, providerID models.ULID) (*models.ProviderAutoSyncConfig, error)
	// GetAll retrieves all schedules.
	GetAll(ctx context.Context) ([]*models.ProviderAutoSyncConfig, error)
	// Upsert creates or replaces the schedule for a provider.
	Upsert(ctx context.Context, config *models.ProviderAutoSyncConfig) error
	// MarkRun records the outcome of a sync run.
	MarkRun(ctx context.Context, providerID models.ULID, status, detail string, at time.Time) error
}

// CategoryRepository defines operations for category persistence.
type CategoryRepository interface {
	// UpsertBatch creates or updates categories on (provider_id, kind, ext_id).
	UpsertBatch(ctx context.Context, categories []*models.Category) error
	// DeactivateMissing deactivates active categories of a provider and kind
	// whose ext_id is not in keep. Returns the number of rows deactivated.
	DeactivateMissing(ctx context.Context, providerID models.ULID, kind models.CategoryKind, keep []string) (int64, error)
	// GetByProvider retrieves a provider's categories of one kind.
	GetByProvider(ctx context.Context, providerID models.ULID, kind models.CategoryKind) ([]*models.Category, error)
	// GetByID retrieves a category by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.Category, error)
}

// LiveStreamRepository defines operations for live stream persistence.
type LiveStreamRepository interface {
	// UpsertBatch creates or updates streams on (provider_id, ext_id),
	// leaving curation fields (approval, custom logo, EPG binding,
	// failover alternates) untouched on update.
	UpsertBatch(ctx context.Context, streams []*models.LiveStream) error
	// DeactivateMissing deactivates active streams of a provider whose
	// ext_id is not in keep. Returns the number of rows deactivated.
	DeactivateMissing(ctx context.Context, providerID models.ULID, keep []int64) (int64, error)
	// GetByID retrieves a stream by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.LiveStream, error)
	// GetByProviderID retrieves all streams of a provider.
	GetByProviderID(ctx context.Context, providerID models.ULID) ([]*models.LiveStream, error)
	// GetUnbound retrieves a provider's active streams without an EPG
	// binding, optionally restricted to approved streams.
	GetUnbound(ctx context.Context, providerID models.ULID, approvedOnly bool) ([]*models.LiveStream, error)
	// Update updates an existing stream.
	Update(ctx context.Context, stream *models.LiveStream) error
	// CountActive returns the number of active streams of a provider.
	CountActive(ctx context.Context, providerID models.ULID) (int64, error)
}

// VodStreamRepository defines operations for VOD stream persistence.
type VodStreamRepository interface {
	// UpsertBatch creates or updates titles on (provider_id, ext_id),
	// leaving enrichment state untouched on update.
	UpsertBatch(ctx context.Context, streams []*models.VodStream) error
	// DeactivateMissing deactivates active titles of a provider whose
	// ext_id is not in keep. Returns the number of rows deactivated.
	DeactivateMissing(ctx context.Context, providerID models.ULID, keep []int64) (int64, error)
	// GetByID retrieves a title by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.VodStream, error)
	// GetEnrichmentCandidates retrieves active titles ordered by least
	// recently synced first (never-synced rows lead).
	GetEnrichmentCandidates(ctx context.Context, limit int) ([]*models.VodStream, error)
	// GetByProviderAndTmdbID retrieves a provider's titles resolved to one
	// upstream id, most recently created first.
	GetByProviderAndTmdbID(ctx context.Context, providerID models.ULID, tmdbID int64) ([]*models.VodStream, error)
	// GetExtIDs retrieves all stored panel ids of a provider's titles.
	GetExtIDs(ctx context.Context, providerID models.ULID) ([]int64, error)
	// GetSynced retrieves all active titles carrying hydrated metadata.
	GetSynced(ctx context.Context) ([]*models.VodStream, error)
	// GetByTmdbID retrieves active synced titles resolved to an upstream id
	// across all providers.
	GetByTmdbID(ctx context.Context, tmdbID int64) ([]*models.VodStream, error)
	// Update updates an existing title.
	Update(ctx context.Context, stream *models.VodStream) error
	// Delete deletes a title by ID.
	Delete(ctx context.Context, id models.ULID) error
	// CountByStatus returns the number of active titles per metadata status.
	CountByStatus(ctx context.Context) (map[models.MetadataStatus]int64, error)
}

// SeriesRepository defines operations for series persistence, including
// seasons and episodes.
type SeriesRepository interface {
	// UpsertBatch creates or updates series on (provider_id, ext_id),
	// leaving enrichment state untouched on update.
	UpsertBatch(ctx context.Context, items []*models.SeriesItem) error
	// DeactivateMissing deactivates active series of a provider whose
	// ext_id is not in keep. Returns the number of rows deactivated.
	DeactivateMissing(ctx context.Context, providerID models.ULID, keep []int64) (int64, error)
	// GetByID retrieves a series by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.SeriesItem, error)
	// GetEnrichmentCandidates retrieves active series ordered by least
	// recently synced first (never-synced rows lead).
	GetEnrichmentCandidates(ctx context.Context, limit int) ([]*models.SeriesItem, error)
	// GetByProviderAndTmdbID retrieves a provider's series resolved to one
	// upstream id, most recently created first.
	GetByProviderAndTmdbID(ctx context.Context, providerID models.ULID, tmdbID int64) ([]*models.SeriesItem, error)
	// GetSynced retrieves all active series carrying hydrated metadata.
	GetSynced(ctx context.Context) ([]*models.SeriesItem, error)
	// GetByTmdbID retrieves active synced series resolved to an upstream id
	// across all providers.
	GetByTmdbID(ctx context.Context, tmdbID int64) ([]*models.SeriesItem, error)
	// Update updates an existing series.
	Update(ctx context.Context, item *models.SeriesItem) error
	// Delete deletes a series by ID.
	Delete(ctx context.Context, id models.ULID) error
	// CountByStatus returns the number of active series per metadata status.
	CountByStatus(ctx context.Context) (map[models.MetadataStatus]int64, error)
	// UpsertSeasons creates or updates seasons on (series_id, number).
	UpsertSeasons(ctx context.Context, seasons []*models.Season) error
	// UpsertEpisodes creates or updates episodes on (season_id, ext_id).
	UpsertEpisodes(ctx context.Context, episodes []*models.Episode) error
	// GetSeasons retrieves a series' seasons ordered by number.
	GetSeasons(ctx context.Context, seriesID models.ULID) ([]*models.Season, error)
	// GetEpisodes retrieves a season's episodes ordered by number.
	GetEpisodes(ctx context.Context, seasonID models.ULID) ([]*models.Episode, error)
}

// EpgSourceRepository defines operations for EPG source persistence.
type EpgSourceRepository interface {
	// Create creates a new EPG source.
	Create(ctx context.Context, source *models.EpgSource) error
	// GetByID retrieves an EPG source by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.EpgSource, error)
	// GetAll retrieves all EPG sources.
	GetAll(ctx context.Context) ([]*models.EpgSource, error)
	// GetActive retrieves all active EPG sources.
	GetActive(ctx context.Context) ([]*models.EpgSource, error)
	// Update updates an existing EPG source.
	Update(ctx context.Context, source *models.EpgSource) error
	// Delete deletes an EPG source by ID.
	Delete(ctx context.Context, id models.ULID) error
}

// EpgChannelRepository defines operations for guide channel persistence.
type EpgChannelRepository interface {
	// UpsertBatch creates or updates channels on (epg_source_id, xmltv_id).
	UpsertBatch(ctx context.Context, channels []*models.EpgChannel) error
	// GetBySourceID retrieves all channels of a source.
	GetBySourceID(ctx context.Context, sourceID models.ULID) ([]*models.EpgChannel, error)
	// GetByXmltvID retrieves a channel by source and document id.
	GetByXmltvID(ctx context.Context, sourceID models.ULID, xmltvID string) (*models.EpgChannel, error)
	// DeleteBySourceID deletes all channels of a source.
	DeleteBySourceID(ctx context.Context, sourceID models.ULID) error
}

// EpgProgramRepository defines operations for programme persistence.
type EpgProgramRepository interface {
	// CreateInBatches creates programmes in batches for memory efficiency.
	CreateInBatches(ctx context.Context, programs []*models.EpgProgram, batchSize int) error
	// DeleteBySourceID deletes all programmes of a source. Returns the
	// number of rows deleted.
	DeleteBySourceID(ctx context.Context, sourceID models.ULID) (int64, error)
	// CountBySourceID returns the number of programmes of a source.
	CountBySourceID(ctx context.Context, sourceID models.ULID) (int64, error)
	// GetByChannel retrieves a channel's programmes overlapping [from, to),
	// ordered by start time.
	GetByChannel(ctx context.Context, channelID models.ULID, from, to time.Time) ([]*models.EpgProgram, error)
}

// TmdbConfigRepository defines operations for the metadata service
// configuration singleton.
type TmdbConfigRepository interface {
	// Get retrieves the configuration row, nil when unconfigured.
	Get(ctx context.Context) (*models.TmdbConfig, error)
	// Upsert creates or replaces the configuration row.
	Upsert(ctx context.Context, config *models.TmdbConfig) error
}

// CollectionRepository defines operations for collection persistence.
type CollectionRepository interface {
	// Create creates a new collection.
	Create(ctx context.Context, collection *models.Collection) error
	// GetByID retrieves a collection by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.Collection, error)
	// GetBySlug retrieves a collection by slug.
	GetBySlug(ctx context.Context, slug string) (*models.Collection, error)
	// GetAll retrieves all collections in display order.
	GetAll(ctx context.Context) ([]*models.Collection, error)
	// GetEnabled retrieves enabled collections in display order.
	GetEnabled(ctx context.Context) ([]*models.Collection, error)
	// Update updates an existing collection.
	Update(ctx context.Context, collection *models.Collection) error
	// Delete deletes a collection by ID.
	Delete(ctx context.Context, id models.ULID) error
}

// CollectionCacheRepository defines operations for cached collection pages.
type CollectionCacheRepository interface {
	// GetPage retrieves the cached page of a collection.
	GetPage(ctx context.Context, collectionID models.ULID, page int) (*models.CollectionCache, error)
	// ListPages retrieves the cached page numbers of a collection in order.
	ListPages(ctx context.Context, collectionID models.ULID) ([]int, error)
	// UpsertPage creates or replaces the cached page on (collection_id, page).
	UpsertPage(ctx context.Context, cache *models.CollectionCache) error
	// DeleteByCollectionID deletes all cached pages of a collection.
	DeleteByCollectionID(ctx context.Context, collectionID models.ULID) error
}
