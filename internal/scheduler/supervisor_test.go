package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reybeld94/mediarr/internal/config"
	"github.com/reybeld94/mediarr/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeCatalog) SyncDue(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGuide struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeGuide) SyncAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

type fakeMetadata struct {
	mu     sync.Mutex
	calls  int
	result *service.EnrichmentResult
	err    error
}

func (f *fakeMetadata) RunOnce(ctx context.Context) (*service.EnrichmentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeMetadata) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSweeper struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSweeper) RefreshExpired(ctx context.Context) (*service.CollectionRefreshResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &service.CollectionRefreshResult{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Catalog:     config.CatalogConfig{AutoSync: true, TickInterval: 10 * time.Millisecond},
		Epg:         config.EpgConfig{AutoSync: true, IntervalMinutes: 360},
		Tmdb:        config.TmdbConfig{AutoSync: true, IntervalMinutes: 10, IdleMinutes: 15},
		Collections: config.CollectionsConfig{RefreshInterval: 10 * time.Minute},
	}
}

func newTestSupervisor(cfg *config.Config, catalog *fakeCatalog, metadata *fakeMetadata) *Supervisor {
	return NewSupervisor(catalog, &fakeGuide{}, metadata, &fakeSweeper{}, cfg)
}

func TestSupervisor_StartStop(t *testing.T) {
	catalog := &fakeCatalog{}
	sup := newTestSupervisor(testConfig(), catalog, &fakeMetadata{result: &service.EnrichmentResult{}})

	require.NoError(t, sup.Start(context.Background()))
	assert.Error(t, sup.Start(context.Background()))

	status := sup.Status()
	assert.True(t, status.Running)
	assert.Equal(t, []string{loopCatalog, loopEpg, loopMetadata, loopCollections}, status.Loops)

	// The 10ms catalog tick fires on its own.
	require.Eventually(t, func() bool {
		return catalog.callCount() > 0
	}, 5*time.Second, 10*time.Millisecond)

	sup.Stop()
	assert.False(t, sup.Status().Running)

	// Stop is idempotent and Start works again after it.
	sup.Stop()
	require.NoError(t, sup.Start(context.Background()))
	sup.Stop()
}

func TestSupervisor_DisabledLoopsNotRegistered(t *testing.T) {
	cfg := testConfig()
	cfg.Epg.AutoSync = false
	cfg.Tmdb.AutoSync = false
	cfg.Catalog.TickInterval = time.Minute

	sup := newTestSupervisor(cfg, &fakeCatalog{}, &fakeMetadata{})
	require.NoError(t, sup.Start(context.Background()))
	defer sup.Stop()

	assert.Equal(t, []string{loopCatalog, loopCollections}, sup.Status().Loops)
}

func TestSupervisor_MetadataIdlesWhenDisabled(t *testing.T) {
	metadata := &fakeMetadata{err: service.ErrEnrichmentDisabled}
	sup := newTestSupervisor(testConfig(), &fakeCatalog{}, metadata)
	sup.ctx = context.Background()

	require.NoError(t, sup.runMetadata(sup.ctx))
	assert.Equal(t, 1, metadata.callCount())
	assert.True(t, sup.Status().MetadataIdle)

	// Idle ticks never reach the service.
	require.NoError(t, sup.runMetadata(sup.ctx))
	assert.Equal(t, 1, metadata.callCount())

	// Past the idle window the loop runs again.
	sup.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	require.NoError(t, sup.runMetadata(sup.ctx))
	assert.Equal(t, 2, metadata.callCount())
}

func TestSupervisor_MetadataIdlesOnEmptyBatch(t *testing.T) {
	metadata := &fakeMetadata{result: &service.EnrichmentResult{}}
	sup := newTestSupervisor(testConfig(), &fakeCatalog{}, metadata)
	sup.ctx = context.Background()

	require.NoError(t, sup.runMetadata(sup.ctx))
	assert.True(t, sup.Status().MetadataIdle)

	status := sup.Status()
	require.NotNil(t, status.LastEnrichment)
	require.NotNil(t, status.LastEnrichmentAt)
}

func TestSupervisor_MetadataStaysHotWhileWorking(t *testing.T) {
	metadata := &fakeMetadata{result: &service.EnrichmentResult{Synced: 3}}
	sup := newTestSupervisor(testConfig(), &fakeCatalog{}, metadata)
	sup.ctx = context.Background()

	require.NoError(t, sup.runMetadata(sup.ctx))
	assert.False(t, sup.Status().MetadataIdle)
	require.NoError(t, sup.runMetadata(sup.ctx))
	assert.Equal(t, 2, metadata.callCount())
}

func TestSupervisor_RunMetadataOnce(t *testing.T) {
	metadata := &fakeMetadata{result: &service.EnrichmentResult{}}
	sup := newTestSupervisor(testConfig(), &fakeCatalog{}, metadata)

	// A manual run clears an idle backoff.
	sup.idle()
	require.True(t, sup.Status().MetadataIdle)

	result, err := sup.RunMetadataOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, sup.Status().MetadataIdle)

	// A concurrent run is refused while the loop flag is held.
	require.True(t, sup.tryAcquire(loopMetadata))
	_, err = sup.RunMetadataOnce(context.Background())
	assert.Error(t, err)
	sup.release(loopMetadata)
}

func TestSupervisor_TickRecoversPanics(t *testing.T) {
	sup := newTestSupervisor(testConfig(), &fakeCatalog{}, &fakeMetadata{})
	sup.ctx = context.Background()

	assert.NotPanics(t, func() {
		sup.tick("boom", func(ctx context.Context) error {
			panic("loop exploded")
		})
	})

	// The in-flight flag is released even after a panic.
	assert.True(t, sup.tryAcquire("boom"))
	sup.release("boom")
}

func TestSupervisor_TickSkipsWhileRunning(t *testing.T) {
	catalog := &fakeCatalog{}
	sup := newTestSupervisor(testConfig(), catalog, &fakeMetadata{})
	sup.ctx = context.Background()

	require.True(t, sup.tryAcquire(loopCatalog))
	sup.tick(loopCatalog, func(ctx context.Context) error {
		return catalog.SyncDue(ctx)
	})
	assert.Equal(t, 0, catalog.callCount())
	sup.release(loopCatalog)

	sup.tick(loopCatalog, func(ctx context.Context) error {
		return catalog.SyncDue(ctx)
	})
	assert.Equal(t, 1, catalog.callCount())
}
