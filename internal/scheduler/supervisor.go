// Package scheduler runs the background loops: catalog sync, guide ingest,
// metadata enrichment and collection cache refresh.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/reybeld94/mediarr/internal/config"
	"github.com/reybeld94/mediarr/internal/service"
)

// Loop names, used for in-flight guards and status reporting.
const (
	loopCatalog     = "catalog"
	loopEpg         = "epg"
	loopMetadata    = "metadata"
	loopCollections = "collections"
)

// epgLoopFloor is the minimum guide loop interval.
const epgLoopFloor = time.Minute

// CatalogSyncer syncs every provider whose schedule is due.
type CatalogSyncer interface {
	SyncDue(ctx context.Context) error
}

// GuideSyncer ingests every active guide source.
type GuideSyncer interface {
	SyncAll(ctx context.Context) error
}

// MetadataRunner runs one enrichment batch.
type MetadataRunner interface {
	RunOnce(ctx context.Context) (*service.EnrichmentResult, error)
}

// CollectionSweeper refreshes expired collection pages.
type CollectionSweeper interface {
	RefreshExpired(ctx context.Context) (*service.CollectionRefreshResult, error)
}

// Status is a snapshot of the supervisor for the status endpoint.
type Status struct {
	Running          bool                      `json:"running"`
	Loops            []string                  `json:"loops"`
	MetadataIdle     bool                      `json:"metadata_idle"`
	MetadataIdleTo   *time.Time                `json:"metadata_idle_to,omitempty"`
	LastEnrichment   *service.EnrichmentResult `json:"last_enrichment,omitempty"`
	LastEnrichmentAt *time.Time                `json:"last_enrichment_at,omitempty"`
}

// Supervisor owns the periodic loops. Every loop tick is guarded by a
// per-loop in-flight flag so a slow run never stacks behind itself, and
// panics are contained to the tick that raised them.
type Supervisor struct {
	catalog     CatalogSyncer
	guide       GuideSyncer
	metadata    MetadataRunner
	collections CollectionSweeper
	cfg         *config.Config
	logger      *slog.Logger
	now         func() time.Time

	mu               sync.Mutex
	cron             *cron.Cron
	ctx              context.Context
	cancel           context.CancelFunc
	loops            []string
	inFlight         map[string]bool
	idleUntil        time.Time
	lastEnrichment   *service.EnrichmentResult
	lastEnrichmentAt *time.Time
}

// NewSupervisor creates a new supervisor.
func NewSupervisor(
	catalog CatalogSyncer,
	guide GuideSyncer,
	metadata MetadataRunner,
	collections CollectionSweeper,
	cfg *config.Config,
) *Supervisor {
	return &Supervisor{
		catalog:     catalog,
		guide:       guide,
		metadata:    metadata,
		collections: collections,
		cfg:         cfg,
		logger:      slog.Default(),
		now:         time.Now,
		inFlight:    make(map[string]bool),
	}
}

// WithLogger sets the logger for the supervisor.
func (s *Supervisor) WithLogger(logger *slog.Logger) *Supervisor {
	s.logger = logger
	return s
}

// Start registers the loops and starts the cron. Loops whose auto-sync is
// disabled are not registered; manual triggers still work through the
// services.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("supervisor already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New()
	s.loops = nil

	if s.cfg.Catalog.AutoSync {
		if err := s.register(loopCatalog, s.catalogTick(), func(ctx context.Context) error {
			return s.catalog.SyncDue(ctx)
		}); err != nil {
			return err
		}
	}
	if s.cfg.Epg.AutoSync {
		if err := s.register(loopEpg, s.epgInterval(), func(ctx context.Context) error {
			return s.guide.SyncAll(ctx)
		}); err != nil {
			return err
		}
	}
	if s.cfg.Tmdb.AutoSync {
		if err := s.register(loopMetadata, s.metadataInterval(), s.runMetadata); err != nil {
			return err
		}
	}
	if err := s.register(loopCollections, s.collectionsInterval(), func(ctx context.Context) error {
		_, err := s.collections.RefreshExpired(ctx)
		return err
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("supervisor started", "loops", s.loops)
	return nil
}

// Stop cancels the loops and waits for running ticks to drain.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.cron == nil {
		s.mu.Unlock()
		return
	}
	c := s.cron
	s.cron = nil
	s.cancel()
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info("supervisor stopped")
}

// Status returns a snapshot for the status endpoint.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:          s.cron != nil,
		Loops:            append([]string(nil), s.loops...),
		LastEnrichment:   s.lastEnrichment,
		LastEnrichmentAt: s.lastEnrichmentAt,
	}
	if s.now().Before(s.idleUntil) {
		st.MetadataIdle = true
		idleTo := s.idleUntil
		st.MetadataIdleTo = &idleTo
	}
	return st
}

// RunMetadataOnce runs one enrichment batch outside the schedule, sharing
// the loop's in-flight guard, and clears any idle backoff.
func (s *Supervisor) RunMetadataOnce(ctx context.Context) (*service.EnrichmentResult, error) {
	if !s.tryAcquire(loopMetadata) {
		return nil, fmt.Errorf("an enrichment run is already in progress")
	}
	defer s.release(loopMetadata)

	s.mu.Lock()
	s.idleUntil = time.Time{}
	s.mu.Unlock()

	result, err := s.metadata.RunOnce(ctx)
	if err != nil {
		return nil, err
	}
	s.recordEnrichment(result)
	return result, nil
}

// register adds one guarded loop entry to the cron.
func (s *Supervisor) register(name string, every time.Duration, run func(ctx context.Context) error) error {
	spec := fmt.Sprintf("@every %s", every)
	if _, err := s.cron.AddFunc(spec, func() { s.tick(name, run) }); err != nil {
		return fmt.Errorf("registering %s loop: %w", name, err)
	}
	s.loops = append(s.loops, name)
	s.logger.Debug("loop registered", "loop", name, "every", every)
	return nil
}

// tick runs one loop iteration under the in-flight guard.
func (s *Supervisor) tick(name string, run func(ctx context.Context) error) {
	if !s.tryAcquire(name) {
		s.logger.Debug("loop tick skipped, previous run still active", "loop", name)
		return
	}
	defer s.release(name)

	runID := uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("loop tick panicked",
				"loop", name,
				"run_id", runID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	start := s.now()
	if err := run(s.ctx); err != nil {
		s.logger.Error("loop tick failed",
			"loop", name,
			"run_id", runID,
			"error", err,
			"duration", s.now().Sub(start),
		)
		return
	}
	s.logger.Debug("loop tick completed",
		"loop", name,
		"run_id", runID,
		"duration", s.now().Sub(start),
	)
}

// runMetadata is the scheduled enrichment tick. A disabled config or an
// empty batch idles the loop so the database is not polled pointlessly.
func (s *Supervisor) runMetadata(ctx context.Context) error {
	s.mu.Lock()
	idle := s.now().Before(s.idleUntil)
	s.mu.Unlock()
	if idle {
		return nil
	}

	result, err := s.metadata.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, service.ErrEnrichmentDisabled) {
			s.idle()
			return nil
		}
		return err
	}
	s.recordEnrichment(result)
	if result.Processed() == 0 {
		s.idle()
	}
	return nil
}

func (s *Supervisor) idle() {
	idleFor := time.Duration(s.cfg.Tmdb.IdleMinutes) * time.Minute
	if idleFor <= 0 {
		return
	}
	until := s.now().Add(idleFor)
	s.mu.Lock()
	s.idleUntil = until
	s.mu.Unlock()
	s.logger.Debug("metadata loop idling", "until", until)
}

func (s *Supervisor) recordEnrichment(result *service.EnrichmentResult) {
	at := s.now()
	s.mu.Lock()
	s.lastEnrichment = result
	s.lastEnrichmentAt = &at
	s.mu.Unlock()
}

func (s *Supervisor) tryAcquire(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[name] {
		return false
	}
	s.inFlight[name] = true
	return true
}

func (s *Supervisor) release(name string) {
	s.mu.Lock()
	delete(s.inFlight, name)
	s.mu.Unlock()
}

func (s *Supervisor) catalogTick() time.Duration {
	if s.cfg.Catalog.TickInterval > 0 {
		return s.cfg.Catalog.TickInterval
	}
	return config.DefaultCatalogTick
}

func (s *Supervisor) epgInterval() time.Duration {
	interval := time.Duration(s.cfg.Epg.IntervalMinutes) * time.Minute
	if interval < epgLoopFloor {
		return epgLoopFloor
	}
	return interval
}

func (s *Supervisor) metadataInterval() time.Duration {
	minutes := s.cfg.Tmdb.IntervalMinutes
	if minutes < 1 {
		minutes = config.DefaultTmdbIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (s *Supervisor) collectionsInterval() time.Duration {
	if s.cfg.Collections.RefreshInterval > 0 {
		return s.cfg.Collections.RefreshInterval
	}
	return config.DefaultCollectionsRefreshInterval
}
