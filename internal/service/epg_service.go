package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/reybeld94/mediarr/internal/config"
	"github.com/reybeld94/mediarr/internal/matcher"
	"github.com/reybeld94/mediarr/internal/models"
	"github.com/reybeld94/mediarr/internal/repository"
	"github.com/reybeld94/mediarr/pkg/fetch"
	"github.com/reybeld94/mediarr/pkg/tmdb"
	"github.com/reybeld94/mediarr/pkg/xmltv"
)

// Guide ingest bounds.
const (
	// epgLookbackHours keeps recently ended programmes so "what just
	// played" views stay answerable.
	epgLookbackHours = 6
	// epgWindowMinHours and epgWindowMaxHours clamp the configured
	// forward window.
	epgWindowMinHours = 1
	epgWindowMaxHours = 168
	// epgProgramBatchSize is the insert batch size for programme rows.
	epgProgramBatchSize = 1000
	// epgDownloadTimeout bounds one guide document download.
	epgDownloadTimeout = 60 * time.Second
)

// EpgSyncOptions tunes one guide ingest. Zero-valued fields fall back to
// the service configuration.
type EpgSyncOptions struct {
	// Hours overrides the configured forward window when positive,
	// clamped to [1, 168].
	Hours int
	// AutoMatchProviderID restricts auto-matching to one provider.
	// When nil every active provider is considered.
	AutoMatchProviderID *models.ULID
	// ApprovedOnly limits auto-matching to approved streams.
	ApprovedOnly bool
	// MinScore overrides the configured match threshold when positive.
	MinScore float64
}

// EpgSyncResult summarizes one guide source ingest.
type EpgSyncResult struct {
	SourceID  models.ULID   `json:"source_id"`
	Channels  int           `json:"channels"`
	Programs  int           `json:"programs"`
	Dropped   int           `json:"dropped"`
	Enriched  int           `json:"enriched"`
	Matched   int           `json:"matched"`
	Purged    int64         `json:"purged"`
	Duration  time.Duration `json:"duration"`
}

// EpgService ingests XMLTV guide sources. Each ingest replaces the source's
// programmes wholesale within a bounded time window, optionally backfills
// missing descriptions from enriched catalog metadata, and can auto-bind
// unmapped live streams to guide channels by fuzzy name match.
type EpgService struct {
	sources     repository.EpgSourceRepository
	channels    repository.EpgChannelRepository
	programs    repository.EpgProgramRepository
	liveStreams repository.LiveStreamRepository
	providers   repository.ProviderRepository
	vodStreams  repository.VodStreamRepository
	series      repository.SeriesRepository
	cfg         config.EpgConfig
	logger      *slog.Logger
	now         func() time.Time

	// download fetches a guide document; replaced in tests.
	download func(ctx context.Context, url string) (io.ReadCloser, error)

	// mu guards locks; one mutex per source serializes its ingests.
	mu    sync.Mutex
	locks map[models.ULID]*sync.Mutex
}

// NewEpgService creates a new EPG service.
func NewEpgService(
	sources repository.EpgSourceRepository,
	channels repository.EpgChannelRepository,
	programs repository.EpgProgramRepository,
	liveStreams repository.LiveStreamRepository,
	providers repository.ProviderRepository,
	vodStreams repository.VodStreamRepository,
	series repository.SeriesRepository,
	cfg config.EpgConfig,
) *EpgService {
	return &EpgService{
		sources:     sources,
		channels:    channels,
		programs:    programs,
		liveStreams: liveStreams,
		providers:   providers,
		vodStreams:  vodStreams,
		series:      series,
		cfg:         cfg,
		logger:      slog.Default(),
		now:         time.Now,
		download:    downloadToTemp,
		locks:       make(map[models.ULID]*sync.Mutex),
	}
}

// WithLogger sets the logger for the service.
func (s *EpgService) WithLogger(logger *slog.Logger) *EpgService {
	s.logger = logger
	return s
}

// lockFor returns the per-source ingest mutex.
func (s *EpgService) lockFor(id models.ULID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

// SyncSource ingests one guide source and records the outcome on the source
// row. Concurrent ingests of the same source are serialized. A nil opts
// uses the configured window and auto-matches approved streams only.
func (s *EpgService) SyncSource(ctx context.Context, sourceID models.ULID, opts *EpgSyncOptions) (*EpgSyncResult, error) {
	if opts == nil {
		opts = &EpgSyncOptions{ApprovedOnly: true}
	}
	mu := s.lockFor(sourceID)
	mu.Lock()
	defer mu.Unlock()

	source, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("loading EPG source: %w", err)
	}
	if source == nil {
		return nil, fetch.Errorf(fetch.KindNotFound, 0, "EPG source %s not found", sourceID)
	}
	if !source.IsActive() {
		return nil, fetch.Errorf(fetch.KindInvalid, 0, "EPG source %s is inactive", source.Name)
	}

	result, err := s.syncSource(ctx, source, opts)
	if err != nil {
		source.MarkFailed(err)
		if saveErr := s.sources.Update(ctx, source); saveErr != nil {
			s.logger.Error("recording failed guide ingest", "source", source.Name, "error", saveErr)
		}
		return nil, err
	}
	source.MarkSuccess(s.now())
	if saveErr := s.sources.Update(ctx, source); saveErr != nil {
		s.logger.Error("recording guide ingest", "source", source.Name, "error", saveErr)
	}
	return result, nil
}

// SyncAll ingests every active guide source, continuing past per-source
// failures.
func (s *EpgService) SyncAll(ctx context.Context) error {
	sources, err := s.sources.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active EPG sources: %w", err)
	}
	for _, source := range sources {
		if _, err := s.SyncSource(ctx, source.ID, nil); err != nil {
			s.logger.Error("guide ingest failed", "source", source.Name, "error", err)
		}
	}
	return nil
}

func (s *EpgService) syncSource(ctx context.Context, source *models.EpgSource, opts *EpgSyncOptions) (*EpgSyncResult, error) {
	start := s.now()
	s.logger.Info("starting guide ingest", "source", source.Name, "url", source.URL)

	body, err := s.download(ctx, source.URL)
	if err != nil {
		return nil, fmt.Errorf("downloading guide: %w", err)
	}
	defer body.Close()

	now := start.UTC()
	winStart := now.Add(-epgLookbackHours * time.Hour)
	winEnd := now.Add(time.Duration(s.windowHours(opts.Hours)) * time.Hour)

	var (
		declared   = make(map[string]*xmltv.Channel)
		programmes []*xmltv.Programme
		parseErrs  int
	)
	parser := &xmltv.Parser{
		OnChannel: func(c *xmltv.Channel) error {
			if _, ok := declared[c.ID]; !ok {
				declared[c.ID] = c
			}
			return nil
		},
		OnProgramme: func(p *xmltv.Programme) error {
			programmes = append(programmes, p)
			return nil
		},
		OnError: func(err error) {
			parseErrs++
		},
	}
	if err := parser.ParseCompressed(body); err != nil {
		return nil, fmt.Errorf("parsing guide: %w", err)
	}
	if parseErrs > 0 {
		s.logger.Warn("guide elements skipped", "source", source.Name, "count", parseErrs)
	}

	// Channels referenced only by programmes still get rows so their
	// airings are not orphaned.
	channelRows := make([]*models.EpgChannel, 0, len(declared))
	seenChannels := make(map[string]bool, len(declared))
	for id, c := range declared {
		channelRows = append(channelRows, &models.EpgChannel{
			EpgSourceID: source.ID,
			XmltvID:     id,
			DisplayName: c.DisplayName,
			IconURL:     c.Icon,
		})
		seenChannels[id] = true
	}
	for _, p := range programmes {
		if p.Channel == "" || seenChannels[p.Channel] {
			continue
		}
		seenChannels[p.Channel] = true
		channelRows = append(channelRows, &models.EpgChannel{
			EpgSourceID: source.ID,
			XmltvID:     p.Channel,
			DisplayName: p.Channel,
		})
	}
	if err := s.channels.UpsertBatch(ctx, channelRows); err != nil {
		return nil, fmt.Errorf("upserting guide channels: %w", err)
	}

	stored, err := s.channels.GetBySourceID(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading guide channels: %w", err)
	}
	channelIDs := make(map[string]models.ULID, len(stored))
	for _, c := range stored {
		channelIDs[c.XmltvID] = c.ID
	}

	var library map[string]string
	if s.cfg.EnrichDescriptions {
		library, err = s.overviewLibrary(ctx)
		if err != nil {
			return nil, err
		}
	}

	result := &EpgSyncResult{SourceID: source.ID}
	rows := make([]*models.EpgProgram, 0, len(programmes))
	seenAirings := make(map[string]bool, len(programmes))
	for _, p := range programmes {
		channelID, ok := channelIDs[p.Channel]
		if !ok || p.Title == "" || p.Start.IsZero() || p.Stop.IsZero() {
			result.Dropped++
			continue
		}
		// Outside the retention window, or nonsensical ordering.
		if !p.Stop.After(p.Start) || !p.Stop.After(winStart) || !p.Start.Before(winEnd) {
			result.Dropped++
			continue
		}
		airing := channelID.String() + "/" + p.Start.Format(time.RFC3339)
		if seenAirings[airing] {
			result.Dropped++
			continue
		}
		seenAirings[airing] = true

		desc := p.Description
		if desc == "" && library != nil {
			if overview, ok := library[overviewKey(p.Title)]; ok {
				desc = truncateRunes(overview, s.cfg.EnrichMaxDescLen)
				result.Enriched++
			}
		}
		rows = append(rows, &models.EpgProgram{
			ChannelID:   channelID,
			EpgSourceID: source.ID,
			StartAt:     p.Start,
			StopAt:      p.Stop,
			Title:       p.Title,
			Description: desc,
			Category:    p.Category,
		})
	}

	// Purge-and-reload: the document is the source of truth for its window.
	purged, err := s.programs.DeleteBySourceID(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("purging programmes: %w", err)
	}
	if err := s.programs.CreateInBatches(ctx, rows, epgProgramBatchSize); err != nil {
		return nil, fmt.Errorf("inserting programmes: %w", err)
	}
	result.Channels = len(channelRows)
	result.Programs = len(rows)
	result.Purged = purged

	if s.cfg.AutoMatch {
		matched, err := s.autoMatch(ctx, source.ID, stored, opts)
		if err != nil {
			return nil, err
		}
		result.Matched = matched
	}

	result.Duration = s.now().Sub(start)
	s.logger.Info("guide ingest completed",
		"source", source.Name,
		"channels", result.Channels,
		"programs", result.Programs,
		"dropped", result.Dropped,
		"enriched", result.Enriched,
		"matched", result.Matched,
		"duration", result.Duration,
	)
	return result, nil
}

func (s *EpgService) windowHours(override int) int {
	hours := override
	if hours <= 0 {
		hours = s.cfg.WindowHours
	}
	if hours < epgWindowMinHours {
		return epgWindowMinHours
	}
	if hours > epgWindowMaxHours {
		return epgWindowMaxHours
	}
	return hours
}

// overviewLibrary maps cleaned catalog titles to their hydrated overviews.
// VOD titles win over series on key collision.
func (s *EpgService) overviewLibrary(ctx context.Context) (map[string]string, error) {
	library := make(map[string]string)

	shows, err := s.series.GetSynced(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading synced series: %w", err)
	}
	for _, item := range shows {
		if item.TmdbOverview == "" {
			continue
		}
		library[overviewKey(item.TmdbTitle)] = item.TmdbOverview
	}

	movies, err := s.vodStreams.GetSynced(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading synced titles: %w", err)
	}
	for _, item := range movies {
		if item.TmdbOverview == "" {
			continue
		}
		library[overviewKey(item.TmdbTitle)] = item.TmdbOverview
	}
	return library, nil
}

// overviewKey normalizes a title for description lookup.
func overviewKey(title string) string {
	clean, _ := tmdb.CleanTitle(title)
	return strings.ToLower(clean)
}

// truncateRunes bounds a string to n runes without splitting characters.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// autoMatch binds unmapped live streams to this source's guide channels by
// fuzzy name similarity.
func (s *EpgService) autoMatch(ctx context.Context, sourceID models.ULID, channels []*models.EpgChannel, opts *EpgSyncOptions) (int, error) {
	if len(channels) == 0 {
		return 0, nil
	}
	candidates := make([]matcher.Candidate, 0, len(channels))
	for _, c := range channels {
		name := c.DisplayName
		if name == "" {
			name = c.XmltvID
		}
		candidates = append(candidates, matcher.Candidate{ID: c.XmltvID, Name: name})
	}

	minScore := opts.MinScore
	if minScore <= 0 {
		minScore = s.cfg.AutoMatchMinScore
	}
	if minScore <= 0 {
		minScore = matcher.DefaultMinScore
	}

	var providers []*models.Provider
	if opts.AutoMatchProviderID != nil {
		provider, err := s.providers.GetByID(ctx, *opts.AutoMatchProviderID)
		if err != nil {
			return 0, fmt.Errorf("loading auto-match provider: %w", err)
		}
		if provider == nil {
			return 0, fetch.Errorf(fetch.KindNotFound, 0, "auto-match provider %s not found", *opts.AutoMatchProviderID)
		}
		providers = []*models.Provider{provider}
	} else {
		var err error
		providers, err = s.providers.GetActive(ctx)
		if err != nil {
			return 0, fmt.Errorf("listing active providers: %w", err)
		}
	}

	matched := 0
	for _, provider := range providers {
		unbound, err := s.liveStreams.GetUnbound(ctx, provider.ID, opts.ApprovedOnly)
		if err != nil {
			return matched, fmt.Errorf("listing unbound streams: %w", err)
		}
		for _, stream := range unbound {
			best := matcher.BestMatch(stream.Name, candidates, minScore)
			if best == nil {
				continue
			}
			stream.BindEpg(sourceID, best.ID)
			if err := s.liveStreams.Update(ctx, stream); err != nil {
				return matched, fmt.Errorf("binding stream to guide channel: %w", err)
			}
			matched++
			s.logger.Debug("bound stream to guide channel",
				"stream", stream.Name,
				"channel", best.Name,
				"score", best.Score,
			)
		}
	}
	return matched, nil
}

// downloadToTemp fetches a guide document to a temp file and returns a
// reader that removes the file on close. Guides routinely exceed memory,
// so the body is never buffered whole.
func downloadToTemp(ctx context.Context, url string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, epgDownloadTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, &fetch.Error{Kind: fetch.ClassifyErr(err), Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if kind := fetch.ClassifyStatus(resp.StatusCode); kind != fetch.KindOK {
		cancel()
		return nil, fetch.Errorf(kind, resp.StatusCode, "fetching %s", url)
	}

	tmp, err := os.CreateTemp("", "mediarr-epg-*")
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		cancel()
		return nil, fmt.Errorf("writing guide to disk: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		cancel()
		return nil, fmt.Errorf("rewinding guide file: %w", err)
	}
	return &tempFileReader{File: tmp, cancel: cancel}, nil
}

// tempFileReader deletes its backing file on close.
type tempFileReader struct {
	*os.File
	cancel context.CancelFunc
}

func (r *tempFileReader) Close() error {
	r.cancel()
	err := r.File.Close()
	os.Remove(r.File.Name())
	return err
}
