package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reybeld94/mediarr/internal/config"
	"github.com/reybeld94/mediarr/internal/database"
	internalhttp "github.com/reybeld94/mediarr/internal/http"
	"github.com/reybeld94/mediarr/internal/observability"
	"github.com/reybeld94/mediarr/internal/repository"
	"github.com/reybeld94/mediarr/internal/scheduler"
	"github.com/reybeld94/mediarr/internal/service"
	"github.com/reybeld94/mediarr/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mediarr server",
	Long: `Start the mediarr HTTP server and background sync loops.

The server exposes the management API and Prometheus metrics, and the
supervisor runs the catalog, EPG, metadata, and collection loops.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", config.DefaultServerHost, "host to bind to")
	serveCmd.Flags().Int("port", config.DefaultServerPort, "port to listen on")
	serveCmd.Flags().String("database-url", "", "database URL (sqlite://, postgres://, mysql://)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	observability.SetDefault(logger)

	db, err := database.New(cfg.Database, observability.WithComponent(logger, "database"))
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	providerRepo := repository.NewProviderRepository(db.DB)
	providerUserRepo := repository.NewProviderUserRepository(db.DB)
	syncConfigRepo := repository.NewProviderSyncConfigRepository(db.DB)
	categoryRepo := repository.NewCategoryRepository(db.DB)
	liveStreamRepo := repository.NewLiveStreamRepository(db.DB)
	vodStreamRepo := repository.NewVodStreamRepository(db.DB)
	seriesRepo := repository.NewSeriesRepository(db.DB)
	epgSourceRepo := repository.NewEpgSourceRepository(db.DB)
	epgChannelRepo := repository.NewEpgChannelRepository(db.DB)
	epgProgramRepo := repository.NewEpgProgramRepository(db.DB)
	tmdbConfigRepo := repository.NewTmdbConfigRepository(db.DB)
	collectionRepo := repository.NewCollectionRepository(db.DB)
	collectionCacheRepo := repository.NewCollectionCacheRepository(db.DB)

	catalogService := service.NewCatalogService(
		providerRepo,
		syncConfigRepo,
		categoryRepo,
		liveStreamRepo,
		vodStreamRepo,
		seriesRepo,
		cfg.Catalog,
	).WithLogger(observability.WithComponent(logger, "catalog"))

	epgService := service.NewEpgService(
		epgSourceRepo,
		epgChannelRepo,
		epgProgramRepo,
		liveStreamRepo,
		providerRepo,
		vodStreamRepo,
		seriesRepo,
		cfg.Epg,
	).WithLogger(observability.WithComponent(logger, "epg"))

	enrichmentService := service.NewEnrichmentService(
		vodStreamRepo,
		seriesRepo,
		tmdbConfigRepo,
		cfg.Tmdb,
	).WithLogger(observability.WithComponent(logger, "enrichment"))

	collectionService := service.NewCollectionService(
		collectionRepo,
		collectionCacheRepo,
		tmdbConfigRepo,
		vodStreamRepo,
		seriesRepo,
		providerRepo,
		providerUserRepo,
		cfg.Collections,
	).WithLogger(observability.WithComponent(logger, "collections"))

	supervisor := scheduler.NewSupervisor(
		catalogService,
		epgService,
		enrichmentService,
		collectionService,
		cfg,
	).WithLogger(observability.WithComponent(logger, "scheduler"))

	handlers := internalhttp.NewHandlers(
		db.DB,
		catalogService,
		epgService,
		enrichmentService,
		collectionService,
		supervisor,
		observability.WithComponent(logger, "http"),
	)
	server := internalhttp.NewServer(cfg.Server, observability.WithComponent(logger, "http"), handlers)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := supervisor.Start(ctx); err != nil {
		return fmt.Errorf("starting supervisor: %w", err)
	}
	defer supervisor.Stop()

	logger.Info("starting mediarr",
		slog.String("version", version.Version),
		slog.String("address", cfg.Server.Address()),
		slog.String("database", db.Driver()),
	)

	return server.ListenAndServe(ctx)
}
