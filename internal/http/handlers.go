package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/reybeld94/mediarr/internal/models"
	"github.com/reybeld94/mediarr/internal/scheduler"
	"github.com/reybeld94/mediarr/internal/service"
	"github.com/reybeld94/mediarr/internal/version"
	"github.com/reybeld94/mediarr/pkg/fetch"
)

// Handlers owns the API route handlers.
type Handlers struct {
	db          *gorm.DB
	catalog     *service.CatalogService
	epg         *service.EpgService
	enrichment  *service.EnrichmentService
	collections *service.CollectionService
	supervisor  *scheduler.Supervisor
	logger      *slog.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(
	db *gorm.DB,
	catalog *service.CatalogService,
	epg *service.EpgService,
	enrichment *service.EnrichmentService,
	collections *service.CollectionService,
	supervisor *scheduler.Supervisor,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		db:          db,
		catalog:     catalog,
		epg:         epg,
		enrichment:  enrichment,
		collections: collections,
		supervisor:  supervisor,
		logger:      logger,
	}
}

// Mount registers the API routes on the router.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/healthz", h.health)
	r.Get("/status", h.status)
	r.Post("/providers/{id}/sync", h.syncProvider)
	r.Post("/epg/sources/{id}/sync", h.syncEpgSource)
	r.Post("/tmdb/sync", h.runEnrichment)
	r.Post("/collections/refresh", h.refreshCollections)
	r.Get("/collections/{id_or_slug}/items", h.collectionItems)
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (h *Handlers) status(w http.ResponseWriter, r *http.Request) {
	counts, err := h.enrichment.StatusCounts(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"supervisor":       h.supervisor.Status(),
		"metadata":         counts,
		"collection_cache": h.collections.Metrics(),
	})
}

func (h *Handlers) syncProvider(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseULID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	result, err := h.catalog.SyncProvider(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) syncEpgSource(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseULID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid EPG source id")
		return
	}
	opts := &service.EpgSyncOptions{ApprovedOnly: true}
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "invalid hours")
			return
		}
		opts.Hours = parsed
	}
	if raw := r.URL.Query().Get("approved_only"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid approved_only")
			return
		}
		opts.ApprovedOnly = parsed
	}
	if raw := r.URL.Query().Get("auto_match_provider_id"); raw != "" {
		providerID, err := models.ParseULID(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid auto_match_provider_id")
			return
		}
		opts.AutoMatchProviderID = &providerID
	}
	result, err := h.epg.SyncSource(r.Context(), id, opts)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) runEnrichment(w http.ResponseWriter, r *http.Request) {
	result, err := h.supervisor.RunMetadataOnce(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrEnrichmentDisabled) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) refreshCollections(w http.ResponseWriter, r *http.Request) {
	result, err := h.collections.RefreshExpired(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrEnrichmentDisabled) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) collectionItems(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = parsed
	}
	swr := true
	if raw := r.URL.Query().Get("stale_while_revalidate"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid stale_while_revalidate")
			return
		}
		swr = parsed
	}

	items, err := h.collections.Items(r.Context(), chi.URLParam(r, "id_or_slug"), page, swr)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

// serviceError maps a service error to an HTTP response by its failure
// kind.
func (h *Handlers) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch fetch.KindOf(err) {
	case fetch.KindNotFound:
		status = http.StatusNotFound
	case fetch.KindInvalid:
		status = http.StatusBadRequest
	case fetch.KindAuth:
		status = http.StatusBadGateway
	case fetch.KindRateLimited, fetch.KindServer, fetch.KindTimeout, fetch.KindNetwork:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	h.writeError(w, status, err.Error())
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{
		"status": status,
		"error":  message,
	})
}
