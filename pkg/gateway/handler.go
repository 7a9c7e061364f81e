package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/litlmike/anthropic-api-server/pkg/api"
	"github.com/litlmike/anthropic-api-server/pkg/dispatch"
)

// DefaultMaxBodyBytes caps request bodies at 10 MiB.
const DefaultMaxBodyBytes = 10 << 20

// Config contains HTTP handler configuration.
type Config struct {
	// MaxBodyBytes is the largest request body accepted, in bytes.
	// Defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

func (c Config) withDefaults() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// Handler serves the gateway's /api/v1 routes.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	maxBody    int64
}

// NewHandler creates a Handler backed by the given dispatcher.
func NewHandler(d *dispatch.Dispatcher, cfg Config, logger *slog.Logger) (*Handler, error) {
	if d == nil {
		return nil, errors.New("gateway: dispatcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Handler{
		dispatcher: d,
		logger:     logger.With("component", "gateway"),
		maxBody:    cfg.MaxBodyBytes,
	}, nil
}

// Register mounts every API route on mux. Health and metrics endpoints are
// mounted by the server, not here.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/messages/create", h.handleCreateMessage)
	mux.HandleFunc("/api/v1/messages/count-tokens", h.handleCountTokens)
	mux.HandleFunc("/api/v1/messages/stream", h.handleStreamMessage)
	mux.HandleFunc("/api/v1/models", h.handleListModels)
	mux.HandleFunc("/api/v1/models/{id}", h.handleGetModel)
	mux.HandleFunc("/api/v1/batches/create", h.handleCreateBatch)
	mux.HandleFunc("/api/v1/batches", h.handleListBatches)
	mux.HandleFunc("/api/v1/batches/{id}", h.handleBatchByID)
	mux.HandleFunc("/api/v1/batches/{id}/cancel", h.handleCancelBatch)
	mux.HandleFunc("/api/v1/batches/{id}/results", h.handleBatchResults)
	mux.HandleFunc("/api/v1/usage", h.handleUsageReport)
	mux.HandleFunc("/", h.handleNotFound)
}

// handleNotFound keeps unmatched paths on the envelope contract instead of
// the mux's plain-text 404.
func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, api.Errorf(api.KindNotFound, "no such endpoint: %s", r.URL.Path))
}

// allowMethod rejects requests whose method is not in the allowed set with
// an enveloped 405.
func (h *Handler) allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if slices.Contains(methods, r.Method) {
		return true
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	h.writeErrorStatus(w, r,
		api.Errorf(api.KindValidation, "method %s is not allowed on %s", r.Method, r.URL.Path),
		http.StatusMethodNotAllowed)
	return false
}

func (h *Handler) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodPost) {
		return
	}
	var req api.MessageRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	env, status := h.dispatcher.CreateMessage(r.Context(), &req)
	h.writeEnvelope(w, r, env, status)
}

func (h *Handler) handleCountTokens(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodPost) {
		return
	}
	var req api.CountTokensRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	env, status := h.dispatcher.CountTokens(r.Context(), &req)
	h.writeEnvelope(w, r, env, status)
}

func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodGet) {
		return
	}
	env, status := h.dispatcher.ListModels(r.Context())
	h.writeEnvelope(w, r, env, status)
}

func (h *Handler) handleGetModel(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodGet) {
		return
	}
	env, status := h.dispatcher.GetModel(r.Context(), r.PathValue("id"))
	h.writeEnvelope(w, r, env, status)
}

func (h *Handler) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodPost) {
		return
	}
	var req api.BatchCreateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	env, status := h.dispatcher.CreateBatch(r.Context(), &req)
	h.writeEnvelope(w, r, env, status)
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodGet) {
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	env, status := h.dispatcher.ListBatches(r.Context(), limit)
	h.writeEnvelope(w, r, env, status)
}

// handleBatchByID serves GET (fetch) and DELETE (remove) on a batch id.
func (h *Handler) handleBatchByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		env, status := h.dispatcher.GetBatch(r.Context(), r.PathValue("id"))
		h.writeEnvelope(w, r, env, status)
	case http.MethodDelete:
		env, status := h.dispatcher.DeleteBatch(r.Context(), r.PathValue("id"))
		h.writeEnvelope(w, r, env, status)
	default:
		h.allowMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (h *Handler) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodPost) {
		return
	}
	env, status := h.dispatcher.CancelBatch(r.Context(), r.PathValue("id"))
	h.writeEnvelope(w, r, env, status)
}

func (h *Handler) handleBatchResults(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodGet) {
		return
	}
	env, status := h.dispatcher.BatchResults(r.Context(), r.PathValue("id"))
	h.writeEnvelope(w, r, env, status)
}

func (h *Handler) handleUsageReport(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodGet) {
		return
	}
	days, err := intQuery(r, "days")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	env, status := h.dispatcher.UsageReport(r.Context(), days)
	h.writeEnvelope(w, r, env, status)
}
