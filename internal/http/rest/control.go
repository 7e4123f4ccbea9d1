package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/offloadhq/offload-client/internal/drag"
	"github.com/offloadhq/offload-client/internal/logctx"
	"github.com/offloadhq/offload-client/internal/orchestrator"
	"github.com/offloadhq/offload-client/internal/queue"
	"github.com/offloadhq/offload-client/internal/record"
	"github.com/offloadhq/offload-client/internal/telemetry"
)

// ControlHandler is the local control API, used by the browser extension to
// enqueue downloads and by operators to inspect state. It binds to loopback;
// there is no auth of its own.
type ControlHandler struct {
	orch      *orchestrator.Orchestrator
	telemetry *telemetry.Telemetry
}

func NewControlHandler(orch *orchestrator.Orchestrator, t *telemetry.Telemetry) *ControlHandler {
	return &ControlHandler{orch: orch, telemetry: t}
}

func (h *ControlHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.Middleware(h.telemetry))

	r.Get("/health", h.HandleHealth)
	r.Get("/downloads", h.HandleListDownloads)
	r.Post("/downloads", h.HandleEnqueue)
	r.Post("/downloads/{id}/pause", h.HandlePause)

	if h.telemetry != nil {
		r.Handle("/metrics", h.telemetry.PrometheusHandler())
	}

	return r
}

func (h *ControlHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DownloadsResponse is the state projection served to control clients.
type DownloadsResponse struct {
	Downloads     []record.DownloadRecord `json:"downloads"`
	Pending       []queue.Request         `json:"pending"`
	MaxConcurrent int                     `json:"maxConcurrent"`
}

func (h *ControlHandler) HandleListDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DownloadsResponse{
		Downloads:     h.orch.Records(),
		Pending:       h.orch.Pending(),
		MaxConcurrent: h.orch.MaxConcurrent(),
	})
}

// EnqueueRequest names a catalog item or folder to download. Names are
// resolved against the catalog snapshot current at request time.
type EnqueueRequest struct {
	ItemID       string `json:"itemId"`
	SubFileIndex *int   `json:"subFileIndex"`
	FolderID     string `json:"folderId"`
}

type EnqueueResponse struct {
	Admitted bool `json:"admitted"`
}

func (h *ControlHandler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	var body EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logger.Error("failed to decode enqueue request", "err", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	req, ok := h.resolveRequest(body)
	if !ok {
		http.Error(w, "unknown item or folder", http.StatusNotFound)

		return
	}

	admitted, err := h.orch.Enqueue(r.Context(), req)
	if err != nil {
		logger.Error("failed to enqueue download", "name", req.Name, "err", err)
		http.Error(w, "engine rejected the download", http.StatusBadGateway)

		return
	}

	writeJSON(w, http.StatusAccepted, EnqueueResponse{Admitted: admitted})
}

func (h *ControlHandler) resolveRequest(body EnqueueRequest) (queue.Request, bool) {
	snap := h.orch.CatalogSnapshot()

	if body.FolderID != "" {
		folder, ok := snap.Folder(body.FolderID)
		if !ok {
			return queue.Request{}, false
		}

		return queue.Request{
			FolderID:   folder.ID,
			FolderName: folder.Name,
			Name:       folder.Name + drag.ArchiveSuffix,
		}, true
	}

	name, ok := snap.DisplayName(body.ItemID, body.SubFileIndex)
	if !ok {
		return queue.Request{}, false
	}

	return queue.Request{
		ItemID:       body.ItemID,
		SubFileIndex: body.SubFileIndex,
		Name:         name,
	}, true
}

func (h *ControlHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing download id", http.StatusBadRequest)

		return
	}

	h.orch.Pause(r.Context(), id)
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(payload)
}
