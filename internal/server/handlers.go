// File: internal/server/handlers.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/chat"
	"github.com/xkilldash9x/websec-cli/internal/intel"
	"github.com/xkilldash9x/websec-cli/internal/orchestrator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes bounds request bodies; pasted source code is the largest payload.
const maxBodyBytes = 1 << 20

// Handlers manages the HTTP request handling for the API server.
type Handlers struct {
	log     *zap.Logger
	scans   ScanService
	history HistoryService
	chat    ChatService
	// baseCtx outlives individual requests; background scans run under it.
	baseCtx context.Context
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(baseCtx context.Context, logger *zap.Logger, scans ScanService, history HistoryService, chat ChatService) *Handlers {
	return &Handlers{
		log:     logger.Named("api_handlers"),
		scans:   scans,
		history: history,
		chat:    chat,
		baseCtx: baseCtx,
	}
}

// RegisterRoutes sets up the JSON API routes.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/modules", h.HandleModules)

		r.Route("/scans", func(r chi.Router) {
			r.Post("/", h.HandleStartScan)
			r.Get("/current", h.HandleCurrentScan)
			r.Post("/current/dismiss", h.HandleDismissScan)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.HandleListHistory)
			r.Delete("/", h.HandleClearHistory)
			r.Get("/{timestamp}", h.HandleGetHistory)
			r.Post("/{timestamp}/load", h.HandleLoadHistory)
			r.Delete("/{timestamp}", h.HandleDeleteHistory)
		})

		r.Get("/chat", h.HandleTranscript)
		r.Post("/chat", h.HandleChat)

		r.Get("/intel", h.HandleIntel)
	})
}

// HandleHealthCheck is a simple handler to confirm the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) HandleModules(w http.ResponseWriter, r *http.Request) {
	h.respondWithSuccess(w, http.StatusOK, schemas.DefaultModules())
}

// HandleStartScan validates the submission and runs the scan in the background.
func (h *Handlers) HandleStartScan(w http.ResponseWriter, r *http.Request) {
	var req schemas.ScanRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if _, err := h.scans.Start(h.baseCtx, req); err != nil {
		if errors.Is(err, orchestrator.ErrScanInProgress) {
			h.respondWithError(w, http.StatusConflict, err.Error())
			return
		}
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.log.Info("Scan accepted", zap.String("kind", string(req.ScanType)))
	h.respondWithStatus(w, http.StatusAccepted, "accepted", h.scans.Snapshot())
}

func (h *Handlers) HandleCurrentScan(w http.ResponseWriter, r *http.Request) {
	h.respondWithSuccess(w, http.StatusOK, h.scans.Snapshot())
}

func (h *Handlers) HandleDismissScan(w http.ResponseWriter, r *http.Request) {
	if err := h.scans.Dismiss(); err != nil {
		h.respondWithError(w, http.StatusConflict, err.Error())
		return
	}
	h.respondWithSuccess(w, http.StatusOK, h.scans.Snapshot())
}

func (h *Handlers) HandleListHistory(w http.ResponseWriter, r *http.Request) {
	h.respondWithSuccess(w, http.StatusOK, h.history.List(r.Context()))
}

func (h *Handlers) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.history.Get(r.Context(), chi.URLParam(r, "timestamp"))
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "History entry not found.")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, entry)
}

// HandleLoadHistory makes a saved report the active scan result.
func (h *Handlers) HandleLoadHistory(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.history.Get(r.Context(), chi.URLParam(r, "timestamp"))
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "History entry not found.")
		return
	}
	if err := h.scans.Load(entry); err != nil {
		h.respondWithError(w, http.StatusConflict, err.Error())
		return
	}
	h.respondWithSuccess(w, http.StatusOK, h.scans.Snapshot())
}

func (h *Handlers) HandleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if !h.history.Remove(r.Context(), chi.URLParam(r, "timestamp")) {
		h.respondWithError(w, http.StatusNotFound, "History entry not found.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearHistory wipes the history. The caller must pass confirm=true.
func (h *Handlers) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if !confirm {
		h.respondWithError(w, http.StatusBadRequest, "Clearing history requires confirm=true.")
		return
	}
	h.history.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	h.respondWithSuccess(w, http.StatusOK, h.chat.Transcript())
}

func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	reply, err := h.chat.Send(r.Context(), req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		h.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrRequestPending):
		h.respondWithError(w, http.StatusConflict, err.Error())
	case err != nil:
		h.log.Error("Chat request failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Internal error processing chat message.")
	default:
		h.respondWithSuccess(w, http.StatusOK, reply)
	}
}

// HandleIntel serves the advisory feed, optionally filtered by min_score.
func (h *Handlers) HandleIntel(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("min_score")
	if raw == "" {
		h.respondWithSuccess(w, http.StatusOK, intel.Feed())
		return
	}
	minScore, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid min_score: %q", raw))
		return
	}
	h.respondWithSuccess(w, http.StatusOK, intel.Filter(minScore))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// respondWithError sends a standardized JSON error response.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSON(w, statusCode, Response{Status: "error", Error: message})
}

// respondWithSuccess sends a standardized JSON success response.
func (h *Handlers) respondWithSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	h.respondWithStatus(w, statusCode, "success", data)
}

// respondWithStatus sends a standardized JSON response with a specific status string.
func (h *Handlers) respondWithStatus(w http.ResponseWriter, statusCode int, status string, data interface{}) {
	h.writeJSON(w, statusCode, Response{Status: status, Data: data})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, statusCode int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
