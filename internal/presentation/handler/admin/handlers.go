package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hearthside/gametable/internal/infrastructure/json"
	"github.com/hearthside/gametable/internal/infrastructure/ws"
)

type Handler struct {
	core *ws.Coordinator
}

func NewHandler(core *ws.Coordinator) *Handler {
	return &Handler{
		core: core,
	}
}

// ListSessionsHandler returns a summary of every live campaign room.
func (h *Handler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	json.Write(w, http.StatusOK, h.core.SummarizeAll(r.Context()))
}

// GetSessionHealthHandler returns the detailed health report for one room.
func (h *Handler) GetSessionHealthHandler(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	if campaignID == "" {
		json.WriteValidationError(w, errors.New("campaign ID is missing"))
		return
	}

	report, err := h.core.Report(r.Context(), campaignID)
	if err != nil {
		if errors.Is(err, ws.ErrRoomNotFound) {
			json.WriteError(w, http.StatusNotFound, err, "No live session for this campaign")
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, report)
}

// GetSessionEventsHandler returns the sampled event ring, optionally
// filtered by ?eventType= and ?since= (RFC3339).
func (h *Handler) GetSessionEventsHandler(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	if campaignID == "" {
		json.WriteValidationError(w, errors.New("campaign ID is missing"))
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			json.WriteValidationError(w, errors.New("since must be an RFC3339 timestamp"))
			return
		}
		since = parsed
	}
	eventType := r.URL.Query().Get("eventType")

	events, err := h.core.Events(campaignID, eventType, since)
	if err != nil {
		if errors.Is(err, ws.ErrRoomNotFound) {
			json.WriteError(w, http.StatusNotFound, err, "No live session for this campaign")
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, events)
}

// ResyncSessionHandler forces a full-state broadcast to every connection in
// the room.
func (h *Handler) ResyncSessionHandler(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	if campaignID == "" {
		json.WriteValidationError(w, errors.New("campaign ID is missing"))
		return
	}

	result, err := h.core.Resync(r.Context(), campaignID)
	if err != nil {
		if errors.Is(err, ws.ErrRoomNotFound) {
			json.WriteError(w, http.StatusNotFound, err, "No live session for this campaign")
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, result)
}
