package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/blablabla-ai/blablabla/internal/auth"
	"github.com/blablabla-ai/blablabla/internal/history"
	"github.com/blablabla-ai/blablabla/internal/models"
	"github.com/blablabla-ai/blablabla/internal/queue"
)

// RecordingHistory is the read/delete slice of the history store.
type RecordingHistory interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Recording, error)
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Recording, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// RecordingsHandler serves a user's analysis history.
type RecordingsHandler struct {
	store RecordingHistory
	purge Purger // nil skips audio cleanup on delete
}

func NewRecordingsHandler(store RecordingHistory, purge Purger) *RecordingsHandler {
	return &RecordingsHandler{store: store, purge: purge}
}

func (h *RecordingsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	recs, err := h.store.ListByUser(r.Context(), user.ID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list recordings")
		return
	}
	if recs == nil {
		recs = []models.Recording{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recordings": recs})
}

func (h *RecordingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recording ID")
		return
	}

	rec, err := h.store.GetByID(r.Context(), id, user.ID)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load recording")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *RecordingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recording ID")
		return
	}

	rec, err := h.store.GetByID(r.Context(), id, user.ID)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete recording")
		return
	}

	if err := h.store.Delete(r.Context(), id, user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete recording")
		return
	}

	// The stored audio goes through the queue so a storage hiccup here
	// cannot fail the delete.
	if h.purge != nil && rec.AudioPath != "" {
		err := h.purge.EnqueueRecordingPurge(queue.RecordingPurgePayload{
			RecordingID: rec.ID.String(),
			AudioPath:   rec.AudioPath,
		}, 0)
		if err != nil {
			slog.Warn("schedule audio purge on delete", "recording_id", rec.ID, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
