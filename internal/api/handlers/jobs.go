package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reelscribe/backend/internal/api/middleware"
	"github.com/reelscribe/backend/internal/job"
)

type JobHandler struct {
	queue *job.Queue
}

func NewJobHandler(queue *job.Queue) *JobHandler {
	return &JobHandler{queue: queue}
}

// Get returns the current state of a job owned by the caller. Clients poll
// this while a job is running.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	j, err := h.queue.GetJob(chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "job not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to load job", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, j, http.StatusOK)
}

// Cancel stops a running or queued job. Finished jobs are left untouched.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.queue.CancelJob(id, claims.UserID); err != nil {
		jsonError(w, "failed to cancel job", http.StatusInternalServerError)
		return
	}

	j, err := h.queue.GetJob(id, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "job not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to load job", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, j, http.StatusOK)
}
