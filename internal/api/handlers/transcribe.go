package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/reelscribe/backend/internal/api/middleware"
	"github.com/reelscribe/backend/internal/db"
	"github.com/reelscribe/backend/internal/db/models"
	"github.com/reelscribe/backend/internal/job"
	"github.com/reelscribe/backend/internal/notify"
	"github.com/reelscribe/backend/internal/pipeline"
)

type TranscribeHandler struct {
	db    *db.Database
	queue *job.Queue
	orch  *pipeline.Orchestrator
}

func NewTranscribeHandler(db *db.Database, queue *job.Queue, orch *pipeline.Orchestrator) *TranscribeHandler {
	return &TranscribeHandler{db: db, queue: queue, orch: orch}
}

type targetRequest struct {
	Channel string `json:"channel"`
	Address string `json:"address,omitempty"`
	Carrier string `json:"carrier,omitempty"`
}

type transcribeRequest struct {
	URL      string          `json:"url"`
	Language string          `json:"language,omitempty"`
	Deliver  []targetRequest `json:"deliver"`
	Sync     bool            `json:"sync,omitempty"`
}

// Submit accepts a transcription request. By default the job is queued and a
// job ID is returned for polling; with sync=true the pipeline runs inline and
// the transcript comes back in the response.
func (h *TranscribeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req transcribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.db.GetUserByID(claims.UserID)
	if err != nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}

	targets := resolveTargets(req.Deliver, user)
	preq := pipeline.Request{
		UserID:    user.ID,
		SourceURL: strings.TrimSpace(req.URL),
		Language:  req.Language,
		Targets:   targets,
	}
	if err := pipeline.ValidateRequest(preq); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Sync {
		preq.JobID = uuid.New().String()
		outcome, err := h.orch.Run(r.Context(), preq)
		if err != nil {
			respondStageError(w, err)
			return
		}
		jsonResponse(w, outcome, http.StatusOK)
		return
	}

	j, err := h.queue.Enqueue(user.ID, preq.SourceURL, job.Params{
		Language: req.Language,
		Targets:  targets,
	})
	if err != nil {
		log.Printf("[api] enqueue failed: %v", err)
		jsonError(w, "failed to queue job", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, j, http.StatusAccepted)
}

// resolveTargets fills in addresses the client omitted from the user's saved
// delivery defaults. Missing addresses that have no default are caught by
// validation.
func resolveTargets(reqs []targetRequest, user *models.User) []notify.Target {
	targets := make([]notify.Target, 0, len(reqs))
	for _, t := range reqs {
		target := notify.Target{
			Channel: notify.Channel(strings.ToLower(strings.TrimSpace(t.Channel))),
			Address: strings.TrimSpace(t.Address),
			Carrier: strings.ToLower(strings.TrimSpace(t.Carrier)),
		}
		if target.Address == "" {
			switch target.Channel {
			case notify.ChannelEmail:
				target.Address = user.Email
			case notify.ChannelSMS:
				target.Address = user.Phone
			case notify.ChannelWhatsApp:
				target.Address = user.WhatsApp
			}
		}
		if target.Channel == notify.ChannelSMS && target.Carrier == "" {
			target.Carrier = user.PhoneCarrier
		}
		targets = append(targets, target)
	}
	return targets
}

// respondStageError maps a pipeline failure to an HTTP status. Validation is
// the caller's fault; fetch and transcription failures are upstream problems.
func respondStageError(w http.ResponseWriter, err error) {
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch se.Kind {
	case pipeline.KindValidation:
		status = http.StatusBadRequest
	case pipeline.KindFetch, pipeline.KindTranscription:
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":        se.Err.Error(),
		"error_kind":   string(se.Kind),
		"failed_stage": string(se.Stage),
	})
}
