package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/reelscribe/backend/internal/api/middleware"
	"github.com/reelscribe/backend/internal/db"
	"github.com/reelscribe/backend/internal/notify"
)

type TranscriptHandler struct {
	db         *db.Database
	dispatcher *notify.Dispatcher
}

func NewTranscriptHandler(db *db.Database, dispatcher *notify.Dispatcher) *TranscriptHandler {
	return &TranscriptHandler{db: db, dispatcher: dispatcher}
}

// List returns the caller's transcript history, newest first.
func (h *TranscriptHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	transcripts, err := h.db.ListTranscripts(claims.UserID, limit)
	if err != nil {
		jsonError(w, "failed to list transcripts", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, transcripts, http.StatusOK)
}

func (h *TranscriptHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid transcript id", http.StatusBadRequest)
		return
	}

	t, err := h.db.GetTranscript(id, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "transcript not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to load transcript", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, t, http.StatusOK)
}

type sendRequest struct {
	Channel string `json:"channel"`
	Address string `json:"address,omitempty"`
	Carrier string `json:"carrier,omitempty"`
}

// Send re-delivers a stored transcript to a single channel. The address
// defaults to the caller's saved contact for that channel.
func (h *TranscriptHandler) Send(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid transcript id", http.StatusBadRequest)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := h.db.GetTranscript(id, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "transcript not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to load transcript", http.StatusInternalServerError)
		return
	}

	user, err := h.db.GetUserByID(claims.UserID)
	if err != nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}

	targets := resolveTargets([]targetRequest{{
		Channel: req.Channel,
		Address: req.Address,
		Carrier: req.Carrier,
	}}, user)
	target := targets[0]

	switch target.Channel {
	case notify.ChannelEmail, notify.ChannelWhatsApp:
	case notify.ChannelSMS:
		if target.Carrier == "" {
			jsonError(w, "sms delivery requires a carrier", http.StatusBadRequest)
			return
		}
	default:
		jsonError(w, "unknown delivery channel: "+string(target.Channel), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(target.Address) == "" {
		jsonError(w, "no address for channel "+string(target.Channel), http.StatusBadRequest)
		return
	}

	msg := notify.FormatTranscript(t.Text, t.SourceURL, t.Language, t.LineCount)
	results := h.dispatcher.Dispatch(r.Context(), msg, []notify.Target{target})
	res := results[0]

	if res.OK {
		if err := h.db.MarkDelivered(t.ID, res.Channel); err != nil {
			jsonError(w, "delivered but failed to record", http.StatusInternalServerError)
			return
		}
		jsonResponse(w, res, http.StatusOK)
		return
	}

	jsonResponse(w, res, http.StatusBadGateway)
}
