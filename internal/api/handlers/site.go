package handlers

import (
	"net/http"

	"github.com/reelscribe/backend/internal/config"
	"github.com/reelscribe/backend/internal/notify"
)

type SiteHandler struct {
	cfg        *config.Config
	dispatcher *notify.Dispatcher
}

func NewSiteHandler(cfg *config.Config, dispatcher *notify.Dispatcher) *SiteHandler {
	return &SiteHandler{cfg: cfg, dispatcher: dispatcher}
}

func (h *SiteHandler) Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type siteConfigResponse struct {
	GAMeasurementID string           `json:"ga_measurement_id,omitempty"`
	AdSensePubID    string           `json:"adsense_pub_id,omitempty"`
	Channels        []notify.Channel `json:"channels"`
}

// SiteConfig exposes the public frontend settings: analytics IDs and which
// delivery channels this deployment has configured.
func (h *SiteHandler) SiteConfig(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, siteConfigResponse{
		GAMeasurementID: h.cfg.GAMeasurementID,
		AdSensePubID:    h.cfg.AdSensePubID,
		Channels:        h.dispatcher.Channels(),
	}, http.StatusOK)
}
