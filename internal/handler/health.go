package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ecwid-proxy/internal/adapter"
)

// welcomeText is served at the root.
const welcomeText = "Welcome to the Ecwid Storefront API"

// readyProbeTimeout bounds the storefront check in /readyz.
const readyProbeTimeout = 5 * time.Second

// handleWelcome returns a plain-text greeting.
// GET /
func (h *Handler) handleWelcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, welcomeText)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// handleReady reports browser and storefront readiness.
// The browser starts lazily, so a missing browser does not fail the check.
// GET /readyz
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{
		Status:     "ok",
		Browser:    "unknown",
		Storefront: "unchecked",
	}

	if p, ok := h.store.(adapter.Prober); ok {
		if p.BrowserReady() {
			resp.Browser = "ready"
		} else {
			resp.Browser = "not_started"
		}
	}

	status := http.StatusOK
	if h.probe != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()
		if err := h.probe.Probe(ctx); err != nil {
			h.log(ctx).WarnContext(ctx, "storefront probe failed", slog.String("error", err.Error()))
			resp.Status = "unavailable"
			resp.Storefront = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Storefront = "ok"
		}
	}

	h.writeJSON(w, status, resp)
}

type readyResponse struct {
	Status     string `json:"status"`
	Browser    string `json:"browser"`
	Storefront string `json:"storefront"`
}
