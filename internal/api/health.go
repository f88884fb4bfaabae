package api

import (
	"context"
	"net/http"

	"exportmap/pkg/dataset"
	"exportmap/pkg/probe"
	"exportmap/pkg/version"
)

// HealthHandler re-runs the liveness probes on every request.
type HealthHandler struct {
	probes []probe.Probe
	status func() dataset.Status
}

// NewHealthHandler creates a new HealthHandler. status may be nil.
func NewHealthHandler(probes []probe.Probe, status func() dataset.Status) *HealthHandler {
	return &HealthHandler{probes: probes, status: status}
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status  string          `json:"status"`
	Version string          `json:"version"`
	Checks  []probe.Status  `json:"checks"`
	Dataset *dataset.Status `json:"dataset,omitempty"`
}

// ServeHTTP answers 503 when a critical probe fails. A fallback dataset is
// reported as degraded but stays 200; the map still renders.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probe.DefaultTimeout)
	defer cancel()

	results := probe.Run(ctx, h.probes)
	resp := HealthResponse{
		Status:  "ok",
		Version: version.Version,
		Checks:  probe.Report(results),
	}
	if h.status != nil {
		st := h.status()
		resp.Dataset = &st
		if st.Origin == dataset.OriginFallback {
			resp.Status = "degraded"
		}
	}

	code := http.StatusOK
	if probe.FailedCritical(results) != nil {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Current())
}
