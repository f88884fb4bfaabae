package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"

	"exportmap/pkg/filter"
	"exportmap/pkg/geo"
	"exportmap/pkg/logging"
	"exportmap/pkg/session"
	"exportmap/pkg/viewstate"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// ViewHandler exposes a session's view coordinator.
type ViewHandler struct {
	reg  *session.Registry
	repo Datasets
	// base outlives requests so a return can resolve after the response.
	base     context.Context
	upgrader websocket.Upgrader
}

// NewViewHandler creates a new ViewHandler. base bounds background
// restoration work and should be cancelled on shutdown.
func NewViewHandler(base context.Context, reg *session.Registry, repo Datasets) *ViewHandler {
	if base == nil {
		base = context.Background()
	}
	return &ViewHandler{
		reg:  reg,
		repo: repo,
		base: base,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type clickRequest struct {
	ID string `json:"id"`
}

type flyDoneRequest struct {
	Token uint64 `json:"token"`
}

type sectorRequest struct {
	Sector string `json:"sector"`
}

type filtersRequest struct {
	Sectors filter.SectorSet `json:"sectors"`
}

type cameraRequest struct {
	Center orb.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
}

type leaveRequest struct {
	Target string `json:"target"`
	CaseID int    `json:"caseId"`
}

// CameraResponse reports whether a camera report was applied.
type CameraResponse struct {
	Accepted bool           `json:"accepted"`
	View     viewstate.View `json:"view"`
}

// ReturnResponse reports a return to the map.
type ReturnResponse struct {
	Outcome    string              `json:"outcome"`
	Resolution string              `json:"resolution,omitempty"`
	Snapshot   *viewstate.Snapshot `json:"snapshot,omitempty"`
	View       viewstate.View      `json:"view"`
}

// HandleView returns the session's current view.
func (h *ViewHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	s := h.reg.FromRequest(w, r)
	writeJSON(w, http.StatusOK, s.Coordinator.View())
}

// HandleClick selects a marker by record id.
func (h *ViewHandler) HandleClick(w http.ResponseWriter, r *http.Request) {
	s := h.reg.FromRequest(w, r)
	var req clickRequest
	if err := decodeJSON(w, r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	d, err := h.repo.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "dataset unavailable")
		return
	}

	var v viewstate.View
	single, multi := d.ByID(req.ID)
	switch {
	case single != nil:
		v, err = s.Coordinator.ClickSingle(*single)
	case multi != nil:
		v, err = s.Coordinator.ClickCountry(*multi)
	default:
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		h.writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleSector picks a sector of the disambiguated country.
func (h *ViewHandler) HandleSector(w http.ResponseWriter, r *http.Request) {
	s := h.reg.FromRequest(w, r)
	var req sectorRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Sector == "" {
		writeError(w, http.StatusBadRequest, "sector is required")
		return
	}
	v, err := s.Coordinator.PickSector(req.Sector)
	if err != nil {
		h.writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleClose closes the panel and flies back out.
func (h *ViewHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	s := h.reg.FromRequest(w, r)
	s.Coordinator.Close()
	writeJSON(w, http.StatusOK, s.Coordinator.View())
}

// HandleFilters replaces the active sector filter.
func (h *ViewHandler) HandleFilters(w http.ResponseWriter, r *http.Request) {
	s := h.reg.FromRequest(w, r)
	var req filtersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Coordinator.SetFilters(req.Sectors))
}

// HandleCamera records a camera move reported by the map.
func (h *ViewHandler) HandleCamera(w http.ResponseWriter, r *http.Request) {
	s := h.reg.FromRequest(w, r)
	var req cameraRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	accepted := s.Coordinator.OnCameraChanged(viewstate.Camera{Center: req.Center, Zoom: req.Zoom})
	logging.TraceDefault("Camera report", "session", s.ID, "accepted", accepted, "center", req.Center, "zoom", req.Zoom)
	writeJSON(w, http.StatusOK, CameraResponse{Accepted: accepted, View: s.Coordinator.View()})
}

// HandleFly starts an animated camera move.
func (h *ViewHandler) HandleFly(w http.ResponseWriter, r *http.Request) {
	s := h.reg.FromRequest(w, r)
	var req cameraRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cam := viewstate.NewCamera(req.Center.Lon(), req.Center.Lat(), req.Zoom)
	s.Coordinator.FlyTo(cam)
	writeJSON(w, http.StatusOK, s.Coordinator.View())
}

// HandleFit flies the camera to frame every marker visible under the
// session's filters.
func (h *ViewHandler) HandleFit(w http.ResponseWriter, r *http.Request) {
	s := h.reg.FromRequest(w, r)
	d, err := h.repo.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "dataset unavailable")
		return
	}
	visible := filter.BySectors(s.Coordinator.Filters(), d.Singles, d.Multis)
	points := make([]orb.Point, 0, len(visible.Singles)+len(visible.Multis))
	for _, st := range visible.Singles {
		points = append(points, st.Coordinates)
	}
	for _, m := range visible.Multis {
		points = append(points, m.Coordinates)
	}

	b := geo.Bounds(points)
	zoom := viewstate.DefaultCamera.Zoom
	if len(points) > 0 {
		zoom = geo.ZoomForBounds(b)
	}
	s.Coordinator.FlyTo(viewstate.NewCamera(b.Center().Lon(), b.Center().Lat(), zoom))
	writeJSON(w, http.StatusOK, s.Coordinator.View())
}

// HandleFlyDone is sent by the map when an animation finishes. The body
// echoes the token of the flyTo command; a stale token gets 409 and leaves
// the newer animation guarded.
func (h *ViewHandler) HandleFlyDone(w http.ResponseWriter, r *http.Request) {
	s := h.reg.FromRequest(w, r)
	var req flyDoneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.Coordinator.AnimationDone(req.Token) {
		writeError(w, http.StatusConflict, "animation token is not current")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLeave stores the return state before navigating to a detail page.
func (h *ViewHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	s := h.reg.FromRequest(w, r)
	var req leaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Target == "" && req.CaseID > 0 {
		req.Target = fmt.Sprintf("/case/%d", req.CaseID)
	}
	snap, err := s.Coordinator.LeaveForDetail(r.Context(), req.Target, req.CaseID)
	if err != nil {
		// Losing the return state is not worth blocking navigation for.
		slog.Warn("Session: failed to persist return state", "session", s.ID, "error", err)
		writeJSON(w, http.StatusAccepted, snap)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleReturn consumes the stored return state.
func (h *ViewHandler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	s := h.reg.FromRequest(w, r)
	res := session.TryRestore(h.base, s, h.repo)

	resp := ReturnResponse{Outcome: res.Outcome, Snapshot: res.Snapshot}
	select {
	case outcome := <-res.Resolved:
		resp.Resolution = outcome
	default:
		// Resolves once the dataset loads; the client hears about it over
		// the event stream.
	}
	resp.View = s.Coordinator.View()

	if res.Snapshot != nil {
		logging.LogEvent(&logging.Event{
			Type:    "return",
			Title:   describeSnapshot(res.Snapshot),
			Summary: resp.Resolution,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func describeSnapshot(s *viewstate.Snapshot) string {
	switch {
	case s.SelectedCountry != "" && s.SelectedSector != "":
		return s.SelectedCountry + " / " + s.SelectedSector
	case s.SelectedCountry != "":
		return s.SelectedCountry
	default:
		return "map"
	}
}

func (h *ViewHandler) writeViewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, viewstate.ErrOutOfScope):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, viewstate.ErrNoCountry):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, viewstate.ErrUnknownSector):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// HandleEvents streams camera and scroll commands over a WebSocket.
func (h *ViewHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	s := h.reg.FromRequest(w, r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.Debug("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	cmds, cancel := s.Coordinator.Commands().Subscribe()
	defer cancel()

	// The reader only watches for close and pong frames.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-h.base.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			return
		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(cmd); err != nil {
				slog.Debug("WebSocket write failed", "session", s.ID, "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
