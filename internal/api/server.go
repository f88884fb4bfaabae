package api

import (
	"log/slog"
	"net/http"
	"time"
)

// Handlers bundles the endpoint groups served by NewServer. Nil groups are
// left unrouted.
type Handlers struct {
	Health   http.Handler
	Metrics  http.Handler
	Datasets *DatasetHandler
	Geo      *GeoHandler
	View     *ViewHandler
	Contact  *ContactHandler
	Sources  *SourcesHandler
}

// NewServer creates and configures the HTTP server.
// staticDir holds the built frontend; empty disables the SPA fallback.
func NewServer(addr string, h Handlers, staticDir string, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health, version and metrics
	if h.Health != nil {
		mux.Handle("GET /health", h.Health)
	}
	mux.HandleFunc("GET /api/version", handleVersion)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	// 2. Logs
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/log/events", handleEventLog)

	// 3. Records
	if d := h.Datasets; d != nil {
		mux.HandleFunc("GET /api/stories", d.HandleStories)
		mux.HandleFunc("GET /api/stories.geojson", d.HandleGeoJSON)
		mux.HandleFunc("GET /api/stories/{id}", d.HandleRecord)
		mux.HandleFunc("GET /api/countries", d.HandleCountries)
		mux.HandleFunc("GET /api/sectors", d.HandleSectors)
		mux.HandleFunc("GET /api/search", d.HandleSearch)
		mux.HandleFunc("GET /api/cases/{id}", d.HandleCase)
		mux.HandleFunc("GET /api/dataset/status", d.HandleStatus)
		mux.HandleFunc("POST /api/dataset/refresh", d.HandleRefresh)
	}
	if h.Geo != nil {
		mux.HandleFunc("GET /api/geo/locate", h.Geo.HandleLocate)
	}

	// 4. View coordinator
	if v := h.View; v != nil {
		mux.HandleFunc("GET /api/view", v.HandleView)
		mux.HandleFunc("POST /api/view/click", v.HandleClick)
		mux.HandleFunc("POST /api/view/sector", v.HandleSector)
		mux.HandleFunc("POST /api/view/close", v.HandleClose)
		mux.HandleFunc("POST /api/view/filters", v.HandleFilters)
		mux.HandleFunc("POST /api/view/camera", v.HandleCamera)
		mux.HandleFunc("POST /api/view/fly", v.HandleFly)
		mux.HandleFunc("POST /api/view/fit", v.HandleFit)
		mux.HandleFunc("POST /api/view/fly/done", v.HandleFlyDone)
		mux.HandleFunc("POST /api/view/leave", v.HandleLeave)
		mux.HandleFunc("POST /api/view/return", v.HandleReturn)
		mux.HandleFunc("GET /api/view/events", v.HandleEvents)
	}

	// 5. Contact and sources
	if h.Contact != nil {
		mux.HandleFunc("POST /api/contact", h.Contact.Handler())
	}
	if h.Sources != nil {
		mux.HandleFunc("POST /api/sources/titles", h.Sources.HandleTitles)
	}

	// 6. Shutdown Endpoint
	if shutdown != nil {
		mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("Shutting down...")); err != nil {
				slog.Error("Failed to write shutdown response", "error", err)
			}
			// Let the response flush first.
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})
	}

	// 7. Static Frontend Serving (SPA)
	if staticDir != "" {
		spaFS := &spaFileSystem{root: http.Dir(staticDir)}
		mux.Handle("/", http.FileServer(spaFS))
	}

	return &http.Server{
		Addr:         addr,
		Handler:      LoggingMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
