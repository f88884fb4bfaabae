package api

import (
	"context"
	"net/http"

	"exportmap/pkg/bibliography"
)

// maxTitleLookups bounds one request's fan-out.
const maxTitleLookups = 50

// TitleResolver looks up page titles for source links.
type TitleResolver interface {
	ResolveAll(ctx context.Context, urls []string) []bibliography.Title
}

// SourcesHandler resolves the bibliography of a record.
type SourcesHandler struct {
	resolver TitleResolver
}

// NewSourcesHandler creates a new SourcesHandler.
func NewSourcesHandler(r TitleResolver) *SourcesHandler {
	return &SourcesHandler{resolver: r}
}

type titlesRequest struct {
	URLs []string `json:"urls"`
	Text string   `json:"text"`
}

// HandleTitles accepts explicit URLs and/or citation text to scan for links.
func (h *SourcesHandler) HandleTitles(w http.ResponseWriter, r *http.Request) {
	var req titlesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	seen := make(map[string]bool)
	var urls []string
	for _, u := range append(req.URLs, bibliography.SplitSources(req.Text)...) {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	if len(urls) > maxTitleLookups {
		writeError(w, http.StatusRequestEntityTooLarge, "too many links")
		return
	}
	titles := h.resolver.ResolveAll(r.Context(), urls)
	if titles == nil {
		titles = []bibliography.Title{}
	}
	writeJSON(w, http.StatusOK, titles)
}
