package api

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// spaFileSystem serves the built frontend. Client-side routes such as
// /case/42 get index.html; missing assets (anything with an extension) and
// /api/ paths stay 404.
type spaFileSystem struct {
	root http.FileSystem
}

func (s *spaFileSystem) Open(name string) (http.File, error) {
	f, err := s.root.Open(name)
	if err == nil || !errors.Is(err, fs.ErrNotExist) || !isClientRoute(name) {
		return f, err
	}
	return s.root.Open("index.html")
}

func isClientRoute(name string) bool {
	return !strings.HasPrefix(name, "/api/") && path.Ext(name) == ""
}
