// Package web serves the pre-built single-page application.
package web

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

const IndexFile = "index.html"

// SPA serves files from root. Requests that do not name an existing regular
// file get the entry document so client-side routes resolve.
type SPA struct {
	root  fs.FS
	files http.Handler
}

func NewSPA(root fs.FS) *SPA {
	return &SPA{root: root, files: http.FileServerFS(root)}
}

// Dir is NewSPA over a directory on disk.
func Dir(dir string) *SPA {
	return NewSPA(os.DirFS(dir))
}

func (s *SPA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name != "" && name != IndexFile && s.isFile(name) {
		s.files.ServeHTTP(w, r)
		return
	}
	s.serveIndex(w, r)
}

func (s *SPA) isFile(name string) bool {
	if !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(s.root, name)
	return err == nil && info.Mode().IsRegular()
}

func (s *SPA) serveIndex(w http.ResponseWriter, r *http.Request) {
	b, err := fs.ReadFile(s.root, IndexFile)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(b)
}
