package uistatic

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:app
var appFS embed.FS

// Handler serves the ask console. Paths without a file extension fall back to
// index.html so the console can own client-side routes; a missing asset is a
// plain 404.
func Handler() http.Handler {
	assets, err := fs.Sub(appFS, "app")
	if err != nil {
		return http.NotFoundHandler()
	}
	files := http.FileServer(http.FS(assets))
	index, err := fs.ReadFile(assets, "index.html")
	if err != nil {
		return http.NotFoundHandler()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		switch {
		case name == "." || name == "index.html":
		case fileExists(assets, name):
			w.Header().Set("Cache-Control", "public, max-age=300")
			files.ServeHTTP(w, r)
			return
		case path.Ext(name) != "":
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(index)
	})
}

func fileExists(assets fs.FS, name string) bool {
	info, err := fs.Stat(assets, name)
	return err == nil && !info.IsDir()
}
