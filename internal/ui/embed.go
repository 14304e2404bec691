package ui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// DistFS returns the embedded timer page with the "dist" prefix stripped.
func DistFS() (fs.FS, error) {
	return fs.Sub(distFS, "dist")
}

// Handler serves the timer page. Paths without an extension fall back to
// index.html; missing assets and anything under /api are 404.
func Handler() (http.Handler, error) {
	sub, err := DistFS()
	if err != nil {
		return nil, err
	}
	files := http.FileServerFS(sub)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		switch {
		case p == "" || p == ".":
		case strings.HasPrefix(p, "api/"):
			http.NotFound(w, r)
			return
		default:
			if _, err := fs.Stat(sub, p); err == nil {
				break
			}
			if strings.Contains(path.Base(p), ".") {
				http.NotFound(w, r)
				return
			}
			r.URL.Path = "/"
		}
		files.ServeHTTP(w, r)
	}), nil
}
