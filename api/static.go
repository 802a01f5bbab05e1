package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// mimeTypes maps the supported file extensions; anything else is served as
// an opaque byte stream.
var mimeTypes = map[string]string{
	".htm":  "text/html",
	".html": "text/html",
	".css":  "text/css",
	".txt":  "text/plain",
	".js":   "text/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpe":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".ico":  "image/vnd.microsoft.icon",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".svg":  "image/svg+xml",
	".svgz": "image/svg+xml",
	".mp3":  "audio/mpeg",
}

// staticHandler serves files beneath a root directory. Requests that try to
// escape the root are rejected; a request for a directory serves its
// index.html.
type staticHandler struct {
	root string
}

func newStaticHandler(root string) *staticHandler {
	return &staticHandler{root: root}
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeInvalidMethod(w, "GET,HEAD", "Only GET and HEAD are expected")
		return
	}

	if containsDotDot(r.URL.Path) {
		writeBadRequest(w, "Invalid path")
		return
	}

	cleaned := path.Clean("/" + r.URL.Path)
	target := filepath.Join(h.root, filepath.FromSlash(cleaned))

	info, err := os.Stat(target)
	if err == nil && info.IsDir() {
		target = filepath.Join(target, "index.html")
		info, err = os.Stat(target)
	}
	if err != nil || info.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	contentType, ok := mimeTypes[strings.ToLower(filepath.Ext(target))]
	if !ok {
		contentType = "application/octet-stream"
	}
	file, err := os.Open(target)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, "", info.ModTime(), file)
}

func containsDotDot(p string) bool {
	for _, segment := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return true
		}
	}
	return false
}
